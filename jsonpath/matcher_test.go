package jsonpath

import "testing"

func compileMatcher(t *testing.T, query string) *Matcher {
	t.Helper()
	q, err := Compile(query)
	if err != nil {
		t.Fatalf("Compile(%q): %v", query, err)
	}
	return NewMatcher(q)
}

func TestMatcherExactNamePath(t *testing.T) {
	m := compileMatcher(t, "$.title")
	if !m.MayMatch([]PathElem{KeyElem("title")}) {
		t.Fatalf("expected exact key match to fire")
	}
	if m.MayMatch([]PathElem{KeyElem("body")}) {
		t.Fatalf("expected a different key not to match")
	}
}

func TestMatcherRecursiveDescentMatchesAnyDepth(t *testing.T) {
	m := compileMatcher(t, "$..title")
	if !m.MayMatch([]PathElem{KeyElem("title")}) {
		t.Fatalf("expected depth-0 match")
	}
	if !m.MayMatch([]PathElem{KeyElem("section"), KeyElem("title")}) {
		t.Fatalf("expected nested match via recursive descent")
	}
	if m.MayMatch([]PathElem{KeyElem("section"), KeyElem("author")}) {
		t.Fatalf("expected no match for an unrelated nested key")
	}
}

func TestMatcherIndexSelectorExactAndNegativeConservative(t *testing.T) {
	m := compileMatcher(t, "$.items[2]")
	if !m.MayMatch([]PathElem{KeyElem("items"), SeqElem(2)}) {
		t.Fatalf("expected exact index match")
	}
	if m.MayMatch([]PathElem{KeyElem("items"), SeqElem(3)}) {
		t.Fatalf("expected a different index not to match")
	}
	if !m.MayMatch([]PathElem{KeyElem("items"), UnknownSeqElem()}) {
		t.Fatalf("expected an unknown index to conservatively match")
	}

	neg := compileMatcher(t, "$.items[-1]")
	if !neg.MayMatch([]PathElem{KeyElem("items"), SeqElem(0)}) {
		t.Fatalf("expected a negative index selector to conservatively match any position")
	}
}

func TestMatcherPrefixOnlyDoesNotMatch(t *testing.T) {
	m := compileMatcher(t, "$.a.b")
	if m.MayMatch([]PathElem{KeyElem("a")}) {
		t.Fatalf("a partial prefix must not report a match")
	}
	positions := m.PositionsAfter([]PathElem{KeyElem("a")})
	found := false
	for _, p := range positions {
		if p == 1 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a live partial position at step 1, got %v", positions)
	}
}
