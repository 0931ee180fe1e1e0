package jsonpath

import "testing"

func TestCompileDottedNamePath(t *testing.T) {
	q, err := Compile("$.foo.bar")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(q.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(q.Steps))
	}
	if q.Steps[0].Recursive || q.Steps[1].Recursive {
		t.Fatalf("expected no recursive steps, got %+v", q.Steps)
	}
	if _, ok := q.Steps[0].Selectors[0].(NameSelector); !ok {
		t.Fatalf("expected NameSelector, got %T", q.Steps[0].Selectors[0])
	}
}

func TestCompileRecursiveDescent(t *testing.T) {
	q, err := Compile("$..title")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(q.Steps) != 1 || !q.Steps[0].Recursive {
		t.Fatalf("expected one recursive step, got %+v", q.Steps)
	}
	sel, ok := q.Steps[0].Selectors[0].(NameSelector)
	if !ok || sel.Name != "title" {
		t.Fatalf("expected NameSelector{title}, got %+v", q.Steps[0].Selectors[0])
	}
}

func TestCompileIndexAndWildcard(t *testing.T) {
	q, err := Compile("$.items[0]")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(q.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(q.Steps))
	}
	idx, ok := q.Steps[1].Selectors[0].(IndexSelector)
	if !ok || idx.Index != 0 {
		t.Fatalf("expected IndexSelector{0}, got %+v", q.Steps[1].Selectors[0])
	}

	q2, err := Compile("$.items[*]")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if _, ok := q2.Steps[1].Selectors[0].(WildSelector); !ok {
		t.Fatalf("expected WildSelector, got %T", q2.Steps[1].Selectors[0])
	}
}

func TestCompileUnionKeysAndRejectsMissingRoot(t *testing.T) {
	q, err := Compile("$['a','b']")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	sel, ok := q.Steps[0].Selectors[0].(UnionKeySelector)
	if !ok || len(sel.Keys) != 2 || sel.Keys[0] != "a" || sel.Keys[1] != "b" {
		t.Fatalf("expected UnionKeySelector{a,b}, got %+v", q.Steps[0].Selectors[0])
	}

	if _, err := Compile("foo.bar"); err == nil {
		t.Fatalf("expected an error for a query missing the leading '$'")
	}
}
