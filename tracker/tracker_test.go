package tracker

import (
	"testing"

	"github.com/cshekharsharma/coredoc"
	"github.com/cshekharsharma/coredoc/change"
)

func vvOf(pairs ...any) coredoc.VersionVector {
	vv := coredoc.NewVersionVector()
	for i := 0; i < len(pairs); i += 2 {
		vv[pairs[i].(coredoc.PeerID)] = coredoc.Counter(pairs[i+1].(int))
	}
	return vv
}

func TestTextInsertSequentialSamePeer(t *testing.T) {
	arenas := change.NewArenas()
	tr := NewTracker(KindText, arenas)

	start, n := arenas.Text.Append("hello")
	tr.ApplyInsert(coredoc.ID{Peer: 1, Counter: 0}, 0, 0, n, start, vvOf())

	vv := vvOf(coredoc.PeerID(1), 5)
	if got := tr.Text(vv); got != "hello" {
		t.Fatalf("Text() = %q, want hello", got)
	}
	if got := tr.Len(vv); got != 5 {
		t.Fatalf("Len() = %d, want 5", got)
	}
}

func TestTextInsertMiddleAndDelete(t *testing.T) {
	arenas := change.NewArenas()
	tr := NewTracker(KindText, arenas)

	s1, n1 := arenas.Text.Append("helo")
	tr.ApplyInsert(coredoc.ID{Peer: 1, Counter: 0}, 0, 0, n1, s1, vvOf())
	vvAfterFirst := vvOf(coredoc.PeerID(1), 4)

	// Insert "l" at position 3 ("hel|o" -> "hello"), created after seeing
	// the first insert.
	s2, n2 := arenas.Text.Append("l")
	tr.ApplyInsert(coredoc.ID{Peer: 1, Counter: 4}, 1, 3, n2, s2, vvAfterFirst)

	vvFull := vvOf(coredoc.PeerID(1), 5)
	if got := tr.Text(vvFull); got != "hello" {
		t.Fatalf("Text() after insert = %q, want hello", got)
	}

	// Delete the "e" at position 1 (the single element with id peer1@1).
	tr.ApplyDelete(coredoc.ID{Peer: 1, Counter: 5}, coredoc.ID{Peer: 1, Counter: 1}, 1, false)
	vvAfterDelete := vvOf(coredoc.PeerID(1), 6)
	if got := tr.Text(vvAfterDelete); got != "hllo" {
		t.Fatalf("Text() after delete = %q, want hllo", got)
	}
	// The version before the delete op is known should still show "hello".
	if got := tr.Text(vvFull); got != "hello" {
		t.Fatalf("Text() at pre-delete version = %q, want hello (delete must not retroactively apply)", got)
	}
}

func TestConcurrentInsertsAtSamePositionOrderByLamportDescPeerDesc(t *testing.T) {
	arenas := change.NewArenas()
	tr := NewTracker(KindText, arenas)

	base := vvOf()
	sA, nA := arenas.Text.Append("A")
	sB, nB := arenas.Text.Append("B")

	// Both peers insert concurrently at position 0 off the same empty
	// base; peer 2 has the higher lamport so it must sort first.
	tr.ApplyInsert(coredoc.ID{Peer: 1, Counter: 0}, 5, 0, nA, sA, base)
	tr.ApplyInsert(coredoc.ID{Peer: 2, Counter: 0}, 7, 0, nB, sB, base)

	vv := vvOf(coredoc.PeerID(1), 1, coredoc.PeerID(2), 1)
	if got := tr.Text(vv); got != "BA" {
		t.Fatalf("Text() = %q, want BA (higher lamport sorts first)", got)
	}
}

func TestConcurrentInsertsTieBrokenByPeerDesc(t *testing.T) {
	arenas := change.NewArenas()
	tr := NewTracker(KindText, arenas)

	base := vvOf()
	sA, nA := arenas.Text.Append("A")
	sB, nB := arenas.Text.Append("B")

	// Equal lamport: higher peer id sorts first.
	tr.ApplyInsert(coredoc.ID{Peer: 1, Counter: 0}, 3, 0, nA, sA, base)
	tr.ApplyInsert(coredoc.ID{Peer: 9, Counter: 0}, 3, 0, nB, sB, base)

	vv := vvOf(coredoc.PeerID(1), 1, coredoc.PeerID(9), 1)
	if got := tr.Text(vv); got != "BA" {
		t.Fatalf("Text() = %q, want BA (peer 9 > peer 1)", got)
	}
}

func TestListValuesAndDiff(t *testing.T) {
	arenas := change.NewArenas()
	tr := NewTracker(KindList, arenas)

	s1, n1 := arenas.Values.Append(int64(1), int64(2), int64(3))
	tr.ApplyInsert(coredoc.ID{Peer: 1, Counter: 0}, 0, 0, n1, s1, vvOf())

	vvEmpty := vvOf()
	vvFull := vvOf(coredoc.PeerID(1), 3)

	vals := tr.Values(vvFull)
	if len(vals) != 3 || vals[0] != int64(1) || vals[2] != int64(3) {
		t.Fatalf("Values() = %v, want [1 2 3]", vals)
	}

	d := tr.Diff(vvEmpty, vvFull)
	items := d.Items()
	if len(items) != 1 || items[0].Kind != coredoc.KindInsert || items[0].Len != 3 {
		t.Fatalf("Diff(empty, full) = %+v, want single insert of len 3", items)
	}

	tr.ApplyDelete(coredoc.ID{Peer: 1, Counter: 3}, coredoc.ID{Peer: 1, Counter: 1}, 1, false)
	vvAfterDel := vvOf(coredoc.PeerID(1), 4)

	d2 := tr.Diff(vvFull, vvAfterDel)
	items2 := d2.Items()
	// Diff chops the trailing no-op retain over element 3, leaving
	// retain(1), delete(1).
	if len(items2) != 2 {
		t.Fatalf("Diff(full, afterDel) = %+v, want retain/delete", items2)
	}
	if items2[0].Kind != coredoc.KindRetain || items2[0].Len != 1 {
		t.Fatalf("item0 = %+v, want retain(1)", items2[0])
	}
	if items2[1].Kind != coredoc.KindDelete || items2[1].Len != 1 {
		t.Fatalf("item1 = %+v, want delete(1)", items2[1])
	}
	vals2 := tr.Values(vvAfterDel)
	if len(vals2) != 2 || vals2[0] != int64(1) || vals2[1] != int64(3) {
		t.Fatalf("Values() after delete = %v, want [1 3]", vals2)
	}
}

func TestStyleResolutionProducesStyledRuns(t *testing.T) {
	arenas := change.NewArenas()
	tr := NewTracker(KindText, arenas)

	s1, n1 := arenas.Text.Append("abcdef")
	tr.ApplyInsert(coredoc.ID{Peer: 1, Counter: 0}, 0, 0, n1, s1, vvOf())
	vv1 := vvOf(coredoc.PeerID(1), 6)

	// Bold the whole run: start anchor before "a", end anchor after "f".
	tr.ApplyStyleStart(coredoc.ID{Peer: 1, Counter: 6}, 6, 0, "bold", true, true, vv1)
	vv2 := vvOf(coredoc.PeerID(1), 7)
	tr.ApplyStyleEnd(coredoc.ID{Peer: 1, Counter: 7}, 7, 6, "bold", true, true, vv2)
	vv3 := vvOf(coredoc.PeerID(1), 8)

	// Then remove bold over [2,4) ("cd") with an explicit nil-value
	// override, which must shadow the enclosing mark without closing it.
	tr.ApplyStyleStart(coredoc.ID{Peer: 1, Counter: 8}, 8, 2, "bold", nil, true, vv3)
	vv4 := vvOf(coredoc.PeerID(1), 9)
	tr.ApplyStyleEnd(coredoc.ID{Peer: 1, Counter: 9}, 9, 4, "bold", nil, true, vv4)
	vv5 := vvOf(coredoc.PeerID(1), 10)

	runs := tr.RichTextValue(vv5)
	if len(runs) != 3 {
		t.Fatalf("RichTextValue() = %+v, want 3 styled runs", runs)
	}
	wantText := []string{"ab", "cd", "ef"}
	wantBold := []any{true, nil, true}
	for i, r := range runs {
		if r.Text != wantText[i] {
			t.Fatalf("run %d text = %q, want %q", i, r.Text, wantText[i])
		}
		attrs, ok := r.Attrs.(coredoc.StyleAttrs)
		if !ok {
			t.Fatalf("run %d attrs = %+v, want StyleAttrs", i, r.Attrs)
		}
		if got, present := attrs["bold"]; !present || got != wantBold[i] {
			t.Fatalf("run %d bold = %v (present=%v), want %v", i, got, present, wantBold[i])
		}
	}

	// Diff against an empty base must carry the same attrs on its insert
	// items (spec.md §4.4 "resolve style anchors to (key, value) interval
	// operations").
	d := tr.Diff(vvOf(), vv5)
	var sawPlainCD bool
	for _, it := range d.Items() {
		if it.Kind != coredoc.KindInsert {
			continue
		}
		text, ok := it.Value.(coredoc.TextRun)
		if !ok {
			continue
		}
		if string(text) == "cd" {
			attrs, ok := it.Attrs.(coredoc.StyleAttrs)
			if !ok {
				t.Fatalf("diff item for \"cd\" has attrs %+v, want StyleAttrs", it.Attrs)
			}
			if v, present := attrs["bold"]; !present || v != nil {
				t.Fatalf("diff item for \"cd\" bold = %v (present=%v), want nil override", v, present)
			}
			sawPlainCD = true
		}
	}
	if !sawPlainCD {
		t.Fatalf("Diff() items = %+v, expected an insert item for \"cd\"", d.Items())
	}
}

func TestStyleAnchorsAreZeroWidthAndInvisible(t *testing.T) {
	arenas := change.NewArenas()
	tr := NewTracker(KindText, arenas)

	s1, n1 := arenas.Text.Append("abc")
	tr.ApplyInsert(coredoc.ID{Peer: 1, Counter: 0}, 0, 0, n1, s1, vvOf())
	vv1 := vvOf(coredoc.PeerID(1), 3)

	tr.ApplyStyleStart(coredoc.ID{Peer: 1, Counter: 3}, 1, 0, "bold", true, true, vv1)
	tr.ApplyStyleEnd(coredoc.ID{Peer: 1, Counter: 4}, 2, 3, "bold", true, true, vvOf(coredoc.PeerID(1), 4))

	vvAll := vvOf(coredoc.PeerID(1), 5)
	if got := tr.Text(vvAll); got != "abc" {
		t.Fatalf("Text() with style anchors present = %q, want abc (markers are zero-width)", got)
	}
	if got := tr.Len(vvAll); got != 3 {
		t.Fatalf("Len() = %d, want 3", got)
	}
}
