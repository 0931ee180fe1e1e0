package state

import (
	"testing"

	"github.com/cshekharsharma/coredoc"
	"github.com/cshekharsharma/coredoc/change"
)

func TestSequenceStateTextInsertAndTxnAbort(t *testing.T) {
	arenas := change.NewArenas()
	s := NewTextState(arenas)

	start, n := arenas.Text.Append("hi")
	s.ApplyLocalOp(coredoc.ID{Peer: 1, Counter: 0}, 0, s.vv, change.Operation{
		Kind:       change.OpTextInsert,
		TextInsert: change.TextInsertContent{UnicodeStart: start, UnicodeLength: n, Position: 0},
	})
	if got := s.GetValue(); got != "hi" {
		t.Fatalf("GetValue() = %v, want hi", got)
	}

	s.StartTxn()
	start2, n2 := arenas.Text.Append("!")
	s.ApplyLocalOp(coredoc.ID{Peer: 1, Counter: 2}, 1, s.vv, change.Operation{
		Kind:       change.OpTextInsert,
		TextInsert: change.TextInsertContent{UnicodeStart: start2, UnicodeLength: n2, Position: 2},
	})
	if got := s.GetValue(); got != "hi!" {
		t.Fatalf("mid-txn GetValue() = %v, want hi!", got)
	}
	s.AbortTxn()
	if got := s.GetValue(); got != "hi" {
		t.Fatalf("post-abort GetValue() = %v, want hi", got)
	}
}

func TestSequenceStateListChildContainerResolution(t *testing.T) {
	arenas := change.NewArenas()
	s := NewListState(arenas)

	ref := ContainerRef(7)
	start, n := arenas.Values.Append("a", ref, "b")
	s.ApplyLocalOp(coredoc.ID{Peer: 1, Counter: 0}, 0, s.vv, change.Operation{
		Kind:       change.OpListInsert,
		ListInsert: change.ListInsertContent{ValueStart: start, ValueLen: n, Position: 0},
	})

	idx, ok := s.GetChildIndex(ref)
	if !ok || idx != 1 {
		t.Fatalf("GetChildIndex(ref) = %v, %v, want 1, true", idx, ok)
	}
	children := s.GetChildContainers()
	if len(children) != 1 || children[0] != ref {
		t.Fatalf("GetChildContainers() = %v, want [%v]", children, ref)
	}
}
