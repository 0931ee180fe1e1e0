package state

import (
	"testing"

	"github.com/cshekharsharma/coredoc"
	"github.com/cshekharsharma/coredoc/change"
)

func TestMapStateApplyLocalOpAndToDiff(t *testing.T) {
	arenas := change.NewArenas()
	s := NewMapState(arenas)

	vStart, _ := arenas.Values.Append("hello")
	id := coredoc.ID{Peer: 1, Counter: 0}
	op := change.Operation{Kind: change.OpMapSet, MapSet: change.MapSetContent{Key: "title", ValueIndex: vStart, ValuePresent: true}}
	if err := s.ApplyLocalOp(id, 0, coredoc.NewVersionVector(), op); err != nil {
		t.Fatalf("ApplyLocalOp: %v", err)
	}

	got := s.GetValue().(map[string]any)
	if got["title"] != "hello" {
		t.Fatalf("GetValue() = %+v, want title=hello", got)
	}

	diff := s.ToDiff().(MapInternalDiff)
	if len(diff.Delta.Updated) != 1 || diff.Delta.Updated[0].Key != "title" {
		t.Fatalf("ToDiff() = %+v, want one update for title", diff.Delta)
	}
}

func TestMapStateTxnAbortRollsBackWrite(t *testing.T) {
	arenas := change.NewArenas()
	s := NewMapState(arenas)

	vStart, _ := arenas.Values.Append("v1")
	s.ApplyLocalOp(coredoc.ID{Peer: 1, Counter: 0}, 0, coredoc.NewVersionVector(), change.Operation{
		Kind: change.OpMapSet, MapSet: change.MapSetContent{Key: "k", ValueIndex: vStart, ValuePresent: true},
	})

	s.StartTxn()
	v2Start, _ := arenas.Values.Append("v2")
	s.ApplyLocalOp(coredoc.ID{Peer: 1, Counter: 1}, 1, coredoc.NewVersionVector(), change.Operation{
		Kind: change.OpMapSet, MapSet: change.MapSetContent{Key: "k", ValueIndex: v2Start, ValuePresent: true},
	})
	if got := s.GetValue().(map[string]any)["k"]; got != "v2" {
		t.Fatalf("mid-txn value = %v, want v2", got)
	}

	s.AbortTxn()
	if got := s.GetValue().(map[string]any)["k"]; got != "v1" {
		t.Fatalf("post-abort value = %v, want v1", got)
	}
}

func TestMapStateChildContainerResolution(t *testing.T) {
	arenas := change.NewArenas()
	s := NewMapState(arenas)

	ref := ContainerRef(3)
	vStart, _ := arenas.Values.Append(ref)
	s.ApplyLocalOp(coredoc.ID{Peer: 1, Counter: 0}, 0, coredoc.NewVersionVector(), change.Operation{
		Kind: change.OpMapSet, MapSet: change.MapSetContent{Key: "child", ValueIndex: vStart, ValuePresent: true},
	})

	children := s.GetChildContainers()
	if len(children) != 1 || children[0] != ref {
		t.Fatalf("GetChildContainers() = %v, want [%v]", children, ref)
	}
	key, ok := s.GetChildIndex(ref)
	if !ok || key != "child" {
		t.Fatalf("GetChildIndex(ref) = %v, %v, want child, true", key, ok)
	}
}
