package store

import (
	"testing"

	"github.com/cshekharsharma/coredoc"
	"github.com/cshekharsharma/coredoc/change"
)

func TestChangeStoreFlushAndRetrieve(t *testing.T) {
	arenas := change.NewArenas()
	cs := NewChangeStore(arenas, 2)

	c1 := &change.Change{
		IDStart: coredoc.ID{Peer: 1, Counter: 0},
		Ops:     []change.Operation{{Kind: change.OpMapSet, MapSet: change.MapSetContent{Key: "a"}}},
	}
	c2 := &change.Change{
		IDStart: coredoc.ID{Peer: 1, Counter: 1},
		Deps:    coredoc.Frontiers{{Peer: 1, Counter: 0}},
		Ops:     []change.Operation{{Kind: change.OpMapSet, MapSet: change.MapSetContent{Key: "b"}}},
	}

	if err := cs.Append(c1); err != nil {
		t.Fatalf("Append c1: %v", err)
	}
	if len(cs.runs) != 0 {
		t.Fatalf("expected no flush before threshold reached")
	}
	if err := cs.Append(c2); err != nil {
		t.Fatalf("Append c2: %v", err)
	}
	if len(cs.runs) != 1 {
		t.Fatalf("expected a flush once threshold reached, got %d runs", len(cs.runs))
	}

	got, ok, err := cs.GetBlockContaining(coredoc.ID{Peer: 1, Counter: 1})
	if err != nil {
		t.Fatalf("GetBlockContaining: %v", err)
	}
	if !ok || len(got) != 2 {
		t.Fatalf("expected both changes back, got %v (ok=%v)", got, ok)
	}
	if got[1].Ops[0].MapSet.Key != "b" {
		t.Fatalf("unexpected second change: %+v", got[1])
	}
}

func TestChangeStorePendingLookupBeforeFlush(t *testing.T) {
	arenas := change.NewArenas()
	cs := NewChangeStore(arenas, 10)
	c := &change.Change{
		IDStart: coredoc.ID{Peer: 2, Counter: 0},
		Ops:     []change.Operation{{Kind: change.OpMapSet, MapSet: change.MapSetContent{Key: "x"}}},
	}
	if err := cs.Append(c); err != nil {
		t.Fatalf("Append: %v", err)
	}
	got, ok, err := cs.GetBlockContaining(coredoc.ID{Peer: 2, Counter: 0})
	if err != nil || !ok {
		t.Fatalf("expected to find pending change: ok=%v err=%v", ok, err)
	}
	if len(got) != 1 || got[0].Ops[0].MapSet.Key != "x" {
		t.Fatalf("unexpected pending lookup result: %+v", got)
	}
}
