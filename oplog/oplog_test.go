package oplog

import (
	"testing"

	"github.com/cshekharsharma/coredoc"
	"github.com/cshekharsharma/coredoc/change"
	"github.com/cshekharsharma/coredoc/state"
)

func textInsertOp(arenas *change.Arenas, containerIdx int, position int, text string) change.Operation {
	start, n := arenas.Text.Append(text)
	return change.Operation{
		ContainerIdx: containerIdx,
		Kind:         change.OpTextInsert,
		TextInsert:   change.TextInsertContent{UnicodeStart: start, UnicodeLength: n, Position: position},
	}
}

func mapSetOp(arenas *change.Arenas, containerIdx int, key string, value any) change.Operation {
	start, _ := arenas.Values.Append(value)
	return change.Operation{
		ContainerIdx: containerIdx,
		Kind:         change.OpMapSet,
		MapSet:       change.MapSetContent{Key: key, ValueIndex: start, ValuePresent: true},
	}
}

func TestImportLocalChangeAppliesImmediatelyAndAdvancesVV(t *testing.T) {
	arenas := change.NewArenas()
	ol := New(arenas, 64)

	rootIdx := ol.DocState().RootContainer(change.ContainerMap, "root")
	op := mapSetOp(arenas, rootIdx, "title", "hello")

	c, err := ol.ImportLocalChange(1, []change.Operation{op}, nil, "set title")
	if err != nil {
		t.Fatalf("ImportLocalChange: %v", err)
	}
	if c.IDStart.Counter != 0 {
		t.Fatalf("expected counter 0, got %d", c.IDStart.Counter)
	}

	cs := ol.DocState().Container(rootIdx)
	v := cs.GetValue().(map[string]any)
	if v["title"] != "hello" {
		t.Fatalf("expected title=hello, got %v", v)
	}
	if ol.dag.VV().Get(1) != 1 {
		t.Fatalf("expected peer 1's vv to be 1, got %d", ol.dag.VV().Get(1))
	}

	// A second local change from the same peer must start at counter 1.
	op2 := mapSetOp(arenas, rootIdx, "title", "world")
	c2, err := ol.ImportLocalChange(1, []change.Operation{op2}, coredoc.Frontiers{c.LastID()}, "update title")
	if err != nil {
		t.Fatalf("ImportLocalChange 2: %v", err)
	}
	if c2.IDStart.Counter != 1 {
		t.Fatalf("expected second change to start at counter 1, got %d", c2.IDStart.Counter)
	}
	v = cs.GetValue().(map[string]any)
	if v["title"] != "world" {
		t.Fatalf("expected title=world after second change, got %v", v)
	}
}

func TestImportRemoteAppliesReadyChangeAndEmitsEvent(t *testing.T) {
	arenas := change.NewArenas()
	ol := New(arenas, 64)
	rootIdx := ol.DocState().RootContainer(change.ContainerMap, "root")

	op := mapSetOp(arenas, rootIdx, "k", "v1")
	c := &change.Change{
		IDStart:      coredoc.ID{Peer: 2, Counter: 0},
		LamportStart: 0,
		Ops:          []change.Operation{op},
	}

	events, err := ol.ImportRemote([]*change.Change{c})
	if err != nil {
		t.Fatalf("ImportRemote: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ev := events[0]
	if len(ev.Diffs) != 1 || ev.Diffs[0].ContainerIdx != rootIdx {
		t.Fatalf("expected one diff for root container, got %+v", ev.Diffs)
	}
	diff, ok := ev.Diffs[0].Diff.(state.MapObservableDiff)
	if !ok {
		t.Fatalf("expected MapObservableDiff, got %T", ev.Diffs[0].Diff)
	}
	if len(diff.Updated) != 1 || diff.Updated[0].Key != "k" || diff.Updated[0].Value != "v1" {
		t.Fatalf("unexpected diff contents: %+v", diff)
	}
}

func TestImportRemoteBuffersOutOfOrderChangeUntilDepsArrive(t *testing.T) {
	arenas := change.NewArenas()
	ol := New(arenas, 64)
	rootIdx := ol.DocState().RootContainer(change.ContainerMap, "root")

	op0 := mapSetOp(arenas, rootIdx, "k", "v0")
	c0 := &change.Change{IDStart: coredoc.ID{Peer: 3, Counter: 0}, LamportStart: 0, Ops: []change.Operation{op0}}
	op1 := mapSetOp(arenas, rootIdx, "k", "v1")
	c1 := &change.Change{
		IDStart:      coredoc.ID{Peer: 3, Counter: 1},
		LamportStart: 1,
		Deps:         coredoc.Frontiers{c0.LastID()},
		Ops:          []change.Operation{op1},
	}

	// c1 arrives first: its peer counter is ahead of what's known (0), so
	// it must be buffered, not applied or errored.
	events, err := ol.ImportRemote([]*change.Change{c1})
	if err != nil {
		t.Fatalf("ImportRemote(c1): %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events before c0 arrives, got %d", len(events))
	}
	if len(ol.pendingRemote) != 1 {
		t.Fatalf("expected c1 to be buffered, pending=%d", len(ol.pendingRemote))
	}

	// c0 arrives: both it and the now-unblocked c1 should apply in one call.
	events, err = ol.ImportRemote([]*change.Change{c0})
	if err != nil {
		t.Fatalf("ImportRemote(c0): %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events once both changes are ready, got %d", len(events))
	}
	if len(ol.pendingRemote) != 0 {
		t.Fatalf("expected pending to drain, got %d", len(ol.pendingRemote))
	}

	cs := ol.DocState().Container(rootIdx)
	v := cs.GetValue().(map[string]any)
	if v["k"] != "v1" {
		t.Fatalf("expected final value v1, got %v", v)
	}
}

func TestImportRemoteCollectsMalformedChangeErrorWithoutAbortingBatch(t *testing.T) {
	arenas := change.NewArenas()
	ol := New(arenas, 64)
	rootIdx := ol.DocState().RootContainer(change.ContainerMap, "root")

	// A change whose own deps reference a same-peer id at or after its own
	// start fails Validate.
	badOp := mapSetOp(arenas, rootIdx, "k", "bad")
	bad := &change.Change{
		IDStart: coredoc.ID{Peer: 4, Counter: 1},
		Deps:    coredoc.Frontiers{{Peer: 4, Counter: 1}},
		Ops:     []change.Operation{badOp},
	}

	goodOp := mapSetOp(arenas, rootIdx, "k", "good")
	good := &change.Change{IDStart: coredoc.ID{Peer: 5, Counter: 0}, Ops: []change.Operation{goodOp}}

	events, err := ol.ImportRemote([]*change.Change{bad, good})
	if err == nil {
		t.Fatalf("expected an aggregated error for the malformed change")
	}
	if len(events) != 1 {
		t.Fatalf("expected the well-formed change to still apply, got %d events", len(events))
	}
}

// TestConcurrentTextInsertsConverge reproduces spec.md §8 scenario #2:
// peer 1 locally inserts "a" then "b" at position 0 and 1 (lamports 0,
// 1) while peer 2 concurrently inserts "c" at position 0 (lamport 0).
// Both replicas must converge to "cab" once they exchange changes,
// regardless of which side applied its own ops first — a concurrent
// insert's position must be resolved against the causal context its
// author actually saw, not against whatever the replica has since
// accumulated locally.
func TestConcurrentTextInsertsConverge(t *testing.T) {
	arenas := change.NewArenas()

	siteA := New(arenas, 64)
	rootIdx := siteA.DocState().RootContainer(change.ContainerText, "body")
	siteB := New(arenas, 64)
	if idx := siteB.DocState().RootContainer(change.ContainerText, "body"); idx != rootIdx {
		t.Fatalf("sites disagree on root container index: %d vs %d", rootIdx, idx)
	}

	opA, err := siteA.ImportLocalChange(1, []change.Operation{
		textInsertOp(arenas, rootIdx, 0, "a"),
		textInsertOp(arenas, rootIdx, 1, "b"),
	}, nil, "insert ab")
	if err != nil {
		t.Fatalf("siteA ImportLocalChange: %v", err)
	}
	opB, err := siteB.ImportLocalChange(2, []change.Operation{
		textInsertOp(arenas, rootIdx, 0, "c"),
	}, nil, "insert c")
	if err != nil {
		t.Fatalf("siteB ImportLocalChange: %v", err)
	}

	if _, err := siteA.ImportRemote([]*change.Change{opB}); err != nil {
		t.Fatalf("siteA ImportRemote(opB): %v", err)
	}
	if _, err := siteB.ImportRemote([]*change.Change{opA}); err != nil {
		t.Fatalf("siteB ImportRemote(opA): %v", err)
	}

	textA := siteA.DocState().Container(rootIdx).GetValue()
	textB := siteB.DocState().Container(rootIdx).GetValue()
	if textA != "cab" {
		t.Fatalf("siteA converged text = %q, want cab", textA)
	}
	if textB != "cab" {
		t.Fatalf("siteB converged text = %q, want cab", textB)
	}
	if textA != textB {
		t.Fatalf("sites diverged: siteA=%q siteB=%q", textA, textB)
	}
}

func TestImportRemoteTracksChildContainerPath(t *testing.T) {
	arenas := change.NewArenas()
	ol := New(arenas, 64)
	rootIdx := ol.DocState().RootContainer(change.ContainerMap, "root")
	childIdx := arenas.Containers.Intern(change.ContainerID{Kind: change.ContainerText, CreatorOpID: "6@0"})

	op := mapSetOp(arenas, rootIdx, "body", state.ContainerRef(childIdx))
	c := &change.Change{IDStart: coredoc.ID{Peer: 6, Counter: 0}, Ops: []change.Operation{op}}

	if _, err := ol.ImportRemote([]*change.Change{c}); err != nil {
		t.Fatalf("ImportRemote: %v", err)
	}

	path := ol.DocState().Path(childIdx)
	if len(path) != 1 || path[0] != "body" {
		t.Fatalf("expected child path [\"body\"], got %v", path)
	}
}
