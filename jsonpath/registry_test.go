package jsonpath

import (
	"testing"

	"github.com/cshekharsharma/coredoc"
	"github.com/cshekharsharma/coredoc/oplog"
	"github.com/cshekharsharma/coredoc/state"
)

func mapDiffEvent(to coredoc.Frontiers, key, value string) *oplog.Event {
	return &oplog.Event{
		To: to,
		Diffs: []oplog.ContainerDiff{
			{
				ContainerIdx: 0,
				Path:         nil,
				Diff: state.MapObservableDiff{
					Updated: []state.MapUpdate{{Key: key, Value: value, Present: true}},
				},
			},
		},
	}
}

func TestRegistryFiresOnMatchingKeyUpdate(t *testing.T) {
	r := NewRegistry()
	fired := 0
	if _, err := r.Subscribe("$.title", func() { fired++ }); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	ev := mapDiffEvent(coredoc.Frontiers{{Peer: 1, Counter: 0}}, "title", "hello")
	r.Dispatch(ev)
	if fired != 1 {
		t.Fatalf("expected the callback to fire once, got %d", fired)
	}
}

func TestRegistryDoesNotFireForUnrelatedKey(t *testing.T) {
	r := NewRegistry()
	fired := 0
	if _, err := r.Subscribe("$.body", func() { fired++ }); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	ev := mapDiffEvent(coredoc.Frontiers{{Peer: 1, Counter: 0}}, "title", "hello")
	r.Dispatch(ev)
	if fired != 0 {
		t.Fatalf("expected no callback fire for an unrelated key, got %d", fired)
	}
}

func TestRegistryDedupesWithinSameToFrontiers(t *testing.T) {
	r := NewRegistry()
	fired := 0
	if _, err := r.Subscribe("$.title", func() { fired++ }); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	to := coredoc.Frontiers{{Peer: 1, Counter: 0}}
	ev := mapDiffEvent(to, "title", "hello")
	r.Dispatch(ev)
	r.Dispatch(ev)
	if fired != 1 {
		t.Fatalf("expected dedup to suppress the second dispatch, fired=%d", fired)
	}

	ev2 := mapDiffEvent(coredoc.Frontiers{{Peer: 1, Counter: 1}}, "title", "world")
	r.Dispatch(ev2)
	if fired != 2 {
		t.Fatalf("expected a new `to` frontiers to fire again, got %d", fired)
	}
}

func TestRegistryUnsubscribeStopsFurtherDispatch(t *testing.T) {
	r := NewRegistry()
	fired := 0
	id, err := r.Subscribe("$.title", func() { fired++ })
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	r.Unsubscribe(id)

	r.Dispatch(mapDiffEvent(coredoc.Frontiers{{Peer: 1, Counter: 0}}, "title", "hello"))
	if fired != 0 {
		t.Fatalf("expected no callback after unsubscribe, got %d", fired)
	}
}
