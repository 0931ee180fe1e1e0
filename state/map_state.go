package state

import (
	"github.com/cshekharsharma/coredoc"
	"github.com/cshekharsharma/coredoc/change"
	"github.com/cshekharsharma/coredoc/diffcalc"
)

// MapUpdate is one key's externally-observable new value.
type MapUpdate struct {
	Key     string
	Value   any
	Present bool
}

// MapObservableDiff is the resolved, subscriber-facing form of a
// diffcalc.MapDelta: arena indices already turned into real values.
type MapObservableDiff struct {
	Updated []MapUpdate
}

// MapInternalDiff pairs a computed diffcalc.MapDelta with the version it
// moves the container to, so ApplyDiffAndConvert can advance the
// container's current version alongside converting the diff.
type MapInternalDiff struct {
	Delta diffcalc.MapDelta
	To    coredoc.VersionVector
}

// MapState is the map container implementation: an LWW calculator plus
// the currently-applied version and an optional in-flight transaction
// snapshot.
type MapState struct {
	calc *diffcalc.MapCalculator
	vv   coredoc.VersionVector

	txnActive bool
	txnSnap   diffcalc.MapSnapshot
	txnVV     coredoc.VersionVector
}

// NewMapState returns an empty map container state.
func NewMapState(arenas *change.Arenas) *MapState {
	return &MapState{calc: diffcalc.NewMapCalculator(arenas), vv: coredoc.NewVersionVector()}
}

// ApplyLocalOp applies a local MapSet op ahead of durable commit.
// opCtxVV is unused: LWW map sets are ordered by (lamport, peer) alone.
func (s *MapState) ApplyLocalOp(id coredoc.ID, lamport coredoc.Lamport, opCtxVV coredoc.VersionVector, op any) error {
	operation, ok := op.(change.Operation)
	if !ok || operation.Kind != change.OpMapSet {
		return errWrongOpType("MapState", op)
	}
	s.calc.ApplyChange(id, lamport, operation.MapSet)
	s.vv = s.vv.ExtendWithID(id)
	return nil
}

// ApplyDiffAndConvert folds an externally-computed diff into this map's
// current version and returns the subscriber-facing diff.
func (s *MapState) ApplyDiffAndConvert(internalDiff any) any {
	d, ok := internalDiff.(MapInternalDiff)
	if !ok {
		return nil
	}
	s.vv = d.To
	out := MapObservableDiff{Updated: make([]MapUpdate, 0, len(d.Delta.Updated))}
	for _, u := range d.Delta.Updated {
		val, present := s.calc.Value(u.Key, s.vv)
		out.Updated = append(out.Updated, MapUpdate{Key: u.Key, Value: val, Present: present})
	}
	return out
}

// ToDiff returns a diff sufficient to rebuild this map from empty.
func (s *MapState) ToDiff() any {
	return MapInternalDiff{Delta: s.calc.CalculateDiff(coredoc.NewVersionVector(), s.vv), To: s.vv}
}

// Diff computes the diff from `from` to `to` without advancing s.vv.
func (s *MapState) Diff(from, to coredoc.VersionVector) any {
	return MapInternalDiff{Delta: s.calc.CalculateDiff(from, to), To: to}
}

// StartTxn snapshots the calculator so a later AbortTxn can roll back.
func (s *MapState) StartTxn() {
	s.txnActive = true
	s.txnSnap = s.calc.Snapshot()
	s.txnVV = s.vv
}

// AbortTxn discards every write recorded since StartTxn.
func (s *MapState) AbortTxn() {
	if !s.txnActive {
		return
	}
	s.calc.Restore(s.txnSnap)
	s.vv = s.txnVV
	s.txnActive = false
}

// CommitTxn keeps the writes recorded since StartTxn.
func (s *MapState) CommitTxn() { s.txnActive = false }

// GetValue returns the map's current key/value view.
func (s *MapState) GetValue() any {
	out := make(map[string]any)
	for _, k := range s.calc.Keys() {
		if v, ok := s.calc.Value(k, s.vv); ok {
			out[k] = v
		}
	}
	return out
}

// GetChildIndex returns the key currently holding ref as its value, if
// any.
func (s *MapState) GetChildIndex(ref ContainerRef) (any, bool) {
	for _, k := range s.calc.Keys() {
		if v, ok := s.calc.Value(k, s.vv); ok {
			if cr, isRef := v.(ContainerRef); isRef && cr == ref {
				return k, true
			}
		}
	}
	return nil, false
}

// GetChildContainers returns every child container currently referenced
// by this map's values.
func (s *MapState) GetChildContainers() []ContainerRef {
	var out []ContainerRef
	for _, k := range s.calc.Keys() {
		if v, ok := s.calc.Value(k, s.vv); ok {
			if cr, isRef := v.(ContainerRef); isRef {
				out = append(out, cr)
			}
		}
	}
	return out
}
