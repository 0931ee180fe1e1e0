package state

import (
	"github.com/cshekharsharma/coredoc"
	"github.com/cshekharsharma/coredoc/change"
	"github.com/cshekharsharma/coredoc/diffcalc"
	"github.com/cshekharsharma/coredoc/tracker"
)

// SequenceInternalDiff pairs a computed *coredoc.Delta with the version
// it moves the container to.
type SequenceInternalDiff struct {
	Delta *coredoc.Delta
	To    coredoc.VersionVector
}

// SequenceState is the shared list/rich-text container implementation: a
// thin wrapper over diffcalc.SequenceCalculator that owns transaction and
// version bookkeeping, per spec.md §4.5's "list & rich-text delegate to
// the tracker" guidance carried one layer up.
type SequenceState struct {
	kind tracker.Kind
	calc *diffcalc.SequenceCalculator
	vv   coredoc.VersionVector

	txnActive bool
	txnSnap   tracker.Snapshot
	txnVV     coredoc.VersionVector
}

// NewListState returns an empty list container state.
func NewListState(arenas *change.Arenas) *SequenceState {
	return newSequenceState(tracker.KindList, arenas)
}

// NewTextState returns an empty rich-text container state.
func NewTextState(arenas *change.Arenas) *SequenceState {
	return newSequenceState(tracker.KindText, arenas)
}

func newSequenceState(kind tracker.Kind, arenas *change.Arenas) *SequenceState {
	return &SequenceState{kind: kind, calc: diffcalc.NewSequenceCalculator(kind, arenas), vv: coredoc.NewVersionVector()}
}

// ApplyLocalOp applies a local list/text insert, delete, or (text only)
// style-start/style-end op. Position-bearing ops resolve their Position
// against opCtxVV — the inserting peer's own causal view when it created
// the op — rather than this container's locally-accumulated s.vv, since
// s.vv may by now include concurrent siblings the op's author never saw
// (spec.md §4.4's sibling tie-break depends on this).
func (s *SequenceState) ApplyLocalOp(id coredoc.ID, lamport coredoc.Lamport, opCtxVV coredoc.VersionVector, op any) error {
	operation, ok := op.(change.Operation)
	if !ok {
		return errWrongOpType("SequenceState", op)
	}
	switch operation.Kind {
	case change.OpListInsert:
		c := operation.ListInsert
		s.calc.ApplyInsert(id, lamport, c.Position, c.ValueLen, c.ValueStart, opCtxVV)
	case change.OpTextInsert:
		c := operation.TextInsert
		s.calc.ApplyInsert(id, lamport, c.Position, c.UnicodeLength, c.UnicodeStart, opCtxVV)
	case change.OpListDelete, change.OpTextDelete:
		c := operation.SeqDelete
		s.calc.ApplyDelete(id, c.StartID, c.Length, c.Reversed)
	case change.OpStyleStart:
		if s.kind != tracker.KindText {
			return errWrongOpType("SequenceState", op)
		}
		c := operation.Style
		s.calc.ApplyStyleStart(id, lamport, c.Position, c.Key, c.Value, c.StartInclusive, opCtxVV)
	case change.OpStyleEnd:
		if s.kind != tracker.KindText {
			return errWrongOpType("SequenceState", op)
		}
		c := operation.Style
		s.calc.ApplyStyleEnd(id, lamport, c.Position, c.Key, c.Value, c.EndInclusive, opCtxVV)
	default:
		return errWrongOpType("SequenceState", op)
	}
	s.vv = s.vv.ExtendWithSpan(coredoc.IDSpan{Peer: id.Peer, CounterStart: id.Counter, CounterEnd: id.Counter + coredoc.Counter(operation.Len())})
	return nil
}

// ApplyDiffAndConvert folds an externally-computed diff into this
// container's current version. Sequence diffs are already in observable
// form (they carry real text/values, not arena indices), so conversion
// is just the version bump.
func (s *SequenceState) ApplyDiffAndConvert(internalDiff any) any {
	d, ok := internalDiff.(SequenceInternalDiff)
	if !ok {
		return nil
	}
	s.vv = d.To
	return d.Delta
}

// ToDiff returns a diff sufficient to rebuild this container from empty.
func (s *SequenceState) ToDiff() any {
	return SequenceInternalDiff{Delta: s.calc.CalculateDiff(coredoc.NewVersionVector(), s.vv), To: s.vv}
}

// Diff computes the diff from `from` to `to` without advancing s.vv.
func (s *SequenceState) Diff(from, to coredoc.VersionVector) any {
	return SequenceInternalDiff{Delta: s.calc.CalculateDiff(from, to), To: to}
}

// StartTxn snapshots the rope so a later AbortTxn can roll back.
func (s *SequenceState) StartTxn() {
	s.txnActive = true
	s.txnSnap = s.calc.Snapshot()
	s.txnVV = s.vv
}

// AbortTxn discards every insert/delete recorded since StartTxn.
func (s *SequenceState) AbortTxn() {
	if !s.txnActive {
		return
	}
	s.calc.Restore(s.txnSnap)
	s.vv = s.txnVV
	s.txnActive = false
}

// CommitTxn keeps the ops recorded since StartTxn.
func (s *SequenceState) CommitTxn() { s.txnActive = false }

// GetValue returns the container's current materialised value: a string
// for text, a []any for lists.
func (s *SequenceState) GetValue() any { return s.calc.Value(s.vv) }

// RichTextValue returns the current text as style-run spans (text
// containers only; see diffcalc.SequenceCalculator.RichTextValue).
func (s *SequenceState) RichTextValue() []tracker.StyledRun {
	return s.calc.RichTextValue(s.vv)
}

// GetChildIndex returns the list position currently holding ref, if any.
// Rich-text containers never hold container-valued elements.
func (s *SequenceState) GetChildIndex(ref ContainerRef) (any, bool) {
	if s.kind != tracker.KindList {
		return nil, false
	}
	for i, v := range s.calc.Value(s.vv).([]any) {
		if cr, ok := v.(ContainerRef); ok && cr == ref {
			return i, true
		}
	}
	return nil, false
}

// GetChildContainers returns every child container currently held as a
// list element. Always empty for rich-text containers.
func (s *SequenceState) GetChildContainers() []ContainerRef {
	if s.kind != tracker.KindList {
		return nil
	}
	var out []ContainerRef
	for _, v := range s.calc.Value(s.vv).([]any) {
		if cr, ok := v.(ContainerRef); ok {
			out = append(out, cr)
		}
	}
	return out
}
