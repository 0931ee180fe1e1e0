package state

import (
	"github.com/cshekharsharma/coredoc"
	"github.com/cshekharsharma/coredoc/change"
	"github.com/cshekharsharma/coredoc/diffcalc"
)

// TreeInternalDiff pairs a computed diffcalc.TreeDelta with the version
// it moves the container to.
type TreeInternalDiff struct {
	Delta diffcalc.TreeDelta
	To    coredoc.VersionVector
}

// TreeState is the tree container implementation: move-record log plus
// the currently-applied version. Tree nodes are addressed by their own
// tree-id strings rather than container-arena indices, so unlike
// map/list this container never itself holds a ContainerRef value —
// nesting other containers under a tree node is out of scope for this
// engine's tree container, consistent with spec.md's tree operations
// (create/move/delete/empty-trash) carrying no child-container payload.
type TreeState struct {
	calc *diffcalc.TreeCalculator
	vv   coredoc.VersionVector

	txnActive bool
	txnSnap   diffcalc.TreeSnapshot
	txnVV     coredoc.VersionVector
}

// NewTreeState returns an empty tree container state.
func NewTreeState(arenas *change.Arenas) *TreeState {
	return &TreeState{calc: diffcalc.NewTreeCalculator(arenas), vv: coredoc.NewVersionVector()}
}

// ApplyLocalOp applies a local tree create/move/delete/empty-trash op.
// opCtxVV is unused: tree ops address nodes by tree-id and fractional
// index, not by counted position, so they need no causal-context VV.
func (s *TreeState) ApplyLocalOp(id coredoc.ID, lamport coredoc.Lamport, opCtxVV coredoc.VersionVector, op any) error {
	operation, ok := op.(change.Operation)
	if !ok {
		return errWrongOpType("TreeState", op)
	}
	var kind diffcalc.TreeOpKind
	switch operation.Kind {
	case change.OpTreeCreate:
		kind = diffcalc.TreeOpCreate
	case change.OpTreeMove:
		kind = diffcalc.TreeOpMove
	case change.OpTreeDelete:
		kind = diffcalc.TreeOpDelete
	case change.OpTreeEmptyTrash:
		kind = diffcalc.TreeOpEmptyTrash
	default:
		return errWrongOpType("TreeState", op)
	}
	s.calc.ApplyOp(id, lamport, kind, operation.Tree)
	s.vv = s.vv.ExtendWithID(id)
	return nil
}

// ApplyDiffAndConvert folds an externally-computed diff into this tree's
// current version and returns it unchanged: tree diffs already carry
// real tree-ids and fractional-index bytes rather than arena indices.
func (s *TreeState) ApplyDiffAndConvert(internalDiff any) any {
	d, ok := internalDiff.(TreeInternalDiff)
	if !ok {
		return nil
	}
	s.vv = d.To
	return d.Delta
}

// ToDiff returns a diff sufficient to rebuild this tree from empty.
func (s *TreeState) ToDiff() any {
	return TreeInternalDiff{Delta: s.calc.CalculateDiff(coredoc.NewVersionVector(), s.vv), To: s.vv}
}

// Diff computes the diff from `from` to `to` without advancing s.vv.
func (s *TreeState) Diff(from, to coredoc.VersionVector) any {
	return TreeInternalDiff{Delta: s.calc.CalculateDiff(from, to), To: to}
}

// StartTxn snapshots the move log so a later AbortTxn can roll back.
func (s *TreeState) StartTxn() {
	s.txnActive = true
	s.txnSnap = s.calc.Snapshot()
	s.txnVV = s.vv
}

// AbortTxn discards every tree op recorded since StartTxn.
func (s *TreeState) AbortTxn() {
	if !s.txnActive {
		return
	}
	s.calc.Restore(s.txnSnap)
	s.vv = s.txnVV
	s.txnActive = false
}

// CommitTxn keeps the ops recorded since StartTxn.
func (s *TreeState) CommitTxn() { s.txnActive = false }

// GetValue returns every node currently alive, with its (parent,
// position) state.
func (s *TreeState) GetValue() any { return s.calc.AliveNodes(s.vv) }

// GetChildIndex always reports not-found: tree nodes never hold a
// ContainerRef value (see TreeState's doc comment).
func (s *TreeState) GetChildIndex(ref ContainerRef) (any, bool) { return nil, false }

// GetChildContainers is always empty for tree containers.
func (s *TreeState) GetChildContainers() []ContainerRef { return nil }
