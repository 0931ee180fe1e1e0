// Package state implements the concrete container-state layer (spec.md
// §6): the interface every container kind (map/list/text/tree) must
// satisfy, in-memory materialization driven by a diffcalc calculator,
// and transaction start/abort/commit hooks.
package state

import (
	"github.com/cshekharsharma/coredoc"
	"github.com/cshekharsharma/coredoc/store"
)

// ContainerRef identifies a child container by its container-arena index.
// It is store.ContainerRef under the hood: a Map/List value that is
// itself a container is interned in the value arena using the same tag
// the persistence layer encodes, so no conversion is needed moving a
// value between materialized state and the wire.
type ContainerRef = store.ContainerRef

// ContainerState is the in-memory contract every concrete container
// implementation satisfies (spec.md §6).
type ContainerState interface {
	// ApplyDiffAndConvert folds an internal diff (from a diffcalc
	// calculator) into the container's materialized state and returns
	// the observable diff to hand to subscribers.
	ApplyDiffAndConvert(internalDiff any) (observableDiff any)
	// ApplyLocalOp immediately applies a local mutation's op, ahead of
	// it being durably committed. opCtxVV is the version vector the
	// op's own change was created against (its Deps merged forward
	// through any preceding same-change ops, spec.md §4.4's causal
	// tie-break) — not the container's own locally-accumulated version,
	// which may already include concurrent content this op's author
	// never saw. Sequence/text containers use it to resolve the op's
	// Position against the inserting peer's own view; map/tree ignore it.
	ApplyLocalOp(id coredoc.ID, lamport coredoc.Lamport, opCtxVV coredoc.VersionVector, op any) error
	// ToDiff returns a diff sufficient to rebuild this container's
	// current state from empty.
	ToDiff() any
	// Diff computes the internal diff transforming the container's
	// recorded state at from into its state at to, suitable for handing
	// straight to ApplyDiffAndConvert. Unlike ToDiff it does not mutate
	// the container's own current version.
	Diff(from, to coredoc.VersionVector) any

	StartTxn()
	AbortTxn()
	CommitTxn()

	GetValue() any
	// GetChildIndex returns this container's position for the child
	// container identified by ref, if ref is currently reachable from
	// this container.
	GetChildIndex(ref ContainerRef) (any, bool)
	GetChildContainers() []ContainerRef
}
