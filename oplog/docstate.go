package oplog

import (
	"github.com/cshekharsharma/coredoc"
	"github.com/cshekharsharma/coredoc/change"
	"github.com/cshekharsharma/coredoc/state"
)

// noParent marks a container whose parent has not (yet) been observed;
// every container starts this way and is reclassified the first time
// some other container's diff is found to reference it (spec.md §4.5
// "a container newly introduced by a diff is registered").
const noParent = -1

// ContainerDiff is one affected container's observable diff plus its
// path from the document root, for subscriber path matching.
type ContainerDiff struct {
	ContainerIdx int
	Path         []any
	Diff         any
}

// Event is a batch of container diffs produced by one import, carrying
// the frontiers it moved the document between (spec.md §4.6).
type Event struct {
	From, To coredoc.Frontiers
	Diffs    []ContainerDiff
}

// DocState holds the current in-memory container states, indexed by
// container-arena index, plus the parent/path-key links discovered as
// diffs are applied (spec.md §4.6 "DocState holds container states,
// frontiers, and an event recorder").
type DocState struct {
	arenas *change.Arenas

	containers []state.ContainerState
	parent     []int
	pathKey    []any
	roots      map[string]int

	vv        coredoc.VersionVector
	frontiers coredoc.Frontiers
}

// NewDocState returns an empty DocState over arenas.
func NewDocState(arenas *change.Arenas) *DocState {
	return &DocState{
		arenas:    arenas,
		roots:     make(map[string]int),
		vv:        coredoc.NewVersionVector(),
		frontiers: coredoc.Frontiers{},
	}
}

// RootContainer returns the index of the named root container of the
// given kind, interning both the container id and its state on first
// use.
func (ds *DocState) RootContainer(kind change.ContainerKind, name string) int {
	if idx, ok := ds.roots[name]; ok {
		return idx
	}
	idx := ds.arenas.Containers.Intern(change.ContainerID{Kind: kind, RootName: name})
	ds.ensureContainer(idx)
	ds.roots[name] = idx
	return idx
}

// Container returns the container state at idx, creating it on first
// reference.
func (ds *DocState) Container(idx int) state.ContainerState {
	return ds.ensureContainer(idx)
}

func (ds *DocState) ensureContainer(idx int) state.ContainerState {
	for len(ds.containers) <= idx {
		ds.containers = append(ds.containers, nil)
		ds.parent = append(ds.parent, noParent)
		ds.pathKey = append(ds.pathKey, nil)
	}
	if ds.containers[idx] != nil {
		return ds.containers[idx]
	}
	id := ds.arenas.Containers.Get(idx)
	var cs state.ContainerState
	switch id.Kind {
	case change.ContainerMap:
		cs = state.NewMapState(ds.arenas)
	case change.ContainerList:
		cs = state.NewListState(ds.arenas)
	case change.ContainerText:
		cs = state.NewTextState(ds.arenas)
	case change.ContainerTree:
		cs = state.NewTreeState(ds.arenas)
	}
	ds.containers[idx] = cs
	return cs
}

// ApplyLocalOp routes op to the container it targets. opCtxVV is the
// version the op's own change was created against; see
// state.ContainerState.ApplyLocalOp.
func (ds *DocState) ApplyLocalOp(containerIdx int, id coredoc.ID, lamport coredoc.Lamport, opCtxVV coredoc.VersionVector, op change.Operation) error {
	return ds.ensureContainer(containerIdx).ApplyLocalOp(id, lamport, opCtxVV, op)
}

// syncChildLinks registers, for every child container currently
// referenced by the container at idx, idx as its parent and the
// referencing key/position as its path key — but only the first time
// that child is observed, since a container's path is fixed at the
// point it is first attached (subsequent moves are not re-parented here,
// consistent with the map/list value model: a container only ever has
// one live referencing slot at a time under LWW/tracker semantics).
func (ds *DocState) syncChildLinks(idx int) {
	cs := ds.containers[idx]
	if cs == nil {
		return
	}
	for _, ref := range cs.GetChildContainers() {
		childIdx := int(ref)
		for len(ds.containers) <= childIdx {
			ds.containers = append(ds.containers, nil)
			ds.parent = append(ds.parent, noParent)
			ds.pathKey = append(ds.pathKey, nil)
		}
		if ds.parent[childIdx] != noParent {
			continue
		}
		key, ok := cs.GetChildIndex(ref)
		if !ok {
			continue
		}
		ds.parent[childIdx] = idx
		ds.pathKey[childIdx] = key
	}
}

// Path returns the chain of keys from the document root down to
// (but not including) the container at idx, for subscriber path
// matching. A container with no observed parent is treated as a root:
// its own path is empty.
func (ds *DocState) Path(idx int) []any {
	var keys []any
	cur := idx
	for cur >= 0 && cur < len(ds.parent) && ds.parent[cur] != noParent {
		keys = append(keys, ds.pathKey[cur])
		cur = ds.parent[cur]
	}
	for i, j := 0, len(keys)-1; i < j; i, j = i+1, j-1 {
		keys[i], keys[j] = keys[j], keys[i]
	}
	return keys
}

// VV returns the document's current merged version vector.
func (ds *DocState) VV() coredoc.VersionVector { return ds.vv }

// Frontiers returns the document's current frontier set.
func (ds *DocState) Frontiers() coredoc.Frontiers { return ds.frontiers }
