package coredoc

import "sort"

// Frontiers is a minimal antichain of ids: no two elements share a peer,
// and (once checked against the causal DAG) no element is an ancestor of
// another. The conversions to and from a VersionVector require walking
// the DAG and live on coredoc/dag.AppDag; this type only carries the set
// and its structural invariants.
type Frontiers []ID

// Clone returns a copy of f.
func (f Frontiers) Clone() Frontiers {
	out := make(Frontiers, len(f))
	copy(out, f)
	return out
}

// Sorted returns a copy of f sorted by peer id, giving a canonical
// encoding order.
func (f Frontiers) Sorted() Frontiers {
	out := f.Clone()
	sort.Slice(out, func(i, j int) bool { return out[i].Peer < out[j].Peer })
	return out
}

// Equal reports whether f and other contain the same ids, order
// notwithstanding.
func (f Frontiers) Equal(other Frontiers) bool {
	if len(f) != len(other) {
		return false
	}
	a, b := f.Sorted(), other.Sorted()
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Contains reports whether id is one of the frontier's elements.
func (f Frontiers) Contains(id ID) bool {
	for _, x := range f {
		if x == id {
			return true
		}
	}
	return false
}

// PeerOf returns the frontier element for peer and whether one exists.
// Since a well-formed Frontiers has at most one id per peer, this is the
// natural accessor.
func (f Frontiers) PeerOf(peer PeerID) (ID, bool) {
	for _, x := range f {
		if x.Peer == peer {
			return x, true
		}
	}
	return ID{}, false
}

// withoutPeer returns a copy of f with any element belonging to peer
// removed.
func (f Frontiers) withoutPeer(peer PeerID) Frontiers {
	out := make(Frontiers, 0, len(f))
	for _, x := range f {
		if x.Peer != peer {
			out = append(out, x)
		}
	}
	return out
}

// Without returns a copy of f with id removed, if present.
func (f Frontiers) Without(id ID) Frontiers {
	out := make(Frontiers, 0, len(f))
	for _, x := range f {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}

// WithLast returns the frontiers obtained by applying a new change's
// "last id" update rule from spec.md §4.2: remove every dep from the
// current frontiers, remove any existing same-peer id whose counter is
// <= the new last id's counter, then insert the new last id.
func (f Frontiers) WithLast(lastID ID, deps Frontiers) Frontiers {
	out := f.Clone()
	for _, d := range deps {
		out = out.Without(d)
	}
	filtered := make(Frontiers, 0, len(out))
	for _, x := range out {
		if x.Peer == lastID.Peer && x.Counter <= lastID.Counter {
			continue
		}
		filtered = append(filtered, x)
	}
	filtered = append(filtered, lastID)
	return filtered
}
