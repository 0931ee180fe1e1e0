package coredoc

import "sort"

// VersionVector maps a peer to the next (exclusive) counter not yet seen
// for that peer: VersionVector{p: n} means ids (p, 0)..(p, n-1) are known.
type VersionVector map[PeerID]Counter

// NewVersionVector returns an empty version vector.
func NewVersionVector() VersionVector {
	return VersionVector{}
}

// Clone returns a deep copy.
func (v VersionVector) Clone() VersionVector {
	out := make(VersionVector, len(v))
	for p, c := range v {
		out[p] = c
	}
	return out
}

// Get returns the next-counter for peer, or 0 if the peer is unknown.
func (v VersionVector) Get(peer PeerID) Counter {
	return v[peer]
}

// Includes reports whether id is covered by v (id.Counter < v[id.Peer]).
func (v VersionVector) Includes(id ID) bool {
	return id.Counter < v[id.Peer]
}

// IncludesVV reports whether v dominates other: every peer counter in
// other is <= the corresponding counter in v.
func (v VersionVector) IncludesVV(other VersionVector) bool {
	for p, c := range other {
		if v[p] < c {
			return false
		}
	}
	return true
}

// Equal reports whether v and other cover exactly the same ids.
func (v VersionVector) Equal(other VersionVector) bool {
	if len(v) != len(other) {
		// A peer present with counter 0 is equivalent to absent; normalise
		// by falling through to per-key comparison instead of early exit
		// on length when either side might contain explicit zero entries.
	}
	seen := make(map[PeerID]bool, len(v)+len(other))
	for p := range v {
		seen[p] = true
	}
	for p := range other {
		seen[p] = true
	}
	for p := range seen {
		if v[p] != other[p] {
			return false
		}
	}
	return true
}

// CausalOrder is the result of comparing two version vectors.
type CausalOrder int

const (
	// OrderEqual means the two vectors cover identical ids.
	OrderEqual CausalOrder = iota
	// OrderLess means the receiver is dominated by the other vector.
	OrderLess
	// OrderGreater means the receiver dominates the other vector.
	OrderGreater
	// OrderConcurrent means neither vector dominates the other.
	OrderConcurrent
)

// Compare returns the partial-order relation of v to other.
func (v VersionVector) Compare(other VersionVector) CausalOrder {
	vDominates := v.IncludesVV(other)
	oDominates := other.IncludesVV(v)
	switch {
	case vDominates && oDominates:
		return OrderEqual
	case vDominates:
		return OrderGreater
	case oDominates:
		return OrderLess
	default:
		return OrderConcurrent
	}
}

// Diff returns the ids present in v but not in other (Left), and the ids
// present in other but not in v (Right), each as a sorted slice of
// IDSpan. This realises spec.md's "two iterators: ids in a not in b, and
// in b not in a".
func (v VersionVector) Diff(other VersionVector) (left, right []IDSpan) {
	peers := v.unionPeers(other)
	for _, p := range peers {
		a, b := v[p], other[p]
		if a > b {
			left = append(left, IDSpan{Peer: p, CounterStart: b, CounterEnd: a})
		} else if b > a {
			right = append(right, IDSpan{Peer: p, CounterStart: a, CounterEnd: b})
		}
	}
	return left, right
}

// SpansAfter returns, as a slice of IDSpan, the ids present in v but not
// in other — i.e. the left half of Diff. It mirrors the original
// implementation's version.rs helper of the same name.
func (v VersionVector) SpansAfter(other VersionVector) []IDSpan {
	left, _ := v.Diff(other)
	return left
}

// Distance returns the sum of componentwise gaps between v and other: the
// total number of ids that differ in either direction.
func (v VersionVector) Distance(other VersionVector) int {
	left, right := v.Diff(other)
	n := 0
	for _, s := range left {
		n += s.Len()
	}
	for _, s := range right {
		n += s.Len()
	}
	return n
}

// Intersect returns the componentwise minimum of v and other.
func (v VersionVector) Intersect(other VersionVector) VersionVector {
	out := make(VersionVector)
	for p, c := range v {
		if oc, ok := other[p]; ok {
			if oc < c {
				c = oc
			}
			out[p] = c
		}
	}
	return out
}

// Merge returns the componentwise maximum of v and other (the Merge used
// to combine two causal views, e.g. computing a node's cached VV).
func (v VersionVector) Merge(other VersionVector) VersionVector {
	out := v.Clone()
	for p, c := range other {
		if c > out[p] {
			out[p] = c
		}
	}
	return out
}

// ExtendWithID returns a copy of v extended to include id, i.e. with
// v[id.Peer] raised to at least id.Counter+1.
func (v VersionVector) ExtendWithID(id ID) VersionVector {
	out := v.Clone()
	if next := id.Counter + 1; out[id.Peer] < next {
		out[id.Peer] = next
	}
	return out
}

// ExtendWithSpan returns a copy of v extended so that the whole span is
// covered.
func (v VersionVector) ExtendWithSpan(s IDSpan) VersionVector {
	out := v.Clone()
	if out[s.Peer] < s.CounterEnd {
		out[s.Peer] = s.CounterEnd
	}
	return out
}

// ExtendWithVV returns the union (componentwise maximum) of v and other;
// an alias of Merge kept for call sites that read more naturally as
// "extend by another VV" per spec.md §3.
func (v VersionVector) ExtendWithVV(other VersionVector) VersionVector {
	return v.Merge(other)
}

func (v VersionVector) unionPeers(other VersionVector) []PeerID {
	seen := make(map[PeerID]struct{}, len(v)+len(other))
	for p := range v {
		seen[p] = struct{}{}
	}
	for p := range other {
		seen[p] = struct{}{}
	}
	peers := make([]PeerID, 0, len(seen))
	for p := range seen {
		peers = append(peers, p)
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i] < peers[j] })
	return peers
}
