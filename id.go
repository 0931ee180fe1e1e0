// Package coredoc implements the identity algebra and causal-order
// primitives that the rest of the engine builds on: peer/counter
// identifiers, Lamport timestamps, version vectors, frontiers, and the
// generic retain/insert/delete delta algebra.
//
// The deeper engineering — the causal DAG, the change-block codec and
// SSTable store, the CRDT tracker, the per-container diff calculators,
// container state, oplog/DocState orchestration, and the JSONPath
// subscription matcher — lives in coredoc's subpackages.
package coredoc

import "fmt"

// PeerID is an opaque 64-bit identifier for a replica.
type PeerID uint64

// Counter is a dense, per-peer, non-negative operation sequence number.
type Counter uint32

// ID identifies a single operation: the pair (peer, counter).
type ID struct {
	Peer    PeerID
	Counter Counter
}

// String renders an ID as "peer@counter" for logs and error messages.
func (id ID) String() string {
	return fmt.Sprintf("%d@%d", id.Peer, id.Counter)
}

// Less orders IDs first by peer then by counter. This is a total order
// used for deterministic iteration (e.g. map keys), not the causal or
// Lamport order.
func (id ID) Less(other ID) bool {
	if id.Peer != other.Peer {
		return id.Peer < other.Peer
	}
	return id.Counter < other.Counter
}

// IDSpan is a half-open span of counters from one peer: [CounterStart, CounterEnd).
type IDSpan struct {
	Peer        PeerID
	CounterStart Counter
	CounterEnd   Counter
}

// Len returns the number of ids covered by the span.
func (s IDSpan) Len() int {
	if s.CounterEnd <= s.CounterStart {
		return 0
	}
	return int(s.CounterEnd - s.CounterStart)
}

// Contains reports whether id falls within the span.
func (s IDSpan) Contains(id ID) bool {
	return id.Peer == s.Peer && id.Counter >= s.CounterStart && id.Counter < s.CounterEnd
}

// IDLast returns the last id contained in the span. Panics if the span is
// empty; callers must check Len() > 0 first.
func (s IDSpan) IDLast() ID {
	if s.Len() == 0 {
		panic("coredoc: IDLast called on empty span")
	}
	return ID{Peer: s.Peer, Counter: s.CounterEnd - 1}
}

// IDStart returns the first id contained in the span.
func (s IDSpan) IDStart() ID {
	return ID{Peer: s.Peer, Counter: s.CounterStart}
}

// Overlaps reports whether two spans of the same peer share any counter.
func (s IDSpan) Overlaps(other IDSpan) bool {
	if s.Peer != other.Peer {
		return false
	}
	return s.CounterStart < other.CounterEnd && other.CounterStart < s.CounterEnd
}

// Intersect returns the overlapping portion of two same-peer spans and
// whether it is non-empty.
func (s IDSpan) Intersect(other IDSpan) (IDSpan, bool) {
	if s.Peer != other.Peer {
		return IDSpan{}, false
	}
	start := max(s.CounterStart, other.CounterStart)
	end := min(s.CounterEnd, other.CounterEnd)
	if end <= start {
		return IDSpan{}, false
	}
	return IDSpan{Peer: s.Peer, CounterStart: start, CounterEnd: end}, true
}
