// Package dag implements AppDag, the lazy causal DAG of changes
// (spec.md §4.2): insertion with node splitting at dependency points,
// incremental LCA, VersionVector<->Frontiers conversion, and causal
// iteration between two versions.
package dag

import "github.com/cshekharsharma/coredoc"

// Node is a maximally-mergeable block of one peer's changes sharing a
// successor-free prefix (spec.md §3 "DAG node").
type Node struct {
	Peer         coredoc.PeerID
	CounterStart coredoc.Counter
	LamportStart coredoc.Lamport
	Deps         coredoc.Frontiers
	Length       int
	HasSuccessor bool

	cachedVV coredoc.VersionVector // memoised once-initialised cell (spec.md §9)
}

// CounterEnd returns the exclusive upper counter bound of the node.
func (n *Node) CounterEnd() coredoc.Counter {
	return n.CounterStart + coredoc.Counter(n.Length)
}

// IDStart returns the node's first id.
func (n *Node) IDStart() coredoc.ID { return coredoc.ID{Peer: n.Peer, Counter: n.CounterStart} }

// IDLast returns the node's last id.
func (n *Node) IDLast() coredoc.ID { return coredoc.ID{Peer: n.Peer, Counter: n.CounterEnd() - 1} }

// LamportEnd returns the Lamport timestamp one past the node's last op.
func (n *Node) LamportEnd() coredoc.Lamport {
	return n.LamportStart + coredoc.Lamport(n.Length)
}

// LamportAt returns the Lamport timestamp of the op at counter, which
// must lie within [CounterStart, CounterEnd).
func (n *Node) LamportAt(counter coredoc.Counter) coredoc.Lamport {
	return n.LamportStart + coredoc.Lamport(counter-n.CounterStart)
}

// Contains reports whether id falls within this node's counter range.
func (n *Node) Contains(id coredoc.ID) bool {
	return id.Peer == n.Peer && id.Counter >= n.CounterStart && id.Counter < n.CounterEnd()
}

// CounterRange returns the node's [start, end) counter span as an IDSpan.
func (n *Node) CounterRange() coredoc.IDSpan {
	return coredoc.IDSpan{Peer: n.Peer, CounterStart: n.CounterStart, CounterEnd: n.CounterEnd()}
}

// clone returns a shallow copy of the node (used when splitting).
func (n *Node) clone() *Node {
	cp := *n
	cp.cachedVV = nil
	return &cp
}
