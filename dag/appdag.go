package dag

import (
	"sort"
	"sync"

	"github.com/cshekharsharma/coredoc"
	"github.com/cshekharsharma/coredoc/change"
	"github.com/cshekharsharma/coredoc/errtype"
)

// AppDag is the lazy causal graph of all changes known to a document
// (spec.md §4.2). Nodes are contiguous counter ranges per peer; a change
// that strictly extends the current tail of its peer's chain (single dep
// on the immediate predecessor, predecessor has no other successor) is
// folded into the existing node instead of allocating a new one.
type AppDag struct {
	mu sync.Mutex

	byPeer map[coredoc.PeerID][]*Node

	frontiers coredoc.Frontiers
	vv        coredoc.VersionVector

	// unhandled records dependency ids pointed at by some node that are
	// not yet materialised; import_remote holds changes until their deps
	// land, so in practice this set stays empty, but a strict-ordering
	// violation surfaces here rather than panicking.
	unhandled map[coredoc.ID]bool
}

// New returns an empty AppDag.
func New() *AppDag {
	return &AppDag{
		byPeer:    make(map[coredoc.PeerID][]*Node),
		vv:        coredoc.NewVersionVector(),
		unhandled: make(map[coredoc.ID]bool),
	}
}

// VV returns the current merged version vector (a clone; safe to mutate).
func (d *AppDag) VV() coredoc.VersionVector {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.vv.Clone()
}

// Frontiers returns the current frontier set (a clone; safe to mutate).
func (d *AppDag) Frontiers() coredoc.Frontiers {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frontiers.Clone()
}

// HandleNewChange inserts c into the graph, extending the tail node of
// its peer when possible and splitting any node whose interior is newly
// depended upon, then advances the document-wide vv/frontiers.
func (d *AppDag) HandleNewChange(c *change.Change) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := c.Validate(); err != nil {
		return err
	}
	peer := c.IDStart.Peer
	nodes := d.byPeer[peer]

	var tail *Node
	if len(nodes) > 0 {
		tail = nodes[len(nodes)-1]
	}

	extends := tail != nil &&
		tail.CounterEnd() == c.IDStart.Counter &&
		!tail.HasSuccessor &&
		len(c.Deps) == 1 &&
		c.Deps[0] == tail.IDLast()

	var newNode *Node
	if extends {
		tail.Length += c.CounterLen()
		tail.cachedVV = nil
	} else {
		newNode = &Node{
			Peer:         peer,
			CounterStart: c.IDStart.Counter,
			LamportStart: c.LamportStart,
			Deps:         c.Deps.Clone(),
			Length:       c.CounterLen(),
		}
		d.byPeer[peer] = append(nodes, newNode)
	}

	if newNode != nil {
		for _, dep := range newNode.Deps {
			depNode := d.nodeContainingLocked(dep)
			if depNode == nil {
				d.unhandled[dep] = true
				continue
			}
			if depNode.IDLast() == dep {
				depNode.HasSuccessor = true
				continue
			}
			d.splitAfter(depNode, dep.Counter)
		}
		delete(d.unhandled, newNode.IDStart())
	}

	lastID := c.LastID()
	d.frontiers = d.frontiers.WithLast(lastID, c.Deps)
	d.vv = d.vv.ExtendWithSpan(c.IDSpan())
	return nil
}

// splitAfter splits node into two at depCounter (inclusive in the first
// half): used when a later change depends on an id strictly inside an
// already-materialised node, which means that id must become a node
// boundary so its own cached vv can be looked up directly.
func (d *AppDag) splitAfter(node *Node, depCounter coredoc.Counter) {
	firstLen := int(depCounter-node.CounterStart) + 1
	if firstLen >= node.Length {
		node.HasSuccessor = true
		return
	}
	second := node.clone()
	second.CounterStart = depCounter + 1
	second.LamportStart = node.LamportStart + coredoc.Lamport(firstLen)
	second.Length = node.Length - firstLen
	second.Deps = coredoc.Frontiers{{Peer: node.Peer, Counter: depCounter}}
	second.HasSuccessor = node.HasSuccessor

	node.Length = firstLen
	node.HasSuccessor = true
	node.cachedVV = nil

	nodes := d.byPeer[node.Peer]
	idx := sort.Search(len(nodes), func(i int) bool { return nodes[i].CounterStart >= node.CounterStart })
	out := make([]*Node, 0, len(nodes)+1)
	out = append(out, nodes[:idx+1]...)
	out = append(out, second)
	out = append(out, nodes[idx+1:]...)
	d.byPeer[node.Peer] = out
}

func (d *AppDag) nodeContainingLocked(id coredoc.ID) *Node {
	nodes := d.byPeer[id.Peer]
	idx := sort.Search(len(nodes), func(i int) bool { return nodes[i].CounterStart > id.Counter }) - 1
	if idx < 0 || idx >= len(nodes) {
		return nil
	}
	n := nodes[idx]
	if !n.Contains(id) {
		return nil
	}
	return n
}

// Get returns the node containing id, if known.
func (d *AppDag) Get(id coredoc.ID) (*Node, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := d.nodeContainingLocked(id)
	return n, n != nil
}

// ensureVV computes and memoises node's causal version vector: the union
// of its dependencies' vvs plus its own counter span.
func (d *AppDag) ensureVV(n *Node) coredoc.VersionVector {
	if n.cachedVV != nil {
		return n.cachedVV
	}
	vv := coredoc.NewVersionVector()
	for _, dep := range n.Deps {
		if depNode := d.nodeContainingLocked(dep); depNode != nil {
			vv = vv.Merge(d.ensureVV(depNode))
		}
	}
	vv = vv.ExtendWithSpan(n.CounterRange())
	n.cachedVV = vv
	return vv
}

// GetVV returns the version vector representing everything causally known
// as of (and including) id.
func (d *AppDag) GetVV(id coredoc.ID) (coredoc.VersionVector, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := d.nodeContainingLocked(id)
	if n == nil {
		return nil, errtype.NewFrontiersNotIncluded("id %s not present in dag", id)
	}
	if id == n.IDLast() {
		return d.ensureVV(n).Clone(), nil
	}
	vv := coredoc.NewVersionVector()
	for _, dep := range n.Deps {
		if depNode := d.nodeContainingLocked(dep); depNode != nil {
			vv = vv.Merge(d.ensureVV(depNode))
		}
	}
	vv = vv.ExtendWithSpan(coredoc.IDSpan{Peer: n.Peer, CounterStart: n.CounterStart, CounterEnd: id.Counter + 1})
	return vv, nil
}

// GetLamport returns the Lamport timestamp of id.
func (d *AppDag) GetLamport(id coredoc.ID) (coredoc.Lamport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := d.nodeContainingLocked(id)
	if n == nil {
		return 0, errtype.NewFrontiersNotIncluded("id %s not present in dag", id)
	}
	return n.LamportAt(id.Counter), nil
}

// FrontiersToVV converts a frontier set to its equivalent version vector
// by unioning each element's causal vv.
func (d *AppDag) FrontiersToVV(f coredoc.Frontiers) (coredoc.VersionVector, error) {
	vv := coredoc.NewVersionVector()
	for _, id := range f {
		v, err := d.GetVV(id)
		if err != nil {
			return nil, err
		}
		vv = vv.Merge(v)
	}
	return vv, nil
}

// VVToFrontiers converts a version vector to the minimal frontier set
// whose causal closure equals it: one candidate id per peer, with any
// candidate dropped that is already implied by another candidate's causal
// history (spec.md §3 "frontiers are the maximal elements").
func (d *AppDag) VVToFrontiers(vv coredoc.VersionVector) (coredoc.Frontiers, error) {
	var candidates []coredoc.ID
	for p, c := range vv {
		if c == 0 {
			continue
		}
		candidates = append(candidates, coredoc.ID{Peer: p, Counter: c - 1})
	}
	cov := make(map[coredoc.PeerID]coredoc.VersionVector, len(candidates))
	for _, id := range candidates {
		v, err := d.GetVV(id)
		if err != nil {
			return nil, err
		}
		cov[id.Peer] = v
	}
	var out coredoc.Frontiers
	for _, id := range candidates {
		redundant := false
		for _, other := range candidates {
			if other == id {
				continue
			}
			if cov[other.Peer].Get(id.Peer) > id.Counter {
				redundant = true
				break
			}
		}
		if !redundant {
			out = append(out, id)
		}
	}
	return out, nil
}

// CmpVersion returns the partial-order relation between two version
// vectors.
func (d *AppDag) CmpVersion(a, b coredoc.VersionVector) coredoc.CausalOrder {
	return a.Compare(b)
}

// CmpFrontiers returns the partial-order relation between two frontier
// sets, converting through their version vectors.
func (d *AppDag) CmpFrontiers(a, b coredoc.Frontiers) (coredoc.CausalOrder, error) {
	if a.Equal(b) {
		return coredoc.OrderEqual, nil
	}
	va, err := d.FrontiersToVV(a)
	if err != nil {
		return 0, err
	}
	vb, err := d.FrontiersToVV(b)
	if err != nil {
		return 0, err
	}
	return va.Compare(vb), nil
}

// FindCommonAncestors returns the maximal frontier set reachable from
// both a and b. Because each peer contributes a single, totally ordered
// chain of ops (the only branching in this graph is across peers), the
// common ancestor's version vector is exactly the componentwise minimum
// of a's and b's version vectors — this lets common-ancestor search
// reuse the same vv machinery instead of a separate graph walk.
func (d *AppDag) FindCommonAncestors(a, b coredoc.Frontiers) (coredoc.Frontiers, error) {
	va, err := d.FrontiersToVV(a)
	if err != nil {
		return nil, err
	}
	vb, err := d.FrontiersToVV(b)
	if err != nil {
		return nil, err
	}
	return d.VVToFrontiers(va.Intersect(vb))
}

// VersionVectorDiff is the pair of spans needed to move a checkout from
// one version to another: Left must be retreated (un-applied), Right
// must be forwarded (applied).
type VersionVectorDiff struct {
	Left  []coredoc.IDSpan
	Right []coredoc.IDSpan
}

// FindPath returns the spans separating two versions, used by the
// tracker to retreat/forward a checkout from "from" to "to".
func (d *AppDag) FindPath(from, to coredoc.VersionVector) VersionVectorDiff {
	left, right := from.Diff(to)
	return VersionVectorDiff{Left: left, Right: right}
}

// CausalStep is one slice of a node to visit while walking from a known
// version across a set of additional spans, in an order that respects
// causal dependencies (a node's deps are always visited before it).
type CausalStep struct {
	Span    coredoc.IDSpan
	Lamport coredoc.Lamport
}

// IterCausal returns the slices of diffSpans in dependency-respecting,
// Lamport-ascending order, suitable for driving a tracker's forward walk
// from the version "from" across exactly the ids in diffSpans. diffSpans
// is assumed to describe ids causally after "from" (the common case: a
// diff computed from an ancestor frontier to a descendant one).
func (d *AppDag) IterCausal(from coredoc.VersionVector, diffSpans []coredoc.IDSpan) ([]CausalStep, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var steps []CausalStep
	for _, span := range diffSpans {
		cursor := span.CounterStart
		for cursor < span.CounterEnd {
			n := d.nodeContainingLocked(coredoc.ID{Peer: span.Peer, Counter: cursor})
			if n == nil {
				return nil, errtype.NewFrontiersNotIncluded("id %d@%d not present in dag", span.Peer, cursor)
			}
			end := min(span.CounterEnd, n.CounterEnd())
			steps = append(steps, CausalStep{
				Span:    coredoc.IDSpan{Peer: span.Peer, CounterStart: cursor, CounterEnd: end},
				Lamport: n.LamportAt(cursor),
			})
			cursor = end
		}
	}
	sort.SliceStable(steps, func(i, j int) bool {
		if steps[i].Lamport != steps[j].Lamport {
			return steps[i].Lamport < steps[j].Lamport
		}
		return steps[i].Span.Peer < steps[j].Span.Peer
	})
	return steps, nil
}
