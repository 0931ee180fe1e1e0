package diffcalc

import (
	"sort"

	"github.com/cshekharsharma/coredoc"
	"github.com/cshekharsharma/coredoc/change"
)

// TreeOpKind narrows change.OpKind to the four tree op variants, kept as
// its own type so TreeCalculator doesn't need to import the op-content
// switch logic its caller already did.
type TreeOpKind uint8

const (
	TreeOpCreate TreeOpKind = iota
	TreeOpMove
	TreeOpDelete
	TreeOpEmptyTrash
)

// TreeMove is one recorded tree operation targeting a node.
type TreeMove struct {
	ID           coredoc.ID
	Lamport      coredoc.Lamport
	Kind         TreeOpKind
	TargetTreeID string
	ParentTreeID string
	HasParent    bool
	Position     []byte
	HasPosition  bool
}

func (m TreeMove) losesTo(other TreeMove) bool {
	return coredoc.CompareCausal(m.Lamport, m.ID.Peer, other.Lamport, other.ID.Peer) < 0
}

// TreeNodeDiff is one node's create/move/delete external diff.
type TreeNodeDiff struct {
	TargetTreeID string
	Deleted      bool
	ParentTreeID string
	HasParent    bool
	Position     []byte
}

// TreeDelta is the internal diff emitted for a tree container: node
// diffs ordered parent-before-child (spec.md §4.5 depth ordering).
type TreeDelta struct {
	Nodes []TreeNodeDiff
}

// TreeCalculator maintains, per tree node, every move/create/delete ever
// applied to it and resolves the (lamport, peer)-maximal visible move —
// the deterministic conflict rule spec.md §9's open question on
// concurrent-move cycles asks implementers to choose (DESIGN.md records
// this choice).
type TreeCalculator struct {
	arenas *change.Arenas
	moves  map[string][]TreeMove // by TargetTreeID
	order  []string              // first-seen order, for deterministic iteration
	seen   map[string]bool
}

// NewTreeCalculator returns an empty tree calculator.
func NewTreeCalculator(arenas *change.Arenas) *TreeCalculator {
	return &TreeCalculator{arenas: arenas, moves: make(map[string][]TreeMove), seen: make(map[string]bool)}
}

// ApplyOp records one tree operation.
func (c *TreeCalculator) ApplyOp(id coredoc.ID, lamport coredoc.Lamport, kind TreeOpKind, op change.TreeOpContent) {
	if !c.seen[op.TargetTreeID] {
		c.seen[op.TargetTreeID] = true
		c.order = append(c.order, op.TargetTreeID)
	}
	c.moves[op.TargetTreeID] = append(c.moves[op.TargetTreeID], TreeMove{
		ID: id, Lamport: lamport, Kind: kind,
		TargetTreeID: op.TargetTreeID, ParentTreeID: op.ParentTreeID, HasParent: op.HasParent,
		Position: op.Position, HasPosition: op.HasPosition,
	})
}

// winner returns the winning move for node visible at vv.
func (c *TreeCalculator) winner(node string, vv coredoc.VersionVector) (TreeMove, bool) {
	var best TreeMove
	found := false
	for _, m := range c.moves[node] {
		if m.Kind == TreeOpEmptyTrash {
			continue // global op, not a per-node state transition
		}
		if !vv.Includes(m.ID) {
			continue
		}
		if !found || best.losesTo(m) {
			best = m
			found = true
		}
	}
	return best, found
}

func alive(m TreeMove, ok bool) bool { return ok && m.Kind != TreeOpDelete }

// depth returns the node's ancestor-chain length at vv, for parent-
// before-child diff ordering. Cycles (which spec.md treats as a
// TreeCycle error at mutation time) are guarded against with a visited
// set so a malformed chain can't loop forever here.
func (c *TreeCalculator) depth(node string, vv coredoc.VersionVector) int {
	visited := map[string]bool{}
	d := 0
	cur := node
	for {
		if visited[cur] {
			return d
		}
		visited[cur] = true
		m, ok := c.winner(cur, vv)
		if !ok || !m.HasParent || m.ParentTreeID == "" {
			return d
		}
		cur = m.ParentTreeID
		d++
	}
}

// TreeSnapshot captures how many moves had been recorded per node, and
// how many nodes were known, so a transaction can be rolled back.
type TreeSnapshot struct {
	lens     map[string]int
	orderLen int
}

// Snapshot captures the calculator's current state.
func (c *TreeCalculator) Snapshot() TreeSnapshot {
	lens := make(map[string]int, len(c.moves))
	for k, ms := range c.moves {
		lens[k] = len(ms)
	}
	return TreeSnapshot{lens: lens, orderLen: len(c.order)}
}

// Restore undoes every move and every newly-seen node recorded since the
// snapshot.
func (c *TreeCalculator) Restore(s TreeSnapshot) {
	for k, ms := range c.moves {
		if n, ok := s.lens[k]; ok {
			c.moves[k] = ms[:n]
		} else {
			delete(c.moves, k)
		}
	}
	for _, id := range c.order[s.orderLen:] {
		delete(c.seen, id)
	}
	c.order = c.order[:s.orderLen]
}

// TreeNodeInfo is one node's materialised (parent, position) state.
type TreeNodeInfo struct {
	TargetTreeID string
	ParentTreeID string
	HasParent    bool
	Position     []byte
}

// AliveNodes returns every node alive at vv and its current winning
// (parent, position) state, in first-seen order.
func (c *TreeCalculator) AliveNodes(vv coredoc.VersionVector) []TreeNodeInfo {
	var out []TreeNodeInfo
	for _, id := range c.order {
		w, ok := c.winner(id, vv)
		if !alive(w, ok) {
			continue
		}
		out = append(out, TreeNodeInfo{TargetTreeID: id, ParentTreeID: w.ParentTreeID, HasParent: w.HasParent, Position: w.Position})
	}
	return out
}

// CalculateDiff returns, for every node alive at `to` whose (parent,
// position) changed since `from`, and every node alive at `from` but not
// `to`, the corresponding create/move/delete diffs, ordered so a
// parent's diff always precedes its children's (depth ascending at
// `to`).
func (c *TreeCalculator) CalculateDiff(from, to coredoc.VersionVector) TreeDelta {
	var nodes []TreeNodeDiff
	for _, id := range c.order {
		wFrom, okFrom := c.winner(id, from)
		wTo, okTo := c.winner(id, to)
		aliveFrom := alive(wFrom, okFrom)
		aliveTo := alive(wTo, okTo)

		switch {
		case !aliveFrom && aliveTo:
			nodes = append(nodes, TreeNodeDiff{TargetTreeID: id, ParentTreeID: wTo.ParentTreeID, HasParent: wTo.HasParent, Position: wTo.Position})
		case aliveFrom && aliveTo:
			if wFrom.ParentTreeID != wTo.ParentTreeID || wFrom.HasParent != wTo.HasParent || string(wFrom.Position) != string(wTo.Position) {
				nodes = append(nodes, TreeNodeDiff{TargetTreeID: id, ParentTreeID: wTo.ParentTreeID, HasParent: wTo.HasParent, Position: wTo.Position})
			}
		case aliveFrom && !aliveTo:
			nodes = append(nodes, TreeNodeDiff{TargetTreeID: id, Deleted: true})
		}
	}

	sort.SliceStable(nodes, func(i, j int) bool {
		return c.depth(nodes[i].TargetTreeID, to) < c.depth(nodes[j].TargetTreeID, to)
	})
	return TreeDelta{Nodes: nodes}
}
