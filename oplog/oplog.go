// Package oplog implements Oplog/DocState orchestration (spec.md §4.6):
// local-change ingest applied immediately to container state, remote
// import bucketed into causally-ready and causally-blocked changes and
// retried to a fixed point, and per-container diff events for remote
// batches.
package oplog

import (
	"sort"
	"sync"
	"time"

	"cloudeng.io/errors"

	"github.com/cshekharsharma/coredoc"
	"github.com/cshekharsharma/coredoc/change"
	"github.com/cshekharsharma/coredoc/dag"
	"github.com/cshekharsharma/coredoc/store"
)

// Oplog owns the arenas, the causal DAG, the durable change store, and
// the in-memory document state, serialised behind a single mutex per
// spec.md §5's "logical mutex over the document's oplog and state".
type Oplog struct {
	mu sync.Mutex

	arenas *change.Arenas
	dag    *dag.AppDag
	store  *store.ChangeStore
	doc    *DocState

	pendingRemote []*change.Change
}

// New returns an empty Oplog. flushThreshold is the number of pending
// changes ChangeStore batches before flushing a new SSTable run.
func New(arenas *change.Arenas, flushThreshold int) *Oplog {
	return &Oplog{
		arenas: arenas,
		dag:    dag.New(),
		store:  store.NewChangeStore(arenas, flushThreshold),
		doc:    NewDocState(arenas),
	}
}

// DocState returns the oplog's document state.
func (o *Oplog) DocState() *DocState { return o.doc }

// ImportLocalChange assigns the next id and lamport for peer, applies
// every op immediately to its target container, and durably records the
// change (spec.md §4.6 "on import_local_change: compute lamport if
// missing; assign id; append; persist a block when pending batch reaches
// threshold").
func (o *Oplog) ImportLocalChange(peer coredoc.PeerID, ops []change.Operation, deps coredoc.Frontiers, msg string) (*change.Change, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	counterStart := o.dag.VV().Get(peer)

	depLamports := make([]coredoc.Lamport, 0, len(deps))
	for _, d := range deps {
		l, err := o.dag.GetLamport(d)
		if err != nil {
			return nil, err
		}
		depLamports = append(depLamports, l)
	}
	lamportStart := coredoc.NextLamport(depLamports...)

	c := &change.Change{
		IDStart:       coredoc.ID{Peer: peer, Counter: counterStart},
		LamportStart:  lamportStart,
		Deps:          deps,
		Timestamp:     time.Now(),
		CommitMessage: msg,
		Ops:           ops,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	opCtxVV, err := o.dag.FrontiersToVV(deps)
	if err != nil {
		return nil, err
	}

	counter := counterStart
	lamport := lamportStart
	for _, op := range ops {
		id := coredoc.ID{Peer: peer, Counter: counter}
		if err := o.doc.ApplyLocalOp(op.ContainerIdx, id, lamport, opCtxVV, op); err != nil {
			return nil, err
		}
		o.doc.syncChildLinks(op.ContainerIdx)
		n := coredoc.Counter(op.Len())
		opCtxVV = opCtxVV.ExtendWithSpan(coredoc.IDSpan{Peer: peer, CounterStart: counter, CounterEnd: counter + n})
		counter += n
		lamport += coredoc.Lamport(n)
	}

	if err := o.dag.HandleNewChange(c); err != nil {
		return nil, err
	}
	if err := o.store.Append(c); err != nil {
		return nil, err
	}
	o.doc.vv = o.dag.VV()
	o.doc.frontiers = o.dag.Frontiers()
	return c, nil
}

// ImportRemote inserts changes into the oplog, bucketing them into
// causally-ready and causally-blocked sets and iterating until a fixed
// point (spec.md §4.6). Malformed changes are collected in the returned
// error via cloudeng.io/errors.M rather than aborting the whole batch —
// changes merely waiting on not-yet-arrived deps are not errors and are
// simply retained in the pending set for a future call.
func (o *Oplog) ImportRemote(changes []*change.Change) ([]Event, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	pending := append(append([]*change.Change{}, o.pendingRemote...), changes...)
	var errs errors.M
	var events []Event

	for {
		progressed := false
		var stillPending []*change.Change
		for _, c := range pending {
			if err := c.Validate(); err != nil {
				errs.Append(err)
				continue
			}
			ready, duplicate := o.depsReady(c)
			if duplicate {
				continue
			}
			if !ready {
				stillPending = append(stillPending, c)
				continue
			}
			ev, err := o.applyRemoteChange(c)
			if err != nil {
				errs.Append(err)
				continue
			}
			progressed = true
			events = append(events, ev)
		}
		pending = stillPending
		if !progressed {
			break
		}
	}

	o.pendingRemote = pending
	return events, errs.Err()
}

// depsReady reports whether c's own counter range directly extends its
// peer's currently-known counter (no gap) and every dependency is
// already covered. duplicate reports a change whose ids are already
// known, to be silently dropped rather than retried forever.
func (o *Oplog) depsReady(c *change.Change) (ready, duplicate bool) {
	vv := o.dag.VV()
	cur := vv.Get(c.IDStart.Peer)
	switch {
	case c.IDStart.Counter < cur:
		return false, true
	case c.IDStart.Counter > cur:
		return false, false
	}
	for _, d := range c.Deps {
		if !vv.Includes(d) {
			return false, false
		}
	}
	return true, false
}

// applyRemoteChange records c's ops into their target containers, then
// computes and applies the resulting diff for each touched container
// between the document's version just before and just after c.
func (o *Oplog) applyRemoteChange(c *change.Change) (Event, error) {
	fromVV := o.dag.VV()
	fromFrontiers := o.dag.Frontiers()

	opCtxVV, err := o.dag.FrontiersToVV(c.Deps)
	if err != nil {
		return Event{}, err
	}

	touchedOrder := []int{}
	touched := map[int]bool{}
	counter := c.IDStart.Counter
	lamport := c.LamportStart
	for _, op := range c.Ops {
		id := coredoc.ID{Peer: c.IDStart.Peer, Counter: counter}
		if err := o.doc.ApplyLocalOp(op.ContainerIdx, id, lamport, opCtxVV, op); err != nil {
			return Event{}, err
		}
		if !touched[op.ContainerIdx] {
			touched[op.ContainerIdx] = true
			touchedOrder = append(touchedOrder, op.ContainerIdx)
		}
		n := coredoc.Counter(op.Len())
		opCtxVV = opCtxVV.ExtendWithSpan(coredoc.IDSpan{Peer: c.IDStart.Peer, CounterStart: counter, CounterEnd: counter + n})
		counter += n
		lamport += coredoc.Lamport(n)
	}

	if err := o.dag.HandleNewChange(c); err != nil {
		return Event{}, err
	}
	if err := o.store.Append(c); err != nil {
		return Event{}, err
	}
	toVV := o.dag.VV()
	o.doc.vv = toVV
	o.doc.frontiers = o.dag.Frontiers()

	ev := Event{From: fromFrontiers, To: o.doc.frontiers}
	for _, idx := range touchedOrder {
		o.doc.syncChildLinks(idx)
	}
	for _, idx := range touchedOrder {
		cs := o.doc.Container(idx)
		observable := cs.ApplyDiffAndConvert(cs.Diff(fromVV, toVV))
		ev.Diffs = append(ev.Diffs, ContainerDiff{ContainerIdx: idx, Path: o.doc.Path(idx), Diff: observable})
	}
	// Depth ordering (spec.md §4.5): a parent's diff must precede its
	// children's so "bring back" repopulation sees the hierarchy in
	// dependency order.
	sort.SliceStable(ev.Diffs, func(i, j int) bool {
		return len(ev.Diffs[i].Path) < len(ev.Diffs[j].Path)
	})
	return ev, nil
}
