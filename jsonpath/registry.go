package jsonpath

import (
	"sync"

	"github.com/cshekharsharma/coredoc"
	"github.com/cshekharsharma/coredoc/diffcalc"
	"github.com/cshekharsharma/coredoc/oplog"
	"github.com/cshekharsharma/coredoc/state"
)

// Callback is invoked when a subscription's query might be affected by
// an event. It carries no result: per spec.md §4.7 subscribers are
// expected to re-evaluate the query themselves if they need the value,
// keeping the notification itself cheap.
type Callback func()

type subscription struct {
	matcher *Matcher
	cb      Callback
	lastTo  coredoc.Frontiers
	hasLast bool
}

// Registry holds every live JSONPath subscription for one document and
// dispatches events to the ones whose query might be affected.
type Registry struct {
	mu     sync.Mutex
	subs   map[int]*subscription
	nextID int
}

// NewRegistry returns an empty subscription registry.
func NewRegistry() *Registry {
	return &Registry{subs: make(map[int]*subscription)}
}

// Subscribe compiles query and registers cb to fire whenever a
// dispatched event might affect it.
func (r *Registry) Subscribe(query string, cb Callback) (int, error) {
	q, err := Compile(query)
	if err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	r.subs[id] = &subscription{matcher: NewMatcher(q), cb: cb}
	return id, nil
}

// Unsubscribe removes a previously registered subscription.
func (r *Registry) Unsubscribe(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subs, id)
}

// Dispatch checks every subscription against ev's container diffs and
// fires the callback for each one that might be affected. Subscriptions
// are deduplicated within a single event: a subscription whose last
// fired `to` frontiers already equals ev.To is skipped, per spec.md
// §4.7 "callbacks are deduplicated within a single event (same `to`
// frontiers)".
func (r *Registry) Dispatch(ev *oplog.Event) {
	r.mu.Lock()
	subs := make([]*subscription, 0, len(r.subs))
	for _, s := range r.subs {
		subs = append(subs, s)
	}
	r.mu.Unlock()

	for _, s := range subs {
		if s.hasLast && s.lastTo.Equal(ev.To) {
			continue
		}
		if subscriptionFires(s.matcher, ev) {
			s.lastTo = ev.To
			s.hasLast = true
			s.cb()
		}
	}
}

func subscriptionFires(m *Matcher, ev *oplog.Event) bool {
	for _, diff := range ev.Diffs {
		base := ElemsFromContainerPath(diff.Path)
		if m.MayMatch(base) {
			return true
		}
		if fires := diffFires(m, base, diff.Diff); fires {
			return true
		}
	}
	return false
}

// diffFires applies the container-kind-specific path extensions from
// spec.md §4.7: a map diff extends the base path with each updated key;
// a sequence diff (list or rich text) extends it with an unknown
// position, since pinpointing which indices moved isn't worth the
// bookkeeping for a conservative matcher; a tree diff extends it with
// each affected node's id.
func diffFires(m *Matcher, base []PathElem, d any) bool {
	switch v := d.(type) {
	case state.MapObservableDiff:
		for _, u := range v.Updated {
			if m.MayMatch(extend(base, KeyElem(u.Key))) {
				return true
			}
		}
	case *coredoc.Delta:
		return m.MayMatch(extend(base, UnknownSeqElem()))
	case diffcalc.TreeDelta:
		for _, n := range v.Nodes {
			if m.MayMatch(extend(base, NodeElem(n.TargetTreeID))) {
				return true
			}
		}
	}
	return false
}

func extend(base []PathElem, elem PathElem) []PathElem {
	out := make([]PathElem, len(base), len(base)+1)
	copy(out, base)
	return append(out, elem)
}
