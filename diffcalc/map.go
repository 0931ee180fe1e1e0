// Package diffcalc implements the per-container diff calculators (spec.md
// §4.5): map (last-writer-wins), list/text (tracker-delegated), and tree
// (move records + fractional-index ordering).
package diffcalc

import (
	"sort"

	"github.com/cshekharsharma/coredoc"
	"github.com/cshekharsharma/coredoc/change"
)

// MapWrite is one recorded write to a map key.
type MapWrite struct {
	ID           coredoc.ID
	Lamport      coredoc.Lamport
	ValueIndex   int
	ValuePresent bool
}

func (w MapWrite) losesTo(other MapWrite) bool {
	return coredoc.CompareCausal(w.Lamport, w.ID.Peer, other.Lamport, other.ID.Peer) < 0
}

// MapUpdate describes one key's winning write changing between versions.
type MapUpdate struct {
	Key          string
	ValueIndex   int
	ValuePresent bool
}

// MapDelta is the internal diff emitted for a map container.
type MapDelta struct {
	Updated []MapUpdate // sorted by Key for deterministic event ordering
}

// MapCalculator tracks every write ever seen for a map container and
// answers "who's the LWW winner visible at vv" queries. Grounded on the
// teacher's GCounter.Merge max-take idiom, generalised from per-peer
// counts to (lamport, peer)-maximal writes (DESIGN.md).
type MapCalculator struct {
	arenas *change.Arenas
	writes map[string][]MapWrite
}

// NewMapCalculator returns an empty map calculator.
func NewMapCalculator(arenas *change.Arenas) *MapCalculator {
	return &MapCalculator{arenas: arenas, writes: make(map[string][]MapWrite)}
}

// ApplyChange records one MapSet operation's write.
func (c *MapCalculator) ApplyChange(id coredoc.ID, lamport coredoc.Lamport, op change.MapSetContent) {
	c.writes[op.Key] = append(c.writes[op.Key], MapWrite{
		ID: id, Lamport: lamport, ValueIndex: op.ValueIndex, ValuePresent: op.ValuePresent,
	})
}

// winner returns the (lamport, peer)-maximal write visible at vv, if any.
func (c *MapCalculator) winner(key string, vv coredoc.VersionVector) (MapWrite, bool) {
	var best MapWrite
	found := false
	for _, w := range c.writes[key] {
		if !vv.Includes(w.ID) {
			continue
		}
		if !found || best.losesTo(w) {
			best = w
			found = true
		}
	}
	return best, found
}

// CalculateDiff returns the keys whose LWW winner differs between from
// and to.
func (c *MapCalculator) CalculateDiff(from, to coredoc.VersionVector) MapDelta {
	keys := make([]string, 0, len(c.writes))
	for k := range c.writes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out MapDelta
	for _, k := range keys {
		wFrom, okFrom := c.winner(k, from)
		wTo, okTo := c.winner(k, to)
		if okFrom == okTo && (!okTo || (wFrom.ID == wTo.ID)) {
			continue
		}
		if !okTo {
			// Key had no visible write at `to`; nothing to report (the
			// key simply doesn't exist there — callers treat absence as
			// "not present", not a tombstone update).
			continue
		}
		out.Updated = append(out.Updated, MapUpdate{Key: k, ValueIndex: wTo.ValueIndex, ValuePresent: wTo.ValuePresent})
	}
	return out
}

// MapSnapshot captures, per key, how many writes had been recorded so a
// transaction can be rolled back to exactly this point.
type MapSnapshot struct {
	lens map[string]int
}

// Snapshot captures the calculator's current write counts.
func (c *MapCalculator) Snapshot() MapSnapshot {
	lens := make(map[string]int, len(c.writes))
	for k, ws := range c.writes {
		lens[k] = len(ws)
	}
	return MapSnapshot{lens: lens}
}

// Restore truncates every key's write log back to its snapshotted
// length, discarding writes recorded since.
func (c *MapCalculator) Restore(s MapSnapshot) {
	for k, ws := range c.writes {
		if n, ok := s.lens[k]; ok {
			c.writes[k] = ws[:n]
		} else {
			delete(c.writes, k)
		}
	}
}

// Keys returns every key ever written to, sorted.
func (c *MapCalculator) Keys() []string {
	keys := make([]string, 0, len(c.writes))
	for k := range c.writes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Value returns the winning value at vv for key, resolved through the
// value arena.
func (c *MapCalculator) Value(key string, vv coredoc.VersionVector) (any, bool) {
	w, ok := c.winner(key, vv)
	if !ok || !w.ValuePresent {
		return nil, false
	}
	vals := c.arenas.Values.Slice(w.ValueIndex, 1)
	return vals[0], true
}
