// Package tracker implements the sequence/rich-text CRDT core (spec.md
// §4.4): a rope of element runs, causal insert/delete application with
// deterministic sibling ordering, and from/to diff emission.
//
// Liveness at any version is computed as a pure function of that
// version's VersionVector rather than by mutating an "active" flag per
// run during retreat/forward: since every run and delete record carries
// its own global id range, "is this run visible at vv" is simply
// "vv covers the run's id range and no covering delete's id range".
// This gives the same idempotent, commutative checkout behaviour spec.md
// asks for without a separate mutable checkout pass.
package tracker

import (
	"sort"

	"github.com/cshekharsharma/coredoc"
)

// Run is one contiguous, same-creator span of rope elements, or a
// zero-width style anchor.
type Run struct {
	ID        coredoc.ID
	Lamport   coredoc.Lamport
	Length    int
	OriginPos int // the Position the creating op recorded, for sibling ordering

	IsStyleMarker  bool
	StyleIsEnd     bool
	StyleKey       string
	StyleValue     any
	StartInclusive bool
	EndInclusive   bool

	// ArenaStart is the offset into the owning container's text or value
	// arena where this run's content begins; it shifts in lockstep with
	// ID.Counter when a run is split.
	ArenaStart int

	CoveringDeletes []coredoc.ID
}

func (r *Run) end() coredoc.Counter { return r.ID.Counter + coredoc.Counter(r.Length) }

// insertActive reports whether vv covers this run's own id range. A
// style marker's Length is always 0 (it carries no content), but like
// every other op it still consumes exactly one counter slot for its own
// id, so it is treated as occupying a single-counter span rather than
// the empty one r.end() would imply.
func (r *Run) insertActive(vv coredoc.VersionVector) bool {
	n := coredoc.Counter(r.Length)
	if n == 0 {
		n = 1
	}
	return vv.Get(r.ID.Peer) >= r.ID.Counter+n
}

// deleteRecord is one delete operation's own identity and target range.
type deleteRecord struct {
	ID          coredoc.ID // the delete op's own assigned id range start
	Length      int        // elements consumed by the delete op itself
	TargetStart coredoc.ID
	Reversed    bool
}

func (d *deleteRecord) active(vv coredoc.VersionVector) bool {
	return vv.Get(d.ID.Peer) >= d.ID.Counter+coredoc.Counter(d.Length)
}

// Rope holds the ordered sequence of runs plus every delete record ever
// applied, in application order. Position in the slice is final and
// stable; liveness at any given version is computed on demand.
type Rope struct {
	runs    []*Run
	deletes map[coredoc.ID]*deleteRecord
}

// New returns an empty rope.
func New() *Rope {
	return &Rope{deletes: make(map[coredoc.ID]*deleteRecord)}
}

// live reports whether run is visible at vv: its insert is covered and no
// covering delete is covered.
func (t *Rope) live(r *Run, vv coredoc.VersionVector) bool {
	if r.IsStyleMarker {
		return false
	}
	if !r.insertActive(vv) {
		return false
	}
	for _, did := range r.CoveringDeletes {
		if d, ok := t.deletes[did]; ok && d.active(vv) {
			return false
		}
	}
	return true
}

// findInsertionIndex locates where a run created at `position` (counted
// among elements live at vv) should land, splitting whatever existing
// run straddles that position, then applies the (lamport desc, peer
// desc) tie-break among any immediately-following runs that share the
// same OriginPos (spec.md §4.4 "order by lamport desc, peer desc").
func (t *Rope) findInsertionIndex(position int, lamport coredoc.Lamport, peer coredoc.PeerID, vv coredoc.VersionVector) int {
	idx := t.locateBoundary(position, vv)
	for idx < len(t.runs) && t.runs[idx].OriginPos == position && !t.runs[idx].IsStyleMarker {
		if coredoc.CompareCausal(t.runs[idx].Lamport, t.runs[idx].ID.Peer, lamport, peer) <= 0 {
			break
		}
		idx++
	}
	return idx
}

// locateBoundary returns the slice index such that exactly `position`
// live elements (at vv) precede it, splitting a run in two when position
// falls inside it rather than on a run boundary. The seen==position
// check runs before the liveness skip so that a run not yet visible at
// vv (a concurrent sibling insert) is still examined by the tie-break
// step in findInsertionIndex instead of being silently stepped over.
func (t *Rope) locateBoundary(position int, vv coredoc.VersionVector) int {
	seen := 0
	idx := 0
	for idx < len(t.runs) {
		if seen == position {
			break
		}
		r := t.runs[idx]
		if r.IsStyleMarker || !t.live(r, vv) {
			idx++
			continue
		}
		if seen+r.Length <= position {
			seen += r.Length
			idx++
			continue
		}
		offset := coredoc.Counter(position - seen)
		t.splitRunRange(idx, r.ID.Counter, r.ID.Counter+offset)
		idx++ // skip past the now-shorter prefix piece
		break
	}
	return idx
}

// InsertElements inserts a new element run of length elemLen at the
// given causal id/lamport/position. arenaStart is the offset into the
// container's text/value arena where the run's content was interned.
func (t *Rope) InsertElements(id coredoc.ID, lamport coredoc.Lamport, length, position, arenaStart int, vv coredoc.VersionVector) {
	idx := t.findInsertionIndex(position, lamport, id.Peer, vv)
	run := &Run{ID: id, Lamport: lamport, Length: length, OriginPos: position, ArenaStart: arenaStart}
	t.insertAt(idx, run)
}

// InsertStyleAnchor inserts a zero-width style marker at position
// (spec.md: "start-anchor goes at start, end-anchor at end+1").
func (t *Rope) InsertStyleAnchor(id coredoc.ID, lamport coredoc.Lamport, position int, isEnd bool, key string, value any, startIncl, endIncl bool, vv coredoc.VersionVector) {
	idx := t.findInsertionIndex(position, lamport, id.Peer, vv)
	run := &Run{
		ID: id, Lamport: lamport, Length: 0, OriginPos: position,
		IsStyleMarker: true, StyleIsEnd: isEnd, StyleKey: key, StyleValue: value,
		StartInclusive: startIncl, EndInclusive: endIncl,
	}
	t.insertAt(idx, run)
}

func (t *Rope) insertAt(idx int, run *Run) {
	t.runs = append(t.runs, nil)
	copy(t.runs[idx+1:], t.runs[idx:])
	t.runs[idx] = run
}

// Delete records a delete op targeting [targetStart, targetStart+length)
// of one creator's elements, splitting runs as needed so the deleted
// sub-range becomes its own run(s).
func (t *Rope) Delete(id coredoc.ID, targetStart coredoc.ID, length int, reversed bool) {
	rec := &deleteRecord{ID: id, Length: length, TargetStart: targetStart, Reversed: reversed}
	t.deletes[id] = rec

	remainingStart := targetStart.Counter
	remainingEnd := targetStart.Counter + coredoc.Counter(length)
	for remainingStart < remainingEnd {
		idx, ok := t.runContaining(targetStart.Peer, remainingStart)
		if !ok {
			break
		}
		run := t.runs[idx]
		lo := remainingStart
		hi := run.end()
		if hi > remainingEnd {
			hi = remainingEnd
		}
		t.splitRunRange(idx, lo, hi)
		idx, _ = t.runContaining(targetStart.Peer, lo)
		t.runs[idx].CoveringDeletes = append(t.runs[idx].CoveringDeletes, id)
		remainingStart = hi
	}
}

// runContaining returns the index of the run covering (peer, counter).
func (t *Rope) runContaining(peer coredoc.PeerID, counter coredoc.Counter) (int, bool) {
	for i, r := range t.runs {
		if r.IsStyleMarker {
			continue
		}
		if r.ID.Peer == peer && counter >= r.ID.Counter && counter < r.end() {
			return i, true
		}
	}
	return 0, false
}

// splitRunRange splits the run at idx so that [lo, hi) becomes its own
// run, trimming or duplicating the surrounding remainder.
func (t *Rope) splitRunRange(idx int, lo, hi coredoc.Counter) {
	run := t.runs[idx]
	if run.ID.Counter == lo && run.end() == hi {
		return
	}
	dup := func(src []coredoc.ID) []coredoc.ID {
		if len(src) == 0 {
			return nil
		}
		return append([]coredoc.ID{}, src...)
	}

	var pieces []*Run
	if run.ID.Counter < lo {
		off := lo - run.ID.Counter
		pieces = append(pieces, &Run{ID: run.ID, Lamport: run.Lamport, Length: int(off), OriginPos: run.OriginPos, ArenaStart: run.ArenaStart, CoveringDeletes: dup(run.CoveringDeletes)})
	}
	off := lo - run.ID.Counter
	pieces = append(pieces, &Run{
		ID: coredoc.ID{Peer: run.ID.Peer, Counter: lo}, Lamport: run.Lamport + coredoc.Lamport(off),
		Length: int(hi - lo), OriginPos: run.OriginPos, ArenaStart: run.ArenaStart + int(off),
		CoveringDeletes: dup(run.CoveringDeletes),
	})
	if run.end() > hi {
		off2 := hi - run.ID.Counter
		pieces = append(pieces, &Run{
			ID: coredoc.ID{Peer: run.ID.Peer, Counter: hi}, Lamport: run.Lamport + coredoc.Lamport(off2),
			Length: int(run.end() - hi), OriginPos: run.OriginPos, ArenaStart: run.ArenaStart + int(off2),
			CoveringDeletes: dup(run.CoveringDeletes),
		})
	}
	out := make([]*Run, 0, len(t.runs)-1+len(pieces))
	out = append(out, t.runs[:idx]...)
	out = append(out, pieces...)
	out = append(out, t.runs[idx+1:]...)
	t.runs = out
}

// Snapshot is a shallow capture of a rope's runs and delete records,
// cheap to take because splitRunRange always replaces the runs slice
// rather than mutating Run values in place.
type Snapshot struct {
	runs    []*Run
	deletes map[coredoc.ID]*deleteRecord
}

// Snapshot captures the rope's current state.
func (t *Rope) Snapshot() Snapshot {
	runs := append([]*Run{}, t.runs...)
	deletes := make(map[coredoc.ID]*deleteRecord, len(t.deletes))
	for k, v := range t.deletes {
		deletes[k] = v
	}
	return Snapshot{runs: runs, deletes: deletes}
}

// Restore replaces the rope's state with a prior snapshot.
func (t *Rope) Restore(s Snapshot) {
	t.runs = s.runs
	t.deletes = s.deletes
}

// Runs returns the rope's runs in final order (read-only use).
func (t *Rope) Runs() []*Run { return t.runs }

// resolveStyles walks the rope in order and, for every content run live at
// vv, records the style attrs active over it: a per-key stack of anchor
// values, pushed by a start anchor and popped by its matching end anchor,
// considering only anchors whose own insert is covered by vv (spec.md
// §4.4 "resolve style anchors to (key, value) interval operations"). An
// explicit "empty override" anchor (StyleValue == nil) still pushes onto
// the stack and so still shadows an enclosing mark, per spec.md's "Empty
// override removes a mark".
func (t *Rope) resolveStyles(vv coredoc.VersionVector) map[*Run]coredoc.Attrs {
	stacks := make(map[string][]any)
	out := make(map[*Run]coredoc.Attrs)
	for _, r := range t.runs {
		if r.IsStyleMarker {
			if !r.insertActive(vv) {
				continue
			}
			if r.StyleIsEnd {
				if st := stacks[r.StyleKey]; len(st) > 0 {
					stacks[r.StyleKey] = st[:len(st)-1]
				}
			} else {
				stacks[r.StyleKey] = append(stacks[r.StyleKey], r.StyleValue)
			}
			continue
		}
		if !t.live(r, vv) {
			continue
		}
		var attrs coredoc.StyleAttrs
		for key, st := range stacks {
			if len(st) > 0 {
				if attrs == nil {
					attrs = make(coredoc.StyleAttrs)
				}
				attrs[key] = st[len(st)-1]
			}
		}
		if len(attrs) > 0 {
			out[r] = attrs
		}
	}
	return out
}

// SortedByLamport is a helper for tests/debugging; not used by the
// engine itself.
func (t *Rope) SortedByLamport() []*Run {
	out := append([]*Run{}, t.runs...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Lamport < out[j].Lamport })
	return out
}
