package tracker

import (
	"reflect"

	"github.com/cshekharsharma/coredoc"
	"github.com/cshekharsharma/coredoc/change"
)

// Kind distinguishes the two sequence containers a Tracker can back.
type Kind int

const (
	KindList Kind = iota
	KindText
)

// Tracker is the CRDT core behind list and text containers: a Rope of
// element runs plus the arenas needed to resolve a run's content back
// into real values or text.
type Tracker struct {
	kind   Kind
	rope   *Rope
	arenas *change.Arenas
}

// NewTracker returns an empty tracker backing a container of the given
// kind.
func NewTracker(kind Kind, arenas *change.Arenas) *Tracker {
	return &Tracker{kind: kind, rope: New(), arenas: arenas}
}

// ApplyInsert applies a sequence-insert operation. For list containers
// arenaStart indexes change.Arenas.Values; for text containers it
// indexes change.Arenas.Text (measured in code points).
func (t *Tracker) ApplyInsert(id coredoc.ID, lamport coredoc.Lamport, position, length, arenaStart int, vv coredoc.VersionVector) {
	t.rope.InsertElements(id, lamport, length, position, arenaStart, vv)
}

// ApplyStyleStart applies a rich-text style-start anchor at position.
func (t *Tracker) ApplyStyleStart(id coredoc.ID, lamport coredoc.Lamport, position int, key string, value any, startIncl bool, vv coredoc.VersionVector) {
	t.rope.InsertStyleAnchor(id, lamport, position, false, key, value, startIncl, false, vv)
}

// ApplyStyleEnd applies a rich-text style-end anchor at position.
func (t *Tracker) ApplyStyleEnd(id coredoc.ID, lamport coredoc.Lamport, position int, key string, value any, endIncl bool, vv coredoc.VersionVector) {
	t.rope.InsertStyleAnchor(id, lamport, position, true, key, value, false, endIncl, vv)
}

// ApplyDelete applies a sequence-delete operation.
func (t *Tracker) ApplyDelete(id coredoc.ID, targetStart coredoc.ID, length int, reversed bool) {
	t.rope.Delete(id, targetStart, length, reversed)
}

// Values returns the live list elements at vv, in rope order.
func (t *Tracker) Values(vv coredoc.VersionVector) []any {
	var out []any
	for _, r := range t.rope.runs {
		if !t.rope.live(r, vv) {
			continue
		}
		out = append(out, t.arenas.Values.Slice(r.ArenaStart, r.Length)...)
	}
	return out
}

// Text returns the live text content at vv as a string.
func (t *Tracker) Text(vv coredoc.VersionVector) string {
	var out []rune
	for _, r := range t.rope.runs {
		if !t.rope.live(r, vv) {
			continue
		}
		out = append(out, t.arenas.Text.Slice(r.ArenaStart, r.Length)...)
	}
	return string(out)
}

// Len returns the number of live elements at vv.
func (t *Tracker) Len(vv coredoc.VersionVector) int {
	n := 0
	for _, r := range t.rope.runs {
		if t.rope.live(r, vv) {
			n += r.Length
		}
	}
	return n
}

// Diff walks the rope once and emits a Delta describing the change from
// the `from` version to the `to` version: common-visible runs become
// retains, from-only runs become deletes, to-only runs become inserts.
// Retains and inserts carry the style attrs resolved at `to` (spec.md
// §4.4 "resolve style anchors to (key, value) interval operations"), so a
// run that is both newly live and newly styled emits one insert already
// carrying its marks rather than an insert followed by a separate retain.
// A trailing retain without attrs is chopped (Delta.Chop), so an
// unchanged tail emits no item.
func (t *Tracker) Diff(from, to coredoc.VersionVector) *coredoc.Delta {
	styles := t.rope.resolveStyles(to)
	d := coredoc.NewDelta()
	for _, r := range t.rope.runs {
		if r.IsStyleMarker {
			continue
		}
		liveFrom := t.rope.live(r, from)
		liveTo := t.rope.live(r, to)
		switch {
		case liveFrom && liveTo:
			d.Retain(r.Length, styles[r])
		case liveFrom && !liveTo:
			d.Delete(r.Length)
		case !liveFrom && liveTo:
			d.InsertItem(t.insertValue(r), styles[r])
		}
	}
	return d.Chop()
}

// StyledRun is one contiguous span of the current rich-text value sharing
// the same resolved style attrs, as returned by RichTextValue.
type StyledRun struct {
	Text  string
	Attrs coredoc.Attrs
}

// RichTextValue returns the live text at vv as a sequence of style-run
// spans, adjacent runs with identical resolved attrs merged into one
// (spec.md §4.5 "Rich-text additionally resolves style anchors ... into
// (key, value) interval operations" materialised as the current value).
func (t *Tracker) RichTextValue(vv coredoc.VersionVector) []StyledRun {
	styles := t.rope.resolveStyles(vv)
	var out []StyledRun
	for _, r := range t.rope.runs {
		if r.IsStyleMarker || !t.rope.live(r, vv) {
			continue
		}
		text := string(t.arenas.Text.Slice(r.ArenaStart, r.Length))
		attrs := styles[r]
		if n := len(out); n > 0 && attrsEqual(out[n-1].Attrs, attrs) {
			out[n-1].Text += text
			continue
		}
		out = append(out, StyledRun{Text: text, Attrs: attrs})
	}
	return out
}

// attrsEqual reports whether two resolved attrs bags are equivalent for
// the purpose of merging adjacent StyledRuns: both nil/empty, or both
// StyleAttrs maps agreeing key-for-key.
func attrsEqual(a, b coredoc.Attrs) bool {
	as, _ := a.(coredoc.StyleAttrs)
	bs, _ := b.(coredoc.StyleAttrs)
	if len(as) == 0 && len(bs) == 0 {
		return true
	}
	return reflect.DeepEqual(as, bs)
}

// Snapshot captures the tracker's current rope state.
func (t *Tracker) Snapshot() Snapshot { return t.rope.Snapshot() }

// Restore replaces the tracker's rope state with a prior snapshot.
func (t *Tracker) Restore(s Snapshot) { t.rope.Restore(s) }

func (t *Tracker) insertValue(r *Run) coredoc.InsertValue {
	if t.kind == KindText {
		return coredoc.TextRun(t.arenas.Text.Slice(r.ArenaStart, r.Length))
	}
	return ListRun(t.arenas.Values.Slice(r.ArenaStart, r.Length))
}

// ListRun is a Delta InsertValue backed by a slice of arbitrary values,
// the list-container counterpart of coredoc.TextRun.
type ListRun []any

// Len implements coredoc.InsertValue.
func (r ListRun) Len() int { return len(r) }

// Slice implements coredoc.InsertValue.
func (r ListRun) Slice(start, length int) coredoc.InsertValue {
	out := make(ListRun, length)
	copy(out, r[start:start+length])
	return out
}

// Concat implements coredoc.InsertValue. Two ListRuns are always
// concatenable; list elements carry no adjacency constraint the way
// byte-backed runs might.
func (r ListRun) Concat(other coredoc.InsertValue) (coredoc.InsertValue, bool) {
	o, ok := other.(ListRun)
	if !ok {
		return nil, false
	}
	out := make(ListRun, 0, len(r)+len(o))
	out = append(out, r...)
	out = append(out, o...)
	return out, true
}
