package diffcalc

import (
	"github.com/cshekharsharma/coredoc"
	"github.com/cshekharsharma/coredoc/change"
	"github.com/cshekharsharma/coredoc/tracker"
)

// SequenceCalculator is the list/text diff calculator: it owns no logic
// of its own beyond dispatching into a Tracker, per spec.md §4.5 "List &
// Rich-text: delegate to the tracker".
type SequenceCalculator struct {
	kind tracker.Kind
	tr   *tracker.Tracker
}

// NewSequenceCalculator returns a calculator backing a list or text
// container.
func NewSequenceCalculator(kind tracker.Kind, arenas *change.Arenas) *SequenceCalculator {
	return &SequenceCalculator{kind: kind, tr: tracker.NewTracker(kind, arenas)}
}

// ApplyInsert records a list/text insert operation.
func (c *SequenceCalculator) ApplyInsert(id coredoc.ID, lamport coredoc.Lamport, position, length, arenaStart int, vv coredoc.VersionVector) {
	c.tr.ApplyInsert(id, lamport, position, length, arenaStart, vv)
}

// ApplyDelete records a list/text delete operation.
func (c *SequenceCalculator) ApplyDelete(id coredoc.ID, targetStart coredoc.ID, length int, reversed bool) {
	c.tr.ApplyDelete(id, targetStart, length, reversed)
}

// ApplyStyleStart records a rich-text style start anchor (text only).
func (c *SequenceCalculator) ApplyStyleStart(id coredoc.ID, lamport coredoc.Lamport, position int, key string, value any, startIncl bool, vv coredoc.VersionVector) {
	c.tr.ApplyStyleStart(id, lamport, position, key, value, startIncl, vv)
}

// ApplyStyleEnd records a rich-text style end anchor (text only).
func (c *SequenceCalculator) ApplyStyleEnd(id coredoc.ID, lamport coredoc.Lamport, position int, key string, value any, endIncl bool, vv coredoc.VersionVector) {
	c.tr.ApplyStyleEnd(id, lamport, position, key, value, endIncl, vv)
}

// CalculateDiff returns the retain/insert/delete delta transforming the
// container's state at from into its state at to.
func (c *SequenceCalculator) CalculateDiff(from, to coredoc.VersionVector) *coredoc.Delta {
	return c.tr.Diff(from, to)
}

// Value returns the container's materialised value at vv: a string for
// text, a slice of values for lists.
func (c *SequenceCalculator) Value(vv coredoc.VersionVector) any {
	if c.kind == tracker.KindText {
		return c.tr.Text(vv)
	}
	return c.tr.Values(vv)
}

// Len returns the number of live elements at vv.
func (c *SequenceCalculator) Len(vv coredoc.VersionVector) int { return c.tr.Len(vv) }

// RichTextValue returns the live text at vv as style-run spans (text
// containers only; spec.md §4.5's style-anchor-resolving value form).
func (c *SequenceCalculator) RichTextValue(vv coredoc.VersionVector) []tracker.StyledRun {
	return c.tr.RichTextValue(vv)
}

// Snapshot captures the calculator's current rope state.
func (c *SequenceCalculator) Snapshot() tracker.Snapshot { return c.tr.Snapshot() }

// Restore replaces the calculator's rope state with a prior snapshot.
func (c *SequenceCalculator) Restore(s tracker.Snapshot) { c.tr.Restore(s) }
