package diffcalc

import (
	"testing"

	"github.com/cshekharsharma/coredoc"
	"github.com/cshekharsharma/coredoc/change"
	"github.com/cshekharsharma/coredoc/tracker"
)

func TestSequenceCalculatorTextDelegatesToTracker(t *testing.T) {
	arenas := change.NewArenas()
	c := NewSequenceCalculator(tracker.KindText, arenas)

	start, n := arenas.Text.Append("hi")
	c.ApplyInsert(coredoc.ID{Peer: 1, Counter: 0}, 0, 0, n, start, coredoc.NewVersionVector())

	to := coredoc.VersionVector{1: 2}
	if got := c.Value(to); got != "hi" {
		t.Fatalf("Value(to) = %v, want hi", got)
	}
	if got := c.Len(to); got != 2 {
		t.Fatalf("Len(to) = %d, want 2", got)
	}

	d := c.CalculateDiff(coredoc.NewVersionVector(), to)
	items := d.Items()
	if len(items) != 1 || items[0].Kind != coredoc.KindInsert || items[0].Len != 2 {
		t.Fatalf("CalculateDiff = %+v, want single insert of len 2", items)
	}
}
