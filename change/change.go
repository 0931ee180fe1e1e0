package change

import (
	"fmt"
	"time"

	"github.com/cshekharsharma/coredoc"
	"github.com/cshekharsharma/coredoc/errtype"
)

// Change is an atomic, ordered batch of operations from one peer sharing
// a single deps-set (spec.md §3 "Change"). Its counters are densely
// packed starting at IDStart.Counter.
type Change struct {
	IDStart       coredoc.ID
	LamportStart  coredoc.Lamport
	Deps          coredoc.Frontiers
	Timestamp     time.Time
	CommitMessage string
	Ops           []Operation
}

// CounterLen returns the total number of counters this change spans
// (the sum of each operation's Len()).
func (c *Change) CounterLen() int {
	n := 0
	for _, op := range c.Ops {
		n += op.Len()
	}
	return n
}

// IDSpan returns the half-open counter span this change occupies.
func (c *Change) IDSpan() coredoc.IDSpan {
	return coredoc.IDSpan{
		Peer:         c.IDStart.Peer,
		CounterStart: c.IDStart.Counter,
		CounterEnd:   c.IDStart.Counter + coredoc.Counter(c.CounterLen()),
	}
}

// LastID returns the last id this change produces.
func (c *Change) LastID() coredoc.ID {
	n := c.CounterLen()
	if n == 0 {
		return c.IDStart
	}
	return coredoc.ID{Peer: c.IDStart.Peer, Counter: c.IDStart.Counter + coredoc.Counter(n) - 1}
}

// LamportEnd returns the Lamport timestamp one past the change's last op,
// i.e. LamportStart + CounterLen.
func (c *Change) LamportEnd() coredoc.Lamport {
	return c.LamportStart + coredoc.Lamport(c.CounterLen())
}

// Validate checks the invariants spec.md §3 requires of a Change: dense
// counters (implicit in construction), and that Deps contains no id from
// the same peer with counter > IDStart.Counter-1 (a change cannot depend
// on a not-yet-committed or self-overlapping id from its own peer).
func (c *Change) Validate() error {
	for _, d := range c.Deps {
		if d.Peer == c.IDStart.Peer && d.Counter >= c.IDStart.Counter {
			return errtype.NewDecodeDataCorruption(
				"change %s depends on same-peer id %s at or after its own start", c.IDStart, d)
		}
	}
	return nil
}

// OpAt returns the operation whose span contains the global id, and the
// offset of id within that operation's own run, if any.
func (c *Change) OpAt(id coredoc.ID) (op Operation, offset int, ok bool) {
	if id.Peer != c.IDStart.Peer {
		return Operation{}, 0, false
	}
	cursor := c.IDStart.Counter
	for _, o := range c.Ops {
		n := coredoc.Counter(o.Len())
		if id.Counter >= cursor && id.Counter < cursor+n {
			return o, int(id.Counter - cursor), true
		}
		cursor += n
	}
	return Operation{}, 0, false
}

func (c *Change) String() string {
	return fmt.Sprintf("Change{%s..%s lamport=%d deps=%v}", c.IDStart, c.LastID(), c.LamportStart, c.Deps)
}
