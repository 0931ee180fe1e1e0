package jsonpath

import "sort"

// Matcher drives the conservative NFA walk of spec.md §4.7 over a
// compiled Query: a position set starts at {0}; each path element lets
// every live position p advance to p+1 if its step's selectors match,
// and (if the step is recursive) stay at p regardless.
type Matcher struct {
	query *Query
}

// NewMatcher compiles q into a ready-to-use matcher.
func NewMatcher(q *Query) *Matcher { return &Matcher{query: q} }

// MayMatch reports whether path could affect the compiled query: some
// position reaches the end of the step list after consuming the whole
// path.
func (m *Matcher) MayMatch(path []PathElem) bool {
	if len(m.query.Steps) == 0 {
		return true
	}
	for _, p := range m.PositionsAfter(path) {
		if p >= len(m.query.Steps) {
			return true
		}
	}
	return false
}

// PositionsAfter returns every step index reachable after consuming the
// whole path, deduplicated and sorted. A returned index equal to
// len(Steps) means the query may already be satisfied; a smaller index
// means a live partial-prefix match that could still complete on a
// longer path.
func (m *Matcher) PositionsAfter(path []PathElem) []int {
	positions := []int{0}
	for _, elem := range path {
		next := map[int]struct{}{}
		for _, pos := range positions {
			if pos >= len(m.query.Steps) {
				next[pos] = struct{}{}
				continue
			}
			step := m.query.Steps[pos]
			if step.Recursive {
				next[pos] = struct{}{}
			}
			if selectorsMatch(step.Selectors, elem) {
				next[pos+1] = struct{}{}
				if step.Recursive {
					next[pos] = struct{}{}
				}
			}
		}
		positions = positions[:0]
		for p := range next {
			positions = append(positions, p)
		}
		sort.Ints(positions)
		if len(positions) == 0 {
			break
		}
	}
	return positions
}

func selectorsMatch(selectors []Selector, e PathElem) bool {
	for _, s := range selectors {
		if s.matches(e) {
			return true
		}
	}
	return false
}
