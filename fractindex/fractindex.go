// Package fractindex implements the fractional index used to order tree
// children (spec.md §3 "Fractional index"): a byte string supporting
// total order and a Between operation that returns a new key strictly
// between two existing keys, or signals that the available precision is
// exhausted and a rearrange cascade is required.
//
// Keys are digit strings in base 256 with an implicit trailing zero
// digit past their stored length — exactly the semantics []byte
// comparison already has in Go (a byte slice that is a strict prefix of
// another compares less than it), so total order is plain bytes.Compare.
package fractindex

import "bytes"

// MaxDepth bounds how many digits Between will descend before giving up
// and signalling that a rearrange cascade is needed, realising spec.md's
// "may signal 'rearrange' when exhausted" escape hatch.
const MaxDepth = 32

// midDefault is the digit used when both bounds are absent (a brand new,
// empty ordering): neither minimal nor maximal, leaving room on both
// sides for subsequent inserts.
const midDefault = 128

// Start returns a reasonable first key for an empty ordering.
func Start() []byte { return []byte{midDefault} }

// Compare returns the total order of two keys: negative if a < b, zero if
// equal, positive if a > b.
func Compare(a, b []byte) int { return bytes.Compare(a, b) }

// Between returns a new key strictly between lo and hi. A nil/empty lo
// means "no lower bound" (insert at the very beginning); a nil/empty hi
// means "no upper bound" (insert at the very end). ok is false if lo and
// hi are adjacent at MaxDepth digits and no room remains — the caller
// must then cascade a rearrange of the surrounding siblings.
func Between(lo, hi []byte) (key []byte, ok bool) {
	if len(lo) > 0 && len(hi) > 0 && bytes.Compare(lo, hi) >= 0 {
		return nil, false
	}
	var digits []byte
	for depth := 0; depth < MaxDepth; depth++ {
		da := digitAt(lo, depth)
		db := digitAtHi(hi, depth)
		if da == db {
			digits = append(digits, byte(da))
			continue
		}
		if db-da > 1 {
			mid := da + (db-da)/2
			digits = append(digits, byte(mid))
			return digits, true
		}
		// Adjacent digits: no room at this depth, carry the lower
		// digit forward and look for room one level deeper.
		digits = append(digits, byte(da))
	}
	return nil, false
}

// digitAt returns the digit of key at depth, or 0 if key has ended
// (representing "no lower bound" beyond its stored length).
func digitAt(key []byte, depth int) int {
	if depth < len(key) {
		return int(key[depth])
	}
	return 0
}

// digitAtHi returns the digit of key at depth, or 256 (one past the
// maximum byte value) if key has ended or is absent — representing "no
// upper bound" beyond its stored length.
func digitAtHi(key []byte, depth int) int {
	if depth < len(key) {
		return int(key[depth])
	}
	return 256
}

// Rearrange redistributes n keys evenly between lo and hi (exclusive),
// used when Between signals exhaustion for some sibling in the run and
// the caller must reassign fractional indices to an entire contiguous
// group of siblings at once (spec.md §3: "requiring a cascade of
// re-positions").
func Rearrange(lo, hi []byte, n int) [][]byte {
	if n <= 0 {
		return nil
	}
	out := make([][]byte, n)
	loDigit := digitAt(lo, 0)
	hiDigit := digitAtHi(hi, 0)
	span := hiDigit - loDigit
	if span < n+1 {
		// Not enough room in a single byte: spread across two digits by
		// using the full 0..255 range at the next depth for each slot.
		for i := 0; i < n; i++ {
			first := byte(loDigit + 1 + i)
			out[i] = []byte{first, midDefault}
		}
		return out
	}
	step := span / (n + 1)
	if step < 1 {
		step = 1
	}
	for i := 0; i < n; i++ {
		out[i] = []byte{byte(loDigit + step*(i+1))}
	}
	return out
}
