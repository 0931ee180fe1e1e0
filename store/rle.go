package store

import "bytes"

// writeRLE run-length-encodes vals as (value, run-length) varint pairs —
// the "bool-RLE"/"delta-RLE" columns of spec.md §4.3.1 are both built on
// top of this primitive, the first over {0,1} and the second over
// zigzag-mapped deltas.
func writeRLE(buf *bytes.Buffer, vals []uint64) {
	putUvarint(buf, uint64(len(vals)))
	i := 0
	for i < len(vals) {
		j := i + 1
		for j < len(vals) && vals[j] == vals[i] {
			j++
		}
		putUvarint(buf, vals[i])
		putUvarint(buf, uint64(j-i))
		i = j
	}
}

// readRLE decodes a writeRLE-encoded column; the total value count is
// recorded up front so the reader knows when to stop even if the final
// run is truncated by a corrupt stream.
func readRLE(r *bytes.Reader) ([]uint64, error) {
	n, err := getUvarint(r)
	if err != nil {
		return nil, err
	}
	out := make([]uint64, 0, n)
	for uint64(len(out)) < n {
		v, err := getUvarint(r)
		if err != nil {
			return nil, err
		}
		count, err := getUvarint(r)
		if err != nil {
			return nil, err
		}
		for k := uint64(0); k < count; k++ {
			out = append(out, v)
		}
	}
	return out, nil
}

// writeDeltaRLE encodes a signed column as deltas-from-previous (first
// value delta'd against base), zigzag-mapped, then RLE'd.
func writeDeltaRLE(buf *bytes.Buffer, vals []int64, base int64) {
	deltas := make([]uint64, len(vals))
	prev := base
	for i, v := range vals {
		deltas[i] = zigzag(v - prev)
		prev = v
	}
	writeRLE(buf, deltas)
}

func readDeltaRLE(r *bytes.Reader, base int64) ([]int64, error) {
	deltas, err := readRLE(r)
	if err != nil {
		return nil, err
	}
	out := make([]int64, len(deltas))
	prev := base
	for i, d := range deltas {
		v := prev + unzigzag(d)
		out[i] = v
		prev = v
	}
	return out, nil
}

// writeBoolRLE packs a bool column as a 0/1 RLE column.
func writeBoolRLE(buf *bytes.Buffer, vals []bool) {
	u := make([]uint64, len(vals))
	for i, b := range vals {
		if b {
			u[i] = 1
		}
	}
	writeRLE(buf, u)
}

func readBoolRLE(r *bytes.Reader) ([]bool, error) {
	u, err := readRLE(r)
	if err != nil {
		return nil, err
	}
	out := make([]bool, len(u))
	for i, v := range u {
		out[i] = v != 0
	}
	return out, nil
}
