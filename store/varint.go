// Package store implements the change-block columnar codec and the
// SSTable-backed key/value block store that persists change blocks and
// state snapshots (spec.md §4.3).
package store

import (
	"bytes"
	"encoding/binary"
)

// putUvarint appends an LEB128-encoded unsigned varint to buf, using the
// standard library's encoding (PutUvarint already implements LEB128).
func putUvarint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	buf.Write(tmp[:n])
}

// getUvarint reads an LEB128 varint from r.
func getUvarint(r *bytes.Reader) (uint64, error) {
	return binary.ReadUvarint(r)
}

// zigzag maps a signed integer to an unsigned one so small-magnitude
// negative deltas still encode as short varints.
func zigzag(v int64) uint64 {
	return uint64((v << 1) ^ (v >> 63))
}

func unzigzag(v uint64) int64 {
	return int64(v>>1) ^ -int64(v&1)
}

func putVarint(buf *bytes.Buffer, v int64) { putUvarint(buf, zigzag(v)) }

func getVarint(r *bytes.Reader) (int64, error) {
	u, err := getUvarint(r)
	if err != nil {
		return 0, err
	}
	return unzigzag(u), nil
}
