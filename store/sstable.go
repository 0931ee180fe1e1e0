package store

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"

	"github.com/cshekharsharma/coredoc/errtype"
	"github.com/pierrec/lz4/v4"
)

// sstableMagic identifies this engine's on-disk block-store format
// (spec.md §4.3.2's magic, renamed to this engine's own four bytes).
var sstableMagic = [4]byte{'C', 'D', 'S', 'S'}

const schemaVersion uint16 = 0

// defaultBlockSize bounds how many bytes of (uncompressed) entries
// accumulate in one normal block before it is flushed.
const defaultBlockSize = 4096

// largeValueThreshold is the value size past which an entry gets its own
// large block instead of joining a normal block.
const largeValueThreshold = 1024

type kv struct {
	key, value []byte
}

// blockMeta describes one on-disk block's location and key range.
type blockMeta struct {
	Offset   int64
	FirstKey []byte
	LastKey  []byte
	IsLarge  bool
}

// decodedNormalBlock is a fully front-decoded normal block, cached by
// blockCache.
type decodedNormalBlock struct {
	entries []kv
}

// Builder accumulates sorted key/value pairs and produces a complete
// SSTable image (spec.md §4.3.2). Keys must be added in strictly
// increasing order. A value of nil (zero-length, distinct from an empty
// non-nil slice is not tracked — both serialise as a tombstone) marks a
// tombstone, skipped during scans.
type Builder struct {
	out       bytes.Buffer
	metas     []blockMeta
	pending   []kv
	pendingSz int
	lastKey   []byte
}

// NewBuilder returns an empty SSTable builder.
func NewBuilder() *Builder {
	b := &Builder{}
	b.out.Write(sstableMagic[:])
	var vb [2]byte
	binary.LittleEndian.PutUint16(vb[:], schemaVersion)
	b.out.Write(vb[:])
	return b
}

// Add appends one key/value pair. Keys must be strictly increasing.
func (b *Builder) Add(key, value []byte) error {
	if b.lastKey != nil && bytes.Compare(key, b.lastKey) <= 0 {
		return errtype.NewArgumentError("SSTable Add: keys must be strictly increasing (got %q after %q)", key, b.lastKey)
	}
	b.lastKey = append([]byte{}, key...)

	if len(value) >= largeValueThreshold {
		if err := b.flushPending(); err != nil {
			return err
		}
		return b.writeLargeBlock(key, value)
	}

	b.pending = append(b.pending, kv{key: append([]byte{}, key...), value: append([]byte{}, value...)})
	b.pendingSz += len(key) + len(value) + 8
	if b.pendingSz >= defaultBlockSize {
		return b.flushPending()
	}
	return nil
}

// Finish writes the trailing block-meta array and returns the complete
// SSTable image.
func (b *Builder) Finish() ([]byte, error) {
	if err := b.flushPending(); err != nil {
		return nil, err
	}
	metaOffset := uint32(b.out.Len())
	putUvarint(&b.out, uint64(len(b.metas)))
	for _, m := range b.metas {
		var offBuf [8]byte
		binary.LittleEndian.PutUint64(offBuf[:], uint64(m.Offset))
		b.out.Write(offBuf[:])
		putUvarint(&b.out, uint64(len(m.FirstKey)))
		b.out.Write(m.FirstKey)
		if m.IsLarge {
			b.out.WriteByte(1)
		} else {
			b.out.WriteByte(0)
			putUvarint(&b.out, uint64(len(m.LastKey)))
			b.out.Write(m.LastKey)
		}
	}
	var trailer [4]byte
	binary.LittleEndian.PutUint32(trailer[:], metaOffset)
	b.out.Write(trailer[:])
	return b.out.Bytes(), nil
}

func (b *Builder) flushPending() error {
	if len(b.pending) == 0 {
		return nil
	}
	offset := int64(b.out.Len())
	var raw bytes.Buffer
	var entryOffsets []uint32
	prevKey := []byte{}
	for _, e := range b.pending {
		entryOffsets = append(entryOffsets, uint32(raw.Len()))
		cp := commonPrefixLen(prevKey, e.key)
		raw.WriteByte(byte(cp))
		suffix := e.key[cp:]
		var suffixLenBuf [2]byte
		binary.LittleEndian.PutUint16(suffixLenBuf[:], uint16(len(suffix)))
		raw.Write(suffixLenBuf[:])
		raw.Write(suffix)
		var valueLenBuf [2]byte
		binary.LittleEndian.PutUint16(valueLenBuf[:], uint16(len(e.value)))
		raw.Write(valueLenBuf[:])
		raw.Write(e.value)
		prevKey = e.key
	}
	for _, off := range entryOffsets {
		var ob [4]byte
		binary.LittleEndian.PutUint32(ob[:], off)
		raw.Write(ob[:])
	}
	var countBuf [4]byte
	binary.LittleEndian.PutUint32(countBuf[:], uint32(len(entryOffsets)))
	raw.Write(countBuf[:])

	compressed := make([]byte, lz4.CompressBlockBound(raw.Len()))
	var c lz4.Compressor
	n, err := c.CompressBlock(raw.Bytes(), compressed)
	if err != nil {
		return err
	}
	if n == 0 {
		compressed = append(compressed[:0], raw.Bytes()...)
		n = raw.Len()
		// lz4 returns 0 for incompressible input: the block is stored raw
		// and compLen is written equal to rawLen, which tells
		// decodeNormalBlock to skip lz4.
	}
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(n))
	b.out.Write(lenBuf[:])
	var rawLenBuf [4]byte
	binary.LittleEndian.PutUint32(rawLenBuf[:], uint32(raw.Len()))
	b.out.Write(rawLenBuf[:])
	b.out.Write(compressed[:n])
	crc := crc32.Checksum(compressed[:n], crcTable)
	var crcBuf [4]byte
	binary.LittleEndian.PutUint32(crcBuf[:], crc)
	b.out.Write(crcBuf[:])

	b.metas = append(b.metas, blockMeta{
		Offset:   offset,
		FirstKey: append([]byte{}, b.pending[0].key...),
		LastKey:  append([]byte{}, b.pending[len(b.pending)-1].key...),
		IsLarge:  false,
	})
	b.pending = nil
	b.pendingSz = 0
	return nil
}

func (b *Builder) writeLargeBlock(key, value []byte) error {
	offset := int64(b.out.Len())
	putUvarint(&b.out, uint64(len(key)))
	b.out.Write(key)
	var valLenBuf [4]byte
	binary.LittleEndian.PutUint32(valLenBuf[:], uint32(len(value)))
	b.out.Write(valLenBuf[:])
	b.out.Write(value)
	crc := crc32.Checksum(value, crcTable)
	var crcBuf [4]byte
	binary.LittleEndian.PutUint32(crcBuf[:], crc)
	b.out.Write(crcBuf[:])

	b.metas = append(b.metas, blockMeta{Offset: offset, FirstKey: append([]byte{}, key...), IsLarge: true})
	return nil
}

func commonPrefixLen(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	if i > 255 {
		return 255
	}
	return i
}
