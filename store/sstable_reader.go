package store

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"sort"

	"github.com/cshekharsharma/coredoc/errtype"
	"github.com/pierrec/lz4/v4"
)

// Reader serves point lookups and range scans against one SSTable image
// (spec.md §4.3.2). It is not safe for concurrent use: lookups reorder
// and fill the block cache without locking. ChangeStore calls it only
// while holding its own mutex, matching this engine's
// single-writer-at-a-time document model (spec.md §5).
type Reader struct {
	data  []byte
	metas []blockMeta
	cache *blockCache
}

// OpenReader parses an SSTable image's magic, version, and trailing
// block-meta array.
func OpenReader(data []byte, cacheCapacity int) (*Reader, error) {
	if len(data) < 6+4 {
		return nil, errtype.NewDecodeError("SSTable image too short")
	}
	if !bytes.Equal(data[:4], sstableMagic[:]) {
		return nil, errtype.NewDecodeError("bad SSTable magic %q", data[:4])
	}
	version := binary.LittleEndian.Uint16(data[4:6])
	if version != schemaVersion {
		return nil, &errtype.IncompatibleFutureEncoding{Version: version}
	}
	metaOffset := binary.LittleEndian.Uint32(data[len(data)-4:])
	r := bytes.NewReader(data[metaOffset : len(data)-4])
	nBlocks, err := getUvarint(r)
	if err != nil {
		return nil, err
	}
	metas := make([]blockMeta, nBlocks)
	for i := range metas {
		var offBuf [8]byte
		if _, err := r.Read(offBuf[:]); err != nil {
			return nil, errtype.NewDecodeError("truncated block meta: %v", err)
		}
		offset := int64(binary.LittleEndian.Uint64(offBuf[:]))
		keyLen, err := getUvarint(r)
		if err != nil {
			return nil, err
		}
		firstKey := make([]byte, keyLen)
		if _, err := r.Read(firstKey); err != nil {
			return nil, errtype.NewDecodeError("truncated block meta key: %v", err)
		}
		isLargeByte, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		m := blockMeta{Offset: offset, FirstKey: firstKey, IsLarge: isLargeByte != 0}
		if !m.IsLarge {
			lastLen, err := getUvarint(r)
			if err != nil {
				return nil, err
			}
			lastKey := make([]byte, lastLen)
			if _, err := r.Read(lastKey); err != nil {
				return nil, errtype.NewDecodeError("truncated block meta last key: %v", err)
			}
			m.LastKey = lastKey
		} else {
			m.LastKey = firstKey
		}
		metas[i] = m
	}
	return &Reader{data: data, metas: metas, cache: newBlockCache(cacheCapacity)}, nil
}

// findBlockIdx binary-searches block metas for the block whose first key
// is the greatest one <= key (spec.md §4.3.2 "find_block_idx").
func (r *Reader) findBlockIdx(key []byte) int {
	idx := sort.Search(len(r.metas), func(i int) bool {
		return bytes.Compare(r.metas[i].FirstKey, key) > 0
	}) - 1
	return idx
}

// Get returns the value stored for key, or ok=false if absent or
// tombstoned.
func (r *Reader) Get(key []byte) (value []byte, ok bool, err error) {
	idx := r.findBlockIdx(key)
	if idx < 0 {
		return nil, false, nil
	}
	m := r.metas[idx]
	if m.IsLarge {
		if !bytes.Equal(m.FirstKey, key) {
			return nil, false, nil
		}
		v, err := r.readLargeBlockValue(m.Offset)
		if err != nil {
			return nil, false, err
		}
		return v, len(v) > 0, nil
	}
	blk, err := r.decodeNormalBlockCached(idx)
	if err != nil {
		return nil, false, err
	}
	// Scan from the last entry descending, per spec.md's lookup note.
	for i := len(blk.entries) - 1; i >= 0; i-- {
		if bytes.Equal(blk.entries[i].key, key) {
			v := blk.entries[i].value
			return v, len(v) > 0, nil
		}
	}
	return nil, false, nil
}

// Floor returns the entry with the greatest key <= target, if any — used
// by ChangeStore to find the change-block whose counter range might
// contain a requested id.
func (r *Reader) Floor(target []byte) (key, value []byte, ok bool, err error) {
	idx := r.findBlockIdx(target)
	if idx < 0 {
		return nil, nil, false, nil
	}
	m := r.metas[idx]
	if m.IsLarge {
		v, err := r.readLargeBlockValue(m.Offset)
		if err != nil {
			return nil, nil, false, err
		}
		return m.FirstKey, v, true, nil
	}
	blk, err := r.decodeNormalBlockCached(idx)
	if err != nil {
		return nil, nil, false, err
	}
	pos := sort.Search(len(blk.entries), func(i int) bool {
		return bytes.Compare(blk.entries[i].key, target) > 0
	}) - 1
	if pos < 0 {
		return nil, nil, false, nil
	}
	e := blk.entries[pos]
	return e.key, e.value, true, nil
}

func (r *Reader) readLargeBlockValue(offset int64) ([]byte, error) {
	br := bytes.NewReader(r.data[offset:])
	keyLen, err := getUvarint(br)
	if err != nil {
		return nil, err
	}
	if _, err := br.Seek(int64(keyLen), 1); err != nil {
		return nil, err
	}
	var valLenBuf [4]byte
	if _, err := br.Read(valLenBuf[:]); err != nil {
		return nil, errtype.NewDecodeError("truncated large block value length: %v", err)
	}
	valLen := binary.LittleEndian.Uint32(valLenBuf[:])
	value := make([]byte, valLen)
	if _, err := br.Read(value); err != nil {
		return nil, errtype.NewDecodeError("truncated large block value: %v", err)
	}
	var crcBuf [4]byte
	if _, err := br.Read(crcBuf[:]); err != nil {
		return nil, errtype.NewDecodeError("truncated large block crc: %v", err)
	}
	want := binary.LittleEndian.Uint32(crcBuf[:])
	if got := crc32.Checksum(value, crcTable); got != want {
		return nil, &errtype.DecodeChecksumMismatch{Want: want, Got: got}
	}
	return value, nil
}

func (r *Reader) decodeNormalBlockCached(idx int) (*decodedNormalBlock, error) {
	offset := r.metas[idx].Offset
	if blk, ok := r.cache.get(offset); ok {
		return blk, nil
	}
	blk, err := r.decodeNormalBlock(offset)
	if err != nil {
		return nil, err
	}
	r.cache.put(offset, blk)
	return blk, nil
}

func (r *Reader) decodeNormalBlock(offset int64) (*decodedNormalBlock, error) {
	br := bytes.NewReader(r.data[offset:])
	var lenBuf [4]byte
	if _, err := br.Read(lenBuf[:]); err != nil {
		return nil, errtype.NewDecodeError("truncated block length: %v", err)
	}
	compLen := binary.LittleEndian.Uint32(lenBuf[:])
	var rawLenBuf [4]byte
	if _, err := br.Read(rawLenBuf[:]); err != nil {
		return nil, errtype.NewDecodeError("truncated block raw length: %v", err)
	}
	rawLen := binary.LittleEndian.Uint32(rawLenBuf[:])
	compressed := make([]byte, compLen)
	if _, err := br.Read(compressed); err != nil {
		return nil, errtype.NewDecodeError("truncated block body: %v", err)
	}
	var crcBuf [4]byte
	if _, err := br.Read(crcBuf[:]); err != nil {
		return nil, errtype.NewDecodeError("truncated block crc: %v", err)
	}
	want := binary.LittleEndian.Uint32(crcBuf[:])
	if got := crc32.Checksum(compressed, crcTable); got != want {
		return nil, &errtype.DecodeChecksumMismatch{Want: want, Got: got}
	}

	var raw []byte
	if compLen == rawLen {
		// Stored raw (incompressible content); see Builder.flushPending.
		raw = compressed
	} else {
		raw = make([]byte, rawLen)
		n, err := lz4.UncompressBlock(compressed, raw)
		if err != nil {
			return nil, errtype.NewDecodeDataCorruption("lz4 decompress: %v", err)
		}
		raw = raw[:n]
	}

	if len(raw) < 4 {
		return nil, errtype.NewDecodeDataCorruption("normal block too short")
	}
	count := binary.LittleEndian.Uint32(raw[len(raw)-4:])
	offsetsStart := len(raw) - 4 - int(count)*4
	if offsetsStart < 0 {
		return nil, errtype.NewDecodeDataCorruption("normal block offset table out of range")
	}
	entryOffsets := make([]uint32, count)
	for i := range entryOffsets {
		entryOffsets[i] = binary.LittleEndian.Uint32(raw[offsetsStart+i*4 : offsetsStart+i*4+4])
	}

	entries := make([]kv, count)
	prevKey := []byte{}
	for i, off := range entryOffsets {
		cp := int(raw[off])
		suffixLen := int(binary.LittleEndian.Uint16(raw[off+1 : off+3]))
		suffix := raw[off+3 : off+3+suffixLen]
		key := append(append([]byte{}, prevKey[:cp]...), suffix...)
		valOff := off + 3 + uint32(suffixLen)
		valueLen := int(binary.LittleEndian.Uint16(raw[valOff : valOff+2]))
		value := raw[valOff+2 : valOff+2+uint32(valueLen)]
		entries[i] = kv{key: key, value: value}
		prevKey = key
	}
	return &decodedNormalBlock{entries: entries}, nil
}

// Iterator walks a key range in forward order (spec.md §4.3.2
// "SsTableIter::new_scan"). The bwdBlock/bwdEntry cursor only marks the
// end of the range; there is no reverse iteration. Tombstones
// (zero-length values) are skipped.
type Iterator struct {
	r          *Reader
	start, end []byte
	fwdBlock   int
	fwdEntry   int
	bwdBlock   int
	bwdEntry   int
	done       bool
}

// NewScan returns an iterator over [start, end). A nil start means "from
// the beginning"; a nil end means "to the end".
func (r *Reader) NewScan(start, end []byte) (*Iterator, error) {
	it := &Iterator{r: r, start: start, end: end}
	if len(r.metas) == 0 {
		it.done = true
		return it, nil
	}
	it.fwdBlock = 0
	if start != nil {
		idx := r.findBlockIdx(start)
		if idx >= 0 {
			it.fwdBlock = idx
		}
	}
	it.bwdBlock = len(r.metas) - 1
	if end != nil {
		idx := r.findBlockIdx(end)
		if idx >= 0 {
			it.bwdBlock = idx
		} else {
			it.done = true
		}
	}
	if !r.metas[it.fwdBlock].IsLarge {
		blk, err := r.decodeNormalBlockCached(it.fwdBlock)
		if err != nil {
			return nil, err
		}
		it.fwdEntry = sort.Search(len(blk.entries), func(i int) bool {
			return start == nil || bytes.Compare(blk.entries[i].key, start) >= 0
		})
	}
	if !r.metas[it.bwdBlock].IsLarge {
		bblk, err := r.decodeNormalBlockCached(it.bwdBlock)
		if err != nil {
			return nil, err
		}
		it.bwdEntry = len(bblk.entries) - 1
		if end != nil {
			it.bwdEntry = sort.Search(len(bblk.entries), func(i int) bool {
				return bytes.Compare(bblk.entries[i].key, end) >= 0
			}) - 1
		}
	}
	return it, nil
}

// Next returns the next live key/value pair in forward order, or
// ok=false once the forward and backward cursors have met.
func (it *Iterator) Next() (key, value []byte, ok bool, err error) {
	for {
		if it.done || it.fwdBlock > it.bwdBlock {
			return nil, nil, false, nil
		}
		m := it.r.metas[it.fwdBlock]
		if m.IsLarge {
			v, err := it.r.readLargeBlockValue(m.Offset)
			if err != nil {
				return nil, nil, false, err
			}
			it.fwdBlock++
			it.fwdEntry = 0
			if it.fwdBlock <= it.bwdBlock {
				if err := it.primeBlock(it.fwdBlock); err != nil {
					return nil, nil, false, err
				}
			}
			if len(v) == 0 {
				continue
			}
			return m.FirstKey, v, true, nil
		}
		blk, err := it.r.decodeNormalBlockCached(it.fwdBlock)
		if err != nil {
			return nil, nil, false, err
		}
		limit := len(blk.entries)
		if it.fwdBlock == it.bwdBlock {
			limit = it.bwdEntry + 1
		}
		if it.fwdEntry >= limit {
			it.fwdBlock++
			it.fwdEntry = 0
			continue
		}
		e := blk.entries[it.fwdEntry]
		it.fwdEntry++
		if len(e.value) == 0 {
			continue
		}
		return e.key, e.value, true, nil
	}
}

func (it *Iterator) primeBlock(idx int) error {
	if it.r.metas[idx].IsLarge {
		return nil
	}
	_, err := it.r.decodeNormalBlockCached(idx)
	return err
}
