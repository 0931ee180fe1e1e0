package store

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"

	"github.com/cshekharsharma/coredoc"
	"github.com/cshekharsharma/coredoc/change"
	"github.com/cshekharsharma/coredoc/errtype"
	"github.com/pierrec/lz4/v4"
)

// blockVersion is the current change-block wire version (spec.md §4.3.1).
const blockVersion uint16 = 0

var crcTable = crc32.MakeTable(crc32.Castagnoli)

// BlockHeader is the independently-decodable prefix of a change block:
// enough to filter blocks by counter/lamport range before paying for the
// body decode.
type BlockHeader struct {
	Version       uint16
	Peer          coredoc.PeerID
	CounterStart  coredoc.Counter
	CounterLength uint32
	LamportStart  coredoc.Lamport
	LamportLength uint32
	NChanges      int
}

// EncodeBlock serialises a contiguous run of one peer's changes into a
// compressed, checksummed block (spec.md §4.3.1). arenas resolves the
// actual inserted text/values so the block is self-contained on disk.
func EncodeBlock(changes []*change.Change, arenas *change.Arenas) ([]byte, error) {
	if len(changes) == 0 {
		return nil, errtype.NewArgumentError("EncodeBlock: no changes")
	}
	selfPeer := changes[0].IDStart.Peer
	peerTable := []coredoc.PeerID{selfPeer}
	peerIdx := map[coredoc.PeerID]int{selfPeer: 0}
	peerIndexOf := func(p coredoc.PeerID) int {
		if idx, ok := peerIdx[p]; ok {
			return idx
		}
		idx := len(peerTable)
		peerTable = append(peerTable, p)
		peerIdx[p] = idx
		return idx
	}

	atomLens := make([]uint64, len(changes))
	depOnSelf := make([]bool, len(changes))
	depLength := make([]uint64, len(changes))
	var foreignPeerIdx, foreignCounter []uint64
	lamportStarts := make([]int64, len(changes))
	timestamps := make([]int64, len(changes))
	var msgLens []uint64
	var msgBytes bytes.Buffer

	for i, c := range changes {
		atomLens[i] = uint64(c.CounterLen())
		lamportStarts[i] = int64(c.LamportStart)
		timestamps[i] = c.Timestamp.UnixNano()
		msgLens = append(msgLens, uint64(len(c.CommitMessage)))
		msgBytes.WriteString(c.CommitMessage)

		selfDep := coredoc.ID{Peer: selfPeer, Counter: c.IDStart.Counter - 1}
		hasSelfDep := c.IDStart.Counter > 0 && c.Deps.Contains(selfDep)
		depOnSelf[i] = hasSelfDep
		var foreign int
		for _, d := range c.Deps {
			if hasSelfDep && d == selfDep {
				continue
			}
			foreignPeerIdx = append(foreignPeerIdx, uint64(peerIndexOf(d.Peer)))
			foreignCounter = append(foreignCounter, uint64(d.Counter))
			foreign++
		}
		depLength[i] = uint64(foreign)
	}

	var header bytes.Buffer
	var tmp2 [2]byte
	binary.LittleEndian.PutUint16(tmp2[:], blockVersion)
	header.Write(tmp2[:])
	putUvarint(&header, uint64(changes[0].IDStart.Counter))
	putUvarint(&header, uint64(changes[len(changes)-1].LastID().Counter-changes[0].IDStart.Counter+1))
	putUvarint(&header, uint64(changes[0].LamportStart))
	putUvarint(&header, uint64(changes[len(changes)-1].LamportEnd()-changes[0].LamportStart))
	putUvarint(&header, uint64(len(changes)))
	putUvarint(&header, uint64(len(peerTable)))
	for _, p := range peerTable {
		var pb [8]byte
		binary.LittleEndian.PutUint64(pb[:], uint64(p))
		header.Write(pb[:])
	}
	writeRLE(&header, atomLens)
	writeBoolRLE(&header, depOnSelf)
	writeRLE(&header, depLength)
	writeRLE(&header, foreignPeerIdx)
	writeRLE(&header, foreignCounter)
	writeDeltaRLE(&header, lamportStarts, int64(changes[0].LamportStart))
	writeDeltaRLE(&header, timestamps, 0)
	writeRLE(&header, msgLens)
	header.Write(msgBytes.Bytes())

	body, err := encodeBody(changes, arenas, peerIndexOf)
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	if err := writeFramedSection(&out, header.Bytes()); err != nil {
		return nil, err
	}
	if err := writeFramedSection(&out, body); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// encodeBody serialises the per-op columns and variant payload stream.
func encodeBody(changes []*change.Change, arenas *change.Arenas, peerIndexOf func(coredoc.PeerID) int) ([]byte, error) {
	var containerIdx, length []int64
	var kinds []uint64
	var isDel []bool
	var payload bytes.Buffer

	for _, c := range changes {
		for _, op := range c.Ops {
			containerIdx = append(containerIdx, int64(op.ContainerIdx))
			kinds = append(kinds, uint64(op.Kind))
			length = append(length, int64(op.Len()))
			isDel = append(isDel, op.Kind == change.OpListDelete || op.Kind == change.OpTextDelete)
			encodeOpPayload(&payload, op, arenas, peerIndexOf)
		}
	}

	var body bytes.Buffer
	writeDeltaRLE(&body, containerIdx, 0)
	writeRLE(&body, kinds)
	writeDeltaRLE(&body, length, 0)
	writeBoolRLE(&body, isDel)
	putUvarint(&body, uint64(payload.Len()))
	body.Write(payload.Bytes())
	return body.Bytes(), nil
}

func encodeOpPayload(buf *bytes.Buffer, op change.Operation, arenas *change.Arenas, peerIndexOf func(coredoc.PeerID) int) {
	switch op.Kind {
	case change.OpListInsert:
		putUvarint(buf, uint64(op.ListInsert.Position))
		vals := arenas.Values.Slice(op.ListInsert.ValueStart, op.ListInsert.ValueLen)
		putUvarint(buf, uint64(len(vals)))
		for _, v := range vals {
			putValue(buf, v)
		}
	case change.OpListDelete, change.OpTextDelete:
		putUvarint(buf, uint64(peerIndexOf(op.SeqDelete.StartID.Peer)))
		putUvarint(buf, uint64(op.SeqDelete.StartID.Counter))
		putUvarint(buf, uint64(op.SeqDelete.Position))
		if op.SeqDelete.Reversed {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case change.OpTextInsert:
		putUvarint(buf, uint64(op.TextInsert.Position))
		runes := arenas.Text.Slice(op.TextInsert.UnicodeStart, op.TextInsert.UnicodeLength)
		s := string(runes)
		putUvarint(buf, uint64(len(s)))
		buf.WriteString(s)
	case change.OpStyleStart, change.OpStyleEnd:
		putUvarint(buf, uint64(len(op.Style.Key)))
		buf.WriteString(op.Style.Key)
		putValue(buf, op.Style.Value)
		putBoolTriple(buf, op.Style.StartInclusive, op.Style.EndInclusive, op.Style.SpansDeletions)
	case change.OpMapSet:
		putUvarint(buf, uint64(len(op.MapSet.Key)))
		buf.WriteString(op.MapSet.Key)
		if op.MapSet.ValuePresent {
			buf.WriteByte(1)
			vals := arenas.Values.Slice(op.MapSet.ValueIndex, 1)
			putValue(buf, vals[0])
		} else {
			buf.WriteByte(0)
		}
	case change.OpTreeCreate, change.OpTreeMove, change.OpTreeDelete, change.OpTreeEmptyTrash:
		putUvarint(buf, uint64(len(op.Tree.TargetTreeID)))
		buf.WriteString(op.Tree.TargetTreeID)
		if op.Tree.HasParent {
			buf.WriteByte(1)
			putUvarint(buf, uint64(len(op.Tree.ParentTreeID)))
			buf.WriteString(op.Tree.ParentTreeID)
		} else {
			buf.WriteByte(0)
		}
		if op.Tree.HasPosition {
			buf.WriteByte(1)
			putUvarint(buf, uint64(len(op.Tree.Position)))
			buf.Write(op.Tree.Position)
		} else {
			buf.WriteByte(0)
		}
	}
}

func putBoolTriple(buf *bytes.Buffer, a, b, c bool) {
	var v byte
	if a {
		v |= 1
	}
	if b {
		v |= 2
	}
	if c {
		v |= 4
	}
	buf.WriteByte(v)
}

func getBoolTriple(r *bytes.Reader) (a, b, c bool, err error) {
	v, err := r.ReadByte()
	if err != nil {
		return false, false, false, err
	}
	return v&1 != 0, v&2 != 0, v&4 != 0, nil
}

// writeFramedSection LZ4-compresses section, appends it length-prefixed,
// followed by the CRC32C of the compressed bytes (spec.md: "checksum
// outside compression").
func writeFramedSection(out *bytes.Buffer, section []byte) error {
	compressed := make([]byte, lz4.CompressBlockBound(len(section)))
	var c lz4.Compressor
	n, err := c.CompressBlock(section, compressed)
	if err != nil {
		return err
	}
	if n == 0 && len(section) > 0 {
		// Incompressible input: lz4 signals this by returning 0; store raw
		// with a sentinel length-prefix of 0 followed by the raw bytes.
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], 0)
		out.Write(lenBuf[:])
		var rawLenBuf [4]byte
		binary.LittleEndian.PutUint32(rawLenBuf[:], uint32(len(section)))
		out.Write(rawLenBuf[:])
		out.Write(section)
		crc := crc32.Checksum(section, crcTable)
		var crcBuf [4]byte
		binary.LittleEndian.PutUint32(crcBuf[:], crc)
		out.Write(crcBuf[:])
		return nil
	}
	compressed = compressed[:n]
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(n))
	out.Write(lenBuf[:])
	var rawLenBuf [4]byte
	binary.LittleEndian.PutUint32(rawLenBuf[:], uint32(len(section)))
	out.Write(rawLenBuf[:])
	out.Write(compressed)
	crc := crc32.Checksum(compressed, crcTable)
	var crcBuf [4]byte
	binary.LittleEndian.PutUint32(crcBuf[:], crc)
	out.Write(crcBuf[:])
	return nil
}

// readFramedSection is the inverse of writeFramedSection.
func readFramedSection(r *bytes.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := r.Read(lenBuf[:]); err != nil {
		return nil, errtype.NewDecodeError("truncated section length: %v", err)
	}
	compLen := binary.LittleEndian.Uint32(lenBuf[:])
	var rawLenBuf [4]byte
	if _, err := r.Read(rawLenBuf[:]); err != nil {
		return nil, errtype.NewDecodeError("truncated section raw length: %v", err)
	}
	rawLen := binary.LittleEndian.Uint32(rawLenBuf[:])

	if compLen == 0 {
		raw := make([]byte, rawLen)
		if _, err := r.Read(raw); err != nil {
			return nil, errtype.NewDecodeError("truncated raw section: %v", err)
		}
		var crcBuf [4]byte
		if _, err := r.Read(crcBuf[:]); err != nil {
			return nil, errtype.NewDecodeError("truncated section crc: %v", err)
		}
		want := binary.LittleEndian.Uint32(crcBuf[:])
		if got := crc32.Checksum(raw, crcTable); got != want {
			return nil, &errtype.DecodeChecksumMismatch{Want: want, Got: got}
		}
		return raw, nil
	}

	compressed := make([]byte, compLen)
	if _, err := r.Read(compressed); err != nil {
		return nil, errtype.NewDecodeError("truncated compressed section: %v", err)
	}
	var crcBuf [4]byte
	if _, err := r.Read(crcBuf[:]); err != nil {
		return nil, errtype.NewDecodeError("truncated section crc: %v", err)
	}
	want := binary.LittleEndian.Uint32(crcBuf[:])
	if got := crc32.Checksum(compressed, crcTable); got != want {
		return nil, &errtype.DecodeChecksumMismatch{Want: want, Got: got}
	}
	raw := make([]byte, rawLen)
	n, err := lz4.UncompressBlock(compressed, raw)
	if err != nil {
		return nil, errtype.NewDecodeDataCorruption("lz4 decompress: %v", err)
	}
	return raw[:n], nil
}
