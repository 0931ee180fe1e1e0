package store

import (
	"bytes"
	"encoding/binary"
	"time"

	"github.com/cshekharsharma/coredoc"
	"github.com/cshekharsharma/coredoc/change"
	"github.com/cshekharsharma/coredoc/errtype"
)

func timestampFromUnixNano(ns int64) time.Time { return time.Unix(0, ns).UTC() }

// DecodeBlockHeader decodes only the header/meta section of a block,
// enough to filter by counter/lamport range without paying for the body
// (spec.md §4.3.1's "header can be decoded independently").
func DecodeBlockHeader(data []byte) (BlockHeader, error) {
	r := bytes.NewReader(data)
	raw, err := readFramedSection(r)
	if err != nil {
		return BlockHeader{}, err
	}
	hr := bytes.NewReader(raw)
	return parseHeader(hr)
}

func parseHeader(hr *bytes.Reader) (BlockHeader, error) {
	var vb [2]byte
	if _, err := hr.Read(vb[:]); err != nil {
		return BlockHeader{}, errtype.NewDecodeError("truncated version: %v", err)
	}
	version := binary.LittleEndian.Uint16(vb[:])
	if version != blockVersion {
		return BlockHeader{}, &errtype.IncompatibleFutureEncoding{Version: version}
	}
	counterStart, err := getUvarint(hr)
	if err != nil {
		return BlockHeader{}, err
	}
	counterLength, err := getUvarint(hr)
	if err != nil {
		return BlockHeader{}, err
	}
	lamportStart, err := getUvarint(hr)
	if err != nil {
		return BlockHeader{}, err
	}
	lamportLength, err := getUvarint(hr)
	if err != nil {
		return BlockHeader{}, err
	}
	nChanges, err := getUvarint(hr)
	if err != nil {
		return BlockHeader{}, err
	}
	nPeers, err := getUvarint(hr)
	if err != nil {
		return BlockHeader{}, err
	}
	peerTable := make([]coredoc.PeerID, nPeers)
	for i := range peerTable {
		var pb [8]byte
		if _, err := hr.Read(pb[:]); err != nil {
			return BlockHeader{}, errtype.NewDecodeError("truncated peer table: %v", err)
		}
		peerTable[i] = coredoc.PeerID(binary.LittleEndian.Uint64(pb[:]))
	}
	return BlockHeader{
		Version:       version,
		Peer:          peerTable[0],
		CounterStart:  coredoc.Counter(counterStart),
		CounterLength: uint32(counterLength),
		LamportStart:  coredoc.Lamport(lamportStart),
		LamportLength: uint32(lamportLength),
		NChanges:      int(nChanges),
	}, nil
}

// DecodeBlock fully decodes a block back into Changes, appending any
// inserted text/values into arenas and rewriting operations' arena
// references to the freshly appended offsets.
func DecodeBlock(data []byte, arenas *change.Arenas) ([]*change.Change, error) {
	r := bytes.NewReader(data)
	headerRaw, err := readFramedSection(r)
	if err != nil {
		return nil, err
	}
	bodyRaw, err := readFramedSection(r)
	if err != nil {
		return nil, err
	}

	hr := bytes.NewReader(headerRaw)
	var vb [2]byte
	if _, err := hr.Read(vb[:]); err != nil {
		return nil, errtype.NewDecodeError("truncated version: %v", err)
	}
	version := binary.LittleEndian.Uint16(vb[:])
	if version != blockVersion {
		return nil, &errtype.IncompatibleFutureEncoding{Version: version}
	}
	counterStart, err := getUvarint(hr)
	if err != nil {
		return nil, err
	}
	if _, err := getUvarint(hr); err != nil { // counterLength, unused directly: atomLens reconstructs it
		return nil, err
	}
	lamportStart, err := getUvarint(hr)
	if err != nil {
		return nil, err
	}
	if _, err := getUvarint(hr); err != nil { // lamportLength
		return nil, err
	}
	nChanges, err := getUvarint(hr)
	if err != nil {
		return nil, err
	}
	nPeers, err := getUvarint(hr)
	if err != nil {
		return nil, err
	}
	peerTable := make([]coredoc.PeerID, nPeers)
	for i := range peerTable {
		var pb [8]byte
		if _, err := hr.Read(pb[:]); err != nil {
			return nil, errtype.NewDecodeError("truncated peer table: %v", err)
		}
		peerTable[i] = coredoc.PeerID(binary.LittleEndian.Uint64(pb[:]))
	}
	hdr := BlockHeader{Version: version, Peer: peerTable[0], CounterStart: coredoc.Counter(counterStart), LamportStart: coredoc.Lamport(lamportStart), NChanges: int(nChanges)}
	hr2 := hr

	atomLens, err := readRLE(hr2)
	if err != nil {
		return nil, err
	}
	depOnSelf, err := readBoolRLE(hr2)
	if err != nil {
		return nil, err
	}
	depLength, err := readRLE(hr2)
	if err != nil {
		return nil, err
	}
	foreignPeerIdx, err := readRLE(hr2)
	if err != nil {
		return nil, err
	}
	foreignCounter, err := readRLE(hr2)
	if err != nil {
		return nil, err
	}
	lamportStarts, err := readDeltaRLE(hr2, int64(hdr.LamportStart))
	if err != nil {
		return nil, err
	}
	timestamps, err := readDeltaRLE(hr2, 0)
	if err != nil {
		return nil, err
	}
	msgLens, err := readRLE(hr2)
	if err != nil {
		return nil, err
	}
	changes := make([]*change.Change, nChanges)
	counter := hdr.CounterStart
	foreignCursor := 0
	for i := 0; i < int(nChanges); i++ {
		msgBuf := make([]byte, msgLens[i])
		if _, err := hr2.Read(msgBuf); err != nil {
			return nil, errtype.NewDecodeError("truncated commit message: %v", err)
		}
		var deps coredoc.Frontiers
		if depOnSelf[i] {
			deps = append(deps, coredoc.ID{Peer: hdr.Peer, Counter: counter - 1})
		}
		for k := uint64(0); k < depLength[i]; k++ {
			p := peerTable[foreignPeerIdx[foreignCursor]]
			c := coredoc.Counter(foreignCounter[foreignCursor])
			deps = append(deps, coredoc.ID{Peer: p, Counter: c})
			foreignCursor++
		}
		changes[i] = &change.Change{
			IDStart:       coredoc.ID{Peer: hdr.Peer, Counter: counter},
			LamportStart:  coredoc.Lamport(lamportStarts[i]),
			Deps:          deps,
			Timestamp:     timestampFromUnixNano(timestamps[i]),
			CommitMessage: string(msgBuf),
		}
		counter += coredoc.Counter(atomLens[i])
	}

	br := bytes.NewReader(bodyRaw)
	containerIdx, err := readDeltaRLE(br, 0)
	if err != nil {
		return nil, err
	}
	kinds, err := readRLE(br)
	if err != nil {
		return nil, err
	}
	lengths, err := readDeltaRLE(br, 0)
	if err != nil {
		return nil, err
	}
	isDel, err := readBoolRLE(br)
	if err != nil {
		return nil, err
	}
	payloadLen, err := getUvarint(br)
	if err != nil {
		return nil, err
	}
	payload := make([]byte, payloadLen)
	if _, err := br.Read(payload); err != nil {
		return nil, errtype.NewDecodeError("truncated op payload: %v", err)
	}
	pr := bytes.NewReader(payload)

	opIdx := 0
	// Re-associate the flattened op columns back to each change by
	// consuming exactly atomLens[i] counters' worth of ops per change —
	// an op's Len() (its reconstructed "length" column) tells us how many
	// counters it consumes.
	for i, c := range changes {
		target := int(atomLens[i])
		consumed := 0
		for consumed < target {
			op, err := decodeOp(pr, change.OpKind(kinds[opIdx]), int(containerIdx[opIdx]), int(lengths[opIdx]), isDel[opIdx], peerTable, arenas)
			if err != nil {
				return nil, err
			}
			c.Ops = append(c.Ops, op)
			consumed += op.Len()
			opIdx++
		}
	}
	return changes, nil
}

func decodeOp(pr *bytes.Reader, kind change.OpKind, containerIdx, length int, isDel bool, peerTable []coredoc.PeerID, arenas *change.Arenas) (change.Operation, error) {
	op := change.Operation{ContainerIdx: containerIdx, Kind: kind}
	switch kind {
	case change.OpListInsert:
		pos, err := getUvarint(pr)
		if err != nil {
			return op, err
		}
		n, err := getUvarint(pr)
		if err != nil {
			return op, err
		}
		vals := make([]any, n)
		for i := range vals {
			v, err := getValue(pr)
			if err != nil {
				return op, err
			}
			vals[i] = v
		}
		start, l := arenas.Values.Append(vals...)
		op.ListInsert = change.ListInsertContent{ValueStart: start, ValueLen: l, Position: int(pos)}
	case change.OpListDelete, change.OpTextDelete:
		peerIdx, err := getUvarint(pr)
		if err != nil {
			return op, err
		}
		ctr, err := getUvarint(pr)
		if err != nil {
			return op, err
		}
		pos, err := getUvarint(pr)
		if err != nil {
			return op, err
		}
		revByte, err := pr.ReadByte()
		if err != nil {
			return op, err
		}
		op.SeqDelete = change.SeqDeleteContent{
			StartID:  coredoc.ID{Peer: peerTable[peerIdx], Counter: coredoc.Counter(ctr)},
			Position: int(pos),
			Length:   length,
			Reversed: revByte != 0,
		}
	case change.OpTextInsert:
		pos, err := getUvarint(pr)
		if err != nil {
			return op, err
		}
		n, err := getUvarint(pr)
		if err != nil {
			return op, err
		}
		buf := make([]byte, n)
		if _, err := pr.Read(buf); err != nil {
			return op, err
		}
		start, l := arenas.Text.Append(string(buf))
		op.TextInsert = change.TextInsertContent{UnicodeStart: start, UnicodeLength: l, Position: int(pos)}
	case change.OpStyleStart, change.OpStyleEnd:
		keyLen, err := getUvarint(pr)
		if err != nil {
			return op, err
		}
		keyBuf := make([]byte, keyLen)
		if _, err := pr.Read(keyBuf); err != nil {
			return op, err
		}
		val, err := getValue(pr)
		if err != nil {
			return op, err
		}
		startIncl, endIncl, spansDel, err := getBoolTriple(pr)
		if err != nil {
			return op, err
		}
		op.Style = change.StyleContent{
			Key: string(keyBuf), Value: val,
			StartInclusive: startIncl, EndInclusive: endIncl, SpansDeletions: spansDel,
		}
	case change.OpMapSet:
		keyLen, err := getUvarint(pr)
		if err != nil {
			return op, err
		}
		keyBuf := make([]byte, keyLen)
		if _, err := pr.Read(keyBuf); err != nil {
			return op, err
		}
		present, err := pr.ReadByte()
		if err != nil {
			return op, err
		}
		op.MapSet = change.MapSetContent{Key: string(keyBuf)}
		if present != 0 {
			v, err := getValue(pr)
			if err != nil {
				return op, err
			}
			start, _ := arenas.Values.Append(v)
			op.MapSet.ValueIndex = start
			op.MapSet.ValuePresent = true
		}
	case change.OpTreeCreate, change.OpTreeMove, change.OpTreeDelete, change.OpTreeEmptyTrash:
		idLen, err := getUvarint(pr)
		if err != nil {
			return op, err
		}
		idBuf := make([]byte, idLen)
		if _, err := pr.Read(idBuf); err != nil {
			return op, err
		}
		op.Tree.TargetTreeID = string(idBuf)
		hasParent, err := pr.ReadByte()
		if err != nil {
			return op, err
		}
		if hasParent != 0 {
			pLen, err := getUvarint(pr)
			if err != nil {
				return op, err
			}
			pBuf := make([]byte, pLen)
			if _, err := pr.Read(pBuf); err != nil {
				return op, err
			}
			op.Tree.ParentTreeID = string(pBuf)
			op.Tree.HasParent = true
		}
		hasPos, err := pr.ReadByte()
		if err != nil {
			return op, err
		}
		if hasPos != 0 {
			posLen, err := getUvarint(pr)
			if err != nil {
				return op, err
			}
			posBuf := make([]byte, posLen)
			if _, err := pr.Read(posBuf); err != nil {
				return op, err
			}
			op.Tree.Position = posBuf
			op.Tree.HasPosition = true
		}
	}
	return op, nil
}
