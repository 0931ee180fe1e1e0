package store

import (
	"encoding/binary"
	"sort"
	"sync"

	"github.com/cshekharsharma/coredoc"
	"github.com/cshekharsharma/coredoc/change"
)

// ChangeStore persists change blocks, keyed by (peer, counter-start), and
// serves them back to the oplog (spec.md §4.6 "Oplog owns arenas, AppDag,
// ChangeStore"). Flushed blocks live in immutable SSTable "runs"; newer
// runs shadow older ones for the same key, the same layering an LSM tree
// uses to avoid rewriting everything on every flush.
type ChangeStore struct {
	mu        sync.Mutex
	arenas    *change.Arenas
	threshold int

	pendingByPeer map[coredoc.PeerID][]*change.Change
	pendingCount  int

	runs []*Reader // newest first
}

// NewChangeStore returns a ChangeStore that batches up to threshold
// pending changes before encoding and flushing them into a new run.
func NewChangeStore(arenas *change.Arenas, threshold int) *ChangeStore {
	return &ChangeStore{
		arenas:        arenas,
		threshold:     threshold,
		pendingByPeer: make(map[coredoc.PeerID][]*change.Change),
	}
}

// Append buffers c for the next flush, flushing immediately once the
// pending batch reaches the configured threshold.
func (s *ChangeStore) Append(c *change.Change) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingByPeer[c.IDStart.Peer] = append(s.pendingByPeer[c.IDStart.Peer], c)
	s.pendingCount++
	if s.pendingCount >= s.threshold {
		return s.flushLocked()
	}
	return nil
}

// Flush forces any pending changes into a new immutable run.
func (s *ChangeStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

func (s *ChangeStore) flushLocked() error {
	if s.pendingCount == 0 {
		return nil
	}
	peers := make([]coredoc.PeerID, 0, len(s.pendingByPeer))
	for p := range s.pendingByPeer {
		peers = append(peers, p)
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i] < peers[j] })

	b := NewBuilder()
	for _, p := range peers {
		changes := s.pendingByPeer[p]
		sort.Slice(changes, func(i, j int) bool { return changes[i].IDStart.Counter < changes[j].IDStart.Counter })
		blockBytes, err := EncodeBlock(changes, s.arenas)
		if err != nil {
			return err
		}
		key := blockKey(p, changes[0].IDStart.Counter)
		if err := b.Add(key, blockBytes); err != nil {
			return err
		}
	}
	data, err := b.Finish()
	if err != nil {
		return err
	}
	r, err := OpenReader(data, 64)
	if err != nil {
		return err
	}
	s.runs = append([]*Reader{r}, s.runs...)
	s.pendingByPeer = make(map[coredoc.PeerID][]*change.Change)
	s.pendingCount = 0
	return nil
}

// blockKey orders entries first by peer, then by counter-start, so a
// Floor lookup correctly restricts to one peer's chain.
func blockKey(peer coredoc.PeerID, counterStart coredoc.Counter) []byte {
	key := make([]byte, 12)
	binary.BigEndian.PutUint64(key[0:8], uint64(peer))
	binary.BigEndian.PutUint32(key[8:12], uint32(counterStart))
	return key
}

// GetBlockContaining returns the decoded changes of whichever block
// (across all runs, newest first, and any still-pending batch) covers
// id, and whether one was found.
func (s *ChangeStore) GetBlockContaining(id coredoc.ID) ([]*change.Change, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pending, ok := s.pendingByPeer[id.Peer]; ok {
		for _, c := range pending {
			if c.IDSpan().Contains(id) {
				return pending, true, nil
			}
		}
	}

	target := blockKey(id.Peer, id.Counter)
	for _, r := range s.runs {
		key, value, ok, err := r.Floor(target)
		if err != nil {
			return nil, false, err
		}
		if !ok || len(key) != 12 || binary.BigEndian.Uint64(key[0:8]) != uint64(id.Peer) {
			continue
		}
		changes, err := DecodeBlock(value, s.arenas)
		if err != nil {
			return nil, false, err
		}
		for _, c := range changes {
			if c.IDSpan().Contains(id) {
				return changes, true, nil
			}
		}
	}
	return nil, false, nil
}
