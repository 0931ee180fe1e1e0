package store

import "container/list"

// blockCache is a bounded-capacity LRU cache of decoded normal blocks,
// keyed by byte offset within the SSTable file (spec.md §4.3.2: "bounded
// LRU"; §5: "entries are immutable once inserted, evicted entries are
// simply decoded again on next access").
type blockCache struct {
	capacity int
	ll       *list.List
	items    map[int64]*list.Element
}

type cacheEntry struct {
	offset int64
	block  *decodedNormalBlock
}

func newBlockCache(capacity int) *blockCache {
	return &blockCache{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[int64]*list.Element),
	}
}

func (c *blockCache) get(offset int64) (*decodedNormalBlock, bool) {
	if el, ok := c.items[offset]; ok {
		c.ll.MoveToFront(el)
		return el.Value.(*cacheEntry).block, true
	}
	return nil, false
}

func (c *blockCache) put(offset int64, b *decodedNormalBlock) {
	if el, ok := c.items[offset]; ok {
		c.ll.MoveToFront(el)
		el.Value.(*cacheEntry).block = b
		return
	}
	el := c.ll.PushFront(&cacheEntry{offset: offset, block: b})
	c.items[offset] = el
	if c.capacity > 0 {
		for c.ll.Len() > c.capacity {
			oldest := c.ll.Back()
			if oldest == nil {
				break
			}
			c.ll.Remove(oldest)
			delete(c.items, oldest.Value.(*cacheEntry).offset)
		}
	}
}
