package cache

import (
	"fmt"
	"log/slog"

	"HamDB/device"
	"HamDB/page"
	"HamDB/types"
)

// Cache is the page cache between the engine and the device. It
// implements LRU eviction and handles loading pages from disk on
// miss. Pages are owned by the cache; operations borrow them via
// Fetch (which pins) and hand them back via Release. The engine is
// single-threaded, so there is no locking here.
//
// A capacity of zero disables caching: every fetch is a disk read and
// a released dirty page is written out and dropped immediately. Only
// pinned pages are kept resident in that mode, so an operation still
// observes its own writes.
type Cache struct {
	pages    map[uint64]*page.Page
	capacity int
	pageSize int
	dev      device.Device
	metrics  *types.Metrics
	log      *slog.Logger
	// For LRU eviction: most recently used at the end.
	accessOrder []uint64
}

func New(dev device.Device, capacity, pageSize int, metrics *types.Metrics, log *slog.Logger) *Cache {
	return &Cache{
		pages:       make(map[uint64]*page.Page, capacity),
		capacity:    capacity,
		pageSize:    pageSize,
		dev:         dev,
		metrics:     metrics,
		log:         log,
		accessOrder: make([]uint64, 0, capacity),
	}
}

// Fetch returns the page with the given id, reading it through the
// device on miss. The returned page is pinned; the caller must
// Release it when done with the reference.
func (c *Cache) Fetch(id uint64) (*page.Page, error) {
	if p, ok := c.pages[id]; ok {
		c.metrics.CacheHits++
		c.touch(id)
		p.Pin()
		return p, nil
	}

	c.metrics.CacheMisses++
	if err := c.makeRoom(); err != nil {
		return nil, err
	}

	p, err := page.LoadFrom(c.dev, id, c.pageSize)
	if err != nil {
		return nil, err
	}
	c.metrics.PagesFetched++

	c.pages[id] = p
	c.touch(id)
	p.Pin()
	return p, nil
}

// Put inserts a freshly allocated page. The page enters pinned, like
// a fetched one.
func (c *Cache) Put(p *page.Page) error {
	if _, ok := c.pages[p.ID()]; ok {
		return fmt.Errorf("page %d already cached: %w", p.ID(), types.ErrInternal)
	}
	if err := c.makeRoom(); err != nil {
		return err
	}
	c.pages[p.ID()] = p
	c.touch(p.ID())
	p.Pin()
	return nil
}

// Release drops the caller's reference. With caching disabled the
// page is flushed and forgotten once the last reference is gone.
func (c *Cache) Release(p *page.Page) error {
	p.Unpin()
	if c.capacity > 0 || p.Pinned() {
		return nil
	}
	if p.Dirty() {
		if err := p.WriteTo(c.dev); err != nil {
			return err
		}
		c.metrics.PagesFlushed++
	}
	c.remove(p.ID())
	return nil
}

// Discard forgets a cached page without writing it back. Used when
// the page is released to the freelist: its contents are dead.
func (c *Cache) Discard(id uint64) {
	c.remove(id)
}

// FlushAll writes every dirty cached page of the given type
// (types.PageTypeUnknown matches all) and optionally drops the clean
// result from the cache. Pinned pages are flushed but never dropped.
func (c *Cache) FlushAll(filter types.PageType, remove bool) error {
	// Iterate a copy: remove mutates the order slice.
	ids := append([]uint64(nil), c.accessOrder...)
	for _, id := range ids {
		p, ok := c.pages[id]
		if !ok {
			continue
		}
		if filter != types.PageTypeUnknown && p.Type() != filter {
			continue
		}
		if p.Dirty() {
			if err := p.WriteTo(c.dev); err != nil {
				return err
			}
			c.metrics.PagesFlushed++
		}
		if remove && !p.Pinned() {
			c.remove(id)
		}
	}
	return nil
}

// Len returns the number of resident pages.
func (c *Cache) Len() int { return len(c.pages) }

// Contains reports whether the page is resident.
func (c *Cache) Contains(id uint64) bool {
	_, ok := c.pages[id]
	return ok
}

// makeRoom evicts the least recently used unpinned page when the
// cache is at capacity. Dirty victims are written back before their
// buffer is dropped. When every page is pinned the cache grows past
// capacity temporarily and records the overflow.
func (c *Cache) makeRoom() error {
	if c.capacity <= 0 || len(c.pages) < c.capacity {
		return nil
	}
	for _, id := range c.accessOrder {
		p := c.pages[id]
		if p.Pinned() {
			continue
		}
		if p.Dirty() {
			if err := p.WriteTo(c.dev); err != nil {
				return fmt.Errorf("failed to write page %d during eviction: %w", id, err)
			}
			c.metrics.PagesFlushed++
		}
		c.remove(id)
		return nil
	}
	c.metrics.CacheOverflows++
	c.log.Debug("cache full of pinned pages, growing past capacity", "capacity", c.capacity)
	return nil
}

// touch moves the id to the most-recently-used end.
func (c *Cache) touch(id uint64) {
	for i, cur := range c.accessOrder {
		if cur == id {
			c.accessOrder = append(c.accessOrder[:i], c.accessOrder[i+1:]...)
			break
		}
	}
	c.accessOrder = append(c.accessOrder, id)
}

func (c *Cache) remove(id uint64) {
	delete(c.pages, id)
	for i, cur := range c.accessOrder {
		if cur == id {
			c.accessOrder = append(c.accessOrder[:i], c.accessOrder[i+1:]...)
			return
		}
	}
}
