package pager

import (
	"log/slog"

	"HamDB/cache"
	"HamDB/device"
	"HamDB/freelist"
	"HamDB/page"
	"HamDB/types"
)

// Pager ties the device, the page cache and the freelist together.
// Everything above it (btree, blob store) fetches, allocates and
// frees pages through here and never touches the device directly.
type Pager struct {
	Dev      device.Device
	Cache    *cache.Cache
	Free     *freelist.Freelist
	PageSize int
	Metrics  *types.Metrics
	Log      *slog.Logger
}

// Fetch returns the page pinned; pair it with Release.
func (pg *Pager) Fetch(id uint64) (*page.Page, error) {
	return pg.Cache.Fetch(id)
}

// Release hands a fetched or allocated page back to the cache's LRU.
func (pg *Pager) Release(p *page.Page) error {
	return pg.Cache.Release(p)
}

// Alloc produces a new writable page of the given type: freelist
// first, file extension second. With ignoreFreelist the file is
// always extended. The page comes back
// pinned, zeroed and dirty.
func (pg *Pager) Alloc(pageType types.PageType, ignoreFreelist bool) (*page.Page, error) {
	var id uint64
	var err error
	if ignoreFreelist {
		id, err = pg.Free.Extend()
	} else {
		id, err = pg.Free.Alloc()
	}
	if err != nil {
		return nil, err
	}

	p := page.Empty(pg.PageSize)
	p.SetID(id)
	p.SetType(pageType)
	p.SetDirty(true)
	if err := pg.Cache.Put(p); err != nil {
		return nil, err
	}
	return p, nil
}

// FreePage drops the page from the cache without write-back and
// returns its id to the freelist. The caller must not hold other
// references to it.
func (pg *Pager) FreePage(p *page.Page) error {
	// The contents are dead; a straggling Release must not write them
	// back (the freelist may even have truncated the file).
	p.SetDirty(false)
	pg.Cache.Discard(p.ID())
	return pg.Free.Release(p.ID())
}

// FreeID releases a page id that is not currently materialised.
func (pg *Pager) FreeID(id uint64) error {
	pg.Cache.Discard(id)
	return pg.Free.Release(id)
}

// FlushAll writes every dirty page of the given type through the
// device.
func (pg *Pager) FlushAll(filter types.PageType, remove bool) error {
	return pg.Cache.FlushAll(filter, remove)
}
