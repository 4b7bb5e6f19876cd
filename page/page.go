package page

import (
	"fmt"

	"HamDB/device"
	"HamDB/types"
)

/*

One Page is one pagesize-d span of the file. The first
types.PageHeaderSize bytes of every page are reserved; everything the
layers above store (header fields, btree nodes, blob chunks) lives in
the payload behind them.

The page id is the file offset divided by the page size; id 0 is the
header page. The type tag is in-memory only — the fetching layer knows
what it asked for.

*/

type Page struct {
	id       uint64
	pageType types.PageType
	dirty    bool
	pinCount int32
	data     []byte // the full page, header prefix included
}

// Empty allocates a zeroed in-memory page. It is not on disk until
// written; callers set the id and type.
func Empty(pageSize int) *Page {
	return &Page{data: make([]byte, pageSize)}
}

// LoadFrom reads page id from the device into a freshly allocated
// buffer.
func LoadFrom(dev device.Device, id uint64, pageSize int) (*Page, error) {
	p := Empty(pageSize)
	p.id = id
	if err := dev.ReadAt(int64(id)*int64(pageSize), p.data); err != nil {
		return nil, fmt.Errorf("failed to load page %d: %w", id, err)
	}
	return p, nil
}

// WriteTo writes the page to the device at its id's offset and clears
// the dirty flag on success.
func (p *Page) WriteTo(dev device.Device) error {
	if err := dev.WriteAt(int64(p.id)*int64(len(p.data)), p.data); err != nil {
		return fmt.Errorf("failed to write page %d: %w", p.id, err)
	}
	p.dirty = false
	return nil
}

func (p *Page) ID() uint64               { return p.id }
func (p *Page) SetID(id uint64)          { p.id = id }
func (p *Page) Type() types.PageType     { return p.pageType }
func (p *Page) SetType(t types.PageType) { p.pageType = t }
func (p *Page) Dirty() bool              { return p.dirty }
func (p *Page) SetDirty(dirty bool)      { p.dirty = dirty }

// Payload is the usable part of the page behind the reserved header
// prefix. Mutating it requires SetDirty(true).
func (p *Page) Payload() []byte { return p.data[types.PageHeaderSize:] }

// Data is the full raw page, header prefix included.
func (p *Page) Data() []byte { return p.data }

// Pin/Unpin guard the page against eviction while an operation holds
// a reference to it.
func (p *Page) Pin()           { p.pinCount++ }
func (p *Page) Pinned() bool   { return p.pinCount > 0 }
func (p *Page) PinCount() int32 { return p.pinCount }

func (p *Page) Unpin() {
	if p.pinCount > 0 {
		p.pinCount--
	}
}
