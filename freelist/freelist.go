package freelist

import (
	"encoding/binary"
	"fmt"
	"log/slog"

	"HamDB/device"
	"HamDB/page"
	"HamDB/types"
)

/*

Freelist payload, embedded in the header page payload right behind the
fixed header fields:

────────────────────────────────────────────────
| max_size (4) | count (4) | entry (8) × count |
────────────────────────────────────────────────

max_size is fixed at create time from the room the header page has
left. The in-memory id list is authoritative while the database is
open; Shutdown serialises it back into the header page.

*/

const entrySize = 8

// Freelist tracks released page ids for reallocation. It manipulates
// page ids only and never goes through the page cache.
type Freelist struct {
	hdr      *page.Page
	dev      device.Device
	pageSize int
	maxSize  uint32
	ids      []uint64
	metrics  *types.Metrics
	log      *slog.Logger
}

// payloadCapacity returns how many entries fit the header page.
func payloadCapacity(pageSize int) uint32 {
	usable := pageSize - types.PageHeaderSize
	return uint32((usable - types.HeaderFieldsSize - 8) / entrySize)
}

// Create initialises an empty freelist payload in the header page.
func Create(hdr *page.Page, dev device.Device, pageSize int, metrics *types.Metrics, log *slog.Logger) *Freelist {
	f := &Freelist{
		hdr:      hdr,
		dev:      dev,
		pageSize: pageSize,
		maxSize:  payloadCapacity(pageSize),
		metrics:  metrics,
		log:      log,
	}
	buf := f.payload()
	binary.LittleEndian.PutUint32(buf[0:4], f.maxSize)
	binary.LittleEndian.PutUint32(buf[4:8], 0)
	hdr.SetDirty(true)
	return f
}

// Load reads the freelist payload of an opened database.
func Load(hdr *page.Page, dev device.Device, pageSize int, metrics *types.Metrics, log *slog.Logger) (*Freelist, error) {
	f := &Freelist{
		hdr:      hdr,
		dev:      dev,
		pageSize: pageSize,
		metrics:  metrics,
		log:      log,
	}
	buf := f.payload()
	f.maxSize = binary.LittleEndian.Uint32(buf[0:4])
	count := binary.LittleEndian.Uint32(buf[4:8])
	if f.maxSize == 0 || count > f.maxSize || 8+int(count)*entrySize > len(buf) {
		return nil, fmt.Errorf("freelist payload max %d count %d: %w",
			f.maxSize, count, types.ErrInvalidFileHeader)
	}
	f.ids = make([]uint64, count)
	for i := range f.ids {
		f.ids[i] = binary.LittleEndian.Uint64(buf[8+i*entrySize:])
	}
	return f, nil
}

// Alloc returns a free page id, preferring the freelist over file
// extension. On extension the device already has storage for the
// returned id.
func (f *Freelist) Alloc() (uint64, error) {
	if n := len(f.ids); n > 0 {
		id := f.ids[n-1]
		f.ids = f.ids[:n-1]
		f.metrics.FreelistHits++
		return id, nil
	}
	f.metrics.FreelistMisses++
	return f.Extend()
}

// Extend grows the file by one page and returns the new id, without
// consulting the free ids. Pager.Alloc calls it directly when asked
// to bypass the freelist.
func (f *Freelist) Extend() (uint64, error) {
	size, err := f.dev.Size()
	if err != nil {
		return 0, err
	}
	id := uint64(size) / uint64(f.pageSize)
	if err := f.dev.Truncate(size + int64(f.pageSize)); err != nil {
		return 0, err
	}
	return id, nil
}

// Release records the id as free. A full freelist truncates a
// trailing page off the file instead; a full freelist with a
// non-trailing page drops the id (the page leaks until the file is
// rewritten).
func (f *Freelist) Release(id uint64) error {
	if f.Contains(id) {
		f.log.Warn("page released twice", "page", id)
		return nil
	}
	if uint32(len(f.ids)) < f.maxSize {
		f.ids = append(f.ids, id)
		return nil
	}

	size, err := f.dev.Size()
	if err != nil {
		return err
	}
	last := uint64(size)/uint64(f.pageSize) - 1
	if id == last {
		return f.dev.Truncate(size - int64(f.pageSize))
	}

	f.metrics.FreelistDropped++
	f.log.Warn("freelist full, dropping freed page", "page", id)
	return nil
}

// Contains reports whether the id is currently free.
func (f *Freelist) Contains(id uint64) bool {
	for _, cur := range f.ids {
		if cur == id {
			return true
		}
	}
	return false
}

// Len returns the number of free ids.
func (f *Freelist) Len() int { return len(f.ids) }

// Shutdown writes the pending state into the header page payload and
// marks the header dirty.
func (f *Freelist) Shutdown() error {
	buf := f.payload()
	if 8+len(f.ids)*entrySize > len(buf) {
		return fmt.Errorf("freelist of %d entries exceeds header page: %w",
			len(f.ids), types.ErrInternal)
	}
	binary.LittleEndian.PutUint32(buf[0:4], f.maxSize)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(f.ids)))
	for i, id := range f.ids {
		binary.LittleEndian.PutUint64(buf[8+i*entrySize:], id)
	}
	f.hdr.SetDirty(true)
	return nil
}

func (f *Freelist) payload() []byte {
	return f.hdr.Payload()[types.HeaderFieldsSize:]
}
