package ham

import (
	"fmt"
	"os"

	"HamDB/blob"
	"HamDB/btree"
	"HamDB/cache"
	"HamDB/device"
	"HamDB/freelist"
	"HamDB/logging"
	"HamDB/page"
	"HamDB/pager"
	"HamDB/types"
)

// Create builds a new database at path. The page size must be a
// multiple of 512 and big enough for at least four keys. A failed
// create returns no handle; nothing of the file is reusable.
func Create(path string, flags types.Flag, mode os.FileMode, cfg Config) (*DB, error) {
	pageSize := cfg.PageSize
	if pageSize == 0 {
		pageSize = types.DefaultPageSize
	}
	keySize := cfg.KeySize
	if keySize == 0 {
		keySize = DefaultKeySize
	}

	if pageSize%types.MinPageSize != 0 {
		return nil, fmt.Errorf("pagesize %d not a multiple of %d: %w",
			pageSize, types.MinPageSize, types.ErrInvalidPageSize)
	}
	if pageSize/keySize < 4 {
		return nil, fmt.Errorf("keysize %d fits fewer than four keys per %d byte page: %w",
			keySize, pageSize, types.ErrInvalidKeySize)
	}

	var dev device.Device
	if flags.Has(types.InMemory) {
		dev = device.NewMem()
	} else {
		fileDev, err := device.Create(path, mode)
		if err != nil {
			return nil, err
		}
		dev = fileDev
	}

	db, err := assemble(dev, flags, cfg, pageSize, keySize, true)
	if err != nil {
		_ = dev.Close()
		return nil, err
	}
	return db, nil
}

// Open opens an existing database file. In-memory databases cannot
// be opened, only created.
func Open(path string, flags types.Flag, cfg Config) (*DB, error) {
	if flags.Has(types.InMemory) {
		return nil, fmt.Errorf("cannot open an in-memory database: %w", types.ErrInvalidParameter)
	}

	dev, err := device.Open(path, flags.Has(types.ReadOnly))
	if err != nil {
		return nil, err
	}

	db, err := assemble(dev, flags, cfg, 0, 0, false)
	if err != nil {
		_ = dev.Close()
		return nil, err
	}
	return db, nil
}

// assemble wires the components up in dependency order: device,
// header page, cache, freelist, pager, blob store, backend.
func assemble(dev device.Device, flags types.Flag, cfg Config, pageSize, keySize uint16, create bool) (*DB, error) {
	log := cfg.Logger
	if log == nil {
		log = logging.Discard()
	}

	db := &DB{
		dev:     dev,
		flags:   flags,
		cursors: make(map[uint64]*Cursor),
		log:     log,
	}

	var hdrPage *page.Page
	if create {
		// Page id 0 exists before the freelist does; grow the file
		// by hand instead of going through an allocator.
		if err := dev.Truncate(int64(pageSize)); err != nil {
			return nil, err
		}
		hdrPage = page.Empty(int(pageSize))
		hdrPage.SetType(types.PageTypeHeader)
		db.hdr = header{
			version:  [4]uint8{versionMaj, versionMin, versionRev, 0},
			serial:   serialNo,
			flags:    uint32(flags&^types.ReadOnly) | backendBtree,
			pageSize: pageSize,
			keySize:  keySize,
		}
		db.hdr.writeTo(hdrPage)
	} else {
		// The header is one page, but how large is a page? Probe the
		// minimum page size and pull the real one out of the raw
		// bytes, then read the page properly.
		probe := make([]byte, types.MinPageSize)
		if err := dev.ReadAt(0, probe); err != nil {
			return nil, err
		}
		if [4]byte(probe[types.PageHeaderSize:types.PageHeaderSize+4]) != magic {
			return nil, fmt.Errorf("file magic %q: %w",
				probe[types.PageHeaderSize:types.PageHeaderSize+4], types.ErrInvalidFileHeader)
		}
		probedSize := int(uint16(probe[probePagesizeOffset]) | uint16(probe[probePagesizeOffset+1])<<8)
		if probedSize < types.MinPageSize || probedSize%types.MinPageSize != 0 {
			return nil, fmt.Errorf("header pagesize %d: %w", probedSize, types.ErrInvalidFileHeader)
		}

		var err error
		if hdrPage, err = page.LoadFrom(dev, 0, probedSize); err != nil {
			return nil, err
		}
		hdrPage.SetType(types.PageTypeHeader)
		db.metrics.PagesFetched++

		if err := db.hdr.readFrom(hdrPage); err != nil {
			return nil, err
		}
		if db.hdr.flags&backendMask != backendBtree {
			return nil, fmt.Errorf("backend selector %#x: %w",
				db.hdr.flags&backendMask, types.ErrInvalidBackend)
		}
		pageSize = db.hdr.pageSize
		keySize = db.hdr.keySize
		// Persistent flags come back, runtime flags stack on top.
		db.flags = types.Flag(db.hdr.flags&^backendMask) | flags
	}

	db.hdrPage = hdrPage
	db.cache = cache.New(dev, cfg.CacheCapacity, int(pageSize), &db.metrics, log)
	if err := db.cache.Put(hdrPage); err != nil {
		return nil, err
	}
	// The put leaves one pin behind, never released: the header page
	// stays resident for the life of the handle.

	if create {
		db.free = freelist.Create(hdrPage, dev, int(pageSize), &db.metrics, log)
	} else {
		var err error
		if db.free, err = freelist.Load(hdrPage, dev, int(pageSize), &db.metrics, log); err != nil {
			return nil, err
		}
	}

	db.pg = &pager.Pager{
		Dev:      dev,
		Cache:    db.cache,
		Free:     db.free,
		PageSize: int(pageSize),
		Metrics:  &db.metrics,
		Log:      log,
	}

	blobs, err := blob.NewStore(db.pg, &db.metrics, log)
	if err != nil {
		return nil, err
	}
	db.blobs = blobs

	db.backend = btree.New(db.pg, blobs, btree.Config{
		KeySize:       keySize,
		Root:          db.hdr.rootID,
		Compare:       cfg.Compare,
		PrefixCompare: cfg.PrefixCompare,
		OnRootChange: func(id uint64) {
			db.hdr.rootID = id
			db.dirty = true
		},
	}, &db.metrics, log)

	if create {
		if err := db.backend.Create(); err != nil {
			return nil, err
		}
		db.dirty = true
	} else if err := db.backend.Open(); err != nil {
		return nil, err
	}

	return db, nil
}
