// Package ham is the embedded key/value database: a single paged
// file holding a B-tree index, a freelist and a blob store, fronted
// by an in-process page cache. Handles are not safe for concurrent
// use; the engine is single-threaded by design.
package ham

import (
	"fmt"
	"log/slog"

	"HamDB/blob"
	"HamDB/btree"
	"HamDB/cache"
	"HamDB/device"
	"HamDB/freelist"
	"HamDB/page"
	"HamDB/pager"
	"HamDB/txn"
	"HamDB/types"
)

const (
	// DefaultKeySize is used when Create gets keysize 0.
	DefaultKeySize uint16 = 21
	// DefaultCacheCapacity is a reasonable page cache size for
	// callers with no opinion. Capacity 0 disables caching entirely.
	DefaultCacheCapacity = 128
)

// Backend selector, persisted in the high nibble of the header
// flags. Only the B-tree backend exists.
const (
	backendMask  uint32 = 0xf0000000
	backendBtree uint32 = 0
)

// Config carries the explicit dependencies of a database handle:
// geometry, cache size, comparators and logger. No process-wide
// defaults are consulted.
type Config struct {
	// PageSize must be a multiple of 512; 0 means the default.
	// Ignored on open.
	PageSize uint16
	// KeySize is the inline key capacity per slot; 0 means the
	// default. A page must fit at least four keys. Ignored on open.
	KeySize uint16
	// CacheCapacity is the page cache size in pages; 0 disables
	// caching.
	CacheCapacity int
	// Compare orders keys; nil means unsigned lexicographic.
	Compare types.CompareFunc
	// PrefixCompare optionally short-circuits extended-key
	// comparisons on the stored prefix.
	PrefixCompare types.PrefixCompareFunc
	// Logger for engine diagnostics; nil discards.
	Logger *slog.Logger
}

// DB is a database handle.
type DB struct {
	dev     device.Device
	cache   *cache.Cache
	free    *freelist.Freelist
	pg      *pager.Pager
	blobs   *blob.Store
	backend *btree.BTree

	hdrPage *page.Page
	hdr     header

	flags   types.Flag
	dirty   bool
	closed  bool
	lastErr error

	// Scratch for keys/records returned to the caller when no
	// explicit transaction is in effect. Contents stay valid until
	// the next call on this handle.
	keyArena txn.Arena
	recArena txn.Arena

	cursors    map[uint64]*Cursor
	nextCursor uint64

	metrics types.Metrics
	log     *slog.Logger
}

// fail records err as the handle's last error and returns it.
func (db *DB) fail(err error) error {
	if err != nil {
		db.lastErr = err
	}
	return err
}

// LastError returns the last error recorded on the handle.
func (db *DB) LastError() error { return db.lastErr }

// Metrics returns a snapshot of the engine counters.
func (db *DB) Metrics() types.Metrics { return db.metrics }

// PageSize returns the page size fixed at create time.
func (db *DB) PageSize() int { return int(db.hdr.pageSize) }

// KeySize returns the inline key capacity fixed at create time.
func (db *DB) KeySize() int { return int(db.hdr.keySize) }

// Flags returns the handle's effective flags.
func (db *DB) Flags() types.Flag { return db.flags }

func (db *DB) readOnly() bool { return db.flags.Has(types.ReadOnly) }
func (db *DB) inMemory() bool { return db.flags.Has(types.InMemory) }

// beginTxn opens the implicit per-operation transaction. It borrows
// the database arenas, so returned pointers survive the commit and
// stay valid until the next call.
func (db *DB) beginTxn() *txn.Txn {
	return txn.Begin(txn.Temporary, &db.keyArena, &db.recArena)
}

// Flush writes every dirty page through the device without dropping
// anything from the cache.
func (db *DB) Flush() error {
	if db.closed {
		return db.fail(types.ErrInvalidParameter)
	}
	return db.fail(db.cache.FlushAll(types.PageTypeUnknown, false))
}

// CheckIntegrity verifies the cache against the freelist and the
// device, then walks the B-tree invariants. The first violation is
// returned.
func (db *DB) CheckIntegrity() error {
	if db.closed || db.backend == nil {
		return db.fail(types.ErrInvalidBackend)
	}
	if err := db.cache.CheckIntegrity(db.free.Contains); err != nil {
		return db.fail(err)
	}

	t := db.beginTxn()
	if err := db.backend.CheckIntegrity(t); err != nil {
		_ = t.Abort()
		return db.fail(err)
	}
	return db.fail(t.Commit())
}

// Scan visits every key/record pair in comparator order. The slices
// passed to visit are only valid during the call.
func (db *DB) Scan(visit func(key, record []byte) error) error {
	if db.closed || db.backend == nil {
		return db.fail(types.ErrInvalidBackend)
	}
	t := db.beginTxn()
	err := db.backend.Scan(t, func(key []byte, rid uint64, keyFlags uint8) error {
		record, err := db.materialiseRecord(t, rid, keyFlags)
		if err != nil {
			return err
		}
		return visit(key, record)
	}, false)
	if err != nil {
		_ = t.Abort()
		return db.fail(err)
	}
	return db.fail(t.Commit())
}

// Dump feeds every key to cb in order; a nil cb hex-dumps the first
// bytes of each key through the logger.
func (db *DB) Dump(cb func(key []byte)) error {
	if db.closed || db.backend == nil {
		return db.fail(types.ErrInvalidBackend)
	}
	if cb == nil {
		cb = func(key []byte) {
			limit := len(key)
			if limit > 16 {
				limit = 16
			}
			db.log.Info("dump key", "bytes", fmt.Sprintf("% x", key[:limit]), "size", len(key))
		}
	}
	t := db.beginTxn()
	if err := db.backend.Dump(t, cb); err != nil {
		_ = t.Abort()
		return db.fail(err)
	}
	return db.fail(t.Commit())
}

// Close flushes and shuts the database down. Order matters: header
// fields first, then the freelist persists itself, the cache flushes,
// the header page gets its explicit final write, and only then the
// backend, blob store and device go away. The first failure
// short-circuits the rest and is returned.
func (db *DB) Close() error {
	if db.closed {
		return nil
	}

	for _, c := range db.cursors {
		c.close()
	}

	// A read-only handle has nothing to persist and no way to write
	// it; skip straight to the teardown.
	if !db.readOnly() {
		if db.dirty {
			db.hdr.writeTo(db.hdrPage)
		}

		if err := db.free.Shutdown(); err != nil {
			return db.fail(err)
		}

		if err := db.cache.FlushAll(types.PageTypeUnknown, false); err != nil {
			return db.fail(err)
		}
	}

	if !db.inMemory() && !db.readOnly() && db.dirty {
		if err := db.hdrPage.WriteTo(db.dev); err != nil {
			return db.fail(err)
		}
		db.metrics.PagesFlushed++
	}

	if err := db.backend.Close(); err != nil {
		return db.fail(err)
	}
	db.blobs.Close()

	db.closed = true
	return db.fail(db.dev.Close())
}
