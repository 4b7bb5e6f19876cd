package ham

import (
	"fmt"

	"HamDB/txn"
	"HamDB/types"
)

// Insert stores key → record. Records of 8 bytes or fewer are packed
// into the slot's record pointer; anything bigger becomes a blob.
// An existing key fails with ErrDuplicateKey.
func (db *DB) Insert(key, record []byte, flags types.Flag) error {
	if db.closed || db.backend == nil {
		return db.fail(types.ErrInvalidBackend)
	}
	if db.readOnly() {
		return db.fail(types.ErrReadOnly)
	}
	if key == nil {
		return db.fail(types.ErrInvalidParameter)
	}
	if err := db.validateKeySize(len(key)); err != nil {
		return db.fail(err)
	}

	t := db.beginTxn()
	err := db.insertRouted(t, key, record)
	if err != nil {
		_ = t.Abort()
		return db.fail(err)
	}
	db.dirty = true
	return db.fail(t.Commit())
}

// insertRouted encodes the record inline when it fits, otherwise it
// stores a blob first; the index entry carries the blob id. A failed
// index insert frees the provisional blob again.
func (db *DB) insertRouted(t *txn.Txn, key, record []byte) error {
	rid, recFlags, inline := types.EncodeInlineRecord(record)
	if !inline {
		var err error
		if rid, err = db.blobs.Alloc(t, record); err != nil {
			return err
		}
	}

	if err := db.backend.Insert(t, key, rid, recFlags); err != nil {
		if !inline {
			if ferr := db.blobs.Free(t, rid); ferr != nil {
				db.log.Warn("failed to free provisional blob", "blob", rid, "error", ferr)
			}
		}
		return err
	}
	return nil
}

// Find returns the record stored under key. The returned slice lives
// in the handle's scratch arena and is valid until the next call on
// the handle; copy it to keep it.
func (db *DB) Find(key []byte, flags types.Flag) ([]byte, error) {
	if db.closed || db.backend == nil {
		return nil, db.fail(types.ErrInvalidBackend)
	}
	if key == nil {
		return nil, db.fail(types.ErrInvalidParameter)
	}

	t := db.beginTxn()
	rid, keyFlags, err := db.backend.Find(t, key)
	if err != nil {
		_ = t.Abort()
		return nil, db.fail(err)
	}

	record, err := db.materialiseRecord(t, rid, keyFlags)
	if err != nil {
		_ = t.Abort()
		return nil, db.fail(err)
	}
	return record, db.fail(t.Commit())
}

// materialiseRecord turns a record pointer into bytes: inline
// encodings decode straight out of the pointer word, everything else
// is a blob read.
func (db *DB) materialiseRecord(t *txn.Txn, rid uint64, keyFlags uint8) ([]byte, error) {
	if types.InlineRecord(keyFlags) {
		buf := t.RecArena.Alloc(8)
		record, ok := types.DecodeInlineRecord(rid, keyFlags, buf)
		if !ok {
			return nil, fmt.Errorf("record flags %#x: %w", keyFlags, types.ErrInternal)
		}
		return record, nil
	}
	return db.blobs.Read(t, rid)
}

// Erase removes key. The index entry goes first; an out-of-line
// record's blob pages go back to the freelist after it.
func (db *DB) Erase(key []byte, flags types.Flag) error {
	if db.closed || db.backend == nil {
		return db.fail(types.ErrInvalidBackend)
	}
	if db.readOnly() {
		return db.fail(types.ErrReadOnly)
	}
	if key == nil {
		return db.fail(types.ErrInvalidParameter)
	}

	t := db.beginTxn()
	rid, keyFlags, err := db.backend.Erase(t, key)
	if err != nil {
		_ = t.Abort()
		return db.fail(err)
	}
	if !types.InlineRecord(keyFlags) {
		if err := db.blobs.Free(t, rid); err != nil {
			_ = t.Abort()
			return db.fail(err)
		}
	}
	db.dirty = true
	return db.fail(t.Commit())
}

// validateKeySize enforces the key limits: the slot's length field is
// 16 bits, DisableVarKeyLen pins keys to the configured size, and a
// key size of 8 or less leaves no room for an extended-key blob id.
func (db *DB) validateKeySize(n int) error {
	if n > 0xffff {
		return fmt.Errorf("key of %d bytes: %w", n, types.ErrInvalidKeySize)
	}
	if n <= db.KeySize() {
		return nil
	}
	if db.flags.Has(types.DisableVarKeyLen) {
		return fmt.Errorf("key of %d bytes exceeds keysize %d: %w",
			n, db.KeySize(), types.ErrInvalidKeySize)
	}
	if db.KeySize() <= 8 {
		return fmt.Errorf("keysize %d cannot hold extended keys: %w",
			db.KeySize(), types.ErrInvalidKeySize)
	}
	return nil
}
