package ham

import "HamDB/types"

// Cursor is a placeholder traversal handle. The database tracks open
// cursors in an index-keyed registry so close can invalidate them;
// movement beyond what find/insert/erase need is not implemented
// here.
type Cursor struct {
	db     *DB
	id     uint64
	closed bool
}

// CursorCreate registers a new cursor on the handle.
func (db *DB) CursorCreate() (*Cursor, error) {
	if db.closed {
		return nil, db.fail(types.ErrInvalidParameter)
	}
	db.nextCursor++
	c := &Cursor{db: db, id: db.nextCursor}
	db.cursors[c.id] = c
	return c, nil
}

// Clone registers a copy of the cursor.
func (c *Cursor) Clone() (*Cursor, error) {
	if c.closed {
		return nil, c.db.fail(types.ErrInvalidParameter)
	}
	return c.db.CursorCreate()
}

// Close removes the cursor from the registry. Closing twice is fine.
func (c *Cursor) Close() {
	if c.closed {
		return
	}
	delete(c.db.cursors, c.id)
	c.close()
}

func (c *Cursor) close() {
	c.closed = true
}
