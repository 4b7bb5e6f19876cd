package txn

// A Txn scopes one logical database operation. It holds no persistent
// state: its job is owning the scratch arenas that returned keys and
// records point into, so their lifetime is the transaction. Temporary
// transactions (the ones the database opens around a single call)
// borrow the database's own arenas instead, so pointers stay valid
// until the next call.
type Txn struct {
	Flags     Flag
	KeyArena  *Arena
	RecArena  *Arena
	committed bool
	aborted   bool
}

type Flag uint32

const (
	// Temporary marks the implicit per-operation transaction.
	Temporary Flag = 1 << 0
)

// Begin opens a transaction. keys/records are the arenas to use; the
// database passes its own arenas for temporary transactions.
func Begin(flags Flag, keys, records *Arena) *Txn {
	return &Txn{Flags: flags, KeyArena: keys, RecArena: records}
}

// Commit ends the transaction. Scratch contents stay valid until the
// owning arena is next reset; no pages are flushed here.
func (t *Txn) Commit() error {
	t.committed = true
	return nil
}

// Abort ends the transaction. It does not clear the arenas and does
// not undo changes the operation already made to cached pages.
func (t *Txn) Abort() error {
	t.aborted = true
	return nil
}

func (t *Txn) Temporary() bool { return t.Flags&Temporary != 0 }

// Arena is a grow-only scratch buffer. Alloc hands out a slice of the
// requested size, reusing the backing array across operations; the
// caller must consume it before the next call that might Alloc again.
type Arena struct {
	buf []byte
}

// Alloc returns a length-n slice into the arena. n == 0 still returns
// a valid non-nil slice.
func (a *Arena) Alloc(n int) []byte {
	if a.buf == nil || cap(a.buf) < n {
		c := n
		if c < 8 {
			c = 8
		}
		a.buf = make([]byte, c)
	}
	a.buf = a.buf[:n]
	return a.buf
}

// Copy places data into the arena and returns the arena-backed copy.
func (a *Arena) Copy(data []byte) []byte {
	dst := a.Alloc(len(data))
	copy(dst, data)
	return dst
}
