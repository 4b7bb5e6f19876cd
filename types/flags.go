package types

// Flag holds the database configuration flags. The persistent subset
// is stored in the header page and restored on open.
type Flag uint32

const (
	// ReadOnly opens the database for reads; every mutating call
	// fails with ErrReadOnly.
	ReadOnly Flag = 1 << 0
	// InMemory keeps all pages in an in-memory device; nothing is
	// written to disk. Rejected on open.
	InMemory Flag = 1 << 1
	// DisableVarKeyLen rejects keys longer than the configured key
	// size with ErrInvalidKeySize instead of spilling them into
	// extended-key blobs.
	DisableVarKeyLen Flag = 1 << 2
)

func (f Flag) Has(mask Flag) bool { return f&mask != 0 }

// Key flags stored per slot. They qualify how the 8-byte record
// pointer of the slot is interpreted.
const (
	// KeyBlobSizeTiny: record is 1..7 bytes packed into the record
	// pointer, length in the pointer's high byte.
	KeyBlobSizeTiny uint8 = 1 << 0
	// KeyBlobSizeSmall: record is exactly 8 bytes occupying the whole
	// record pointer.
	KeyBlobSizeSmall uint8 = 1 << 1
	// KeyBlobSizeEmpty: record is empty; the record pointer is unused.
	KeyBlobSizeEmpty uint8 = 1 << 2
	// KeyExtended: the key itself did not fit the slot; the tail of
	// the inline key area holds the blob id of the full key bytes.
	KeyExtended uint8 = 1 << 3
)

// InlineRecord reports whether the key flags describe a record that
// lives inside the record pointer word rather than in a blob. The
// same predicate routes find (materialise from the pointer) and
// erase (skip the blob free).
func InlineRecord(keyFlags uint8) bool {
	return keyFlags&(KeyBlobSizeTiny|KeyBlobSizeSmall|KeyBlobSizeEmpty) != 0
}
