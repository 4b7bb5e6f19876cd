package types

import "errors"

// Status errors of the engine. Lower layers return them verbatim; the
// database layer records the last error on the handle before
// surfacing it. Check with errors.Is: wrapping with context via
// fmt.Errorf("...: %w", err) is fine and expected.
var (
	ErrShortRead         = errors.New("short read")
	ErrShortWrite        = errors.New("short write")
	ErrInvalidKeySize    = errors.New("invalid key size")
	ErrInvalidPageSize   = errors.New("invalid page size")
	ErrAlreadyOpen       = errors.New("db already open")
	ErrOutOfMemory       = errors.New("out of memory")
	ErrInvalidBackend    = errors.New("invalid backend")
	ErrInvalidParameter  = errors.New("invalid parameter")
	ErrInvalidFileHeader = errors.New("invalid database file header")
	ErrInvalidVersion    = errors.New("invalid database file version")
	ErrKeyNotFound       = errors.New("key not found")
	ErrDuplicateKey      = errors.New("duplicate key")
	ErrIntegrityViolated = errors.New("internal integrity violated")
	ErrInternal          = errors.New("internal error")
	ErrReadOnly          = errors.New("database opened read only")
	ErrBlobNotFound      = errors.New("data blob not found")

	// ErrPrefixRequestFullkey is the prefix comparator's "cannot
	// decide" signal. It is recovered inside the btree by consulting
	// the full comparator and never reaches callers.
	ErrPrefixRequestFullkey = errors.New("comparator needs more data")
)

// ExitCode maps a status error to the CLI exit code convention:
// 0 for success, a stable non-zero code per error kind, 64 for
// anything unrecognised.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrShortRead):
		return 1
	case errors.Is(err, ErrShortWrite):
		return 2
	case errors.Is(err, ErrInvalidKeySize):
		return 3
	case errors.Is(err, ErrInvalidPageSize):
		return 4
	case errors.Is(err, ErrAlreadyOpen):
		return 5
	case errors.Is(err, ErrOutOfMemory):
		return 6
	case errors.Is(err, ErrInvalidBackend):
		return 7
	case errors.Is(err, ErrInvalidParameter):
		return 8
	case errors.Is(err, ErrInvalidFileHeader):
		return 9
	case errors.Is(err, ErrInvalidVersion):
		return 10
	case errors.Is(err, ErrKeyNotFound):
		return 11
	case errors.Is(err, ErrDuplicateKey):
		return 12
	case errors.Is(err, ErrIntegrityViolated):
		return 13
	case errors.Is(err, ErrInternal):
		return 14
	case errors.Is(err, ErrReadOnly):
		return 15
	case errors.Is(err, ErrBlobNotFound):
		return 16
	default:
		return 64
	}
}
