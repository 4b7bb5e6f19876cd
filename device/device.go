package device

import (
	"fmt"
	"io"
	"os"

	"HamDB/types"
)

/*

The device owns the OS file handle and moves raw bytes at explicit
offsets (ReadAt, WriteAt). It does no buffering of its own; the page
cache is the only buffer between the engine and the file. All I/O is
page aligned except the 512-byte pre-header probe that open() issues
before the real page size is known.

*/

// Device is the byte-addressed block I/O abstraction under the page
// cache. Implementations: FileDevice (a single os.File) and
// MemDevice (in-memory databases).
type Device interface {
	// ReadAt fills buf from the given offset. Fails with
	// types.ErrShortRead when fewer bytes are available.
	ReadAt(offset int64, buf []byte) error
	// WriteAt writes buf at the given offset, extending the device
	// if needed. Fails with types.ErrShortWrite on partial writes.
	WriteAt(offset int64, buf []byte) error
	// Truncate resizes the device to exactly size bytes.
	Truncate(size int64) error
	// Size returns the current device size in bytes.
	Size() (int64, error)
	// Sync flushes pending writes to stable storage.
	Sync() error
	// Close releases the handle. The device must not be used after.
	Close() error
}

// FileDevice is the file-backed device.
type FileDevice struct {
	file *os.File
	path string
}

// Open opens an existing database file. With readOnly the handle
// rejects writes at the OS level.
func Open(path string, readOnly bool) (*FileDevice, error) {
	mode := os.O_RDWR
	if readOnly {
		mode = os.O_RDONLY
	}
	file, err := os.OpenFile(path, mode, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return &FileDevice{file: file, path: path}, nil
}

// Create creates a new database file with the given permission bits,
// truncating anything already at path.
func Create(path string, mode os.FileMode) (*FileDevice, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	return &FileDevice{file: file, path: path}, nil
}

func (d *FileDevice) ReadAt(offset int64, buf []byte) error {
	if d.file == nil {
		return fmt.Errorf("device %s is closed: %w", d.path, types.ErrInternal)
	}
	n, err := d.file.ReadAt(buf, offset)
	if err != nil {
		if err == io.EOF && n == len(buf) {
			return nil
		}
		return fmt.Errorf("read of %d bytes at %d got %d: %w", len(buf), offset, n, types.ErrShortRead)
	}
	return nil
}

func (d *FileDevice) WriteAt(offset int64, buf []byte) error {
	if d.file == nil {
		return fmt.Errorf("device %s is closed: %w", d.path, types.ErrInternal)
	}
	n, err := d.file.WriteAt(buf, offset)
	if err != nil || n != len(buf) {
		return fmt.Errorf("write of %d bytes at %d got %d: %w", len(buf), offset, n, types.ErrShortWrite)
	}
	return nil
}

func (d *FileDevice) Truncate(size int64) error {
	if err := d.file.Truncate(size); err != nil {
		return fmt.Errorf("failed to truncate %s to %d: %w", d.path, size, err)
	}
	return nil
}

func (d *FileDevice) Size() (int64, error) {
	stat, err := d.file.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to stat %s: %w", d.path, err)
	}
	return stat.Size(), nil
}

func (d *FileDevice) Sync() error {
	return d.file.Sync()
}

func (d *FileDevice) Close() error {
	if d.file == nil {
		return nil // already closed
	}
	err := d.file.Close()
	d.file = nil
	return err
}
