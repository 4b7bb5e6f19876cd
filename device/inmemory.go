package device

import (
	"fmt"

	"HamDB/types"
)

// MemDevice keeps the whole database in one growable byte slice.
// Backs InMemory databases; nothing ever reaches the filesystem.
type MemDevice struct {
	data   []byte
	closed bool
}

func NewMem() *MemDevice {
	return &MemDevice{}
}

func (d *MemDevice) ReadAt(offset int64, buf []byte) error {
	if d.closed {
		return fmt.Errorf("mem device is closed: %w", types.ErrInternal)
	}
	end := offset + int64(len(buf))
	if offset < 0 || end > int64(len(d.data)) {
		return fmt.Errorf("read of %d bytes at %d beyond size %d: %w",
			len(buf), offset, len(d.data), types.ErrShortRead)
	}
	copy(buf, d.data[offset:end])
	return nil
}

func (d *MemDevice) WriteAt(offset int64, buf []byte) error {
	if d.closed {
		return fmt.Errorf("mem device is closed: %w", types.ErrInternal)
	}
	end := offset + int64(len(buf))
	if end > int64(len(d.data)) {
		grown := make([]byte, end)
		copy(grown, d.data)
		d.data = grown
	}
	copy(d.data[offset:end], buf)
	return nil
}

func (d *MemDevice) Truncate(size int64) error {
	if size < 0 {
		return fmt.Errorf("negative size %d: %w", size, types.ErrInvalidParameter)
	}
	if size <= int64(len(d.data)) {
		d.data = d.data[:size]
		return nil
	}
	grown := make([]byte, size)
	copy(grown, d.data)
	d.data = grown
	return nil
}

func (d *MemDevice) Size() (int64, error) {
	return int64(len(d.data)), nil
}

func (d *MemDevice) Sync() error { return nil }

func (d *MemDevice) Close() error {
	d.closed = true
	d.data = nil
	return nil
}
