package cache

import (
	"fmt"

	"github.com/cespare/xxhash/v2"

	"HamDB/types"
)

// CheckIntegrity verifies the cache against the device and the
// freelist. isFree answers whether a page id is currently on the
// freelist. Violations:
//
//   - a cached page that is also free
//   - a dirty page without allocated storage behind it
//   - a clean, unpinned page whose bytes differ from the on-disk copy
//     (detected by hashing both sides)
//
// Returns the first violation wrapped in types.ErrIntegrityViolated.
func (c *Cache) CheckIntegrity(isFree func(id uint64) bool) error {
	size, err := c.dev.Size()
	if err != nil {
		return err
	}
	allocated := uint64(size) / uint64(c.pageSize)

	for id, p := range c.pages {
		if isFree != nil && isFree(id) {
			return fmt.Errorf("page %d is cached but on the freelist: %w",
				id, types.ErrIntegrityViolated)
		}
		if p.Dirty() {
			if id >= allocated {
				return fmt.Errorf("dirty page %d has no storage (file holds %d pages): %w",
					id, allocated, types.ErrIntegrityViolated)
			}
			continue
		}
		// A page is dirty iff its payload differs from disk; verify
		// the "only if" half for clean resident pages.
		if p.Pinned() || id >= allocated {
			continue
		}
		onDisk := make([]byte, c.pageSize)
		if err := c.dev.ReadAt(int64(id)*int64(c.pageSize), onDisk); err != nil {
			return err
		}
		if xxhash.Sum64(onDisk) != xxhash.Sum64(p.Data()) {
			return fmt.Errorf("clean page %d diverges from its on-disk bytes: %w",
				id, types.ErrIntegrityViolated)
		}
	}
	return nil
}
