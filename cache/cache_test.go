package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"HamDB/device"
	"HamDB/logging"
	"HamDB/page"
	"HamDB/types"
)

const testPageSize = 512

// newTestCache builds a cache over a mem device pre-sized to hold
// numPages zeroed pages.
func newTestCache(t *testing.T, capacity, numPages int) (*Cache, device.Device, *types.Metrics) {
	t.Helper()
	dev := device.NewMem()
	require.NoError(t, dev.Truncate(int64(numPages*testPageSize)))
	metrics := &types.Metrics{}
	return New(dev, capacity, testPageSize, metrics, logging.Discard()), dev, metrics
}

func TestCacheFetchHitMiss(t *testing.T) {
	c, _, metrics := newTestCache(t, 4, 4)

	p, err := c.Fetch(1)
	require.NoError(t, err)
	require.NoError(t, c.Release(p))
	assert.Equal(t, uint64(1), metrics.CacheMisses)

	p2, err := c.Fetch(1)
	require.NoError(t, err)
	require.NoError(t, c.Release(p2))
	assert.Equal(t, uint64(1), metrics.CacheHits)
	assert.Same(t, p, p2)
}

func TestCacheEvictsLRU(t *testing.T) {
	c, _, _ := newTestCache(t, 2, 4)

	for _, id := range []uint64{1, 2} {
		p, err := c.Fetch(id)
		require.NoError(t, err)
		require.NoError(t, c.Release(p))
	}

	// Touch 1 so 2 becomes the LRU victim.
	p, err := c.Fetch(1)
	require.NoError(t, err)
	require.NoError(t, c.Release(p))

	p3, err := c.Fetch(3)
	require.NoError(t, err)
	require.NoError(t, c.Release(p3))

	assert.True(t, c.Contains(1))
	assert.False(t, c.Contains(2))
	assert.True(t, c.Contains(3))
	assert.Equal(t, 2, c.Len())
}

func TestCacheEvictionWritesDirtyVictim(t *testing.T) {
	c, dev, _ := newTestCache(t, 1, 4)

	p, err := c.Fetch(1)
	require.NoError(t, err)
	p.Payload()[0] = 0xab
	p.SetDirty(true)
	require.NoError(t, c.Release(p))

	// Fetching another page evicts page 1, writing it back first.
	p2, err := c.Fetch(2)
	require.NoError(t, err)
	require.NoError(t, c.Release(p2))
	assert.False(t, c.Contains(1))

	onDisk := make([]byte, testPageSize)
	require.NoError(t, dev.ReadAt(1*testPageSize, onDisk))
	assert.Equal(t, byte(0xab), onDisk[types.PageHeaderSize])
}

func TestCachePinPreventsEviction(t *testing.T) {
	c, _, metrics := newTestCache(t, 1, 4)

	p, err := c.Fetch(1)
	require.NoError(t, err)
	// Held pinned: the next fetch cannot evict it and overflows.
	p2, err := c.Fetch(2)
	require.NoError(t, err)

	assert.True(t, c.Contains(1))
	assert.True(t, c.Contains(2))
	assert.Equal(t, uint64(1), metrics.CacheOverflows)

	require.NoError(t, c.Release(p))
	require.NoError(t, c.Release(p2))
}

func TestCacheCapacityZeroWritesThrough(t *testing.T) {
	c, dev, _ := newTestCache(t, 0, 4)

	p, err := c.Fetch(1)
	require.NoError(t, err)
	p.Payload()[0] = 0x7f
	p.SetDirty(true)
	require.NoError(t, c.Release(p))

	// Nothing stays resident and the write hit the device already.
	assert.Equal(t, 0, c.Len())
	onDisk := make([]byte, testPageSize)
	require.NoError(t, dev.ReadAt(1*testPageSize, onDisk))
	assert.Equal(t, byte(0x7f), onDisk[types.PageHeaderSize])
}

func TestCacheFlushAll(t *testing.T) {
	c, dev, _ := newTestCache(t, 4, 4)

	p, err := c.Fetch(2)
	require.NoError(t, err)
	p.Payload()[1] = 0x11
	p.SetDirty(true)
	require.NoError(t, c.Release(p))

	require.NoError(t, c.FlushAll(types.PageTypeUnknown, false))
	assert.False(t, p.Dirty())
	assert.True(t, c.Contains(2))

	onDisk := make([]byte, testPageSize)
	require.NoError(t, dev.ReadAt(2*testPageSize, onDisk))
	assert.Equal(t, byte(0x11), onDisk[types.PageHeaderSize+1])
}

func TestCacheIntegrity(t *testing.T) {
	c, _, _ := newTestCache(t, 4, 4)

	p, err := c.Fetch(1)
	require.NoError(t, err)
	require.NoError(t, c.Release(p))

	require.NoError(t, c.CheckIntegrity(nil))

	// A cached page that the freelist also claims is a violation.
	err = c.CheckIntegrity(func(id uint64) bool { return id == 1 })
	assert.ErrorIs(t, err, types.ErrIntegrityViolated)

	// A clean page whose bytes differ from disk is a violation too.
	p.Payload()[0] = 0xff // mutated but not marked dirty
	err = c.CheckIntegrity(nil)
	assert.ErrorIs(t, err, types.ErrIntegrityViolated)
}

func TestCacheDiscard(t *testing.T) {
	c, dev, _ := newTestCache(t, 4, 4)

	p, err := c.Fetch(3)
	require.NoError(t, err)
	p.Payload()[0] = 0xcc
	p.SetDirty(true)
	c.Discard(3)
	p.SetDirty(false)
	require.NoError(t, c.Release(p))

	// Discarded content never reaches the device.
	onDisk := make([]byte, testPageSize)
	require.NoError(t, dev.ReadAt(3*testPageSize, onDisk))
	assert.Equal(t, byte(0), onDisk[types.PageHeaderSize])
	assert.False(t, c.Contains(3))
}

func TestHeaderStaysResident(t *testing.T) {
	c, _, _ := newTestCache(t, 1, 4)

	hdr := page.Empty(testPageSize)
	hdr.SetID(0)
	hdr.SetType(types.PageTypeHeader)
	require.NoError(t, c.Put(hdr)) // pinned by Put, never released

	for id := uint64(1); id < 4; id++ {
		p, err := c.Fetch(id)
		require.NoError(t, err)
		require.NoError(t, c.Release(p))
	}
	assert.True(t, c.Contains(0))
}
