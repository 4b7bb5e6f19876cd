package freelist

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

func newTestFreelist(t *testing.T) (*Freelist, *page.Page, device.Device) {
	t.Helper()
	dev := device.NewMem()
	require.NoError(t, dev.Truncate(testPageSize)) // header page storage
	hdr := page.Empty(testPageSize)
	hdr.SetType(types.PageTypeHeader)
	f := Create(hdr, dev, testPageSize, &types.Metrics{}, logging.Discard())
	return f, hdr, dev
}

func TestFreelistAllocExtendsWhenEmpty(t *testing.T) {
	f, _, dev := newTestFreelist(t)

	id, err := f.Alloc()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)

	size, err := dev.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(2*testPageSize), size)
}

func TestFreelistReleaseThenAlloc(t *testing.T) {
	f, _, _ := newTestFreelist(t)

	id1, err := f.Alloc()
	require.NoError(t, err)
	id2, err := f.Alloc()
	require.NoError(t, err)

	require.NoError(t, f.Release(id1))
	assert.True(t, f.Contains(id1))
	assert.False(t, f.Contains(id2))

	// A released page comes back before the file grows.
	got, err := f.Alloc()
	require.NoError(t, err)
	assert.Equal(t, id1, got)
	assert.False(t, f.Contains(id1))
}

func TestFreelistNoDuplicates(t *testing.T) {
	f, _, _ := newTestFreelist(t)

	id, err := f.Alloc()
	require.NoError(t, err)
	require.NoError(t, f.Release(id))
	require.NoError(t, f.Release(id))
	assert.Equal(t, 1, f.Len())
}

func TestFreelistPersistRoundtrip(t *testing.T) {
	f, hdr, dev := newTestFreelist(t)

	var released []uint64
	for i := 0; i < 3; i++ {
		id, err := f.Alloc()
		require.NoError(t, err)
		released = append(released, id)
	}
	for _, id := range released {
		require.NoError(t, f.Release(id))
	}
	require.NoError(t, f.Shutdown())
	assert.True(t, hdr.Dirty())

	loaded, err := Load(hdr, dev, testPageSize, &types.Metrics{}, logging.Discard())
	require.NoError(t, err)
	assert.Equal(t, f.Len(), loaded.Len())
	for _, id := range released {
		assert.True(t, loaded.Contains(id))
	}
}

func TestFreelistFullTruncatesTrailingPage(t *testing.T) {
	f, _, dev := newTestFreelist(t)
	f.maxSize = 2 // shrink so overflow is cheap to reach

	var ids []uint64
	for i := 0; i < 3; i++ {
		id, err := f.Alloc()
		require.NoError(t, err)
		ids = append(ids, id)
	}

	require.NoError(t, f.Release(ids[0]))
	require.NoError(t, f.Release(ids[1]))
	assert.Equal(t, 2, f.Len())

	// ids[2] is the last allocated page: a full freelist shortens the
	// file instead of recording it.
	require.NoError(t, f.Release(ids[2]))
	assert.Equal(t, 2, f.Len())
	size, err := dev.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(3*testPageSize), size)
}

func TestFreelistFullDropsInnerPage(t *testing.T) {
	metrics := &types.Metrics{}
	dev := device.NewMem()
	require.NoError(t, dev.Truncate(testPageSize))
	hdr := page.Empty(testPageSize)
	f := Create(hdr, dev, testPageSize, metrics, logging.Discard())
	f.maxSize = 1

	var ids []uint64
	for i := 0; i < 3; i++ {
		id, err := f.Alloc()
		require.NoError(t, err)
		ids = append(ids, id)
	}

	require.NoError(t, f.Release(ids[1]))
	// Full, and ids[0] is not the trailing page: it is dropped.
	require.NoError(t, f.Release(ids[0]))
	assert.Equal(t, 1, f.Len())
	assert.False(t, f.Contains(ids[0]))
	assert.Equal(t, uint64(1), metrics.FreelistDropped)
}

func TestFreelistLoadRejectsGarbage(t *testing.T) {
	dev := device.NewMem()
	require.NoError(t, dev.Truncate(testPageSize))
	hdr := page.Empty(testPageSize) // all zero: max_size 0
	_, err := Load(hdr, dev, testPageSize, &types.Metrics{}, logging.Discard())
	assert.ErrorIs(t, err, types.ErrInvalidFileHeader)
}
