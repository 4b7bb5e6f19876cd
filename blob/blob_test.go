package blob

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"HamDB/cache"
	"HamDB/device"
	"HamDB/freelist"
	"HamDB/logging"
	"HamDB/page"
	"HamDB/pager"
	"HamDB/txn"
	"HamDB/types"
)

const testPageSize = 512

func newTestStore(t *testing.T) (*Store, *pager.Pager, *types.Metrics) {
	t.Helper()
	dev := device.NewMem()
	require.NoError(t, dev.Truncate(testPageSize)) // header page
	hdr := page.Empty(testPageSize)
	hdr.SetType(types.PageTypeHeader)

	metrics := &types.Metrics{}
	log := logging.Discard()
	c := cache.New(dev, 16, testPageSize, metrics, log)
	require.NoError(t, c.Put(hdr))

	pg := &pager.Pager{
		Dev:      dev,
		Cache:    c,
		Free:     freelist.Create(hdr, dev, testPageSize, metrics, log),
		PageSize: testPageSize,
		Metrics:  metrics,
		Log:      log,
	}
	s, err := NewStore(pg, metrics, log)
	require.NoError(t, err)
	return s, pg, metrics
}

func newTxn() *txn.Txn {
	return txn.Begin(txn.Temporary, &txn.Arena{}, &txn.Arena{})
}

func TestBlobRoundtrip(t *testing.T) {
	s, _, _ := newTestStore(t)
	tx := newTxn()

	data := []byte("a record that does not fit inline")
	id, err := s.Alloc(tx, data)
	require.NoError(t, err)
	require.NotZero(t, id)

	got, err := s.Read(tx, id)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestBlobSpansPages(t *testing.T) {
	s, pg, _ := newTestStore(t)
	tx := newTxn()

	// Three chunks worth of data.
	data := bytes.Repeat([]byte{0x5a}, (testPageSize-types.PageHeaderSize-chunkHeaderSize)*2+10)
	id, err := s.Alloc(tx, data)
	require.NoError(t, err)

	got, err := s.Read(tx, id)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	// Freeing hands all three pages back to the freelist.
	require.NoError(t, s.Free(tx, id))
	assert.Equal(t, 3, pg.Free.Len())
}

func TestBlobFreeAllowsReuse(t *testing.T) {
	s, pg, _ := newTestStore(t)
	tx := newTxn()

	first := bytes.Repeat([]byte{1}, 100)
	id, err := s.Alloc(tx, first)
	require.NoError(t, err)
	require.NoError(t, s.Free(tx, id))

	// The freed page is reused for the next blob, and the read cache
	// must not serve the old contents under the recycled id.
	second := bytes.Repeat([]byte{2}, 100)
	id2, err := s.Alloc(tx, second)
	require.NoError(t, err)
	assert.Equal(t, id, id2)
	assert.Equal(t, 0, pg.Free.Len())

	got, err := s.Read(tx, id2)
	require.NoError(t, err)
	assert.Equal(t, second, got)
}

func TestBlobReadCacheHit(t *testing.T) {
	s, _, metrics := newTestStore(t)
	tx := newTxn()

	data := bytes.Repeat([]byte{7}, 64)
	id, err := s.Alloc(tx, data)
	require.NoError(t, err)

	first, err := s.Read(tx, id)
	require.NoError(t, err)
	firstCopy := append([]byte(nil), first...)

	again, err := s.Read(tx, id)
	require.NoError(t, err)
	assert.Equal(t, firstCopy, again)
	assert.Equal(t, uint64(1), metrics.BlobCacheHits)
}

func TestBlobNotFound(t *testing.T) {
	s, _, _ := newTestStore(t)
	tx := newTxn()

	_, err := s.Read(tx, 0)
	assert.ErrorIs(t, err, types.ErrBlobNotFound)

	_, err = s.Read(tx, 99)
	assert.ErrorIs(t, err, types.ErrBlobNotFound)
}
