package blob

import (
	"encoding/binary"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/ristretto/v2"

	"HamDB/page"
	"HamDB/pager"
	"HamDB/txn"
	"HamDB/types"
)

/*

Records too large for an inline encoding are materialised out-of-line
as blobs. A blob is a chain of BLOB pages; the blob id is the first
page id. Blob page payload:

─────────────────────────────────────────
| next page id (8) | size (4) | data    |
─────────────────────────────────────────

size is the number of data bytes stored in this page; next is 0 on the
last page. Blobs are not shared between keys, so freeing on erase is
unconditional.

*/

const chunkHeaderSize = 12

// Store allocates, reads and frees blobs through the pager. Reads go
// through a small ristretto cache keyed by blob id; a freed blob id
// is deleted from it before the pages go back to the freelist, since
// the id can be reallocated for a different blob.
type Store struct {
	pg      *pager.Pager
	reads   *ristretto.Cache[uint64, []byte]
	metrics *types.Metrics
	log     *slog.Logger
}

func NewStore(pg *pager.Pager, metrics *types.Metrics, log *slog.Logger) (*Store, error) {
	reads, err := ristretto.NewCache(&ristretto.Config[uint64, []byte]{
		NumCounters: 1 << 12,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create blob read cache: %w", err)
	}
	return &Store{pg: pg, reads: reads, metrics: metrics, log: log}, nil
}

// chunkCapacity is the data room of one blob page.
func (s *Store) chunkCapacity() int {
	return s.pg.PageSize - types.PageHeaderSize - chunkHeaderSize
}

// Alloc writes data as a chain of blob pages and returns the first
// page id. A failure mid-chain frees the provisional pages before
// returning.
func (s *Store) Alloc(t *txn.Txn, data []byte) (uint64, error) {
	first, err := s.pg.Alloc(types.PageTypeBlob, false)
	if err != nil {
		return 0, err
	}

	held := []*page.Page{first}
	freeHeld := func() {
		for _, p := range held {
			_ = s.pg.FreePage(p)
		}
	}

	cur := first
	remaining := data
	for {
		n := len(remaining)
		if n > s.chunkCapacity() {
			n = s.chunkCapacity()
		}
		payload := cur.Payload()
		binary.LittleEndian.PutUint32(payload[8:12], uint32(n))
		copy(payload[chunkHeaderSize:], remaining[:n])
		cur.SetDirty(true)
		remaining = remaining[n:]

		if len(remaining) == 0 {
			binary.LittleEndian.PutUint64(payload[0:8], 0)
			break
		}
		next, err := s.pg.Alloc(types.PageTypeBlob, false)
		if err != nil {
			freeHeld()
			return 0, err
		}
		held = append(held, next)
		binary.LittleEndian.PutUint64(payload[0:8], next.ID())
		cur = next
	}

	for _, p := range held {
		if err := s.pg.Release(p); err != nil {
			return 0, err
		}
	}
	s.metrics.BlobsAllocated++
	return first.ID(), nil
}

// Read materialises the blob into the transaction's record arena and
// returns the arena-backed bytes.
func (s *Store) Read(t *txn.Txn, blobID uint64) ([]byte, error) {
	return s.ReadInto(t.RecArena, blobID)
}

// ReadInto materialises the blob into the given arena. The btree uses
// this with its own scratch arena for extended keys.
func (s *Store) ReadInto(arena *txn.Arena, blobID uint64) ([]byte, error) {
	s.metrics.BlobsRead++
	if cached, ok := s.reads.Get(blobID); ok {
		s.metrics.BlobCacheHits++
		return arena.Copy(cached), nil
	}

	chunks, total, err := s.walk(blobID, nil)
	if err != nil {
		return nil, err
	}

	out := arena.Alloc(total)
	off := 0
	for _, c := range chunks {
		off += copy(out[off:], c)
	}

	s.reads.Set(blobID, append([]byte(nil), out...), int64(total))
	s.reads.Wait()
	return out, nil
}

// Free returns every page of the blob to the freelist.
func (s *Store) Free(t *txn.Txn, blobID uint64) error {
	var ids []uint64
	if _, _, err := s.walk(blobID, func(id uint64) { ids = append(ids, id) }); err != nil {
		return err
	}
	// The id may be handed out again for a different blob.
	s.reads.Del(blobID)
	s.reads.Wait()

	for _, id := range ids {
		if err := s.pg.FreeID(id); err != nil {
			return err
		}
	}
	return nil
}

// Close drops the read cache.
func (s *Store) Close() {
	s.reads.Close()
}

// walk follows the page chain starting at blobID, validating ids and
// sizes, and returns the chunk slices and total length. visit, if
// set, is called with every page id on the chain.
func (s *Store) walk(blobID uint64, visit func(id uint64)) ([][]byte, int, error) {
	size, err := s.pg.Dev.Size()
	if err != nil {
		return nil, 0, err
	}
	allocated := uint64(size) / uint64(s.pg.PageSize)

	var chunks [][]byte
	var held []*page.Page
	defer func() {
		for _, p := range held {
			_ = s.pg.Release(p)
		}
	}()

	total := 0
	id := blobID
	for steps := uint64(0); ; steps++ {
		if id == 0 || id >= allocated || steps > allocated {
			return nil, 0, fmt.Errorf("blob %d broken at page %d: %w",
				blobID, id, types.ErrBlobNotFound)
		}
		p, err := s.pg.Fetch(id)
		if err != nil {
			return nil, 0, err
		}
		held = append(held, p)
		p.SetType(types.PageTypeBlob)
		if visit != nil {
			visit(id)
		}

		payload := p.Payload()
		next := binary.LittleEndian.Uint64(payload[0:8])
		n := int(binary.LittleEndian.Uint32(payload[8:12]))
		if n > s.chunkCapacity() {
			return nil, 0, fmt.Errorf("blob %d chunk of %d bytes at page %d: %w",
				blobID, n, id, types.ErrBlobNotFound)
		}
		chunks = append(chunks, payload[chunkHeaderSize:chunkHeaderSize+n])
		total += n

		if next == 0 {
			return chunks, total, nil
		}
		id = next
	}
}
