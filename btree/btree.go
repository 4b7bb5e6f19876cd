// Package btree implements the ordered index backend: a paged B-tree
// mapping variable-length keys to 8-byte record pointers.
/*

Tree
 ├── Internal node (separator keys + child pointers + rightmost child)
 │      └── ...
 │             └── Leaf nodes (keys + record pointers)

- keys: sorted ascending by the installed comparator
- internal nodes: the child at slot i holds keys strictly less than
  slot i's key; the rightmost child holds keys >= the last key
- all leaf nodes at the same depth
- records never live in internal nodes; internal slots reuse the
  record pointer field as the child page id

*/
package btree

import (
	"bytes"
	"log/slog"

	"HamDB/blob"
	"HamDB/pager"
	"HamDB/txn"
	"HamDB/types"
)

// BTree is the index backend. It owns the root page id; the database
// persists it in the header through the OnRootChange hook.
type BTree struct {
	pg        *pager.Pager
	blobs     *blob.Store
	keySize   int
	maxKeys   int
	minKeys   int
	cmp       types.CompareFunc
	prefixCmp types.PrefixCompareFunc
	root      uint64

	// onRootChange tells the owner the root page id moved.
	onRootChange func(uint64)

	// scratch for materialising extended keys during comparisons, so
	// the transaction arenas stay free for the caller's key/record.
	extArena txn.Arena

	metrics *types.Metrics
	log     *slog.Logger
}

type Config struct {
	KeySize       uint16
	Root          uint64
	Compare       types.CompareFunc
	PrefixCompare types.PrefixCompareFunc
	OnRootChange  func(uint64)
}

// DefaultCompare is unsigned byte-wise lexicographic order with the
// length as tiebreaker.
func DefaultCompare(lhs, rhs []byte) int {
	return bytes.Compare(lhs, rhs)
}

func New(pg *pager.Pager, blobs *blob.Store, cfg Config, metrics *types.Metrics, log *slog.Logger) *BTree {
	bt := &BTree{
		pg:           pg,
		blobs:        blobs,
		keySize:      int(cfg.KeySize),
		cmp:          cfg.Compare,
		prefixCmp:    cfg.PrefixCompare,
		root:         cfg.Root,
		onRootChange: cfg.OnRootChange,
		metrics:      metrics,
		log:          log,
	}
	if bt.cmp == nil {
		bt.cmp = DefaultCompare
	}
	bt.maxKeys = (pg.PageSize - types.PageHeaderSize - nodeHeaderSize) / bt.slotSize()
	bt.minKeys = bt.maxKeys / 2
	return bt
}

// Create allocates the root leaf of a fresh database.
func (bt *BTree) Create() error {
	p, err := bt.pg.Alloc(types.PageTypeIndex, false)
	if err != nil {
		return err
	}
	n := bt.node(p)
	n.init(true)
	bt.setRoot(p.ID())
	return bt.pg.Release(p)
}

// Open wires up a backend over an existing file; the root id came
// from the header via Config.Root.
func (bt *BTree) Open() error {
	if bt.root == 0 {
		return types.ErrInvalidFileHeader
	}
	return nil
}

// Close releases backend resources. Pages are flushed by the cache,
// not here.
func (bt *BTree) Close() error { return nil }

// Root returns the current root page id.
func (bt *BTree) Root() uint64 { return bt.root }

// MaxKeys returns the per-node slot capacity.
func (bt *BTree) MaxKeys() int { return bt.maxKeys }

func (bt *BTree) setRoot(id uint64) {
	bt.root = id
	if bt.onRootChange != nil {
		bt.onRootChange(id)
	}
}

// SetCompare installs the comparators. Must not change once keys are
// stored.
func (bt *BTree) SetCompare(cmp types.CompareFunc, prefix types.PrefixCompareFunc) {
	if cmp != nil {
		bt.cmp = cmp
	}
	bt.prefixCmp = prefix
}
