package btree

import (
	"HamDB/txn"
	"HamDB/types"
)

// Find locates key and returns its record pointer and key flags. The
// caller decodes inline encodings itself and goes to the blob store
// only for out-of-line records.
func (bt *BTree) Find(t *txn.Txn, key []byte) (rid uint64, keyFlags uint8, err error) {
	if bt.root == 0 {
		return 0, 0, types.ErrKeyNotFound
	}

	p, err := bt.pg.Fetch(bt.root)
	if err != nil {
		return 0, 0, err
	}
	p.SetType(types.PageTypeIndex)

	// Traverse from the root until a leaf turns up.
	for {
		n := bt.node(p)
		if n.isLeaf() {
			break
		}
		pos, err := bt.descendIndex(key, n)
		if err != nil {
			_ = bt.pg.Release(p)
			return 0, 0, err
		}
		child := n.childAt(pos)
		if err := bt.pg.Release(p); err != nil {
			return 0, 0, err
		}
		if p, err = bt.pg.Fetch(child); err != nil {
			return 0, 0, err
		}
		p.SetType(types.PageTypeIndex)
	}

	n := bt.node(p)
	idx, found, err := bt.searchSlots(key, n)
	if err == nil && !found {
		err = types.ErrKeyNotFound
	}
	if err != nil {
		_ = bt.pg.Release(p)
		return 0, 0, err
	}

	rid = n.rid(idx)
	keyFlags = n.keyFlags(idx)
	return rid, keyFlags, bt.pg.Release(p)
}
