package btree

import (
	"HamDB/txn"
	"HamDB/types"
)

// Visitor receives every live key in comparator order together with
// its record pointer and key flags.
type Visitor func(key []byte, rid uint64, keyFlags uint8) error

// Scan walks the tree in order, calling visitor for every key. The
// key slice is only valid during the call. distinct is accepted for
// interface compatibility; without duplicate keys every key is
// distinct already.
func (bt *BTree) Scan(t *txn.Txn, visitor Visitor, distinct bool) error {
	return bt.scanNode(t, bt.root, visitor)
}

func (bt *BTree) scanNode(t *txn.Txn, id uint64, visitor Visitor) error {
	p, err := bt.pg.Fetch(id)
	if err != nil {
		return err
	}
	p.SetType(types.PageTypeIndex)
	defer func() { _ = bt.pg.Release(p) }()

	n := bt.node(p)
	if n.isLeaf() {
		for i := 0; i < n.count(); i++ {
			key, err := bt.materialiseKey(n, i)
			if err != nil {
				return err
			}
			if err := visitor(key, n.rid(i), n.keyFlags(i)); err != nil {
				return err
			}
		}
		return nil
	}

	for i := 0; i < n.count(); i++ {
		if err := bt.scanNode(t, n.rid(i), visitor); err != nil {
			return err
		}
	}
	return bt.scanNode(t, n.right(), visitor)
}

// Dump feeds every key to cb, in order. The database supplies a hex
// dumping default when the caller passes none.
func (bt *BTree) Dump(t *txn.Txn, cb func(key []byte)) error {
	return bt.Scan(t, func(key []byte, rid uint64, keyFlags uint8) error {
		cb(key)
		return nil
	}, false)
}
