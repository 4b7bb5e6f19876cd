package btree

import (
	"HamDB/txn"
	"HamDB/types"
)

// Insert stores key with the given record pointer and record-class
// flags. Duplicate keys fail with ErrDuplicateKey. Full nodes split
// on the way back up; a root split grows the tree by one level.
func (bt *BTree) Insert(t *txn.Txn, key []byte, rid uint64, recFlags uint8) error {
	pr, err := bt.insertInto(t, bt.root, key, rid, recFlags)
	if err != nil {
		return err
	}
	if pr == nil {
		return nil
	}

	// The root split: the new root's single slot points at the old
	// root, the rightmost child at its new sibling.
	rootPage, err := bt.pg.Alloc(types.PageTypeIndex, false)
	if err != nil {
		return err
	}
	root := bt.node(rootPage)
	root.init(false)
	root.insertSlotAt(0)
	bt.writeSeparator(root, 0, pr)
	root.setRid(0, bt.root)
	root.setRight(pr.rightID)
	bt.setRoot(rootPage.ID())
	return bt.pg.Release(rootPage)
}

func (bt *BTree) insertInto(t *txn.Txn, id uint64, key []byte, rid uint64, recFlags uint8) (*promo, error) {
	p, err := bt.pg.Fetch(id)
	if err != nil {
		return nil, err
	}
	p.SetType(types.PageTypeIndex)
	defer func() { _ = bt.pg.Release(p) }()

	n := bt.node(p)
	if n.isLeaf() {
		return bt.insertIntoLeaf(t, n, key, rid, recFlags)
	}

	pos, err := bt.descendIndex(key, n)
	if err != nil {
		return nil, err
	}
	pr, err := bt.insertInto(t, n.childAt(pos), key, rid, recFlags)
	if err != nil || pr == nil {
		return nil, err
	}
	return bt.insertSeparator(t, n, pos, pr)
}

func (bt *BTree) insertIntoLeaf(t *txn.Txn, n node, key []byte, rid uint64, recFlags uint8) (*promo, error) {
	idx, found, err := bt.searchSlots(key, n)
	if err != nil {
		return nil, err
	}
	if found {
		return nil, types.ErrDuplicateKey
	}

	if n.count() < bt.maxKeys {
		if err := bt.fillLeafSlot(t, n, idx, key, rid, recFlags); err != nil {
			return nil, err
		}
		return nil, nil
	}

	// The leaf is full: move the upper half to a new sibling, insert
	// into whichever half owns the position, and promote a copy of
	// the sibling's first key.
	rightNode, err := bt.splitNode(n, true)
	if err != nil {
		return nil, err
	}
	defer func() { _ = bt.pg.Release(rightNode.p) }()

	mid := n.count()
	if idx <= mid {
		err = bt.fillLeafSlot(t, n, idx, key, rid, recFlags)
	} else {
		err = bt.fillLeafSlot(t, rightNode, idx-mid, key, rid, recFlags)
	}
	if err != nil {
		return nil, err
	}

	pr, err := bt.dupSeparator(t, rightNode, 0)
	if err != nil {
		return nil, err
	}
	pr.rightID = rightNode.p.ID()
	bt.metrics.BtreeSplits++
	return pr, nil
}

// fillLeafSlot opens slot idx and writes key, record pointer and
// flags. A failed extended-key allocation closes the slot again so
// the node stays consistent.
func (bt *BTree) fillLeafSlot(t *txn.Txn, n node, idx int, key []byte, rid uint64, recFlags uint8) error {
	n.insertSlotAt(idx)
	extFlags, err := bt.encodeKey(t, n, idx, key)
	if err != nil {
		n.removeSlotAt(idx)
		return err
	}
	n.setKeyFlags(idx, recFlags|extFlags)
	n.setRid(idx, rid)
	return nil
}

// insertSeparator places a promoted separator into an internal node
// at child position pos, splitting this node too when full.
func (bt *BTree) insertSeparator(t *txn.Txn, n node, pos int, pr *promo) (*promo, error) {
	if n.count() < bt.maxKeys {
		bt.placeSeparator(n, pos, pr)
		return nil, nil
	}

	mid := n.count() / 2
	up := bt.takeSeparator(n, mid)

	rightNode, err := bt.splitInternal(n, mid)
	if err != nil {
		return nil, err
	}
	defer func() { _ = bt.pg.Release(rightNode.p) }()

	if pos <= mid {
		bt.placeSeparator(n, pos, pr)
	} else {
		bt.placeSeparator(rightNode, pos-mid-1, pr)
	}

	up.rightID = rightNode.p.ID()
	bt.metrics.BtreeSplits++
	return up, nil
}

// placeSeparator inserts the separator slot at pos: the new slot
// keeps pointing at the child that split, the following pointer is
// redirected to the new sibling.
func (bt *BTree) placeSeparator(n node, pos int, pr *promo) {
	splitChild := n.childAt(pos)
	n.insertSlotAt(pos)
	bt.writeSeparator(n, pos, pr)
	n.setRid(pos, splitChild)
	n.setChildAt(pos+1, pr.rightID)
}

// splitNode allocates a sibling and moves the upper half of n's slots
// into it. Returns the new node pinned.
func (bt *BTree) splitNode(n node, leaf bool) (node, error) {
	p, err := bt.pg.Alloc(types.PageTypeIndex, false)
	if err != nil {
		return node{}, err
	}
	rightNode := bt.node(p)
	rightNode.init(leaf)

	count := n.count()
	mid := (count + 1) / 2
	moveSlots(rightNode, n, mid, count-mid)
	n.setCount(mid)
	return rightNode, nil
}

// splitInternal splits an internal node around the separator at mid,
// which the caller has already lifted out.
func (bt *BTree) splitInternal(n node, mid int) (node, error) {
	p, err := bt.pg.Alloc(types.PageTypeIndex, false)
	if err != nil {
		return node{}, err
	}
	rightNode := bt.node(p)
	rightNode.init(false)

	count := n.count()
	moveSlots(rightNode, n, mid+1, count-mid-1)
	rightNode.setRight(n.right())
	n.setRight(n.rid(mid))
	n.setCount(mid)
	return rightNode, nil
}
