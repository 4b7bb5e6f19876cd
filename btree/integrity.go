package btree

import (
	"fmt"

	"HamDB/txn"
	"HamDB/types"
)

// CheckIntegrity walks the whole tree and verifies its invariants:
// slot counts within bounds, keys strictly ordered and inside the
// separator bounds of their subtree, and every leaf at the same
// depth. The first violation is returned.
func (bt *BTree) CheckIntegrity(t *txn.Txn) error {
	chk := &integrityCheck{bt: bt, leafDepth: -1}
	return chk.node(bt.root, 0, nil, nil)
}

type integrityCheck struct {
	bt        *BTree
	leafDepth int
}

// node checks the subtree at id. lower/upper are the bounds inherited
// from the separators above, lower inclusive and upper exclusive:
// every key k in the subtree satisfies lower <= k < upper (nil means
// unbounded).
func (c *integrityCheck) node(id uint64, depth int, lower, upper []byte) error {
	bt := c.bt
	p, err := bt.pg.Fetch(id)
	if err != nil {
		return err
	}
	p.SetType(types.PageTypeIndex)
	defer func() { _ = bt.pg.Release(p) }()

	n := bt.node(p)
	count := n.count()
	if count > bt.maxKeys {
		return fmt.Errorf("page %d holds %d slots, capacity %d: %w",
			id, count, bt.maxKeys, types.ErrIntegrityViolated)
	}
	if id != bt.root && count < bt.minKeys {
		return fmt.Errorf("page %d holds %d slots, minimum %d: %w",
			id, count, bt.minKeys, types.ErrIntegrityViolated)
	}

	var prev []byte
	for i := 0; i < count; i++ {
		key, err := bt.materialiseKey(n, i)
		if err != nil {
			return err
		}
		// Bounds are compared against a private copy: materialiseKey
		// reuses the scratch arena.
		key = append([]byte(nil), key...)

		if prev != nil && bt.cmp(prev, key) >= 0 {
			return fmt.Errorf("page %d slot %d out of order: %w",
				id, i, types.ErrIntegrityViolated)
		}
		if lower != nil && bt.cmp(key, lower) < 0 {
			return fmt.Errorf("page %d slot %d below subtree bound: %w",
				id, i, types.ErrIntegrityViolated)
		}
		if upper != nil && bt.cmp(key, upper) >= 0 {
			return fmt.Errorf("page %d slot %d above subtree bound: %w",
				id, i, types.ErrIntegrityViolated)
		}
		prev = key
	}

	if n.isLeaf() {
		if c.leafDepth == -1 {
			c.leafDepth = depth
		}
		if depth != c.leafDepth {
			return fmt.Errorf("leaf %d at depth %d, first leaf at %d: %w",
				id, depth, c.leafDepth, types.ErrIntegrityViolated)
		}
		return nil
	}

	if n.right() == 0 {
		return fmt.Errorf("internal page %d without rightmost child: %w",
			id, types.ErrIntegrityViolated)
	}

	// Child i holds keys in [key_{i-1}, key_i); the rightmost child
	// in [key_{count-1}, upper).
	childLower := lower
	for i := 0; i < count; i++ {
		sep, err := bt.materialiseKey(n, i)
		if err != nil {
			return err
		}
		sep = append([]byte(nil), sep...)
		if err := c.node(n.rid(i), depth+1, childLower, sep); err != nil {
			return err
		}
		childLower = sep
	}
	return c.node(n.right(), depth+1, childLower, upper)
}
