package btree

import (
	"encoding/binary"
	"errors"
	"fmt"

	"HamDB/txn"
	"HamDB/types"
)

// encodeKey writes key into slot i's key fields. Keys longer than the
// slot's inline capacity keep keysize-8 prefix bytes inline and spill
// the full key into a blob; the returned flag bits carry KeyExtended
// in that case and are merged into the slot's key flags by the
// caller.
func (bt *BTree) encodeKey(t *txn.Txn, n node, i int, key []byte) (uint8, error) {
	n.setKeyLen(i, len(key))
	area := n.keyArea(i)

	if len(key) <= bt.keySize {
		copy(area, key)
		for j := len(key); j < bt.keySize; j++ {
			area[j] = 0
		}
		n.p.SetDirty(true)
		return 0, nil
	}

	blobID, err := bt.blobs.Alloc(t, key)
	if err != nil {
		return 0, err
	}
	copy(area[:bt.keySize-8], key)
	binary.LittleEndian.PutUint64(area[bt.keySize-8:], blobID)
	n.p.SetDirty(true)
	bt.metrics.ExtendedKeys++
	return types.KeyExtended, nil
}

func (n node) extBlobID(i int) uint64 {
	area := n.keyArea(i)
	return binary.LittleEndian.Uint64(area[len(area)-8:])
}

// materialiseKey returns the full key bytes of slot i. Inline keys
// are returned as a view into the page; extended keys are read into
// the btree's scratch arena, valid until the next materialisation.
func (bt *BTree) materialiseKey(n node, i int) ([]byte, error) {
	if n.keyFlags(i)&types.KeyExtended == 0 {
		return n.keyArea(i)[:n.keyLen(i)], nil
	}
	full, err := bt.blobs.ReadInto(&bt.extArena, n.extBlobID(i))
	if err != nil {
		return nil, err
	}
	if len(full) != n.keyLen(i) {
		return nil, fmt.Errorf("extended key of %d bytes, slot says %d: %w",
			len(full), n.keyLen(i), types.ErrIntegrityViolated)
	}
	return full, nil
}

// freeKeyBlob releases the extended-key blob of slot i, if any. Call
// before the slot is discarded for good.
func (bt *BTree) freeKeyBlob(t *txn.Txn, n node, i int) error {
	if n.keyFlags(i)&types.KeyExtended == 0 {
		return nil
	}
	return bt.blobs.Free(t, n.extBlobID(i))
}

// promo carries a separator on its way up a split.
type promo struct {
	keyLen   int
	keyFlags uint8 // KeyExtended only; record class bits never go up
	keyImage []byte
	rightID  uint64
}

// takeSeparator lifts slot i out of n into a promo, transferring
// ownership of an extended-key blob with it.
func (bt *BTree) takeSeparator(n node, i int) *promo {
	image := make([]byte, bt.keySize)
	copy(image, n.keyArea(i))
	return &promo{
		keyLen:   n.keyLen(i),
		keyFlags: n.keyFlags(i) & types.KeyExtended,
		keyImage: image,
	}
}

// dupSeparator copies slot i's key into a promo. An extended key gets
// its own blob: separator slots own their blobs just like leaf slots,
// so copies never share.
func (bt *BTree) dupSeparator(t *txn.Txn, n node, i int) (*promo, error) {
	pr := bt.takeSeparator(n, i)
	if pr.keyFlags&types.KeyExtended != 0 {
		full, err := bt.materialiseKey(n, i)
		if err != nil {
			return nil, err
		}
		blobID, err := bt.blobs.Alloc(t, full)
		if err != nil {
			return nil, err
		}
		binary.LittleEndian.PutUint64(pr.keyImage[bt.keySize-8:], blobID)
	}
	return pr, nil
}

// writeSeparator fills slot i of n from a promo, leaving the record
// pointer alone.
func (bt *BTree) writeSeparator(n node, i int, pr *promo) {
	n.setKeyLen(i, pr.keyLen)
	n.setKeyFlags(i, pr.keyFlags)
	copy(n.keyArea(i), pr.keyImage)
	n.p.SetDirty(true)
}

// transferKey moves the key fields of src[si] onto dst[di] without
// touching either record pointer. Blob ownership moves along.
func transferKey(dst node, di int, src node, si int) {
	dst.setKeyLen(di, src.keyLen(si))
	dst.setKeyFlags(di, src.keyFlags(si)&types.KeyExtended)
	copy(dst.keyArea(di), src.keyArea(si))
	dst.p.SetDirty(true)
}

// compareToSlot orders target against slot i of n. For extended keys
// the prefix comparator gets the first shot; when it cannot decide
// (or none is installed) the full key is materialised and the full
// comparator settles it.
func (bt *BTree) compareToSlot(target []byte, n node, i int) (int, error) {
	if n.keyFlags(i)&types.KeyExtended == 0 {
		return bt.cmp(target, n.keyArea(i)[:n.keyLen(i)]), nil
	}

	if bt.prefixCmp != nil {
		prefixLen := bt.keySize - 8
		lhs := target
		if len(lhs) > prefixLen {
			lhs = lhs[:prefixLen]
		}
		c, err := bt.prefixCmp(lhs, len(target), n.keyArea(i)[:prefixLen], n.keyLen(i))
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, types.ErrPrefixRequestFullkey) {
			return 0, err
		}
	}

	full, err := bt.materialiseKey(n, i)
	if err != nil {
		return 0, err
	}
	return bt.cmp(target, full), nil
}

// searchSlots finds the first slot whose key is >= target and whether
// an exact match sits there. Binary search over the slot array.
func (bt *BTree) searchSlots(target []byte, n node) (int, bool, error) {
	lo, hi := 0, n.count()
	for lo < hi {
		mid := (lo + hi) / 2
		c, err := bt.compareToSlot(target, n, mid)
		if err != nil {
			return 0, false, err
		}
		if c > 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < n.count() {
		c, err := bt.compareToSlot(target, n, lo)
		if err != nil {
			return 0, false, err
		}
		return lo, c == 0, nil
	}
	return lo, false, nil
}

// descendIndex picks the child position for target in an internal
// node: the first slot with key strictly greater than target, or the
// rightmost child.
func (bt *BTree) descendIndex(target []byte, n node) (int, error) {
	lo, hi := 0, n.count()
	for lo < hi {
		mid := (lo + hi) / 2
		c, err := bt.compareToSlot(target, n, mid)
		if err != nil {
			return 0, err
		}
		if c >= 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo, nil
}
