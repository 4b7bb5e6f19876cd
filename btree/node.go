package btree

import (
	"encoding/binary"

	"HamDB/page"
)

/*

B-tree node, stored in the payload of an INDEX page:

──────────────────────────────────────────────────────
| flags (2) | count (2) | rightmost child id (8) | slots ...
──────────────────────────────────────────────────────

Each slot is fixed width:

──────────────────────────────────────────────────────────
| key len (2) | key flags (1) | pad (1) | record ptr (8) |
| inline key bytes, padded to the configured key size     |
──────────────────────────────────────────────────────────

In internal nodes the record pointer is the child page id. Keys longer
than the key size keep keysize-8 prefix bytes inline; the last 8 bytes
of the key area hold the blob id of the full key (KeyExtended flag).

*/

const (
	nodeHeaderSize = 12
	slotFixedSize  = 12

	nodeFlagLeaf uint16 = 1 << 0
)

func (bt *BTree) slotSize() int { return slotFixedSize + bt.keySize }

// node is a view over an INDEX page payload; it owns no memory.
type node struct {
	p  *page.Page
	bt *BTree
}

func (bt *BTree) node(p *page.Page) node {
	return node{p: p, bt: bt}
}

func (n node) init(leaf bool) {
	payload := n.p.Payload()
	var flags uint16
	if leaf {
		flags = nodeFlagLeaf
	}
	binary.LittleEndian.PutUint16(payload[0:2], flags)
	binary.LittleEndian.PutUint16(payload[2:4], 0)
	binary.LittleEndian.PutUint64(payload[4:12], 0)
	n.p.SetDirty(true)
}

func (n node) isLeaf() bool {
	return binary.LittleEndian.Uint16(n.p.Payload()[0:2])&nodeFlagLeaf != 0
}

func (n node) count() int {
	return int(binary.LittleEndian.Uint16(n.p.Payload()[2:4]))
}

func (n node) setCount(count int) {
	binary.LittleEndian.PutUint16(n.p.Payload()[2:4], uint16(count))
	n.p.SetDirty(true)
}

// right is the rightmost child id; internal nodes only.
func (n node) right() uint64 {
	return binary.LittleEndian.Uint64(n.p.Payload()[4:12])
}

func (n node) setRight(id uint64) {
	binary.LittleEndian.PutUint64(n.p.Payload()[4:12], id)
	n.p.SetDirty(true)
}

// slot returns the raw bytes of slot i.
func (n node) slot(i int) []byte {
	off := nodeHeaderSize + i*n.bt.slotSize()
	return n.p.Payload()[off : off+n.bt.slotSize()]
}

func (n node) keyLen(i int) int      { return int(binary.LittleEndian.Uint16(n.slot(i)[0:2])) }
func (n node) keyFlags(i int) uint8  { return n.slot(i)[2] }
func (n node) rid(i int) uint64      { return binary.LittleEndian.Uint64(n.slot(i)[4:12]) }
func (n node) keyArea(i int) []byte  { return n.slot(i)[slotFixedSize:] }

func (n node) setKeyLen(i, keyLen int) {
	binary.LittleEndian.PutUint16(n.slot(i)[0:2], uint16(keyLen))
	n.p.SetDirty(true)
}

func (n node) setKeyFlags(i int, flags uint8) {
	n.slot(i)[2] = flags
	n.p.SetDirty(true)
}

func (n node) setRid(i int, rid uint64) {
	binary.LittleEndian.PutUint64(n.slot(i)[4:12], rid)
	n.p.SetDirty(true)
}

// childAt returns child pointer j of an internal node, where
// j == count addresses the rightmost child.
func (n node) childAt(j int) uint64 {
	if j == n.count() {
		return n.right()
	}
	return n.rid(j)
}

func (n node) setChildAt(j int, id uint64) {
	if j == n.count() {
		n.setRight(id)
	} else {
		n.setRid(j, id)
	}
}

// insertSlotAt opens a hole at i, shifting later slots right. The
// caller fills the hole and has checked capacity.
func (n node) insertSlotAt(i int) {
	count := n.count()
	ss := n.bt.slotSize()
	payload := n.p.Payload()
	start := nodeHeaderSize + i*ss
	end := nodeHeaderSize + count*ss
	copy(payload[start+ss:end+ss], payload[start:end])
	n.setCount(count + 1)
}

// removeSlotAt closes the hole at i, shifting later slots left. It is
// purely structural: extended-key blobs are the caller's to free.
func (n node) removeSlotAt(i int) {
	count := n.count()
	ss := n.bt.slotSize()
	payload := n.p.Payload()
	start := nodeHeaderSize + i*ss
	end := nodeHeaderSize + count*ss
	copy(payload[start:end-ss], payload[start+ss:end])
	n.setCount(count - 1)
}

// copySlot copies slot src[si] over dst[di] byte for byte. Ownership
// of an extended-key blob moves with the copy unless the caller
// duplicates it.
func copySlot(dst node, di int, src node, si int) {
	copy(dst.slot(di), src.slot(si))
	dst.p.SetDirty(true)
}

// moveSlots appends count slots starting at src[si] to the end of
// dst. Used by merges; the source range must be released or
// overwritten by the caller.
func moveSlots(dst node, src node, si, count int) {
	base := dst.count()
	ss := dst.bt.slotSize()
	dstStart := nodeHeaderSize + base*ss
	srcStart := nodeHeaderSize + si*ss
	copy(dst.p.Payload()[dstStart:dstStart+count*ss], src.p.Payload()[srcStart:srcStart+count*ss])
	dst.setCount(base + count)
}
