package ham

import (
	"encoding/binary"
	"fmt"

	"HamDB/page"
	"HamDB/types"
)

/*

Header page payload (page id 0, behind the 8-byte reserved prefix):

──────────────────────────────────────────────────────────────
| magic 'H','A','M',0 (4) | version maj,min,rev,0 (4)        |
| serial (4) | flags (4) | pagesize (2) | keysize (2)        |
| root page id (8) | freelist payload ...                    |
──────────────────────────────────────────────────────────────

magic, version, pagesize and keysize never change after create. The
rest of the page is the freelist's.

*/

const (
	versionMaj uint8 = 1
	versionMin uint8 = 0
	versionRev uint8 = 0

	serialNo uint32 = 0

	// pagesize sits at file offset 24: 8 bytes reserved prefix plus
	// 16 payload bytes. The open probe reads it before anything else.
	probePagesizeOffset = types.PageHeaderSize + 16
)

var magic = [4]byte{'H', 'A', 'M', 0}

// header mirrors the fixed part of the header page in memory. The
// database keeps it authoritative while open and copies it back onto
// the page on close.
type header struct {
	version  [4]uint8
	serial   uint32
	flags    uint32
	pageSize uint16
	keySize  uint16
	rootID   uint64
}

func (h *header) writeTo(p *page.Page) {
	buf := p.Payload()
	copy(buf[0:4], magic[:])
	copy(buf[4:8], h.version[:])
	binary.LittleEndian.PutUint32(buf[8:12], h.serial)
	binary.LittleEndian.PutUint32(buf[12:16], h.flags)
	binary.LittleEndian.PutUint16(buf[16:18], h.pageSize)
	binary.LittleEndian.PutUint16(buf[18:20], h.keySize)
	binary.LittleEndian.PutUint64(buf[20:28], h.rootID)
	p.SetDirty(true)
}

// readFrom parses and validates the fixed header fields.
func (h *header) readFrom(p *page.Page) error {
	buf := p.Payload()
	if [4]byte(buf[0:4]) != magic {
		return fmt.Errorf("file magic %q: %w", buf[0:4], types.ErrInvalidFileHeader)
	}
	copy(h.version[:], buf[4:8])
	if h.version[0] != versionMaj || h.version[1] != versionMin {
		return fmt.Errorf("file version %d.%d: %w",
			h.version[0], h.version[1], types.ErrInvalidVersion)
	}
	h.serial = binary.LittleEndian.Uint32(buf[8:12])
	h.flags = binary.LittleEndian.Uint32(buf[12:16])
	h.pageSize = binary.LittleEndian.Uint16(buf[16:18])
	h.keySize = binary.LittleEndian.Uint16(buf[18:20])
	h.rootID = binary.LittleEndian.Uint64(buf[20:28])
	return nil
}
