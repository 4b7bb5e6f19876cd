package types

import "encoding/binary"

/*

Inline record encoding
──────────────────────────────────────────────
The 8-byte record pointer of a slot is a tagged union:

	EMPTY  len == 0   pointer unused
	TINY   len <= 7   bytes 0..len-1 hold the record, byte 7 the length
	SMALL  len == 8   all 8 bytes hold the record
	blob   len >  8   pointer is the blob id of the first BLOB page

The byte order is fixed little-endian: record byte i lives in bit
range [8i, 8i+8) of the pointer word.

*/

// EncodeInlineRecord packs data into a record pointer if it fits one
// of the inline size classes. ok is false when the record needs a
// blob.
func EncodeInlineRecord(data []byte) (rid uint64, keyFlags uint8, ok bool) {
	switch {
	case len(data) == 0:
		return 0, KeyBlobSizeEmpty, true
	case len(data) < 8:
		var buf [8]byte
		copy(buf[:], data)
		buf[7] = byte(len(data))
		return binary.LittleEndian.Uint64(buf[:]), KeyBlobSizeTiny, true
	case len(data) == 8:
		var buf [8]byte
		copy(buf[:], data)
		return binary.LittleEndian.Uint64(buf[:]), KeyBlobSizeSmall, true
	default:
		return 0, 0, false
	}
}

// DecodeInlineRecord unpacks a record pointer previously produced by
// EncodeInlineRecord into dst, which must have room for 8 bytes.
// It returns the record slice and false when the flags do not name an
// inline class.
func DecodeInlineRecord(rid uint64, keyFlags uint8, dst []byte) ([]byte, bool) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], rid)

	switch {
	case keyFlags&KeyBlobSizeEmpty != 0:
		return dst[:0], true
	case keyFlags&KeyBlobSizeTiny != 0:
		n := int(buf[7])
		if n > 7 {
			n = 7
		}
		copy(dst, buf[:n])
		return dst[:n], true
	case keyFlags&KeyBlobSizeSmall != 0:
		copy(dst, buf[:8])
		return dst[:8], true
	default:
		return nil, false
	}
}
