// Package codec encodes and decodes the little-endian fixed-width length
// prefixes and UTF-8 payloads used by every on-disk file format in the
// engine: a 4-byte unsigned prefix for sizes and a 8-byte unsigned prefix
// for byte offsets.
package codec

import (
	"encoding/binary"
	"math"
	"unicode/utf8"

	"github.com/petitviolet/rsstable/internal/sstable/errs"
)

// Uint32Len is the width in bytes of an encoded size prefix.
const Uint32Len = 4

// Uint64Len is the width in bytes of an encoded offset prefix.
const Uint64Len = 8

// PutUint32 encodes n as a 4-byte little-endian size prefix. n must fit in
// a uint32; it always does in practice since it originates from len() of
// an in-memory byte slice, but the bound is enforced defensively since
// this is the boundary between in-memory sizes and the on-disk format.
func PutUint32(n int) ([]byte, error) {
	if n < 0 || n > math.MaxUint32 {
		return nil, errs.Corrupt("length overflows u32")
	}
	b := make([]byte, Uint32Len)
	binary.LittleEndian.PutUint32(b, uint32(n))
	return b, nil
}

// Uint32 decodes a 4-byte little-endian size prefix into a platform usize.
// Fails with CodeCorrupt if b is too short or the value can't be
// represented as an int on this platform.
func Uint32(b []byte) (int, error) {
	if len(b) < Uint32Len {
		return 0, errs.Corrupt("short read decoding u32 length")
	}
	v := binary.LittleEndian.Uint32(b)
	if uint64(v) > uint64(math.MaxInt) {
		return 0, errs.Corrupt("u32 length overflows platform usize")
	}
	return int(v), nil
}

// PutUint64 encodes v as an 8-byte little-endian offset.
func PutUint64(v uint64) []byte {
	b := make([]byte, Uint64Len)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

// Uint64 decodes an 8-byte little-endian offset.
func Uint64(b []byte) (uint64, error) {
	if len(b) < Uint64Len {
		return 0, errs.Corrupt("short read decoding u64 offset")
	}
	return binary.LittleEndian.Uint64(b), nil
}

// UTF8String validates b as UTF-8 and returns it as a string. Fails with
// CodeCorrupt on invalid UTF-8 rather than silently replacing bad bytes.
func UTF8String(b []byte) (string, error) {
	if !utf8.Valid(b) {
		return "", errs.Corrupt("invalid UTF-8 payload")
	}
	return string(b), nil
}
