// Package wire implements the primitive SSH binary-protocol encoders and
// decoders defined by RFC 4253: u8/u32 integers, booleans, byte strings,
// name-lists, fixed-length fields such as cookies, and the packet padding
// law. It has no
// notion of ciphers, MACs, or sequence numbers — those live in the cipher
// and transport packages, which build on top of this one.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// ErrShortBuffer is returned by decoders when the input ends before a
// length-prefixed field can be fully read.
var ErrShortBuffer = errors.New("wire: buffer too short")

// PutUint8 appends a single byte.
func PutUint8(buf []byte, v byte) []byte {
	return append(buf, v)
}

// PutUint32 appends a big-endian uint32.
func PutUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

// PutBool appends a single SSH boolean byte (0x00 or 0x01).
func PutBool(buf []byte, v bool) []byte {
	if v {
		return append(buf, 1)
	}
	return append(buf, 0)
}

// PutString appends a length-prefixed byte string: u32-be length then the
// raw bytes.
func PutString(buf []byte, s []byte) []byte {
	buf = PutUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

// PutNameList appends a name-list: a length-prefixed, comma-joined ASCII
// string. An empty slice encodes as a zero-length string (four zero
// bytes), never a trailing comma.
func PutNameList(buf []byte, names []string) []byte {
	joined := strings.Join(names, ",")
	return PutString(buf, []byte(joined))
}

// GetUint8 reads a single byte, returning the rest of the buffer after it.
func GetUint8(buf []byte) (byte, []byte, error) {
	if len(buf) < 1 {
		return 0, nil, ErrShortBuffer
	}
	return buf[0], buf[1:], nil
}

// GetUint32 reads a big-endian uint32, returning the rest of the buffer
// after it.
func GetUint32(buf []byte) (uint32, []byte, error) {
	if len(buf) < 4 {
		return 0, nil, ErrShortBuffer
	}
	return binary.BigEndian.Uint32(buf[:4]), buf[4:], nil
}

// GetBool reads a single SSH boolean byte.
func GetBool(buf []byte) (bool, []byte, error) {
	b, rest, err := GetUint8(buf)
	if err != nil {
		return false, nil, err
	}
	return b != 0, rest, nil
}

// GetString reads a length-prefixed byte string, returning the rest of the
// buffer after it.
func GetString(buf []byte) ([]byte, []byte, error) {
	n, rest, err := GetUint32(buf)
	if err != nil {
		return nil, nil, err
	}
	if uint64(len(rest)) < uint64(n) {
		return nil, nil, ErrShortBuffer
	}
	return rest[:n], rest[n:], nil
}

// GetFixed reads exactly n raw bytes (used for cookies), returning the rest
// of the buffer after it.
func GetFixed(buf []byte, n int) ([]byte, []byte, error) {
	if len(buf) < n {
		return nil, nil, ErrShortBuffer
	}
	return buf[:n], buf[n:], nil
}

// GetNameList reads a name-list. decode("") yields an empty (non-nil)
// slice; decode("a,b,c") yields ["a","b","c"].
func GetNameList(buf []byte) ([]string, []byte, error) {
	raw, rest, err := GetString(buf)
	if err != nil {
		return nil, nil, err
	}
	if len(raw) == 0 {
		return []string{}, rest, nil
	}
	return strings.Split(string(raw), ","), rest, nil
}

// PaddingSize implements the RFC 4253 padding law shared by every cipher
// mode that aligns the framed length field itself (none/CBC/CTR): given
// the alignment (max(block_size, 8)) and the length of the packet body
// (payload bytes only), it returns the number of padding bytes such that
// 4 (length field) + 1 (padding-length field) + body + padding is a
// multiple of align, and padding is never shorter than 4 bytes.
func PaddingSize(align, bodyLen int) int {
	return PaddingFor(4+1+bodyLen, align)
}

// PaddingFor is the general padding law: given the length of everything
// that precedes the padding field (framedLen) and the alignment, it
// returns the smallest padding count, never below 4, that makes
// framedLen+padding a multiple of align. PaddingSize is the common case
// where framedLen includes the 4-byte length field and 1-byte
// padding-length field; aes128-gcm@openssh.com calls this directly
// because its length field is cleartext and excluded from the alignment.
func PaddingFor(framedLen, align int) int {
	if align < 8 {
		align = 8
	}
	rem := framedLen % align
	if rem == 0 {
		return align
	}
	needed := align - rem
	if needed < 4 {
		return needed + align
	}
	return needed
}

// Align returns max(blockSize, 8), the alignment used by the padding law.
func Align(blockSize int) int {
	if blockSize < 8 {
		return 8
	}
	return blockSize
}

// ErrMalformed reports a decode failure at a named field, used to give
// fatal protocol errors context instead of losing it to a bare panic.
type ErrMalformed struct {
	Field string
	Err   error
}

func (e *ErrMalformed) Error() string {
	return fmt.Sprintf("wire: malformed %s: %v", e.Field, e.Err)
}

func (e *ErrMalformed) Unwrap() error { return e.Err }
