package cipher

import (
	"encoding/binary"
	"fmt"

	"github.com/cyberpanther232/goshell/wire"
)

// noneCipher is the identity cipher used before the first key exchange
// completes. Its block size is fixed at 8 per RFC 4253.
type noneCipher struct{}

func newNone() Cipher { return noneCipher{} }

func (noneCipher) Name() string      { return "none" }
func (noneCipher) BlockSize() int    { return 8 }
func (noneCipher) HeaderLen() int    { return 8 }
func (noneCipher) IsAEAD() bool      { return false }

func (noneCipher) PaddingSize(bodyLen int) int {
	return wire.PaddingSize(8, bodyLen)
}

// LengthOf reads the cleartext u32-be packet length from the header and
// returns how many more bytes complete the packet. Per Design Notes §9,
// a malformed length (one implying a packet too small to contain its own
// padding-length byte) is reported as a fatal error rather than left
// undefined.
func (noneCipher) LengthOf(header []byte) (int, error) {
	if len(header) < 8 {
		return 0, fmt.Errorf("cipher: none: short header")
	}
	length := binary.BigEndian.Uint32(header[:4])
	if length < 1 {
		return 0, fmt.Errorf("cipher: none: invalid packet length %d", length)
	}
	// length counts padding-length byte + payload + padding, starting
	// right after the 4-byte length field. We've already consumed
	// header[4:8] (4 bytes of that region).
	remaining := int(length) - 4
	if remaining < 0 {
		return 0, fmt.Errorf("cipher: none: invalid packet length %d", length)
	}
	return remaining, nil
}

func (noneCipher) Encrypt(frame []byte) ([]byte, error) {
	out := make([]byte, len(frame))
	copy(out, frame)
	return out, nil
}

func (noneCipher) Decrypt(raw []byte) ([]byte, error) {
	out := make([]byte, len(raw))
	copy(out, raw)
	return out, nil
}
