package cipher

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"

	"github.com/cyberpanther232/goshell/wire"
)

// ctrCipher implements aes128-ctr. Encryption and decryption are the same
// keystream XOR, so the single cipher.Stream owned here is consumed
// sequentially by both Encrypt and the LengthOf/Decrypt pair: LengthOf
// commits state by consuming HeaderLen bytes of keystream up front (CTR
// is deterministic forward, so there is no harm in running ahead), and
// caches the resulting plaintext so Decrypt does not try to re-consume
// those same keystream bytes.
type ctrCipher struct {
	stream cipher.Stream

	pendingHeader []byte // cached plaintext of the last LengthOf call
}

func newCTR(key, iv []byte) (Cipher, error) {
	if len(key) < 16 || len(iv) < aes.BlockSize {
		return nil, fmt.Errorf("cipher: aes128-ctr: key/iv too short")
	}
	block, err := aes.NewCipher(key[:16])
	if err != nil {
		return nil, err
	}
	stream := cipher.NewCTR(block, iv[:aes.BlockSize])
	return &ctrCipher{stream: stream}, nil
}

func (c *ctrCipher) Name() string   { return "aes128-ctr" }
func (c *ctrCipher) BlockSize() int { return aes.BlockSize }
func (c *ctrCipher) HeaderLen() int { return aes.BlockSize }
func (c *ctrCipher) IsAEAD() bool   { return false }

func (c *ctrCipher) PaddingSize(bodyLen int) int {
	return wire.PaddingSize(wire.Align(aes.BlockSize), bodyLen)
}

func (c *ctrCipher) LengthOf(header []byte) (int, error) {
	if len(header) != aes.BlockSize {
		return 0, fmt.Errorf("cipher: aes128-ctr: header must be %d bytes", aes.BlockSize)
	}
	plain := make([]byte, aes.BlockSize)
	c.stream.XORKeyStream(plain, header)
	c.pendingHeader = plain

	length := binary.BigEndian.Uint32(plain[:4])
	if length < 1 {
		return 0, fmt.Errorf("cipher: aes128-ctr: invalid packet length %d", length)
	}
	remaining := int(length) - (aes.BlockSize - 4)
	if remaining < 0 {
		return 0, fmt.Errorf("cipher: aes128-ctr: invalid packet length %d", length)
	}
	return remaining, nil
}

// Encrypt XORs the whole frame with the next bytes of keystream. There is
// no peeking on the send side, so this always advances state for real.
// Any unused tail of a partially consumed block is discarded, so the
// counter advances by ceil(len(frame)/16) blocks per call.
func (c *ctrCipher) Encrypt(frame []byte) ([]byte, error) {
	out := make([]byte, len(frame))
	c.stream.XORKeyStream(out, frame)
	if r := len(frame) % aes.BlockSize; r != 0 {
		skip := make([]byte, aes.BlockSize-r)
		c.stream.XORKeyStream(skip, skip)
	}
	return out, nil
}

// Decrypt reuses the header plaintext LengthOf already produced (and the
// keystream bytes it already consumed) and XORs only the remainder.
func (c *ctrCipher) Decrypt(raw []byte) ([]byte, error) {
	if c.pendingHeader == nil {
		return nil, fmt.Errorf("cipher: aes128-ctr: Decrypt called without a preceding LengthOf")
	}
	if len(raw) < len(c.pendingHeader) {
		return nil, fmt.Errorf("cipher: aes128-ctr: raw shorter than header")
	}
	out := make([]byte, len(raw))
	copy(out, c.pendingHeader)
	c.stream.XORKeyStream(out[len(c.pendingHeader):], raw[len(c.pendingHeader):])
	if r := len(raw) % aes.BlockSize; r != 0 {
		skip := make([]byte, aes.BlockSize-r)
		c.stream.XORKeyStream(skip, skip)
	}
	c.pendingHeader = nil
	return out, nil
}
