package cipher

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"

	"github.com/cyberpanther232/goshell/wire"
)

// cbcCipher implements aes128-cbc. The IV for packet n+1 is the last
// ciphertext block of packet n, so each Encrypt/Decrypt call constructs a
// fresh cipher.BlockMode from the stored key and current IV and then
// advances the stored IV to the tail of whatever it just processed.
type cbcCipher struct {
	block cipher.Block
	iv    []byte // current chaining IV, aes.BlockSize bytes
}

func newCBC(key, iv []byte) (Cipher, error) {
	if len(key) < 16 || len(iv) < aes.BlockSize {
		return nil, fmt.Errorf("cipher: aes128-cbc: key/iv too short")
	}
	block, err := aes.NewCipher(key[:16])
	if err != nil {
		return nil, err
	}
	ivCopy := make([]byte, aes.BlockSize)
	copy(ivCopy, iv[:aes.BlockSize])
	return &cbcCipher{block: block, iv: ivCopy}, nil
}

func (c *cbcCipher) Name() string   { return "aes128-cbc" }
func (c *cbcCipher) BlockSize() int { return aes.BlockSize }
func (c *cbcCipher) HeaderLen() int { return aes.BlockSize }
func (c *cbcCipher) IsAEAD() bool   { return false }

func (c *cbcCipher) PaddingSize(bodyLen int) int {
	return wire.PaddingSize(wire.Align(aes.BlockSize), bodyLen)
}

// LengthOf decrypts the header block without committing state: it uses a
// scratch decrypter over the current IV, leaving c.iv untouched so the
// real Decrypt call below can process the same header block again as
// part of the whole packet.
func (c *cbcCipher) LengthOf(header []byte) (int, error) {
	if len(header) != aes.BlockSize {
		return 0, fmt.Errorf("cipher: aes128-cbc: header must be %d bytes", aes.BlockSize)
	}
	scratch := cipher.NewCBCDecrypter(c.block, c.iv)
	peek := make([]byte, aes.BlockSize)
	scratch.CryptBlocks(peek, header)

	length := binary.BigEndian.Uint32(peek[:4])
	if length < 1 {
		return 0, fmt.Errorf("cipher: aes128-cbc: invalid packet length %d", length)
	}
	remaining := int(length) - (aes.BlockSize - 4)
	if remaining < 0 {
		return 0, fmt.Errorf("cipher: aes128-cbc: invalid packet length %d", length)
	}
	return remaining, nil
}

// Encrypt CBC-encrypts the whole frame (it must already be a multiple of
// the block size) and advances the chaining IV to the last ciphertext
// block produced.
func (c *cbcCipher) Encrypt(frame []byte) ([]byte, error) {
	if len(frame)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("cipher: aes128-cbc: frame not block-aligned")
	}
	out := make([]byte, len(frame))
	enc := cipher.NewCBCEncrypter(c.block, c.iv)
	enc.CryptBlocks(out, frame)
	c.advanceIV(out)
	return out, nil
}

// Decrypt CBC-decrypts the whole raw ciphertext (header plus the rest of
// the body, as read off the wire) and advances the chaining IV to the
// last ciphertext block consumed — the real, state-committing decrypt
// that LengthOf deliberately avoided.
func (c *cbcCipher) Decrypt(raw []byte) ([]byte, error) {
	if len(raw)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("cipher: aes128-cbc: ciphertext not block-aligned")
	}
	out := make([]byte, len(raw))
	dec := cipher.NewCBCDecrypter(c.block, c.iv)
	dec.CryptBlocks(out, raw)
	c.advanceIV(raw)
	return out, nil
}

func (c *cbcCipher) advanceIV(ciphertext []byte) {
	copy(c.iv, ciphertext[len(ciphertext)-aes.BlockSize:])
}
