package cipher

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"

	"github.com/cyberpanther232/goshell/wire"
)

const gcmTagSize = 16

// gcmCipher implements aes128-gcm@openssh.com. Unlike the stream/block
// modes, the 4-byte packet length is transmitted in cleartext and used as
// the AEAD's additional authenticated data, so LengthOf never decrypts
// anything — it just parses the cleartext length. The 12-byte IV is a
// 4-byte fixed salt followed by an 8-byte invocation counter that
// increments by one per packet in both directions independently.
type gcmCipher struct {
	aead  cipher.AEAD
	fixed [4]byte
	inv   uint64
}

func newGCM(key, iv []byte) (Cipher, error) {
	if len(key) < 16 || len(iv) < 12 {
		return nil, fmt.Errorf("cipher: aes128-gcm: key/iv too short")
	}
	block, err := aes.NewCipher(key[:16])
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	c := &gcmCipher{aead: aead}
	copy(c.fixed[:], iv[:4])
	c.inv = binary.BigEndian.Uint64(iv[4:12])
	return c, nil
}

func (c *gcmCipher) Name() string   { return "aes128-gcm@openssh.com" }
func (c *gcmCipher) BlockSize() int { return aes.BlockSize }
func (c *gcmCipher) HeaderLen() int { return 4 }
func (c *gcmCipher) IsAEAD() bool   { return true }

// PaddingSize excludes the 4-byte length prefix from the alignment
// target, since it is never encrypted alongside the rest of the packet.
func (c *gcmCipher) PaddingSize(bodyLen int) int {
	return wire.PaddingFor(1+bodyLen, aes.BlockSize)
}

// LengthOf is pure parsing: the length prefix is cleartext AAD, not
// ciphertext, so nothing is decrypted and no state changes.
func (c *gcmCipher) LengthOf(header []byte) (int, error) {
	if len(header) != 4 {
		return 0, fmt.Errorf("cipher: aes128-gcm: header must be 4 bytes")
	}
	length := binary.BigEndian.Uint32(header)
	if length < 1 {
		return 0, fmt.Errorf("cipher: aes128-gcm: invalid packet length %d", length)
	}
	return int(length) + gcmTagSize, nil
}

func (c *gcmCipher) currentIV() []byte {
	iv := make([]byte, 12)
	copy(iv[:4], c.fixed[:])
	binary.BigEndian.PutUint64(iv[4:], c.inv)
	return iv
}

// Encrypt seals frame[4:] (padding-length byte, payload, padding) with
// frame[:4] (the cleartext length) as AAD, and appends the 16-byte tag.
// The invocation counter advances by one afterward.
func (c *gcmCipher) Encrypt(frame []byte) ([]byte, error) {
	if len(frame) < 4 {
		return nil, fmt.Errorf("cipher: aes128-gcm: frame too short")
	}
	aad := frame[:4]
	body := frame[4:]
	sealed := c.aead.Seal(nil, c.currentIV(), body, aad)
	out := make([]byte, 4+len(sealed))
	copy(out, aad)
	copy(out[4:], sealed)
	c.inv++
	return out, nil
}

// Decrypt opens raw[4:] (ciphertext+tag) using raw[:4] as AAD and
// reconstructs the full plaintext frame, including the cleartext length
// field, so downstream parsing is uniform across cipher variants.
// Authentication failure is reported as ErrAuthFailed and is fatal.
func (c *gcmCipher) Decrypt(raw []byte) ([]byte, error) {
	if len(raw) < 4+gcmTagSize {
		return nil, fmt.Errorf("cipher: aes128-gcm: raw too short")
	}
	aad := raw[:4]
	body := raw[4:]
	plain, err := c.aead.Open(nil, c.currentIV(), body, aad)
	if err != nil {
		return nil, ErrAuthFailed
	}
	c.inv++
	out := make([]byte, 4+len(plain))
	copy(out, aad)
	copy(out[4:], plain)
	return out, nil
}
