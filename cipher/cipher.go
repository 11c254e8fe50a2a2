// Package cipher implements the uniform symmetric-cipher abstraction the
// packet engine drives: none, aes128-cbc, aes128-ctr, and
// aes128-gcm@openssh.com. Every variant satisfies the Cipher interface,
// which exposes exactly the four operations the transport loop needs —
// padding size, the bytes remaining to complete an inbound packet, and
// whole-packet encrypt/decrypt — without knowing anything about MAC
// computation, which the packet engine drives separately except for GCM's
// built-in tag.
package cipher

import "fmt"

// Cipher is the tagged-variant interface every cipher mode implements. A
// Cipher instance is direction-specific: a session holds one for sending
// and a distinct one (with independently evolving state) for receiving.
type Cipher interface {
	// Name is the wire algorithm name, e.g. "aes128-ctr".
	Name() string

	// BlockSize is the cipher's block size in bytes (8 for none, 16 for
	// the AES variants). It is also used as the alignment for non-AEAD
	// padding.
	BlockSize() int

	// HeaderLen is how many bytes the packet engine must read before it
	// can call LengthOf: BlockSize() for none/CBC/CTR (the length field
	// is encrypted and needs a full block to decode), 4 for GCM (the
	// length field is cleartext).
	HeaderLen() int

	// IsAEAD reports whether this cipher authenticates its own output
	// (GCM) rather than relying on a MAC the packet engine appends.
	IsAEAD() bool

	// PaddingSize returns the number of padding bytes for an outbound
	// packet whose payload is bodyLen bytes, per the RFC 4253 padding
	// law (see wire.PaddingSize). GCM excludes the 4-byte length prefix
	// from the body it aligns.
	PaddingSize(bodyLen int) int

	// LengthOf is given the HeaderLen()-byte header already read off the
	// wire and returns the number of bytes still to be read to complete
	// the packet: payload + padding + MAC/tag, excluding the header
	// bytes already consumed. It may advance internal state (CTR does;
	// CBC and GCM do not).
	LengthOf(header []byte) (remaining int, err error)

	// Encrypt takes a fully-framed cleartext packet (length, padding
	// length, payload, padding) and returns the bytes to put on the
	// wire. For GCM this includes the appended 16-byte tag; for the
	// others it is exactly len(frame) bytes of ciphertext.
	Encrypt(frame []byte) ([]byte, error)

	// Decrypt is the inverse of Encrypt. raw is the HeaderLen()-byte
	// header followed by the LengthOf-reported remaining bytes, minus
	// any trailing MAC the packet engine has already split off (GCM's
	// tag is not split off — it is part of raw). Decrypt returns the
	// fully-framed cleartext packet.
	Decrypt(raw []byte) ([]byte, error)
}

// ErrAuthFailed is returned by Decrypt when an AEAD tag fails to verify.
// Per spec §7 this is fatal and the packet engine must not reveal more
// detail than this.
var ErrAuthFailed = fmt.Errorf("cipher: authentication failed")

// New constructs a Cipher of the named variant. keyMaterial supplies the
// encryption key and initial IV (or, for GCM, the 4-byte fixed salt
// followed by the low 8 bytes of the derived IV as the initial invocation
// counter) as produced by the external key-exchange's key derivation.
func New(name string, key, iv []byte) (Cipher, error) {
	switch name {
	case "none":
		return newNone(), nil
	case "aes128-cbc":
		return newCBC(key, iv)
	case "aes128-ctr":
		return newCTR(key, iv)
	case "aes128-gcm@openssh.com":
		return newGCM(key, iv)
	default:
		return nil, fmt.Errorf("cipher: unsupported algorithm %q", name)
	}
}

// Names lists every cipher name this package supports, in the order this
// implementation prefers them.
func Names() []string {
	return []string{"aes128-gcm@openssh.com", "aes128-ctr", "aes128-cbc", "none"}
}
