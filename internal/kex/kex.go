// Package kex implements the key-agreement algorithms this client
// offers: ecdh-sha2-nistp256 (crypto/ecdh, adapted from the original
// handshake's ECDH step) and curve25519-sha256 (golang.org/x/crypto's
// Curve25519, the preferred modern choice most real OpenSSH servers
// negotiate down to). Both produce the exchange hash H and, via
// DeriveKeys, the six keying materials RFC 4253 §7.2 defines.
package kex

import (
	"bytes"
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/curve25519"
)

// Result is the outcome of running a key exchange: the shared secret K
// (already mpint-encoded) and the exchange hash H.
type Result struct {
	K []byte
	H []byte
}

// PacketIO is the minimal packet-engine surface a Runner needs: the
// transport's sequence-numbered Send/Receive, so the handshake's KEXDH
// packets are accounted for in the same counters the cipher and MAC will
// key off of once NEWKEYS activates them.
type PacketIO interface {
	Send(payload []byte) error
	Receive() ([]byte, error)
}

// Runner is the external key-exchange collaborator the handshake driver
// consumes (spec §6): given the negotiated algorithm name and the
// exchange-hash inputs gathered so far, it performs the wire exchange
// over the packet engine and returns the result.
type Runner interface {
	// Algorithm is the wire name this Runner implements, e.g.
	// "curve25519-sha256".
	Algorithm() string

	// Run performs one client-side key exchange: it sends
	// SSH_MSG_KEXDH_INIT-equivalent, reads the server's reply, verifies
	// nothing about the host key itself (that is the caller's job via a
	// HostKeyVerifier), and returns the shared secret and exchange hash.
	Run(pio PacketIO, exchange ExchangeInputs) (Result, HostKeyInfo, error)
}

// ExchangeInputs collects the byte-exact material that feeds the
// exchange-hash computation, per RFC 4253 §8: the two identification
// banners and the two full KEXINIT payloads.
type ExchangeInputs struct {
	VC, VS   []byte
	ClientKI []byte
	ServerKI []byte
}

// HostKeyInfo is the server's host key blob and the signature over the
// exchange hash, handed back to the caller for verification.
type HostKeyInfo struct {
	HostKeyBlob []byte
	Signature   []byte
}

func writeHashString(h io.Writer, b []byte) {
	var lbuf [4]byte
	binary.BigEndian.PutUint32(lbuf[:], uint32(len(b)))
	h.Write(lbuf[:])
	h.Write(b)
}

// computeExchangeHash implements RFC 4253 §8's H = hash(V_C || V_S ||
// I_C || I_S || K_S || Q_C || Q_S || K), where each of V_C, V_S, I_C,
// I_S, K_S, Q_C, Q_S is length-prefixed and K is the mpint-encoded shared
// secret, also length-prefixed.
func computeExchangeHash(in ExchangeInputs, hostKeyBlob, qc, qs, k []byte) []byte {
	h := sha256.New()
	writeHashString(h, in.VC)
	writeHashString(h, in.VS)
	writeHashString(h, in.ClientKI)
	writeHashString(h, in.ServerKI)
	writeHashString(h, hostKeyBlob)
	writeHashString(h, qc)
	writeHashString(h, qs)
	writeHashString(h, k)
	return h.Sum(nil)
}

// mpint encodes a big-endian unsigned integer per RFC 4251 §5: a leading
// zero byte is prepended if the high bit of the first byte would
// otherwise be set, so the value is never misread as negative.
func mpint(b []byte) []byte {
	for len(b) > 0 && b[0] == 0 {
		b = b[1:]
	}
	if len(b) > 0 && b[0]&0x80 != 0 {
		return append([]byte{0x00}, b...)
	}
	return b
}

// DeriveKeys implements RFC 4253 §7.2's key-derivation function,
// producing the six keying materials (two IVs, two encryption keys, two
// MAC keys) from the shared secret, exchange hash, and session
// identifier. sessionID equals H itself on the very first key exchange
// and is held fixed across any later re-key.
func DeriveKeys(k, h, sessionID []byte) (ivCS, ivSC, keyCS, keySC, macCS, macSC []byte) {
	ivCS = deriveKey(k, h, sessionID, 'A', 16)
	ivSC = deriveKey(k, h, sessionID, 'B', 16)
	keyCS = deriveKey(k, h, sessionID, 'C', 16)
	keySC = deriveKey(k, h, sessionID, 'D', 16)
	macCS = deriveKey(k, h, sessionID, 'E', 32)
	macSC = deriveKey(k, h, sessionID, 'F', 32)
	return
}

func deriveKey(k, h, sessionID []byte, tag byte, length int) []byte {
	hash := sha256.New()
	writeHashString(hash, k)
	hash.Write(h)
	hash.Write([]byte{tag})
	hash.Write(sessionID)
	key := hash.Sum(nil)
	for len(key) < length {
		hash.Reset()
		writeHashString(hash, k)
		hash.Write(h)
		hash.Write(key)
		key = append(key, hash.Sum(nil)...)
	}
	return key[:length]
}

// ECDHP256 implements ecdh-sha2-nistp256.
type ECDHP256 struct{}

func (ECDHP256) Algorithm() string { return "ecdh-sha2-nistp256" }

func (ECDHP256) Run(pio PacketIO, exchange ExchangeInputs) (Result, HostKeyInfo, error) {
	curve := ecdh.P256()
	priv, err := curve.GenerateKey(rand.Reader)
	if err != nil {
		return Result{}, HostKeyInfo{}, fmt.Errorf("kex: generating ecdh key: %w", err)
	}
	qc := priv.PublicKey().Bytes()

	if err := sendKexECDHInit(pio, qc); err != nil {
		return Result{}, HostKeyInfo{}, err
	}

	hostKeyBlob, qs, sig, err := readKexECDHReply(pio)
	if err != nil {
		return Result{}, HostKeyInfo{}, err
	}

	serverPub, err := curve.NewPublicKey(qs)
	if err != nil {
		return Result{}, HostKeyInfo{}, fmt.Errorf("kex: invalid server ephemeral key: %w", err)
	}
	secret, err := priv.ECDH(serverPub)
	if err != nil {
		return Result{}, HostKeyInfo{}, fmt.Errorf("kex: ecdh agreement failed: %w", err)
	}
	k := mpint(secret)

	h := computeExchangeHash(exchange, hostKeyBlob, qc, qs, k)
	return Result{K: k, H: h}, HostKeyInfo{HostKeyBlob: hostKeyBlob, Signature: sig}, nil
}

// Curve25519SHA256 implements curve25519-sha256, the preferred modern
// key-exchange algorithm (RFC 8731).
type Curve25519SHA256 struct{}

func (Curve25519SHA256) Algorithm() string { return "curve25519-sha256" }

func (Curve25519SHA256) Run(pio PacketIO, exchange ExchangeInputs) (Result, HostKeyInfo, error) {
	var priv [32]byte
	if _, err := io.ReadFull(rand.Reader, priv[:]); err != nil {
		return Result{}, HostKeyInfo{}, fmt.Errorf("kex: generating curve25519 key: %w", err)
	}
	qc, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return Result{}, HostKeyInfo{}, fmt.Errorf("kex: deriving curve25519 public key: %w", err)
	}

	if err := sendKexECDHInit(pio, qc); err != nil {
		return Result{}, HostKeyInfo{}, err
	}

	hostKeyBlob, qs, sig, err := readKexECDHReply(pio)
	if err != nil {
		return Result{}, HostKeyInfo{}, err
	}

	secret, err := curve25519.X25519(priv[:], qs)
	if err != nil {
		return Result{}, HostKeyInfo{}, fmt.Errorf("kex: curve25519 agreement failed: %w", err)
	}
	k := mpint(secret)

	h := computeExchangeHash(exchange, hostKeyBlob, qc, qs, k)
	return Result{K: k, H: h}, HostKeyInfo{HostKeyBlob: hostKeyBlob, Signature: sig}, nil
}

// SSH_MSG_KEXDH_INIT / SSH_MSG_KEXDH_REPLY (RFC 4253 §8); the ECDH and
// curve25519 key exchanges share this framing, differing only in the
// ephemeral public key's encoding (both are plain length-prefixed byte
// strings, so no difference shows up here).
const (
	msgKexECDHInit  = 30
	msgKexECDHReply = 31
)

func sendKexECDHInit(pio PacketIO, qc []byte) error {
	var buf bytes.Buffer
	buf.WriteByte(msgKexECDHInit)
	writeLenPrefixed(&buf, qc)
	return pio.Send(buf.Bytes())
}

func readKexECDHReply(pio PacketIO) (hostKeyBlob, qs, sig []byte, err error) {
	payload, err := pio.Receive()
	if err != nil {
		return nil, nil, nil, err
	}
	if len(payload) == 0 || payload[0] != msgKexECDHReply {
		return nil, nil, nil, fmt.Errorf("kex: expected KEXDH_REPLY, got message %v", payload)
	}
	r := bytes.NewReader(payload[1:])
	if hostKeyBlob, err = readLenPrefixed(r); err != nil {
		return nil, nil, nil, fmt.Errorf("kex: decoding host key blob: %w", err)
	}
	if qs, err = readLenPrefixed(r); err != nil {
		return nil, nil, nil, fmt.Errorf("kex: decoding server ephemeral key: %w", err)
	}
	if sig, err = readLenPrefixed(r); err != nil {
		return nil, nil, nil, fmt.Errorf("kex: decoding signature: %w", err)
	}
	return hostKeyBlob, qs, sig, nil
}

func writeLenPrefixed(buf *bytes.Buffer, b []byte) {
	var lbuf [4]byte
	binary.BigEndian.PutUint32(lbuf[:], uint32(len(b)))
	buf.Write(lbuf[:])
	buf.Write(b)
}

func readLenPrefixed(r *bytes.Reader) ([]byte, error) {
	var lbuf [4]byte
	if _, err := io.ReadFull(r, lbuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lbuf[:])
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}
