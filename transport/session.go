// Package transport implements the packet engine (C3) and the KEXINIT /
// version-exchange handling (C4) that sit on top of the wire codec and
// cipher packages. It owns the per-direction sequence counters and
// cipher/MAC state described in spec §3 ("Session state") and mediates
// every byte that crosses the wire after the initial banner exchange.
package transport

import (
	"crypto/rand"
	"hash"
	"io"
	"sync"

	"github.com/cyberpanther232/goshell/cipher"
)

// Role distinguishes which side of the connection a Session is playing,
// since some protocol choices (e.g. who proposes first) are
// role-dependent even though the transport itself is symmetric.
type Role int

const (
	RoleClient Role = iota
	RoleServer
)

// MaxPacketLength is the RFC 4253 floor requirement this implementation
// enforces as a hard cap (spec §4.3 step 6, §9 Open Questions).
const MaxPacketLength = 35000

// half owns one direction's evolving cipher, sequence counter, and
// (for non-AEAD ciphers) MAC. A Session holds two independent halves —
// send and recv — so that the reader and the writer never contend on the
// same lock, matching spec §5's two-cooperating-parties model.
type half struct {
	mu     sync.Mutex
	seq    uint32
	cipher cipher.Cipher
	mac    hash.Hash // nil when cipher.IsAEAD()
}

// Session is the shared, mostly-immutable state the packet engine reads:
// the two identification banners and the session identifier. It is
// created once at connection setup and never mutated after the fields
// below are set, except SessionID, which transitions exactly once from
// nil to the first exchange hash.
type Session struct {
	Role Role

	VC []byte // our banner, byte-exact as sent, excluding CR/LF
	VS []byte // peer's banner, byte-exact as received, excluding CR/LF

	// SessionID is nil until the first key exchange completes, then
	// immutable: the exchange hash H of that first KEX.
	SessionID []byte
}

// Engine is the packet engine (C3): it mediates between the current
// cipher instances and the underlying byte channel, maintaining the
// send/receive sequence counters across re-keys.
type Engine struct {
	conn io.ReadWriter
	rand io.Reader

	session *Session

	send half
	recv half
}

// NewEngine wraps conn with a packet engine initialized to the null
// cipher in both directions, as required before the first key exchange.
func NewEngine(conn io.ReadWriter, session *Session) *Engine {
	none, _ := cipher.New("none", nil, nil)
	noneRecv, _ := cipher.New("none", nil, nil)
	return &Engine{
		conn:    conn,
		rand:    rand.Reader,
		session: session,
		send:    half{cipher: none},
		recv:    half{cipher: noneRecv},
	}
}

// Session returns the session state this engine was constructed with.
func (e *Engine) Session() *Session { return e.session }

// SendSeq returns the current outbound sequence number (for tests and
// diagnostics; not used in the hot path).
func (e *Engine) SendSeq() uint32 {
	e.send.mu.Lock()
	defer e.send.mu.Unlock()
	return e.send.seq
}

// RecvSeq returns the current inbound sequence number.
func (e *Engine) RecvSeq() uint32 {
	e.recv.mu.Lock()
	defer e.recv.mu.Unlock()
	return e.recv.seq
}

// RekeySend atomically replaces the outbound cipher and MAC. Per spec
// §5, this takes effect for the next packet sent after SSH_MSG_NEWKEYS;
// callers are responsible for sequencing that at the driver level — this
// method only performs the atomic swap itself.
func (e *Engine) RekeySend(c cipher.Cipher, mac hash.Hash) {
	e.send.mu.Lock()
	defer e.send.mu.Unlock()
	e.send.cipher = c
	e.send.mac = mac
}

// RekeyRecv atomically replaces the inbound cipher and MAC.
func (e *Engine) RekeyRecv(c cipher.Cipher, mac hash.Hash) {
	e.recv.mu.Lock()
	defer e.recv.mu.Unlock()
	e.recv.cipher = c
	e.recv.mac = mac
}
