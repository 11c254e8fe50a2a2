package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"io"
)

// DisconnectReason mirrors the SSH_MSG_DISCONNECT reason codes this
// implementation actually emits (RFC 4253 §11.1). Only the handful spec
// §7 calls for are named.
type DisconnectReason uint32

const (
	ReasonProtocolError      DisconnectReason = 2
	ReasonKeyExchangeFailed  DisconnectReason = 3
	ReasonMACError           DisconnectReason = 5
)

// ProtocolError is a fatal transport error, carrying the disconnect
// reason the caller should send (if the channel is still writable)
// before closing. Per spec §7, MAC/AEAD failures never reveal more detail
// than "MAC error" — Err may be nil for that reason.
type ProtocolError struct {
	Reason DisconnectReason
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transport: %v", e.Err)
	}
	return fmt.Sprintf("transport: disconnect reason %d", e.Reason)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

func protoErr(reason DisconnectReason, err error) error {
	return &ProtocolError{Reason: reason, Err: err}
}

// Send frames payload per spec §4.3: it asks the current send cipher for
// the padding size, composes length||padding_len||payload||padding,
// encrypts it, appends a MAC if the cipher isn't itself an AEAD, and
// writes the result atomically. The send sequence number increments
// exactly once per call and wraps modulo 2^32.
func (e *Engine) Send(payload []byte) error {
	e.send.mu.Lock()
	defer e.send.mu.Unlock()

	c := e.send.cipher
	pad := c.PaddingSize(len(payload))

	frame := make([]byte, 4+1+len(payload)+pad)
	binary.BigEndian.PutUint32(frame[:4], uint32(1+len(payload)+pad))
	frame[4] = byte(pad)
	copy(frame[5:5+len(payload)], payload)
	if _, err := io.ReadFull(e.rand, frame[5+len(payload):]); err != nil {
		return fmt.Errorf("transport: generating padding: %w", err)
	}

	ciphertext, err := c.Encrypt(frame)
	if err != nil {
		return protoErr(ReasonProtocolError, err)
	}

	out := ciphertext
	if !c.IsAEAD() {
		if e.send.mac != nil {
			mac := computeMAC(e.send.mac, e.send.seq, frame)
			out = append(append([]byte{}, ciphertext...), mac...)
		}
	}

	if _, err := e.conn.Write(out); err != nil {
		return err
	}
	e.send.seq++
	return nil
}

// Receive reads and authenticates one inbound packet, per spec §4.3. It
// enforces the 35000-byte packet cap against the length LengthOf reports
// before allocating a buffer for the rest of the packet, so a corrupted
// or malicious peer cannot force a multi-gigabyte allocation just by
// claiming a huge length in the (possibly still-encrypted) header; it
// also enforces the same cap again against the cleartext length field
// after decryption, and the >=4 byte padding minimum, returning a fatal
// *ProtocolError on any violation — including a MAC or AEAD-tag
// mismatch, which per spec §7 must not reveal which check failed.
func (e *Engine) Receive() ([]byte, error) {
	e.recv.mu.Lock()
	defer e.recv.mu.Unlock()

	c := e.recv.cipher
	header := make([]byte, c.HeaderLen())
	if _, err := io.ReadFull(e.conn, header); err != nil {
		return nil, err
	}

	remaining, err := c.LengthOf(header)
	if err != nil {
		return nil, protoErr(ReasonProtocolError, err)
	}
	if remaining < 0 || remaining > MaxPacketLength {
		return nil, protoErr(ReasonProtocolError, fmt.Errorf("packet length implies %d remaining bytes, exceeds cap", remaining))
	}

	// LengthOf reports only how much more ciphertext completes the
	// frame; for a non-AEAD cipher the sender also appends a MAC after
	// that ciphertext (packet.go's Send), which GCM's LengthOf folds in
	// via gcmTagSize but CBC/CTR's do not, since they have no tag of
	// their own to account for.
	macLen := 0
	if !c.IsAEAD() && e.recv.mac != nil {
		macLen = e.recv.mac.Size()
	}

	rest := make([]byte, remaining+macLen)
	if _, err := io.ReadFull(e.conn, rest); err != nil {
		return nil, err
	}
	raw := append(header, rest...)

	if len(raw) < macLen {
		return nil, protoErr(ReasonProtocolError, errors.New("packet shorter than MAC"))
	}
	body := raw[:len(raw)-macLen]
	trailingMAC := raw[len(raw)-macLen:]

	frame, err := c.Decrypt(body)
	if err != nil {
		return nil, protoErr(ReasonMACError, nil)
	}

	if !c.IsAEAD() && e.recv.mac != nil {
		expected := computeMAC(e.recv.mac, e.recv.seq, frame)
		if !constantTimeEqual(expected, trailingMAC) {
			return nil, protoErr(ReasonMACError, nil)
		}
	}

	if len(frame) < 5 {
		return nil, protoErr(ReasonProtocolError, errors.New("frame shorter than header"))
	}
	packetLen := binary.BigEndian.Uint32(frame[:4])
	if packetLen > MaxPacketLength {
		return nil, protoErr(ReasonProtocolError, fmt.Errorf("packet length %d exceeds cap", packetLen))
	}
	padLen := frame[4]
	if padLen < 4 {
		return nil, protoErr(ReasonProtocolError, fmt.Errorf("padding length %d below minimum", padLen))
	}
	if uint32(1+int(padLen)) > packetLen {
		return nil, protoErr(ReasonProtocolError, errors.New("padding longer than packet"))
	}
	payloadLen := int(packetLen) - int(padLen) - 1
	if 5+payloadLen > len(frame) {
		return nil, protoErr(ReasonProtocolError, errors.New("payload runs past frame"))
	}
	payload := frame[5 : 5+payloadLen]

	e.recv.seq++
	return payload, nil
}

func computeMAC(h hash.Hash, seq uint32, frame []byte) []byte {
	h.Reset()
	var seqBuf [4]byte
	binary.BigEndian.PutUint32(seqBuf[:], seq)
	h.Write(seqBuf[:])
	h.Write(frame)
	return h.Sum(nil)
}

func constantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var v byte
	for i := range a {
		v |= a[i] ^ b[i]
	}
	return v == 0
}
