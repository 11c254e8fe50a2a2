package client

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"hash"

	"golang.org/x/crypto/ssh"

	"github.com/cyberpanther232/goshell/cipher"
	"github.com/cyberpanther232/goshell/internal/kex"
	"github.com/cyberpanther232/goshell/transport"
	"github.com/cyberpanther232/goshell/wire"
)

// runKeyExchange drives one KEXINIT/KEXDH/NEWKEYS round: it builds and
// sends our KEXINIT, reads the server's, negotiates algorithms, runs the
// matching kex.Runner, verifies the server's signature over the exchange
// hash, and re-keys both directions of engine once SSH_MSG_NEWKEYS has
// been exchanged.
func runKeyExchange(
	engine *transport.Engine,
	session *transport.Session,
	proposal transport.Proposal,
	runners []kex.Runner,
	verifier HostKeyVerifier,
) (transport.Algorithms, error) {
	ourKexInit, err := transport.NewKexInit(proposal)
	if err != nil {
		return transport.Algorithms{}, fatal("Identified", err)
	}
	ourEncoded := ourKexInit.Encode()
	if err := engine.Send(ourEncoded); err != nil {
		return transport.Algorithms{}, fatal("Identified", err)
	}

	serverEncoded, err := engine.Receive()
	if err != nil {
		return transport.Algorithms{}, fatal("Identified", err)
	}
	serverKexInit, err := transport.DecodeKexInit(serverEncoded)
	if err != nil {
		return transport.Algorithms{}, fatal("Identified", err)
	}

	algos, err := transport.Negotiate(ourKexInit, serverKexInit)
	if err != nil {
		return transport.Algorithms{}, fatal("Identified", err)
	}

	runner := findRunner(runners, algos.Kex)
	if runner == nil {
		return transport.Algorithms{}, fatal("Identified", fmt.Errorf("no key-exchange runner for negotiated algorithm %q", algos.Kex))
	}

	exchange := kex.ExchangeInputs{
		VC:       session.VC,
		VS:       session.VS,
		ClientKI: ourEncoded,
		ServerKI: serverEncoded,
	}
	result, hostKeyInfo, err := runner.Run(engine, exchange)
	if err != nil {
		return transport.Algorithms{}, fatal("Identified", err)
	}

	if err := verifyHostKeySignature(hostKeyInfo, result.H); err != nil {
		return transport.Algorithms{}, fatal("Identified", err)
	}
	if verifier != nil {
		if err := verifier.Verify(hostKeyInfo.HostKeyBlob); err != nil {
			return transport.Algorithms{}, fatal("Identified", err)
		}
	}

	if session.SessionID == nil {
		session.SessionID = result.H
	}

	if err := engine.Send([]byte{msgNewKeys}); err != nil {
		return transport.Algorithms{}, fatal("Identified", err)
	}
	peerNewKeys, err := engine.Receive()
	if err != nil {
		return transport.Algorithms{}, fatal("Identified", err)
	}
	if len(peerNewKeys) == 0 || peerNewKeys[0] != msgNewKeys {
		return transport.Algorithms{}, fatal("Identified", fmt.Errorf("expected SSH_MSG_NEWKEYS, got %v", peerNewKeys))
	}

	ivCS, ivSC, keyCS, keySC, macCS, macSC := kex.DeriveKeys(result.K, result.H, session.SessionID)

	sendCipher, err := cipher.New(algos.EncCS, keyCS, ivCS)
	if err != nil {
		return transport.Algorithms{}, fatal("Identified", err)
	}
	recvCipher, err := cipher.New(algos.EncSC, keySC, ivSC)
	if err != nil {
		return transport.Algorithms{}, fatal("Identified", err)
	}

	engine.RekeySend(sendCipher, macFor(sendCipher, macCS))
	engine.RekeyRecv(recvCipher, macFor(recvCipher, macSC))

	return algos, nil
}

// macFor returns an HMAC-SHA2-256 instance keyed by macKey, or nil if c
// is an AEAD cipher and authenticates its own output instead.
func macFor(c cipher.Cipher, macKey []byte) hash.Hash {
	if c.IsAEAD() {
		return nil
	}
	return hmac.New(sha256.New, macKey)
}

func findRunner(runners []kex.Runner, name string) kex.Runner {
	for _, r := range runners {
		if r.Algorithm() == name {
			return r
		}
	}
	return nil
}

// verifyHostKeySignature checks that hostKeyInfo.Signature is a valid
// signature, by the key in hostKeyInfo.HostKeyBlob, over h. This is a
// cryptographic sanity check independent of whether the caller's
// HostKeyVerifier chooses to trust that key at all.
func verifyHostKeySignature(hostKeyInfo kex.HostKeyInfo, h []byte) error {
	pub, err := ssh.ParsePublicKey(hostKeyInfo.HostKeyBlob)
	if err != nil {
		return fmt.Errorf("parsing host key: %w", err)
	}
	sig, rest, ok := parseSignatureBlob(hostKeyInfo.Signature)
	if !ok || len(rest) != 0 {
		return fmt.Errorf("malformed host key signature blob")
	}
	if err := pub.Verify(h, sig); err != nil {
		return fmt.Errorf("host key signature did not verify: %w", err)
	}
	return nil
}

// parseSignatureBlob decodes the SSH signature wire format: a
// length-prefixed algorithm name followed by a length-prefixed signature
// blob, as golang.org/x/crypto/ssh.Signature expects.
func parseSignatureBlob(b []byte) (*ssh.Signature, []byte, bool) {
	format, rest, err := wire.GetString(b)
	if err != nil {
		return nil, nil, false
	}
	blob, rest, err := wire.GetString(rest)
	if err != nil {
		return nil, nil, false
	}
	return &ssh.Signature{Format: string(format), Blob: blob}, rest, true
}
