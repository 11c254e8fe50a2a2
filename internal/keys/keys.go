// Package keys loads private key credentials from disk and adapts them
// to the client package's Signer interface, using golang.org/x/crypto/ssh
// for parsing and marshaling rather than hand-rolling ASN.1/PEM handling.
package keys

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"fmt"
	"os"

	"golang.org/x/crypto/ssh"
)

// Identity is a loaded private key credential: its wire algorithm name,
// the marshaled public key blob, and a signer over the raw private key.
// It implements the client package's Signer interface.
type Identity struct {
	algorithm string
	publicKey []byte
	signer    crypto.Signer
}

// Algorithm is the wire algorithm name this identity signs with, e.g.
// "ssh-ed25519" or "rsa-sha2-256".
func (id Identity) Algorithm() string { return id.algorithm }

// PublicKeyBlob is the marshaled public key, in the format
// SSH_MSG_USERAUTH_REQUEST's publickey method expects.
func (id Identity) PublicKeyBlob() []byte { return id.publicKey }

// Sign produces a raw signature over data using the identity's private
// key, in the format the algorithm calls for (PKCS#1 v1.5 + SHA-256 for
// RSA, plain Ed25519 otherwise). It does not wrap the result in the
// SSH signature-blob framing; the caller does that.
func (id Identity) Sign(data []byte) ([]byte, error) {
	switch k := id.signer.(type) {
	case *rsa.PrivateKey:
		digest := sha256.Sum256(data)
		return rsa.SignPKCS1v15(rand.Reader, k, crypto.SHA256, digest[:])
	case ed25519.PrivateKey:
		return ed25519.Sign(k, data), nil
	default:
		return nil, fmt.Errorf("keys: unsupported signer type %T", k)
	}
}

// Load reads a private key file at path, supporting both OpenSSH's
// native format and PEM-wrapped PKCS#1/PKCS#8, and returns an Identity
// usable as a client.Signer. Only ssh-rsa and ssh-ed25519 keys are
// supported; anything else (including ECDSA) is rejected with a named
// error, since this client's candidate algorithm list never offers them.
func Load(path string) (Identity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Identity{}, err
	}

	raw, err := ssh.ParseRawPrivateKey(data)
	if err != nil {
		return Identity{}, fmt.Errorf("keys: parsing %s: %w", path, err)
	}
	return identityFromRawKey(raw, path)
}

// LoadWithPassphrase is Load for a private key encrypted with a
// passphrase, e.g. one ssh-keygen produced with -N set. The CLI tries Load
// first and falls back to this when Load fails (for an encrypted key,
// ssh.ParseRawPrivateKey returns *ssh.PassphraseMissingError).
func LoadWithPassphrase(path string, passphrase []byte) (Identity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Identity{}, err
	}

	raw, err := ssh.ParseRawPrivateKeyWithPassphrase(data, passphrase)
	if err != nil {
		return Identity{}, fmt.Errorf("keys: parsing %s: %w", path, err)
	}
	return identityFromRawKey(raw, path)
}

func identityFromRawKey(raw any, path string) (Identity, error) {
	switch k := raw.(type) {
	case *rsa.PrivateKey:
		pub, err := ssh.NewPublicKey(k.Public())
		if err != nil {
			return Identity{}, err
		}
		return Identity{algorithm: "rsa-sha2-256", publicKey: pub.Marshal(), signer: k}, nil
	case ed25519.PrivateKey:
		pub, err := ssh.NewPublicKey(k.Public())
		if err != nil {
			return Identity{}, err
		}
		return Identity{algorithm: "ssh-ed25519", publicKey: pub.Marshal(), signer: k}, nil
	case *ed25519.PrivateKey:
		// ParseRawPrivateKey returns OpenSSH-format ed25519 keys by pointer.
		return identityFromRawKey(*k, path)
	default:
		return Identity{}, fmt.Errorf("keys: unsupported private key type %T in %s (supported: ssh-rsa, ssh-ed25519)", k, path)
	}
}
