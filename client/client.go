// Package client implements the client-side SSH handshake driver (spec
// §4.5): version exchange, key exchange, service request, and public-key
// or password authentication, layered on top of the transport package's
// packet engine. It is the one package in this module that knows the
// shape of a full connection attempt end to end.
package client

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/cyberpanther232/goshell/internal/kex"
	"github.com/cyberpanther232/goshell/transport"
	"github.com/cyberpanther232/goshell/wire"
)

const (
	msgServiceRequest    = 5
	msgServiceAccept     = 6
	msgNewKeys           = 21
	msgUserAuthRequest   = 50
	msgUserAuthFailure   = 51
	msgUserAuthSuccess   = 52
	msgUserAuthBanner    = 53
	msgUserAuthPKOK      = 60
)

// Signer is the external per-credential collaborator the public-key
// authentication loop consumes: the algorithm name it signs under, its
// marshaled public key blob, and a function to sign arbitrary bytes.
type Signer interface {
	Algorithm() string
	PublicKeyBlob() []byte
	Sign(data []byte) ([]byte, error)
}

// HostKeyVerifier is consumed once per connection, after key exchange,
// to accept or reject the server's host key. A nil Config.HostKeyVerifier
// accepts any host key (equivalent to disabling host-key checking).
type HostKeyVerifier interface {
	Verify(hostKeyBlob []byte) error
}

// PasswordProvider supplies a single password to try after the
// public-key loop exhausts without success.
type PasswordProvider func() ([]byte, error)

// Config configures one connection attempt (spec §6's "Configuration"
// external interface).
type Config struct {
	// DebugVerbosity is an integer verbosity level; 0 disables debug
	// logging entirely.
	DebugVerbosity int

	// SoftwareVersion is this client's software field in its
	// identification banner, e.g. "goshell_1.0". It must contain neither
	// a space nor a '-'.
	SoftwareVersion string

	// Username is sent with every authentication attempt.
	Username string

	// Identities is the ordered list of public-key credentials to try,
	// most preferred first.
	Identities []Signer

	// Password, if non-nil, is consulted once after Identities is
	// exhausted without success.
	Password PasswordProvider

	// Proposal overrides the default algorithm-preference lists. A nil
	// Proposal uses DefaultProposal().
	Proposal *transport.Proposal

	// KeyExchanges is the ordered set of key-exchange runners this
	// client can perform; the one matching the negotiated kex algorithm
	// name is used. A nil slice uses DefaultKeyExchanges().
	KeyExchanges []kex.Runner

	// HostKeyVerifier is consulted once per connection; nil accepts any
	// host key.
	HostKeyVerifier HostKeyVerifier

	// OnKeyed, if non-nil, is invoked once immediately after the first
	// key exchange completes, receiving the transport engine. OnConnected
	// is invoked once authentication succeeds. Neither may send packets
	// of their own; they exist purely for debugging/instrumentation
	// (spec §4.5).
	OnKeyed     func(*transport.Engine)
	OnConnected func(*transport.Engine)

	Logger Logger
}

// Logger is the minimal structured-logging surface this package uses,
// satisfied by the application's own verbosity-gated logger.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
}

// DefaultProposal is the full algorithm set this implementation supports,
// most preferred first in each slot.
func DefaultProposal() transport.Proposal {
	return transport.Proposal{
		Kex:     []string{"curve25519-sha256", "ecdh-sha2-nistp256"},
		HostKey: []string{"ssh-ed25519", "rsa-sha2-256", "ssh-rsa"},
		EncCS:   []string{"aes128-gcm@openssh.com", "aes128-ctr", "aes128-cbc"},
		EncSC:   []string{"aes128-gcm@openssh.com", "aes128-ctr", "aes128-cbc"},
		MACCS:   []string{"hmac-sha2-256"},
		MACSC:   []string{"hmac-sha2-256"},
		CompCS:  []string{"none"},
		CompSC:  []string{"none"},
		LangCS:  []string{},
		LangSC:  []string{},
	}
}

// DefaultKeyExchanges is the set of key-exchange runners this client can
// perform, matching the kex slot of DefaultProposal.
func DefaultKeyExchanges() []kex.Runner {
	return []kex.Runner{kex.Curve25519SHA256{}, kex.ECDHP256{}}
}

// FatalError wraps a handshake failure with the state the driver was in
// when it occurred, so a caller gets more than a bare error string (spec
// §9's critique of the original driver's "die"-on-unexpected-response).
type FatalError struct {
	State string
	Err   error
}

func (e *FatalError) Error() string { return fmt.Sprintf("client: %s: %v", e.State, e.Err) }
func (e *FatalError) Unwrap() error { return e.Err }

func fatal(state string, err error) error { return &FatalError{State: state, Err: err} }

// AuthExhaustedError is returned when every candidate authentication
// method has been tried and none succeeded; this is a clean,
// non-protocol-error outcome the caller reports as "could not log in"
// (spec §7).
type AuthExhaustedError struct{}

func (AuthExhaustedError) Error() string { return "client: could not log in" }

// Connect runs the full handshake over conn: version exchange, key
// exchange, service request, and authentication, returning a ready
// *transport.Engine positioned at the Connected state once
// authentication succeeds.
func Connect(conn io.ReadWriter, cfg Config) (*transport.Engine, error) {
	log := cfg.Logger
	if log == nil {
		log = noopLogger{}
	}
	log = leveledLogger{Logger: log, verbosity: cfg.DebugVerbosity}

	proposal := DefaultProposal()
	if cfg.Proposal != nil {
		proposal = *cfg.Proposal
	}
	runners := cfg.KeyExchanges
	if runners == nil {
		runners = DefaultKeyExchanges()
	}

	session := &transport.Session{Role: transport.RoleClient}
	engine := transport.NewEngine(conn, session)

	// Start -> BannerSent -> Identified
	software := cfg.SoftwareVersion
	if software == "" {
		software = "goshell_1.0"
	}
	ours := wire.Ident{Proto: "2.0", Software: software}
	reader := bufio.NewReader(conn)
	ourLine, peerLine, err := transport.ExchangeVersions(conn, reader, ours)
	if err != nil {
		return nil, fatal("BannerSent", err)
	}
	session.VC = ourLine
	session.VS = peerLine
	log.Debugf("identified peer: %s", peerLine)

	// The version-exchange reader may have buffered bytes belonging to
	// the server's KEXINIT; rewrap conn so the packet engine reads
	// through the same buffer instead of losing them.
	engine = transport.NewEngine(bufferedConn{r: reader, w: conn}, session)

	// Identified -> Keyed
	algos, err := runKeyExchange(engine, session, proposal, runners, cfg.HostKeyVerifier)
	if err != nil {
		return nil, err
	}
	log.Infof("key exchange complete, negotiated %s/%s", algos.Kex, algos.EncCS)
	if cfg.OnKeyed != nil {
		cfg.OnKeyed(engine)
	}

	// Keyed -> AwaitingServiceAccept -> AuthLoop
	if err := requestUserAuthService(engine); err != nil {
		return nil, fatal("AwaitingServiceAccept", err)
	}

	if err := authenticate(engine, session, cfg, log); err != nil {
		return nil, err
	}

	log.Infof("authenticated as %s", cfg.Username)
	if cfg.OnConnected != nil {
		cfg.OnConnected(engine)
	}
	return engine, nil
}

// bufferedConn adapts a bufio.Reader (which may already hold bytes read
// past the banner line) and the original writer back into an
// io.ReadWriter the packet engine can use without losing anything.
type bufferedConn struct {
	r *bufio.Reader
	w io.Writer
}

func (b bufferedConn) Read(p []byte) (int, error)  { return b.r.Read(p) }
func (b bufferedConn) Write(p []byte) (int, error) { return b.w.Write(p) }

func requestUserAuthService(engine *transport.Engine) error {
	var buf bytes.Buffer
	buf.WriteByte(msgServiceRequest)
	writeHashString(&buf, []byte("ssh-userauth"))
	if err := engine.Send(buf.Bytes()); err != nil {
		return err
	}

	resp, err := engine.Receive()
	if err != nil {
		return err
	}
	if len(resp) == 0 || resp[0] != msgServiceAccept {
		return fmt.Errorf("expected SSH_MSG_SERVICE_ACCEPT, got %v", resp)
	}
	return nil
}

func writeHashString(buf *bytes.Buffer, b []byte) {
	var lbuf [4]byte
	binary.BigEndian.PutUint32(lbuf[:], uint32(len(b)))
	buf.Write(lbuf[:])
	buf.Write(b)
}

type noopLogger struct{}

func (noopLogger) Debugf(string, ...any) {}
func (noopLogger) Infof(string, ...any)  {}

// leveledLogger gates Debugf on Config.DebugVerbosity (spec §6: "debug
// verbosity (integer, 0 disables)"), so a caller's Logger implementation
// doesn't have to duplicate this check itself. Infof is never gated —
// verbosity controls debug detail, not the handshake's own top-level
// progress reporting.
type leveledLogger struct {
	Logger
	verbosity int
}

func (l leveledLogger) Debugf(format string, args ...any) {
	if l.verbosity <= 0 {
		return
	}
	l.Logger.Debugf(format, args...)
}
