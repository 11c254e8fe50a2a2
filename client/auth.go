package client

import (
	"bytes"
	"fmt"

	"github.com/cyberpanther232/goshell/transport"
	"github.com/cyberpanther232/goshell/wire"
)

// authenticate drives the AuthLoop/PwTry states (spec §4.5): it tries
// every configured public-key credential in order, falling back to a
// single password attempt if one is configured and every key is
// rejected. It returns AuthExhaustedError if nothing succeeds.
func authenticate(engine *transport.Engine, session *transport.Session, cfg Config, log Logger) error {
	for _, signer := range cfg.Identities {
		ok, methods, partial, err := tryPublicKey(engine, session, cfg.Username, signer)
		if err != nil {
			return fatal("AuthLoop", err)
		}
		if ok {
			return nil
		}
		log.Debugf("publickey auth rejected for %s, methods remaining: %v, partial=%v", signer.Algorithm(), methods, partial)
		if len(methods) == 0 && !partial {
			return AuthExhaustedError{}
		}
	}

	if cfg.Password != nil {
		password, err := cfg.Password()
		if err != nil {
			return fatal("PwTry", err)
		}
		ok, err := tryPassword(engine, cfg.Username, password)
		if err != nil {
			return fatal("PwTry", err)
		}
		if ok {
			return nil
		}
	}

	return AuthExhaustedError{}
}

// tryPublicKey performs the two-message publickey method for one
// candidate credential: a signed SSH_MSG_USERAUTH_REQUEST built per spec
// §4.5's signing-input layout.
func tryPublicKey(engine *transport.Engine, session *transport.Session, username string, signer Signer) (ok bool, failureMethods []string, partial bool, err error) {
	if session.SessionID == nil {
		return false, nil, false, fmt.Errorf("no session id established before authentication")
	}

	algo := signer.Algorithm()
	pubBlob := signer.PublicKeyBlob()

	body := new(bytes.Buffer)
	body.WriteByte(msgUserAuthRequest)
	writeHashString(body, []byte(username))
	writeHashString(body, []byte("ssh-connection"))
	writeHashString(body, []byte("publickey"))
	body.WriteByte(1) // TRUE: signature included
	writeHashString(body, []byte(algo))
	writeHashString(body, pubBlob)

	signingInput := new(bytes.Buffer)
	writeHashString(signingInput, session.SessionID)
	signingInput.Write(body.Bytes())

	sig, err := signer.Sign(signingInput.Bytes())
	if err != nil {
		return false, nil, false, fmt.Errorf("signing authentication request: %w", err)
	}

	sigBlob := new(bytes.Buffer)
	writeHashString(sigBlob, []byte(algo))
	writeHashString(sigBlob, sig)
	writeHashString(body, sigBlob.Bytes())

	if err := engine.Send(body.Bytes()); err != nil {
		return false, nil, false, err
	}

	resp, err := engine.Receive()
	if err != nil {
		return false, nil, false, err
	}
	if len(resp) == 0 {
		return false, nil, false, fmt.Errorf("empty authentication response")
	}

	switch resp[0] {
	case msgUserAuthSuccess:
		return true, nil, false, nil
	case msgUserAuthFailure:
		methods, partial, err := parseUserAuthFailure(resp)
		if err != nil {
			return false, nil, false, err
		}
		return false, methods, partial, nil
	case msgUserAuthBanner:
		// A banner may precede the real response; read once more.
		resp, err = engine.Receive()
		if err != nil {
			return false, nil, false, err
		}
		if len(resp) > 0 && resp[0] == msgUserAuthSuccess {
			return true, nil, false, nil
		}
		methods, partial, err := parseUserAuthFailure(resp)
		if err != nil {
			return false, nil, false, err
		}
		return false, methods, partial, nil
	default:
		return false, nil, false, fmt.Errorf("unexpected message %d during publickey auth", resp[0])
	}
}

func tryPassword(engine *transport.Engine, username string, password []byte) (bool, error) {
	body := new(bytes.Buffer)
	body.WriteByte(msgUserAuthRequest)
	writeHashString(body, []byte(username))
	writeHashString(body, []byte("ssh-connection"))
	writeHashString(body, []byte("password"))
	body.WriteByte(0) // FALSE: not changing password
	writeHashString(body, password)

	if err := engine.Send(body.Bytes()); err != nil {
		return false, err
	}

	resp, err := engine.Receive()
	if err != nil {
		return false, err
	}
	if len(resp) == 0 {
		return false, fmt.Errorf("empty authentication response")
	}
	switch resp[0] {
	case msgUserAuthSuccess:
		return true, nil
	case msgUserAuthFailure:
		return false, nil
	default:
		return false, fmt.Errorf("unexpected message %d during password auth", resp[0])
	}
}

// parseUserAuthFailure decodes SSH_MSG_USERAUTH_FAILURE's payload: a
// name-list of methods that could continue, and a boolean for whether
// partial success occurred.
func parseUserAuthFailure(payload []byte) (methods []string, partial bool, err error) {
	if len(payload) < 1 {
		return nil, false, fmt.Errorf("short USERAUTH_FAILURE payload")
	}
	methods, rest, err := wire.GetNameList(payload[1:])
	if err != nil {
		return nil, false, fmt.Errorf("decoding USERAUTH_FAILURE method list: %w", err)
	}
	partialFlag, _, err := wire.GetBool(rest)
	if err != nil {
		return nil, false, fmt.Errorf("decoding USERAUTH_FAILURE partial-success flag: %w", err)
	}
	return methods, partialFlag, nil
}
