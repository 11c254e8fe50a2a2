package transport

import (
	"bufio"
	"crypto/rand"
	"fmt"
	"io"

	"github.com/cyberpanther232/goshell/wire"
)

// MsgKexInit is the SSH_MSG_KEXINIT message code (RFC 4253 §7.1).
const MsgKexInit = 20

// KexInit is the decoded SSH_MSG_KEXINIT payload: one peer's cookie and
// ten ordered algorithm-preference name-lists.
type KexInit struct {
	Cookie [16]byte

	KexAlgorithms           []string
	ServerHostKeyAlgorithms []string
	EncryptionClientToServer []string
	EncryptionServerToClient []string
	MACClientToServer        []string
	MACServerToClient        []string
	CompressionClientToServer []string
	CompressionServerToClient []string
	LanguagesClientToServer   []string
	LanguagesServerToClient   []string

	FirstKexFollows bool
}

// NewKexInit builds a KexInit with a freshly generated cookie and
// first_kex_follows always false, since this implementation never pipes a
// guessed key-exchange packet behind KEXINIT.
func NewKexInit(proposal Proposal) (*KexInit, error) {
	k := &KexInit{
		KexAlgorithms:              proposal.Kex,
		ServerHostKeyAlgorithms:    proposal.HostKey,
		EncryptionClientToServer:   proposal.EncCS,
		EncryptionServerToClient:   proposal.EncSC,
		MACClientToServer:          proposal.MACCS,
		MACServerToClient:          proposal.MACSC,
		CompressionClientToServer:  proposal.CompCS,
		CompressionServerToClient:  proposal.CompSC,
		LanguagesClientToServer:    proposal.LangCS,
		LanguagesServerToClient:    proposal.LangSC,
	}
	if _, err := io.ReadFull(rand.Reader, k.Cookie[:]); err != nil {
		return nil, fmt.Errorf("transport: generating cookie: %w", err)
	}
	return k, nil
}

// Proposal is the set of algorithm-preference lists a caller configures;
// it mirrors the ten KexInit name-list slots without the cookie or
// first_kex_follows bookkeeping.
type Proposal struct {
	Kex     []string
	HostKey []string
	EncCS   []string
	EncSC   []string
	MACCS   []string
	MACSC   []string
	CompCS  []string
	CompSC  []string
	LangCS  []string
	LangSC  []string
}

// Encode serializes the KEXINIT payload, including the leading message
// code, per spec §6: u8 20; 16-byte cookie; 10 name-lists; u8
// first_kex_follows; u32 reserved = 0.
func (k *KexInit) Encode() []byte {
	buf := make([]byte, 0, 256)
	buf = wire.PutUint8(buf, MsgKexInit)
	buf = append(buf, k.Cookie[:]...)
	buf = wire.PutNameList(buf, k.KexAlgorithms)
	buf = wire.PutNameList(buf, k.ServerHostKeyAlgorithms)
	buf = wire.PutNameList(buf, k.EncryptionClientToServer)
	buf = wire.PutNameList(buf, k.EncryptionServerToClient)
	buf = wire.PutNameList(buf, k.MACClientToServer)
	buf = wire.PutNameList(buf, k.MACServerToClient)
	buf = wire.PutNameList(buf, k.CompressionClientToServer)
	buf = wire.PutNameList(buf, k.CompressionServerToClient)
	buf = wire.PutNameList(buf, k.LanguagesClientToServer)
	buf = wire.PutNameList(buf, k.LanguagesServerToClient)
	buf = wire.PutBool(buf, k.FirstKexFollows)
	buf = wire.PutUint32(buf, 0)
	return buf
}

// DecodeKexInit parses a full SSH_MSG_KEXINIT payload, including its
// leading message code byte.
func DecodeKexInit(payload []byte) (*KexInit, error) {
	msg, rest, err := wire.GetUint8(payload)
	if err != nil {
		return nil, &wire.ErrMalformed{Field: "kexinit.msg", Err: err}
	}
	if msg != MsgKexInit {
		return nil, &wire.ErrMalformed{Field: "kexinit.msg", Err: fmt.Errorf("got message code %d, want %d", msg, MsgKexInit)}
	}
	cookie, rest, err := wire.GetFixed(rest, 16)
	if err != nil {
		return nil, &wire.ErrMalformed{Field: "kexinit.cookie", Err: err}
	}

	lists := make([][]string, 10)
	fields := []string{
		"kex_algorithms", "server_host_key_algorithms",
		"encryption_client_to_server", "encryption_server_to_client",
		"mac_client_to_server", "mac_server_to_client",
		"compression_client_to_server", "compression_server_to_client",
		"languages_client_to_server", "languages_server_to_client",
	}
	for i := range lists {
		var names []string
		names, rest, err = wire.GetNameList(rest)
		if err != nil {
			return nil, &wire.ErrMalformed{Field: "kexinit." + fields[i], Err: err}
		}
		lists[i] = names
	}

	firstKexFollows, rest, err := wire.GetBool(rest)
	if err != nil {
		return nil, &wire.ErrMalformed{Field: "kexinit.first_kex_follows", Err: err}
	}
	_, _, err = wire.GetUint32(rest)
	if err != nil {
		return nil, &wire.ErrMalformed{Field: "kexinit.reserved", Err: err}
	}

	k := &KexInit{
		KexAlgorithms:              lists[0],
		ServerHostKeyAlgorithms:    lists[1],
		EncryptionClientToServer:   lists[2],
		EncryptionServerToClient:   lists[3],
		MACClientToServer:          lists[4],
		MACServerToClient:          lists[5],
		CompressionClientToServer:  lists[6],
		CompressionServerToClient:  lists[7],
		LanguagesClientToServer:    lists[8],
		LanguagesServerToClient:    lists[9],
		FirstKexFollows:            firstKexFollows,
	}
	copy(k.Cookie[:], cookie)
	return k, nil
}

// NegotiationError reports a mandatory name-list slot whose client and
// server proposals share no common algorithm.
type NegotiationError struct {
	Slot string
}

func (e *NegotiationError) Error() string {
	return fmt.Sprintf("transport: no common algorithm for %s", e.Slot)
}

// chooseFirst returns the first entry in client that also appears in
// server, per spec §4.4's negotiation rule: the client's preference order
// governs, the server's list only gates membership.
func chooseFirst(client, server []string) (string, bool) {
	serverSet := make(map[string]bool, len(server))
	for _, name := range server {
		serverSet[name] = true
	}
	for _, name := range client {
		if serverSet[name] {
			return name, true
		}
	}
	return "", false
}

// Algorithms is the result of negotiating a client KexInit against a
// server KexInit, one chosen name per slot.
type Algorithms struct {
	Kex     string
	HostKey string
	EncCS   string
	EncSC   string
	MACCS   string
	MACSC   string
	CompCS  string
	CompSC  string
	LangCS  string
	LangSC  string
}

// Negotiate implements spec §4.4: for each of the six mandatory slots
// (kex, host key, and encryption and MAC in both directions) the chosen
// algorithm is the first client-preferred name present in the server's
// list; an empty intersection on any mandatory slot is fatal.
// Compression and languages may legitimately negotiate to empty, in which
// case the chosen name is "".
func Negotiate(client, server *KexInit) (Algorithms, error) {
	var a Algorithms
	var ok bool

	mandatory := []struct {
		slot         string
		clientList   []string
		serverList   []string
		dst          *string
	}{
		{"kex_algorithms", client.KexAlgorithms, server.KexAlgorithms, &a.Kex},
		{"server_host_key_algorithms", client.ServerHostKeyAlgorithms, server.ServerHostKeyAlgorithms, &a.HostKey},
		{"encryption_client_to_server", client.EncryptionClientToServer, server.EncryptionClientToServer, &a.EncCS},
		{"encryption_server_to_client", client.EncryptionServerToClient, server.EncryptionServerToClient, &a.EncSC},
		{"mac_client_to_server", client.MACClientToServer, server.MACClientToServer, &a.MACCS},
		{"mac_server_to_client", client.MACServerToClient, server.MACServerToClient, &a.MACSC},
	}
	for _, m := range mandatory {
		*m.dst, ok = chooseFirst(m.clientList, m.serverList)
		if !ok {
			return Algorithms{}, &NegotiationError{Slot: m.slot}
		}
	}

	a.CompCS, _ = chooseFirst(client.CompressionClientToServer, server.CompressionClientToServer)
	a.CompSC, _ = chooseFirst(client.CompressionServerToClient, server.CompressionServerToClient)
	a.LangCS, _ = chooseFirst(client.LanguagesClientToServer, server.LanguagesClientToServer)
	a.LangSC, _ = chooseFirst(client.LanguagesServerToClient, server.LanguagesServerToClient)

	return a, nil
}

// ExchangeVersions writes our identification banner and reads the peer's,
// discarding any non-"SSH-" lines the peer sends first (spec §4.4). Both
// banners are returned byte-exact, without the trailing CR/LF, for
// inclusion in the exchange-hash input.
func ExchangeVersions(w io.Writer, r *bufio.Reader, ours wire.Ident) (ourLine, peerLine []byte, err error) {
	if err := ours.Validate(); err != nil {
		return nil, nil, err
	}
	encoded := ours.Encode()
	if _, err := w.Write(encoded); err != nil {
		return nil, nil, err
	}

	peerLine, _, err = wire.ReadIdentLine(r)
	if err != nil {
		return nil, nil, err
	}
	return encoded[:len(encoded)-2], peerLine, nil
}
