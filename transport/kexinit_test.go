package transport

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/cyberpanther232/goshell/wire"
)

func sampleProposal() Proposal {
	return Proposal{
		Kex:     []string{"curve25519-sha256", "ecdh-sha2-nistp256"},
		HostKey: []string{"ssh-ed25519", "rsa-sha2-256"},
		EncCS:   []string{"aes128-gcm@openssh.com", "aes128-ctr"},
		EncSC:   []string{"aes128-gcm@openssh.com", "aes128-ctr"},
		MACCS:   []string{"hmac-sha2-256"},
		MACSC:   []string{"hmac-sha2-256"},
		CompCS:  []string{"none"},
		CompSC:  []string{"none"},
		LangCS:  []string{},
		LangSC:  []string{},
	}
}

func TestKexInitRoundTrip(t *testing.T) {
	k, err := NewKexInit(sampleProposal())
	if err != nil {
		t.Fatal(err)
	}
	k.FirstKexFollows = false

	encoded := k.Encode()
	decoded, err := DecodeKexInit(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(k, decoded); diff != "" {
		t.Fatalf("round-trip mismatch:\n%s", diff)
	}
}

func TestKexInitCookieComparesByteWise(t *testing.T) {
	k, err := NewKexInit(sampleProposal())
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := DecodeKexInit(k.Encode())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(k.Cookie[:], decoded.Cookie[:]) {
		t.Fatalf("cookie mismatch: %x vs %x", k.Cookie, decoded.Cookie)
	}
}

func TestKexInitScenarioCEmptyListsEncodeToFourZeroBytes(t *testing.T) {
	k := &KexInit{
		KexAlgorithms: []string{"curve25519-sha256"},
	}
	encoded := k.Encode()

	want := []byte{20}
	want = append(want, make([]byte, 16)...) // zero cookie
	want = append(want, 0, 0, 0, 17)
	want = append(want, []byte("curve25519-sha256")...)
	for i := 0; i < 9; i++ {
		want = append(want, 0, 0, 0, 0) // nine remaining empty name-lists
	}
	want = append(want, 0)          // first_kex_follows = false
	want = append(want, 0, 0, 0, 0) // reserved

	if !bytes.Equal(encoded, want) {
		t.Fatalf("got % X\nwant % X", encoded, want)
	}
}

func TestKexInitDecodeRejectsWrongMessageCode(t *testing.T) {
	k, err := NewKexInit(sampleProposal())
	if err != nil {
		t.Fatal(err)
	}
	encoded := k.Encode()
	encoded[0] = 21
	if _, err := DecodeKexInit(encoded); err == nil {
		t.Fatal("expected decode to reject wrong message code")
	}
}

func TestNegotiateClientPreferenceWins(t *testing.T) {
	client, err := NewKexInit(Proposal{
		Kex:     []string{"curve25519-sha256", "ecdh-sha2-nistp256"},
		HostKey: []string{"ssh-ed25519"},
		EncCS:   []string{"aes128-ctr", "aes128-gcm@openssh.com"},
		EncSC:   []string{"aes128-ctr", "aes128-gcm@openssh.com"},
		MACCS:   []string{"hmac-sha2-256"},
		MACSC:   []string{"hmac-sha2-256"},
	})
	if err != nil {
		t.Fatal(err)
	}
	server, err := NewKexInit(Proposal{
		Kex:     []string{"ecdh-sha2-nistp256", "curve25519-sha256"},
		HostKey: []string{"ssh-ed25519"},
		EncCS:   []string{"aes128-gcm@openssh.com", "aes128-ctr"},
		EncSC:   []string{"aes128-gcm@openssh.com", "aes128-ctr"},
		MACCS:   []string{"hmac-sha2-256"},
		MACSC:   []string{"hmac-sha2-256"},
	})
	if err != nil {
		t.Fatal(err)
	}

	algos, err := Negotiate(client, server)
	if err != nil {
		t.Fatal(err)
	}
	if algos.Kex != "curve25519-sha256" {
		t.Fatalf("kex = %q, want client's first preference present on server", algos.Kex)
	}
	if algos.EncCS != "aes128-ctr" {
		t.Fatalf("enc_cs = %q, want client's first preference present on server", algos.EncCS)
	}
}

func TestNegotiateFatalOnEmptyMandatoryIntersection(t *testing.T) {
	client, _ := NewKexInit(Proposal{
		Kex:     []string{"curve25519-sha256"},
		HostKey: []string{"ssh-ed25519"},
		EncCS:   []string{"aes128-ctr"},
		EncSC:   []string{"aes128-ctr"},
		MACCS:   []string{"hmac-sha2-256"},
		MACSC:   []string{"hmac-sha2-256"},
	})
	server, _ := NewKexInit(Proposal{
		Kex:     []string{"ecdh-sha2-nistp256"},
		HostKey: []string{"ssh-ed25519"},
		EncCS:   []string{"aes128-ctr"},
		EncSC:   []string{"aes128-ctr"},
		MACCS:   []string{"hmac-sha2-256"},
		MACSC:   []string{"hmac-sha2-256"},
	})

	if _, err := Negotiate(client, server); err == nil {
		t.Fatal("expected negotiation failure on empty kex intersection")
	}
}

func TestNegotiateCompressionMayBeEmpty(t *testing.T) {
	client, _ := NewKexInit(sampleProposal())
	server, _ := NewKexInit(sampleProposal())
	// Neither side offers compression at all.
	client.CompressionClientToServer = nil
	server.CompressionClientToServer = nil

	algos, err := Negotiate(client, server)
	if err != nil {
		t.Fatal(err)
	}
	if algos.CompCS != "" {
		t.Fatalf("comp_cs = %q, want empty", algos.CompCS)
	}
}

func TestExchangeVersionsDiscardsPreBannerLines(t *testing.T) {
	var toServer bytes.Buffer
	peerStream := "this is a pre-banner banner line the protocol allows\r\n" +
		"SSH-2.0-RemoteDaemon_9.1\r\n"
	r := bufio.NewReader(bytes.NewBufferString(peerStream))

	ours := wire.Ident{Proto: "2.0", Software: "goshell_1.0"}
	ourLine, peerLine, err := ExchangeVersions(&toServer, r, ours)
	if err != nil {
		t.Fatal(err)
	}
	if string(ourLine) != "SSH-2.0-goshell_1.0" {
		t.Fatalf("ourLine = %q", ourLine)
	}
	if string(peerLine) != "SSH-2.0-RemoteDaemon_9.1" {
		t.Fatalf("peerLine = %q, pre-banner line should have been discarded", peerLine)
	}
	if !bytes.Equal(toServer.Bytes(), ours.Encode()) {
		t.Fatalf("wrote %q, want banner with CRLF", toServer.Bytes())
	}
}
