package wire

import (
	"bufio"
	"bytes"
	"testing"
)

func TestIdentEncodeScenarioB(t *testing.T) {
	id := Ident{Proto: "2.0", Software: "OpenSSH_Emulator", Comment: "x"}
	got := id.Encode()
	want := []byte{
		0x53, 0x53, 0x48, 0x2D, 0x32, 0x2E, 0x30, 0x2D,
		0x4F, 0x70, 0x65, 0x6E, 0x53, 0x53, 0x48, 0x5F,
		0x45, 0x6D, 0x75, 0x6C, 0x61, 0x74, 0x6F, 0x72,
		0x20, 0x78, 0x0D, 0x0A,
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("got  % X\nwant % X", got, want)
	}
}

func TestIdentRoundTrip(t *testing.T) {
	id := Ident{Proto: "2.0", Software: "GoSHELL_1.0", Comment: "extra info"}
	r := bufio.NewReader(bytes.NewReader(id.Encode()))
	got, err := ReadIdent(r)
	if err != nil {
		t.Fatal(err)
	}
	if got != id {
		t.Fatalf("got %+v, want %+v", got, id)
	}
}

func TestIdentNoComment(t *testing.T) {
	id := Ident{Proto: "2.0", Software: "GoSHELL_1.0"}
	r := bufio.NewReader(bytes.NewReader(id.Encode()))
	got, err := ReadIdent(r)
	if err != nil {
		t.Fatal(err)
	}
	if got != id {
		t.Fatalf("got %+v, want %+v", got, id)
	}
}

func TestIdentMissingPrefix(t *testing.T) {
	r := bufio.NewReader(bytes.NewReader([]byte("garbage line\r\n")))
	if _, err := ReadIdent(r); err == nil {
		t.Fatal("expected error for missing SSH- prefix")
	}
}

func TestIdentOptionalFinalLF(t *testing.T) {
	// No trailing LF at all, but the stream ends right there: this must
	// still be accepted per spec §4.1.
	r := bufio.NewReader(bytes.NewReader([]byte("SSH-2.0-GoSHELL_1.0")))
	got, err := ReadIdent(r)
	if err != nil {
		t.Fatal(err)
	}
	want := Ident{Proto: "2.0", Software: "GoSHELL_1.0"}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestIdentValidateRejectsReservedChars(t *testing.T) {
	bad := Ident{Proto: "2.0", Software: "bad name"}
	if err := bad.Validate(); err == nil {
		t.Fatal("expected validation error for space in software field")
	}
}
