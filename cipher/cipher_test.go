package cipher

import (
	"bytes"
	"crypto/aes"
	stdcipher "crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"io"
	"testing"
)

func zeroKeyIV(ivLen int) ([]byte, []byte) {
	key := make([]byte, 16)
	iv := make([]byte, ivLen)
	return key, iv
}

// roundTrip exercises the exact protocol the packet engine drives: read
// HeaderLen() bytes, call LengthOf, read the rest, then Decrypt the whole
// thing (minus any trailing MAC, which this cipher-level test has none
// of since it doesn't model the packet engine's separate MAC).
func roundTrip(t *testing.T, name string, key, iv []byte, frame []byte) []byte {
	t.Helper()
	send, err := New(name, key, iv)
	if err != nil {
		t.Fatal(err)
	}
	recv, err := New(name, key, iv)
	if err != nil {
		t.Fatal(err)
	}

	ciphertext, err := send.Encrypt(frame)
	if err != nil {
		t.Fatal(err)
	}

	header := ciphertext[:recv.HeaderLen()]
	remaining, err := recv.LengthOf(header)
	if err != nil {
		t.Fatal(err)
	}
	if recv.HeaderLen()+remaining != len(ciphertext) {
		t.Fatalf("%s: LengthOf mismatch: header=%d remaining=%d total=%d", name, recv.HeaderLen(), remaining, len(ciphertext))
	}

	got, err := recv.Decrypt(ciphertext)
	if err != nil {
		t.Fatal(err)
	}
	return got
}

func makeFrame(t *testing.T, c Cipher, payloadLen int) []byte {
	t.Helper()
	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(rand.Reader, payload); err != nil {
		t.Fatal(err)
	}
	pad := c.PaddingSize(payloadLen)
	padding := make([]byte, pad)
	length := uint32(1 + payloadLen + pad)

	frame := make([]byte, 0, 4+1+payloadLen+pad)
	var lbuf [4]byte
	binary.BigEndian.PutUint32(lbuf[:], length)
	frame = append(frame, lbuf[:]...)
	frame = append(frame, byte(pad))
	frame = append(frame, payload...)
	frame = append(frame, padding...)
	return frame
}

func TestRoundTripAllVariants(t *testing.T) {
	cases := []struct {
		name  string
		ivLen int
	}{
		{"none", 8},
		{"aes128-cbc", 16},
		{"aes128-ctr", 16},
		{"aes128-gcm@openssh.com", 12},
	}
	for _, c := range cases {
		for _, payloadLen := range []int{0, 1, 5, 16, 100, 1000} {
			key, iv := zeroKeyIV(c.ivLen)
			probe, err := New(c.name, key, iv)
			if err != nil {
				t.Fatal(err)
			}
			frame := makeFrame(t, probe, payloadLen)
			got := roundTrip(t, c.name, key, iv, frame)
			if !bytes.Equal(got, frame) {
				t.Fatalf("%s payloadLen=%d: round-trip mismatch\n got  % X\n want % X", c.name, payloadLen, got, frame)
			}
		}
	}
}

func TestGCMAuthFailureOnBitFlip(t *testing.T) {
	key, iv := zeroKeyIV(12)
	probe, err := New("aes128-gcm@openssh.com", key, iv)
	if err != nil {
		t.Fatal(err)
	}
	frame := makeFrame(t, probe, 10)

	flipBit := func(mutate func(ciphertext []byte)) {
		send, _ := New("aes128-gcm@openssh.com", key, iv)
		recv, _ := New("aes128-gcm@openssh.com", key, iv)
		ciphertext, err := send.Encrypt(frame)
		if err != nil {
			t.Fatal(err)
		}
		mutate(ciphertext)
		header := ciphertext[:recv.HeaderLen()]
		remaining, err := recv.LengthOf(header)
		if err != nil {
			// A flipped AAD length byte can itself cause LengthOf to
			// reject the packet outright, which is an acceptable
			// manifestation of "authentication/parsing fails".
			return
		}
		if recv.HeaderLen()+remaining != len(ciphertext) {
			return
		}
		if _, err := recv.Decrypt(ciphertext); err == nil {
			t.Fatal("expected decrypt failure after bit flip")
		}
	}

	// Flip a bit in the ciphertext body.
	flipBit(func(ct []byte) { ct[6] ^= 0x01 })
	// Flip a bit in the AAD (cleartext length prefix).
	flipBit(func(ct []byte) { ct[0] ^= 0x01 })
	// Flip a bit in the tag (last 16 bytes).
	flipBit(func(ct []byte) { ct[len(ct)-1] ^= 0x01 })
}

func TestGCMScenarioFCleartextLength(t *testing.T) {
	key, iv := zeroKeyIV(12)
	send, err := New("aes128-gcm@openssh.com", key, iv)
	if err != nil {
		t.Fatal(err)
	}
	frame := makeFrame(t, send, 4)
	ciphertext, err := send.Encrypt(frame)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(ciphertext[:4], frame[:4]) {
		t.Fatalf("GCM ciphertext prefix = % X, want cleartext length % X", ciphertext[:4], frame[:4])
	}
	if len(ciphertext) != len(frame)+gcmTagSize {
		t.Fatalf("ciphertext length = %d, want frame+tag = %d", len(ciphertext), len(frame)+gcmTagSize)
	}
}

// incrementCounter advances a 128-bit big-endian counter (as used inside
// crypto/cipher's CTR implementation) by the given number of blocks.
func incrementCounter(ctr []byte, blocks int) {
	for ; blocks > 0; blocks-- {
		for i := len(ctr) - 1; i >= 0; i-- {
			ctr[i]++
			if ctr[i] != 0 {
				break
			}
		}
	}
}

func TestCTRIVAdvance(t *testing.T) {
	for _, tc := range []struct {
		payloadBytes int
		blocks       int
	}{
		{32, 2},
		{33, 3},
	} {
		key, iv := zeroKeyIV(16)
		block, err := aes.NewCipher(key)
		if err != nil {
			t.Fatal(err)
		}

		c, err := New("aes128-ctr", key, iv)
		if err != nil {
			t.Fatal(err)
		}
		// Consume exactly payloadBytes of keystream.
		c.Encrypt(make([]byte, tc.payloadBytes))

		// Next 16 bytes of keystream from c...
		marker, err := c.Encrypt(make([]byte, 16))
		if err != nil {
			t.Fatal(err)
		}

		// ...must equal keystream from a fresh stream whose counter has
		// been advanced by ceil(payloadBytes/16) blocks.
		advanced := make([]byte, 16)
		copy(advanced, iv)
		incrementCounter(advanced, tc.blocks)
		fresh := stdcipher.NewCTR(block, advanced)
		want := make([]byte, 16)
		fresh.XORKeyStream(want, make([]byte, 16))

		if !bytes.Equal(marker, want) {
			t.Fatalf("payloadBytes=%d: IV did not advance by %d blocks", tc.payloadBytes, tc.blocks)
		}
	}
}

func TestPaddingSizeVariants(t *testing.T) {
	none := noneCipher{}
	for bodyLen := 0; bodyLen <= 2000; bodyLen++ {
		pad := none.PaddingSize(bodyLen)
		if pad < 4 || (4+1+bodyLen+pad)%8 != 0 {
			t.Fatalf("none: bodyLen=%d pad=%d violates padding law", bodyLen, pad)
		}
	}

	key, iv := zeroKeyIV(12)
	g, err := New("aes128-gcm@openssh.com", key, iv)
	if err != nil {
		t.Fatal(err)
	}
	for bodyLen := 0; bodyLen <= 2000; bodyLen++ {
		pad := g.PaddingSize(bodyLen)
		if pad < 4 || (1+bodyLen+pad)%16 != 0 {
			t.Fatalf("gcm: bodyLen=%d pad=%d violates padding law (length prefix excluded)", bodyLen, pad)
		}
	}
}
