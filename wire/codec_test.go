package wire

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNameListGrammar(t *testing.T) {
	got, _, err := GetNameList(PutNameList(nil, nil))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("decode(empty) = %v, want empty slice", got)
	}

	encoded := PutNameList(nil, []string{"a", "b", "c"})
	got, _, err = GetNameList(encoded)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a", "b", "c"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("round-trip mismatch (-want +got):\n%s", diff)
	}

	if string(encoded[4:]) == "a,b,c," {
		t.Fatalf("encoder emitted a trailing comma: %q", encoded)
	}
}

func TestStringRoundTrip(t *testing.T) {
	buf := PutString(nil, []byte("hello world"))
	got, rest, err := GetString(buf)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello world" {
		t.Fatalf("got %q", got)
	}
	if len(rest) != 0 {
		t.Fatalf("leftover bytes: %v", rest)
	}
}

func TestGetStringShortBuffer(t *testing.T) {
	buf := PutUint32(nil, 100) // claims 100 bytes follow, supplies none
	if _, _, err := GetString(buf); err != ErrShortBuffer {
		t.Fatalf("got err=%v, want ErrShortBuffer", err)
	}
}

func TestPaddingLaw(t *testing.T) {
	for _, align := range []int{8, 16} {
		for bodyLen := 0; bodyLen <= 10000; bodyLen++ {
			pad := PaddingSize(align, bodyLen)
			if pad < 4 {
				t.Fatalf("align=%d bodyLen=%d: pad=%d < 4", align, bodyLen, pad)
			}
			total := 4 + 1 + bodyLen + pad
			if total%align != 0 {
				t.Fatalf("align=%d bodyLen=%d: total=%d not aligned", align, bodyLen, total)
			}
		}
	}
}

func TestPaddingScenarioA(t *testing.T) {
	// Scenario A: framing a 5-byte payload with cipher_none (align 8).
	pad := PaddingSize(8, 5)
	if pad != 6 {
		t.Fatalf("pad = %d, want 6", pad)
	}
}

func TestCookieFixedLength(t *testing.T) {
	cookie := make([]byte, 16)
	for i := range cookie {
		cookie[i] = byte(i)
	}
	buf := append([]byte{}, cookie...)
	buf = append(buf, 0xFF) // trailing byte that must not be consumed
	got, rest, err := GetFixed(buf, 16)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(cookie, got); diff != "" {
		t.Fatalf("cookie mismatch (-want +got):\n%s", diff)
	}
	if len(rest) != 1 || rest[0] != 0xFF {
		t.Fatalf("rest = %v, want [255]", rest)
	}
}
