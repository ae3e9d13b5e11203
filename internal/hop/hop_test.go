package hop

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestEncodePreamble(t *testing.T) {
	bits := Encode("HI")

	want := "111111" + "00" + "00110101"
	if got := bits[:PreambleLen].String(); got != want {
		t.Errorf("preamble: got %s, want %s", got, want)
	}
	if got := bits[len(bits)-4:].String(); got != "1010" {
		t.Errorf("end marker: got %s, want 1010", got)
	}
	if len(bits) != EncodedLen(2) {
		t.Errorf("length: got %d, want %d", len(bits), EncodedLen(2))
	}
}

func TestEncodePayloadLengths(t *testing.T) {
	for _, n := range []int{1, 2, 17, 50, MaxPayloadLen} {
		text := strings.Repeat("A", n)
		bits := Encode(text)
		if len(bits) != PreambleLen+n*FrameBits+4 {
			t.Errorf("n=%d: got %d bits", n, len(bits))
		}
		if bits[:PreambleLen].String() != Preamble().String() {
			t.Errorf("n=%d: preamble mismatch", n)
		}
		if bits[len(bits)-4:].String() != "1010" {
			t.Errorf("n=%d: end marker mismatch", n)
		}
	}
}

func TestFrame(t *testing.T) {
	tests := []struct {
		c    rune
		want string
	}{
		{'H', "1" + "01001000" + "0"},
		{'I', "1" + "01001001" + "0"},
		{'A', "1" + "01000001" + "0"},
		{' ', "1" + "00100000" + "0"},
		{'9', "1" + "00111001" + "0"},
	}
	for _, tt := range tests {
		t.Run(string(tt.c), func(t *testing.T) {
			got := Frame(tt.c)
			if len(got) != FrameBits {
				t.Fatalf("frame length: got %d, want %d", len(got), FrameBits)
			}
			if got.String() != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestEncodeFramesInOrder(t *testing.T) {
	bits := Encode("HI")
	body := bits[PreambleLen : len(bits)-len(EndMarker)]
	if body.String() != Frame('H').String()+Frame('I').String() {
		t.Errorf("body: got %s", body)
	}
}

func TestEncodeDeterministic(t *testing.T) {
	a := Encode("HELLO WORLD")
	b := Encode("HELLO WORLD")
	if a.String() != b.String() {
		t.Error("encode is not deterministic")
	}

	// Mutating the result must not affect later calls.
	a[0] = Zero
	c := Encode("HELLO WORLD")
	if c[0] != One {
		t.Error("encode output shares state between calls")
	}
}

func TestParseBitStream(t *testing.T) {
	bits, err := ParseBitStream("10110")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bits.String() != "10110" {
		t.Errorf("round trip: got %s", bits)
	}
	if bits.Ones() != 3 {
		t.Errorf("ones: got %d, want 3", bits.Ones())
	}

	if _, err := ParseBitStream("10x"); err == nil {
		t.Error("expected error for invalid bit")
	}
}

func TestNormalize(t *testing.T) {
	got, err := Normalize("  hello  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "HELLO" {
		t.Errorf("got %q, want HELLO", got)
	}

	if _, err := Normalize("   "); !errors.Is(err, ErrPayloadEmpty) {
		t.Errorf("expected ErrPayloadEmpty, got %v", err)
	}

	if _, err := Normalize(strings.Repeat("a", MaxPayloadLen+1)); !errors.Is(err, ErrPayloadTooLong) {
		t.Errorf("expected ErrPayloadTooLong, got %v", err)
	}

	if _, err := Normalize(strings.Repeat("a", MaxPayloadLen)); err != nil {
		t.Errorf("max length payload rejected: %v", err)
	}

	// Length is counted after trimming; inner spaces are payload.
	padded, err := Normalize(" " + strings.Repeat("a b", 33) + "a   ")
	if err != nil {
		t.Fatalf("padded max length payload rejected: %v", err)
	}
	if len(padded) != MaxPayloadLen || !strings.HasPrefix(padded, "A B") {
		t.Errorf("got %d chars %q", len(padded), padded[:3])
	}
}

func TestAirtime(t *testing.T) {
	// 16 preamble + 10 + 4 end = 30 bits
	if got := Airtime(1); got != 30*133*time.Millisecond {
		t.Errorf("airtime: got %v", got)
	}
}
