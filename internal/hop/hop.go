// Package hop implements the Hardened Optical Protocol line code.
// Encoding is pure: no I/O, no clocks. Decoding is delegated to internal/decode.
package hop

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Bit is a single line symbol, 0 (dark) or 1 (lit).
type Bit uint8

const (
	Zero Bit = 0
	One  Bit = 1
)

// Protocol timing.
const (
	BitRateHz    = 7.5
	BitDuration  = 133 * time.Millisecond
	SampleRateHz = 30
)

// Framing constants.
const (
	CalibrationBits = 6
	GapBits         = 2
	CharBits        = 8
	FrameBits       = 1 + CharBits + 1
	MaxPayloadLen   = 100
)

// SyncPattern follows the calibration run and the stabilization gap.
var SyncPattern = BitStream{0, 0, 1, 1, 0, 1, 0, 1}

// EndMarker terminates every transmission.
var EndMarker = BitStream{1, 0, 1, 0}

// PreambleLen is the number of bits before the first character frame.
const PreambleLen = CalibrationBits + GapBits + 8

// ErrPayloadTooLong is returned by Normalize for payloads over MaxPayloadLen characters.
var ErrPayloadTooLong = errors.New("hop: payload too long")

// ErrPayloadEmpty is returned by Normalize for empty payloads.
var ErrPayloadEmpty = errors.New("hop: payload empty")

// BitStream is an ordered sequence of bits.
type BitStream []Bit

// String renders the stream as '0'/'1' characters.
func (b BitStream) String() string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, bit := range b {
		if bit == One {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// ParseBitStream parses a string of '0'/'1' characters.
func ParseBitStream(s string) (BitStream, error) {
	out := make(BitStream, 0, len(s))
	for i, c := range s {
		switch c {
		case '0':
			out = append(out, Zero)
		case '1':
			out = append(out, One)
		default:
			return nil, fmt.Errorf("hop: invalid bit %q at %d", c, i)
		}
	}
	return out, nil
}

// Ones returns the number of One bits in the stream.
func (b BitStream) Ones() int {
	n := 0
	for _, bit := range b {
		if bit == One {
			n++
		}
	}
	return n
}

// Preamble returns calibration, stabilization gap and sync pattern.
func Preamble() BitStream {
	out := make(BitStream, 0, PreambleLen)
	for i := 0; i < CalibrationBits; i++ {
		out = append(out, One)
	}
	for i := 0; i < GapBits; i++ {
		out = append(out, Zero)
	}
	return append(out, SyncPattern...)
}

// Frame returns the 10-bit character frame for c: start bit, 8 data bits MSB first, stop bit.
// Only the low 8 bits of the code point are carried.
func Frame(c rune) BitStream {
	out := make(BitStream, 0, FrameBits)
	out = append(out, One)
	code := byte(c)
	for i := CharBits - 1; i >= 0; i-- {
		out = append(out, Bit((code>>uint(i))&1))
	}
	return append(out, Zero)
}

// Encode converts a payload into the on-air bit sequence.
// The caller is expected to Normalize the payload first; Encode itself never fails.
func Encode(text string) BitStream {
	runes := []rune(text)
	out := make(BitStream, 0, EncodedLen(len(runes)))
	out = append(out, Preamble()...)
	for _, c := range runes {
		out = append(out, Frame(c)...)
	}
	return append(out, EndMarker...)
}

// EncodedLen returns the number of bits Encode produces for n characters.
func EncodedLen(n int) int {
	return PreambleLen + n*FrameBits + len(EndMarker)
}

var upper = cases.Upper(language.Und)

// Normalize uppercases and trims a payload and enforces the length limit.
func Normalize(text string) (string, error) {
	s := upper.String(strings.TrimSpace(text))
	n := len([]rune(s))
	if n == 0 {
		return "", ErrPayloadEmpty
	}
	if n > MaxPayloadLen {
		return "", fmt.Errorf("%w: %d > %d", ErrPayloadTooLong, n, MaxPayloadLen)
	}
	return s, nil
}

// Airtime returns how long a payload of n characters takes to transmit.
func Airtime(n int) time.Duration {
	return time.Duration(EncodedLen(n)) * BitDuration
}
