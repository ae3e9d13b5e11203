package decode

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/sweeney/optical-link/internal/hop"
)

// Majority reconstructs text locally. It folds samples into symbols by majority
// vote at every sampling phase, locks onto the preamble's gap and sync pattern,
// and reads start/data/stop frames until the end marker or trailing darkness.
type Majority struct {
	SampleRateHz float64
}

// NewMajority creates a Majority decoder for the given camera sample rate.
func NewMajority(sampleRateHz float64) *Majority {
	return &Majority{SampleRateHz: sampleRateHz}
}

type candidate struct {
	phase  int
	text   string
	frames int
	valid  int
	ended  bool
}

func (c candidate) confidence() float64 {
	if c.frames == 0 {
		return 0
	}
	conf := float64(c.valid) / float64(c.frames)
	if !c.ended {
		conf *= 0.8
	}
	return conf
}

// Reconstruct implements Decoder.
func (m *Majority) Reconstruct(ctx context.Context, bits hop.BitStream, bitRateHz float64) (Result, error) {
	if bitRateHz <= 0 {
		return Result{}, fmt.Errorf("decode: invalid bit rate %v", bitRateHz)
	}
	spb := int(math.Round(m.SampleRateHz / bitRateHz))
	if spb < 1 {
		spb = 1
	}

	var best *candidate
	for phase := 0; phase < spb && phase < len(bits); phase++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		symbols := Fold(bits[phase:], spb)
		c, ok := readFrames(symbols)
		if !ok {
			continue
		}
		c.phase = phase
		if best == nil || c.confidence() > best.confidence() {
			cc := c
			best = &cc
		}
	}
	if best == nil {
		return Result{}, ErrNoSignal
	}

	return Result{
		Text:       best.text,
		Confidence: best.confidence(),
		Reasoning: fmt.Sprintf("phase %d/%d, %d frames, %d valid, end marker %t",
			best.phase, spb, best.frames, best.valid, best.ended),
	}, nil
}

// Fold collapses runs of spb samples into one symbol by majority vote.
// Ties read as 0. A trailing partial group is dropped.
func Fold(samples hop.BitStream, spb int) hop.BitStream {
	if spb <= 1 {
		out := make(hop.BitStream, len(samples))
		copy(out, samples)
		return out
	}
	out := make(hop.BitStream, 0, len(samples)/spb)
	for i := 0; i+spb <= len(samples); i += spb {
		if samples[i:i+spb].Ones()*2 > spb {
			out = append(out, hop.One)
		} else {
			out = append(out, hop.Zero)
		}
	}
	return out
}

var (
	gapSync = append(hop.BitStream{hop.Zero, hop.Zero}, hop.SyncPattern...).String()
	syncStr = hop.SyncPattern.String()
	endStr  = hop.EndMarker.String()
)

func readFrames(symbols hop.BitStream) (candidate, bool) {
	s := symbols.String()

	pos := strings.Index(s, gapSync)
	if pos >= 0 {
		pos += len(gapSync)
	} else if pos = strings.Index(s, syncStr); pos >= 0 {
		pos += len(syncStr)
	} else {
		return candidate{}, false
	}

	var c candidate
	var sb strings.Builder
	for pos < len(s) {
		rest := s[pos:]
		if strings.Trim(rest, "0") == "" {
			break
		}
		if strings.HasPrefix(rest, endStr) && strings.Trim(rest[len(endStr):], "0") == "" {
			c.ended = true
			break
		}
		if len(rest) < hop.FrameBits {
			break
		}
		frame := rest[:hop.FrameBits]
		c.frames++
		if frame[0] == '1' && frame[hop.FrameBits-1] == '0' {
			c.valid++
		}
		var code byte
		for _, ch := range frame[1 : 1+hop.CharBits] {
			code <<= 1
			if ch == '1' {
				code |= 1
			}
		}
		sb.WriteRune(printable(code))
		pos += hop.FrameBits
	}
	c.text = sb.String()
	return c, true
}

func printable(b byte) rune {
	if b < 0x20 || b > 0x7e {
		return '?'
	}
	return rune(b)
}
