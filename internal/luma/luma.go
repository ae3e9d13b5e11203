// Package luma provides luminance sample sources with hardware abstraction.
// A camera frame is reduced to a single scalar: the peak luma inside a centered
// region of interest. Camera access itself lives outside this module; frames
// arrive through FrameFunc or pre-computed samples arrive as text lines.
package luma

import (
	"image"

	"gonum.org/v1/gonum/floats"
)

// Source yields one luminance sample per sampling tick.
type Source interface {
	// Next returns the next sample. io.EOF means the source is exhausted.
	// It must not block beyond one tick interval.
	Next() (float64, error)

	// Close releases the source.
	Close() error
}

// DefaultROI is the side of the square region sampled at the frame center.
const DefaultROI = 120

// Luma returns Rec.601 luma for 8-bit RGB components.
func Luma(r, g, b uint8) float64 {
	return 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
}

// PeakLuma returns the brightest luma in a roi x roi square at the center of img.
// The square is clipped to the image bounds.
func PeakLuma(img image.Image, roi int) float64 {
	rect := centerROI(img.Bounds(), roi)
	if rect.Empty() {
		return 0
	}

	values := make([]float64, 0, rect.Dx()*rect.Dy())
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			values = append(values, Luma(uint8(r>>8), uint8(g>>8), uint8(b>>8)))
		}
	}
	return floats.Max(values)
}

func centerROI(bounds image.Rectangle, roi int) image.Rectangle {
	if roi <= 0 {
		return bounds
	}
	cx := bounds.Min.X + bounds.Dx()/2
	cy := bounds.Min.Y + bounds.Dy()/2
	r := image.Rect(cx-roi/2, cy-roi/2, cx-roi/2+roi, cy-roi/2+roi)
	return r.Intersect(bounds)
}

// FrameFunc returns the next camera frame.
type FrameFunc func() (image.Image, error)

// FrameSource turns camera frames into peak-luma samples.
type FrameSource struct {
	frames FrameFunc
	roi    int
	close  func() error
}

// NewFrameSource creates a source that samples frames from fn.
// closeFn may be nil.
func NewFrameSource(fn FrameFunc, roi int, closeFn func() error) *FrameSource {
	return &FrameSource{frames: fn, roi: roi, close: closeFn}
}

// Next grabs a frame and returns its peak luma.
func (s *FrameSource) Next() (float64, error) {
	img, err := s.frames()
	if err != nil {
		return 0, err
	}
	return PeakLuma(img, s.roi), nil
}

// Close releases the frame provider.
func (s *FrameSource) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}
