// Package framediff detects changed pixels between successive reads of a
// display surface and keeps a transcoded copy for the RFB server.
package framediff

import (
	"fmt"
	"unsafe"

	"fbvnc/internal/types"
)

// BoundsPolicy selects how a scan accumulates its dirty rectangle.
type BoundsPolicy int

const (
	// LegacyBounds reproduces the historical fbvncserver accumulation: the
	// first column change claims MinX and contributes no row, and a row can
	// raise MaxY or lower MinY but not both.
	LegacyBounds BoundsPolicy = iota
	// TrueBounds reports the exact bounding box of changed words.
	TrueBounds
)

func (p BoundsPolicy) String() string {
	if p == TrueBounds {
		return "true"
	}
	return "legacy"
}

type Config struct {
	BitsPerSample int
	Bounds        BoundsPolicy
}

// Engine owns the compare buffer and writes the output frame. It is not safe
// for concurrent use; Scan and any read of the output must not overlap.
type Engine struct {
	surface types.Surface
	format  types.PixelFormat
	tc      Transcoder
	bounds  BoundsPolicy

	compare []uint32
	output  []uint32
	step    int
}

// New builds an engine reading from surface and writing into output, which
// must hold at least as many words as one frame. The compare buffer starts
// zeroed so the first scan reports every non-zero word.
func New(surface types.Surface, output []uint32, cfg Config) (*Engine, error) {
	f := surface.Format()
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	if cfg.BitsPerSample == 0 {
		cfg.BitsPerSample = DefaultBitsPerSample
	}
	tc, err := NewTranscoder(f, cfg.BitsPerSample)
	if err != nil {
		return nil, err
	}

	n := f.Words()
	if len(surface.Words()) < n {
		return nil, fmt.Errorf("surface holds %d words, format needs %d", len(surface.Words()), n)
	}
	if len(output) < n {
		return nil, fmt.Errorf("output buffer holds %d words, format needs %d", len(output), n)
	}

	return &Engine{
		surface: surface,
		format:  f,
		tc:      tc,
		bounds:  cfg.Bounds,
		compare: make([]uint32, n),
		output:  output[:n],
		step:    f.PixelsPerWord(),
	}, nil
}

func (e *Engine) Format() types.PixelFormat { return e.format }

func (e *Engine) Transcoder() Transcoder { return e.tc }

// Output is the transcoded frame. Only read it between scans.
func (e *Engine) Output() []uint32 { return e.output }

// Scan compares the surface against the previous scan, transcodes every
// changed word and returns the dirty rectangle (possibly empty).
func (e *Engine) Scan() types.DirtyRect {
	if e.bounds == TrueBounds {
		return e.scanTrue()
	}

	r := types.EmptyRect()
	src := e.surface.Words()
	i := 0
	for y := 0; y < e.format.Height; y++ {
		for x := 0; x < e.format.Width; x += e.step {
			p := src[i]
			if p != e.compare[i] {
				e.compare[i] = p
				e.output[i] = e.tc.Transcode(p)

				if x < r.MinX {
					r.MinX = x
				} else {
					if x > r.MaxX {
						r.MaxX = x
					}
					if y > r.MaxY {
						r.MaxY = y
					} else if y < r.MinY {
						r.MinY = y
					}
				}
			}
			i++
		}
	}

	if r.Empty() {
		return r
	}
	if r.MaxX < 0 {
		r.MaxX = r.MinX
	}
	if r.MaxY < 0 {
		r.MaxY = r.MinY
	}
	return r
}

func (e *Engine) scanTrue() types.DirtyRect {
	r := types.EmptyRect()
	src := e.surface.Words()
	i := 0
	for y := 0; y < e.format.Height; y++ {
		for x := 0; x < e.format.Width; x += e.step {
			p := src[i]
			if p != e.compare[i] {
				e.compare[i] = p
				e.output[i] = e.tc.Transcode(p)

				r.MinX = min(r.MinX, x)
				r.MinY = min(r.MinY, y)
				// the word also carries the pixels up to x+step-1
				r.MaxX = max(r.MaxX, x+e.step-1)
				r.MaxY = max(r.MaxY, y)
			}
			i++
		}
	}
	return r
}

// Reset zeroes the compare buffer so the next scan reports the whole frame.
func (e *Engine) Reset() {
	clear(e.compare)
}

// Words reinterprets a byte buffer as native-endian 32-bit words. The
// length is truncated to a whole number of words.
func Words(b []byte) []uint32 {
	if len(b) < 4 {
		return nil
	}
	return unsafe.Slice((*uint32)(unsafe.Pointer(&b[0])), len(b)/4)
}
