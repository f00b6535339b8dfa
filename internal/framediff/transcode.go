package framediff

import (
	"errors"
	"fmt"

	"fbvnc/internal/types"
)

// DefaultBitsPerSample is the output channel width handed to the RFB server.
const DefaultBitsPerSample = 5

var ErrUnsupportedFormat = errors.New("unsupported pixel format")

// Transcoder repacks native pixel words into the RFB layout: red in the low
// bits, then green, then blue, each truncated to bits wide.
type Transcoder struct {
	rShift, gShift, bShift uint32
	bits                   uint32
	mask                   uint32
}

// NewTranscoder precomputes the channel shifts for f. Each shift keeps the
// most significant bits of its channel.
func NewTranscoder(f types.PixelFormat, bits int) (Transcoder, error) {
	if bits <= 0 || bits > 8 {
		return Transcoder{}, fmt.Errorf("%w: %d bits per sample", ErrUnsupportedFormat, bits)
	}
	n := uint32(bits)
	for _, c := range []types.Channel{f.Red, f.Green, f.Blue} {
		if c.Length < n {
			return Transcoder{}, fmt.Errorf("%w: channel length %d < %d", ErrUnsupportedFormat, c.Length, n)
		}
	}

	cm := uint32(1)<<n - 1
	mask := cm
	if f.PixelsPerWord() == 2 {
		// two pixels per word: repack the upper one in place as well
		mask |= cm << 16
	}

	return Transcoder{
		rShift: f.Red.Offset + f.Red.Length - n,
		gShift: f.Green.Offset + f.Green.Length - n,
		bShift: f.Blue.Offset + f.Blue.Length - n,
		bits:   n,
		mask:   mask,
	}, nil
}

func (t Transcoder) Transcode(p uint32) uint32 {
	return (p>>t.rShift)&t.mask |
		((p>>t.gShift)&t.mask)<<t.bits |
		((p>>t.bShift)&t.mask)<<(2*t.bits)
}

// Bits is the output sample width.
func (t Transcoder) Bits() int { return int(t.bits) }
