package framediff

import (
	"errors"
	"testing"

	"fbvnc/internal/capture"
	"fbvnc/internal/types"
)

func TestTranscodeXRGB8888(t *testing.T) {
	tc, err := NewTranscoder(capture.XRGB8888, DefaultBitsPerSample)
	if err != nil {
		t.Fatalf("NewTranscoder: %v", err)
	}

	tests := []struct {
		in, want uint32
	}{
		{0x00000000, 0x0000},
		{0x00FF0000, 0x001F},       // red -> bits 0..4
		{0x0000FF00, 0x001F << 5},  // green -> bits 5..9
		{0x000000FF, 0x001F << 10}, // blue -> bits 10..14
		{0x00FFFFFF, 0x7FFF},
		// low three bits of each channel are truncated, not rounded
		{0x00070707, 0x0000},
		{0x00080808, 0x0421},
		{0xFF000000, 0x0000}, // alpha byte is dropped
	}
	for _, tt := range tests {
		if got := tc.Transcode(tt.in); got != tt.want {
			t.Errorf("Transcode(%#08x) = %#x, want %#x", tt.in, got, tt.want)
		}
	}
}

func TestTranscodeRGB565PacksBothPixels(t *testing.T) {
	tc, err := NewTranscoder(capture.RGB565, DefaultBitsPerSample)
	if err != nil {
		t.Fatalf("NewTranscoder: %v", err)
	}

	white := uint32(0xFFFF)
	green := uint32(0x07E0)
	if got := tc.Transcode(white); got != 0x7FFF {
		t.Errorf("low white = %#x, want 0x7fff", got)
	}
	if got := tc.Transcode(green << 16); got != 0x03E0<<16 {
		t.Errorf("high green = %#x, want %#x", got, 0x03E0<<16)
	}
	if got := tc.Transcode(green<<16 | white); got != 0x03E0<<16|0x7FFF {
		t.Errorf("pair = %#x, want %#x", got, 0x03E0<<16|0x7FFF)
	}
}

func TestTranscodeIsPure(t *testing.T) {
	tc, err := NewTranscoder(capture.XRGB8888, DefaultBitsPerSample)
	if err != nil {
		t.Fatalf("NewTranscoder: %v", err)
	}
	for _, w := range []uint32{0, 1, 0x12345678, 0xDEADBEEF, 0xFFFFFFFF} {
		a, b := tc.Transcode(w), tc.Transcode(w)
		if a != b {
			t.Fatalf("Transcode(%#x) not stable: %#x then %#x", w, a, b)
		}
	}
}

func TestNewTranscoderRejectsNarrowChannels(t *testing.T) {
	f := types.PixelFormat{
		BitsPerPixel: 16,
		Red:          types.Channel{Offset: 8, Length: 4},
		Green:        types.Channel{Offset: 4, Length: 4},
		Blue:         types.Channel{Offset: 0, Length: 4},
	}
	_, err := NewTranscoder(f, DefaultBitsPerSample)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
}
