package capture

import (
	"fmt"

	"fbvnc/internal/types"
)

// Common fbdev layouts.
var (
	RGB565 = types.PixelFormat{
		BitsPerPixel: 16,
		Red:          types.Channel{Offset: 11, Length: 5},
		Green:        types.Channel{Offset: 5, Length: 6},
		Blue:         types.Channel{Offset: 0, Length: 5},
	}
	XRGB8888 = types.PixelFormat{
		BitsPerPixel: 32,
		Red:          types.Channel{Offset: 16, Length: 8},
		Green:        types.Channel{Offset: 8, Length: 8},
		Blue:         types.Channel{Offset: 0, Length: 8},
	}
)

// WithSize returns layout f at the given resolution.
func WithSize(f types.PixelFormat, width, height int) types.PixelFormat {
	f.Width, f.Height = width, height
	return f
}

// Memory is a heap-backed surface. Writers mutate Words directly.
type Memory struct {
	format types.PixelFormat
	words  []uint32
}

func NewMemory(f types.PixelFormat) (*Memory, error) {
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("memory surface: %w", err)
	}
	return &Memory{format: f, words: make([]uint32, f.Words())}, nil
}

func (m *Memory) Format() types.PixelFormat { return m.format }
func (m *Memory) Words() []uint32           { return m.words }
func (m *Memory) Close() error              { return nil }

// Fill sets every word to w.
func (m *Memory) Fill(w uint32) {
	for i := range m.words {
		m.words[i] = w
	}
}

// SetWord writes the word holding pixel (x, y).
func (m *Memory) SetWord(x, y int, w uint32) {
	ppw := m.format.PixelsPerWord()
	m.words[y*(m.format.Width/ppw)+x/ppw] = w
}
