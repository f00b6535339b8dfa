package types

import (
	"fmt"
	"math"
)

// Channel locates one color component inside a packed pixel word.
type Channel struct {
	Offset uint32
	Length uint32
}

// PixelFormat describes the geometry and packing of a display surface.
type PixelFormat struct {
	Width        int
	Height       int
	BitsPerPixel int
	Red          Channel
	Green        Channel
	Blue         Channel
}

func (f PixelFormat) BytesPerPixel() int { return f.BitsPerPixel / 8 }

// PixelsPerWord is the number of pixels packed in one 32-bit word. The diff
// engine advances x by this much for every word it reads.
func (f PixelFormat) PixelsPerWord() int {
	bpp := f.BytesPerPixel()
	if bpp <= 0 || bpp > 4 {
		return 1
	}
	return 4 / bpp
}

// Words is the number of 32-bit words a frame of this format occupies.
func (f PixelFormat) Words() int {
	return f.Width * f.Height * f.BytesPerPixel() / 4
}

// Validate rejects formats the capture pipeline can't scan.
func (f PixelFormat) Validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("invalid geometry %dx%d", f.Width, f.Height)
	}
	if f.BitsPerPixel != 16 && f.BitsPerPixel != 32 {
		return fmt.Errorf("unsupported depth %d bpp (want 16 or 32)", f.BitsPerPixel)
	}
	if f.Width%f.PixelsPerWord() != 0 {
		return fmt.Errorf("width %d is not a multiple of %d pixels per word", f.Width, f.PixelsPerWord())
	}
	for name, c := range map[string]Channel{"red": f.Red, "green": f.Green, "blue": f.Blue} {
		if c.Length == 0 || c.Offset+c.Length > uint32(f.BitsPerPixel) {
			return fmt.Errorf("%s channel %d:%d does not fit a %d-bit pixel", name, c.Offset, c.Length, f.BitsPerPixel)
		}
	}
	return nil
}

func (f PixelFormat) String() string {
	return fmt.Sprintf("%dx%d %dbpp r=%d:%d g=%d:%d b=%d:%d",
		f.Width, f.Height, f.BitsPerPixel,
		f.Red.Offset, f.Red.Length, f.Green.Offset, f.Green.Length, f.Blue.Offset, f.Blue.Length)
}

// DirtySentinel marks an untouched lower bound of a DirtyRect.
const DirtySentinel = math.MaxInt32

// DirtyRect is the region reported by one scan, in pixel coordinates.
type DirtyRect struct {
	MinX, MinY int
	MaxX, MaxY int
}

// EmptyRect returns a rect in the reset state: nothing dirty yet.
func EmptyRect() DirtyRect {
	return DirtyRect{MinX: DirtySentinel, MinY: DirtySentinel, MaxX: -1, MaxY: -1}
}

func (r DirtyRect) Empty() bool { return r.MinX == DirtySentinel }

// Contains reports whether (x, y) lies inside the rect, bounds inclusive.
func (r DirtyRect) Contains(x, y int) bool {
	return !r.Empty() && x >= r.MinX && x <= r.MaxX && y >= r.MinY && y <= r.MaxY
}

// AxisCalibration is the absolute axis range reported by a pointer device.
type AxisCalibration struct {
	XMin, XMax int32
	YMin, YMax int32
}

// Degenerate is true when the device reported no usable range.
func (c AxisCalibration) Degenerate() bool {
	return c.XMin == 0 && c.XMax == 0 && c.YMin == 0 && c.YMax == 0
}

// DeviceEvent is one low-level input record. The sink stamps the time.
type DeviceEvent struct {
	Type  uint16
	Code  uint16
	Value int32
}

// InputEvent is a remote input sample delivered through a side channel.
type InputEvent struct {
	Type    string `json:"type"`
	KeySym  uint32 `json:"keysym,omitempty"`
	Down    bool   `json:"down,omitempty"`
	Buttons uint8  `json:"buttons,omitempty"`
	X       int    `json:"x,omitempty"`
	Y       int    `json:"y,omitempty"`

	// Session is filled in by the receiver, never by the remote end.
	Session string `json:"-"`
}

const (
	InputKey     = "key"
	InputPointer = "pointer"
)

// Surface is a raster the diff engine can read.
type Surface interface {
	Format() PixelFormat
	Words() []uint32
	Close() error
}

// EventSink accepts low-level input events, one record per call.
type EventSink interface {
	WriteEvent(ev DeviceEvent) error
	Close() error
}
