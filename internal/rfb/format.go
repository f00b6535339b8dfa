package rfb

import "fmt"

// PixelFormat is the server-side pixel layout advertised to viewers.
type PixelFormat struct {
	BitsPerPixel int
	Depth        int
	BigEndian    bool
	TrueColour   bool
	RedMax       uint16
	GreenMax     uint16
	BlueMax      uint16
	RedShift     uint8
	GreenShift   uint8
	BlueShift    uint8
}

// OutputFormat describes the frame produced by the channel repack: red in the
// low bits, then green, then blue, bitsPerSample each.
func OutputFormat(bitsPerPixel, bitsPerSample int) PixelFormat {
	max := uint16(1<<bitsPerSample - 1)
	return PixelFormat{
		BitsPerPixel: bitsPerPixel,
		Depth:        3 * bitsPerSample,
		TrueColour:   true,
		RedMax:       max,
		GreenMax:     max,
		BlueMax:      max,
		RedShift:     0,
		GreenShift:   uint8(bitsPerSample),
		BlueShift:    uint8(2 * bitsPerSample),
	}
}

func (f PixelFormat) String() string {
	return fmt.Sprintf("%dbpp depth %d max %d/%d/%d shift %d/%d/%d",
		f.BitsPerPixel, f.Depth, f.RedMax, f.GreenMax, f.BlueMax,
		f.RedShift, f.GreenShift, f.BlueShift)
}
