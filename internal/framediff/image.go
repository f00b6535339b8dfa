package framediff

import (
	"image"
	"image/color"
)

// Image renders the current output frame as RGBA. Samples are scaled back to
// 8 bits by bit replication.
func (e *Engine) Image() *image.RGBA {
	f := e.format
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	bits := uint32(e.tc.Bits())
	cm := uint32(1)<<bits - 1

	i := 0
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x += e.step {
			w := e.output[i]
			for lane := 0; lane < e.step; lane++ {
				p := w
				if e.step == 2 {
					p = (w >> (16 * lane)) & 0xFFFF
				}
				img.SetRGBA(x+lane, y, color.RGBA{
					R: expand(p&cm, bits),
					G: expand((p>>bits)&cm, bits),
					B: expand((p>>(2*bits))&cm, bits),
					A: 0xFF,
				})
			}
			i++
		}
	}
	return img
}

func expand(v, bits uint32) uint8 {
	v <<= 8 - bits
	return uint8(v | v>>bits)
}
