package types

import "testing"

func TestPixelFormatValidate(t *testing.T) {
	rgb565 := PixelFormat{
		Width: 320, Height: 240, BitsPerPixel: 16,
		Red: Channel{11, 5}, Green: Channel{5, 6}, Blue: Channel{0, 5},
	}
	if err := rgb565.Validate(); err != nil {
		t.Fatalf("rgb565: unexpected error: %v", err)
	}
	if got := rgb565.PixelsPerWord(); got != 2 {
		t.Errorf("rgb565 pixels per word = %d, want 2", got)
	}
	if got := rgb565.Words(); got != 320*240/2 {
		t.Errorf("rgb565 words = %d, want %d", got, 320*240/2)
	}

	tests := []struct {
		name string
		f    PixelFormat
	}{
		{"24bpp", PixelFormat{Width: 8, Height: 8, BitsPerPixel: 24, Red: Channel{16, 8}, Green: Channel{8, 8}, Blue: Channel{0, 8}}},
		{"odd width", PixelFormat{Width: 7, Height: 8, BitsPerPixel: 16, Red: Channel{11, 5}, Green: Channel{5, 6}, Blue: Channel{0, 5}}},
		{"channel overflow", PixelFormat{Width: 8, Height: 8, BitsPerPixel: 16, Red: Channel{12, 5}, Green: Channel{5, 6}, Blue: Channel{0, 5}}},
		{"zero height", PixelFormat{Width: 8, Height: 0, BitsPerPixel: 32, Red: Channel{16, 8}, Green: Channel{8, 8}, Blue: Channel{0, 8}}},
	}
	for _, tt := range tests {
		if err := tt.f.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tt.name)
		}
	}
}

func TestDirtyRect(t *testing.T) {
	r := EmptyRect()
	if !r.Empty() {
		t.Fatalf("reset rect should be empty")
	}
	if r.Contains(0, 0) {
		t.Fatalf("empty rect contains nothing")
	}
	r = DirtyRect{MinX: 2, MinY: 3, MaxX: 10, MaxY: 4}
	if !r.Contains(2, 3) || !r.Contains(10, 4) || r.Contains(11, 4) {
		t.Errorf("Contains bounds wrong for %+v", r)
	}
}

func TestAxisCalibrationDegenerate(t *testing.T) {
	if !(AxisCalibration{}).Degenerate() {
		t.Errorf("zero calibration should be degenerate")
	}
	if (AxisCalibration{XMax: 4095, YMax: 4095}).Degenerate() {
		t.Errorf("calibrated range reported degenerate")
	}
}
