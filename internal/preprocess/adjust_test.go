package preprocess

import (
	"image"
	"testing"
)

func grayImage(values ...uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, len(values), 1))
	for i, v := range values {
		img.Pix[i*4+0] = v
		img.Pix[i*4+1] = v
		img.Pix[i*4+2] = v
		img.Pix[i*4+3] = 255
	}
	return img
}

func grayValues(img *image.NRGBA) []uint8 {
	out := make([]uint8, len(img.Pix)/4)
	for i := range out {
		out[i] = img.Pix[i*4]
	}
	return out
}

func TestStretchHistogram(t *testing.T) {
	got := grayValues(stretchHistogram(grayImage(50, 100, 150)))
	want := []uint8{0, 127, 255}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("pixel %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestStretchHistogramFlatImage(t *testing.T) {
	got := grayValues(stretchHistogram(grayImage(90, 90, 90)))
	for i, v := range got {
		if v != 90 {
			t.Errorf("pixel %d = %d, want 90 (flat image is left alone)", i, v)
		}
	}
}

func TestLinear(t *testing.T) {
	tests := []struct {
		name   string
		slope  float64
		offset int
		in     uint8
		want   uint8
	}{
		{"identity", 1.0, 0, 128, 128},
		{"boost clamps high", 2.0, 0, 200, 255},
		{"negative offset clamps low", 1.0, -50, 30, 0},
		{"contrast curve", 1.2, -18, 100, 102},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := grayValues(linear(grayImage(tt.in), tt.slope, tt.offset))[0]
			if got != tt.want {
				t.Errorf("linear(%d, slope=%v, offset=%d) = %d, want %d",
					tt.in, tt.slope, tt.offset, got, tt.want)
			}
		})
	}
}

func TestThreshold(t *testing.T) {
	got := grayValues(threshold(grayImage(0, 139, 140, 141, 255), 140))
	want := []uint8{0, 0, 255, 255, 255}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("pixel %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestApplyLUTPreservesAlpha(t *testing.T) {
	img := grayImage(10)
	img.Pix[3] = 200
	out := threshold(img, 128)
	if out.Pix[3] != 200 {
		t.Errorf("alpha = %d, want 200", out.Pix[3])
	}
}
