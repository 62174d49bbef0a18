package preprocess

import "image"

// Pixel-level adjustments not covered by the imaging package (v1.6 has no
// histogram normalize or threshold primitive). All operate on the NRGBA
// representation imaging uses and return new images.

// stretchHistogram remaps pixel intensities so the darkest pixel maps to 0
// and the brightest to 255. Input is expected to be grayscale (R=G=B).
func stretchHistogram(src *image.NRGBA) *image.NRGBA {
	lo, hi := uint8(255), uint8(0)
	for i := 0; i < len(src.Pix); i += 4 {
		v := src.Pix[i]
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if hi <= lo {
		return src
	}

	var lut [256]uint8
	span := int(hi) - int(lo)
	for v := 0; v < 256; v++ {
		switch {
		case v <= int(lo):
			lut[v] = 0
		case v >= int(hi):
			lut[v] = 255
		default:
			lut[v] = uint8((v - int(lo)) * 255 / span)
		}
	}
	return applyLUT(src, lut)
}

// linear applies v' = slope*v + offset with clamping.
func linear(src *image.NRGBA, slope float64, offset int) *image.NRGBA {
	var lut [256]uint8
	for v := 0; v < 256; v++ {
		lut[v] = clampToUint8(slope*float64(v) + float64(offset))
	}
	return applyLUT(src, lut)
}

// threshold binarizes: pixels at or above level become white, the rest black.
func threshold(src *image.NRGBA, level uint8) *image.NRGBA {
	var lut [256]uint8
	for v := 0; v < 256; v++ {
		if uint8(v) >= level {
			lut[v] = 255
		}
	}
	return applyLUT(src, lut)
}

func applyLUT(src *image.NRGBA, lut [256]uint8) *image.NRGBA {
	dst := image.NewNRGBA(src.Bounds())
	copy(dst.Pix, src.Pix)
	for i := 0; i < len(dst.Pix); i += 4 {
		dst.Pix[i+0] = lut[dst.Pix[i+0]]
		dst.Pix[i+1] = lut[dst.Pix[i+1]]
		dst.Pix[i+2] = lut[dst.Pix[i+2]]
		// alpha untouched
	}
	return dst
}

func clampToUint8(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
