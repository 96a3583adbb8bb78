package imaging

import (
	"image"
	"image/color"
	"math"

	"github.com/anthonynsimon/bild/adjust"
	"github.com/anthonynsimon/bild/convolution"
	"github.com/anthonynsimon/bild/effect"
)

// ITU-R BT.601 luma weights.
const (
	LumaR = 0.299
	LumaG = 0.587
	LumaB = 0.114
)

// Default contrast stretch applied before edge detection.
const (
	DefaultContrastGain = 1.25
	DefaultContrastBias = 0.0
)

// gaussian5 is the 5x5 Gaussian kernel (sigma ≈ 1.4), normalised by its sum
// of 273.
var gaussian5 = func() *convolution.Kernel {
	weights := []float64{
		1, 4, 7, 4, 1,
		4, 16, 26, 16, 4,
		7, 26, 41, 26, 7,
		4, 16, 26, 16, 4,
		1, 4, 7, 4, 1,
	}
	k := convolution.NewKernel(5, 5)
	for i, w := range weights {
		k.Matrix[i] = w / 273.0
	}
	return k
}()

// Grayscale converts an image to single-channel luminance using BT.601
// weights (0.299*R + 0.587*G + 0.114*B), rounded to the nearest level.
//
// The result is always a new buffer with the same bounds as img.
func Grayscale(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return cloneGray(g)
	}
	return toGray(effect.GrayscaleWithWeights(img, LumaR, LumaG, LumaB))
}

// GaussianBlur5 smooths a grayscale image with the 5x5 Gaussian kernel:
//
//	1  4  7  4  1
//	4 16 26 16  4
//	7 26 41 26  7
//	4 16 26 16  4
//	1  4  7  4  1
//
// divided by 273. Pixels outside the image replicate the nearest border
// pixel. Results are rounded to the nearest level.
func GaussianBlur5(gray *image.Gray) *image.Gray {
	if gray.Bounds().Empty() {
		return image.NewGray(gray.Bounds())
	}
	// The convolution truncates; a half-level bias turns that into rounding.
	blurred := convolution.Convolve(gray, gaussian5, &convolution.Options{Bias: 0.5, KeepAlpha: true})
	return toGray(blurred)
}

// ContrastStretch applies the linear map v*gain + bias to every pixel,
// rounding and clamping the result to 0..255.
func ContrastStretch(gray *image.Gray, gain, bias float64) *image.Gray {
	if gray.Bounds().Empty() {
		return image.NewGray(gray.Bounds())
	}
	var lut [256]uint8
	for v := range lut {
		lut[v] = clampByte(float64(v)*gain + bias)
	}
	stretched := adjust.Apply(gray, func(c color.RGBA) color.RGBA {
		return color.RGBA{R: lut[c.R], G: lut[c.G], B: lut[c.B], A: c.A}
	})
	return toGray(stretched)
}

// clampByte rounds v to the nearest integer and clamps it to 0..255.
func clampByte(v float64) uint8 {
	v = math.Round(v)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// toGray copies the red channel of a gray-replicated RGBA image into a
// single-channel buffer with the same bounds.
func toGray(src *image.RGBA) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(b)
	w, h := b.Dx(), b.Dy()
	for y := 0; y < h; y++ {
		srcRow := src.Pix[y*src.Stride:]
		dstRow := dst.Pix[y*dst.Stride:]
		for x := 0; x < w; x++ {
			dstRow[x] = srcRow[x*4]
		}
	}
	return dst
}

func cloneGray(src *image.Gray) *image.Gray {
	dst := image.NewGray(src.Bounds())
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	for y := 0; y < h; y++ {
		copy(dst.Pix[y*dst.Stride:y*dst.Stride+w], src.Pix[y*src.Stride:y*src.Stride+w])
	}
	return dst
}
