package imaging

import (
	"bytes"
	"fmt"
	"image"

	"github.com/anthonynsimon/bild/effect"
	"github.com/disintegration/imaging"
)

// DefaultJPEGQuality is the encoder quality used for scanned pages.
const DefaultJPEGQuality = 95

// Sharpen convolves img with the 3x3 kernel
//
//	 0 -1  0
//	-1  5 -1
//	 0 -1  0
//
// clamping each channel to 0..255. Border pixels replicate their neighbours.
func Sharpen(img image.Image) *image.RGBA {
	return effect.Sharpen(img)
}

// EncodeJPEG encodes img as baseline JPEG at the given quality (1-100).
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	if quality < 1 || quality > 100 {
		return nil, fmt.Errorf("jpeg quality %d out of range 1-100", quality)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
