package scan

import (
	"image"

	"github.com/ironsheep/docscan-mcp/internal/imaging"
)

// Preprocess converts img to grayscale, blurs it with the 5x5 Gaussian and
// applies the contrast stretch. The result has the bounds of img.
func Preprocess(img image.Image) (*image.Gray, error) {
	if err := checkImage(StagePreprocess, img); err != nil {
		return nil, err
	}
	gray := imaging.Grayscale(img)
	blurred := imaging.GaussianBlur5(gray)
	return imaging.ContrastStretch(blurred, ContrastGain, ContrastBias), nil
}

func checkImage(stage string, img image.Image) error {
	if img == nil {
		return errorf(stage, ErrInvalidInput, "nil image")
	}
	if b := img.Bounds(); b.Empty() {
		return errorf(stage, ErrInvalidInput, "empty image %dx%d", b.Dx(), b.Dy())
	}
	return nil
}
