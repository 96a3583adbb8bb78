package scan

import (
	"image"

	"github.com/ironsheep/docscan-mcp/internal/imaging"
)

// EncodedImage is an encoded page.
type EncodedImage struct {
	Data     []byte
	Width    int
	Height   int
	MIMEType string
}

// Enhance sharpens img and encodes it as JPEG.
func Enhance(img image.Image) (*EncodedImage, error) {
	if err := checkImage(StageEnhance, img); err != nil {
		return nil, err
	}
	sharp := imaging.Sharpen(img)
	data, err := imaging.EncodeJPEG(sharp, JPEGQuality)
	if err != nil {
		return nil, newError(StageEnhance, ErrEncodeFailure, err)
	}
	b := sharp.Bounds()
	return &EncodedImage{Data: data, Width: b.Dx(), Height: b.Dy(), MIMEType: MIMEType}, nil
}
