package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// EncodedResult contains a derived image (crop, rotation, overlay) as base64
// PNG.
type EncodedResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// Crop extracts the rectangle (x1,y1)-(x2,y2) from an image, optionally
// scaling it. It is the manual fallback when no document outline can be
// detected.
func Crop(img image.Image, x1, y1, x2, y2 int, scale float64) (*EncodedResult, error) {
	bounds := img.Bounds()

	if x1 < bounds.Min.X || y1 < bounds.Min.Y || x2 > bounds.Max.X || y2 > bounds.Max.Y {
		return nil, fmt.Errorf("crop region (%d,%d)-(%d,%d) outside image bounds (%d,%d)-(%d,%d)",
			x1, y1, x2, y2, bounds.Min.X, bounds.Min.Y, bounds.Max.X, bounds.Max.Y)
	}
	if x1 >= x2 || y1 >= y2 {
		return nil, fmt.Errorf("invalid crop region: x1 must be < x2, y1 must be < y2")
	}

	cropped := imaging.Crop(img, image.Rect(x1, y1, x2, y2))

	if scale != 1.0 && scale > 0 {
		newWidth := int(float64(cropped.Bounds().Dx()) * scale)
		newHeight := int(float64(cropped.Bounds().Dy()) * scale)
		if newWidth < 1 || newHeight < 1 {
			return nil, fmt.Errorf("scale %.3f collapses the crop to %dx%d", scale, newWidth, newHeight)
		}
		cropped = imaging.Resize(cropped, newWidth, newHeight, imaging.Lanczos)
	}

	return encodePNGResult(cropped)
}

// Rotate turns an image clockwise by a multiple of 90 degrees. Negative
// angles rotate counterclockwise. A rotated photo can be fed back through the
// scanner when the page was captured sideways.
func Rotate(img image.Image, degrees int) (*image.NRGBA, error) {
	switch ((degrees % 360) + 360) % 360 {
	case 0:
		return imaging.Clone(img), nil
	case 90:
		// imaging rotates counterclockwise.
		return imaging.Rotate270(img), nil
	case 180:
		return imaging.Rotate180(img), nil
	case 270:
		return imaging.Rotate90(img), nil
	default:
		return nil, fmt.Errorf("rotation must be a multiple of 90 degrees, got %d", degrees)
	}
}

// RotateEncoded rotates img and returns it as base64 PNG.
func RotateEncoded(img image.Image, degrees int) (*EncodedResult, error) {
	rotated, err := Rotate(img, degrees)
	if err != nil {
		return nil, err
	}
	return encodePNGResult(rotated)
}

func encodePNGResult(img image.Image) (*EncodedResult, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	return &EncodedResult{
		Width:       img.Bounds().Dx(),
		Height:      img.Bounds().Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}
