package scan

import (
	"github.com/ironsheep/docscan-mcp/internal/detection"
	"github.com/ironsheep/docscan-mcp/internal/imaging"
)

// Pipeline parameters. These are fixed; none of them is exposed through
// configuration.
const (
	// ContrastGain and ContrastBias define the linear stretch v*gain + bias.
	ContrastGain = imaging.DefaultContrastGain
	ContrastBias = imaging.DefaultContrastBias

	// CannyLow and CannyHigh are the hysteresis thresholds on the Sobel
	// gradient magnitude.
	CannyLow  = imaging.DefaultCannyLow
	CannyHigh = imaging.DefaultCannyHigh

	// ApproxFraction is the polygon approximation tolerance as a fraction of
	// each contour's perimeter.
	ApproxFraction = detection.DefaultApproxFraction

	// JPEGQuality is the encoder quality of the final page.
	JPEGQuality = imaging.DefaultJPEGQuality

	// MIMEType is the media type of encoded pages.
	MIMEType = "image/jpeg"
)

// Stage names used in errors, spans, logs and metrics.
const (
	StageDecode     = "decode"
	StagePreprocess = "preprocess"
	StageDetect     = "detect"
	StageRectify    = "rectify"
	StageEnhance    = "enhance"
)
