package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"math"

	"github.com/anthonynsimon/bild/parallel"
	"github.com/disintegration/imaging"
)

// Default Canny thresholds on the 0-255 gradient scale.
const (
	DefaultCannyLow  = 75
	DefaultCannyHigh = 200
)

// Non-maximum suppression marks in the output buffer before hysteresis.
const (
	weakEdge   = 1
	strongEdge = 2
)

// EdgeDetectResult contains an edge-detected image encoded as base64 PNG.
//
// The result is a grayscale image where white pixels (255) represent detected
// edges and black pixels (0) represent non-edges.
type EdgeDetectResult struct {
	// Width of the output image in pixels (same as input).
	Width int `json:"width"`

	// Height of the output image in pixels (same as input).
	Height int `json:"height"`

	// EdgePixels is the number of pixels marked as edges.
	EdgePixels int `json:"edge_pixels"`

	// ImageBase64 is the edge image encoded as base64 PNG.
	ImageBase64 string `json:"image_base64"`

	// MimeType is always "image/png" for edge detection results.
	MimeType string `json:"mime_type"`
}

// EdgeDetect runs the document preprocessing chain (grayscale, 5x5 Gaussian
// blur, contrast stretch) followed by Canny and returns the edge map as a
// PNG. At the default thresholds it is the edge map the quadrilateral
// detector works from.
//
// Parameters:
//   - img: Source image (color or grayscale).
//   - thresholdLow: Gradient magnitude below which pixels are discarded.
//   - thresholdHigh: Gradient magnitude at or above which pixels are always
//     kept. Pixels in between survive only when connected to a strong pixel.
//
// Returns:
//   - *EdgeDetectResult: Grayscale edge image as base64 PNG.
//   - error: Non-nil if the thresholds are inverted or PNG encoding fails.
func EdgeDetect(img image.Image, thresholdLow, thresholdHigh int) (*EdgeDetectResult, error) {
	if thresholdLow < 0 || thresholdHigh < thresholdLow {
		return nil, fmt.Errorf("invalid thresholds: low=%d high=%d", thresholdLow, thresholdHigh)
	}

	prepared := ContrastStretch(GaussianBlur5(Grayscale(img)), DefaultContrastGain, DefaultContrastBias)
	edges := Canny(prepared, float64(thresholdLow), float64(thresholdHigh))

	count := 0
	for _, v := range edges.Pix {
		if v != 0 {
			count++
		}
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, edges, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode edge image: %w", err)
	}

	return &EdgeDetectResult{
		Width:       edges.Bounds().Dx(),
		Height:      edges.Bounds().Dy(),
		EdgePixels:  count,
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}

// Canny computes a binary edge map (255 edge, 0 background) of an already
// smoothed grayscale image.
//
// # Algorithm
//
//  1. Gradient: 3x3 Sobel operators, magnitude = sqrt(Gx² + Gy²) on the
//     0-255 intensity scale. Border pixels replicate their neighbours.
//  2. Non-maximum suppression: a pixel survives only if it is a local
//     maximum along its gradient direction, quantised to 0°, 45°, 90° or
//     135°. On plateaus the first pixel along the direction wins, so a
//     step edge yields a one pixel wide line. The outermost image ring is
//     always suppressed.
//  3. Hysteresis: pixels with magnitude >= high seed edges; pixels with
//     magnitude >= low are added when 8-connected to an edge, transitively.
func Canny(gray *image.Gray, low, high float64) *image.Gray {
	b := gray.Bounds()
	width, height := b.Dx(), b.Dy()
	out := image.NewGray(b)
	if width < 3 || height < 3 {
		return out
	}

	magnitude := make([]float32, width*height)
	sector := make([]uint8, width*height)

	at := func(x, y int) float64 {
		x = clamp(x, 0, width-1)
		y = clamp(y, 0, height-1)
		return float64(gray.Pix[y*gray.Stride+x])
	}

	parallel.Line(height, func(start, end int) {
		for y := start; y < end; y++ {
			for x := 0; x < width; x++ {
				gx := -at(x-1, y-1) + at(x+1, y-1) +
					-2*at(x-1, y) + 2*at(x+1, y) +
					-at(x-1, y+1) + at(x+1, y+1)
				gy := -at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1) +
					at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1)

				i := y*width + x
				magnitude[i] = float32(math.Sqrt(gx*gx + gy*gy))
				sector[i] = gradientSector(gx, gy)
			}
		}
	})

	// Non-maximum suppression. Each sector compares against the neighbour
	// before (n1) and after (n2) the pixel along the gradient. Survivors are
	// marked weak or strong directly in out.
	lo, hi := float32(low), float32(high)
	parallel.Line(height-2, func(start, end int) {
		for y := start + 1; y < end+1; y++ {
			for x := 1; x < width-1; x++ {
				i := y*width + x
				mag := magnitude[i]
				if mag < lo || mag == 0 {
					continue
				}
				var n1, n2 float32
				switch sector[i] {
				case 0: // horizontal gradient
					n1, n2 = magnitude[i-1], magnitude[i+1]
				case 1: // 45°: up-right / down-left
					n1, n2 = magnitude[i-width+1], magnitude[i+width-1]
				case 2: // vertical gradient
					n1, n2 = magnitude[i-width], magnitude[i+width]
				default: // 135°: up-left / down-right
					n1, n2 = magnitude[i-width-1], magnitude[i+width+1]
				}
				if mag > n1 && mag >= n2 {
					if mag >= hi {
						out.Pix[y*out.Stride+x] = strongEdge
					} else {
						out.Pix[y*out.Stride+x] = weakEdge
					}
				}
			}
		}
	})

	// Hysteresis with an explicit stack so that chains of weak pixels of any
	// length are followed.
	stack := make([]int, 0, 1024)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if p := y*out.Stride + x; out.Pix[p] == strongEdge {
				out.Pix[p] = 255
				stack = append(stack, p)
			}
		}
	}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := p%out.Stride, p/out.Stride
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nx, ny := x+dx, y+dy
				if nx < 0 || ny < 0 || nx >= width || ny >= height {
					continue
				}
				if q := ny*out.Stride + nx; out.Pix[q] == weakEdge {
					out.Pix[q] = 255
					stack = append(stack, q)
				}
			}
		}
	}

	// Weak pixels never reached from a strong one are dropped.
	for i, v := range out.Pix {
		if v != 255 {
			out.Pix[i] = 0
		}
	}

	return out
}

// gradientSector quantises a gradient direction into one of four sectors:
// 0 horizontal, 1 diagonal rising, 2 vertical, 3 diagonal falling. Image Y
// grows downward, so a positive gy points down.
func gradientSector(gx, gy float64) uint8 {
	angle := math.Atan2(gy, gx) * 180 / math.Pi
	if angle < 0 {
		angle += 180
	}
	switch {
	case angle < 22.5 || angle >= 157.5:
		return 0
	case angle < 67.5:
		return 3
	case angle < 112.5:
		return 2
	default:
		return 1
	}
}

// clamp constrains an integer value to the range [min, max].
// Used for boundary handling in convolution operations.
func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
