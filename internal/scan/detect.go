package scan

import (
	"image"

	"github.com/ironsheep/docscan-mcp/internal/detection"
	"github.com/ironsheep/docscan-mcp/internal/geometry"
	"github.com/ironsheep/docscan-mcp/internal/imaging"
)

// Detection is the outcome of the edge and contour stage.
type Detection struct {
	// Quad is the selected outline in contour traversal order. Corner
	// roles are assigned later by Ordered or Rectify.
	Quad geometry.Quad `json:"quad"`

	// Area is the enclosed area of Quad in square pixels.
	Area float64 `json:"area"`

	// Candidates are all four-vertex approximations in enumeration order.
	Candidates []detection.QuadCandidate `json:"candidates"`

	// Contours is the number of borders traced.
	Contours int `json:"contours"`

	// Truncated is set when tracing stopped at the contour limit.
	Truncated bool `json:"truncated"`
}

// Ordered returns Quad with canonical corner roles.
func (d *Detection) Ordered() (geometry.Quad, error) {
	q, err := geometry.OrderCorners(d.Quad)
	if err != nil {
		return geometry.Quad{}, newError(StageDetect, ErrDegenerateGeometry, err)
	}
	return q, nil
}

// DetectQuad locates the document outline in a preprocessed image: the
// largest contour whose polygon approximation has exactly four vertices.
// It fails with ErrNotFound when there is none.
func DetectQuad(gray *image.Gray) (geometry.Quad, error) {
	d, err := detect(gray, detection.DefaultMaxContours, nil)
	if err != nil {
		return geometry.Quad{}, err
	}
	return d.Quad, nil
}

// detect runs the stage. When src is non-nil, candidates carry the fill
// color sampled from it.
func detect(gray *image.Gray, maxContours int, src image.Image) (*Detection, error) {
	if gray == nil || gray.Bounds().Empty() {
		return nil, errorf(StageDetect, ErrInvalidInput, "empty grayscale image")
	}

	edges := imaging.Canny(gray, CannyLow, CannyHigh)
	set := detection.FindContours(edges, maxContours)
	candidates := detection.FindQuads(set.Contours, ApproxFraction, src)

	d := &Detection{
		Candidates: candidates,
		Contours:   len(set.Contours),
		Truncated:  set.Truncated,
	}

	best, ok := detection.Largest(candidates)
	if !ok {
		return d, errorf(StageDetect, ErrNotFound, "no 4-point contour located")
	}
	d.Quad = best.Corners
	d.Area = best.Area
	return d, nil
}
