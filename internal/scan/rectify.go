package scan

import (
	"image"

	"github.com/ironsheep/docscan-mcp/internal/geometry"
	"github.com/ironsheep/docscan-mcp/internal/imaging"
)

// Rectify maps the region of original bounded by quad onto an upright
// rectangle. quad may be in any corner order. The output is as wide as the
// longer of the top and bottom edges and as tall as the longer of the left
// and right edges.
//
// Collapsed, collinear or non-finite corners, a target one pixel wide or
// less, or a singular transform fail with ErrDegenerateGeometry.
func Rectify(original image.Image, quad geometry.Quad) (*image.NRGBA, error) {
	out, _, err := rectify(original, quad)
	return out, err
}

func rectify(original image.Image, quad geometry.Quad) (*image.NRGBA, geometry.Quad, error) {
	if err := checkImage(StageRectify, original); err != nil {
		return nil, geometry.Quad{}, err
	}

	ordered, err := geometry.OrderCorners(quad)
	if err != nil {
		return nil, geometry.Quad{}, newError(StageRectify, ErrDegenerateGeometry, err)
	}

	w, h := ordered.TargetSize()
	if w <= 1 || h <= 1 {
		return nil, ordered, errorf(StageRectify, ErrDegenerateGeometry, "target size %dx%d too small", w, h)
	}

	forward, err := geometry.SolveHomography(ordered, geometry.Destination(w, h))
	if err != nil {
		return nil, ordered, newError(StageRectify, ErrDegenerateGeometry, err)
	}
	inverse, err := forward.Inverse()
	if err != nil {
		return nil, ordered, newError(StageRectify, ErrDegenerateGeometry, err)
	}

	out, err := imaging.WarpPerspective(original, inverse, w, h)
	if err != nil {
		return nil, ordered, newError(StageRectify, ErrDegenerateGeometry, err)
	}
	return out, ordered, nil
}
