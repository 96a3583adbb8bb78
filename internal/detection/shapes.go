package detection

import (
	"fmt"
	"image"
	"sort"

	"github.com/ironsheep/docscan-mcp/internal/geometry"
)

// DefaultApproxFraction is the Douglas–Peucker tolerance as a fraction of
// each contour's perimeter.
const DefaultApproxFraction = 0.02

// Bounds represents a rectangular bounding box in pixel coordinates.
//
// The coordinate convention follows standard image bounds:
//   - (X1, Y1) is the top-left corner (inclusive)
//   - (X2, Y2) is the bottom-right corner (exclusive)
type Bounds struct {
	X1 int `json:"x1"` // Left edge (inclusive)
	Y1 int `json:"y1"` // Top edge (inclusive)
	X2 int `json:"x2"` // Right edge
	Y2 int `json:"y2"` // Bottom edge
}

// Point represents a 2D coordinate in pixel space.
type Point struct {
	X int `json:"x"` // Horizontal position (0 = leftmost)
	Y int `json:"y"` // Vertical position (0 = topmost)
}

// QuadCandidate is a contour whose polygon approximation has exactly four
// vertices.
type QuadCandidate struct {
	// Index is the contour's position in enumeration order.
	Index int `json:"index"`

	// Corners are the approximated vertices in contour traversal order,
	// not yet assigned corner roles.
	Corners geometry.Quad `json:"corners"`

	// Area is the enclosed area of the approximated polygon in square pixels.
	Area float64 `json:"area"`

	// Perimeter is the closed arc length of the traced contour.
	Perimeter float64 `json:"perimeter"`

	// Bounds is the bounding box of the four corners.
	Bounds Bounds `json:"bounds"`

	// Center is the centre of the bounding box.
	Center Point `json:"center"`

	// FillColor is the hex color sampled at Center. Empty when no source
	// image was supplied.
	FillColor string `json:"fill_color,omitempty"`

	// Rectangularity is Area divided by the bounding box area (0.0 to 1.0).
	// Upright rectangles score 1; perspective and rotation lower it.
	Rectangularity float64 `json:"rectangularity"`
}

// FindQuads approximates every contour with tolerance fraction*perimeter
// and returns those that reduce to exactly four vertices, in contour order.
//
// When src is non-nil the fill color at each candidate's centre is sampled
// from it; src must share the coordinate space of the contours.
func FindQuads(contours []geometry.Contour, fraction float64, src image.Image) []QuadCandidate {
	candidates := make([]QuadCandidate, 0)
	for i, c := range contours {
		if len(c) < 4 {
			continue
		}
		perimeter := c.Perimeter()
		approx := geometry.ApproxPolyDP(c, fraction*perimeter)
		quad, ok := geometry.QuadFromContour(approx)
		if !ok {
			continue
		}

		r := approx.Bounds()
		cand := QuadCandidate{
			Index:     i,
			Corners:   quad,
			Area:      approx.Area(),
			Perimeter: perimeter,
			Bounds:    Bounds{X1: r.Min.X, Y1: r.Min.Y, X2: r.Max.X, Y2: r.Max.Y},
			Center:    Point{X: (r.Min.X + r.Max.X) / 2, Y: (r.Min.Y + r.Max.Y) / 2},
		}
		if boxArea := float64(r.Dx() * r.Dy()); boxArea > 0 {
			cand.Rectangularity = cand.Area / boxArea
		}
		if src != nil {
			if p := image.Pt(cand.Center.X, cand.Center.Y); p.In(src.Bounds()) {
				cand.FillColor = sampleColorHex(src, p.X, p.Y)
			}
		}
		candidates = append(candidates, cand)
	}
	return candidates
}

// Largest returns the candidate with the greatest area. The comparison is
// strict, so the earliest of equally large candidates wins and a zero-area
// candidate is never selected.
func Largest(candidates []QuadCandidate) (QuadCandidate, bool) {
	best, found := QuadCandidate{}, false
	maxArea := 0.0
	for _, c := range candidates {
		if c.Area > maxArea {
			best, maxArea, found = c, c.Area, true
		}
	}
	return best, found
}

// RankByArea returns the candidates sorted largest first, keeping
// enumeration order among equal areas. At most limit entries are returned
// when limit > 0.
func RankByArea(candidates []QuadCandidate, limit int) []QuadCandidate {
	ranked := append([]QuadCandidate(nil), candidates...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Area > ranked[j].Area
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// sampleColorHex returns the hex color (#RRGGBB) of a pixel.
// No bounds checking is performed; caller must ensure coordinates are valid.
func sampleColorHex(img image.Image, x, y int) string {
	r, g, b, _ := img.At(x, y).RGBA()
	return fmt.Sprintf("#%02X%02X%02X", uint8(r>>8), uint8(g>>8), uint8(b>>8))
}
