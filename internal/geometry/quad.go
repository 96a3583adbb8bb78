package geometry

import (
	"errors"
	"fmt"
	"math"
)

// Corner roles of an ordered Quad.
const (
	TopLeft = iota
	TopRight
	BottomRight
	BottomLeft
)

// minTwiceTriangleArea is the |cross product| below which three corners are
// treated as collinear.
const minTwiceTriangleArea = 1.0

// ErrDegenerate is returned for quadrilaterals that cannot define a
// perspective transform: collapsed, collinear or non-finite corners, or a
// target that would be one pixel wide or less.
var ErrDegenerate = errors.New("degenerate quadrilateral")

// Quad holds four corners. After OrderCorners the order is TopLeft, TopRight,
// BottomRight, BottomLeft.
type Quad [4]Point

// QuadFromContour converts a 4-vertex contour. It reports false for any
// other vertex count.
func QuadFromContour(c Contour) (Quad, bool) {
	var q Quad
	if len(c) != 4 {
		return q, false
	}
	for i, p := range c {
		q[i] = FromImagePoint(p)
	}
	return q, true
}

// OrderCorners assigns corner roles by coordinate extremes:
//
//	TopLeft     smallest x+y
//	BottomRight largest  x+y
//	TopRight    largest  x-y
//	BottomLeft  smallest x-y
//
// Ties go to the earliest input point. The result is invariant to the input
// order for any convex quadrilateral rotated less than 45° from upright.
//
// An error wrapping ErrDegenerate is returned when a coordinate is not
// finite, when two roles resolve to the same input point, or when any three
// of the ordered corners are collinear.
func OrderCorners(pts Quad) (Quad, error) {
	for i, p := range pts {
		if !p.IsFinite() {
			return Quad{}, fmt.Errorf("%w: corner %d is %v", ErrDegenerate, i, p)
		}
	}

	tl, br, tr, bl := 0, 0, 0, 0
	for i := 1; i < len(pts); i++ {
		p := pts[i]
		if p.X+p.Y < pts[tl].X+pts[tl].Y {
			tl = i
		}
		if p.X+p.Y > pts[br].X+pts[br].Y {
			br = i
		}
		if p.X-p.Y > pts[tr].X-pts[tr].Y {
			tr = i
		}
		if p.X-p.Y < pts[bl].X-pts[bl].Y {
			bl = i
		}
	}

	roles := [4]int{tl, tr, br, bl}
	for i := 0; i < len(roles); i++ {
		for j := i + 1; j < len(roles); j++ {
			if roles[i] == roles[j] {
				return Quad{}, fmt.Errorf("%w: corners %d and %d resolve to the same point %v",
					ErrDegenerate, i, j, pts[roles[i]])
			}
		}
	}

	ordered := Quad{pts[tl], pts[tr], pts[br], pts[bl]}
	if err := ordered.checkCollinear(); err != nil {
		return Quad{}, err
	}
	return ordered, nil
}

// checkCollinear rejects a quad in which any three corners lie on a line.
// With four corners the four cyclic triples cover every combination.
func (q Quad) checkCollinear() error {
	for i := 0; i < 4; i++ {
		a, b, c := q[(i+3)%4], q[i], q[(i+1)%4]
		if math.Abs(cross(a, b, c)) < minTwiceTriangleArea {
			return fmt.Errorf("%w: corners %v %v %v are collinear", ErrDegenerate, a, b, c)
		}
	}
	return nil
}

// Area returns the absolute area of the polygon q[0], q[1], q[2], q[3].
func (q Quad) Area() float64 {
	var sum float64
	for i := 0; i < 4; i++ {
		j := (i + 1) % 4
		sum += q[i].X*q[j].Y - q[j].X*q[i].Y
	}
	return math.Abs(sum) / 2
}

// TargetSize returns the output raster size for an ordered quad: the longer
// of each pair of opposite edges, floored.
func (q Quad) TargetSize() (width, height int) {
	top := q[TopLeft].Distance(q[TopRight])
	bottom := q[BottomLeft].Distance(q[BottomRight])
	left := q[TopLeft].Distance(q[BottomLeft])
	right := q[TopRight].Distance(q[BottomRight])
	return int(math.Floor(math.Max(bottom, top))), int(math.Floor(math.Max(left, right)))
}

// Destination returns the axis-aligned rectangle (0,0) (w,0) (w,h) (0,h)
// that an ordered quad is mapped onto.
func Destination(width, height int) Quad {
	w, h := float64(width), float64(height)
	return Quad{{0, 0}, {w, 0}, {w, h}, {0, h}}
}
