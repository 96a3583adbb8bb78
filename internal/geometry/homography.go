package geometry

import (
	"errors"
	"fmt"
	"math"
)

// pivotEpsilon is the smallest pivot accepted by the linear solver.
const pivotEpsilon = 1e-10

// ErrSingular is returned when four point pairs do not determine a unique
// homography, or a homography cannot be inverted.
var ErrSingular = errors.New("singular homography")

// Homography is a 3x3 projective transform stored row-major. Solved
// homographies are normalised so that the last element is 1.
type Homography [9]float64

// SolveHomography computes the transform mapping src[i] onto dst[i] for all
// four pairs. The 8 unknowns are found by Gaussian elimination with partial
// pivoting; h33 is fixed to 1.
func SolveHomography(src, dst Quad) (Homography, error) {
	var m [8][9]float64
	for i := 0; i < 4; i++ {
		x, y := src[i].X, src[i].Y
		u, v := dst[i].X, dst[i].Y
		m[2*i] = [9]float64{x, y, 1, 0, 0, 0, -u * x, -u * y, u}
		m[2*i+1] = [9]float64{0, 0, 0, x, y, 1, -v * x, -v * y, v}
	}

	for col := 0; col < 8; col++ {
		pivot := col
		for row := col + 1; row < 8; row++ {
			if math.Abs(m[row][col]) > math.Abs(m[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(m[pivot][col]) < pivotEpsilon {
			return Homography{}, fmt.Errorf("%w: zero pivot in column %d", ErrSingular, col)
		}
		m[col], m[pivot] = m[pivot], m[col]

		for row := col + 1; row < 8; row++ {
			f := m[row][col] / m[col][col]
			if f == 0 {
				continue
			}
			for k := col; k < 9; k++ {
				m[row][k] -= f * m[col][k]
			}
		}
	}

	var h Homography
	for row := 7; row >= 0; row-- {
		sum := m[row][8]
		for k := row + 1; k < 8; k++ {
			sum -= m[row][k] * h[k]
		}
		h[row] = sum / m[row][row]
	}
	h[8] = 1

	for _, v := range h {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Homography{}, fmt.Errorf("%w: non-finite coefficient", ErrSingular)
		}
	}
	return h, nil
}

// Apply maps p through the transform. A point sent to infinity yields NaN
// coordinates.
func (h Homography) Apply(p Point) Point {
	w := h[6]*p.X + h[7]*p.Y + h[8]
	if w == 0 {
		return Point{X: math.NaN(), Y: math.NaN()}
	}
	return Point{
		X: (h[0]*p.X + h[1]*p.Y + h[2]) / w,
		Y: (h[3]*p.X + h[4]*p.Y + h[5]) / w,
	}
}

// Inverse returns the inverse transform via the adjugate.
func (h Homography) Inverse() (Homography, error) {
	a, b, c := h[0], h[1], h[2]
	d, e, f := h[3], h[4], h[5]
	g, k, l := h[6], h[7], h[8]

	co00 := e*l - f*k
	co01 := -(d*l - f*g)
	co02 := d*k - e*g

	det := a*co00 + b*co01 + c*co02
	if math.Abs(det) < pivotEpsilon || math.IsNaN(det) {
		return Homography{}, fmt.Errorf("%w: determinant %g", ErrSingular, det)
	}

	inv := Homography{
		co00, -(b*l - c*k), b*f - c*e,
		co01, a*l - c*g, -(a*f - c*d),
		co02, -(a*k - b*g), a*e - b*d,
	}
	scale := 1 / det
	if math.Abs(inv[8]*scale) > pivotEpsilon {
		scale = 1 / inv[8]
	}
	for i := range inv {
		inv[i] *= scale
	}
	return inv, nil
}
