package geometry

import (
	"image"
	"math"
)

// Contour is a closed polyline of pixel positions. The last vertex connects
// back to the first.
type Contour []image.Point

// Area returns the absolute enclosed area using the shoelace formula.
func (c Contour) Area() float64 {
	n := len(c)
	if n < 3 {
		return 0
	}
	var sum int64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += int64(c[i].X)*int64(c[j].Y) - int64(c[j].X)*int64(c[i].Y)
	}
	return math.Abs(float64(sum)) / 2
}

// Perimeter returns the closed arc length, including the closing segment.
func (c Contour) Perimeter() float64 {
	n := len(c)
	if n < 2 {
		return 0
	}
	var total float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		total += math.Hypot(float64(c[j].X-c[i].X), float64(c[j].Y-c[i].Y))
	}
	return total
}

// Bounds returns the smallest rectangle containing every vertex. Max is
// exclusive.
func (c Contour) Bounds() image.Rectangle {
	if len(c) == 0 {
		return image.Rectangle{}
	}
	r := image.Rectangle{Min: c[0], Max: c[0].Add(image.Pt(1, 1))}
	for _, p := range c[1:] {
		r = r.Union(image.Rectangle{Min: p, Max: p.Add(image.Pt(1, 1))})
	}
	return r
}

// ApproxPolyDP simplifies a closed contour with the Douglas–Peucker algorithm.
// Every original vertex lies within epsilon of the returned polygon.
//
// The two anchor vertices are chosen by three rounds of "farthest vertex
// from the current anchor", so the first split runs along the contour's
// diameter rather than from an arbitrary start. After the recursive split a
// cleanup pass drops vertices that sit within epsilon/√2 of the line through
// their neighbours.
//
// The result preserves the contour's traversal order. Contours with fewer
// than three vertices are returned as a copy.
func ApproxPolyDP(c Contour, epsilon float64) Contour {
	n := len(c)
	if n < 3 {
		return append(Contour(nil), c...)
	}
	if epsilon < 0 {
		epsilon = 0
	}

	a := 0
	b := farthestVertex(c, a)
	a = farthestVertex(c, b)
	b = farthestVertex(c, a)
	if c[a] == c[b] {
		return Contour{c[a]}
	}

	keep := make([]bool, n)
	keep[a] = true
	keep[b] = true
	simplifyArc(c, a, b, epsilon, keep)
	simplifyArc(c, b, a, epsilon, keep)

	out := make(Contour, 0, 8)
	for k := 0; k < n; k++ {
		i := (a + k) % n
		if keep[i] {
			out = append(out, c[i])
		}
	}
	return dropFlatVertices(out, epsilon)
}

// farthestVertex returns the index of the vertex farthest from c[from].
// The first of equally distant vertices wins.
func farthestVertex(c Contour, from int) int {
	best, bestDist := from, int64(-1)
	for i, p := range c {
		dx := int64(p.X - c[from].X)
		dy := int64(p.Y - c[from].Y)
		if d := dx*dx + dy*dy; d > bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// simplifyArc marks the vertices of the arc from index `from` forward to
// index `to` (wrapping) that must be kept for the tolerance to hold.
func simplifyArc(c Contour, from, to int, epsilon float64, keep []bool) {
	n := len(c)
	length := (to - from + n) % n
	if length < 2 {
		return
	}

	type segment struct {
		start, end int // offsets along the arc
	}
	stack := []segment{{0, length}}

	for len(stack) > 0 {
		seg := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seg.end-seg.start < 2 {
			continue
		}

		start := FromImagePoint(c[(from+seg.start)%n])
		end := FromImagePoint(c[(from+seg.end)%n])

		maxDist, split := -1.0, -1
		for k := seg.start + 1; k < seg.end; k++ {
			d := lineDistance(FromImagePoint(c[(from+k)%n]), start, end)
			if d > maxDist {
				maxDist, split = d, k
			}
		}

		if maxDist > epsilon {
			keep[(from+split)%n] = true
			stack = append(stack, segment{seg.start, split}, segment{split, seg.end})
		}
	}
}

// dropFlatVertices removes vertices lying almost on the line through their
// neighbours, as long as the polygon keeps at least three vertices. A vertex
// where the outline doubles back is never removed.
func dropFlatVertices(poly Contour, epsilon float64) Contour {
	limit := epsilon / math.Sqrt2
	for changed := true; changed && len(poly) > 3; {
		changed = false
		for i := 0; i < len(poly) && len(poly) > 3; i++ {
			n := len(poly)
			prev := FromImagePoint(poly[(i-1+n)%n])
			cur := FromImagePoint(poly[i])
			next := FromImagePoint(poly[(i+1)%n])

			forward := (cur.X-prev.X)*(next.X-cur.X) + (cur.Y-prev.Y)*(next.Y-cur.Y)
			if forward >= 0 && lineDistance(cur, prev, next) <= limit {
				poly = append(poly[:i], poly[i+1:]...)
				changed = true
				i--
			}
		}
	}
	return poly
}
