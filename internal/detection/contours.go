package detection

import (
	"image"

	"github.com/ironsheep/docscan-mcp/internal/geometry"
)

// DefaultMaxContours bounds the number of borders traced in one edge map.
// Heavily textured backgrounds can produce tens of thousands of tiny
// borders; stopping early keeps a single detection pass bounded.
const DefaultMaxContours = 4096

// Chain-code neighbour offsets, counterclockwise from east:
// E, NE, N, NW, W, SW, S, SE.
var (
	chainDX = [8]int{1, 1, 0, -1, -1, -1, 0, 1}
	chainDY = [8]int{0, -1, -1, -1, 0, 1, 1, 1}
)

// ContourSet is the result of tracing an edge map.
type ContourSet struct {
	// Contours lists every traced border in raster discovery order: the
	// border whose starting pixel comes first in a top-to-bottom,
	// left-to-right scan is first. Straight runs are compressed to their
	// end points.
	Contours []geometry.Contour

	// Truncated is set when tracing stopped at the contour limit.
	Truncated bool
}

// FindContours traces the borders of the non-zero regions of a binary edge
// map using Suzuki–Abe border following. Both outer borders and hole
// borders are returned; no hierarchy is kept. At most limit contours are
// traced; limit <= 0 selects DefaultMaxContours.
//
// Enumeration order depends only on pixel content, so repeated calls on the
// same map yield identical results.
func FindContours(edges *image.Gray, limit int) ContourSet {
	if limit <= 0 {
		limit = DefaultMaxContours
	}

	b := edges.Bounds()
	if b.Empty() {
		return ContourSet{}
	}
	w, h := b.Dx()+2, b.Dy()+2

	// Labels on a zero-padded copy: 0 background, 1 unvisited foreground,
	// +n / -n visited by border n (negative where the pixel's east
	// neighbour is background).
	labels := make([]int32, w*h)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := edges.Pix[edges.PixOffset(b.Min.X, y):]
		for x := 0; x < b.Dx(); x++ {
			if row[x] != 0 {
				labels[(y-b.Min.Y+1)*w+x+1] = 1
			}
		}
	}

	t := &tracer{labels: labels, stride: w, origin: b.Min}
	for i := 0; i < 8; i++ {
		t.offsets[i] = chainDY[i]*w + chainDX[i]
	}

	var set ContourSet
	nbd := int32(1)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			p := y*w + x
			v := labels[p]
			if v == 0 {
				continue
			}

			var from int
			switch {
			case v == 1 && labels[p-1] == 0:
				from = 4 // outer border, start search from the west
			case v >= 1 && labels[p+1] == 0:
				from = 0 // hole border, start search from the east
			default:
				continue
			}

			if len(set.Contours) >= limit {
				set.Truncated = true
				return set
			}
			nbd++
			set.Contours = append(set.Contours, t.follow(p, from, nbd))
		}
	}
	return set
}

type tracer struct {
	labels  []int32
	stride  int
	origin  image.Point
	offsets [8]int
}

func (t *tracer) point(p int) image.Point {
	return image.Pt(p%t.stride-1+t.origin.X, p/t.stride-1+t.origin.Y)
}

// follow traces one border starting at p, whose background neighbour lies
// in direction from, labelling visited pixels with nbd.
func (t *tracer) follow(p, from int, nbd int32) geometry.Contour {
	// Clockwise search around p for the first foreground neighbour.
	first, dir := -1, 0
	for k := 0; k < 8; k++ {
		d := (from - k + 8) & 7
		if t.labels[p+t.offsets[d]] != 0 {
			first, dir = p+t.offsets[d], d
			break
		}
	}
	if first < 0 {
		t.labels[p] = -nbd
		return geometry.Contour{t.point(p)}
	}

	var path []image.Point
	cur, back := p, dir
	for {
		// Counterclockwise search starting just after the pixel we came from.
		eastClear := false
		next := 0
		for k := 1; k <= 8; k++ {
			next = (back + k) & 7
			if t.labels[cur+t.offsets[next]] != 0 {
				break
			}
			if next == 0 {
				eastClear = true
			}
		}

		if eastClear {
			t.labels[cur] = -nbd
		} else if t.labels[cur] == 1 {
			t.labels[cur] = nbd
		}
		path = append(path, t.point(cur))

		nxt := cur + t.offsets[next]
		if nxt == p && cur == first {
			break
		}
		back = (next + 4) & 7
		cur = nxt
	}
	return compressRuns(path)
}

// compressRuns keeps only the vertices of a closed chain where the step
// direction changes.
func compressRuns(path []image.Point) geometry.Contour {
	n := len(path)
	if n < 3 {
		return geometry.Contour(path)
	}
	out := make(geometry.Contour, 0, n/4+4)
	for i := 0; i < n; i++ {
		arrive := path[i].Sub(path[(i-1+n)%n])
		leave := path[(i+1)%n].Sub(path[i])
		if arrive != leave {
			out = append(out, path[i])
		}
	}
	if len(out) == 0 {
		return geometry.Contour{path[0]}
	}
	return out
}
