package imaging

import (
	"fmt"
	"image"
	"math"

	"github.com/anthonynsimon/bild/parallel"
	"github.com/disintegration/imaging"

	"github.com/ironsheep/docscan-mcp/internal/geometry"
)

// WarpPerspective renders a width x height image whose pixel (x, y) is
// sampled from src at inverse.Apply((x, y)). Sampling is bilinear on
// non-premultiplied RGBA; neighbours that fall outside src contribute opaque
// black.
//
// inverse maps destination coordinates into source coordinates, i.e. it is
// the inverse of the source-to-destination homography.
func WarpPerspective(src image.Image, inverse geometry.Homography, width, height int) (*image.NRGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid output size %dx%d", width, height)
	}

	// Clone once so every sample is a direct slice read, and so src origin
	// no longer matters.
	origin := src.Bounds().Min
	source := imaging.Clone(src)
	sw, sh := source.Bounds().Dx(), source.Bounds().Dy()

	dst := image.NewNRGBA(image.Rect(0, 0, width, height))

	parallel.Line(height, func(start, end int) {
		for y := start; y < end; y++ {
			row := dst.Pix[y*dst.Stride:]
			for x := 0; x < width; x++ {
				p := inverse.Apply(geometry.Pt(float64(x), float64(y)))
				var r, g, b float64
				a := 255.0
				if p.IsFinite() {
					r, g, b, a = bilinear(source, sw, sh, p.X-float64(origin.X), p.Y-float64(origin.Y))
				}
				o := x * 4
				row[o+0] = clampByte(r)
				row[o+1] = clampByte(g)
				row[o+2] = clampByte(b)
				row[o+3] = clampByte(a)
			}
		}
	})

	return dst, nil
}

// bilinear samples src at the sub-pixel position (fx, fy). Neighbours outside
// the image read as opaque black.
func bilinear(src *image.NRGBA, w, h int, fx, fy float64) (r, g, b, a float64) {
	x0 := int(math.Floor(fx))
	y0 := int(math.Floor(fy))
	tx := fx - float64(x0)
	ty := fy - float64(y0)

	weights := [4]float64{(1 - tx) * (1 - ty), tx * (1 - ty), (1 - tx) * ty, tx * ty}
	xs := [4]int{x0, x0 + 1, x0, x0 + 1}
	ys := [4]int{y0, y0, y0 + 1, y0 + 1}

	for i := 0; i < 4; i++ {
		wgt := weights[i]
		if wgt == 0 {
			continue
		}
		x, y := xs[i], ys[i]
		if x < 0 || y < 0 || x >= w || y >= h {
			a += 255 * wgt
			continue
		}
		o := y*src.Stride + x*4
		r += float64(src.Pix[o+0]) * wgt
		g += float64(src.Pix[o+1]) * wgt
		b += float64(src.Pix[o+2]) * wgt
		a += float64(src.Pix[o+3]) * wgt
	}
	return r, g, b, a
}
