package imaging

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/ironsheep/docscan-mcp/internal/geometry"
)

// DefaultOverlayColor outlines detected documents.
const DefaultOverlayColor = "#00FF00"

// ParseColor parses "#RRGGBB" or "#RGB" into an opaque color.
func ParseColor(hex string) (color.NRGBA, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: %w", hex, err)
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}, nil
}

// DrawQuad returns a copy of img with the quadrilateral q outlined in c.
// When the corners are in canonical order each one is tagged with its role
// (TL, TR, BR, BL).
func DrawQuad(img image.Image, q geometry.Quad, c color.Color, thickness int) *image.NRGBA {
	if thickness < 1 {
		thickness = 1
	}
	bounds := img.Bounds()
	dst := image.NewNRGBA(bounds)
	draw.Draw(dst, bounds, img, bounds.Min, draw.Src)

	for i := 0; i < 4; i++ {
		drawLine(dst, q[i], q[(i+1)%4], c, thickness)
	}

	labelColor := color.NRGBA{255, 255, 255, 255}
	bgColor := color.NRGBA{0, 0, 0, 200}
	roles := [4]string{"TL", "TR", "BR", "BL"}
	for i, p := range q {
		x := clamp(int(p.X)+thickness+1, bounds.Min.X, bounds.Max.X-8)
		y := clamp(int(p.Y)+thickness+1, bounds.Min.Y, bounds.Max.Y-6)
		drawLabel(dst, x, y, roles[i], labelColor, bgColor)
	}
	return dst
}

// QuadOverlay outlines q on img in the color given as hex and returns the
// result as base64 PNG. An empty hex selects DefaultOverlayColor.
func QuadOverlay(img image.Image, q geometry.Quad, hex string) (*EncodedResult, error) {
	if hex == "" {
		hex = DefaultOverlayColor
	}
	c, err := ParseColor(hex)
	if err != nil {
		return nil, err
	}
	thickness := max(2, min(img.Bounds().Dx(), img.Bounds().Dy())/300)
	return encodePNGResult(DrawQuad(img, q, c, thickness))
}

// SaveOverlay writes the outlined image to path; the format follows the
// file extension.
func SaveOverlay(img image.Image, q geometry.Quad, hex, path string) error {
	if hex == "" {
		hex = DefaultOverlayColor
	}
	c, err := ParseColor(hex)
	if err != nil {
		return err
	}
	thickness := max(2, min(img.Bounds().Dx(), img.Bounds().Dy())/300)
	if err := imaging.Save(DrawQuad(img, q, c, thickness), path); err != nil {
		return fmt.Errorf("failed to save overlay: %w", err)
	}
	return nil
}

// drawLine draws a segment by stamping a square brush at unit steps.
func drawLine(img *image.NRGBA, a, b geometry.Point, c color.Color, thickness int) {
	steps := int(math.Ceil(math.Max(math.Abs(b.X-a.X), math.Abs(b.Y-a.Y))))
	if steps == 0 {
		steps = 1
	}
	half := thickness / 2
	for s := 0; s <= steps; s++ {
		t := float64(s) / float64(steps)
		cx := int(math.Round(a.X + (b.X-a.X)*t))
		cy := int(math.Round(a.Y + (b.Y-a.Y)*t))
		for dy := -half; dy < thickness-half; dy++ {
			for dx := -half; dx < thickness-half; dx++ {
				if p := image.Pt(cx+dx, cy+dy); p.In(img.Bounds()) {
					img.Set(p.X, p.Y, c)
				}
			}
		}
	}
}

// drawLabel draws a simple text label at the given position using a 3x5
// pixel font that covers digits, comma and the corner role letters.
func drawLabel(img draw.Image, x, y int, text string, fg, bg color.Color) {
	glyphs := map[rune][]string{
		'0': {"111", "101", "101", "101", "111"},
		'1': {"010", "110", "010", "010", "111"},
		'2': {"111", "001", "111", "100", "111"},
		'3': {"111", "001", "111", "001", "111"},
		'4': {"101", "101", "111", "001", "001"},
		'5': {"111", "100", "111", "001", "111"},
		'6': {"111", "100", "111", "101", "111"},
		'7': {"111", "001", "001", "001", "001"},
		'8': {"111", "101", "111", "101", "111"},
		'9': {"111", "101", "111", "001", "111"},
		',': {"000", "000", "000", "010", "010"},
		'B': {"110", "101", "110", "101", "110"},
		'L': {"100", "100", "100", "100", "111"},
		'R': {"110", "101", "110", "101", "101"},
		'T': {"111", "010", "010", "010", "010"},
	}

	bounds := img.Bounds()
	charWidth := 4
	labelWidth := len(text) * charWidth
	labelHeight := 6

	for dy := -1; dy < labelHeight; dy++ {
		for dx := -1; dx < labelWidth; dx++ {
			if p := image.Pt(x+dx, y+dy); p.In(bounds) {
				img.Set(p.X, p.Y, bg)
			}
		}
	}

	cx := x
	for _, ch := range text {
		glyph, ok := glyphs[ch]
		if !ok {
			cx += charWidth
			continue
		}
		for row, line := range glyph {
			for col, pixel := range line {
				if pixel != '1' {
					continue
				}
				if p := image.Pt(cx+col, y+row); p.In(bounds) {
					img.Set(p.X, p.Y, fg)
				}
			}
		}
		cx += charWidth
	}
}
