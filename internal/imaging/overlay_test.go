package imaging

import (
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ironsheep/docscan-mcp/internal/geometry"
)

func TestParseColor(t *testing.T) {
	tests := []struct {
		hex     string
		want    color.NRGBA
		wantErr bool
	}{
		{"#FF0000", color.NRGBA{255, 0, 0, 255}, false},
		{"#00ff00", color.NRGBA{0, 255, 0, 255}, false},
		{"#0000FF", color.NRGBA{0, 0, 255, 255}, false},
		{"#fff", color.NRGBA{255, 255, 255, 255}, false},
		{"", color.NRGBA{}, true},
		{"FF0000", color.NRGBA{}, true},
		{"#GGGGGG", color.NRGBA{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.hex, func(t *testing.T) {
			got, err := ParseColor(tt.hex)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseColor(%q) error = %v, wantErr %v", tt.hex, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseColor(%q): got %v, want %v", tt.hex, got, tt.want)
			}
		})
	}
}

func TestDrawQuad(t *testing.T) {
	img := createInMemoryImage(100, 100, color.RGBA{0, 0, 0, 255})
	q := geometry.Quad{{X: 10, Y: 10}, {X: 90, Y: 10}, {X: 90, Y: 90}, {X: 10, Y: 90}}
	red := color.NRGBA{255, 0, 0, 255}

	out := DrawQuad(img, q, red, 1)

	// Midpoint of each edge is drawn.
	for _, p := range []image.Point{{50, 10}, {90, 50}, {50, 90}, {10, 50}} {
		if got := out.NRGBAAt(p.X, p.Y); got != red {
			t.Errorf("edge pixel %v: got %v, want %v", p, got, red)
		}
	}
	// Interior is untouched.
	if got := out.NRGBAAt(50, 50); got != (color.NRGBA{0, 0, 0, 255}) {
		t.Errorf("interior pixel: got %v", got)
	}
	// Source is untouched.
	if r, _, _, _ := img.At(50, 10).RGBA(); r != 0 {
		t.Error("DrawQuad modified its input")
	}
}

func TestQuadOverlay(t *testing.T) {
	img := createInMemoryImage(60, 40, color.White)
	q := geometry.Quad{{X: 5, Y: 5}, {X: 55, Y: 5}, {X: 55, Y: 35}, {X: 5, Y: 35}}

	result, err := QuadOverlay(img, q, "")
	if err != nil {
		t.Fatalf("QuadOverlay failed: %v", err)
	}
	if result.Width != 60 || result.Height != 40 {
		t.Errorf("dimensions: got %dx%d, want 60x40", result.Width, result.Height)
	}

	decoded, err := base64.StdEncoding.DecodeString(result.ImageBase64)
	if err != nil {
		t.Fatalf("failed to decode base64: %v", err)
	}
	overlay, err := png.Decode(strings.NewReader(string(decoded)))
	if err != nil {
		t.Fatalf("failed to decode PNG: %v", err)
	}
	r, g, b, _ := overlay.At(30, 5).RGBA()
	if r != 0 || g>>8 != 255 || b != 0 {
		t.Errorf("outline should use the default green, got (%d,%d,%d)", r>>8, g>>8, b>>8)
	}

	if _, err := QuadOverlay(img, q, "not-a-color"); err == nil {
		t.Error("QuadOverlay should fail for an invalid color")
	}
}

func TestSaveOverlay(t *testing.T) {
	img := createInMemoryImage(40, 40, color.White)
	q := geometry.Quad{{X: 5, Y: 5}, {X: 35, Y: 5}, {X: 35, Y: 35}, {X: 5, Y: 35}}
	path := filepath.Join(t.TempDir(), "overlay.png")

	if err := SaveOverlay(img, q, "#FF00FF", path); err != nil {
		t.Fatalf("SaveOverlay failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("overlay file not written: %v", err)
	}
}

func TestDrawLabel(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 50, 20))
	fg := color.RGBA{255, 255, 255, 255}
	bg := color.RGBA{0, 0, 0, 255}

	drawLabel(img, 2, 2, "TL", fg, bg)

	// The T glyph's top bar spans its three columns.
	for x := 2; x < 5; x++ {
		if got := img.RGBAAt(x, 2); got != fg {
			t.Errorf("T top bar at x=%d: got %v, want %v", x, got, fg)
		}
	}
	// Background fills the label box.
	if got := img.RGBAAt(1, 1); got != bg {
		t.Errorf("label background: got %v, want %v", got, bg)
	}
}

func TestDrawLabel_BoundsCheck(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	// Should not panic when the label runs past the image edges.
	drawLabel(img, 8, 8, "BR", color.White, color.Black)
	drawLabel(img, -5, -5, "123", color.White, color.Black)
}
