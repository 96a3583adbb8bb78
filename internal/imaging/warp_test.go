package imaging

import (
	"image"
	"image/color"
	"testing"

	"github.com/ironsheep/docscan-mcp/internal/geometry"
)

// createGradientImage creates an image whose pixel values encode their
// coordinates, so any resampling error is visible.
func createGradientImage(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{uint8(x * 255 / width), uint8(y * 255 / height), uint8((x + y) % 256), 255})
		}
	}
	return img
}

func TestWarpPerspective_IdentityTranslation(t *testing.T) {
	src := createGradientImage(120, 90)
	quad := geometry.Quad{{X: 20, Y: 10}, {X: 100, Y: 10}, {X: 100, Y: 70}, {X: 20, Y: 70}}

	h, err := geometry.SolveHomography(quad, geometry.Destination(80, 60))
	if err != nil {
		t.Fatalf("SolveHomography failed: %v", err)
	}
	inv, err := h.Inverse()
	if err != nil {
		t.Fatalf("Inverse failed: %v", err)
	}

	out, err := WarpPerspective(src, inv, 80, 60)
	if err != nil {
		t.Fatalf("WarpPerspective failed: %v", err)
	}
	if out.Bounds() != image.Rect(0, 0, 80, 60) {
		t.Fatalf("bounds: got %v, want 80x60", out.Bounds())
	}

	for y := 0; y < 60; y++ {
		for x := 0; x < 80; x++ {
			got := out.NRGBAAt(x, y)
			want := src.NRGBAAt(x+20, y+10)
			if got != want {
				t.Fatalf("pixel (%d,%d): got %v, want %v", x, y, got, want)
			}
		}
	}
}

func TestWarpPerspective_OutOfBoundsIsBlack(t *testing.T) {
	src := createInMemoryImage(50, 50, color.RGBA{255, 255, 255, 255})
	// Shift the sampling window 100px to the right, entirely off the image.
	inv := geometry.Homography{1, 0, 100, 0, 1, 0, 0, 0, 1}

	out, err := WarpPerspective(src, inv, 20, 20)
	if err != nil {
		t.Fatalf("WarpPerspective failed: %v", err)
	}
	want := color.NRGBA{0, 0, 0, 255}
	if got := out.NRGBAAt(10, 10); got != want {
		t.Errorf("pixel: got %v, want %v", got, want)
	}
}

func TestWarpPerspective_BilinearMidpoint(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	src.SetNRGBA(0, 0, color.NRGBA{0, 0, 0, 255})
	src.SetNRGBA(1, 0, color.NRGBA{200, 100, 50, 255})

	// Sample at x = 0.5.
	inv := geometry.Homography{1, 0, 0.5, 0, 1, 0, 0, 0, 1}
	out, err := WarpPerspective(src, inv, 1, 1)
	if err != nil {
		t.Fatalf("WarpPerspective failed: %v", err)
	}
	want := color.NRGBA{100, 50, 25, 255}
	if got := out.NRGBAAt(0, 0); got != want {
		t.Errorf("midpoint: got %v, want %v", got, want)
	}
}

func TestWarpPerspective_SourceOffset(t *testing.T) {
	full := createGradientImage(60, 60)
	sub := full.SubImage(image.Rect(10, 10, 50, 50))

	out, err := WarpPerspective(sub, geometry.Homography{1, 0, 15, 0, 1, 15, 0, 0, 1}, 5, 5)
	if err != nil {
		t.Fatalf("WarpPerspective failed: %v", err)
	}
	if got, want := out.NRGBAAt(0, 0), full.NRGBAAt(15, 15); got != want {
		t.Errorf("pixel: got %v, want %v", got, want)
	}
}

func TestWarpPerspective_InvalidSize(t *testing.T) {
	src := createInMemoryImage(10, 10, color.White)
	if _, err := WarpPerspective(src, geometry.Homography{1, 0, 0, 0, 1, 0, 0, 0, 1}, 0, 10); err == nil {
		t.Error("WarpPerspective should fail for zero width")
	}
}
