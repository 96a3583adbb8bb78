package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func assertPointNear(t assert.TestingT, want, got Point, delta float64) {
	assert.InDelta(t, want.X, got.X, delta, "x of %v", want)
	assert.InDelta(t, want.Y, got.Y, delta, "y of %v", want)
}

func TestSolveHomography_Identity(t *testing.T) {
	q := Destination(100, 50)
	h, err := SolveHomography(q, q)
	require.NoError(t, err)

	for i, v := range (Homography{1, 0, 0, 0, 1, 0, 0, 0, 1}) {
		assert.InDelta(t, v, h[i], 1e-9, "element %d", i)
	}
}

func TestSolveHomography_Translation(t *testing.T) {
	src := Quad{{10, 20}, {110, 20}, {110, 70}, {10, 70}}
	h, err := SolveHomography(src, Destination(100, 50))
	require.NoError(t, err)

	assertPointNear(t, Pt(0, 0), h.Apply(Pt(10, 20)), 1e-9)
	assertPointNear(t, Pt(50, 25), h.Apply(Pt(60, 45)), 1e-9)
}

func TestSolveHomography_Perspective(t *testing.T) {
	src := Quad{{100, 100}, {900, 120}, {880, 1100}, {120, 1080}}
	dst := Destination(800, 980)

	h, err := SolveHomography(src, dst)
	require.NoError(t, err)
	assert.Equal(t, 1.0, h[8])

	for i := range src {
		assertPointNear(t, dst[i], h.Apply(src[i]), 1e-6)
	}

	inv, err := h.Inverse()
	require.NoError(t, err)
	for i := range dst {
		assertPointNear(t, src[i], inv.Apply(dst[i]), 1e-6)
	}
}

func TestSolveHomography_Singular(t *testing.T) {
	src := Quad{{0, 0}, {10, 10}, {20, 20}, {30, 30}}
	_, err := SolveHomography(src, Destination(10, 10))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSingular)
}

func TestHomographyInverse_Singular(t *testing.T) {
	_, err := Homography{}.Inverse()
	assert.ErrorIs(t, err, ErrSingular)
}

func TestHomographyApply_PointAtInfinity(t *testing.T) {
	h := Homography{1, 0, 0, 0, 1, 0, 1, 0, 0}
	p := h.Apply(Pt(0, 5))
	assert.True(t, math.IsNaN(p.X))
	assert.False(t, p.IsFinite())
}

func TestSolveHomography_RoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		src := rotatedRect(
			rapid.Float64Range(500, 1500).Draw(t, "cx"),
			rapid.Float64Range(500, 1500).Draw(t, "cy"),
			rapid.Float64Range(50, 800).Draw(t, "w"),
			rapid.Float64Range(50, 800).Draw(t, "h"),
			rapid.Float64Range(-0.6, 0.6).Draw(t, "theta"),
		)
		// Pull one corner inward to make the mapping projective.
		src[BottomRight].X -= rapid.Float64Range(0, 20).Draw(t, "skew")

		width, height := src.TargetSize()
		dst := Destination(width, height)
		h, err := SolveHomography(src, dst)
		if err != nil {
			t.Fatalf("SolveHomography: %v", err)
		}
		inv, err := h.Inverse()
		if err != nil {
			t.Fatalf("Inverse: %v", err)
		}
		for i := range src {
			got := inv.Apply(h.Apply(src[i]))
			if got.Distance(src[i]) > 1e-4 {
				t.Fatalf("round trip of %v gave %v", src[i], got)
			}
		}
	})
}
