package geom

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRectFromCorners(t *testing.T) {
	a := RectFromCorners(10, 20, 110, 70)
	b := RectFromCorners(110, 70, 10, 20)
	require.Equal(t, a, b)
	require.Equal(t, float32(100), a.Width)
	require.Equal(t, float32(50), a.Height)
	require.Equal(t, Point{X: 60, Y: 45}, a.Center())
}

func TestDistance(t *testing.T) {
	require.Equal(t, float32(5), Point{0, 0}.Distance(Point{3, 4}))
	require.Equal(t, float32(0), Point{7, 7}.Distance(Point{7, 7}))
}

func TestIOU(t *testing.T) {
	a := Rect{X: 0, Y: 0, Width: 10, Height: 10}
	b := Rect{X: 5, Y: 0, Width: 10, Height: 10}
	require.InDelta(t, 50.0/150.0, float64(a.IOU(b)), 1e-6)

	// Disjoint rectangles have zero intersection area
	c := Rect{X: 100, Y: 100, Width: 10, Height: 10}
	require.Equal(t, float32(0), a.Intersection(c).Area())
	require.Equal(t, float32(0), a.IOU(c))
}
