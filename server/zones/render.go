package zones

import (
	"image"

	"github.com/fogleman/gg"
)

const (
	overlayFillAlpha = 0.3
	overlayLineWidth = 2
)

// RenderOverlay draws the enabled zones onto a transparent canvas of the
// given size, each in its configured color with a translucent fill.
// Compositing the overlay onto a video frame is up to the caller.
func (x *Index) RenderOverlay(width, height int) image.Image {
	dc := gg.NewContext(width, height)
	for _, z := range x.Enabled() {
		drawZone(dc, z)
	}
	return dc.Image()
}

func drawZone(dc *gg.Context, z *Zone) {
	switch z.Kind {
	case ShapePolygon:
		if len(z.Points) < 3 {
			return
		}
		dc.MoveTo(float64(z.Points[0].X), float64(z.Points[0].Y))
		for _, p := range z.Points[1:] {
			dc.LineTo(float64(p.X), float64(p.Y))
		}
		dc.ClosePath()
	case ShapeRectangle:
		if len(z.Points) < 2 {
			return
		}
		b := z.Bounds()
		dc.DrawRectangle(float64(b.X), float64(b.Y), float64(b.Width), float64(b.Height))
	case ShapeCircle:
		if len(z.Points) < 2 {
			return
		}
		center := z.Points[0]
		radius := center.Distance(z.Points[1])
		dc.DrawCircle(float64(center.X), float64(center.Y), float64(radius))
	default:
		return
	}

	r := float64(z.Color.R) / 255
	g := float64(z.Color.G) / 255
	b := float64(z.Color.B) / 255
	dc.SetRGBA(r, g, b, overlayFillAlpha)
	dc.FillPreserve()
	dc.SetRGBA(r, g, b, 1)
	dc.SetLineWidth(overlayLineWidth)
	dc.Stroke()
}
