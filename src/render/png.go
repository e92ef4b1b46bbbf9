package render

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/paulmach/orb"
	"golang.org/x/image/vector"
)

func parseFill(hex string) color.Color {
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.RGBA{0xe0, 0xe0, 0xe0, 0xff}
	}
	r, g, b := c.RGB255()
	return color.RGBA{r, g, b, 0xff}
}

func addRing(z *vector.Rasterizer, vp *Viewport, r orb.Ring) {
	for i, p := range r {
		s := vp.Apply(p)
		if i == 0 {
			z.MoveTo(float32(s[0]), float32(s[1]))
		} else {
			z.LineTo(float32(s[0]), float32(s[1]))
		}
	}
	z.ClosePath()
}

// WritePNG rasterizes region fills under the viewport transform. Strokes and
// labels are not drawn.
func (m *Map) WritePNG(w io.Writer, vp *Viewport) error {
	width, height := int(math.Round(m.width)), int(math.Round(m.height))
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)

	z := vector.NewRasterizer(width, height)
	for i := range m.shapes {
		s := &m.shapes[i]
		z.Reset(width, height)
		z.DrawOp = draw.Over
		switch g := s.Geometry.(type) {
		case orb.Polygon:
			for _, r := range g {
				addRing(z, vp, r)
			}
		case orb.MultiPolygon:
			for _, p := range g {
				for _, r := range p {
					addRing(z, vp, r)
				}
			}
		}
		z.Draw(dst, dst.Bounds(), image.NewUniform(parseFill(m.StyleOf(s).Fill)), image.Point{})
	}
	return png.Encode(w, dst)
}
