package render

import (
	"fmt"
	"html"
	"io"
	"math"
	"strings"

	svg "github.com/ajstarks/svgo"
	"github.com/mappichat/regions-atlas/src/colorscale"
	"github.com/paulmach/orb"
)

// document-scoped, so two maps on one page never share a stylesheet
const documentStyle = `
@keyframes blink { 0% { opacity: 1; } 50% { opacity: 0.4; } 100% { opacity: 1; } }
.region { cursor: pointer; }
.blink { animation: blink 0.8s ease-in-out infinite; }
.label { font-family: sans-serif; font-size: 11px; text-anchor: middle; dominant-baseline: middle; pointer-events: none; }
`

func attr(key, value string) string {
	return key + `="` + html.EscapeString(value) + `"`
}

func num(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

// PathData converts a screen-space polygon or multipolygon to SVG path data.
func PathData(g orb.Geometry) string {
	var b strings.Builder
	writeRing := func(r orb.Ring) {
		for i, p := range r {
			if i == 0 {
				b.WriteString("M")
			} else {
				b.WriteString("L")
			}
			b.WriteString(num(p[0]))
			b.WriteString(",")
			b.WriteString(num(p[1]))
		}
		b.WriteString("Z")
	}
	switch v := g.(type) {
	case orb.Polygon:
		for _, r := range v {
			writeRing(r)
		}
	case orb.MultiPolygon:
		for _, p := range v {
			for _, r := range p {
				writeRing(r)
			}
		}
	}
	return b.String()
}

func start(canvas *svg.SVG, width, height float64) {
	w, h := int(math.Round(width)), int(math.Round(height))
	canvas.Start(w, h, fmt.Sprintf(`viewBox="0 0 %d %d"`, w, h))
}

// WriteSVG draws the current shapes under the viewport transform. Every
// region path carries data-code and data-name for host event binding.
func (m *Map) WriteSVG(w io.Writer, vp *Viewport) error {
	if m.placeholder {
		return WritePlaceholderSVG(w, m.width, m.height, "cartogram unavailable")
	}
	canvas := svg.New(w)
	start(canvas, m.width, m.height)
	canvas.Style("text/css", documentStyle)
	canvas.Gtransform(vp.Transform())
	for i := range m.shapes {
		s := &m.shapes[i]
		style := m.StyleOf(s)
		classes := "region"
		if style.Blink {
			classes += " blink"
		}
		canvas.Group(attr("class", classes), attr("data-code", s.Code), attr("data-name", s.Name))
		canvas.Title(s.Title())
		canvas.Path(PathData(s.Geometry),
			attr("fill", style.Fill),
			attr("stroke", style.Stroke),
			attr("stroke-width", fmt.Sprintf("%g", style.StrokeWidth)),
		)
		canvas.Gend()
	}
	for i := range m.shapes {
		s := &m.shapes[i]
		if s.Label == "" {
			continue
		}
		canvas.Text(int(math.Round(s.LabelAt[0])), int(math.Round(s.LabelAt[1])), s.Label, attr("class", "label"))
	}
	canvas.Gend()
	canvas.End()
	return nil
}

// WritePlaceholderSVG draws a neutral box with a message.
func WritePlaceholderSVG(w io.Writer, width, height float64, message string) error {
	canvas := svg.New(w)
	start(canvas, width, height)
	canvas.Rect(0, 0, int(math.Round(width)), int(math.Round(height)), attr("fill", "#f5f5f5"))
	canvas.Text(int(math.Round(width/2)), int(math.Round(height/2)), message,
		attr("text-anchor", "middle"), attr("fill", "#666"), attr("font-family", "sans-serif"))
	canvas.End()
	return nil
}

const (
	legendWidth  = 300
	legendHeight = 20
	legendTicks  = 5
)

// WriteLegendSVG draws a horizontal gradient strip for s with value ticks.
func WriteLegendSVG(w io.Writer, s colorscale.Scale, title string) error {
	stops := colorscale.Legend(s, 10)
	offcolors := make([]svg.Offcolor, len(stops))
	for i, stop := range stops {
		offcolors[i] = svg.Offcolor{Offset: uint8(math.Round(stop.Offset * 100)), Color: stop.Color, Opacity: 1}
	}

	canvas := svg.New(w)
	start(canvas, legendWidth+40, legendHeight+50)
	canvas.Def()
	canvas.LinearGradient("legend-gradient", 0, 0, 100, 0, offcolors)
	canvas.DefEnd()
	canvas.Gtransform("translate(20,20)")
	if title != "" {
		canvas.Text(0, -6, title, attr("font-family", "sans-serif"), attr("font-size", "12"))
	}
	canvas.Rect(0, 0, legendWidth, legendHeight, attr("fill", "url(#legend-gradient)"), attr("stroke", Stroke))

	domain := s.Domain()
	lo, hi := domain[0], domain[len(domain)-1]
	for i := 0; i < legendTicks; i++ {
		f := float64(i) / float64(legendTicks-1)
		x := int(math.Round(f * legendWidth))
		canvas.Line(x, legendHeight, x, legendHeight+5, attr("stroke", Stroke))
		canvas.Text(x, legendHeight+18, FormatValue(lo+(hi-lo)*f),
			attr("text-anchor", "middle"), attr("font-family", "sans-serif"), attr("font-size", "10"))
	}
	canvas.Gend()
	canvas.End()
	return nil
}
