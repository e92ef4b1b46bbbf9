package render

import (
	"fmt"
	"math"

	"github.com/mappichat/regions-atlas/src/project_types"
	"github.com/paulmach/orb"
)

const (
	ZoomInFactor  = 1.5
	ZoomOutFactor = 0.67
)

// ScaleExtent returns the allowed zoom range for a map type.
func ScaleExtent(mapType project_types.MapType) (float64, float64) {
	if mapType == project_types.MapHexagonal {
		return 0.5, 4
	}
	return 1, 8
}

// Viewport is the zoom and pan state of one attached map. The host owns it
// and hands it back on every draw and pointer event.
type Viewport struct {
	K float64 `json:"k"`
	X float64 `json:"x"`
	Y float64 `json:"y"`

	MinK   float64 `json:"-"`
	MaxK   float64 `json:"-"`
	Width  float64 `json:"-"`
	Height float64 `json:"-"`
}

func NewViewport(mapType project_types.MapType, width, height float64) *Viewport {
	minK, maxK := ScaleExtent(mapType)
	return &Viewport{K: 1, MinK: minK, MaxK: maxK, Width: width, Height: height}
}

func (v *Viewport) clamp(k float64) float64 {
	return math.Max(v.MinK, math.Min(v.MaxK, k))
}

// ZoomAt scales by factor keeping the screen point (x, y) fixed.
func (v *Viewport) ZoomAt(factor, x, y float64) {
	if factor <= 0 || math.IsNaN(factor) {
		return
	}
	k := v.clamp(v.K * factor)
	p := v.Invert(orb.Point{x, y})
	v.X = x - p[0]*k
	v.Y = y - p[1]*k
	v.K = k
}

func (v *Viewport) ZoomIn() {
	v.ZoomAt(ZoomInFactor, v.Width/2, v.Height/2)
}

func (v *Viewport) ZoomOut() {
	v.ZoomAt(ZoomOutFactor, v.Width/2, v.Height/2)
}

func (v *Viewport) Pan(dx, dy float64) {
	v.X += dx
	v.Y += dy
}

func (v *Viewport) Reset() {
	v.K, v.X, v.Y = 1, 0, 0
}

// Set restores a transform received from a host, clamping the scale.
func (v *Viewport) Set(k, x, y float64) {
	if k <= 0 || math.IsNaN(k) {
		k = 1
	}
	v.K, v.X, v.Y = v.clamp(k), x, y
}

// Invert maps a screen point back into map space.
func (v *Viewport) Invert(p orb.Point) orb.Point {
	if v == nil {
		return p
	}
	return orb.Point{(p[0] - v.X) / v.K, (p[1] - v.Y) / v.K}
}

// Apply maps a map-space point onto the screen.
func (v *Viewport) Apply(p orb.Point) orb.Point {
	if v == nil {
		return p
	}
	return orb.Point{p[0]*v.K + v.X, p[1]*v.K + v.Y}
}

// Transform is the group-level SVG transform attribute value.
func (v *Viewport) Transform() string {
	if v == nil {
		return "translate(0,0) scale(1)"
	}
	return fmt.Sprintf("translate(%g,%g) scale(%g)", v.X, v.Y, v.K)
}
