package geo

import (
	"errors"
	"math"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/project"
)

var ErrEmptyGeometry = errors.New("geometry has no vertices")

// Korea bounding box used to normalize centroids into hex pixel space.
var KoreaBound = orb.Bound{
	Min: orb.Point{124.5, 33.0},
	Max: orb.Point{131.0, 38.6},
}

func firstRing(g orb.Geometry) orb.Ring {
	switch v := g.(type) {
	case orb.Polygon:
		if len(v) > 0 {
			return v[0]
		}
	case orb.MultiPolygon:
		if len(v) > 0 && len(v[0]) > 0 {
			return v[0][0]
		}
	}
	return nil
}

// RingCentroid averages every coordinate of the first ring of g, closing
// vertex included. It is not area weighted.
func RingCentroid(g orb.Geometry) (orb.Point, error) {
	ring := firstRing(g)
	if len(ring) == 0 {
		return orb.Point{}, ErrEmptyGeometry
	}
	lonSum := 0.0
	latSum := 0.0
	for _, p := range ring {
		lonSum += p[0]
		latSum += p[1]
	}
	n := float64(len(ring))
	return orb.Point{lonSum / n, latSum / n}, nil
}

// VertexCentroid averages all vertices of every ring, skipping the closing
// vertex of closed rings.
func VertexCentroid(g orb.Geometry) (orb.Point, error) {
	var polys []orb.Polygon
	switch v := g.(type) {
	case orb.Polygon:
		polys = []orb.Polygon{v}
	case orb.MultiPolygon:
		polys = v
	}

	lonSum := 0.0
	latSum := 0.0
	count := 0
	for _, poly := range polys {
		for _, ring := range poly {
			pts := ring
			if len(pts) > 1 && pts.Closed() {
				pts = pts[:len(pts)-1]
			}
			for _, p := range pts {
				lonSum += p[0]
				latSum += p[1]
				count++
			}
		}
	}
	if count == 0 {
		return orb.Point{}, ErrEmptyGeometry
	}
	return orb.Point{lonSum / float64(count), latSum / float64(count)}, nil
}

// Circle approximates a geodesic circle of radiusKm around center with a
// closed ring of steps+1 points.
func Circle(center orb.Point, radiusKm float64, steps int) orb.Polygon {
	ring := make(orb.Ring, 0, steps+1)
	for i := 0; i < steps; i++ {
		bearing := float64(i) * -360 / float64(steps)
		ring = append(ring, orbgeo.PointAtBearingAndDistance(center, bearing, radiusKm*1000))
	}
	ring = append(ring, ring[0])
	return orb.Polygon{ring}
}

// Scale returns a copy of g with every vertex moved k times its offset from
// origin. g itself is never modified.
func Scale(g orb.Geometry, origin orb.Point, k float64) orb.Geometry {
	scaleRing := func(r orb.Ring) orb.Ring {
		out := make(orb.Ring, len(r))
		for i, p := range r {
			out[i] = orb.Point{
				origin[0] + (p[0]-origin[0])*k,
				origin[1] + (p[1]-origin[1])*k,
			}
		}
		return out
	}
	scalePoly := func(p orb.Polygon) orb.Polygon {
		out := make(orb.Polygon, len(p))
		for i, r := range p {
			out[i] = scaleRing(r)
		}
		return out
	}

	switch v := g.(type) {
	case orb.Polygon:
		return scalePoly(v)
	case orb.MultiPolygon:
		out := make(orb.MultiPolygon, len(v))
		for i, p := range v {
			out[i] = scalePoly(p)
		}
		return out
	}
	return orb.Clone(g)
}

// Contains reports whether point lies inside a polygon or multipolygon.
func Contains(g orb.Geometry, point orb.Point) bool {
	switch v := g.(type) {
	case orb.Polygon:
		return planar.PolygonContains(v, point)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(v, point)
	}
	return false
}

// Mercator projects lon/lat onto a canvas so that Center lands on the
// canvas midpoint and one radian of longitude spans Scale pixels.
type Mercator struct {
	Center orb.Point
	Scale  float64
	Width  float64
	Height float64

	origin orb.Point
}

func NewMercator(center orb.Point, scale, width, height float64) *Mercator {
	m := &Mercator{Center: center, Scale: scale, Width: width, Height: height}
	m.origin = m.unit(center)
	return m
}

// unit is web mercator divided by the earth radius, i.e. radians.
func (m *Mercator) unit(p orb.Point) orb.Point {
	mp := project.WGS84.ToMercator(p)
	return orb.Point{mp[0] / orb.EarthRadius, mp[1] / orb.EarthRadius}
}

func (m *Mercator) Project(p orb.Point) orb.Point {
	u := m.unit(p)
	return orb.Point{
		m.Width/2 + (u[0]-m.origin[0])*m.Scale,
		m.Height/2 - (u[1]-m.origin[1])*m.Scale,
	}
}

// ProjectGeometry returns a screen-space copy of a polygon or multipolygon.
func (m *Mercator) ProjectGeometry(g orb.Geometry) orb.Geometry {
	projRing := func(r orb.Ring) orb.Ring {
		out := make(orb.Ring, len(r))
		for i, p := range r {
			out[i] = m.Project(p)
		}
		return out
	}
	projPoly := func(p orb.Polygon) orb.Polygon {
		out := make(orb.Polygon, len(p))
		for i, r := range p {
			out[i] = projRing(r)
		}
		return out
	}
	switch v := g.(type) {
	case orb.Polygon:
		return projPoly(v)
	case orb.MultiPolygon:
		out := make(orb.MultiPolygon, len(v))
		for i, p := range v {
			out[i] = projPoly(p)
		}
		return out
	}
	return nil
}

// Normalize maps p into [0,1]x[0,1] relative to b.
func Normalize(p orb.Point, b orb.Bound) (float64, float64) {
	return (p[0] - b.Min[0]) / (b.Max[0] - b.Min[0]), (p[1] - b.Min[1]) / (b.Max[1] - b.Min[1])
}

// DistanceKm is the haversine distance between two lon/lat points.
func DistanceKm(a, b orb.Point) float64 {
	return orbgeo.DistanceHaversine(a, b) / 1000
}

func IsFinite(p orb.Point) bool {
	return !math.IsNaN(p[0]) && !math.IsNaN(p[1]) && !math.IsInf(p[0], 0) && !math.IsInf(p[1], 0)
}
