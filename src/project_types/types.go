package project_types

import (
	"math"

	"github.com/paulmach/orb"
)

type Level string

const (
	LevelSido    Level = "sido"
	LevelSigungu Level = "sigungu"
)

var Levels = []Level{LevelSido, LevelSigungu}

func ParseLevel(s string) (Level, bool) {
	for _, l := range Levels {
		if string(l) == s {
			return l, true
		}
	}
	return "", false
}

type MapType string

const (
	MapGeographic MapType = "geographic"
	MapCartogram  MapType = "cartogram"
	MapHexagonal  MapType = "hexagonal"
)

type CartogramMode string

const (
	CartogramDorling CartogramMode = "dorling"
	CartogramScaled  CartogramMode = "scaled"
)

// Region is one administrative unit in canonical form. Geometry is an
// orb.Polygon or orb.MultiPolygon of [lon, lat] rings.
type Region struct {
	Code       string                 `json:"code"`
	Name       string                 `json:"name"`
	Geometry   orb.Geometry           `json:"-"`
	Properties map[string]interface{} `json:"properties,omitempty"`

	// set on cartogram output only
	Original orb.Geometry `json:"-"`
}

// Polygons flattens the region geometry into its polygon parts.
func (r *Region) Polygons() []orb.Polygon {
	switch g := r.Geometry.(type) {
	case orb.Polygon:
		return []orb.Polygon{g}
	case orb.MultiPolygon:
		return []orb.Polygon(g)
	}
	return nil
}

type RegionCollection struct {
	Level   Level    `json:"level"`
	Regions []Region `json:"regions"`
}

func (c *RegionCollection) Len() int {
	return len(c.Regions)
}

func (c *RegionCollection) Names() []string {
	names := make([]string, len(c.Regions))
	for i := range c.Regions {
		names[i] = c.Regions[i].Name
	}
	return names
}

func (c *RegionCollection) Codes() []string {
	codes := make([]string, len(c.Regions))
	for i := range c.Regions {
		codes[i] = c.Regions[i].Code
	}
	return codes
}

// ByName returns the first region with the given display name.
func (c *RegionCollection) ByName(name string) (*Region, bool) {
	for i := range c.Regions {
		if c.Regions[i].Name == name {
			return &c.Regions[i], true
		}
	}
	return nil, false
}

// ByNameAt returns the n-th (zero-based) region with the given display name.
func (c *RegionCollection) ByNameAt(name string, n int) (*Region, bool) {
	for i := range c.Regions {
		if c.Regions[i].Name != name {
			continue
		}
		if n == 0 {
			return &c.Regions[i], true
		}
		n--
	}
	return nil, false
}

// Find matches a region by code first, then by display name.
func (c *RegionCollection) Find(key string) (*Region, bool) {
	for i := range c.Regions {
		if c.Regions[i].Code == key {
			return &c.Regions[i], true
		}
	}
	return c.ByName(key)
}

type DataPoint struct {
	RegionCode string                 `json:"regionCode" mapstructure:"regionCode"`
	RegionName string                 `json:"regionName" mapstructure:"regionName"`
	Value      float64                `json:"value" mapstructure:"value"`
	Extra      map[string]interface{} `json:"extra,omitempty" mapstructure:",remain"`
}

func Values(points []DataPoint) []float64 {
	values := make([]float64, 0, len(points))
	for _, p := range points {
		if math.IsNaN(p.Value) {
			continue
		}
		values = append(values, p.Value)
	}
	return values
}

// ValueMap resolves a value by region code or region name. Both keys of a
// point are written from the same point so they always agree.
type ValueMap map[string]float64

func NewValueMap(points []DataPoint) ValueMap {
	m := make(ValueMap, len(points)*2)
	for _, p := range points {
		if math.IsNaN(p.Value) {
			continue
		}
		if p.RegionCode != "" {
			m[p.RegionCode] = p.Value
		}
		if p.RegionName != "" {
			m[p.RegionName] = p.Value
		}
	}
	return m
}

// Lookup tries the code first and falls back to the name.
func (m ValueMap) Lookup(code string, name string) (float64, bool) {
	if code != "" {
		if v, ok := m[code]; ok {
			return v, true
		}
	}
	if name != "" {
		if v, ok := m[name]; ok {
			return v, true
		}
	}
	return 0, false
}

type HexCell struct {
	Q          int     `json:"q"`
	R          int     `json:"r"`
	RegionCode string  `json:"regionCode"`
	RegionName string  `json:"regionName"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Cell       string  `json:"cell,omitempty"`
}

type CartogramOptions struct {
	ScaleFactor float64 `json:"scaleFactor"`
}

// CartogramGeometry is a derived collection; region properties carry
// cartogramValue plus cartogramRadius or cartogramScale.
type CartogramGeometry struct {
	Mode       CartogramMode    `json:"mode"`
	Collection RegionCollection `json:"collection"`
}

const (
	PropCartogramValue  = "cartogramValue"
	PropCartogramRadius = "cartogramRadius"
	PropCartogramScale  = "cartogramScale"
)

// RenderOptions is the file-configurable part of a render request.
type RenderOptions struct {
	Width       float64       `json:"width"`
	Height      float64       `json:"height"`
	HexSize     float64       `json:"hexSize"`
	Scheme      string        `json:"scheme"`
	MapType     MapType       `json:"mapType"`
	Mode        CartogramMode `json:"mode"`
	ScaleFactor float64       `json:"scaleFactor"`
	Classes     int           `json:"classes"`
}

var DefaultRenderOptions = RenderOptions{
	Width:       800,
	Height:      1000,
	HexSize:     50,
	Scheme:      "blues",
	MapType:     MapGeographic,
	Mode:        CartogramDorling,
	ScaleFactor: 1,
}

// Attempt is a quiz answer outcome: Tries is the number of guesses taken to
// succeed, Failed marks a region given up on.
type Attempt struct {
	Tries  int  `json:"tries"`
	Failed bool `json:"failed"`
}
