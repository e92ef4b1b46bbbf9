package engine

import (
	"math"
	"strings"

	"github.com/mappichat/regions-atlas/src/geo"
	"github.com/mappichat/regions-atlas/src/project_types"
	"github.com/paulmach/orb"
	h3 "github.com/uber/h3-go/v3"
)

const (
	DefaultHexSize = 50.0
	// above this many regions the geography-derived layout is used
	GeoLayoutThreshold = 20
	// above this many regions the hex radius is forced to DenseHexSize
	DenseRegionThreshold = 100
	DenseHexSize         = 15.0
	// pixel span of the Korea bounding box, in hex radii
	geoSpanX = 30.0
	geoSpanY = 20.0
	// h3 resolution of HexCell.Cell
	CentroidResolution = 5
)

type HexCoord struct {
	Q int `json:"q"`
	R int `json:"r"`
}

// SidoHexLayout approximates the relative positions of the 17 provinces.
var SidoHexLayout = map[string]HexCoord{
	"서울특별시":   {Q: 1, R: 2},
	"부산광역시":   {Q: 3, R: 5},
	"대구광역시":   {Q: 2, R: 4},
	"인천광역시":   {Q: 0, R: 2},
	"광주광역시":   {Q: 0, R: 5},
	"대전광역시":   {Q: 1, R: 3},
	"울산광역시":   {Q: 4, R: 4},
	"세종특별자치시": {Q: 1, R: 4},
	"경기도":     {Q: 1, R: 1},
	"강원특별자치도": {Q: 3, R: 1},
	"충청북도":    {Q: 2, R: 3},
	"충청남도":    {Q: 0, R: 3},
	"전북특별자치도": {Q: 0, R: 4},
	"전라남도":    {Q: -1, R: 5},
	"경상북도":    {Q: 3, R: 3},
	"경상남도":    {Q: 2, R: 5},
	"제주특별자치도": {Q: 0, R: 7},
}

// fallback center of Korea for regions without a usable ring
var defaultCentroid = orb.Point{127.5, 36.5}

func EffectiveHexSize(regionCount int, hexSize float64) float64 {
	if regionCount > DenseRegionThreshold {
		return DenseHexSize
	}
	if hexSize <= 0 {
		return DefaultHexSize
	}
	return hexSize
}

// AxialToPixel converts axial coordinates to the center of a hex of radius size.
func AxialToPixel(q int, r int, size float64) (float64, float64) {
	sqrt3 := math.Sqrt(3)
	x := size * (sqrt3*float64(q) + sqrt3/2*float64(r))
	y := size * (1.5 * float64(r))
	return x, y
}

// HexCorners returns the six corners of a hex centered at (x, y).
func HexCorners(x float64, y float64, size float64) []orb.Point {
	corners := make([]orb.Point, 6)
	for i := 0; i < 6; i++ {
		angle := math.Pi / 3 * float64(i)
		corners[i] = orb.Point{x + size*math.Cos(angle), y + size*math.Sin(angle)}
	}
	return corners
}

func CentroidCell(p orb.Point, resolution int) string {
	return h3.ToString(h3.FromGeo(h3.GeoCoord{Latitude: p[1], Longitude: p[0]}, resolution))
}

// GenerateHexGrid lays out one cell per region name. With a source and more
// than GeoLayoutThreshold names the cells follow geographic centroids,
// otherwise the curated province table with a packed-grid fallback.
func GenerateHexGrid(regionNames []string, hexSize float64, source *project_types.RegionCollection) []project_types.HexCell {
	size := EffectiveHexSize(len(regionNames), hexSize)
	if source != nil && len(regionNames) > GeoLayoutThreshold {
		return geoHexGrid(regionNames, size, source)
	}
	return axialHexGrid(regionNames, size, source)
}

// regionLookup resolves repeated names (중구, 동구, ...) to successive
// regions carrying that name, in collection order.
type regionLookup struct {
	source *project_types.RegionCollection
	seen   map[string]int
}

func newRegionLookup(source *project_types.RegionCollection) *regionLookup {
	return &regionLookup{source: source, seen: map[string]int{}}
}

func (l *regionLookup) next(name string) (*project_types.Region, bool) {
	if l.source == nil {
		return nil, false
	}
	n := l.seen[name]
	l.seen[name]++
	if region, ok := l.source.ByNameAt(name, n); ok {
		return region, true
	}
	return l.source.ByName(name)
}

func geoHexGrid(regionNames []string, size float64, source *project_types.RegionCollection) []project_types.HexCell {
	cells := make([]project_types.HexCell, 0, len(regionNames))
	lookup := newRegionLookup(source)
	for _, name := range regionNames {
		region, ok := lookup.next(name)
		if !ok || region.Geometry == nil {
			continue
		}
		centroid, err := geo.RingCentroid(region.Geometry)
		if err != nil {
			centroid = defaultCentroid
		}
		nLon, nLat := geo.Normalize(centroid, geo.KoreaBound)

		code := region.Code
		if code == "" {
			code = name
		}
		cells = append(cells, project_types.HexCell{
			RegionCode: code,
			RegionName: name,
			X:          nLon * size * geoSpanX,
			Y:          (1 - nLat) * size * geoSpanY,
			Cell:       CentroidCell(centroid, CentroidResolution),
		})
	}
	return cells
}

func axialHexGrid(regionNames []string, size float64, source *project_types.RegionCollection) []project_types.HexCell {
	cols := int(math.Ceil(math.Sqrt(float64(len(regionNames)))))
	cells := make([]project_types.HexCell, 0, len(regionNames))
	lookup := newRegionLookup(source)
	for i, name := range regionNames {
		coord, ok := SidoHexLayout[name]
		if !ok {
			coord = HexCoord{Q: i % cols, R: i / cols}
		}
		x, y := AxialToPixel(coord.Q, coord.R, size)

		code := name
		if region, found := lookup.next(name); found && region.Code != "" {
			code = region.Code
		}
		cells = append(cells, project_types.HexCell{
			Q:          coord.Q,
			R:          coord.R,
			RegionCode: code,
			RegionName: name,
			X:          x,
			Y:          y,
		})
	}
	return cells
}

var labelSuffixes = []string{"특별자치시", "특별자치도", "특별시", "광역시", "도"}

// LabelFor shortens a province name for display inside a hex.
func LabelFor(name string) string {
	for _, suffix := range labelSuffixes {
		if strings.Contains(name, suffix) {
			return strings.Replace(name, suffix, "", 1)
		}
	}
	return name
}
