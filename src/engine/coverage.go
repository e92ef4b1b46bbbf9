package engine

import (
	"log"
	"sort"

	"github.com/mappichat/regions-atlas/src/project_types"
	"github.com/paulmach/orb"
	h3 "github.com/uber/h3-go/v3"
)

const DefaultCoverageResolution = 6

// Coverage assigns h3 cells to regions. Every cell belongs to at most one
// region.
type Coverage struct {
	Resolution   int                 `json:"resolution"`
	CellToRegion map[string]string   `json:"cellToRegion"`
	RegionCells  map[string][]string `json:"regionCells"`
}

func toGeoPolygon(p orb.Polygon) h3.GeoPolygon {
	ring := func(r orb.Ring) []h3.GeoCoord {
		out := make([]h3.GeoCoord, len(r))
		for i, pt := range r {
			out[i] = h3.GeoCoord{Latitude: pt[1], Longitude: pt[0]}
		}
		return out
	}
	gp := h3.GeoPolygon{}
	if len(p) == 0 {
		return gp
	}
	gp.Geofence = ring(p[0])
	for _, hole := range p[1:] {
		gp.Holes = append(gp.Holes, ring(hole))
	}
	return gp
}

func regionKey(r *project_types.Region) string {
	if r.Code != "" {
		return r.Code
	}
	return r.Name
}

// borderCells returns the cells of a region with at least one neighbor
// outside it.
func borderCells(cells []string, owner map[string]string, key string) []string {
	out := []string{}
	for _, cell := range cells {
		for _, n := range h3.KRing(h3.FromString(cell), 1) {
			if owner[h3.ToString(n)] != key {
				out = append(out, cell)
				break
			}
		}
	}
	return out
}

// RegionCoverage polyfills every region at resolution. Regions too small to
// contain a cell center get the cells under their outer ring vertices, then
// fill rings of unclaimed cells are grown around each region's border.
func RegionCoverage(collection project_types.RegionCollection, resolution int, fill int) Coverage {
	cov := Coverage{
		Resolution:   resolution,
		CellToRegion: map[string]string{},
		RegionCells:  map[string][]string{},
	}

	log.Printf("assigning cells to %d regions", collection.Len())
	for i := range collection.Regions {
		r := &collection.Regions[i]
		key := regionKey(r)
		cells := []string{}
		for _, polygon := range r.Polygons() {
			for _, h := range h3.Polyfill(toGeoPolygon(polygon), resolution) {
				cell := h3.ToString(h)
				if _, taken := cov.CellToRegion[cell]; taken {
					continue
				}
				cov.CellToRegion[cell] = key
				cells = append(cells, cell)
			}
		}
		cov.RegionCells[key] = cells
	}

	for i := range collection.Regions {
		r := &collection.Regions[i]
		key := regionKey(r)
		if len(cov.RegionCells[key]) > 0 {
			continue
		}
		for _, polygon := range r.Polygons() {
			if len(polygon) == 0 {
				continue
			}
			for _, pt := range polygon[0] {
				cell := CentroidCell(pt, resolution)
				if _, taken := cov.CellToRegion[cell]; !taken {
					cov.CellToRegion[cell] = key
					cov.RegionCells[key] = append(cov.RegionCells[key], cell)
				}
			}
		}
	}

	if fill > 0 {
		keys := make([]string, 0, len(cov.RegionCells))
		for key := range cov.RegionCells {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			for _, cell := range borderCells(cov.RegionCells[key], cov.CellToRegion, key) {
				for _, h := range h3.KRing(h3.FromString(cell), fill) {
					neighbor := h3.ToString(h)
					if _, taken := cov.CellToRegion[neighbor]; !taken {
						cov.CellToRegion[neighbor] = key
						cov.RegionCells[key] = append(cov.RegionCells[key], neighbor)
					}
				}
			}
		}
	}

	for key := range cov.RegionCells {
		sort.Strings(cov.RegionCells[key])
	}
	return cov
}

// CoverageCentroid averages the centers of cells, as [lon, lat].
func CoverageCentroid(cells []string) (orb.Point, bool) {
	if len(cells) == 0 {
		return orb.Point{}, false
	}
	latSum, lonSum := 0.0, 0.0
	for _, cell := range cells {
		c := h3.ToGeo(h3.FromString(cell))
		latSum += c.Latitude
		lonSum += c.Longitude
	}
	n := float64(len(cells))
	return orb.Point{lonSum / n, latSum / n}, true
}
