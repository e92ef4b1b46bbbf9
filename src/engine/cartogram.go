package engine

import (
	"errors"
	"fmt"
	"math"

	"github.com/mappichat/regions-atlas/src/geo"
	"github.com/mappichat/regions-atlas/src/project_types"
	"github.com/paulmach/orb"
)

var (
	ErrNoData             = errors.New("cartogram needs at least one data point")
	ErrDegenerateGeometry = errors.New("region geometry has no centroid")
	ErrUnknownMode        = errors.New("unknown cartogram mode")
)

const CircleSteps = 32

func copyProperties(props map[string]interface{}, extra int) map[string]interface{} {
	out := make(map[string]interface{}, len(props)+extra)
	for k, v := range props {
		out[k] = v
	}
	return out
}

func codeValues(points []project_types.DataPoint) map[string]float64 {
	values := make(map[string]float64, len(points))
	for _, p := range points {
		if math.IsNaN(p.Value) {
			continue
		}
		values[p.RegionCode] = p.Value
	}
	return values
}

// CreateDorlingCartogram replaces every region by a circle around its
// centroid whose area is proportional to the region's value. Regions
// without a value get a zero radius circle.
func CreateDorlingCartogram(
	collection project_types.RegionCollection,
	points []project_types.DataPoint,
	options project_types.CartogramOptions,
) (project_types.CartogramGeometry, error) {
	if len(points) == 0 {
		return project_types.CartogramGeometry{}, ErrNoData
	}
	scaleFactor := options.ScaleFactor
	if scaleFactor <= 0 {
		scaleFactor = 1
	}
	values := codeValues(points)

	regions := make([]project_types.Region, 0, len(collection.Regions))
	for _, region := range collection.Regions {
		value := values[region.Code]

		centroid, err := geo.VertexCentroid(region.Geometry)
		if err != nil {
			return project_types.CartogramGeometry{}, fmt.Errorf("%w: region %s", ErrDegenerateGeometry, region.Code)
		}

		radius := math.Sqrt(math.Max(value, 0)/math.Pi) * scaleFactor

		props := copyProperties(region.Properties, 2)
		props[project_types.PropCartogramValue] = value
		props[project_types.PropCartogramRadius] = radius

		regions = append(regions, project_types.Region{
			Code:       region.Code,
			Name:       region.Name,
			Geometry:   geo.Circle(centroid, radius, CircleSteps),
			Properties: props,
			Original:   region.Geometry,
		})
	}

	return project_types.CartogramGeometry{
		Mode:       project_types.CartogramDorling,
		Collection: project_types.RegionCollection{Level: collection.Level, Regions: regions},
	}, nil
}

func meanValue(points []project_types.DataPoint) (float64, bool) {
	sum := 0.0
	n := 0
	for _, p := range points {
		if math.IsNaN(p.Value) {
			continue
		}
		sum += p.Value
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// ScaleFor returns sqrt(value/mean), the linear factor that makes area
// proportional to value.
func ScaleFor(value float64, mean float64) float64 {
	if mean == 0 {
		return 1
	}
	ratio := value / mean
	if ratio <= 0 || math.IsNaN(ratio) {
		return 0
	}
	return math.Sqrt(ratio)
}

// CreateScaledCartogram scales each region about its own centroid by
// sqrt(value/mean). Regions without a value are given the mean and keep
// their shape. options.ScaleFactor is accepted but has no effect.
func CreateScaledCartogram(
	collection project_types.RegionCollection,
	points []project_types.DataPoint,
	options project_types.CartogramOptions,
) (project_types.CartogramGeometry, error) {
	mean, ok := meanValue(points)
	if !ok {
		return project_types.CartogramGeometry{}, ErrNoData
	}
	values := codeValues(points)

	regions := make([]project_types.Region, 0, len(collection.Regions))
	for _, region := range collection.Regions {
		value, found := values[region.Code]
		if !found {
			value = mean
		}
		scale := ScaleFor(value, mean)

		centroid, err := geo.VertexCentroid(region.Geometry)
		if err != nil {
			return project_types.CartogramGeometry{}, fmt.Errorf("%w: region %s", ErrDegenerateGeometry, region.Code)
		}

		var geometry orb.Geometry
		if scale == 1 {
			geometry = orb.Clone(region.Geometry)
		} else {
			geometry = geo.Scale(region.Geometry, centroid, scale)
		}

		props := copyProperties(region.Properties, 2)
		props[project_types.PropCartogramValue] = value
		props[project_types.PropCartogramScale] = scale

		regions = append(regions, project_types.Region{
			Code:       region.Code,
			Name:       region.Name,
			Geometry:   geometry,
			Properties: props,
			Original:   region.Geometry,
		})
	}

	return project_types.CartogramGeometry{
		Mode:       project_types.CartogramScaled,
		Collection: project_types.RegionCollection{Level: collection.Level, Regions: regions},
	}, nil
}

// GenerateCartogram dispatches on mode.
func GenerateCartogram(
	mode project_types.CartogramMode,
	collection project_types.RegionCollection,
	points []project_types.DataPoint,
	options project_types.CartogramOptions,
) (project_types.CartogramGeometry, error) {
	switch mode {
	case project_types.CartogramDorling, "":
		return CreateDorlingCartogram(collection, points, options)
	case project_types.CartogramScaled:
		return CreateScaledCartogram(collection, points, options)
	}
	return project_types.CartogramGeometry{}, fmt.Errorf("%w: %s", ErrUnknownMode, mode)
}
