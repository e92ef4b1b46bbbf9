package fileio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"path"
	"strings"

	"github.com/mappichat/regions-atlas/src/project_types"
	"github.com/mappichat/regions-atlas/src/utils"
	"github.com/mitchellh/mapstructure"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

var (
	ErrTopologyUnsupported = errors.New("topojson input must be converted to a geojson feature collection first")
	ErrNoRegions           = errors.New("feature collection has no polygon features")
)

// sourceProperties lists every recognized code and name field, in priority
// order, for province and municipality level sources.
type sourceProperties struct {
	ProvinceCode     string `mapstructure:"CTPRVN_CD"`
	MunicipalityCode string `mapstructure:"SIG_CD"`
	Code             string `mapstructure:"code"`

	ProvinceName     string `mapstructure:"CTP_KOR_NM"`
	MunicipalityName string `mapstructure:"SIG_KOR_NM"`
	Name             string `mapstructure:"name"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func decodeSourceProperties(props map[string]interface{}) (sourceProperties, error) {
	var sp sourceProperties
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &sp,
	})
	if err != nil {
		return sp, err
	}
	err = decoder.Decode(props)
	return sp, err
}

// NormalizeFeature maps one GeoJSON feature onto the canonical Region shape.
// ok is false for features without polygon geometry.
func NormalizeFeature(f *geojson.Feature) (project_types.Region, bool) {
	var geometry orb.Geometry
	switch g := f.Geometry.(type) {
	case orb.Polygon:
		if len(g) == 0 {
			return project_types.Region{}, false
		}
		geometry = g
	case orb.MultiPolygon:
		if len(g) == 0 {
			return project_types.Region{}, false
		}
		geometry = g
	default:
		return project_types.Region{}, false
	}

	props := map[string]interface{}(f.Properties)
	sp, err := decodeSourceProperties(props)
	if err != nil {
		// unusable property bag; keep geometry, resolve as "no data"
		log.Printf("feature properties not decodable: %s", err)
	}

	code := firstNonEmpty(sp.ProvinceCode, sp.MunicipalityCode, sp.Code)
	name := firstNonEmpty(sp.ProvinceName, sp.MunicipalityName, sp.Name)
	if code == "" {
		code = name
	}

	extra := make(map[string]interface{}, len(props))
	for k, v := range props {
		extra[k] = v
	}
	return project_types.Region{
		Code:       code,
		Name:       name,
		Geometry:   geometry,
		Properties: extra,
	}, true
}

// Normalize converts a feature collection into a RegionCollection. Features
// without polygons are dropped, as are later features repeating a code.
func Normalize(fc *geojson.FeatureCollection, level project_types.Level) (project_types.RegionCollection, error) {
	collection := project_types.RegionCollection{Level: level}
	seen := map[string]bool{}
	for _, f := range fc.Features {
		region, ok := NormalizeFeature(f)
		if !ok {
			continue
		}
		if region.Code != "" && seen[region.Code] {
			log.Printf("duplicate region code %s dropped", region.Code)
			continue
		}
		seen[region.Code] = true
		collection.Regions = append(collection.Regions, region)
	}
	if len(collection.Regions) == 0 {
		return collection, ErrNoRegions
	}
	return collection, nil
}

// DecodeRegions parses a GeoJSON FeatureCollection and normalizes it.
func DecodeRegions(data []byte, level project_types.Level) (project_types.RegionCollection, error) {
	head := struct {
		Type string `json:"type"`
	}{}
	if err := json.Unmarshal(data, &head); err != nil {
		return project_types.RegionCollection{}, err
	}
	if strings.EqualFold(head.Type, "Topology") {
		return project_types.RegionCollection{}, ErrTopologyUnsupported
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return project_types.RegionCollection{}, err
	}
	return Normalize(fc, level)
}

// ReadRegionsFile loads a collection from a geojson file path or URL.
func ReadRegionsFile(ctx context.Context, filePath string, level project_types.Level) (project_types.RegionCollection, error) {
	data, err := utils.ReadSource(ctx, filePath)
	if err != nil {
		return project_types.RegionCollection{}, err
	}
	collection, err := DecodeRegions(data, level)
	if err != nil {
		return collection, fmt.Errorf("%s: %w", filePath, err)
	}
	return collection, nil
}

// ToFeatureCollection is the inverse of Normalize. The original geometry of
// cartogram regions is written to the originalGeometry property.
func ToFeatureCollection(collection project_types.RegionCollection) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, region := range collection.Regions {
		f := geojson.NewFeature(region.Geometry)
		for k, v := range region.Properties {
			f.Properties[k] = v
		}
		f.Properties["code"] = region.Code
		f.Properties["name"] = region.Name
		if region.Original != nil {
			f.Properties["originalGeometry"] = geojson.NewGeometry(region.Original)
		}
		fc.Append(f)
	}
	return fc
}

// GeometrySource loads the region collection of one administrative level.
type GeometrySource interface {
	Load(ctx context.Context, level project_types.Level) (project_types.RegionCollection, error)
}

// DirSource reads korea-<level>.json from a directory or a base URL.
type DirSource struct {
	Base string
}

func LevelFileName(level project_types.Level) string {
	return fmt.Sprintf("korea-%s.json", level)
}

func (s DirSource) Load(ctx context.Context, level project_types.Level) (project_types.RegionCollection, error) {
	var location string
	if strings.HasPrefix(s.Base, "http://") || strings.HasPrefix(s.Base, "https://") {
		location = strings.TrimSuffix(s.Base, "/") + "/" + LevelFileName(level)
	} else {
		location = path.Join(s.Base, LevelFileName(level))
	}
	return ReadRegionsFile(ctx, location, level)
}
