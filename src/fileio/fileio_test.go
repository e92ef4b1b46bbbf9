package fileio

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/mappichat/regions-atlas/src/project_types"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const provincesJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"CTPRVN_CD": "11", "CTP_KOR_NM": "서울특별시"},
     "geometry": {"type": "Polygon", "coordinates": [[[126.8,37.4],[127.2,37.4],[127.2,37.7],[126.8,37.7],[126.8,37.4]]]}},
    {"type": "Feature", "properties": {"SIG_CD": 26110, "SIG_KOR_NM": "중구"},
     "geometry": {"type": "MultiPolygon", "coordinates": [[[[129.0,35.1],[129.1,35.1],[129.1,35.2],[129.0,35.1]]]]}},
    {"type": "Feature", "properties": {"name": "제주특별자치도"},
     "geometry": {"type": "Polygon", "coordinates": [[[126.1,33.2],[126.9,33.2],[126.9,33.6],[126.1,33.2]]]}},
    {"type": "Feature", "properties": {"code": "99", "name": "point"},
     "geometry": {"type": "Point", "coordinates": [127.0, 36.0]}},
    {"type": "Feature", "properties": {"CTPRVN_CD": "11", "CTP_KOR_NM": "duplicate"},
     "geometry": {"type": "Polygon", "coordinates": [[[126.0,37.0],[126.5,37.0],[126.5,37.5],[126.0,37.0]]]}}
  ]
}`

func TestDecodeRegionsNormalizesSchemas(t *testing.T) {
	collection, err := DecodeRegions([]byte(provincesJSON), project_types.LevelSido)
	require.NoError(t, err)
	require.Equal(t, 3, collection.Len())

	assert.Equal(t, []string{"11", "26110", "제주특별자치도"}, collection.Codes())
	assert.Equal(t, []string{"서울특별시", "중구", "제주특별자치도"}, collection.Names())
	assert.Equal(t, project_types.LevelSido, collection.Level)

	_, isPolygon := collection.Regions[0].Geometry.(orb.Polygon)
	assert.True(t, isPolygon)
	_, isMulti := collection.Regions[1].Geometry.(orb.MultiPolygon)
	assert.True(t, isMulti)
}

func TestDecodeRegionsRejectsTopology(t *testing.T) {
	_, err := DecodeRegions([]byte(`{"type":"Topology","objects":{},"arcs":[]}`), project_types.LevelSido)
	assert.ErrorIs(t, err, ErrTopologyUnsupported)
}

func TestDecodeRegionsWithoutPolygons(t *testing.T) {
	_, err := DecodeRegions([]byte(`{"type":"FeatureCollection","features":[]}`), project_types.LevelSido)
	assert.ErrorIs(t, err, ErrNoRegions)

	_, err = DecodeRegions([]byte(`not json`), project_types.LevelSido)
	assert.Error(t, err)
}

func TestToFeatureCollectionKeepsOriginal(t *testing.T) {
	collection, err := DecodeRegions([]byte(provincesJSON), project_types.LevelSido)
	require.NoError(t, err)
	collection.Regions[0].Original = collection.Regions[0].Geometry

	fc := ToFeatureCollection(collection)
	require.Len(t, fc.Features, 3)
	assert.Equal(t, "11", fc.Features[0].Properties["code"])
	assert.IsType(t, &geojson.Geometry{}, fc.Features[0].Properties["originalGeometry"])
	_, hasOriginal := fc.Features[1].Properties["originalGeometry"]
	assert.False(t, hasOriginal)

	data, err := fc.MarshalJSON()
	require.NoError(t, err)
	again, err := DecodeRegions(data, project_types.LevelSido)
	require.NoError(t, err)
	assert.Equal(t, collection.Codes(), again.Codes())
}

func TestDirSource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "korea-sido.json"), []byte(provincesJSON), 0644))

	collection, err := DirSource{Base: dir}.Load(context.Background(), project_types.LevelSido)
	require.NoError(t, err)
	assert.Equal(t, 3, collection.Len())

	_, err = DirSource{Base: dir}.Load(context.Background(), project_types.LevelSigungu)
	assert.Error(t, err)
}

type blockingSource struct {
	mu      sync.Mutex
	release map[project_types.Level]chan struct{}
}

func (s *blockingSource) gate(level project_types.Level) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.release == nil {
		s.release = map[project_types.Level]chan struct{}{}
	}
	if _, ok := s.release[level]; !ok {
		s.release[level] = make(chan struct{})
	}
	return s.release[level]
}

func (s *blockingSource) Load(ctx context.Context, level project_types.Level) (project_types.RegionCollection, error) {
	<-s.gate(level)
	return project_types.RegionCollection{Level: level, Regions: []project_types.Region{{Code: string(level)}}}, nil
}

func TestLevelSelectorDiscardsStaleFetch(t *testing.T) {
	source := &blockingSource{}
	selector := NewLevelSelector(source)

	first := selector.Begin(project_types.LevelSido)
	var firstErr error
	done := make(chan struct{})
	go func() {
		_, firstErr = selector.Fetch(context.Background(), first)
		close(done)
	}()

	second := selector.Begin(project_types.LevelSigungu)
	assert.False(t, selector.IsCurrent(first))
	assert.True(t, selector.IsCurrent(second))

	close(source.gate(project_types.LevelSido))
	<-done
	assert.ErrorIs(t, firstErr, ErrStaleSelection)

	close(source.gate(project_types.LevelSigungu))
	collection, err := selector.Fetch(context.Background(), second)
	require.NoError(t, err)
	assert.Equal(t, project_types.LevelSigungu, collection.Level)
}

func TestDetectColumns(t *testing.T) {
	tests := []struct {
		headers []string
		want    ColumnMapping
	}{
		{[]string{"regionCode", "regionName", "value"}, ColumnMapping{"regionCode", "regionName", "value"}},
		{[]string{"지역코드", "지역명", "인구"}, ColumnMapping{"지역코드", "지역명", "인구"}},
		{[]string{"CTPRVN_CD", "CTP_KOR_NM", "population"}, ColumnMapping{"CTPRVN_CD", "CTP_KOR_NM", "population"}},
		{[]string{"시도", "amount"}, ColumnMapping{"", "시도", "amount"}},
		{[]string{"", "other"}, ColumnMapping{}},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.headers, ","), func(t *testing.T) {
			assert.Equal(t, tt.want, DetectColumns(tt.headers))
		})
	}
}

func TestParseCSV(t *testing.T) {
	input := "지역코드,지역명,인구,비고\n11,서울특별시,\"9,411,000\",capital\n26,부산광역시,n/a,\n,,,\n"
	points, err := ParseCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, points, 2)

	assert.Equal(t, "11", points[0].RegionCode)
	assert.Equal(t, "서울특별시", points[0].RegionName)
	assert.Equal(t, 9411000.0, points[0].Value)
	assert.Equal(t, "capital", points[0].Extra["비고"])

	assert.True(t, math.IsNaN(points[1].Value))
	values := project_types.NewValueMap(points)
	_, ok := values.Lookup("26", "부산광역시")
	assert.False(t, ok)
}

func TestParseCSVWithByteOrderMark(t *testing.T) {
	points, err := ParseCSV(strings.NewReader("\ufeffcode,name,value\n11,서울특별시,3\n"))
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, "11", points[0].RegionCode)
	assert.Equal(t, 3.0, points[0].Value)

	data, err := ParseDataset([]byte("\ufeff[{\"regionCode\":\"26\",\"value\":7}]"))
	require.NoError(t, err)
	require.Len(t, data.Data, 1)
	assert.Equal(t, 7.0, data.Data[0].Value)
}

func TestParseJSON(t *testing.T) {
	array, err := ParseJSON([]byte(`[{"regionCode":"11","regionName":"서울","value":10,"year":2020},{"regionName":"부산","value":"5"}]`))
	require.NoError(t, err)
	require.Len(t, array.Data, 2)
	assert.Equal(t, 10.0, array.Data[0].Value)
	assert.EqualValues(t, "2020", array.Data[0].Extra["year"].(interface{ String() string }).String())
	assert.Equal(t, "", array.Data[1].RegionCode)
	assert.Equal(t, 5.0, array.Data[1].Value)

	object, err := ParseJSON([]byte(`{"name":"population","unit":"명","data":[{"code":11,"name":"서울","population":3}]}`))
	require.NoError(t, err)
	assert.Equal(t, "population", object.Name)
	assert.Equal(t, "명", object.Unit)
	require.Len(t, object.Data, 1)
	assert.Equal(t, "11", object.Data[0].RegionCode)
	assert.Equal(t, 3.0, object.Data[0].Value)

	_, err = ParseJSON([]byte(`"text"`))
	assert.ErrorIs(t, err, ErrUnknownDatasetFormat)
}

func TestParseDatasetSniffsFormat(t *testing.T) {
	fromJSON, err := ParseDataset([]byte(`  [{"regionCode":"11","value":1}]`))
	require.NoError(t, err)
	assert.Len(t, fromJSON.Data, 1)

	fromCSV, err := ParseDataset([]byte("code,value\n11,1\n"))
	require.NoError(t, err)
	require.Len(t, fromCSV.Data, 1)
	assert.Equal(t, "11", fromCSV.Data[0].RegionCode)
}

func TestLoadRenderOptions(t *testing.T) {
	file := filepath.Join(t.TempDir(), "options.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"width":400,"scheme":"reds","mapType":"hexagonal"}`), 0644))

	options, err := LoadRenderOptions(file)
	require.NoError(t, err)
	assert.Equal(t, 400.0, options.Width)
	assert.Equal(t, project_types.DefaultRenderOptions.Height, options.Height)
	assert.Equal(t, "reds", options.Scheme)
	assert.Equal(t, project_types.MapHexagonal, options.MapType)

	_, err = LoadRenderOptions(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
