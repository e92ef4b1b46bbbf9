package engine

import (
	"fmt"
	"math"
	"testing"

	"github.com/mappichat/regions-atlas/src/project_types"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func box(lon, lat, size float64) orb.Polygon {
	return orb.Polygon{{
		{lon, lat}, {lon + size, lat}, {lon + size, lat + size}, {lon, lat + size}, {lon, lat},
	}}
}

func sidoNames() []string {
	names := make([]string, 0, len(SidoHexLayout))
	for _, n := range []string{
		"서울특별시", "부산광역시", "대구광역시", "인천광역시", "광주광역시", "대전광역시",
		"울산광역시", "세종특별자치시", "경기도", "강원특별자치도", "충청북도", "충청남도",
		"전북특별자치도", "전라남도", "경상북도", "경상남도", "제주특별자치도",
	} {
		names = append(names, n)
	}
	return names
}

// municipalities spreads n square regions over the Korea bounding box.
func municipalities(n int) project_types.RegionCollection {
	c := project_types.RegionCollection{Level: project_types.LevelSigungu}
	for i := 0; i < n; i++ {
		lon := 125.0 + float64(i%10)*0.5
		lat := 33.5 + float64(i/10)*0.4
		c.Regions = append(c.Regions, project_types.Region{
			Code:     fmt.Sprintf("%05d", 11000+i),
			Name:     fmt.Sprintf("시군구%d", i),
			Geometry: box(lon, lat, 0.1),
		})
	}
	return c
}

func TestAxialToPixel(t *testing.T) {
	x, y := AxialToPixel(0, 0, 50)
	assert.Equal(t, 0.0, x)
	assert.Equal(t, 0.0, y)

	x, y = AxialToPixel(1, 2, 10)
	assert.InDelta(t, 10*(math.Sqrt(3)+math.Sqrt(3)), x, 1e-9)
	assert.InDelta(t, 30, y, 1e-9)
}

func TestManualLayoutIsUniqueAndDeterministic(t *testing.T) {
	seen := map[HexCoord]string{}
	for name, c := range SidoHexLayout {
		other, dup := seen[c]
		assert.False(t, dup, "%s and %s share %v", name, other, c)
		seen[c] = name
	}
	require.Len(t, SidoHexLayout, 17)

	first := GenerateHexGrid(sidoNames(), 40, nil)
	second := GenerateHexGrid(sidoNames(), 40, nil)
	assert.Equal(t, first, second)
	require.Len(t, first, 17)
	for i, cell := range first {
		assert.Equal(t, sidoNames()[i], cell.RegionName)
		want := SidoHexLayout[cell.RegionName]
		assert.Equal(t, want.Q, cell.Q)
		assert.Equal(t, want.R, cell.R)
		assert.Empty(t, cell.Cell)
	}
}

func TestUnmatchedNamesArePacked(t *testing.T) {
	names := []string{"서울특별시", "Atlantis", "Lemuria", "Mu", "Hy-Brasil"}
	cells := GenerateHexGrid(names, 10, nil)
	require.Len(t, cells, 5)
	// cols = ceil(sqrt(5)) = 3
	assert.Equal(t, HexCoord{1, 2}, HexCoord{cells[0].Q, cells[0].R})
	assert.Equal(t, HexCoord{1, 0}, HexCoord{cells[1].Q, cells[1].R})
	assert.Equal(t, HexCoord{2, 0}, HexCoord{cells[2].Q, cells[2].R})
	assert.Equal(t, HexCoord{0, 1}, HexCoord{cells[3].Q, cells[3].R})
	assert.Equal(t, HexCoord{1, 1}, HexCoord{cells[4].Q, cells[4].R})
	assert.Equal(t, "Atlantis", cells[1].RegionCode)
}

func TestManualLayoutUsesSourceCodes(t *testing.T) {
	source := project_types.RegionCollection{Regions: []project_types.Region{
		{Code: "11", Name: "서울특별시", Geometry: box(126.9, 37.5, 0.1)},
	}}
	cells := GenerateHexGrid([]string{"서울특별시", "경기도"}, 50, &source)
	assert.Equal(t, "11", cells[0].RegionCode)
	assert.Equal(t, "경기도", cells[1].RegionCode)
}

func TestGeoLayoutStaysInsideBounds(t *testing.T) {
	source := municipalities(40)
	size := 20.0
	cells := GenerateHexGrid(source.Names(), size, &source)
	require.Len(t, cells, 40)

	codes := map[string]bool{}
	for _, code := range source.Codes() {
		codes[code] = true
	}
	for _, cell := range cells {
		assert.True(t, codes[cell.RegionCode], cell.RegionCode)
		assert.GreaterOrEqual(t, cell.X, 0.0)
		assert.LessOrEqual(t, cell.X, size*geoSpanX)
		assert.GreaterOrEqual(t, cell.Y, 0.0)
		assert.LessOrEqual(t, cell.Y, size*geoSpanY)
		assert.NotEmpty(t, cell.Cell)
	}
}

func TestRepeatedNamesResolveToTheirOwnRegions(t *testing.T) {
	c := municipalities(22)
	c.Regions[3].Name = "중구"
	c.Regions[15].Name = "중구"

	cells := GenerateHexGrid(c.Names(), 30, &c)
	require.Len(t, cells, 22)
	assert.Equal(t, c.Regions[3].Code, cells[3].RegionCode)
	assert.Equal(t, c.Regions[15].Code, cells[15].RegionCode)
	assert.NotEqual(t, [2]float64{cells[3].X, cells[3].Y}, [2]float64{cells[15].X, cells[15].Y})

	// the axial layout resolves codes the same way
	small := project_types.RegionCollection{Regions: []project_types.Region{
		{Code: "26110", Name: "중구"}, {Code: "27110", Name: "중구"},
	}}
	axial := GenerateHexGrid(small.Names(), 30, &small)
	assert.Equal(t, []string{"26110", "27110"}, []string{axial[0].RegionCode, axial[1].RegionCode})
}

func TestGeoLayoutNorthUp(t *testing.T) {
	source := municipalities(30)
	cells := GenerateHexGrid(source.Names(), 10, &source)
	// region 0 is south-west of region 29
	assert.Greater(t, cells[0].Y, cells[29].Y)
	assert.Less(t, cells[0].X, cells[9].X)
}

func TestDenseGridForcesSmallHexes(t *testing.T) {
	assert.Equal(t, DenseHexSize, EffectiveHexSize(101, 80))
	assert.Equal(t, 80.0, EffectiveHexSize(100, 80))
	assert.Equal(t, DefaultHexSize, EffectiveHexSize(5, 0))

	source := municipalities(120)
	cells := GenerateHexGrid(source.Names(), 80, &source)
	for _, cell := range cells {
		assert.LessOrEqual(t, cell.X, DenseHexSize*geoSpanX)
	}
}

func TestHexCornersAndLabels(t *testing.T) {
	corners := HexCorners(10, 10, 5)
	require.Len(t, corners, 6)
	assert.InDelta(t, 15, corners[0][0], 1e-9)
	assert.InDelta(t, 10, corners[0][1], 1e-9)
	assert.InDelta(t, 5, corners[3][0], 1e-9)

	assert.Equal(t, "서울", LabelFor("서울특별시"))
	assert.Equal(t, "부산", LabelFor("부산광역시"))
	assert.Equal(t, "세종", LabelFor("세종특별자치시"))
	assert.Equal(t, "제주", LabelFor("제주특별자치도"))
	assert.Equal(t, "경기", LabelFor("경기도"))
	assert.Equal(t, "수원시", LabelFor("수원시"))
}

func threeRegions() project_types.RegionCollection {
	return project_types.RegionCollection{Regions: []project_types.Region{
		{Code: "A", Name: "Alpha", Geometry: box(126.0, 35.0, 0.5), Properties: map[string]interface{}{"SIG_ENG_NM": "alpha"}},
		{Code: "B", Name: "Bravo", Geometry: box(127.0, 36.0, 0.5)},
		{Code: "C", Name: "Charlie", Geometry: orb.MultiPolygon{box(128.0, 37.0, 0.5), box(128.6, 37.0, 0.2)}},
	}}
}

func TestDorlingRadiusRatio(t *testing.T) {
	points := []project_types.DataPoint{
		{RegionCode: "A", Value: 400},
		{RegionCode: "B", Value: 100},
	}
	out, err := CreateDorlingCartogram(threeRegions(), points, project_types.CartogramOptions{ScaleFactor: 0.15})
	require.NoError(t, err)
	require.Len(t, out.Collection.Regions, 3)
	assert.Equal(t, project_types.CartogramDorling, out.Mode)

	ra := out.Collection.Regions[0].Properties[project_types.PropCartogramRadius].(float64)
	rb := out.Collection.Regions[1].Properties[project_types.PropCartogramRadius].(float64)
	rc := out.Collection.Regions[2].Properties[project_types.PropCartogramRadius].(float64)
	assert.InDelta(t, 2.0, ra/rb, 1e-12)
	assert.Equal(t, 0.0, rc)
	assert.Equal(t, 0.0, out.Collection.Regions[2].Properties[project_types.PropCartogramValue])

	circle, ok := out.Collection.Regions[0].Geometry.(orb.Polygon)
	require.True(t, ok)
	assert.Len(t, circle[0], CircleSteps+1)
	assert.Equal(t, "alpha", out.Collection.Regions[0].Properties["SIG_ENG_NM"])
	assert.Equal(t, threeRegions().Regions[0].Geometry, out.Collection.Regions[0].Original)
}

func TestDorlingDoesNotMutateInput(t *testing.T) {
	in := threeRegions()
	_, err := CreateDorlingCartogram(in, []project_types.DataPoint{{RegionCode: "A", Value: 1}}, project_types.CartogramOptions{})
	require.NoError(t, err)
	assert.Equal(t, threeRegions(), in)
	assert.NotContains(t, in.Regions[0].Properties, project_types.PropCartogramValue)
}

func TestScaledCartogramIdentityAtMean(t *testing.T) {
	points := []project_types.DataPoint{
		{RegionCode: "A", Value: 10},
		{RegionCode: "B", Value: 20},
		{RegionCode: "C", Value: 30},
	}
	in := threeRegions()
	out, err := CreateScaledCartogram(in, points, project_types.CartogramOptions{ScaleFactor: 0.01})
	require.NoError(t, err)

	b := out.Collection.Regions[1]
	assert.Equal(t, 1.0, b.Properties[project_types.PropCartogramScale])
	assert.Equal(t, in.Regions[1].Geometry, b.Geometry)

	a := out.Collection.Regions[0].Properties[project_types.PropCartogramScale].(float64)
	assert.InDelta(t, math.Sqrt(0.5), a, 1e-12)
}

func TestScaledCartogramMissingRegionKeepsShape(t *testing.T) {
	points := []project_types.DataPoint{{RegionCode: "A", Value: 50}, {RegionCode: "B", Value: 150}}
	in := threeRegions()
	out, err := CreateScaledCartogram(in, points, project_types.CartogramOptions{})
	require.NoError(t, err)
	c := out.Collection.Regions[2]
	assert.Equal(t, 100.0, c.Properties[project_types.PropCartogramValue])
	assert.Equal(t, 1.0, c.Properties[project_types.PropCartogramScale])
	assert.Equal(t, in.Regions[2].Geometry, c.Geometry)
}

func TestScaledCartogramIgnoresScaleFactor(t *testing.T) {
	points := []project_types.DataPoint{{RegionCode: "A", Value: 5}, {RegionCode: "B", Value: 45}}
	small, err := CreateScaledCartogram(threeRegions(), points, project_types.CartogramOptions{ScaleFactor: 0.01})
	require.NoError(t, err)
	large, err := CreateScaledCartogram(threeRegions(), points, project_types.CartogramOptions{ScaleFactor: 99})
	require.NoError(t, err)
	assert.Equal(t, small, large)
}

func TestScaledGeometryKeepsCentroid(t *testing.T) {
	points := []project_types.DataPoint{{RegionCode: "A", Value: 400}, {RegionCode: "B", Value: 100}}
	out, err := CreateScaledCartogram(threeRegions(), points, project_types.CartogramOptions{})
	require.NoError(t, err)
	scaled := out.Collection.Regions[0].Geometry.(orb.Polygon)
	// scale = sqrt(400/250); box edge 0.5 grows accordingly
	k := math.Sqrt(400.0 / 250.0)
	assert.InDelta(t, 0.5*k, scaled[0][1][0]-scaled[0][0][0], 1e-9)
	assert.InDelta(t, 126.25, (scaled[0][0][0]+scaled[0][1][0])/2, 1e-9)
}

func TestCartogramFailures(t *testing.T) {
	_, err := CreateDorlingCartogram(threeRegions(), nil, project_types.CartogramOptions{})
	assert.ErrorIs(t, err, ErrNoData)
	_, err = CreateScaledCartogram(threeRegions(), []project_types.DataPoint{}, project_types.CartogramOptions{})
	assert.ErrorIs(t, err, ErrNoData)

	broken := project_types.RegionCollection{Regions: []project_types.Region{{Code: "X", Geometry: orb.Polygon{}}}}
	_, err = CreateDorlingCartogram(broken, []project_types.DataPoint{{RegionCode: "X", Value: 1}}, project_types.CartogramOptions{})
	assert.ErrorIs(t, err, ErrDegenerateGeometry)
	assert.Contains(t, err.Error(), "X")

	_, err = GenerateCartogram("contiguous", threeRegions(), []project_types.DataPoint{{RegionCode: "A", Value: 1}}, project_types.CartogramOptions{})
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestScaleFor(t *testing.T) {
	assert.Equal(t, 1.0, ScaleFor(7, 7))
	assert.Equal(t, 2.0, ScaleFor(4, 1))
	assert.Equal(t, 1.0, ScaleFor(3, 0))
	assert.Equal(t, 0.0, ScaleFor(-3, 1))
}

func TestRegionCoverage(t *testing.T) {
	collection := project_types.RegionCollection{
		Level: project_types.LevelSido,
		Regions: []project_types.Region{
			{Code: "11", Name: "서울특별시", Geometry: box(126.8, 37.4, 0.3)},
			{Code: "26", Name: "부산광역시", Geometry: box(128.9, 35.0, 0.3)},
			{Code: "50", Name: "작은섬", Geometry: box(126.5, 33.3, 0.001)},
		},
	}

	cov := RegionCoverage(collection, DefaultCoverageResolution, 0)
	assert.Greater(t, len(cov.RegionCells["11"]), 5)
	assert.Greater(t, len(cov.RegionCells["26"]), 5)
	// too small to hold a cell center, falls back to its vertex cells
	require.NotEmpty(t, cov.RegionCells["50"])

	for key, cells := range cov.RegionCells {
		for _, cell := range cells {
			assert.Equal(t, key, cov.CellToRegion[cell])
		}
	}

	centroid, ok := CoverageCentroid(cov.RegionCells["11"])
	require.True(t, ok)
	assert.InDelta(t, 126.95, centroid[0], 0.05)
	assert.InDelta(t, 37.55, centroid[1], 0.05)

	filled := RegionCoverage(collection, DefaultCoverageResolution, 1)
	assert.Greater(t, len(filled.RegionCells["11"]), len(cov.RegionCells["11"]))
	assert.Greater(t, len(filled.CellToRegion), len(cov.CellToRegion))

	_, ok = CoverageCentroid(nil)
	assert.False(t, ok)
}
