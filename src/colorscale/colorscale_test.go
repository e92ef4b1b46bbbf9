package colorscale

import (
	"testing"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lightness(t *testing.T, hex string) float64 {
	c, err := colorful.Hex(hex)
	require.NoError(t, err)
	l, _, _ := c.Lab()
	return l
}

func TestBoundariesHitRampEnds(t *testing.T) {
	values := []float64{12, -3, 40, 7}
	for _, scheme := range Schemes {
		t.Run(string(scheme), func(t *testing.T) {
			s, err := New(values, scheme)
			require.NoError(t, err)
			interp := InterpolatorFor(scheme)
			assert.Equal(t, interp(0).Hex(), s.At(-3))
			assert.Equal(t, interp(1).Hex(), s.At(40))
		})
	}
}

func TestDivergingMidpointIsCenterStop(t *testing.T) {
	s, err := New([]float64{10, 30, 90}, Diverging)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 50, 90}, s.Domain())
	assert.Equal(t, "#ffffbf", s.At(50))
	assert.Equal(t, "#a50026", s.At(10))
	assert.Equal(t, "#313695", s.At(90))
}

func TestSequentialValuesClampAndDegenerateDomain(t *testing.T) {
	s, err := New([]float64{1, 2}, Blues)
	require.NoError(t, err)
	assert.Equal(t, "#f7fbff", s.At(-100))
	assert.Equal(t, "#08306b", s.At(100))

	// a single-valued domain sits at the middle of the ramp
	flat, err := New([]float64{5, 5, 5}, Reds)
	require.NoError(t, err)
	assert.Equal(t, "#fb6a4a", flat.At(5))

	single, err := New([]float64{42}, Blues)
	require.NoError(t, err)
	assert.Equal(t, "#6baed6", single.At(42))
	assert.Equal(t, 0.5, single.T(42))

	diverging, err := New([]float64{7}, Diverging)
	require.NoError(t, err)
	assert.Equal(t, single.T(42), diverging.T(7))
}

func TestSequentialDarkensWithValue(t *testing.T) {
	s, err := New([]float64{1, 2, 3}, Blues)
	require.NoError(t, err)
	l1 := lightness(t, s.At(1))
	l2 := lightness(t, s.At(2))
	l3 := lightness(t, s.At(3))
	assert.Greater(t, l1, l2)
	assert.Greater(t, l2, l3)
}

func TestEmptyDomain(t *testing.T) {
	_, err := New(nil, Blues)
	assert.ErrorIs(t, err, ErrEmptyDomain)
	_, err = NewQuantile([]float64{}, 5, Blues)
	assert.ErrorIs(t, err, ErrEmptyDomain)
}

func TestParseScheme(t *testing.T) {
	cases := map[string]Scheme{
		"blues":             Blues,
		"sequential-blue":   Blues,
		"sequential-red":    Reds,
		"SequentialGreen":   Greens,
		"sequential-orange": Oranges,
		"sequential-purple": Purples,
		"diverging":         Diverging,
		"rainbow":           Rainbow,
		"magma":             Blues,
		"":                  Blues,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseScheme(in), in)
	}
}

func TestRainbowIsCyclic(t *testing.T) {
	s, err := New([]float64{0, 1}, Rainbow)
	require.NoError(t, err)
	assert.Equal(t, s.At(0), s.At(1))
	assert.NotEqual(t, s.At(0), s.At(0.5))
}

func TestQuantileEqualFrequency(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 100, 1000}
	q, err := NewQuantile(values, 4, Greens)
	require.NoError(t, err)
	require.Len(t, q.Thresholds(), 3)
	require.Len(t, q.Colors(), 4)

	counts := make([]int, 4)
	for _, v := range values {
		counts[q.Class(v)]++
	}
	assert.Equal(t, []int{3, 3, 3, 3}, counts)

	assert.Equal(t, Palette(Greens, 4)[0], q.At(1))
	assert.Equal(t, Palette(Greens, 4)[3], q.At(1000))
}

func TestPalette(t *testing.T) {
	p := Palette(Blues, 5)
	require.Len(t, p, 5)
	assert.Equal(t, "#f7fbff", p[0])
	assert.Equal(t, "#08306b", p[4])
	assert.Equal(t, []string{"#f7fbff"}, Palette(Blues, 1))
	assert.Nil(t, Palette(Blues, 0))
}

func TestLegendStops(t *testing.T) {
	s, err := New([]float64{0, 100}, Purples)
	require.NoError(t, err)
	stops := Legend(s, 10)
	require.Len(t, stops, 11)
	assert.Equal(t, 0.0, stops[0].Value)
	assert.Equal(t, 100.0, stops[10].Value)
	assert.Equal(t, s.At(100), stops[10].Color)
}
