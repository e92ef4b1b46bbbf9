// Package colorscale maps numeric domains onto perceptual color ramps.
package colorscale

import (
	"errors"
	"math"
	"sort"
	"strings"

	"github.com/iancoleman/strcase"
	"github.com/lucasb-eyer/go-colorful"
)

var ErrEmptyDomain = errors.New("color scale needs at least one value")

type Scheme string

const (
	Blues     Scheme = "blues"
	Reds      Scheme = "reds"
	Greens    Scheme = "greens"
	Oranges   Scheme = "oranges"
	Purples   Scheme = "purples"
	Diverging Scheme = "diverging"
	Rainbow   Scheme = "rainbow"
)

var Schemes = []Scheme{Blues, Reds, Greens, Oranges, Purples, Diverging, Rainbow}

var schemeAliases = map[string]Scheme{
	"blues":             Blues,
	"sequential_blue":   Blues,
	"reds":              Reds,
	"sequential_red":    Reds,
	"greens":            Greens,
	"sequential_green":  Greens,
	"oranges":           Oranges,
	"sequential_orange": Oranges,
	"purples":           Purples,
	"sequential_purple": Purples,
	"diverging":         Diverging,
	"rd_yl_bu":          Diverging,
	"rainbow":           Rainbow,
}

// ParseScheme accepts the short names ("blues") as well as the long
// spellings ("sequential-blue", "SequentialBlue"). Unknown names fall back to
// Blues.
func ParseScheme(name string) Scheme {
	key := strings.ToLower(strcase.ToSnake(strings.TrimSpace(name)))
	if s, ok := schemeAliases[key]; ok {
		return s
	}
	return Blues
}

// Interpolator maps t in [0,1] to a color.
type Interpolator func(t float64) colorful.Color

func mustHex(s string) colorful.Color {
	c, err := colorful.Hex(s)
	if err != nil {
		panic(err)
	}
	return c
}

func ramp(hexes ...string) []colorful.Color {
	stops := make([]colorful.Color, len(hexes))
	for i, h := range hexes {
		stops[i] = mustHex(h)
	}
	return stops
}

// ColorBrewer 9-class sequential and 11-class diverging stops.
var (
	bluesStops   = ramp("#f7fbff", "#deebf7", "#c6dbef", "#9ecae1", "#6baed6", "#4292c6", "#2171b5", "#08519c", "#08306b")
	redsStops    = ramp("#fff5f0", "#fee0d2", "#fcbba1", "#fc9272", "#fb6a4a", "#ef3b2c", "#cb181d", "#a50f15", "#67000d")
	greensStops  = ramp("#f7fcf5", "#e5f5e0", "#c7e9c0", "#a1d99b", "#74c476", "#41ab5d", "#238b45", "#006d2c", "#00441b")
	orangesStops = ramp("#fff5eb", "#fee6ce", "#fdd0a2", "#fdae6b", "#fd8d3c", "#f16913", "#d94801", "#a63603", "#7f2704")
	purplesStops = ramp("#fcfbfd", "#efedf5", "#dadaeb", "#bcbddc", "#9e9ac8", "#807dba", "#6a51a3", "#54278f", "#3f007d")
	rdYlBuStops  = ramp("#a50026", "#d73027", "#f46d43", "#fdae61", "#fee090", "#ffffbf", "#e0f3f8", "#abd9e9", "#74add1", "#4575b4", "#313695")
)

func linear(stops []colorful.Color) Interpolator {
	return func(t float64) colorful.Color {
		if t <= 0 || math.IsNaN(t) {
			return stops[0]
		}
		if t >= 1 {
			return stops[len(stops)-1]
		}
		idx := t * float64(len(stops)-1)
		lower := int(idx)
		upper := lower + 1
		if upper >= len(stops) {
			upper = len(stops) - 1
		}
		frac := idx - float64(lower)
		if frac == 0 {
			return stops[lower]
		}
		return stops[lower].BlendRgb(stops[upper], frac)
	}
}

// cubehelix rainbow; both ends of the range share one color
func rainbow(t float64) colorful.Color {
	if t < 0 || t > 1 {
		t -= math.Floor(t)
	}
	ts := math.Abs(t - 0.5)
	h := (360*t - 100 + 120) * math.Pi / 180
	s := 1.5 - 1.5*ts
	l := 0.8 - 0.9*ts
	a := s * l * (1 - l)
	cosh := math.Cos(h)
	sinh := math.Sin(h)
	return colorful.Color{
		R: l + a*(-0.14861*cosh+1.78277*sinh),
		G: l + a*(-0.29227*cosh-0.90649*sinh),
		B: l + a*(1.97294*cosh),
	}.Clamped()
}

// InterpolatorFor returns the ramp behind a scheme.
func InterpolatorFor(scheme Scheme) Interpolator {
	switch scheme {
	case Reds:
		return linear(redsStops)
	case Greens:
		return linear(greensStops)
	case Oranges:
		return linear(orangesStops)
	case Purples:
		return linear(purplesStops)
	case Diverging:
		return linear(rdYlBuStops)
	case Rainbow:
		return rainbow
	default:
		return linear(bluesStops)
	}
}

// Palette samples n evenly spaced colors from the scheme, both ends included.
func Palette(scheme Scheme, n int) []string {
	if n <= 0 {
		return nil
	}
	interp := InterpolatorFor(scheme)
	colors := make([]string, n)
	for i := 0; i < n; i++ {
		t := 0.0
		if n > 1 {
			t = float64(i) / float64(n-1)
		}
		colors[i] = interp(t).Hex()
	}
	return colors
}

// Scale is a continuous value -> color mapping. It holds no mutable state
// and can be shared between renders of the same dataset.
type Scale struct {
	scheme Scheme
	domain []float64
	interp Interpolator
}

func extent(values []float64) (float64, float64) {
	min := math.Inf(1)
	max := math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		min = math.Min(min, v)
		max = math.Max(max, v)
	}
	return min, max
}

// New builds a sequential scale over [min, max] of values, or a three point
// diverging scale over [min, (min+max)/2, max] for the Diverging scheme.
func New(values []float64, scheme Scheme) (Scale, error) {
	min, max := extent(values)
	if math.IsInf(min, 1) {
		return Scale{}, ErrEmptyDomain
	}
	s := Scale{scheme: scheme, interp: InterpolatorFor(scheme)}
	if scheme == Diverging {
		s.domain = []float64{min, (min + max) / 2, max}
	} else {
		s.domain = []float64{min, max}
	}
	return s, nil
}

func (s Scale) Scheme() Scheme {
	return s.scheme
}

func (s Scale) Domain() []float64 {
	return append([]float64(nil), s.domain...)
}

// T maps v onto the interpolation range [0,1].
func (s Scale) T(v float64) float64 {
	if len(s.domain) == 3 {
		lo, mid, hi := s.domain[0], s.domain[1], s.domain[2]
		if v < mid {
			if mid == lo {
				return 0.5
			}
			return 0.5 * (v - lo) / (mid - lo)
		}
		if hi == mid {
			return 0.5
		}
		return 0.5 + 0.5*(v-mid)/(hi-mid)
	}
	lo, hi := s.domain[0], s.domain[1]
	if hi == lo {
		return 0.5
	}
	return (v - lo) / (hi - lo)
}

func (s Scale) At(v float64) string {
	return s.interp(s.T(v)).Hex()
}

// Func exposes the scale as a plain value -> color function.
func (s Scale) Func() func(float64) string {
	return s.At
}

// QuantileScale buckets values into equal-frequency classes.
type QuantileScale struct {
	thresholds []float64
	colors     []string
}

// NewQuantile splits the sorted domain at the i/numClasses quantiles and
// assigns each class one color of Palette(scheme, numClasses).
func NewQuantile(values []float64, numClasses int, scheme Scheme) (QuantileScale, error) {
	sorted := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			sorted = append(sorted, v)
		}
	}
	if len(sorted) == 0 {
		return QuantileScale{}, ErrEmptyDomain
	}
	if numClasses < 1 {
		numClasses = 5
	}
	sort.Float64s(sorted)

	thresholds := make([]float64, 0, numClasses-1)
	for i := 1; i < numClasses; i++ {
		thresholds = append(thresholds, quantile(sorted, float64(i)/float64(numClasses)))
	}
	return QuantileScale{thresholds: thresholds, colors: Palette(scheme, numClasses)}, nil
}

// quantile uses linear interpolation between closest ranks (R-7).
func quantile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := float64(len(sorted)-1) * p
	lo := int(math.Floor(pos))
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	return sorted[lo] + (sorted[lo+1]-sorted[lo])*(pos-float64(lo))
}

// Class returns the class index of v.
func (q QuantileScale) Class(v float64) int {
	return sort.Search(len(q.thresholds), func(i int) bool { return q.thresholds[i] > v })
}

func (q QuantileScale) At(v float64) string {
	return q.colors[q.Class(v)]
}

func (q QuantileScale) Thresholds() []float64 {
	return append([]float64(nil), q.thresholds...)
}

func (q QuantileScale) Colors() []string {
	return append([]string(nil), q.colors...)
}

type Stop struct {
	Offset float64 `json:"offset"`
	Value  float64 `json:"value"`
	Color  string  `json:"color"`
}

// Legend returns n+1 evenly spaced gradient stops across the scale domain.
func Legend(s Scale, n int) []Stop {
	if n < 1 {
		n = 10
	}
	lo := s.domain[0]
	hi := s.domain[len(s.domain)-1]
	stops := make([]Stop, n+1)
	for i := 0; i <= n; i++ {
		f := float64(i) / float64(n)
		v := lo + (hi-lo)*f
		stops[i] = Stop{Offset: f, Value: v, Color: s.At(v)}
	}
	return stops
}
