package render

import (
	"errors"
	"log"
	"math"
	"strconv"

	"github.com/mappichat/regions-atlas/src/colorscale"
	"github.com/mappichat/regions-atlas/src/engine"
	"github.com/mappichat/regions-atlas/src/geo"
	"github.com/mappichat/regions-atlas/src/project_types"
	"github.com/paulmach/orb"
)

var (
	ErrNoGeometry = errors.New("no region geometry to render")
	ErrBusy       = errors.New("map is already rendering")
)

const (
	ProjectionScale = 4500

	FallbackFill = "#e0e0e0"
	Stroke       = "#333"
	HoverStroke  = "#000"

	HighlightFill        = "#ff4444"
	HighlightStroke      = "#cc0000"
	HighlightStrokeWidth = 3.0

	FirstTryFill  = "#4caf50"
	SecondTryFill = "#8bc34a"
	ThirdTryFill  = "#ffc107"
	FailedFill    = "#9e9e9e"

	// hex grids up to this many cells get text labels
	LabelThreshold = 20
)

var ProjectionCenter = orb.Point{127.5, 36.0}

type State int

const (
	Idle State = iota
	Rendering
)

func (s State) String() string {
	if s == Rendering {
		return "rendering"
	}
	return "idle"
}

// Input is everything one render pass depends on.
type Input struct {
	MapType project_types.MapType
	// Regions is drawn on geographic maps and is the placement source for hex grids.
	Regions *project_types.RegionCollection
	// Cartogram is drawn on cartogram maps. Nil means generation failed.
	Cartogram *project_types.CartogramGeometry
	Data      []project_types.DataPoint
	Scheme    colorscale.Scheme
	// Classes > 0 switches to an equal-frequency quantile scale.
	Classes int
	Width   float64
	Height  float64
	HexSize float64
}

// Shape is one drawn region in map space.
type Shape struct {
	Code     string
	Name     string
	Geometry orb.Geometry
	Value    float64
	HasValue bool
	Fill     string
	Label    string
	LabelAt  orb.Point
}

// Title is the tooltip text.
func (s *Shape) Title() string {
	if s.HasValue {
		return s.Name + ": " + FormatValue(s.Value)
	}
	return s.Name
}

func FormatValue(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// Style is the resolved paint of a shape for the current interaction state.
type Style struct {
	Fill        string
	Stroke      string
	StrokeWidth float64
	Blink       bool
}

// Map renders one of the three base maps and turns pointer input into
// hover and click events. A Map is owned by a single goroutine.
type Map struct {
	OnHover func(code string)
	OnClick func(code string)

	state       State
	mapType     project_types.MapType
	width       float64
	height      float64
	shapes      []Shape
	scale       func(float64) string
	legend      *colorscale.Scale
	placeholder bool

	hovered   string
	highlight string
	attempts  map[string]project_types.Attempt
}

func NewMap() *Map {
	return &Map{mapType: project_types.MapGeographic, width: 800, height: 1000}
}

func (m *Map) State() State {
	return m.state
}

func (m *Map) MapType() project_types.MapType {
	return m.mapType
}

func (m *Map) Shapes() []Shape {
	return m.shapes
}

func (m *Map) Size() (float64, float64) {
	return m.width, m.height
}

// Placeholder reports that the last cartogram render had no geometry.
func (m *Map) Placeholder() bool {
	return m.placeholder
}

// Scale returns the continuous scale of the last render, or nil when no
// dataset was bound or a quantile scale is in use.
func (m *Map) Scale() *colorscale.Scale {
	return m.legend
}

// Attach returns a fresh viewport sized and clamped for the current map.
func (m *Map) Attach() *Viewport {
	return NewViewport(m.mapType, m.width, m.height)
}

func buildScale(in Input) (func(float64) string, *colorscale.Scale) {
	values := project_types.Values(in.Data)
	if len(values) == 0 {
		return nil, nil
	}
	if in.Classes > 0 {
		q, err := colorscale.NewQuantile(values, in.Classes, in.Scheme)
		if err != nil {
			return nil, nil
		}
		return q.At, nil
	}
	s, err := colorscale.New(values, in.Scheme)
	if err != nil {
		return nil, nil
	}
	return s.At, &s
}

// FillFor resolves the value fill of a region: code then name lookup, the
// fallback fill when nothing resolves or no scale exists.
func FillFor(values project_types.ValueMap, scale func(float64) string, code, name string) (string, float64, bool) {
	v, ok := values.Lookup(code, name)
	if !ok {
		return FallbackFill, 0, false
	}
	if scale == nil {
		return FallbackFill, v, true
	}
	return scale(v), v, true
}

// Render rebuilds every shape from in. Interaction state other than hover
// survives a render.
func (m *Map) Render(in Input) error {
	if m.state == Rendering {
		return ErrBusy
	}
	m.state = Rendering
	defer func() { m.state = Idle }()

	if in.MapType == "" {
		in.MapType = project_types.MapGeographic
	}
	if in.Width <= 0 {
		in.Width = project_types.DefaultRenderOptions.Width
	}
	if in.Height <= 0 {
		in.Height = project_types.DefaultRenderOptions.Height
	}
	m.mapType = in.MapType
	m.width, m.height = in.Width, in.Height
	m.shapes = nil
	m.hovered = ""
	m.placeholder = false
	m.scale, m.legend = buildScale(in)
	values := project_types.NewValueMap(in.Data)

	switch in.MapType {
	case project_types.MapHexagonal:
		if in.Regions == nil {
			return ErrNoGeometry
		}
		m.shapes = m.hexShapes(in, values)
	case project_types.MapCartogram:
		if in.Cartogram == nil {
			m.placeholder = true
			log.Print("cartogram unavailable, rendering placeholder")
			return nil
		}
		m.shapes = m.geoShapes(&in.Cartogram.Collection, values)
	default:
		if in.Regions == nil {
			return ErrNoGeometry
		}
		m.shapes = m.geoShapes(in.Regions, values)
	}
	return nil
}

func (m *Map) geoShapes(collection *project_types.RegionCollection, values project_types.ValueMap) []Shape {
	projection := geo.NewMercator(ProjectionCenter, ProjectionScale, m.width, m.height)
	shapes := make([]Shape, 0, collection.Len())
	for _, region := range collection.Regions {
		g := projection.ProjectGeometry(region.Geometry)
		if g == nil {
			continue
		}
		fill, v, ok := FillFor(values, m.scale, region.Code, region.Name)
		shapes = append(shapes, Shape{
			Code:     region.Code,
			Name:     region.Name,
			Geometry: g,
			Value:    v,
			HasValue: ok,
			Fill:     fill,
		})
	}
	return shapes
}

func (m *Map) hexShapes(in Input, values project_types.ValueMap) []Shape {
	names := in.Regions.Names()
	hexSize := in.HexSize
	if hexSize <= 0 {
		hexSize = project_types.DefaultRenderOptions.HexSize
	}
	size := engine.EffectiveHexSize(len(names), hexSize)
	cells := engine.GenerateHexGrid(names, hexSize, in.Regions)
	if len(cells) == 0 {
		return nil
	}

	bound := orb.Bound{Min: orb.Point{cells[0].X, cells[0].Y}, Max: orb.Point{cells[0].X, cells[0].Y}}
	for _, c := range cells[1:] {
		bound = bound.Extend(orb.Point{c.X, c.Y})
	}
	center := bound.Center()
	dx := m.width/2 - center[0]
	dy := m.height/2 - center[1]

	labelled := len(cells) <= LabelThreshold
	shapes := make([]Shape, 0, len(cells))
	for _, c := range cells {
		x, y := c.X+dx, c.Y+dy
		ring := orb.Ring(engine.HexCorners(x, y, size))
		ring = append(ring, ring[0])
		fill, v, ok := FillFor(values, m.scale, c.RegionCode, c.RegionName)
		shape := Shape{
			Code:     c.RegionCode,
			Name:     c.RegionName,
			Geometry: orb.Polygon{ring},
			Value:    v,
			HasValue: ok,
			Fill:     fill,
			LabelAt:  orb.Point{x, y},
		}
		if labelled {
			shape.Label = engine.LabelFor(c.RegionName)
		}
		shapes = append(shapes, shape)
	}
	return shapes
}

// SetHighlight marks the region matching codeOrName; an empty key clears it.
func (m *Map) SetHighlight(codeOrName string) {
	m.highlight = codeOrName
}

func (m *Map) Highlight() string {
	return m.highlight
}

// SetAttempts installs the quiz overlay keyed by region code.
func (m *Map) SetAttempts(attempts map[string]project_types.Attempt) {
	m.attempts = attempts
}

func (m *Map) Hovered() string {
	return m.hovered
}

func (m *Map) highlighted(s *Shape) bool {
	return m.highlight != "" && (s.Code == m.highlight || s.Name == m.highlight)
}

// AttemptFill maps a quiz outcome to its overlay color.
func AttemptFill(a project_types.Attempt) (string, bool) {
	switch {
	case a.Failed:
		return FailedFill, true
	case a.Tries == 1:
		return FirstTryFill, true
	case a.Tries == 2:
		return SecondTryFill, true
	case a.Tries >= 3:
		return ThirdTryFill, true
	}
	return "", false
}

func (m *Map) overlay(s *Shape) (string, bool) {
	if m.attempts == nil {
		return "", false
	}
	a, ok := m.attempts[s.Code]
	if !ok {
		a, ok = m.attempts[s.Name]
	}
	if !ok {
		return "", false
	}
	return AttemptFill(a)
}

func (m *Map) baseStrokeWidth() (float64, float64) {
	if m.mapType == project_types.MapHexagonal {
		return 2, 3
	}
	return 0.5, 1.5
}

// StyleOf resolves highlight over overlay over value fill.
func (m *Map) StyleOf(s *Shape) Style {
	width, hoverWidth := m.baseStrokeWidth()
	style := Style{Fill: s.Fill, Stroke: Stroke, StrokeWidth: width}
	if m.hovered != "" && s.Code == m.hovered {
		style.Stroke = HoverStroke
		style.StrokeWidth = hoverWidth
	}
	if fill, ok := m.overlay(s); ok {
		style.Fill = fill
	}
	if m.highlighted(s) {
		style.Fill = HighlightFill
		style.Stroke = HighlightStroke
		style.StrokeWidth = HighlightStrokeWidth
		style.Blink = true
	}
	return style
}

// HitTest returns the topmost shape under a screen point.
func (m *Map) HitTest(vp *Viewport, x, y float64) (*Shape, bool) {
	p := vp.Invert(orb.Point{x, y})
	for i := len(m.shapes) - 1; i >= 0; i-- {
		if geo.Contains(m.shapes[i].Geometry, p) {
			return &m.shapes[i], true
		}
	}
	return nil, false
}

func (m *Map) PointerMove(vp *Viewport, x, y float64) {
	code := ""
	if s, ok := m.HitTest(vp, x, y); ok {
		code = s.Code
	}
	if code == m.hovered {
		return
	}
	m.hovered = code
	if m.OnHover != nil {
		m.OnHover(code)
	}
}

func (m *Map) PointerLeave() {
	m.hovered = ""
	if m.OnHover != nil {
		m.OnHover("")
	}
}

// Click reports the region under the pointer, if any.
func (m *Map) Click(vp *Viewport, x, y float64) {
	s, ok := m.HitTest(vp, x, y)
	if !ok {
		return
	}
	if m.OnClick != nil {
		m.OnClick(s.Code)
	}
}
