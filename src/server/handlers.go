package server

import (
	"bytes"
	"log"
	"math"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/mappichat/regions-atlas/src/cache"
	"github.com/mappichat/regions-atlas/src/colorscale"
	"github.com/mappichat/regions-atlas/src/engine"
	"github.com/mappichat/regions-atlas/src/fileio"
	"github.com/mappichat/regions-atlas/src/metrics"
	"github.com/mappichat/regions-atlas/src/project_types"
	"github.com/mappichat/regions-atlas/src/quiz"
	"github.com/mappichat/regions-atlas/src/render"
)

type zoomState struct {
	K float64 `json:"k"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// dataRequest names a dataset inline or by stored id. Inline records are
// decoded loosely, like uploaded JSON datasets.
type dataRequest struct {
	Data      []map[string]interface{} `json:"data"`
	DatasetID string                   `json:"datasetId"`
}

type renderRequest struct {
	dataRequest
	Level       string                           `json:"level" validate:"required"`
	MapType     project_types.MapType            `json:"mapType" validate:"omitempty,oneof=geographic cartogram hexagonal"`
	Mode        project_types.CartogramMode      `json:"mode" validate:"omitempty,oneof=dorling scaled"`
	Scheme      string                           `json:"scheme"`
	Classes     int                              `json:"classes" validate:"gte=0,lte=12"`
	Width       float64                          `json:"width" validate:"gte=0,lte=8000"`
	Height      float64                          `json:"height" validate:"gte=0,lte=8000"`
	HexSize     float64                          `json:"hexSize" validate:"gte=0"`
	ScaleFactor float64                          `json:"scaleFactor"`
	Highlight   string                           `json:"highlight"`
	Attempts    map[string]project_types.Attempt `json:"attempts"`
	Zoom        *zoomState                       `json:"zoom"`
	Format      string                           `json:"format" validate:"omitempty,oneof=svg png"`
}

type pointJSON struct {
	RegionCode string                 `json:"regionCode"`
	RegionName string                 `json:"regionName"`
	Value      *float64               `json:"value"`
	Extra      map[string]interface{} `json:"extra,omitempty"`
}

// NaN has no JSON encoding; missing values go out as null.
func pointsJSON(points []project_types.DataPoint) []pointJSON {
	out := make([]pointJSON, len(points))
	for i, p := range points {
		out[i] = pointJSON{RegionCode: p.RegionCode, RegionName: p.RegionName, Extra: p.Extra}
		if !math.IsNaN(p.Value) {
			v := p.Value
			out[i].Value = &v
		}
	}
	return out
}

func (s *Server) points(req dataRequest) ([]project_types.DataPoint, string, error) {
	if req.DatasetID == "" {
		points, err := fileio.RecordsToPoints(req.Data)
		if err != nil {
			return nil, "", fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return points, "", nil
	}
	data, err := s.datasets.Load(req.DatasetID)
	if err != nil {
		return nil, "", err
	}
	return data.Data, data.ColorScheme, nil
}

func (s *Server) buildMap(req renderRequest) (*render.Map, error) {
	collection, err := s.collection(req.Level)
	if err != nil {
		return nil, err
	}
	points, datasetScheme, err := s.points(req.dataRequest)
	if err != nil {
		return nil, err
	}
	scheme := req.Scheme
	if scheme == "" {
		scheme = datasetScheme
	}

	input := render.Input{
		MapType: req.MapType,
		Regions: collection,
		Data:    points,
		Scheme:  colorscale.ParseScheme(scheme),
		Classes: req.Classes,
		Width:   req.Width,
		Height:  req.Height,
		HexSize: req.HexSize,
	}
	if req.MapType == project_types.MapCartogram {
		cartogram, err := engine.GenerateCartogram(req.Mode, *collection, points, project_types.CartogramOptions{ScaleFactor: req.ScaleFactor})
		if err != nil {
			log.Printf("cartogram %s: %s", req.Mode, err)
			metrics.CartogramFailuresTotal.WithLabelValues(string(req.Mode)).Inc()
		} else {
			input.Cartogram = &cartogram
		}
	}

	m := render.NewMap()
	m.SetHighlight(req.Highlight)
	m.SetAttempts(req.Attempts)
	if err := m.Render(input); err != nil {
		return nil, err
	}
	return m, nil
}

func viewport(m *render.Map, zoom *zoomState) *render.Viewport {
	vp := m.Attach()
	if zoom != nil {
		vp.Set(zoom.K, zoom.X, zoom.Y)
	}
	return vp
}

func (s *Server) levels(c *fiber.Ctx) error {
	collection, err := s.collection(c.Params("level"))
	if err != nil {
		return err
	}
	type entry struct {
		Code string `json:"code"`
		Name string `json:"name"`
	}
	out := make([]entry, collection.Len())
	for i, r := range collection.Regions {
		out[i] = entry{Code: r.Code, Name: r.Name}
	}
	return c.JSON(out)
}

func (s *Server) render(c *fiber.Ctx) error {
	payload := renderRequest{}
	if err := parse(c, &payload); err != nil {
		return err
	}
	format := payload.Format
	if format == "" {
		format = "svg"
	}
	contentType := "image/svg+xml"
	if format == "png" {
		contentType = "image/png"
	}

	key, err := cache.Key("render", payload)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, contentType)
	if b, ok := s.cache.Get(c.Context(), key); ok {
		c.Set("X-Cache", "hit")
		return c.Send(b)
	}

	start := time.Now()
	m, err := s.buildMap(payload)
	if err != nil {
		return err
	}
	vp := viewport(m, payload.Zoom)

	var buf bytes.Buffer
	if format == "png" {
		err = m.WritePNG(&buf, vp)
	} else {
		err = m.WriteSVG(&buf, vp)
	}
	if err != nil {
		return err
	}
	metrics.RenderDurationMs.WithLabelValues(string(m.MapType())).Observe(float64(time.Since(start).Milliseconds()))

	s.cache.Set(c.Context(), key, buf.Bytes())
	c.Set("X-Cache", "miss")
	return c.Send(buf.Bytes())
}

func (s *Server) cartogram(c *fiber.Ctx) error {
	payload := struct {
		dataRequest
		Level       string                      `json:"level" validate:"required"`
		Mode        project_types.CartogramMode `json:"mode" validate:"omitempty,oneof=dorling scaled"`
		ScaleFactor float64                     `json:"scaleFactor"`
	}{}
	if err := parse(c, &payload); err != nil {
		return err
	}
	collection, err := s.collection(payload.Level)
	if err != nil {
		return err
	}
	points, _, err := s.points(payload.dataRequest)
	if err != nil {
		return err
	}
	cartogram, err := engine.GenerateCartogram(payload.Mode, *collection, points, project_types.CartogramOptions{ScaleFactor: payload.ScaleFactor})
	if err != nil {
		metrics.CartogramFailuresTotal.WithLabelValues(string(payload.Mode)).Inc()
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(fileio.ToFeatureCollection(cartogram.Collection))
}

func (s *Server) hexgrid(c *fiber.Ctx) error {
	payload := struct {
		Level   string   `json:"level" validate:"required"`
		HexSize float64  `json:"hexSize" validate:"gte=0"`
		Names   []string `json:"names"`
	}{}
	if err := parse(c, &payload); err != nil {
		return err
	}
	collection, err := s.collection(payload.Level)
	if err != nil {
		return err
	}
	names := payload.Names
	if len(names) == 0 {
		names = collection.Names()
	}
	return c.JSON(engine.GenerateHexGrid(names, payload.HexSize, collection))
}

func (s *Server) coverage(c *fiber.Ctx) error {
	payload := struct {
		Level      string `json:"level" validate:"required"`
		Resolution int    `json:"resolution" validate:"gte=0,lte=9"`
		Fill       int    `json:"fill" validate:"gte=0,lte=3"`
	}{}
	if err := parse(c, &payload); err != nil {
		return err
	}
	collection, err := s.collection(payload.Level)
	if err != nil {
		return err
	}
	resolution := payload.Resolution
	if resolution == 0 {
		resolution = engine.DefaultCoverageResolution
	}
	return c.JSON(engine.RegionCoverage(*collection, resolution, payload.Fill))
}

func (s *Server) hit(c *fiber.Ctx) error {
	payload := struct {
		renderRequest
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}{}
	if err := parse(c, &payload); err != nil {
		return err
	}
	m, err := s.buildMap(payload.renderRequest)
	if err != nil {
		return err
	}
	shape, ok := m.HitTest(viewport(m, payload.Zoom), payload.X, payload.Y)
	if !ok {
		return c.JSON(fiber.Map{"code": "", "name": ""})
	}
	return c.JSON(fiber.Map{"code": shape.Code, "name": shape.Name, "title": shape.Title()})
}

func (s *Server) legend(c *fiber.Ctx) error {
	payload := struct {
		dataRequest
		Scheme string `json:"scheme"`
		Title  string `json:"title"`
	}{}
	if err := parse(c, &payload); err != nil {
		return err
	}
	points, datasetScheme, err := s.points(payload.dataRequest)
	if err != nil {
		return err
	}
	scheme := payload.Scheme
	if scheme == "" {
		scheme = datasetScheme
	}
	scale, err := colorscale.New(project_types.Values(points), colorscale.ParseScheme(scheme))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	var buf bytes.Buffer
	if err := render.WriteLegendSVG(&buf, scale, payload.Title); err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, "image/svg+xml")
	return c.Send(buf.Bytes())
}

func (s *Server) quiz(c *fiber.Ctx) error {
	payload := struct {
		Level string `json:"level" validate:"required"`
		Count int    `json:"count" validate:"gte=0,lte=500"`
		Seed  int64  `json:"seed"`
	}{}
	if err := parse(c, &payload); err != nil {
		return err
	}
	collection, err := s.collection(payload.Level)
	if err != nil {
		return err
	}
	return c.JSON(quiz.GenerateQuestions(quiz.NewRand(payload.Seed), *collection, payload.Count))
}

func (s *Server) quizOptions(c *fiber.Ctx) error {
	payload := struct {
		Level   string `json:"level" validate:"required"`
		Correct string `json:"correct" validate:"required"`
		Count   int    `json:"count" validate:"gte=0,lte=20"`
		Seed    int64  `json:"seed"`
	}{}
	if err := parse(c, &payload); err != nil {
		return err
	}
	collection, err := s.collection(payload.Level)
	if err != nil {
		return err
	}
	return c.JSON(quiz.GenerateOptions(quiz.NewRand(payload.Seed), payload.Correct, collection.Names(), payload.Count))
}

func (s *Server) uploadDataset(c *fiber.Ctx) error {
	data, err := fileio.ParseDataset(c.Body())
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if name := c.Query("name"); name != "" {
		data.Name = name
	}
	id, err := s.datasets.Save(data)
	if err != nil {
		return err
	}
	metrics.DatasetsStoredTotal.Inc()
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id, "points": len(data.Data)})
}

func (s *Server) getDataset(c *fiber.Ctx) error {
	data, err := s.datasets.Load(c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"name":        data.Name,
		"description": data.Description,
		"unit":        data.Unit,
		"colorScheme": data.ColorScheme,
		"data":        pointsJSON(data.Data),
	})
}
