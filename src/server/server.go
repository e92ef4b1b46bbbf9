package server

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"

	"github.com/go-playground/validator"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/mappichat/regions-atlas/src/cache"
	"github.com/mappichat/regions-atlas/src/database"
	"github.com/mappichat/regions-atlas/src/fileio"
	"github.com/mappichat/regions-atlas/src/metrics"
	"github.com/mappichat/regions-atlas/src/project_types"
	"github.com/mappichat/regions-atlas/src/utils"
)

var validate = validator.New()

var ErrUnknownLevel = errors.New("unknown level")

// Datasets persists uploaded datasets.
type Datasets interface {
	Save(data fileio.VisualizationData) (string, error)
	Load(id string) (fileio.VisualizationData, error)
}

// MemoryDatasets keeps datasets for the life of the process.
type MemoryDatasets struct {
	mu   sync.RWMutex
	data map[string]fileio.VisualizationData
}

func NewMemoryDatasets() *MemoryDatasets {
	return &MemoryDatasets{data: map[string]fileio.VisualizationData{}}
}

func (m *MemoryDatasets) Save(data fileio.VisualizationData) (string, error) {
	id := uuid.NewString()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[id] = data
	return id, nil
}

func (m *MemoryDatasets) Load(id string) (fileio.VisualizationData, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.data[id]
	if !ok {
		return data, fmt.Errorf("%w: %s", database.ErrDatasetNotFound, id)
	}
	return data, nil
}

type Config struct {
	// Collections are read-only after startup.
	Collections map[project_types.Level]project_types.RegionCollection
	Cache       cache.Cache
	Datasets    Datasets
	// KeyFunc guards dataset uploads when set.
	KeyFunc jwt.Keyfunc
	// Logging enables the request logger middleware.
	Logging bool
}

type Server struct {
	collections map[project_types.Level]project_types.RegionCollection
	cache       cache.Cache
	datasets    Datasets
	keyFunc     jwt.Keyfunc
}

func statusFor(err error) int {
	var fe *fiber.Error
	var ve validator.ValidationErrors
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.As(err, &ve), errors.Is(err, fileio.ErrUnknownDatasetFormat):
		return fiber.StatusBadRequest
	case errors.Is(err, database.ErrDatasetNotFound), errors.Is(err, ErrUnknownLevel):
		return fiber.StatusNotFound
	}
	return fiber.StatusInternalServerError
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := statusFor(err)
	if code == fiber.StatusInternalServerError {
		log.Printf("%s %s: %s", c.Method(), c.Path(), err)
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func countRequests(c *fiber.Ctx) error {
	err := c.Next()
	status := c.Response().StatusCode()
	if err != nil {
		status = statusFor(err)
	}
	metrics.RequestsTotal.WithLabelValues(c.Route().Path, strconv.Itoa(status)).Inc()
	return err
}

// New builds the fiber app. It holds no view state between requests; every
// render builds a fresh map.
func New(cfg Config) *fiber.App {
	s := &Server{
		collections: cfg.Collections,
		cache:       cfg.Cache,
		datasets:    cfg.Datasets,
		keyFunc:     cfg.KeyFunc,
	}
	if s.cache == nil {
		s.cache = cache.NewLRU(cache.DefaultSize, cache.DefaultTTL)
	}
	if s.datasets == nil {
		s.datasets = NewMemoryDatasets()
	}
	if s.collections == nil {
		s.collections = map[project_types.Level]project_types.RegionCollection{}
	}

	app := fiber.New(fiber.Config{ErrorHandler: errorHandler})
	if cfg.Logging {
		app.Use(logger.New())
	}
	app.Use(countRequests)

	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("Healthy")
	})

	metricsHandler := metrics.FastHandler()
	app.Get("/metrics", func(c *fiber.Ctx) error {
		metricsHandler(c.Context())
		return nil
	})

	app.Get("/levels/:level", s.levels)
	app.Post("/render", s.render)
	app.Post("/cartogram", s.cartogram)
	app.Post("/hexgrid", s.hexgrid)
	app.Post("/coverage", s.coverage)
	app.Post("/hit", s.hit)
	app.Post("/legend", s.legend)
	app.Post("/quiz", s.quiz)
	app.Post("/quiz/options", s.quizOptions)
	app.Post("/datasets", s.guard, s.uploadDataset)
	app.Get("/datasets/:id", s.getDataset)

	return app
}

func RunServer(cfg Config, port int) {
	app := New(cfg)
	log.Fatal(app.Listen(fmt.Sprintf(":%d", port)))
}

func (s *Server) collection(level string) (*project_types.RegionCollection, error) {
	l, ok := project_types.ParseLevel(level)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLevel, level)
	}
	c, ok := s.collections[l]
	if !ok {
		return nil, fmt.Errorf("%w: %s not loaded", ErrUnknownLevel, level)
	}
	return &c, nil
}

func (s *Server) guard(c *fiber.Ctx) error {
	if s.keyFunc == nil {
		return c.Next()
	}
	if _, err := utils.ParseBearer(c.Get(fiber.HeaderAuthorization), s.keyFunc); err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, err.Error())
	}
	return c.Next()
}

func parse(c *fiber.Ctx, payload interface{}) error {
	if err := c.BodyParser(payload); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return validate.Struct(payload)
}
