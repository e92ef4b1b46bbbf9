package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "atlas_requests_total",
		Help: "Total API requests by route and status",
	}, []string{"route", "status"})
	RenderDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "atlas_render_duration_ms",
		Help:    "Map render duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	}, []string{"map_type"})
	CartogramFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "atlas_cartogram_failures_total",
		Help: "Cartogram generations that fell back to a placeholder",
	}, []string{"mode"})
	CacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "atlas_cache_hits_total",
		Help: "Render cache hits by backend",
	}, []string{"backend"})
	CacheMissesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "atlas_cache_misses_total",
		Help: "Render cache misses by backend",
	}, []string{"backend"})
	DatasetsStoredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "atlas_datasets_stored_total",
		Help: "Datasets written to the store",
	})
)

func init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RenderDurationMs)
	prometheus.MustRegister(CartogramFailuresTotal)
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(CacheMissesTotal)
	prometheus.MustRegister(DatasetsStoredTotal)
}

func Handler() http.Handler { return promhttp.Handler() }

// FastHandler serves Handler on a fasthttp (fiber) route.
func FastHandler() fasthttp.RequestHandler {
	return fasthttpadaptor.NewFastHTTPHandler(Handler())
}
