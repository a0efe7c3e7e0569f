package site

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the site. Each App gets its own
// registry. A nil *Metrics records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	LoginAttempts    *prometheus.CounterVec
	ImageSizeFetches *prometheus.CounterVec
	PostCacheLoads   prometheus.Counter
	PostsSaved       *prometheus.CounterVec
}

// NewMetrics creates the collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "site_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "site_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		LoginAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "site_login_attempts_total",
			Help: "Admin login attempts by result.",
		}, []string{"result"}), // ok, denied, captcha, limited
		ImageSizeFetches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "site_image_size_fetches_total",
			Help: "Remote image size lookups by result.",
		}, []string{"result"}),
		PostCacheLoads: f.NewCounter(prometheus.CounterOpts{
			Name: "site_post_cache_loads_total",
			Help: "Reloads of the post cache from the database.",
		}),
		PostsSaved: f.NewCounterVec(prometheus.CounterOpts{
			Name: "site_posts_saved_total",
			Help: "Posts written by the editor, by action.",
		}, []string{"action"}), // create, edit, delete
	}
}

// Middleware records request counts and latency by route pattern.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			m.RequestsTotal.WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).Inc()
			m.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
}

func (m *Metrics) login(result string) {
	if m == nil {
		return
	}
	m.LoginAttempts.WithLabelValues(result).Inc()
}

func (m *Metrics) imageFetch(result string) {
	if m == nil {
		return
	}
	m.ImageSizeFetches.WithLabelValues(result).Inc()
}

func (m *Metrics) cacheLoad() {
	if m == nil {
		return
	}
	m.PostCacheLoads.Inc()
}

func (m *Metrics) postSaved(action string) {
	if m == nil {
		return
	}
	m.PostsSaved.WithLabelValues(action).Inc()
}
