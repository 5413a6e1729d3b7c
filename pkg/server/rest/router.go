package rest

import (
	"net/http"

	"lintang/runpathx/pkg/logger"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type RouterOptions struct {
	CorsOrigins    []string
	NearbyRadiusKm float64
	Profiler       bool
	Logger         *zap.Logger
}

// NewRouter wires the run api, /metrics and the middleware stack onto a chi router.
func NewRouter(svc RunService, reg *prometheus.Registry, opts RouterOptions) http.Handler {
	m := NewMetrics(reg)
	log := logger.OrNop(opts.Logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(ZapLogger(log))
	r.Use(PromeHttpMiddleware(m)) // prometheus http middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CorsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	if opts.Profiler {
		r.Mount("/debug", middleware.Profiler())
	}

	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	RunRouter(r, svc, m, opts.NearbyRadiusKm)
	return r
}
