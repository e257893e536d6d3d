package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/capitalize-ai/medical-assistant/internal/middleware"
	"github.com/capitalize-ai/medical-assistant/pkg/logger"
)

// RouterConfig carries everything the HTTP surface needs.
type RouterConfig struct {
	Sessions *SessionHandler
	Messages *MessageHandler
	Stream   *StreamHandler
	Health   *HealthHandler
	Logger   *logger.Logger

	AllowedOrigins    []string
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// NewRouter mounts every endpoint on a chi router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins...))

	r.Get("/health", cfg.Health.Health)
	r.Get("/ready", cfg.Health.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.RateLimitRequests > 0 {
			r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
		}

		r.Get("/quick-actions", ListQuickActions)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", cfg.Sessions.Create)

			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", cfg.Sessions.Get)
				r.Delete("/", cfg.Sessions.Delete)
				r.Get("/turns", cfg.Sessions.Turns)
				r.Get("/stream", cfg.Stream.Stream)

				r.With(sessionLimit(cfg)).Post("/messages", cfg.Messages.Send)
			})
		})
	})

	return r
}

func sessionLimit(cfg RouterConfig) func(http.Handler) http.Handler {
	if cfg.RateLimitRequests <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return middleware.SessionRateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow)
}
