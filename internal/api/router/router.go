package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	httpmiddleware "github.com/wolfman30/dialogflow-bridge/internal/http/middleware"
	"github.com/wolfman30/dialogflow-bridge/internal/webhook"
	"github.com/wolfman30/dialogflow-bridge/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger         *logging.Logger
	Webhook        *webhook.Handler
	ImageHandler   http.Handler
	MetricsHandler http.Handler
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)

	r.Get("/", webhook.Index)
	r.Get("/health", webhook.HealthCheck)
	if cfg.Webhook != nil {
		r.Post("/webhook", cfg.Webhook.Webhook)
	}
	if cfg.ImageHandler != nil {
		r.Method(http.MethodGet, "/static/images/{filename}", cfg.ImageHandler)
	}
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	return r
}
