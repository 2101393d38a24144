package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Config contains server configuration options.
type Config struct {
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"*"},
	}
}

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(h *Handlers, logger *slog.Logger, cfg Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(AccessLog(logger))
	r.Use(Recover(logger))
	r.Use(CORS(cfg.AllowedOrigins))

	r.Get("/health", h.Health)

	r.Get("/forms/{pipeline}", h.GetForm)
	r.Put("/forms/{pipeline}", h.UpdateForm)
	r.Put("/forms/{pipeline}/image", h.PutImage)
	r.Delete("/forms/{pipeline}/image", h.DeleteImage)
	r.Post("/forms/{pipeline}/submit", h.Submit)

	r.Get("/state", h.GetState)
	r.Delete("/state", h.DismissState)

	return r
}
