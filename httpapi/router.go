package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/MrEthical07/authcore/middleware"
)

// RouterConfig wires optional extras into NewRouter.
type RouterConfig struct {
	// Metrics, when set, is served at /metrics.
	Metrics http.Handler
	Timeout time.Duration
}

// NewRouter mounts the auth handler under /api/auth with request-id,
// panic recovery, client-ip and timeout middleware. Paths match
// case-insensitively, so /api/Auth/login reaches the login route.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.LowercasePath)
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.ClientIP)
	r.Use(chimw.Timeout(cfg.Timeout))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}
	r.Mount("/api/auth", h.Routes())
	return r
}
