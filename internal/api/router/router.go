// internal/api/router/router.go
package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/alephzero/api/internal/api/handlers"
)

// Config carries the dependencies of the routing tree.
type Config struct {
	REST   *handlers.RESTHandler
	WS     *handlers.WSHandler
	Logger *slog.Logger
}

// New constructs the chi multiplexer and wires all endpoints.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Browsers are first-class clients; the gateway is expected to sit
	// behind a proxy that owns any stricter policy.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	// REST: plain request/response, bounded.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		r.Get("/api/ls", cfg.REST.Ls)
		r.Post("/api/pub", cfg.REST.Pub)
		r.Post("/api/rpc", cfg.REST.RPC)
		r.Post("/api/write", cfg.REST.Write)
	})

	// WebSocket streams: no timeout middleware here; streams support
	// arbitrarily long quiet periods.
	r.Get("/wsapi/pub", cfg.WS.Pub)
	r.Get("/wsapi/sub", cfg.WS.Sub)
	r.Get("/wsapi/read", cfg.WS.Read)
	r.Get("/wsapi/log", cfg.WS.Log)
	r.Get("/wsapi/prpc", cfg.WS.Prpc)
	r.Get("/wsapi/discover", cfg.WS.Discover)

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})

	return r
}
