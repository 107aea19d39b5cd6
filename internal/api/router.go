package api

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/gorilla/mux"

	"github.com/mcoot/pairlobby/internal/api/handler"
	"github.com/mcoot/pairlobby/internal/api/middleware"
	basemw "github.com/mcoot/pairlobby/internal/middleware"
)

// Registry is the part of the connection registry the HTTP API reads
type Registry interface {
	handler.PlayerCounter
	handler.PlayerLookup
}

// RouterConfig holds configuration for the router
type RouterConfig struct {
	Logger *slog.Logger

	// WebSocket serves the lobby protocol on /socket
	WebSocket   http.Handler
	Connections handler.ConnectionCounter
	Registry    Registry

	// Metrics serves /metrics when set
	Metrics http.Handler

	// StaticDir is served at / when it exists
	StaticDir string
}

// NewRouter creates the HTTP router: websocket endpoint, JSON API, metrics
// and static client files
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	healthHandler := handler.NewHealthHandler(cfg.Connections, cfg.Registry, cfg.Logger)
	playerHandler := handler.NewPlayerHandler(cfg.Registry)

	loggingMiddleware := basemw.Logging(cfg.Logger)
	recoveryMiddleware := middleware.Recovery(cfg.Logger)

	r.Handle("/socket", basemw.Recovery(cfg.Logger, basemw.DefaultPanicHandler)(cfg.WebSocket)).
		Methods(http.MethodGet)

	// API subrouter with common middleware
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(recoveryMiddleware)
	api.Use(loggingMiddleware)

	api.HandleFunc("/health", healthHandler.Get).Methods(http.MethodGet)
	api.HandleFunc("/players/{socket_id}", playerHandler.Get).Methods(http.MethodGet)

	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics).Methods(http.MethodGet)
	}

	if cfg.StaticDir != "" {
		if info, err := os.Stat(cfg.StaticDir); err == nil && info.IsDir() {
			r.PathPrefix("/").Handler(loggingMiddleware(http.FileServer(http.Dir(cfg.StaticDir))))
		} else {
			cfg.Logger.Warn("static directory not found, not serving client files",
				slog.String("dir", cfg.StaticDir))
		}
	}

	return r
}
