package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/mcoot/pairlobby/internal/api/response"
)

// ConnectionCounter reports how many websocket clients are attached
type ConnectionCounter interface {
	ClientCount() int
}

// PlayerCounter reports how many players are registered
type PlayerCounter interface {
	Count(ctx context.Context) (int, error)
}

// HealthHandler reports liveness along with connection and player counts
type HealthHandler struct {
	connections ConnectionCounter
	players     PlayerCounter
	logger      *slog.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(connections ConnectionCounter, players PlayerCounter, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		connections: connections,
		players:     players,
		logger:      logger,
	}
}

// Get handles GET /api/v1/health
func (h *HealthHandler) Get(w http.ResponseWriter, r *http.Request) {
	players, err := h.players.Count(r.Context())
	if err != nil {
		h.logger.Error("health player count failed", slog.String("error", err.Error()))
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.Health{
		Status:      "ok",
		Connections: h.connections.ClientCount(),
		Players:     players,
	})
}
