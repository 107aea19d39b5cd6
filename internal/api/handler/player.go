package handler

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/pairlobby/internal/api/response"
	"github.com/mcoot/pairlobby/internal/model"
)

// PlayerLookup reads registry records
type PlayerLookup interface {
	Get(ctx context.Context, id model.ConnID) (*model.Player, bool, error)
}

// PlayerHandler exposes the connection registry read-only
type PlayerHandler struct {
	players PlayerLookup
}

// NewPlayerHandler creates a new player handler
func NewPlayerHandler(players PlayerLookup) *PlayerHandler {
	return &PlayerHandler{players: players}
}

// Get handles GET /api/v1/players/{socket_id}
func (h *PlayerHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["socket_id"]
	if id == "" {
		WriteError(w, NewInvalidRequestError("socket_id is required"))
		return
	}

	player, ok, err := h.players.Get(r.Context(), model.ConnID(id))
	if err != nil {
		WriteError(w, err)
		return
	}
	if !ok {
		WriteError(w, model.ErrPlayerNotFound)
		return
	}

	response.JSON(w, http.StatusOK, response.PlayerFromModel(player))
}
