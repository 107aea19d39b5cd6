package response

import (
	"time"

	"github.com/mcoot/pairlobby/internal/model"
)

// Health is the response for the health endpoint
type Health struct {
	Status      string `json:"status"`
	Connections int    `json:"connections"`
	Players     int    `json:"players"`
}

// Player represents a registry record in API responses
type Player struct {
	SocketID string    `json:"socket_id"`
	Username string    `json:"username"`
	Room     string    `json:"room"`
	JoinedAt time.Time `json:"joined_at"`
}

// PlayerFromModel converts a model.Player to a response Player
func PlayerFromModel(p *model.Player) Player {
	return Player{
		SocketID: string(p.ConnID),
		Username: p.Username,
		Room:     p.Room,
		JoinedAt: p.JoinedAt,
	}
}
