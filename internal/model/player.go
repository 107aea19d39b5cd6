package model

import "time"

// ConnID identifies one live transport connection.
// Assigned at connect time and never reused while the connection is live.
type ConnID string

// Player is the registry record of a connection that has joined a room
type Player struct {
	ConnID   ConnID    `json:"socket_id"`
	Username string    `json:"username"`
	Room     string    `json:"room"`
	JoinedAt time.Time `json:"joined_at"`
}
