package ws

import (
	"context"
	"log/slog"

	"github.com/mcoot/pairlobby/internal/model"
)

// RoomLister answers which of a room's members are attached here
type RoomLister interface {
	LocalMembers(ctx context.Context, room string) ([]model.ConnID, error)
}

// Broadcaster encodes events and fans them out through the hub: to one
// connection, to a room's local members, or to everyone
type Broadcaster struct {
	hub    *Hub
	rooms  RoomLister
	logger *slog.Logger
}

// NewBroadcaster creates a new Broadcaster
func NewBroadcaster(hub *Hub, rooms RoomLister, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		hub:    hub,
		rooms:  rooms,
		logger: logger.With(slog.String("component", "ws-broadcaster")),
	}
}

// Send delivers an event to exactly one connection
func (b *Broadcaster) Send(id model.ConnID, event model.EventName, payload any) {
	message, err := Encode(event, payload)
	if err != nil {
		b.logger.Error("ws encode failed", slog.String("error", err.Error()))
		return
	}
	if err := b.hub.Send(id, message); err != nil {
		b.logger.Debug("ws send skipped",
			slog.String("socket_id", string(id)),
			slog.String("event", string(event)),
			slog.String("error", err.Error()))
	}
}

// SendRoom delivers an event to every member of room attached to this process
func (b *Broadcaster) SendRoom(ctx context.Context, room string, event model.EventName, payload any) {
	message, err := Encode(event, payload)
	if err != nil {
		b.logger.Error("ws encode failed", slog.String("error", err.Error()))
		return
	}
	members, err := b.rooms.LocalMembers(ctx, room)
	if err != nil {
		b.logger.Error("ws room lookup failed",
			slog.String("room", room),
			slog.String("error", err.Error()))
		return
	}
	for _, id := range members {
		_ = b.hub.Send(id, message)
	}
}

// SendAll delivers an event to every connection
func (b *Broadcaster) SendAll(event model.EventName, payload any) {
	message, err := Encode(event, payload)
	if err != nil {
		b.logger.Error("ws encode failed", slog.String("error", err.Error()))
		return
	}
	b.hub.Broadcast(message)
}
