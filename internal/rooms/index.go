package rooms

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mcoot/pairlobby/internal/model"
	"github.com/mcoot/pairlobby/internal/storage"
)

// Presence reports whether a connection is attached to this process's transport
type Presence interface {
	IsConnected(id model.ConnID) bool
}

// Index is the room membership primitive: it groups connections under room
// names and answers who is in a room. It keeps no state of its own beyond
// what storage holds.
type Index struct {
	storage  storage.Storage
	presence Presence
	logger   *slog.Logger
}

// New creates an Index over storage, using presence for the local view
func New(storage storage.Storage, presence Presence, logger *slog.Logger) *Index {
	return &Index{
		storage:  storage,
		presence: presence,
		logger:   logger.With(slog.String("component", "rooms")),
	}
}

// Join adds a connection to a room. Joining a room twice is a no-op.
func (i *Index) Join(ctx context.Context, room string, id model.ConnID) error {
	return i.storage.AddRoomMember(ctx, room, id)
}

// Leave removes a connection from one room. Leaving a room it is not in is a no-op.
func (i *Index) Leave(ctx context.Context, room string, id model.ConnID) error {
	return i.storage.RemoveRoomMember(ctx, room, id)
}

// LeaveAll removes a connection from every room it is in
func (i *Index) LeaveAll(ctx context.Context, id model.ConnID) error {
	rooms, err := i.storage.GetMemberRooms(ctx, id)
	if err != nil {
		return err
	}

	var errs []error
	for _, room := range rooms {
		if err := i.storage.RemoveRoomMember(ctx, room, id); err != nil {
			errs = append(errs, err)
		}
	}
	if len(rooms) > 0 {
		i.logger.Debug("connection left rooms",
			slog.String("socket_id", string(id)),
			slog.Any("rooms", rooms))
	}
	return errors.Join(errs...)
}

// LocalMembers returns the room's members that are attached to this process,
// in join order
func (i *Index) LocalMembers(ctx context.Context, room string) ([]model.ConnID, error) {
	members, err := i.storage.GetRoomMembers(ctx, room)
	if err != nil {
		return nil, err
	}

	local := members[:0]
	for _, id := range members {
		if i.presence.IsConnected(id) {
			local = append(local, id)
		}
	}
	return local, nil
}

// AllMembers returns the set of every member of the room wherever it is attached
func (i *Index) AllMembers(ctx context.Context, room string) (map[model.ConnID]struct{}, error) {
	members, err := i.storage.GetRoomMembers(ctx, room)
	if err != nil {
		return nil, err
	}

	set := make(map[model.ConnID]struct{}, len(members))
	for _, id := range members {
		set[id] = struct{}{}
	}
	return set, nil
}
