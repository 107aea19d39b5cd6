package storage

import (
	"context"

	"github.com/mcoot/pairlobby/internal/model"
)

// Storage defines the interface for lobby state
type Storage interface {
	// Player registry operations
	SavePlayer(ctx context.Context, player *model.Player) error
	GetPlayer(ctx context.Context, id model.ConnID) (*model.Player, error)
	DeletePlayer(ctx context.Context, id model.ConnID) error
	CountPlayers(ctx context.Context) (int, error)

	// Room membership operations
	AddRoomMember(ctx context.Context, room string, id model.ConnID) error
	RemoveRoomMember(ctx context.Context, room string, id model.ConnID) error
	GetRoomMembers(ctx context.Context, room string) ([]model.ConnID, error)
	GetMemberRooms(ctx context.Context, id model.ConnID) ([]string, error)
}
