package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/mcoot/pairlobby/internal/model"
	"github.com/mcoot/pairlobby/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu sync.RWMutex

	players     map[model.ConnID]*model.Player
	rooms       map[string][]model.ConnID // join order
	memberRooms map[model.ConnID]map[string]struct{}
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		players:     make(map[model.ConnID]*model.Player),
		rooms:       make(map[string][]model.ConnID),
		memberRooms: make(map[model.ConnID]map[string]struct{}),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Player registry operations

func (s *Storage) SavePlayer(ctx context.Context, player *model.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := *player
	s.players[player.ConnID] = &p
	return nil
}

func (s *Storage) GetPlayer(ctx context.Context, id model.ConnID) (*model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	player, ok := s.players[id]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	p := *player
	return &p, nil
}

func (s *Storage) DeletePlayer(ctx context.Context, id model.ConnID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.players, id)
	return nil
}

func (s *Storage) CountPlayers(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.players), nil
}

// Room membership operations

func (s *Storage) AddRoomMember(ctx context.Context, room string, id model.ConnID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rooms, ok := s.memberRooms[id]
	if !ok {
		rooms = make(map[string]struct{})
		s.memberRooms[id] = rooms
	}
	if _, already := rooms[room]; already {
		return nil
	}
	rooms[room] = struct{}{}
	s.rooms[room] = append(s.rooms[room], id)
	return nil
}

func (s *Storage) RemoveRoomMember(ctx context.Context, room string, id model.ConnID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rooms, ok := s.memberRooms[id]; ok {
		delete(rooms, room)
		if len(rooms) == 0 {
			delete(s.memberRooms, id)
		}
	}

	members := s.rooms[room]
	if i := slices.Index(members, id); i >= 0 {
		members = slices.Delete(members, i, i+1)
	}
	if len(members) == 0 {
		delete(s.rooms, room)
	} else {
		s.rooms[room] = members
	}
	return nil
}

func (s *Storage) GetRoomMembers(ctx context.Context, room string) ([]model.ConnID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.rooms[room]), nil
}

func (s *Storage) GetMemberRooms(ctx context.Context, id model.ConnID) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]string, 0, len(s.memberRooms[id]))
	for room := range s.memberRooms[id] {
		result = append(result, room)
	}
	slices.Sort(result)
	return result, nil
}
