package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/pairlobby/internal/model"
)

type StorageSuite struct {
	suite.Suite
	mini    *miniredis.Miniredis
	storage *Storage
	ctx     context.Context
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, new(StorageSuite))
}

func (s *StorageSuite) SetupTest() {
	s.mini = miniredis.RunT(s.T())

	client := redis.NewClient(&redis.Options{
		Addr: s.mini.Addr(),
	})

	cfg := DefaultConfig()
	cfg.PlayerTTL = time.Hour

	s.storage = NewWithClient(client, cfg)
	s.ctx = context.Background()
}

func (s *StorageSuite) TearDownTest() {
	if s.storage != nil {
		_ = s.storage.Close()
	}
	if s.mini != nil {
		s.mini.Close()
	}
}

// Player tests

func (s *StorageSuite) TestSaveAndGetPlayer() {
	player := &model.Player{
		ConnID:   "conn-1",
		Username: "alice",
		Room:     "lobby",
		JoinedAt: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}

	err := s.storage.SavePlayer(s.ctx, player)
	s.Require().NoError(err)

	retrieved, err := s.storage.GetPlayer(s.ctx, "conn-1")
	s.Require().NoError(err)
	s.Equal(player.ConnID, retrieved.ConnID)
	s.Equal(player.Username, retrieved.Username)
	s.Equal(player.Room, retrieved.Room)
	s.True(player.JoinedAt.Equal(retrieved.JoinedAt))
}

func (s *StorageSuite) TestGetPlayerNotFound() {
	_, err := s.storage.GetPlayer(s.ctx, "nonexistent")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *StorageSuite) TestSavePlayerAppliesTTL() {
	_ = s.storage.SavePlayer(s.ctx, &model.Player{ConnID: "conn-1", Username: "alice", Room: "lobby"})

	ttl := s.mini.TTL(playerKey("conn-1"))
	s.Equal(time.Hour, ttl)
}

func (s *StorageSuite) TestExpiredPlayerLeavesCount() {
	_ = s.storage.SavePlayer(s.ctx, &model.Player{ConnID: "conn-1", Username: "alice", Room: "lobby"})
	s.mini.FastForward(2 * time.Hour)

	_, err := s.storage.GetPlayer(s.ctx, "conn-1")
	s.ErrorIs(err, model.ErrPlayerNotFound)

	count, err := s.storage.CountPlayers(s.ctx)
	s.Require().NoError(err)
	s.Equal(0, count)
}

func (s *StorageSuite) TestDeletePlayer() {
	_ = s.storage.SavePlayer(s.ctx, &model.Player{ConnID: "conn-1", Username: "alice", Room: "lobby"})

	err := s.storage.DeletePlayer(s.ctx, "conn-1")
	s.Require().NoError(err)

	_, err = s.storage.GetPlayer(s.ctx, "conn-1")
	s.ErrorIs(err, model.ErrPlayerNotFound)

	count, _ := s.storage.CountPlayers(s.ctx)
	s.Equal(0, count)
}

func (s *StorageSuite) TestCountPlayersIgnoresOverwrite() {
	_ = s.storage.SavePlayer(s.ctx, &model.Player{ConnID: "conn-1", Username: "alice", Room: "lobby"})
	_ = s.storage.SavePlayer(s.ctx, &model.Player{ConnID: "conn-1", Username: "alice", Room: "den"})
	_ = s.storage.SavePlayer(s.ctx, &model.Player{ConnID: "conn-2", Username: "bob", Room: "den"})

	count, err := s.storage.CountPlayers(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, count)
}

// Room tests

func (s *StorageSuite) TestRoomMembersKeepJoinOrder() {
	_ = s.storage.AddRoomMember(s.ctx, "lobby", "conn-2")
	_ = s.storage.AddRoomMember(s.ctx, "lobby", "conn-1")
	_ = s.storage.AddRoomMember(s.ctx, "lobby", "conn-2")
	_ = s.storage.AddRoomMember(s.ctx, "lobby", "conn-3")

	members, err := s.storage.GetRoomMembers(s.ctx, "lobby")
	s.Require().NoError(err)
	s.Equal([]model.ConnID{"conn-2", "conn-1", "conn-3"}, members)
}

func (s *StorageSuite) TestRemoveRoomMember() {
	_ = s.storage.AddRoomMember(s.ctx, "lobby", "conn-1")
	_ = s.storage.AddRoomMember(s.ctx, "den", "conn-1")

	err := s.storage.RemoveRoomMember(s.ctx, "lobby", "conn-1")
	s.Require().NoError(err)

	members, _ := s.storage.GetRoomMembers(s.ctx, "lobby")
	s.Empty(members)

	rooms, _ := s.storage.GetMemberRooms(s.ctx, "conn-1")
	s.Equal([]string{"den"}, rooms)
}

func (s *StorageSuite) TestKeysUsePrefix() {
	_ = s.storage.SavePlayer(s.ctx, &model.Player{ConnID: "conn-1", Username: "alice", Room: "lobby"})
	_ = s.storage.AddRoomMember(s.ctx, "lobby", "conn-1")

	s.True(s.mini.Exists("pairlobby:player:conn-1"))
	s.True(s.mini.Exists("pairlobby:room:lobby"))
	s.True(s.mini.Exists("pairlobby:idx:member_rooms:conn-1"))
}
