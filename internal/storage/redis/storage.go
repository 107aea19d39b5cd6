package redis

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/pairlobby/internal/model"
	"github.com/mcoot/pairlobby/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Storage{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Player registry operations

func (s *Storage) SavePlayer(ctx context.Context, player *model.Player) error {
	data, err := json.Marshal(player)
	if err != nil {
		return err
	}

	// Use pipeline for atomic save + index update
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, playerKey(player.ConnID), data, s.cfg.PlayerTTL)
	pipe.SAdd(ctx, playersIndexKey(), string(player.ConnID))
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) GetPlayer(ctx context.Context, id model.ConnID) (*model.Player, error) {
	data, err := s.client.Get(ctx, playerKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// The record may have expired; keep the count honest
			_ = s.client.SRem(ctx, playersIndexKey(), string(id)).Err()
			return nil, model.ErrPlayerNotFound
		}
		return nil, err
	}

	var player model.Player
	if err := json.Unmarshal(data, &player); err != nil {
		return nil, err
	}
	return &player, nil
}

func (s *Storage) DeletePlayer(ctx context.Context, id model.ConnID) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, playerKey(id))
	pipe.SRem(ctx, playersIndexKey(), string(id))
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Storage) CountPlayers(ctx context.Context) (int, error) {
	n, err := s.client.SCard(ctx, playersIndexKey()).Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Room membership operations

func (s *Storage) AddRoomMember(ctx context.Context, room string, id model.ConnID) error {
	seq, err := s.client.Incr(ctx, joinSeqKey()).Result()
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	// NX keeps the original join position on repeated joins
	pipe.ZAddNX(ctx, roomKey(room), redis.Z{Score: float64(seq), Member: string(id)})
	pipe.SAdd(ctx, memberRoomsKey(id), room)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) RemoveRoomMember(ctx context.Context, room string, id model.ConnID) error {
	pipe := s.client.TxPipeline()
	pipe.ZRem(ctx, roomKey(room), string(id))
	pipe.SRem(ctx, memberRoomsKey(id), room)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Storage) GetRoomMembers(ctx context.Context, room string) ([]model.ConnID, error) {
	ids, err := s.client.ZRange(ctx, roomKey(room), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	members := make([]model.ConnID, len(ids))
	for i, id := range ids {
		members[i] = model.ConnID(id)
	}
	return members, nil
}

func (s *Storage) GetMemberRooms(ctx context.Context, id model.ConnID) ([]string, error) {
	rooms, err := s.client.SMembers(ctx, memberRoomsKey(id)).Result()
	if err != nil {
		return nil, err
	}
	slices.Sort(rooms)
	return rooms, nil
}
