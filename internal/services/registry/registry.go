package registry

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/mcoot/pairlobby/internal/dependencies/clock"
	"github.com/mcoot/pairlobby/internal/model"
	"github.com/mcoot/pairlobby/internal/storage"
)

// Registry maps live connections to their player records.
// A record exists for a connection iff it completed join_room and has not
// disconnected. Records written by this Registry are released on Close.
type Registry struct {
	storage storage.Storage
	clock   clock.Clock
	logger  *slog.Logger

	mu    sync.Mutex
	owned map[model.ConnID]struct{}
}

// New creates a Registry over the given storage
func New(storage storage.Storage, clock clock.Clock, logger *slog.Logger) *Registry {
	return &Registry{
		storage: storage,
		clock:   clock,
		logger:  logger.With(slog.String("component", "registry")),
		owned:   make(map[model.ConnID]struct{}),
	}
}

// Put inserts or overwrites the record for a connection
func (r *Registry) Put(ctx context.Context, id model.ConnID, username, room string) error {
	player := &model.Player{
		ConnID:   id,
		Username: username,
		Room:     room,
		JoinedAt: r.clock.Now(),
	}
	if err := r.storage.SavePlayer(ctx, player); err != nil {
		return err
	}

	r.mu.Lock()
	r.owned[id] = struct{}{}
	r.mu.Unlock()
	return nil
}

// Get returns the record for a connection. A missing record is reported as
// (nil, false, nil); only storage failures return an error.
func (r *Registry) Get(ctx context.Context, id model.ConnID) (*model.Player, bool, error) {
	player, err := r.storage.GetPlayer(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrPlayerNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return player, true, nil
}

// Remove deletes the record for a connection, if any
func (r *Registry) Remove(ctx context.Context, id model.ConnID) error {
	if err := r.storage.DeletePlayer(ctx, id); err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.owned, id)
	r.mu.Unlock()
	return nil
}

// Count returns the number of registered players
func (r *Registry) Count(ctx context.Context) (int, error) {
	return r.storage.CountPlayers(ctx)
}

// Close removes every record this Registry still owns.
// Records never outlive the process that created them.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	ids := make([]model.ConnID, 0, len(r.owned))
	for id := range r.owned {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	var errs []error
	for _, id := range ids {
		if err := r.Remove(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	if len(ids) > 0 {
		r.logger.Info("registry released players", slog.Int("count", len(ids)))
	}
	return errors.Join(errs...)
}
