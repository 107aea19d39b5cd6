package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/mcoot/pairlobby/internal/dependencies/mocks"
	"github.com/mcoot/pairlobby/internal/metrics"
	"github.com/mcoot/pairlobby/internal/model"
	"github.com/mcoot/pairlobby/internal/rooms"
	"github.com/mcoot/pairlobby/internal/services/registry"
	"github.com/mcoot/pairlobby/internal/storage/memory"
	"github.com/mcoot/pairlobby/internal/testutil"
)

// harness wires a running Controller over in-memory storage and a recording
// emitter, playing the transport's part for connect and disconnect.
type harness struct {
	storage    *memory.Storage
	presence   *testutil.Presence
	rooms      *rooms.Index
	registry   *registry.Registry
	recorder   *testutil.Recorder
	random     *mocks.MockRandom
	controller *Controller

	ctx    context.Context
	cancel context.CancelFunc
}

func newHarness(wrap func(Membership) Membership, cfg Config) *harness {
	logger := testutil.NopLogger()
	h := &harness{
		storage:  memory.New(),
		presence: testutil.NewPresence(),
		random:   mocks.NewMockRandom(),
	}
	h.rooms = rooms.New(h.storage, h.presence, logger)
	h.registry = registry.New(h.storage, mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)), logger)
	h.recorder = testutil.NewRecorder(h.rooms.LocalMembers)

	var membership Membership = h.rooms
	if wrap != nil {
		membership = wrap(membership)
	}
	h.controller = NewController(h.registry, membership, h.recorder, h.random, metrics.New(), cfg, logger)

	h.ctx, h.cancel = context.WithCancel(context.Background())
	go h.controller.Run(h.ctx)
	return h
}

func (h *harness) stop() {
	h.cancel()
	<-h.controller.stopped
}

// barrier waits until every task queued so far has run
func (h *harness) barrier() error {
	ctx, cancel := context.WithTimeout(h.ctx, 2*time.Second)
	defer cancel()
	if err := h.controller.Drain(ctx); err != nil {
		return fmt.Errorf("executor did not drain: %w", err)
	}
	return nil
}

// block parks the executor on a task until the returned func is called,
// so that later submissions queue up behind it
func (h *harness) block() (func(), error) {
	started, release := make(chan struct{}), make(chan struct{})
	if err := h.controller.submit(h.ctx, func(context.Context) {
		close(started)
		<-release
	}); err != nil {
		return nil, err
	}
	<-started
	return func() { close(release) }, nil
}

// settle waits until no membership query is outstanding and the queue is empty
func (h *harness) settle() error {
	deadline := time.Now().Add(2 * time.Second)
	for {
		if err := h.barrier(); err != nil {
			return err
		}
		if h.controller.PendingQueries() == 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return errors.New("membership queries did not settle")
		}
		time.Sleep(time.Millisecond)
	}
}

func (h *harness) connect(id model.ConnID) error {
	h.presence.Attach(id)
	return h.controller.Connect(h.ctx, id)
}

func (h *harness) dispatch(id model.ConnID, cmd model.Command) error {
	return h.controller.Dispatch(h.ctx, id, cmd)
}

// disconnect mirrors the transport: detach, then report
func (h *harness) disconnect(id model.ConnID) error {
	h.presence.Detach(id)
	return h.controller.Dispatch(h.ctx, id, model.Disconnect{})
}

// roomsListing returns every room in names whose group still lists id
func (h *harness) roomsListing(id model.ConnID, names ...string) ([]string, error) {
	var found []string
	for _, room := range names {
		members, err := h.storage.GetRoomMembers(h.ctx, room)
		if err != nil {
			return nil, err
		}
		if slices.Contains(members, id) {
			found = append(found, room)
		}
	}
	return found, nil
}

func (h *harness) join(id model.ConnID, room, username string) error {
	return h.dispatch(id, model.JoinRoom{Payload: &model.JoinRoomPayload{
		Room:     &room,
		Username: &username,
	}})
}

func (h *harness) sessionCount() (int, error) {
	var n int
	done := make(chan struct{})
	if err := h.controller.submit(h.ctx, func(context.Context) {
		n = len(h.controller.sessions)
		close(done)
	}); err != nil {
		return 0, err
	}
	<-done
	return n, nil
}

func strp(s string) *string {
	return &s
}

// text encodes s as the JSON string a client would send
func text(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}

func target(id model.ConnID) *model.TargetPayload {
	return &model.TargetPayload{RequestedUser: strp(string(id))}
}

// gatedMembership holds every membership query until released
type gatedMembership struct {
	Membership
	entered chan struct{}
	release chan struct{}
}

func newGatedMembership(inner Membership) *gatedMembership {
	return &gatedMembership{
		Membership: inner,
		entered:    make(chan struct{}, 16),
		release:    make(chan struct{}, 16),
	}
}

func (g *gatedMembership) wait(ctx context.Context) error {
	g.entered <- struct{}{}
	select {
	case <-g.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *gatedMembership) LocalMembers(ctx context.Context, room string) ([]model.ConnID, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}
	return g.Membership.LocalMembers(ctx, room)
}

func (g *gatedMembership) AllMembers(ctx context.Context, room string) (map[model.ConnID]struct{}, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}
	return g.Membership.AllMembers(ctx, room)
}
