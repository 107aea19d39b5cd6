package testutil

import (
	"context"
	"sync"

	"github.com/mcoot/pairlobby/internal/model"
)

// Emission is one event delivered to one connection
type Emission struct {
	To      model.ConnID
	Event   model.EventName
	Payload any
}

// RoomLister expands a room name into its members
type RoomLister func(ctx context.Context, room string) ([]model.ConnID, error)

// Recorder captures outbound events in delivery order. Room sends are
// expanded to one Emission per member using the lister.
type Recorder struct {
	mu        sync.Mutex
	lister    RoomLister
	emissions []Emission
	broadcast []Emission
}

// NewRecorder creates a Recorder expanding rooms with lister
func NewRecorder(lister RoomLister) *Recorder {
	return &Recorder{lister: lister}
}

func (r *Recorder) Send(id model.ConnID, event model.EventName, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emissions = append(r.emissions, Emission{To: id, Event: event, Payload: payload})
}

func (r *Recorder) SendRoom(ctx context.Context, room string, event model.EventName, payload any) {
	members, err := r.lister(ctx, room)
	if err != nil {
		return
	}
	for _, id := range members {
		r.Send(id, event, payload)
	}
}

func (r *Recorder) SendAll(event model.EventName, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcast = append(r.broadcast, Emission{Event: event, Payload: payload})
}

// All returns every per-connection emission
func (r *Recorder) All() []Emission {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Emission, len(r.emissions))
	copy(out, r.emissions)
	return out
}

// For returns the emissions delivered to id
func (r *Recorder) For(id model.ConnID) []Emission {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Emission
	for _, e := range r.emissions {
		if e.To == id {
			out = append(out, e)
		}
	}
	return out
}

// Payloads returns the payloads of event delivered to id
func (r *Recorder) Payloads(id model.ConnID, event model.EventName) []any {
	var out []any
	for _, e := range r.For(id) {
		if e.Event == event {
			out = append(out, e.Payload)
		}
	}
	return out
}

// Broadcasts returns everything sent with SendAll
func (r *Recorder) Broadcasts() []Emission {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Emission, len(r.broadcast))
	copy(out, r.broadcast)
	return out
}

// Reset forgets everything recorded so far
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emissions = nil
	r.broadcast = nil
}

// Presence is a settable connection presence set
type Presence struct {
	mu  sync.Mutex
	ids map[model.ConnID]bool
}

// NewPresence creates a Presence with the given connections attached
func NewPresence(ids ...model.ConnID) *Presence {
	p := &Presence{ids: make(map[model.ConnID]bool)}
	for _, id := range ids {
		p.ids[id] = true
	}
	return p
}

func (p *Presence) IsConnected(id model.ConnID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ids[id]
}

// Attach marks id as connected
func (p *Presence) Attach(id model.ConnID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids[id] = true
}

// Detach marks id as gone
func (p *Presence) Detach(id model.ConnID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.ids, id)
}
