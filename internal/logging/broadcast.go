package logging

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/mcoot/pairlobby/internal/model"
)

// Sink delivers an event to every connected client
type Sink interface {
	SendAll(event model.EventName, payload any)
}

const logBanner = "**** Message from the server:\n"

// BroadcastHandler passes records to the next handler and mirrors each one
// to all clients as a series of log events: a banner line, the message, then
// one line per record attribute.
type BroadcastHandler struct {
	next   slog.Handler
	sink   Sink
	prefix string
}

// NewBroadcastHandler wraps next, mirroring records to sink
func NewBroadcastHandler(next slog.Handler, sink Sink) *BroadcastHandler {
	return &BroadcastHandler{next: next, sink: sink}
}

func (h *BroadcastHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *BroadcastHandler) Handle(ctx context.Context, r slog.Record) error {
	err := h.next.Handle(ctx, r)

	lines := make([]string, 0, r.NumAttrs()+1)
	lines = append(lines, r.Message)
	r.Attrs(func(a slog.Attr) bool {
		lines = append(lines, h.prefix+a.Key+"="+formatValue(a.Value))
		return true
	})

	h.sink.SendAll(model.EventLog, []string{logBanner})
	for _, line := range lines {
		h.sink.SendAll(model.EventLog, []string{"****\t" + line})
	}
	return err
}

func (h *BroadcastHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &BroadcastHandler{next: h.next.WithAttrs(attrs), sink: h.sink, prefix: h.prefix}
}

func (h *BroadcastHandler) WithGroup(name string) slog.Handler {
	return &BroadcastHandler{next: h.next.WithGroup(name), sink: h.sink, prefix: h.prefix + name + "."}
}

// formatValue renders structured values as JSON, everything else as text
func formatValue(v slog.Value) string {
	v = v.Resolve()
	if v.Kind() != slog.KindAny {
		return v.String()
	}
	data, err := json.Marshal(v.Any())
	if err != nil {
		return v.String()
	}
	return string(data)
}
