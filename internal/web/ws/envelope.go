package ws

import (
	"encoding/json"
	"fmt"

	"github.com/mcoot/pairlobby/internal/model"
)

type outbound struct {
	Event   model.EventName `json:"event"`
	Payload any             `json:"payload"`
}

// Encode frames an outbound event
func Encode(event model.EventName, payload any) ([]byte, error) {
	data, err := json.Marshal(outbound{Event: event, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event, err)
	}
	return data, nil
}

// Decode parses an inbound frame into a command
func Decode(data []byte) (model.Command, error) {
	var env model.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrMalformedEnvelope, err)
	}
	if env.Event == "" {
		return nil, fmt.Errorf("%w: missing event", model.ErrMalformedEnvelope)
	}
	return model.DecodeCommand(env)
}
