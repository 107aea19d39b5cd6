package model

import (
	"encoding/json"
	"fmt"
)

// CommandName identifies an inbound command
type CommandName string

const (
	CommandJoinRoom        CommandName = "join_room"
	CommandInvite          CommandName = "invite"
	CommandUninvite        CommandName = "uninvite"
	CommandGameStart       CommandName = "game_start"
	CommandSendChatMessage CommandName = "send_chat_message"

	// CommandDisconnect is raised by the transport, never sent by clients
	CommandDisconnect CommandName = "disconnect"
)

// Envelope is the JSON frame exchanged over the websocket in both directions
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Command is one decoded inbound command
type Command interface {
	Name() CommandName
}

// JoinRoomPayload fields are nil when absent or not a string
type JoinRoomPayload struct {
	Room     *string `json:"room"`
	Username *string `json:"username"`
}

// TargetPayload names the connection an invite, uninvite or game_start is aimed at
type TargetPayload struct {
	RequestedUser *string `json:"requested_user"`
}

// ChatPayload is the payload of send_chat_message.
// Message is relayed verbatim, so it keeps any non-null JSON value.
type ChatPayload struct {
	Room     *string         `json:"room"`
	Username *string         `json:"username"`
	Message  json.RawMessage `json:"message"`
}

// JoinRoom asks to add the connection to a room under a username.
// A nil Payload means the client sent none.
type JoinRoom struct{ Payload *JoinRoomPayload }

// Invite asks another room member to play
type Invite struct{ Payload *TargetPayload }

// Uninvite withdraws an invitation
type Uninvite struct{ Payload *TargetPayload }

// GameStart starts a paired session with another room member
type GameStart struct{ Payload *TargetPayload }

// SendChatMessage relays a message to a room
type SendChatMessage struct{ Payload *ChatPayload }

// Disconnect reports that the connection is gone
type Disconnect struct{}

func (JoinRoom) Name() CommandName        { return CommandJoinRoom }
func (Invite) Name() CommandName          { return CommandInvite }
func (Uninvite) Name() CommandName        { return CommandUninvite }
func (GameStart) Name() CommandName       { return CommandGameStart }
func (SendChatMessage) Name() CommandName { return CommandSendChatMessage }
func (Disconnect) Name() CommandName      { return CommandDisconnect }

// DecodeCommand turns an inbound envelope into a Command.
// A missing or null payload decodes to a nil Payload. A payload that is not an
// object decodes with every field absent. Null fields are absent, and so are
// non-string values in fields that must be strings.
func DecodeCommand(env Envelope) (Command, error) {
	fields, present := decodeFields(env.Payload)

	switch CommandName(env.Event) {
	case CommandJoinRoom:
		if !present {
			return JoinRoom{}, nil
		}
		return JoinRoom{Payload: &JoinRoomPayload{
			Room:     fields.str("room"),
			Username: fields.str("username"),
		}}, nil
	case CommandInvite:
		return Invite{Payload: targetPayload(fields, present)}, nil
	case CommandUninvite:
		return Uninvite{Payload: targetPayload(fields, present)}, nil
	case CommandGameStart:
		return GameStart{Payload: targetPayload(fields, present)}, nil
	case CommandSendChatMessage:
		if !present {
			return SendChatMessage{}, nil
		}
		return SendChatMessage{Payload: &ChatPayload{
			Room:     fields.str("room"),
			Username: fields.str("username"),
			Message:  fields.raw("message"),
		}}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, env.Event)
	}
}

func targetPayload(fields payloadFields, present bool) *TargetPayload {
	if !present {
		return nil
	}
	return &TargetPayload{RequestedUser: fields.str("requested_user")}
}

type payloadFields map[string]json.RawMessage

func (f payloadFields) str(key string) *string {
	raw := f.raw(key)
	if raw == nil {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	return &s
}

// raw returns a field's JSON value, or nil when it is missing or null
func (f payloadFields) raw(key string) json.RawMessage {
	raw, ok := f[key]
	if !ok || string(raw) == "null" {
		return nil
	}
	return raw
}

// decodeFields reports whether a payload was sent at all, and its object fields
func decodeFields(raw json.RawMessage) (payloadFields, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, false
	}
	var fields payloadFields
	if err := json.Unmarshal(raw, &fields); err != nil {
		return payloadFields{}, true
	}
	return fields, true
}
