package model

import "encoding/json"

// EventName identifies an outbound event
type EventName string

const (
	// Transport events
	EventConnected EventName = "connected"
	EventLog       EventName = "log"

	// Room events
	EventJoinRoomResponse        EventName = "join_room_response"
	EventPlayerDisconnected      EventName = "player_disconnected"
	EventSendChatMessageResponse EventName = "send_chat_message_response"

	// Handshake events
	EventInviteResponse    EventName = "invite_response"
	EventInvited           EventName = "invited"
	EventUninvited         EventName = "uninvited"
	EventGameStartResponse EventName = "game_start_response"
)

// Result values carried by every command response
const (
	ResultSuccess = "success"
	ResultFail    = "fail"
)

// FailResponse is sent to the requester only when a command fails
type FailResponse struct {
	Result  string `json:"result"`
	Message string `json:"message"`
}

// NewFailResponse creates a FailResponse with the given reason
func NewFailResponse(message string) FailResponse {
	return FailResponse{Result: ResultFail, Message: message}
}

// ConnectedPayload tells a freshly connected client its own identifier
type ConnectedPayload struct {
	SocketID ConnID `json:"socket_id"`
}

// JoinRoomResponse announces one room member to the whole room
type JoinRoomResponse struct {
	Result   string `json:"result"`
	SocketID ConnID `json:"socket_id"`
	Room     string `json:"room"`
	Username string `json:"username"`
	Count    int    `json:"count"`
}

// HandshakeResponse is used for invite_response, invited and uninvited.
// SocketID is the other party from the recipient's point of view;
// RequesterID and TargetID name both sides explicitly.
type HandshakeResponse struct {
	Result      string `json:"result"`
	SocketID    ConnID `json:"socket_id"`
	RequesterID ConnID `json:"requester_id"`
	TargetID    ConnID `json:"target_id"`
}

// GameStartResponse is delivered identically to both participants.
// SocketID always names the target of the game_start command.
type GameStartResponse struct {
	Result      string `json:"result"`
	GameID      string `json:"game_id"`
	SocketID    ConnID `json:"socket_id"`
	RequesterID ConnID `json:"requester_id"`
	TargetID    ConnID `json:"target_id"`
}

// PlayerDisconnected is broadcast to a room when a joined connection leaves
type PlayerDisconnected struct {
	Username string `json:"username"`
	Room     string `json:"room"`
	Count    int    `json:"count"`
	SocketID ConnID `json:"socket_id"`
}

// ChatMessageResponse relays a chat line to every member of a room.
// Message is the sender's JSON value, unchanged.
type ChatMessageResponse struct {
	Result   string          `json:"result"`
	Username string          `json:"username"`
	Room     string          `json:"room"`
	Message  json.RawMessage `json:"message"`
}
