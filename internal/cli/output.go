package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	out    io.Writer
	errOut io.Writer
}

// NewOutput creates a new Output formatter
func NewOutput(format string, out, errOut io.Writer) *Output {
	return &Output{format: format, out: out, errOut: errOut}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error
func (o *Output) PrintError(err error) {
	if o.format == "json" {
		errData := map[string]any{
			"error": map[string]string{
				"message": err.Error(),
			},
		}
		data, _ := json.Marshal(errData)
		_, _ = fmt.Fprintln(o.errOut, string(data))
	} else {
		_, _ = fmt.Fprintf(o.errOut, "Error: %s\n", err)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		_, _ = fmt.Fprintln(o.out, string(data))
	} else {
		_, _ = fmt.Fprintln(o.out, msg)
	}
}

func (o *Output) printJSON(data any) {
	// events are streamed one per line
	if ev, ok := data.(Event); ok {
		line, _ := json.Marshal(ev)
		_, _ = fmt.Fprintln(o.out, string(line))
		return
	}
	enc := json.NewEncoder(o.out)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case HealthResult:
		o.printHealthResult(v)
	case Player:
		o.printPlayer(v)
	case Event:
		_, _ = fmt.Fprintln(o.out, FormatEvent(v))
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// HealthResult response type
type HealthResult struct {
	Status      string `json:"status"`
	Connections int    `json:"connections"`
	Players     int    `json:"players"`
}

// Player response type (matches API)
type Player struct {
	SocketID string    `json:"socket_id"`
	Username string    `json:"username"`
	Room     string    `json:"room"`
	JoinedAt time.Time `json:"joined_at"`
}

// Event is one frame received over the websocket
type Event struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// eventFields is the union of every outbound payload's fields
type eventFields struct {
	Result      string          `json:"result"`
	Message     json.RawMessage `json:"message"`
	SocketID    string          `json:"socket_id"`
	RequesterID string          `json:"requester_id"`
	TargetID    string          `json:"target_id"`
	Room        string          `json:"room"`
	Username    string          `json:"username"`
	Count       int             `json:"count"`
	GameID      string          `json:"game_id"`
}

// FormatEvent renders an event as a single human readable line
func FormatEvent(ev Event) string {
	if ev.Event == "log" {
		var lines []string
		if err := json.Unmarshal(ev.Payload, &lines); err == nil {
			return "log: " + strings.Join(lines, " ")
		}
	}

	var f eventFields
	if err := json.Unmarshal(ev.Payload, &f); err != nil {
		return fmt.Sprintf("%s: %s", ev.Event, string(ev.Payload))
	}
	if f.Result == "fail" {
		return fmt.Sprintf("%s failed: %s", ev.Event, messageText(f.Message))
	}

	switch ev.Event {
	case "connected":
		return fmt.Sprintf("Connected as %s", f.SocketID)
	case "join_room_response":
		return fmt.Sprintf("%s (%s) joined %s [%d in room]", f.Username, f.SocketID, f.Room, f.Count)
	case "player_disconnected":
		return fmt.Sprintf("%s (%s) left %s [%d in room]", f.Username, f.SocketID, f.Room, f.Count)
	case "send_chat_message_response":
		return fmt.Sprintf("[%s] %s: %s", f.Room, f.Username, messageText(f.Message))
	case "invite_response":
		return fmt.Sprintf("Invitation sent to %s", f.SocketID)
	case "invited":
		return fmt.Sprintf("Invited by %s", f.SocketID)
	case "uninvited":
		return fmt.Sprintf("Invitation withdrawn between %s and %s", f.RequesterID, f.TargetID)
	case "game_start_response":
		return fmt.Sprintf("Game %s started: %s vs %s", f.GameID, f.RequesterID, f.TargetID)
	default:
		return fmt.Sprintf("%s: %s", ev.Event, string(ev.Payload))
	}
}

// messageText unquotes string messages and prints any other JSON as sent
func messageText(raw json.RawMessage) string {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	return string(raw)
}

func (o *Output) printHealthResult(h HealthResult) {
	_, _ = fmt.Fprintf(o.out, "Status: %s\n", h.Status)
	_, _ = fmt.Fprintf(o.out, "Connections: %d\n", h.Connections)
	_, _ = fmt.Fprintf(o.out, "Players: %d\n", h.Players)
}

func (o *Output) printPlayer(p Player) {
	_, _ = fmt.Fprintf(o.out, "Player: %s (%s)\n", p.Username, p.SocketID)
	_, _ = fmt.Fprintf(o.out, "Room: %s\n", p.Room)
	_, _ = fmt.Fprintf(o.out, "Joined: %s\n", p.JoinedAt.Format(time.RFC3339))
}
