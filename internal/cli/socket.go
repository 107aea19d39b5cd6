package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const socketWriteWait = 10 * time.Second

// Socket is a websocket connection to the lobby server
type Socket struct {
	conn    *websocket.Conn
	id      string
	hello   Event
	writeMu sync.Mutex
}

// DialSocket connects to url and waits for the server to announce the socket id
func DialSocket(ctx context.Context, url string) (*Socket, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("connection failed: %w", err)
	}

	s := &Socket{conn: conn}
	hello, err := s.Next()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if hello.Event != "connected" {
		_ = conn.Close()
		return nil, fmt.Errorf("unexpected first event %q", hello.Event)
	}

	var payload struct {
		SocketID string `json:"socket_id"`
	}
	if err := json.Unmarshal(hello.Payload, &payload); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to parse connected event: %w", err)
	}
	s.id = payload.SocketID
	s.hello = hello
	return s, nil
}

// ID returns the socket id the server assigned
func (s *Socket) ID() string {
	return s.id
}

// Hello returns the connected event received during the dial
func (s *Socket) Hello() Event {
	return s.hello
}

// Send writes one command frame
func (s *Socket) Send(event string, payload any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_ = s.conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
	if err := s.conn.WriteJSON(Event{Event: event, Payload: mustMarshal(payload)}); err != nil {
		return fmt.Errorf("send %s: %w", event, err)
	}
	return nil
}

// Next blocks until the next event arrives
func (s *Socket) Next() (Event, error) {
	var ev Event
	if err := s.conn.ReadJSON(&ev); err != nil {
		return Event{}, err
	}
	return ev, nil
}

// Close says goodbye to the server and releases the connection
func (s *Socket) Close() error {
	s.writeMu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	s.writeMu.Unlock()
	return s.conn.Close()
}

func mustMarshal(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
