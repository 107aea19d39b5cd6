package ws

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mcoot/pairlobby/internal/model"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Time between pings. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Largest inbound frame accepted
	maxMessageSize = 64 * 1024

	// Buffer size for outgoing messages
	sendBufferSize = 256
)

// Client is one websocket connection attached to the hub
type Client struct {
	id          model.ConnID
	conn        *websocket.Conn
	send        chan []byte
	connectedAt time.Time
	logger      *slog.Logger
}

// NewClient creates a client for an upgraded connection
func NewClient(id model.ConnID, conn *websocket.Conn, logger *slog.Logger) *Client {
	return &Client{
		id:          id,
		conn:        conn,
		send:        make(chan []byte, sendBufferSize),
		connectedAt: time.Now(),
		logger:      logger.With(slog.String("socket_id", string(id))),
	}
}

// ID returns the connection id
func (c *Client) ID() model.ConnID {
	return c.id
}

// readPump delivers inbound text frames to onMessage until the peer goes
// away or stops answering pings
func (c *Client) readPump(onMessage func(data []byte)) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.logger.Warn("ws read failed", slog.String("error", err.Error()))
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		onMessage(data)
	}
}

// writePump drains the send buffer to the peer and keeps the connection
// alive with pings. It closes the connection when the buffer is closed.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					c.logger.Debug("ws write failed", slog.String("error", err.Error()))
				}
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
