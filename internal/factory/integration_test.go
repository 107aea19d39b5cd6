package factory

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/pairlobby/internal/model"
	redisstorage "github.com/mcoot/pairlobby/internal/storage/redis"
	logutil "github.com/mcoot/pairlobby/internal/testutil"
)

type frame struct {
	Event   model.EventName `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

type IntegrationSuite struct {
	suite.Suite
	app    *App
	server *httptest.Server
	cancel context.CancelFunc
}

func TestIntegrationSuite(t *testing.T) {
	suite.Run(t, new(IntegrationSuite))
}

func (s *IntegrationSuite) start(app *App) {
	s.app = app
	var ctx context.Context
	ctx, s.cancel = context.WithCancel(context.Background())
	s.app.Start(ctx)
	s.server = httptest.NewServer(s.app.Router(""))
}

func (s *IntegrationSuite) SetupTest() {
	s.start(NewTestAppWithConfig(Config{LogBroadcast: true}).App)
}

func (s *IntegrationSuite) TearDownTest() {
	s.Require().NoError(s.app.Close(context.Background()))
	s.server.Close()
	s.cancel()
}

func (s *IntegrationSuite) dial() (*websocket.Conn, model.ConnID) {
	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/socket"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = conn.Close() })

	var connected model.ConnectedPayload
	s.read(conn, model.EventConnected, &connected)
	return conn, connected.SocketID
}

func (s *IntegrationSuite) send(conn *websocket.Conn, event string, payload any) {
	s.Require().NoError(conn.WriteJSON(map[string]any{"event": event, "payload": payload}))
}

// read skips frames until one carries event
func (s *IntegrationSuite) read(conn *websocket.Conn, event model.EventName, out any) {
	for {
		s.Require().NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))
		var f frame
		s.Require().NoError(conn.ReadJSON(&f))
		if f.Event == event {
			s.Require().NoError(json.Unmarshal(f.Payload, out))
			return
		}
	}
}

func (s *IntegrationSuite) health() map[string]any {
	resp, err := http.Get(s.server.URL + "/api/v1/health")
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var body map[string]any
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func (s *IntegrationSuite) TestJoinInviteStartLeave() {
	a, aID := s.dial()
	b, bID := s.dial()

	s.send(a, "join_room", map[string]string{"room": "lobby", "username": "alice"})
	var joined model.JoinRoomResponse
	s.read(a, model.EventJoinRoomResponse, &joined)
	s.Equal(1, joined.Count)

	s.send(b, "join_room", map[string]string{"room": "lobby", "username": "bob"})
	s.read(b, model.EventJoinRoomResponse, &joined)
	s.read(b, model.EventJoinRoomResponse, &joined)
	s.Equal(bID, joined.SocketID)
	s.Equal(2, joined.Count)

	health := s.health()
	s.Equal("ok", health["status"])
	s.Equal(2.0, health["connections"])
	s.Equal(2.0, health["players"])

	s.send(b, "invite", map[string]string{"requested_user": string(aID)})
	var invited model.HandshakeResponse
	s.read(a, model.EventInvited, &invited)
	s.Equal(bID, invited.SocketID)

	s.send(a, "game_start", map[string]string{"requested_user": string(bID)})
	var startA, startB model.GameStartResponse
	s.read(a, model.EventGameStartResponse, &startA)
	s.read(b, model.EventGameStartResponse, &startB)
	s.Equal(startA, startB)

	s.Require().NoError(a.Close())
	var gone model.PlayerDisconnected
	s.read(b, model.EventPlayerDisconnected, &gone)
	s.Equal(1, gone.Count)
	s.Equal(aID, gone.SocketID)
}

func (s *IntegrationSuite) TestLogEventsReachClients() {
	a, _ := s.dial()

	s.send(a, "send_chat_message", map[string]string{"room": "lobby", "username": "alice"})

	var line []string
	s.read(a, model.EventLog, &line)
	s.Equal([]string{"**** Message from the server:\n"}, line)
	s.read(a, model.EventLog, &line)
	s.Require().Len(line, 1)
	s.True(strings.HasPrefix(line[0], "****\t"))

	var fail model.FailResponse
	s.read(a, model.EventSendChatMessageResponse, &fail)
	s.Equal(model.NewFailResponse("client did not send a valid message"), fail)
}

func (s *IntegrationSuite) TestPlayerEndpoint() {
	a, aID := s.dial()
	s.send(a, "join_room", map[string]string{"room": "lobby", "username": "alice"})
	var joined model.JoinRoomResponse
	s.read(a, model.EventJoinRoomResponse, &joined)

	resp, err := http.Get(s.server.URL + "/api/v1/players/" + string(aID))
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)

	var body map[string]any
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&body))
	s.Equal("alice", body["username"])
	s.Equal("lobby", body["room"])

	missing, err := http.Get(s.server.URL + "/api/v1/players/nobody")
	s.Require().NoError(err)
	defer missing.Body.Close()
	s.Equal(http.StatusNotFound, missing.StatusCode)
}

func (s *IntegrationSuite) TestMetricsEndpoint() {
	a, _ := s.dial()
	s.send(a, "join_room", nil)
	var fail model.FailResponse
	s.read(a, model.EventJoinRoomResponse, &fail)

	resp, err := http.Get(s.server.URL + "/metrics")
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	s.Contains(string(body), `pairlobby_commands_total{command="join_room",result="fail"} 1`)
	s.Contains(string(body), "pairlobby_connections 1")
}

func (s *IntegrationSuite) TestCloseReleasesRegistry() {
	a, _ := s.dial()
	s.send(a, "join_room", map[string]string{"room": "lobby", "username": "alice"})
	var joined model.JoinRoomResponse
	s.read(a, model.EventJoinRoomResponse, &joined)

	s.Require().NoError(s.app.Close(context.Background()))

	count, err := s.app.Registry.Count(context.Background())
	s.Require().NoError(err)
	s.Zero(count)
}

func (s *IntegrationSuite) TestCloseDisconnectsBeforeStoppingExecutor() {
	s.TearDownTest()
	logger, logs := logutil.BufferLogger()
	s.start(NewTestAppWithConfig(Config{Logger: logger}).App)

	for _, name := range []string{"alice", "bob"} {
		conn, _ := s.dial()
		s.send(conn, "join_room", map[string]string{"room": "lobby", "username": name})
		var joined model.JoinRoomResponse
		s.read(conn, model.EventJoinRoomResponse, &joined)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Require().NoError(s.app.Close(ctx))

	commands := s.app.Metrics.Commands()
	s.Equal(2.0, testutil.ToFloat64(commands.WithLabelValues(string(model.CommandDisconnect), model.ResultSuccess)))
	members, err := s.app.Storage.GetRoomMembers(ctx, "lobby")
	s.Require().NoError(err)
	s.Empty(members)
	s.NotContains(logs.String(), "dispatch failed")
}

// The same walk-through against the redis backend
func (s *IntegrationSuite) TestRedisBackend() {
	s.TearDownTest()

	mr := miniredis.RunT(s.T())
	redisCfg := redisstorage.DefaultConfig()
	redisCfg.URL = "redis://" + mr.Addr()
	app, err := New(Config{StorageType: "redis", RedisConfig: &redisCfg})
	s.Require().NoError(err)
	s.start(app)

	a, aID := s.dial()
	s.send(a, "join_room", map[string]string{"room": "lobby", "username": "alice"})
	var joined model.JoinRoomResponse
	s.read(a, model.EventJoinRoomResponse, &joined)
	s.Equal(aID, joined.SocketID)

	s.True(mr.Exists("pairlobby:player:" + string(aID)))
}

func TestNewRejectsBadStorage(t *testing.T) {
	_, err := New(Config{StorageType: "postgres"})
	if err == nil {
		t.Fatal("expected error for unknown storage type")
	}

	_, err = New(Config{StorageType: "redis"})
	if err == nil {
		t.Fatal("expected error for redis without config")
	}
}
