package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/pairlobby/internal/factory"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    Action
		wantErr string
	}{
		{name: "blank", line: "   ", want: Action{}},
		{
			name: "chat",
			line: "hello there ",
			want: Action{Event: "send_chat_message", Payload: map[string]string{
				"room": "lobby", "username": "alice", "message": "hello there",
			}},
		},
		{name: "quit", line: "/quit", want: Action{Quit: true}},
		{
			name: "join",
			line: "/join other",
			want: Action{Event: "join_room", Payload: map[string]string{"room": "other", "username": "alice"}},
		},
		{
			name: "invite",
			line: "/invite abc",
			want: Action{Event: "invite", Payload: map[string]string{"requested_user": "abc"}},
		},
		{
			name: "uninvite",
			line: "/uninvite abc",
			want: Action{Event: "uninvite", Payload: map[string]string{"requested_user": "abc"}},
		},
		{
			name: "start",
			line: "/start abc",
			want: Action{Event: "game_start", Payload: map[string]string{"requested_user": "abc"}},
		},
		{name: "invite without target", line: "/invite", wantErr: "usage: /invite <socket-id>"},
		{name: "join with extra args", line: "/join a b", wantErr: "usage: /join <room>"},
		{name: "unknown", line: "/dance", wantErr: "unknown command /dance"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLine(tt.line, "lobby", "alice")
			if tt.wantErr != "" {
				assert.EqualError(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatEvent(t *testing.T) {
	tests := []struct {
		event   string
		payload string
		want    string
	}{
		{"connected", `{"socket_id":"a1"}`, "Connected as a1"},
		{"join_room_response", `{"result":"success","socket_id":"a1","room":"lobby","username":"alice","count":2}`,
			"alice (a1) joined lobby [2 in room]"},
		{"join_room_response", `{"result":"fail","message":"client did not send a payload"}`,
			"join_room_response failed: client did not send a payload"},
		{"player_disconnected", `{"socket_id":"a1","room":"lobby","username":"alice","count":0}`,
			"alice (a1) left lobby [0 in room]"},
		{"send_chat_message_response", `{"result":"success","room":"lobby","username":"alice","message":"hi"}`,
			"[lobby] alice: hi"},
		{"send_chat_message_response", `{"result":"success","room":"lobby","username":"alice","message":{"text":"hi"}}`,
			`[lobby] alice: {"text":"hi"}`},
		{"invite_response", `{"result":"success","socket_id":"b2"}`, "Invitation sent to b2"},
		{"invited", `{"result":"success","socket_id":"a1"}`, "Invited by a1"},
		{"uninvited", `{"result":"success","socket_id":"a1","requester_id":"a1","target_id":"b2"}`,
			"Invitation withdrawn between a1 and b2"},
		{"game_start_response", `{"result":"success","game_id":"2a","requester_id":"a1","target_id":"b2"}`,
			"Game 2a started: a1 vs b2"},
		{"log", `["****\tServer","*** hi"]`, "log: ****\tServer *** hi"},
		{"mystery", `{"x":1}`, `mystery: {"x":1}`},
		{"mystery", `[1]`, `mystery: [1]`},
	}

	for _, tt := range tests {
		t.Run(tt.event, func(t *testing.T) {
			got := FormatEvent(Event{Event: tt.event, Payload: json.RawMessage(tt.payload)})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSocketURL(t *testing.T) {
	tests := []struct {
		server  string
		want    string
		wantErr bool
	}{
		{server: "http://localhost:8080", want: "ws://localhost:8080/socket"},
		{server: "https://lobby.example.com/", want: "wss://lobby.example.com/socket"},
		{server: "http://example.com/prefix", want: "ws://example.com/prefix/socket"},
		{server: "ftp://example.com", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.server, func(t *testing.T) {
			got, err := (&Config{ServerURL: tt.server}).SocketURL()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// syncBuffer is read by the test while the command writes to it
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func startServer(t *testing.T) {
	t.Helper()
	app := factory.NewTestApp()
	ctx, cancel := context.WithCancel(context.Background())
	app.Start(ctx)
	server := httptest.NewServer(app.Router(""))
	t.Setenv("LOBBYCTL_SERVER", server.URL)
	t.Cleanup(func() {
		_ = app.Close(context.Background())
		server.Close()
		cancel()
	})
}

func newTestCmd(stdin io.Reader, stdout, stderr io.Writer, args ...string) *cobra.Command {
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return cmd
}

func execute(t *testing.T, stdin io.Reader, args ...string) (stdout, stderr *syncBuffer, err error) {
	t.Helper()
	stdout, stderr = &syncBuffer{}, &syncBuffer{}
	err = newTestCmd(stdin, stdout, stderr, args...).Execute()
	return stdout, stderr, err
}

// startSession runs a session command in the background, fed by the returned pipe
func startSession(t *testing.T, args ...string) (*syncBuffer, *io.PipeWriter, <-chan error) {
	t.Helper()
	stdinR, stdinW := io.Pipe()
	t.Cleanup(func() { _ = stdinW.Close() })
	stdout := &syncBuffer{}
	cmd := newTestCmd(stdinR, stdout, &syncBuffer{}, append([]string{"session"}, args...)...)

	done := make(chan error, 1)
	go func() { done <- cmd.Execute() }()
	return stdout, stdinW, done
}

func waitDone(t *testing.T, done <-chan error) {
	t.Helper()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("session did not exit after /quit")
	}
}

func TestHealthCommand(t *testing.T) {
	startServer(t)

	stdout, _, err := execute(t, nil, "health")
	require.NoError(t, err)
	assert.Equal(t, "Status: ok\nConnections: 0\nPlayers: 0\n", stdout.String())

	stdout, _, err = execute(t, nil, "health", "-o", "json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok","connections":0,"players":0}`, stdout.String())
}

func TestPlayerGetUnknown(t *testing.T) {
	startServer(t)

	_, stderr, err := execute(t, nil, "player", "get", "nobody")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PLAYER_NOT_FOUND")
	assert.Contains(t, stderr.String(), "Player not found (PLAYER_NOT_FOUND)")
}

func TestHealthUnreachable(t *testing.T) {
	_, _, err := execute(t, nil, "--server", "http://127.0.0.1:1", "health")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request failed")
}

func TestSessionRequiresRoomAndUsername(t *testing.T) {
	startServer(t)

	_, _, err := execute(t, strings.NewReader(""), "session", "--room", "lobby")
	assert.ErrorContains(t, err, "username")
}

func TestSessionCommand(t *testing.T) {
	startServer(t)
	stdout, stdin, done := startSession(t, "--room", "lobby", "--username", "alice")

	contains := func(s string) func() bool {
		return func() bool { return strings.Contains(stdout.String(), s) }
	}

	require.Eventually(t, contains("Connected as "), 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, contains(") joined lobby [1 in room]"), 2*time.Second, 10*time.Millisecond)

	_, err := io.WriteString(stdin, "hello there\n")
	require.NoError(t, err)
	require.Eventually(t, contains("[lobby] alice: hello there"), 2*time.Second, 10*time.Millisecond)

	_, err = io.WriteString(stdin, "/invite ghost\n")
	require.NoError(t, err)
	require.Eventually(t,
		contains("invite_response failed: The user that was invited is no longer in the room"),
		2*time.Second, 10*time.Millisecond)

	_, err = io.WriteString(stdin, "/quit\n")
	require.NoError(t, err)
	waitDone(t, done)
}

func TestSessionJSONOutput(t *testing.T) {
	startServer(t)
	stdout, stdin, done := startSession(t, "--json", "--room", "lobby", "--username", "bob")

	require.Eventually(t, func() bool {
		return strings.Contains(stdout.String(), `"event":"join_room_response"`)
	}, 2*time.Second, 10*time.Millisecond)

	_, err := io.WriteString(stdin, "/quit\n")
	require.NoError(t, err)
	waitDone(t, done)

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	require.GreaterOrEqual(t, len(lines), 2)
	var first Event
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "connected", first.Event)
}
