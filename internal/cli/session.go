package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

func newSessionCmd() *cobra.Command {
	var (
		room       string
		username   string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "session",
		Short: "Open an interactive lobby session",
		Long: `Connect to the server's websocket, join a room and stream events.

Lines read from stdin are sent to the room as chat messages, except:
  /join <room>        Switch to another room
  /invite <id>        Invite another player
  /uninvite <id>      Withdraw an invitation
  /start <id>         Start a game with another player
  /quit               Disconnect

Press Ctrl+C to disconnect.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format := cfg.Output
			if jsonOutput {
				format = "json"
			}
			out := NewOutput(format, cmd.OutOrStdout(), cmd.ErrOrStderr())

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			// Handle interrupt
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)
			go func() {
				select {
				case <-sigCh:
					cancel()
				case <-ctx.Done():
				}
			}()

			return runSession(ctx, room, username, cmd.InOrStdin(), out)
		},
	}

	cmd.Flags().StringVar(&room, "room", "", "Room to join")
	cmd.Flags().StringVar(&username, "username", "", "Name to join the room under")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output events as JSON lines")
	_ = cmd.MarkFlagRequired("room")
	_ = cmd.MarkFlagRequired("username")

	return cmd
}

// Action is a parsed line of session input
type Action struct {
	Event   string
	Payload any
	Quit    bool
}

// ParseLine turns one input line into the command it stands for.
// A blank line yields an empty Action.
func ParseLine(line, room, username string) (Action, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Action{}, nil
	}
	if !strings.HasPrefix(line, "/") {
		return Action{
			Event:   "send_chat_message",
			Payload: map[string]string{"room": room, "username": username, "message": line},
		}, nil
	}

	fields := strings.Fields(line)
	verb, args := fields[0], fields[1:]
	switch verb {
	case "/quit":
		return Action{Quit: true}, nil
	case "/join":
		if len(args) != 1 {
			return Action{}, fmt.Errorf("usage: /join <room>")
		}
		return Action{
			Event:   "join_room",
			Payload: map[string]string{"room": args[0], "username": username},
		}, nil
	case "/invite", "/uninvite", "/start":
		if len(args) != 1 {
			return Action{}, fmt.Errorf("usage: %s <socket-id>", verb)
		}
		event := strings.TrimPrefix(verb, "/")
		if verb == "/start" {
			event = "game_start"
		}
		return Action{
			Event:   event,
			Payload: map[string]string{"requested_user": args[0]},
		}, nil
	default:
		return Action{}, fmt.Errorf("unknown command %s", verb)
	}
}

func runSession(ctx context.Context, room, username string, in io.Reader, out *Output) error {
	url, err := cfg.SocketURL()
	if err != nil {
		return err
	}

	sock, err := DialSocket(ctx, url)
	if err != nil {
		return err
	}
	defer func() { _ = sock.Close() }()
	out.Print(sock.Hello())

	if err := sock.Send("join_room", map[string]string{"room": room, "username": username}); err != nil {
		return err
	}

	readErr := make(chan error, 1)
	go func() {
		for {
			ev, err := sock.Next()
			if err != nil {
				readErr <- err
				return
			}
			out.Print(ev)
		}
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("connection lost: %w", err)
		case line, ok := <-lines:
			if !ok {
				// keep streaming until interrupted once input runs out
				lines = nil
				continue
			}
			action, err := ParseLine(line, room, username)
			if err != nil {
				out.PrintError(err)
				continue
			}
			if action.Quit {
				return nil
			}
			if action.Event == "" {
				continue
			}
			if action.Event == "join_room" {
				room = action.Payload.(map[string]string)["room"]
			}
			if err := sock.Send(action.Event, action.Payload); err != nil {
				return err
			}
		}
	}
}
