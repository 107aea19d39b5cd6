package session

import (
	"context"
	"log/slog"

	"github.com/mcoot/pairlobby/internal/model"
)

// handshakeKind describes one of the three requester → target commands.
// They share validation and the membership check and differ only in
// wording and in what is emitted on success.
type handshakeKind struct {
	command model.CommandName
	// event carries failures back to the requester
	event model.EventName

	noTarget string
	noRoom   string
	noName   string
	gone     string

	succeed func(c *Controller, requester, target model.ConnID)
}

const actorNotInRoom = "the acting connection is not in a room"

var inviteHandshake = handshakeKind{
	command:  model.CommandInvite,
	event:    model.EventInviteResponse,
	noTarget: "client did not request a valid user to invite to play",
	noRoom:   "the user that was invited is not in a room",
	noName:   "the user that was invited does not have a name registered",
	gone:     "The user that was invited is no longer in the room",
	succeed: func(c *Controller, requester, target model.ConnID) {
		c.emitter.Send(requester, model.EventInviteResponse, handshakeResponse(target, requester, target))
		resp := handshakeResponse(requester, requester, target)
		c.relay(requester, target, model.EventInvited, resp)
		c.logger.Info("invite command succeeded", slog.Any("response", resp))
	},
}

// uninvite answers on the uninvited event for both success and failure
var uninviteHandshake = handshakeKind{
	command:  model.CommandUninvite,
	event:    model.EventUninvited,
	noTarget: "client did not request a valid user to uninvite to play",
	noRoom:   "the user that was uninvited is not in a room",
	noName:   "the user that was uninvited does not have a name registered",
	gone:     "The user that was uninvited is no longer in the room",
	succeed: func(c *Controller, requester, target model.ConnID) {
		c.emitter.Send(requester, model.EventUninvited, handshakeResponse(target, requester, target))
		resp := handshakeResponse(requester, requester, target)
		c.relay(requester, target, model.EventUninvited, resp)
		c.logger.Info("uninvite command succeeded", slog.Any("response", resp))
	},
}

var gameStartHandshake = handshakeKind{
	command:  model.CommandGameStart,
	event:    model.EventGameStartResponse,
	noTarget: "client did not request a valid user to engage in play",
	noRoom:   "the user that was engaged to play is not in a room",
	noName:   "the user that was engaged to play does not have a name registered",
	gone:     "The user that was engaged to play is no longer in the room",
	succeed: func(c *Controller, requester, target model.ConnID) {
		resp := model.GameStartResponse{
			Result:      model.ResultSuccess,
			GameID:      c.newGameID(),
			SocketID:    target,
			RequesterID: requester,
			TargetID:    target,
		}
		c.emitter.Send(requester, model.EventGameStartResponse, resp)
		c.relay(requester, target, model.EventGameStartResponse, resp)
		c.logger.Info("game_start command succeeded", slog.Any("response", resp))
	},
}

func handshakeResponse(socketID, requester, target model.ConnID) model.HandshakeResponse {
	return model.HandshakeResponse{
		Result:      model.ResultSuccess,
		SocketID:    socketID,
		RequesterID: requester,
		TargetID:    target,
	}
}

// relay delivers to the target unless the target is the requester itself
func (c *Controller) relay(requester, target model.ConnID, event model.EventName, payload any) {
	if target == requester {
		return
	}
	c.emitter.Send(target, event, payload)
}

// handshake validates the requester's own record and the target, confirms
// the target is still in the requester's room, then runs the kind's success
// emissions. The room comes from the registry, never from the payload.
func (c *Controller) handshake(ctx context.Context, id model.ConnID, kind handshakeKind, p *model.TargetPayload) {
	if p == nil {
		c.fail(id, kind.command, kind.event, "client did not send a payload")
		return
	}
	if !present(p.RequestedUser) {
		c.fail(id, kind.command, kind.event, kind.noTarget)
		return
	}
	target := model.ConnID(*p.RequestedUser)

	player, ok, err := c.registry.Get(ctx, id)
	if err != nil {
		c.logger.Error("registry lookup failed",
			slog.String("socket_id", string(id)),
			slog.String("error", err.Error()))
	}
	switch {
	case err != nil || !ok:
		c.fail(id, kind.command, kind.event, actorNotInRoom)
		return
	case player.Room == "":
		c.fail(id, kind.command, kind.event, kind.noRoom)
		return
	case player.Username == "":
		c.fail(id, kind.command, kind.event, kind.noName)
		return
	}
	room := player.Room

	suspend(ctx, c, id,
		func(ctx context.Context) (map[model.ConnID]struct{}, error) {
			return c.rooms.AllMembers(ctx, room)
		},
		func(ctx context.Context, members map[model.ConnID]struct{}, err error) {
			if err != nil {
				c.logger.Warn("membership query failed",
					slog.String("room", room),
					slog.String("error", err.Error()))
			}
			if _, here := members[target]; err != nil || !here {
				c.fail(id, kind.command, kind.event, kind.gone)
				return
			}
			kind.succeed(c, id, target)
			c.metrics.CommandHandled(string(kind.command), model.ResultSuccess)
		})
}
