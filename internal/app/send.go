package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirebot/internal/adapter/wirechat"
	"github.com/vovakirdan/wirebot/internal/backend"
	"github.com/vovakirdan/wirebot/internal/config"
	"github.com/vovakirdan/wirebot/internal/identity"
)

// ErrNotDelivered is returned when the connection ended before the room was joined.
var ErrNotDelivered = errors.New("message not delivered")

// SendOnce connects once, joins room, posts text and disconnects. There
// is no reconnection; a failed connection is returned as is.
func SendOnce(ctx context.Context, cfg *config.Config, logger *zerolog.Logger, room, text string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if room == "" {
		return fmt.Errorf("%w: empty room", wirechat.ErrInvalidIdentifier)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sender := &oneShot{ctx: ctx, done: cancel, room: "#" + room, text: text}
	rt := backend.NewRuntime(logger, backend.WithHandler(sender))

	acfg := adapterConfig(cfg)
	acfg.Rooms = []string{room}
	adapter := wirechat.New(acfg, rt, logger)
	sender.backend = adapter

	_, err := adapter.ServeOnce(ctx)
	if shutdownErr := adapter.Shutdown(); shutdownErr != nil && logger != nil {
		logger.Debug().Err(shutdownErr).Msg("close connection")
	}

	switch {
	case sender.err != nil:
		return sender.err
	case sender.sent:
		return nil
	case err != nil && !errors.Is(err, context.Canceled):
		return err
	default:
		return ErrNotDelivered
	}
}

// oneShot sends a single message once its room is joined, then stops the connection.
type oneShot struct {
	backend.NopHandler

	ctx     context.Context
	done    context.CancelFunc
	backend backend.Backend
	room    string
	text    string

	sent bool
	err  error
}

func (o *oneShot) CallbackRoomJoined(room identity.Room) {
	if room.String() != o.room || o.sent {
		return
	}
	defer o.done()

	msg := o.backend.BuildMessage(o.text)
	msg.To = room
	if err := o.backend.SendMessage(o.ctx, msg); err != nil {
		o.err = fmt.Errorf("send to %s: %w", o.room, err)
		return
	}
	o.sent = true
}
