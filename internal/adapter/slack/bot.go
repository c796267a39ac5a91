package slack

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	slackapi "github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"

	"assistant-bot/internal/domain"
	"assistant-bot/internal/logger"
	"assistant-bot/internal/usecase/chat"
)

// Bot receives assistant events over Socket Mode and hands them to the
// chat service, one goroutine per event.
type Bot struct {
	socket   *socketmode.Client
	platform *Platform
	chat     *chat.Service
	wg       sync.WaitGroup
}

func NewBot(api *slackapi.Client, platform *Platform, chatSvc *chat.Service) *Bot {
	return &Bot{
		socket:   socketmode.New(api),
		platform: platform,
		chat:     chatSvc,
	}
}

func (b *Bot) Run(ctx context.Context) error {
	ctx = logger.WithFields(ctx, logger.Fields{Platform: "slack"})

	if err := b.platform.Identify(ctx); err != nil {
		return err
	}
	slog.InfoContext(ctx, "slack bot identified", "bot_user_id", b.platform.BotUserID())

	socketErr := make(chan error, 1)
	go func() {
		socketErr <- b.socket.RunContext(ctx)
	}()
	defer b.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-socketErr:
			return fmt.Errorf("socket mode stopped: %w", err)
		case evt, ok := <-b.socket.Events:
			if !ok {
				return nil
			}
			b.handleSocketEvent(ctx, evt)
		}
	}
}

func (b *Bot) handleSocketEvent(ctx context.Context, evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeConnecting:
		slog.InfoContext(ctx, "connecting to slack socket mode")
	case socketmode.EventTypeConnected:
		slog.InfoContext(ctx, "connected to slack socket mode")
	case socketmode.EventTypeConnectionError:
		slog.WarnContext(ctx, "slack socket mode connection error", "data", evt.Data)

	case socketmode.EventTypeEventsAPI:
		if evt.Request == nil {
			return
		}
		b.socket.Ack(*evt.Request)

		chatEvt, ok, err := translateEvent(evt.Request.Payload, b.platform.BotUserID())
		if err != nil {
			slog.WarnContext(ctx, "failed to decode slack event", "error", err)
			return
		}
		if ok {
			b.dispatch(ctx, chatEvt)
		}

	case socketmode.EventTypeInteractive:
		if evt.Request != nil {
			b.socket.Ack(*evt.Request)
		}
		callback, ok := evt.Data.(slackapi.InteractionCallback)
		if !ok {
			return
		}
		for _, chatEvt := range translateFeedback(callback) {
			b.dispatch(ctx, chatEvt)
		}
	}
}

func (b *Bot) dispatch(ctx context.Context, evt chat.Event) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.chat.Dispatch(ctx, evt)
	}()
}

// translateFeedback picks the feedback button presses out of a block
// actions callback.
func translateFeedback(callback slackapi.InteractionCallback) []chat.Event {
	if callback.Type != slackapi.InteractionTypeBlockActions {
		return nil
	}

	var events []chat.Event
	for _, action := range callback.ActionCallback.BlockActions {
		if action == nil || action.BlockID != FeedbackBlockID {
			continue
		}
		events = append(events, chat.Event{
			Kind: chat.EventFeedback,
			Thread: domain.ThreadContext{
				ChannelID: callback.Channel.ID,
				ThreadTS:  callback.Message.ThreadTimestamp,
				UserID:    callback.User.ID,
				TeamID:    callback.Team.ID,
			},
			Text: action.Value,
		})
	}
	return events
}
