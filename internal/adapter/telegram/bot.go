package telegram

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"assistant-bot/internal/config"
	"assistant-bot/internal/logger"
	"assistant-bot/internal/usecase/chat"
)

const commandStart = "start"

// Dispatcher handles one event to completion.
type Dispatcher interface {
	Dispatch(ctx context.Context, evt chat.Event)
}

type Bot struct {
	api      *tgbotapi.BotAPI
	platform *Platform
	cfg      config.Config
	chat     Dispatcher
	wg       sync.WaitGroup

	mu sync.Mutex
	// pending events per chat; a key is present while that chat has a turn running
	queues map[string][]chat.Event
}

func NewBot(api *tgbotapi.BotAPI, platform *Platform, dispatcher Dispatcher, cfg config.Config) *Bot {
	return &Bot{
		api:      api,
		platform: platform,
		cfg:      cfg,
		chat:     dispatcher,
		queues:   make(map[string][]chat.Event),
	}
}

func (b *Bot) Run(ctx context.Context) error {
	ctx = logger.WithFields(ctx, logger.Fields{Platform: "telegram"})
	slog.InfoContext(ctx, "telegram bot authorized", "username", b.api.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.wg.Wait()
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if cq := update.CallbackQuery; cq != nil {
		b.handleCallback(ctx, cq)
		return
	}

	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	if !isAllowedUser(msg.From.ID, b.cfg) {
		deny := tgbotapi.NewMessage(msg.Chat.ID, "access denied")
		deny.ReplyToMessageID = msg.MessageID
		if _, err := b.api.Send(deny); err != nil {
			slog.WarnContext(ctx, "failed to send deny message", "error", err)
		}
		return
	}

	thread := Thread(msg.Chat.ID, msg.From.ID)
	if msg.IsCommand() && msg.Command() == commandStart {
		b.dispatch(ctx, chat.Event{Kind: chat.EventThreadStarted, Thread: thread})
		return
	}

	text := b.platform.ResolvePrompt(thread, BuildUserInput(msg))
	if strings.TrimSpace(text) == "" {
		reply := tgbotapi.NewMessage(msg.Chat.ID, "i need some content to work with")
		reply.ReplyToMessageID = msg.MessageID
		if _, err := b.api.Send(reply); err != nil {
			slog.WarnContext(ctx, "failed to send reply", "error", err)
		}
		return
	}

	b.platform.RecordUserMessage(thread, text)
	b.dispatch(ctx, chat.Event{Kind: chat.EventUserMessage, Thread: thread, Text: text})
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	value, ok := strings.CutPrefix(cq.Data, feedbackPrefix)
	if !ok || cq.From == nil {
		return
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(cq.ID, "Thanks for the feedback!")); err != nil {
		slog.WarnContext(ctx, "failed to answer callback query", "error", err)
	}

	var chatID int64
	if cq.Message != nil && cq.Message.Chat != nil {
		chatID = cq.Message.Chat.ID
	}
	b.dispatch(ctx, chat.Event{
		Kind:   chat.EventFeedback,
		Thread: Thread(chatID, cq.From.ID),
		Text:   value,
	})
}

// dispatch runs events of one chat in arrival order, one at a time. Long
// polling delivers updates without waiting for the previous turn to end.
func (b *Bot) dispatch(ctx context.Context, evt chat.Event) {
	key := evt.Thread.ChannelID

	b.mu.Lock()
	if pending, busy := b.queues[key]; busy {
		b.queues[key] = append(pending, evt)
		b.mu.Unlock()
		return
	}
	b.queues[key] = nil
	b.mu.Unlock()

	b.wg.Add(1)
	go b.drain(ctx, key, evt)
}

func (b *Bot) drain(ctx context.Context, key string, evt chat.Event) {
	defer b.wg.Done()
	for {
		b.chat.Dispatch(ctx, evt)

		b.mu.Lock()
		pending := b.queues[key]
		if len(pending) == 0 {
			delete(b.queues, key)
			b.mu.Unlock()
			return
		}
		evt, b.queues[key] = pending[0], pending[1:]
		b.mu.Unlock()
	}
}

func isAllowedUser(userID int64, cfg config.Config) bool {
	for _, id := range cfg.AdminUserIDs {
		if id == userID {
			return true
		}
	}

	if len(cfg.AllowedUserIDs) == 0 {
		return true
	}

	for _, id := range cfg.AllowedUserIDs {
		if id == userID {
			return true
		}
	}

	return false
}

// BuildUserInput flattens a message, its caption and any attachments into
// the text the assistant sees.
func BuildUserInput(msg *tgbotapi.Message) string {
	parts := make([]string, 0, 6)
	if msg.Text != "" {
		parts = append(parts, msg.Text)
	}
	if msg.Caption != "" {
		parts = append(parts, "Caption: "+msg.Caption)
	}
	parts = append(parts, DescribeAttachments(msg)...)
	return strings.Join(parts, "\n")
}

func userLabel(user *tgbotapi.User) string {
	if user == nil {
		return ""
	}
	if user.UserName != "" {
		return "@" + user.UserName
	}
	return strconv.FormatInt(user.ID, 10)
}
