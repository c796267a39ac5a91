package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"assistant-bot/internal/domain"
	"assistant-bot/internal/textsplit"
	"assistant-bot/internal/usecase/chat"
)

const (
	messageLimit   = 4096
	feedbackPrefix = "feedback:"
	warningMarker  = ":warning:"
)

var emoji = strings.NewReplacer(":warning:", "⚠️", ":+1:", "👍", ":-1:", "👎")

// Sender is the part of the Bot API client the platform uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Platform implements chat.Platform on the Telegram Bot API. A chat is a
// single thread, and since bots cannot read chat history the platform keeps
// its own transcript.
type Platform struct {
	api   Sender
	store domain.ConversationStore
	ttl   time.Duration
	now   func() time.Time

	mu      sync.Mutex
	prompts map[string]map[string]string
}

func NewPlatform(api Sender, store domain.ConversationStore, ttl time.Duration) *Platform {
	return &Platform{
		api:     api,
		store:   store,
		ttl:     ttl,
		now:     time.Now,
		prompts: make(map[string]map[string]string),
	}
}

// Thread returns the thread of a chat.
func Thread(chatID int64, userID int64) domain.ThreadContext {
	return domain.ThreadContext{
		ChannelID: strconv.FormatInt(chatID, 10),
		UserID:    strconv.FormatInt(userID, 10),
	}
}

// RecordUserMessage appends an incoming message to the chat transcript.
func (p *Platform) RecordUserMessage(thread domain.ThreadContext, text string) {
	p.store.Add(thread.Key(), domain.Message{
		Role:      domain.RoleUser,
		Content:   text,
		Timestamp: p.now(),
	})
}

// ResolvePrompt maps a tapped suggestion title back to its prompt message.
func (p *Platform) ResolvePrompt(thread domain.ThreadContext, text string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if msg, ok := p.prompts[thread.ChannelID][text]; ok {
		return msg
	}
	return text
}

func (p *Platform) ThreadReplies(_ context.Context, channelID, threadTS string, limit int) ([]domain.ChatMessage, error) {
	key := domain.ThreadContext{ChannelID: channelID, ThreadTS: threadTS}.Key()
	history := p.store.FreshMessages(key, limit, p.ttl)

	out := make([]domain.ChatMessage, 0, len(history))
	for _, m := range history {
		out = append(out, domain.ChatMessage{
			Text:      m.Content,
			IsBot:     m.Role == domain.RoleAssistant,
			Timestamp: m.Timestamp.Format(time.RFC3339Nano),
		})
	}
	return out, nil
}

func (p *Platform) ChannelHistory(context.Context, string, int) ([]domain.ChatMessage, error) {
	return nil, fmt.Errorf("telegram channel history: %w", chat.ErrUnsupported)
}

func (p *Platform) JoinChannel(context.Context, string) error {
	return fmt.Errorf("telegram join channel: %w", chat.ErrUnsupported)
}

func (p *Platform) PostMessage(_ context.Context, thread domain.ThreadContext, text string) error {
	chatID, err := parseChatID(thread.ChannelID)
	if err != nil {
		return err
	}
	for _, chunk := range textsplit.Split(emoji.Replace(text), messageLimit) {
		if _, err := p.api.Send(tgbotapi.NewMessage(chatID, chunk)); err != nil {
			return fmt.Errorf("send message: %w", err)
		}
	}
	p.recordAssistant(thread, text)
	return nil
}

// SetStatus shows the typing indicator; Telegram has no free-text status.
func (p *Platform) SetStatus(_ context.Context, thread domain.ThreadContext, _ string) error {
	chatID, err := parseChatID(thread.ChannelID)
	if err != nil {
		return err
	}
	if _, err := p.api.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		return fmt.Errorf("send chat action: %w", err)
	}
	return nil
}

// SetSuggestedPrompts shows the prompt titles as a one-time reply keyboard.
func (p *Platform) SetSuggestedPrompts(_ context.Context, thread domain.ThreadContext, prompts []domain.Prompt) error {
	chatID, err := parseChatID(thread.ChannelID)
	if err != nil {
		return err
	}

	rows := make([][]tgbotapi.KeyboardButton, 0, len(prompts))
	byTitle := make(map[string]string, len(prompts))
	for _, prompt := range prompts {
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(prompt.Title)))
		byTitle[prompt.Title] = prompt.Message
	}

	p.mu.Lock()
	p.prompts[thread.ChannelID] = byTitle
	p.mu.Unlock()

	keyboard := tgbotapi.NewReplyKeyboard(rows...)
	keyboard.OneTimeKeyboard = true
	keyboard.ResizeKeyboard = true

	msg := tgbotapi.NewMessage(chatID, "Try one of these:")
	msg.ReplyMarkup = keyboard
	if _, err := p.api.Send(msg); err != nil {
		return fmt.Errorf("send suggested prompts: %w", err)
	}
	return nil
}

func (p *Platform) StartMessage(_ context.Context, thread domain.ThreadContext, text string) (chat.MessageRef, error) {
	chatID, err := parseChatID(thread.ChannelID)
	if err != nil {
		return chat.MessageRef{}, err
	}
	sent, err := p.api.Send(tgbotapi.NewMessage(chatID, firstChunk(emoji.Replace(text))))
	if err != nil {
		return chat.MessageRef{}, fmt.Errorf("send message: %w", err)
	}
	return chat.MessageRef{
		ChannelID: thread.ChannelID,
		ThreadTS:  thread.ThreadTS,
		MessageID: strconv.Itoa(sent.MessageID),
	}, nil
}

// UpdateMessage edits the message in place. Once the text outgrows a single
// Telegram message the edits stop; FinishMessage posts the overflow.
func (p *Platform) UpdateMessage(_ context.Context, ref chat.MessageRef, text string) error {
	text = emoji.Replace(text)
	if len([]rune(text)) > messageLimit {
		return nil
	}
	chatID, msgID, err := parseRef(ref)
	if err != nil {
		return err
	}
	if _, err := p.api.Send(tgbotapi.NewEditMessageText(chatID, msgID, text)); err != nil && !isNotModified(err) {
		return fmt.Errorf("edit message: %w", err)
	}
	return nil
}

func (p *Platform) FinishMessage(_ context.Context, ref chat.MessageRef, text string, feedback bool) error {
	chatID, msgID, err := parseRef(ref)
	if err != nil {
		return err
	}

	chunks := textsplit.Split(emoji.Replace(text), messageLimit)
	last := len(chunks) - 1
	for i, chunk := range chunks {
		var markup *tgbotapi.InlineKeyboardMarkup
		if feedback && i == last {
			kb := feedbackKeyboard()
			markup = &kb
		}

		if i == 0 {
			edit := tgbotapi.NewEditMessageText(chatID, msgID, chunk)
			edit.ReplyMarkup = markup
			if _, err := p.api.Send(edit); err != nil && !isNotModified(err) {
				return fmt.Errorf("edit message: %w", err)
			}
			continue
		}

		msg := tgbotapi.NewMessage(chatID, chunk)
		if markup != nil {
			msg.ReplyMarkup = *markup
		}
		if _, err := p.api.Send(msg); err != nil {
			return fmt.Errorf("send message: %w", err)
		}
	}

	p.recordAssistant(domain.ThreadContext{ChannelID: ref.ChannelID, ThreadTS: ref.ThreadTS}, text)
	return nil
}

func (p *Platform) MentionUser(userID string) string {
	return userID
}

func (p *Platform) MentionChannel(channelID string) string {
	return channelID
}

// recordAssistant keeps bot output in the transcript. Warning notes are
// left out so they never reach the model as assistant turns.
func (p *Platform) recordAssistant(thread domain.ThreadContext, text string) {
	text, _, _ = strings.Cut(text, warningMarker)
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	p.store.Add(thread.Key(), domain.Message{
		Role:      domain.RoleAssistant,
		Content:   text,
		Timestamp: p.now(),
	})
}

func feedbackKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("👍", feedbackPrefix+"good"),
		tgbotapi.NewInlineKeyboardButtonData("👎", feedbackPrefix+"bad"),
	))
}

func firstChunk(text string) string {
	return textsplit.Split(text, messageLimit)[0]
}

func isNotModified(err error) bool {
	return strings.Contains(err.Error(), "message is not modified")
}

func parseChatID(channelID string) (int64, error) {
	chatID, err := strconv.ParseInt(channelID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid telegram chat id %q: %w", channelID, err)
	}
	return chatID, nil
}

func parseRef(ref chat.MessageRef) (int64, int, error) {
	chatID, err := parseChatID(ref.ChannelID)
	if err != nil {
		return 0, 0, err
	}
	msgID, err := strconv.Atoi(ref.MessageID)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid telegram message id %q: %w", ref.MessageID, err)
	}
	return chatID, msgID, nil
}
