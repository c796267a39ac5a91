package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"assistant-bot/internal/config"
	"assistant-bot/internal/domain"
)

// Trigger is the user message that started a turn.
type Trigger struct {
	Thread domain.ThreadContext
	Text   string
}

// Assembler turns chat platform state into the conversation sent to the model.
type Assembler struct {
	platform Platform
	cfg      config.Config
}

func NewAssembler(platform Platform, cfg config.Config) *Assembler {
	return &Assembler{
		platform: platform,
		cfg:      cfg,
	}
}

// Assemble builds the conversation for a turn. A message equal to the
// summarize prompt asks for a summary of the thread's referred channel;
// anything else continues the thread itself.
func (a *Assembler) Assemble(ctx context.Context, trigger Trigger) ([]domain.Message, error) {
	if a.IsSummaryRequest(trigger.Text) {
		return a.channelSummary(ctx, trigger.Thread)
	}
	return a.threadConversation(ctx, trigger.Thread)
}

func (a *Assembler) IsSummaryRequest(text string) bool {
	return text != "" && text == a.cfg.Persona.SummarizePrompt.Message
}

func (a *Assembler) threadConversation(ctx context.Context, thread domain.ThreadContext) ([]domain.Message, error) {
	limit := a.cfg.ThreadHistoryLimit
	replies, err := a.platform.ThreadReplies(ctx, thread.ChannelID, thread.ThreadTS, limit)
	if err != nil {
		return nil, fmt.Errorf("read thread replies: %w", err)
	}
	if len(replies) == 0 {
		return nil, ErrEmptyThread
	}
	if limit > 0 && len(replies) > limit {
		replies = replies[len(replies)-limit:]
	}

	messages := make([]domain.Message, 0, len(replies))
	for _, r := range replies {
		if strings.TrimSpace(r.Text) == "" {
			return nil, fmt.Errorf("reply %s: %w", r.Timestamp, ErrEmptyMessage)
		}
		role := domain.RoleUser
		if r.IsBot {
			role = domain.RoleAssistant
		}
		messages = append(messages, domain.Message{
			Role:    role,
			Content: r.Text,
		})
	}
	return messages, nil
}

func (a *Assembler) channelSummary(ctx context.Context, thread domain.ThreadContext) ([]domain.Message, error) {
	channelID := thread.ReferredChannelID
	if channelID == "" {
		return nil, ErrNoReferredChannel
	}

	history, err := a.channelHistory(ctx, channelID)
	if err != nil {
		return nil, err
	}

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Can you generate a brief summary of these messages in a Slack channel %s?\n\n",
		a.platform.MentionChannel(channelID))
	for i := len(history) - 1; i >= 0; i-- {
		msg := history[i]
		if msg.Author == "" {
			continue
		}
		fmt.Fprintf(&prompt, "\n%s says: %s\n", a.platform.MentionUser(msg.Author), msg.Text)
	}

	return []domain.Message{{
		Role:    domain.RoleUser,
		Content: prompt.String(),
	}}, nil
}

// channelHistory joins the channel and retries once when the bot is not a
// member yet.
func (a *Assembler) channelHistory(ctx context.Context, channelID string) ([]domain.ChatMessage, error) {
	limit := a.cfg.ChannelHistoryLimit
	history, err := a.platform.ChannelHistory(ctx, channelID, limit)
	if errors.Is(err, ErrNotInChannel) {
		slog.InfoContext(ctx, "bot is not in channel, joining", "referred_channel", channelID)
		if joinErr := a.platform.JoinChannel(ctx, channelID); joinErr != nil {
			return nil, fmt.Errorf("join channel %s: %w", channelID, joinErr)
		}
		history, err = a.platform.ChannelHistory(ctx, channelID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("read channel %s history: %w", channelID, err)
	}
	return history, nil
}
