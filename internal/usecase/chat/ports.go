package chat

import (
	"context"

	"assistant-bot/internal/domain"
)

// Platform is the set of chat platform capabilities the assistant needs.
type Platform interface {
	// ThreadReplies returns up to limit replies of a thread, oldest first.
	ThreadReplies(ctx context.Context, channelID, threadTS string, limit int) ([]domain.ChatMessage, error)
	// ChannelHistory returns up to limit channel messages, newest first.
	// It fails with ErrNotInChannel when the bot is not a member.
	ChannelHistory(ctx context.Context, channelID string, limit int) ([]domain.ChatMessage, error)
	JoinChannel(ctx context.Context, channelID string) error

	PostMessage(ctx context.Context, thread domain.ThreadContext, text string) error
	SetStatus(ctx context.Context, thread domain.ThreadContext, status string) error
	SetSuggestedPrompts(ctx context.Context, thread domain.ThreadContext, prompts []domain.Prompt) error

	StartMessage(ctx context.Context, thread domain.ThreadContext, text string) (MessageRef, error)
	UpdateMessage(ctx context.Context, ref MessageRef, text string) error
	FinishMessage(ctx context.Context, ref MessageRef, text string, feedback bool) error

	MentionUser(userID string) string
	MentionChannel(channelID string) string
}

// MessageRef addresses a message previously created by StartMessage.
type MessageRef struct {
	ChannelID string
	ThreadTS  string
	MessageID string
}

type CompletionClient interface {
	Stream(ctx context.Context, req CompletionRequest) (Stream, error)
}

type CompletionRequest struct {
	SystemPrompt string
	Messages     []domain.Message
	Model        string
	MaxTokens    int
}

// Stream yields text deltas in arrival order. Recv returns io.EOF once the
// backend signals completion; any other error is a transport failure.
type Stream interface {
	Recv() (string, error)
	Close() error
}
