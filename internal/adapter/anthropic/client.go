package anthropic

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"assistant-bot/internal/domain"
	"assistant-bot/internal/usecase/chat"
)

// Client streams completions from the Anthropic Messages API.
type Client struct {
	api    anthropic.Client
	apiKey string
}

func NewClient(apiKey, baseURL string, opts ...option.RequestOption) *Client {
	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	reqOpts = append(reqOpts, opts...)

	return &Client{
		api:    anthropic.NewClient(reqOpts...),
		apiKey: apiKey,
	}
}

func (c *Client) Stream(ctx context.Context, req chat.CompletionRequest) (chat.Stream, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return nil, chat.ErrMissingCredentials
	}
	if strings.TrimSpace(req.Model) == "" {
		return nil, fmt.Errorf("%w: model is not set", chat.ErrMissingCredentials)
	}

	system, messages := toAPIMessages(req.SystemPrompt, req.Messages)
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(req.MaxTokens),
		Messages:  messages,
	}
	if len(system) > 0 {
		params.System = system
	}

	return &completionStream{stream: c.api.Messages.NewStreaming(ctx, params)}, nil
}

type eventStream interface {
	Next() bool
	Current() anthropic.MessageStreamEventUnion
	Err() error
	Close() error
}

type completionStream struct {
	stream  eventStream
	stopped bool
}

func (s *completionStream) Recv() (string, error) {
	for s.stream.Next() {
		switch ev := s.stream.Current().AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			if delta, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok {
				return delta.Text, nil
			}
		case anthropic.MessageStopEvent:
			s.stopped = true
		}
	}
	if err := s.stream.Err(); err != nil {
		return "", fmt.Errorf("anthropic stream: %w", err)
	}
	if !s.stopped {
		return "", fmt.Errorf("anthropic stream: %w", io.ErrUnexpectedEOF)
	}
	return "", io.EOF
}

func (s *completionStream) Close() error {
	return s.stream.Close()
}

// toAPIMessages moves system messages into the system blocks, which the
// Messages API keeps apart from the conversation.
func toAPIMessages(system string, msgs []domain.Message) ([]anthropic.TextBlockParam, []anthropic.MessageParam) {
	var blocks []anthropic.TextBlockParam
	if strings.TrimSpace(system) != "" {
		blocks = append(blocks, anthropic.TextBlockParam{Text: system})
	}

	res := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case domain.RoleSystem:
			blocks = append(blocks, anthropic.TextBlockParam{Text: m.Content})
		case domain.RoleAssistant:
			res = append(res, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			res = append(res, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return blocks, res
}
