package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	openaiapi "github.com/sashabaranov/go-openai"

	"assistant-bot/internal/domain"
	"assistant-bot/internal/usecase/chat"
)

// Client streams chat completions from any OpenAI-compatible endpoint.
type Client struct {
	api   *openaiapi.Client
	token string
}

func NewClient(token, baseURL string) *Client {
	conf := openaiapi.DefaultConfig(token)
	if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
		conf.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &Client{
		api:   openaiapi.NewClientWithConfig(conf),
		token: token,
	}
}

func (c *Client) Stream(ctx context.Context, req chat.CompletionRequest) (chat.Stream, error) {
	if strings.TrimSpace(c.token) == "" {
		return nil, chat.ErrMissingCredentials
	}
	if strings.TrimSpace(req.Model) == "" {
		return nil, fmt.Errorf("%w: model is not set", chat.ErrMissingCredentials)
	}

	apiReq := openaiapi.ChatCompletionRequest{
		Model:     req.Model,
		N:         1,
		MaxTokens: req.MaxTokens,
		Stream:    true,
		Messages:  toAPIMessages(req.SystemPrompt, req.Messages),
	}

	stream, err := c.api.CreateChatCompletionStream(ctx, apiReq)
	if err != nil {
		return nil, fmt.Errorf("openai stream: %w", err)
	}
	return &completionStream{stream: stream}, nil
}

type completionStream struct {
	stream   *openaiapi.ChatCompletionStream
	finished bool
}

// Recv returns the next delta. The client library reports a body that ends
// without [DONE] as a clean EOF, so a stream that never carried a finish
// reason is reported as truncated.
func (s *completionStream) Recv() (string, error) {
	resp, err := s.stream.Recv()
	if errors.Is(err, io.EOF) {
		if !s.finished {
			return "", fmt.Errorf("openai stream: %w", io.ErrUnexpectedEOF)
		}
		return "", io.EOF
	}
	if err != nil {
		return "", fmt.Errorf("openai stream: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", nil
	}
	choice := resp.Choices[0]
	if choice.FinishReason != "" {
		s.finished = true
	}
	return choice.Delta.Content, nil
}

func (s *completionStream) Close() error {
	return s.stream.Close()
}

func toAPIMessages(system string, msgs []domain.Message) []openaiapi.ChatCompletionMessage {
	res := make([]openaiapi.ChatCompletionMessage, 0, len(msgs)+1)
	if strings.TrimSpace(system) != "" {
		res = append(res, openaiapi.ChatCompletionMessage{
			Role:    openaiapi.ChatMessageRoleSystem,
			Content: system,
		})
	}
	for _, m := range msgs {
		res = append(res, openaiapi.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	return res
}
