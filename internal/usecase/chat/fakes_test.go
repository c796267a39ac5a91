package chat

import (
	"context"
	"fmt"
	"io"
	"sync"

	"assistant-bot/internal/config"
	"assistant-bot/internal/domain"
)

func testConfig() config.Config {
	return config.Config{
		Model:               "test-model",
		MaxTokens:           1024,
		ThreadHistoryLimit:  10,
		ChannelHistoryLimit: 50,
		Persona:             config.DefaultPersona(),
	}
}

type finishCall struct {
	ref      MessageRef
	text     string
	feedback bool
}

type fakePlatform struct {
	mu sync.Mutex

	replies        []domain.ChatMessage
	panicOnReplies bool

	history         []domain.ChatMessage
	historyErrs     []error
	historyChannels []string
	joinCalls       int
	joinErr         error

	posts     []string
	statuses  []string
	statusErr error
	prompts   [][]domain.Prompt

	started   []string
	updates   []string
	finished  []finishCall
	startErr  error
	updateErr error
	finishErr error
}

func (p *fakePlatform) ThreadReplies(_ context.Context, _, _ string, _ int) ([]domain.ChatMessage, error) {
	if p.panicOnReplies {
		panic("replies exploded")
	}
	return p.replies, nil
}

func (p *fakePlatform) ChannelHistory(_ context.Context, channelID string, _ int) ([]domain.ChatMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	call := len(p.historyChannels)
	p.historyChannels = append(p.historyChannels, channelID)
	if call < len(p.historyErrs) && p.historyErrs[call] != nil {
		return nil, p.historyErrs[call]
	}
	return p.history, nil
}

func (p *fakePlatform) JoinChannel(context.Context, string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.joinCalls++
	return p.joinErr
}

func (p *fakePlatform) PostMessage(_ context.Context, _ domain.ThreadContext, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.posts = append(p.posts, text)
	return nil
}

func (p *fakePlatform) SetStatus(_ context.Context, _ domain.ThreadContext, status string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses = append(p.statuses, status)
	return p.statusErr
}

func (p *fakePlatform) SetSuggestedPrompts(_ context.Context, _ domain.ThreadContext, prompts []domain.Prompt) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prompts = append(p.prompts, prompts)
	return nil
}

func (p *fakePlatform) StartMessage(_ context.Context, thread domain.ThreadContext, text string) (MessageRef, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startErr != nil {
		return MessageRef{}, p.startErr
	}
	p.started = append(p.started, text)
	return MessageRef{
		ChannelID: thread.ChannelID,
		ThreadTS:  thread.ThreadTS,
		MessageID: fmt.Sprintf("m%d", len(p.started)),
	}, nil
}

func (p *fakePlatform) UpdateMessage(_ context.Context, _ MessageRef, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updates = append(p.updates, text)
	return p.updateErr
}

func (p *fakePlatform) FinishMessage(_ context.Context, ref MessageRef, text string, feedback bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finishErr != nil {
		return p.finishErr
	}
	p.finished = append(p.finished, finishCall{ref: ref, text: text, feedback: feedback})
	return nil
}

func (p *fakePlatform) MentionUser(userID string) string {
	return "<@" + userID + ">"
}

func (p *fakePlatform) MentionChannel(channelID string) string {
	return "<#" + channelID + ">"
}

// published lists every text the platform showed for the streaming message,
// in order.
func (p *fakePlatform) published() []string {
	out := append([]string(nil), p.started...)
	out = append(out, p.updates...)
	for _, f := range p.finished {
		out = append(out, f.text)
	}
	return out
}

type fakeStream struct {
	deltas []string
	err    error
	closed bool
}

func (s *fakeStream) Recv() (string, error) {
	if len(s.deltas) > 0 {
		d := s.deltas[0]
		s.deltas = s.deltas[1:]
		return d, nil
	}
	if s.err != nil {
		return "", s.err
	}
	return "", io.EOF
}

func (s *fakeStream) Close() error {
	s.closed = true
	return nil
}

type fakeClient struct {
	stream    *fakeStream
	streamErr error
	requests  []CompletionRequest
}

func (c *fakeClient) Stream(_ context.Context, req CompletionRequest) (Stream, error) {
	c.requests = append(c.requests, req)
	if c.streamErr != nil {
		return nil, c.streamErr
	}
	if c.stream == nil {
		c.stream = &fakeStream{}
	}
	return c.stream, nil
}
