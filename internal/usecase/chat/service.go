package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"assistant-bot/internal/config"
	"assistant-bot/internal/domain"
	"assistant-bot/internal/logger"
)

const logTextLimit = 80

type EventKind string

const (
	EventThreadStarted        EventKind = "thread_started"
	EventUserMessage          EventKind = "user_message"
	EventThreadContextChanged EventKind = "thread_context_changed"
	EventFeedback             EventKind = "feedback"
)

// Event is a thread lifecycle notification translated by a platform adapter.
type Event struct {
	Kind   EventKind
	Thread domain.ThreadContext
	// Text is the user message, or the button value for feedback.
	Text string
	// Bound is the channel context the platform reports with
	// thread_started and thread_context_changed.
	Bound domain.BoundContext
}

type handlerFunc func(ctx context.Context, evt Event) error

// Service runs assistant turns. It is the one place where turn failures are
// caught, logged and reported back into the thread.
type Service struct {
	platform  Platform
	client    CompletionClient
	contexts  domain.ThreadContextStore
	assembler *Assembler
	relay     *Relay
	status    *StatusNotifier
	cfg       config.Config
	handlers  map[EventKind]handlerFunc
}

func NewService(platform Platform, client CompletionClient, contexts domain.ThreadContextStore, cfg config.Config) *Service {
	s := &Service{
		platform:  platform,
		client:    client,
		contexts:  contexts,
		assembler: NewAssembler(platform, cfg),
		relay:     NewRelay(platform, cfg),
		status:    NewStatusNotifier(platform, cfg.Persona.ThinkingMessages),
		cfg:       cfg,
	}
	s.handlers = map[EventKind]handlerFunc{
		EventThreadStarted:        s.threadStarted,
		EventUserMessage:          s.userMessage,
		EventThreadContextChanged: s.threadContextChanged,
		EventFeedback:             s.feedback,
	}
	return s
}

// Dispatch runs the handler registered for the event kind. It blocks until
// the turn is over.
func (s *Service) Dispatch(ctx context.Context, evt Event) {
	ctx = logger.WithFields(ctx, logger.Fields{
		TurnID:   uuid.NewString(),
		Event:    string(evt.Kind),
		Channel:  evt.Thread.ChannelID,
		ThreadTS: evt.Thread.ThreadTS,
	})

	handle, ok := s.handlers[evt.Kind]
	if !ok {
		slog.WarnContext(ctx, "no handler for event")
		return
	}

	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "assistant handler panicked", "panic", r)
			s.warn(ctx, evt.Thread, fmt.Errorf("%v", r))
		}
	}()

	if err := handle(ctx, evt); err != nil {
		slog.ErrorContext(ctx, "failed to handle assistant event", "error", err)
		s.warn(ctx, evt.Thread, err)
	}
}

func (s *Service) threadStarted(ctx context.Context, evt Event) error {
	if !evt.Bound.IsZero() {
		if err := s.contexts.Save(ctx, evt.Thread.ChannelID, evt.Thread.ThreadTS, evt.Bound); err != nil {
			return fmt.Errorf("save thread context: %w", err)
		}
	}

	if err := s.platform.PostMessage(ctx, evt.Thread, s.cfg.Persona.Greeting); err != nil {
		return fmt.Errorf("post greeting: %w", err)
	}

	prompts := make([]domain.Prompt, 0, len(s.cfg.Persona.Prompts)+1)
	prompts = append(prompts, s.cfg.Persona.Prompts...)
	if !evt.Bound.IsZero() {
		prompts = append(prompts, s.cfg.Persona.SummarizePrompt)
	}
	if len(prompts) == 0 {
		return nil
	}
	if err := s.platform.SetSuggestedPrompts(ctx, evt.Thread, prompts); err != nil {
		return fmt.Errorf("set suggested prompts: %w", err)
	}
	return nil
}

func (s *Service) userMessage(ctx context.Context, evt Event) error {
	slog.InfoContext(ctx, "user message received", "text", logger.Truncate(evt.Text, logTextLimit))
	s.status.Announce(ctx, evt.Thread, s.status.Phrase())

	thread := evt.Thread
	if thread.ReferredChannelID == "" && s.assembler.IsSummaryRequest(evt.Text) {
		bound, ok, err := s.contexts.Load(ctx, thread.ChannelID, thread.ThreadTS)
		if err != nil {
			return fmt.Errorf("load thread context: %w", err)
		}
		if ok {
			thread.ReferredChannelID = bound.ChannelID
		}
	}

	messages, err := s.assembler.Assemble(ctx, Trigger{Thread: thread, Text: evt.Text})
	if err != nil {
		return fmt.Errorf("assemble conversation: %w", err)
	}
	slog.DebugContext(ctx, "conversation assembled", "messages", len(messages))

	return s.respond(ctx, thread, messages)
}

// respond streams the completion into a single relayed message.
func (s *Service) respond(ctx context.Context, thread domain.ThreadContext, messages []domain.Message) error {
	h, err := s.relay.Open(ctx, thread)
	if err != nil {
		return err
	}

	stream, err := s.client.Stream(ctx, CompletionRequest{
		SystemPrompt: s.cfg.Persona.SystemPrompt,
		Messages:     messages,
		Model:        s.cfg.Model,
		MaxTokens:    s.cfg.MaxTokens,
	})
	if err != nil {
		s.abort(ctx, h)
		return fmt.Errorf("start completion: %w", err)
	}
	defer func() {
		if err := stream.Close(); err != nil {
			slog.DebugContext(ctx, "failed to close completion stream", "error", err)
		}
	}()

	for {
		delta, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.abort(ctx, h)
			return fmt.Errorf("read completion stream: %w", err)
		}
		if err := s.relay.Append(ctx, h, delta); err != nil {
			s.abort(ctx, h)
			return err
		}
	}

	if err := s.relay.Finalize(ctx, h, true); err != nil {
		return err
	}
	slog.InfoContext(ctx, "response streamed", "length", len(h.Content()))
	return nil
}

func (s *Service) abort(ctx context.Context, h *Handle) {
	if err := s.relay.Abort(ctx, h, "Failed to complete response"); err != nil {
		slog.WarnContext(ctx, "failed to abort streaming message", "error", err)
	}
}

func (s *Service) threadContextChanged(ctx context.Context, evt Event) error {
	s.status.Announce(ctx, evt.Thread, s.status.Phrase())

	if evt.Bound.IsZero() {
		return nil
	}
	if err := s.contexts.Save(ctx, evt.Thread.ChannelID, evt.Thread.ThreadTS, evt.Bound); err != nil {
		return fmt.Errorf("save thread context: %w", err)
	}

	notice := fmt.Sprintf("The context of this thread has changed to a new channel %s. How can I assist you?",
		s.platform.MentionChannel(evt.Bound.ChannelID))
	if err := s.platform.PostMessage(ctx, evt.Thread, notice); err != nil {
		return fmt.Errorf("post context notice: %w", err)
	}
	return nil
}

func (s *Service) feedback(ctx context.Context, evt Event) error {
	slog.InfoContext(ctx, "feedback received", "value", evt.Text, "user", evt.Thread.UserID)
	return nil
}

func (s *Service) warn(ctx context.Context, thread domain.ThreadContext, cause error) {
	text := fmt.Sprintf(":warning: Something went wrong! (%v)", cause)
	if err := s.platform.PostMessage(ctx, thread, text); err != nil {
		slog.ErrorContext(ctx, "failed to post warning", "error", err)
	}
}
