package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"assistant-bot/internal/config"
	"assistant-bot/internal/domain"
)

const noResponseText = "_No response generated_"

type HandleState int

const (
	StateOpen HandleState = iota
	StateFinalized
	StateAborted
)

func (s HandleState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateFinalized:
		return "finalized"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Handle is the single outgoing message of a turn. It is owned by one
// consumer loop and must not be shared between goroutines.
type Handle struct {
	thread      domain.ThreadContext
	state       HandleState
	content     strings.Builder
	ref         MessageRef
	started     bool
	lastPublish time.Time
}

func (h *Handle) State() HandleState {
	return h.state
}

// Content is everything appended so far.
func (h *Handle) Content() string {
	return h.content.String()
}

func (h *Handle) Ref() (MessageRef, bool) {
	return h.ref, h.started
}

// Relay renders a stream of deltas as one message that grows in place.
type Relay struct {
	platform Platform
	interval time.Duration
	now      func() time.Time

	mu   sync.Mutex
	open map[string]*Handle
}

func NewRelay(platform Platform, cfg config.Config) *Relay {
	return &Relay{
		platform: platform,
		interval: cfg.StreamUpdateInterval,
		now:      time.Now,
		open:     make(map[string]*Handle),
	}
}

// Open reserves the thread for a new streaming message. Nothing is posted
// until the first non-blank delta arrives.
func (r *Relay) Open(ctx context.Context, thread domain.ThreadContext) (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := thread.Key()
	if _, ok := r.open[key]; ok {
		return nil, ErrHandleOpen
	}
	h := &Handle{thread: thread}
	r.open[key] = h
	slog.DebugContext(ctx, "streaming message opened")
	return h, nil
}

// Append adds text to the message and republishes the full content.
// Within the update interval the content grows but the platform call is
// skipped; the next publish carries everything. A failed update is logged
// and retried with the next delta, since Finalize publishes the full text.
func (r *Relay) Append(ctx context.Context, h *Handle, text string) error {
	if h.state != StateOpen {
		return ErrHandleClosed
	}
	if text == "" {
		return nil
	}
	h.content.WriteString(text)

	if !h.started {
		if strings.TrimSpace(h.content.String()) == "" {
			return nil
		}
		return r.start(ctx, h, h.content.String())
	}
	if r.interval > 0 && r.now().Sub(h.lastPublish) < r.interval {
		return nil
	}
	if err := r.platform.UpdateMessage(ctx, h.ref, h.content.String()); err != nil {
		slog.WarnContext(ctx, "failed to update streaming message", "error", err)
	}
	h.lastPublish = r.now()
	return nil
}

// Finalize publishes the full content with the trailing feedback controls
// and closes the handle.
func (r *Relay) Finalize(ctx context.Context, h *Handle, feedback bool) error {
	if h.state != StateOpen {
		return ErrHandleClosed
	}
	h.state = StateFinalized
	r.release(h)

	content := h.content.String()
	if strings.TrimSpace(content) == "" {
		content = noResponseText
	}
	if !h.started {
		if err := r.start(ctx, h, content); err != nil {
			return err
		}
	}
	if err := r.platform.FinishMessage(ctx, h.ref, content, feedback); err != nil {
		return fmt.Errorf("finish streaming message: %w", err)
	}
	slog.DebugContext(ctx, "streaming message finalized", "length", len(content))
	return nil
}

// Abort closes the handle after an upstream failure. Content already shown
// stays and gets a warning line; a message that was never posted stays
// unposted.
func (r *Relay) Abort(ctx context.Context, h *Handle, note string) error {
	if h.state != StateOpen {
		return ErrHandleClosed
	}
	h.state = StateAborted
	r.release(h)

	if !h.started {
		return nil
	}
	content := h.content.String() + "\n\n:warning: " + note
	if err := r.platform.FinishMessage(ctx, h.ref, content, false); err != nil {
		return fmt.Errorf("abort streaming message: %w", err)
	}
	slog.DebugContext(ctx, "streaming message aborted", "length", h.content.Len())
	return nil
}

func (r *Relay) start(ctx context.Context, h *Handle, content string) error {
	ref, err := r.platform.StartMessage(ctx, h.thread, content)
	if err != nil {
		return fmt.Errorf("start streaming message: %w", err)
	}
	h.ref = ref
	h.started = true
	h.lastPublish = r.now()
	return nil
}

func (r *Relay) release(h *Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := h.thread.Key()
	if r.open[key] == h {
		delete(r.open, key)
	}
}
