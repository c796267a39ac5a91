package chat

import (
	"context"
	"log/slog"
	"math/rand"

	"assistant-bot/internal/domain"
)

// StatusNotifier shows a short "working" line while a turn is in flight.
type StatusNotifier struct {
	platform Platform
	phrases  []string
	pick     func(n int) int
}

func NewStatusNotifier(platform Platform, phrases []string) *StatusNotifier {
	return &StatusNotifier{
		platform: platform,
		phrases:  phrases,
		pick:     rand.Intn,
	}
}

// Phrase returns one of the configured phrases, chosen at random.
func (s *StatusNotifier) Phrase() string {
	if len(s.phrases) == 0 {
		return ""
	}
	return s.phrases[s.pick(len(s.phrases))]
}

// Announce is best effort: failures are logged and never reach the caller.
func (s *StatusNotifier) Announce(ctx context.Context, thread domain.ThreadContext, text string) {
	if text == "" {
		return
	}
	if err := s.platform.SetStatus(ctx, thread, text); err != nil {
		slog.WarnContext(ctx, "failed to set status", "status", text, "error", err)
	}
}
