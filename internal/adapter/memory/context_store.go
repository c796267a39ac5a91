package memory

import (
	"context"
	"sync"

	"assistant-bot/internal/domain"
)

// ContextStore keeps bound thread contexts for the life of the process.
type ContextStore struct {
	mu       sync.RWMutex
	contexts map[string]domain.BoundContext
}

func NewContextStore() *ContextStore {
	return &ContextStore{
		contexts: make(map[string]domain.BoundContext),
	}
}

func (s *ContextStore) Load(_ context.Context, channelID, threadTS string) (domain.BoundContext, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bound, ok := s.contexts[contextKey(channelID, threadTS)]
	return bound, ok, nil
}

func (s *ContextStore) Save(_ context.Context, channelID, threadTS string, bound domain.BoundContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contexts[contextKey(channelID, threadTS)] = bound
	return nil
}

func contextKey(channelID, threadTS string) string {
	return domain.ThreadContext{ChannelID: channelID, ThreadTS: threadTS}.Key()
}
