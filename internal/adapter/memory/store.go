package memory

import (
	"sync"
	"time"

	"assistant-bot/internal/domain"
)

// Store is an in-process transcript of each thread.
type Store struct {
	mu            sync.Mutex
	conversations map[string][]domain.Message
	maxPerThread  int
}

// NewStore keeps at most maxPerThread messages per thread; zero means no cap.
func NewStore(maxPerThread int) *Store {
	return &Store{
		conversations: make(map[string][]domain.Message),
		maxPerThread:  maxPerThread,
	}
}

func (s *Store) Add(threadKey string, msg domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := append(s.conversations[threadKey], msg)
	if s.maxPerThread > 0 && len(history) > s.maxPerThread {
		history = append([]domain.Message(nil), history[len(history)-s.maxPerThread:]...)
	}
	s.conversations[threadKey] = history
}

func (s *Store) FreshMessages(threadKey string, limit int, ttl time.Duration) []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.conversations[threadKey]
	if len(history) == 0 {
		return nil
	}

	cutoff := time.Now().Add(-ttl)
	fresh := make([]domain.Message, 0, len(history))
	for _, m := range history {
		if ttl <= 0 || m.Timestamp.After(cutoff) {
			fresh = append(fresh, m)
		}
	}

	if limit > 0 && len(fresh) > limit {
		fresh = fresh[len(fresh)-limit:]
	}

	return append([]domain.Message(nil), fresh...)
}
