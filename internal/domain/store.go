package domain

import (
	"context"
	"time"
)

// ConversationStore keeps a local transcript for platforms that cannot
// return thread history on demand.
type ConversationStore interface {
	Add(threadKey string, msg Message)
	FreshMessages(threadKey string, limit int, ttl time.Duration) []Message
}

// ThreadContextStore remembers which channel an assistant thread is bound to.
type ThreadContextStore interface {
	Load(ctx context.Context, channelID, threadTS string) (BoundContext, bool, error)
	Save(ctx context.Context, channelID, threadTS string, bound BoundContext) error
}
