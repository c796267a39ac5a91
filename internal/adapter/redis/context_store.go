package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"assistant-bot/internal/domain"
)

const keyPrefix = "assistant:thread_context:"

// ContextStore keeps bound thread contexts in Redis so they survive restarts
// and are shared between replicas.
type ContextStore struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewContextStore(client *goredis.Client, ttl time.Duration) *ContextStore {
	return &ContextStore{
		client: client,
		ttl:    ttl,
	}
}

// Dial parses a redis:// URL and checks the server is reachable.
func Dial(ctx context.Context, url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (s *ContextStore) Load(ctx context.Context, channelID, threadTS string) (domain.BoundContext, bool, error) {
	raw, err := s.client.Get(ctx, key(channelID, threadTS)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return domain.BoundContext{}, false, nil
	}
	if err != nil {
		return domain.BoundContext{}, false, fmt.Errorf("get thread context: %w", err)
	}

	var bound domain.BoundContext
	if err := json.Unmarshal(raw, &bound); err != nil {
		return domain.BoundContext{}, false, fmt.Errorf("decode thread context: %w", err)
	}
	return bound, true, nil
}

func (s *ContextStore) Save(ctx context.Context, channelID, threadTS string, bound domain.BoundContext) error {
	raw, err := json.Marshal(bound)
	if err != nil {
		return fmt.Errorf("encode thread context: %w", err)
	}
	if err := s.client.Set(ctx, key(channelID, threadTS), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("set thread context: %w", err)
	}
	return nil
}

func key(channelID, threadTS string) string {
	return keyPrefix + domain.ThreadContext{ChannelID: channelID, ThreadTS: threadTS}.Key()
}
