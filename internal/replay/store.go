// Package replay caches encoded webhook responses per gateway message id so a
// retried delivery gets the same answer without a second assistant call.
package replay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL bounds how long a response is replayable.
const DefaultTTL = 10 * time.Minute

const keyPrefix = "bridge:replay:"

// Response is an encoded webhook answer.
type Response struct {
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// Store looks up and records responses by message id. Lookup returns
// ok=false on a miss.
type Store interface {
	Lookup(ctx context.Context, messageID string) (Response, bool, error)
	Save(ctx context.Context, messageID string, resp Response) error
}

// RedisStore keeps responses in Redis with a TTL.
type RedisStore struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewRedisStore returns a store backed by client.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if client == nil {
		panic("replay: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{redis: client, ttl: ttl}
}

func (s *RedisStore) key(messageID string) string {
	return keyPrefix + messageID
}

// Lookup implements Store.
func (s *RedisStore) Lookup(ctx context.Context, messageID string) (Response, bool, error) {
	messageID = strings.TrimSpace(messageID)
	if messageID == "" {
		return Response{}, false, nil
	}
	data, err := s.redis.Get(ctx, s.key(messageID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Response{}, false, nil
	}
	if err != nil {
		return Response{}, false, fmt.Errorf("replay: get %s: %w", messageID, err)
	}
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return Response{}, false, fmt.Errorf("replay: decode %s: %w", messageID, err)
	}
	return resp, true, nil
}

// Save implements Store. The first stored response wins so concurrent
// retries cannot overwrite each other.
func (s *RedisStore) Save(ctx context.Context, messageID string, resp Response) error {
	messageID = strings.TrimSpace(messageID)
	if messageID == "" {
		return nil
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("replay: encode %s: %w", messageID, err)
	}
	if err := s.redis.SetNX(ctx, s.key(messageID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("replay: set %s: %w", messageID, err)
	}
	return nil
}
