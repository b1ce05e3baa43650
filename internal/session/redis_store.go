package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "maintenance-desk:session:"

// RedisStore keeps sessions as JSON strings, one key per actor. A zero ttl
// keeps them until cleared.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore wraps an established client.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func sessionKey(actorID int64) string {
	return fmt.Sprintf("%s%d", keyPrefix, actorID)
}

func (r *RedisStore) Load(ctx context.Context, actorID int64) (*Session, error) {
	raw, err := r.client.Get(ctx, sessionKey(actorID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if s.Data == nil {
		s.Data = map[string]string{}
	}
	return &s, nil
}

func (r *RedisStore) Save(ctx context.Context, actorID int64, s *Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := r.client.Set(ctx, sessionKey(actorID), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (r *RedisStore) Clear(ctx context.Context, actorID int64) error {
	if err := r.client.Del(ctx, sessionKey(actorID)).Err(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
