package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/2beens/contactdesk/internal/telemetry/tracing"
)

const sessionKeyPrefix = "contactdesk-session||"

var _ SessionStore = (*RedisSessionStore)(nil)

type RedisSessionStore struct {
	redisClient *redis.Client
}

func NewRedisSessionStore(redisClient *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{
		redisClient: redisClient,
	}
}

func (s *RedisSessionStore) Save(ctx context.Context, session *Session, ttl time.Duration) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "redisSessionStore.save")
	defer span.End()

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	cmd := s.redisClient.Set(ctx, sessionKeyPrefix+session.ID, string(data), ttl)
	if err := cmd.Err(); err != nil {
		return err
	}

	return nil
}

func (s *RedisSessionStore) Load(ctx context.Context, id string) (*Session, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "redisSessionStore.load")
	defer span.End()

	cmd := s.redisClient.Get(ctx, sessionKeyPrefix+id)
	if err := cmd.Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoSession
		}
		return nil, err
	}

	session := &Session{}
	if err := json.Unmarshal([]byte(cmd.Val()), session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}

	return session, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, id string) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "redisSessionStore.delete")
	defer span.End()

	return s.redisClient.Del(ctx, sessionKeyPrefix+id).Err()
}
