package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"registrar/internal/auth/models"
	"registrar/pkg/platform/sentinel"
)

const (
	sessionKeyPrefix = "session:"
	userSessionsKey  = "user_sessions:"
)

// RedisStore persists sessions in Redis. Keys expire with the session so
// stale entries clean themselves up.
type RedisStore struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

func userKey(userID int64) string {
	return fmt.Sprintf("%s%d", userSessionsKey, userID)
}

func (s *RedisStore) Create(ctx context.Context, session *models.Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session already expired")
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, sessionKey(session.ID), payload, ttl)
	pipe.SAdd(ctx, userKey(session.UserID), session.ID)
	pipe.Expire(ctx, userKey(session.UserID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *RedisStore) FindByID(ctx context.Context, sessionID string) (*models.Session, error) {
	payload, err := s.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	var session models.Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &session, nil
}

func (s *RedisStore) Revoke(ctx context.Context, sessionID string, at time.Time) error {
	session, err := s.FindByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.RevokedAt != nil {
		return nil
	}
	session.RevokedAt = &at
	return s.save(ctx, session)
}

func (s *RedisStore) RevokeAllForUser(ctx context.Context, userID int64, at time.Time) error {
	ids, err := s.client.SMembers(ctx, userKey(userID)).Result()
	if err != nil {
		return fmt.Errorf("list user sessions: %w", err)
	}
	for _, id := range ids {
		if err := s.Revoke(ctx, id, at); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return err
		}
	}
	return nil
}

// IsActive reports whether the session exists, is unexpired, and has not been
// revoked. Expired keys vanish from Redis, so a miss means inactive.
func (s *RedisStore) IsActive(ctx context.Context, sessionID string) (bool, error) {
	session, err := s.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return session.Active(time.Now()), nil
}

func (s *RedisStore) save(ctx context.Context, session *models.Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	// Keep the original expiry so revoked sessions still age out.
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Minute
	}
	if err := s.client.Set(ctx, sessionKey(session.ID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}
