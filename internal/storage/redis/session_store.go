package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/makkenzo/license-key-service/internal/domain/session"
	"github.com/makkenzo/license-key-service/internal/ierr"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const sessionKeyPrefix = "license:session:"

type SessionStore struct {
	client *redis.Client
	logger *zap.Logger
}

func NewSessionStore(client *redis.Client, logger *zap.Logger) *SessionStore {
	return &SessionStore{
		client: client,
		logger: logger.Named("SessionStore"),
	}
}

var _ session.Store = (*SessionStore)(nil)

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

func (s *SessionStore) Save(ctx context.Context, sess *session.Session, ttl time.Duration) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(sess.ID), payload, ttl).Err(); err != nil {
		s.logger.Error("Failed to save session", zap.String("session_id", sess.ID), zap.Error(err))
		return fmt.Errorf("redis error saving session: %w", err)
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, id string) (*session.Session, error) {
	payload, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ierr.ErrSessionNotFound
		}
		s.logger.Error("Failed to load session", zap.String("session_id", id), zap.Error(err))
		return nil, fmt.Errorf("redis error loading session: %w", err)
	}

	var sess session.Session
	if err := json.Unmarshal(payload, &sess); err != nil {
		s.logger.Warn("Discarding unreadable session payload", zap.String("session_id", id), zap.Error(err))
		_ = s.client.Del(ctx, sessionKey(id)).Err()
		return nil, ierr.ErrSessionNotFound
	}
	return &sess, nil
}

func (s *SessionStore) Touch(ctx context.Context, id string, ttl time.Duration) error {
	ok, err := s.client.Expire(ctx, sessionKey(id), ttl).Result()
	if err != nil {
		return fmt.Errorf("redis error refreshing session: %w", err)
	}
	if !ok {
		return ierr.ErrSessionNotFound
	}
	return nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("redis error deleting session: %w", err)
	}
	return nil
}
