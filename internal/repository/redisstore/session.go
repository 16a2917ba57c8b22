// Package redisstore keeps browser sessions in Redis instead of SQLite.
//
// Each session is one key, "session:<id>", holding a small JSON document.
// The key's TTL matches the session expiry, so Redis evicts stale sessions
// on its own and no cleanup job is needed.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sakif/tasklist/internal/apperror"
	"github.com/sakif/tasklist/internal/model"
	"github.com/sakif/tasklist/internal/repository"
)

const keyPrefix = "session:"

var _ repository.SessionRepository = (*SessionStore)(nil)

var errSessionNotFound = &apperror.AppError{Err: apperror.ErrNotFound, Message: "session not found"}

// SessionStore implements repository.SessionRepository on a Redis client.
type SessionStore struct {
	client redis.UniversalClient
}

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// Open connects to Redis and verifies the connection with PING.
func Open(ctx context.Context, opts Options) (*SessionStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redisstore: pinging %s: %w", opts.Addr, err)
	}

	return &SessionStore{client: client}, nil
}

// New wraps an existing client. The caller keeps ownership of it.
func New(client redis.UniversalClient) *SessionStore {
	return &SessionStore{client: client}
}

// Close closes the underlying client.
func (s *SessionStore) Close() error {
	return s.client.Close()
}

// Ping verifies Redis is reachable. Used by the health endpoint.
func (s *SessionStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redisstore: ping: %w", err)
	}
	return nil
}

type sessionRecord struct {
	UserID    int64 `json:"user_id"`
	ExpiresAt int64 `json:"expires_at"`
	CreatedAt int64 `json:"created_at"`
}

// CreateSession stores the session with a TTL equal to its remaining lifetime.
func (s *SessionStore) CreateSession(ctx context.Context, session *model.Session) error {
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}

	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("redisstore: session already expired")
	}

	payload, err := json.Marshal(sessionRecord{
		UserID:    session.UserID,
		ExpiresAt: session.ExpiresAt.Unix(),
		CreatedAt: session.CreatedAt.Unix(),
	})
	if err != nil {
		return fmt.Errorf("redisstore: encoding session: %w", err)
	}

	if err := s.client.Set(ctx, keyPrefix+session.ID, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redisstore: storing session: %w", err)
	}
	return nil
}

// FindSession returns apperror.ErrNotFound for unknown or expired ids.
func (s *SessionStore) FindSession(ctx context.Context, id string) (*model.Session, error) {
	payload, err := s.client.Get(ctx, keyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errSessionNotFound
		}
		return nil, fmt.Errorf("redisstore: loading session: %w", err)
	}

	var rec sessionRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("redisstore: decoding session: %w", err)
	}

	session := &model.Session{
		ID:        id,
		UserID:    rec.UserID,
		ExpiresAt: time.Unix(rec.ExpiresAt, 0).UTC(),
		CreatedAt: time.Unix(rec.CreatedAt, 0).UTC(),
	}

	// The key TTL has one-second granularity at worst; double-check.
	if session.Expired(time.Now()) {
		return nil, errSessionNotFound
	}

	return session, nil
}

// DeleteSession removes the key. Deleting an unknown id is not an error.
func (s *SessionStore) DeleteSession(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, keyPrefix+id).Err(); err != nil {
		return fmt.Errorf("redisstore: deleting session: %w", err)
	}
	return nil
}
