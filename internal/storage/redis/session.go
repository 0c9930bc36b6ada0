// Package redis implements session.Store on Redis hashes.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/bookshelf/internal/domain/session"
)

const defaultKeyPrefix = "bookshelf:session:"

var _ session.Store = (*SessionStore)(nil)

// SessionStore keeps each session in one hash, one field per document.
// Every write extends the session's expiry by ttl.
type SessionStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewSessionStore returns a SessionStore over an existing client. A zero ttl
// keeps sessions forever.
func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, keyPrefix: defaultKeyPrefix, ttl: ttl}
}

// Connect parses url, opens a client and pings it.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func (s *SessionStore) key(sessionID string) string {
	return s.keyPrefix + sessionID
}

// Get returns nil, nil for a missing session or field.
func (s *SessionStore) Get(ctx context.Context, sessionID, key string) ([]byte, error) {
	raw, err := s.client.HGet(ctx, s.key(sessionID), key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting session field %q: %w", key, err)
	}
	return raw, nil
}

func (s *SessionStore) Put(ctx context.Context, sessionID, key string, value []byte) error {
	k := s.key(sessionID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, k, key, value)
		if s.ttl > 0 {
			pipe.Expire(ctx, k, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("setting session field %q: %w", key, err)
	}
	return nil
}

func (s *SessionStore) Delete(ctx context.Context, sessionID, key string) error {
	if err := s.client.HDel(ctx, s.key(sessionID), key).Err(); err != nil {
		return fmt.Errorf("deleting session field %q: %w", key, err)
	}
	return nil
}

// Ping reports whether Redis is reachable.
func (s *SessionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
