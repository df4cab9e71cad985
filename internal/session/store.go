// Package session stores login sessions and per-session game state in Redis.
package session

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Enzo1603/nethz/internal/domain"
	"github.com/Enzo1603/nethz/internal/errors"
)

const defaultTTL = 24 * time.Hour

type Config struct {
	Redis  redis.UniversalClient
	Prefix string
	// TTL bounds the lifetime of a login session and everything scoped to it.
	TTL time.Duration
}

type Store struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewStore(c Config) *Store {
	ttl := c.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}

	return &Store{
		redis:  c.Redis,
		prefix: c.Prefix,
		ttl:    ttl,
	}
}

// TTL is the configured session lifetime. Anything mirroring the session
// elsewhere, like the login cookie, should expire together with it.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Create opens a new login session for username and returns the session ID.
func (s *Store) Create(ctx context.Context, username string) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("session: generate session ID: %w", err)
	}

	if err := s.redis.Set(ctx, s.sessionKey(id.String()), username, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("session: create: %w", err)
	}

	return id.String(), nil
}

// Resolve maps a session ID back to its username. An unknown or expired
// session yields an unauthenticated error.
func (s *Store) Resolve(ctx context.Context, sessionID string) (string, error) {
	username, err := s.redis.Get(ctx, s.sessionKey(sessionID)).Result()
	if stderrors.Is(err, redis.Nil) {
		return "", errors.New(errors.CodeUnauthenticated,
			errors.WithMessagef("unknown or expired session"))
	}
	if err != nil {
		return "", fmt.Errorf("session: resolve: %w", err)
	}

	return username, nil
}

// Delete ends a login session. Game state scoped to the session is left to
// expire with its TTL.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if err := s.redis.Del(ctx, s.sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("session: delete: %w", err)
	}

	return nil
}

// SaveGame stores the game state for one mode within the session.
func (s *Store) SaveGame(ctx context.Context, sessionID string, state domain.GameState) error {
	b, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("session: marshal game state: %w", err)
	}

	if err := s.redis.Set(ctx, s.gameKey(sessionID, state.Mode), b, s.ttl).Err(); err != nil {
		return fmt.Errorf("session: save game state: %w", err)
	}

	return nil
}

// LoadGame returns the stored game state for one mode within the session.
// The second return value reports whether any state was present.
func (s *Store) LoadGame(ctx context.Context, sessionID string, mode domain.Mode) (domain.GameState, bool, error) {
	b, err := s.redis.Get(ctx, s.gameKey(sessionID, mode)).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return domain.GameState{}, false, nil
	}
	if err != nil {
		return domain.GameState{}, false, fmt.Errorf("session: load game state: %w", err)
	}

	var state domain.GameState
	if err := json.Unmarshal(b, &state); err != nil {
		return domain.GameState{}, false, fmt.Errorf("session: unmarshal game state: %w", err)
	}

	return state, true, nil
}

func (s *Store) sessionKey(id string) string {
	return fmt.Sprintf("%s:session:%s", s.prefix, id)
}

func (s *Store) gameKey(id string, mode domain.Mode) string {
	return fmt.Sprintf("%s:game:%s:%s", s.prefix, id, mode)
}
