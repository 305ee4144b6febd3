package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/smartmarks/internal/domain"
)

// Store keeps sessions, refresh token hashes and OAuth states in Redis.
// Raw refresh tokens never reach Redis, only their hashes.
type Store struct {
	client *redis.Client
}

// NewStore creates a new Redis store
func NewStore(client *redis.Client) *Store {
	return &Store{
		client: client,
	}
}

// Ping is used by the readiness check.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// SaveOAuthState stores a pending sign-in keyed by its state value.
func (s *Store) SaveOAuthState(ctx context.Context, state string, rec domain.OAuthState, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal oauth state: %w", err)
	}
	if err := s.client.Set(ctx, StateKey(state), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save oauth state: %w", err)
	}
	return nil
}

// ConsumeOAuthState reads and deletes a pending sign-in in one step, so a
// state value can be used once. Returns (nil, nil) when unknown or expired.
func (s *Store) ConsumeOAuthState(ctx context.Context, state string) (*domain.OAuthState, error) {
	data, err := s.client.GetDel(ctx, StateKey(state)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to consume oauth state: %w", err)
	}

	var rec domain.OAuthState
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal oauth state: %w", err)
	}
	return &rec, nil
}

// SaveSession stores the session and indexes it by refresh token hash.
func (s *Store) SaveSession(ctx context.Context, sess domain.Session, refreshHash string, ttl time.Duration) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, SessionKey(sess.ID), data, ttl)
		pipe.Set(ctx, RefreshKey(refreshHash), sess.ID, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// GetSession returns the session, or (nil, nil) when it does not exist.
func (s *Store) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	data, err := s.client.Get(ctx, SessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var sess domain.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &sess, nil
}

// rotateRefresh consumes a refresh binding and remembers it for the reuse
// window. A binding consumed within that window still resolves to its
// session id; otherwise the script returns nil.
var rotateRefresh = redis.NewScript(`
local sid = redis.call('GETDEL', KEYS[1])
if sid then
	if tonumber(ARGV[1]) > 0 then
		redis.call('SET', KEYS[2], sid, 'PX', ARGV[1])
	end
	return sid
end
return redis.call('GET', KEYS[2])
`)

// RotateRefresh swaps oldHash for newHash and extends the session. The old
// hash is consumed atomically. Replaying it within reuse still succeeds,
// so concurrent requests carrying the same cookies all get a session.
// Returns (nil, nil) when the old token or its session is gone.
func (s *Store) RotateRefresh(ctx context.Context, oldHash, newHash string, ttl, reuse time.Duration) (*domain.Session, error) {
	keys := []string{RefreshKey(oldHash), RotatedKey(oldHash)}
	sid, err := rotateRefresh.Run(ctx, s.client, keys, reuse.Milliseconds()).Text()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read refresh token: %w", err)
	}

	sess, err := s.GetSession(ctx, sid)
	if err != nil || sess == nil {
		return nil, err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, RefreshKey(newHash), sid, ttl)
		pipe.Expire(ctx, SessionKey(sid), ttl)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to rotate refresh token: %w", err)
	}
	return sess, nil
}

// DeleteSession removes the session and its refresh token. Missing keys are ignored.
func (s *Store) DeleteSession(ctx context.Context, id, refreshHash string) error {
	keys := make([]string, 0, 2)
	if id != "" {
		keys = append(keys, SessionKey(id))
	}
	if refreshHash != "" {
		keys = append(keys, RefreshKey(refreshHash))
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
