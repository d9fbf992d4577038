package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps transport failures talking to Redis.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrNotFound is returned when no record exists for a session id.
var ErrNotFound = errors.New("session not found")

// ErrExpired is returned when a record exists but its absolute expiry has passed.
var ErrExpired = errors.New("session expired")

// ErrCorrupt is returned when a stored record cannot be decoded.
var ErrCorrupt = errors.New("session corrupt")

const deleteSessionScript = `
local existed = redis.call("EXISTS", KEYS[1])
if existed == 1 then
  redis.call("DEL", KEYS[1])
  redis.call("SREM", KEYS[2], ARGV[1])
end
return existed
`

var deleteSessionLua = redis.NewScript(deleteSessionScript)

// Store persists sessions as binary records with a Redis TTL, plus a
// per-principal index of live session ids.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

func NewStore(redis redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "kg"
	}
	return &Store{
		redis:  redis,
		prefix: prefix,
	}
}

func (s *Store) key(sessionID string) string {
	return s.prefix + ":s:" + sessionID
}

func (s *Store) principalKey(kind Kind, principalID string) string {
	return s.prefix + ":sp:" + kind.String() + ":" + principalID
}

// Save writes sess with ttl and indexes it under its principal.
func (s *Store) Save(ctx context.Context, sess *Session, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("session ttl must be > 0")
	}
	data, err := Encode(sess)
	if err != nil {
		return err
	}

	principalKey := s.principalKey(sess.Kind, sess.PrincipalID)
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(sess.SessionID), data, ttl)
		pipe.SAdd(ctx, principalKey, sess.SessionID)
		pipe.Expire(ctx, principalKey, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// Get loads a session. A record past ExpiresAt is deleted and reported as ErrExpired.
func (s *Store) Get(ctx context.Context, sessionID string, now time.Time) (*Session, error) {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	sess.SessionID = sessionID

	if now.Unix() >= sess.ExpiresAt {
		if err := s.deleteSessionAndIndex(ctx, sess.Kind, sess.PrincipalID, sessionID); err != nil {
			return nil, err
		}
		return nil, ErrExpired
	}

	return sess, nil
}

// Delete removes a session. Deleting a missing session is not an error.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		// Unreadable records are still removable.
		if err := s.redis.Del(ctx, s.key(sessionID)).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		return nil
	}

	return s.deleteSessionAndIndex(ctx, sess.Kind, sess.PrincipalID, sessionID)
}

// ActiveSessionIDs lists indexed session ids for a principal. Ids may
// reference sessions that have since expired.
func (s *Store) ActiveSessionIDs(ctx context.Context, kind Kind, principalID string) ([]string, error) {
	ids, err := s.redis.SMembers(ctx, s.principalKey(kind, principalID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return ids, nil
}

// Ping checks Redis reachability and returns the round-trip time.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

func (s *Store) deleteSessionAndIndex(ctx context.Context, kind Kind, principalID, sessionID string) error {
	keys := []string{s.key(sessionID), s.principalKey(kind, principalID)}
	if _, err := deleteSessionLua.Run(ctx, s.redis, keys, sessionID).Result(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
