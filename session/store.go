package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a session is absent, expired, or revoked.
var ErrNotFound = errors.New("session not found")

// ErrRedisUnavailable marks a Redis transport failure. Callers must treat it
// as a store outage, never as an absent session.
var ErrRedisUnavailable = errors.New("redis unavailable")

// Store is a Redis-backed session store. Each session lives under its own
// key with a TTL matching the token lifetime; a per-principal index set
// supports bulk revocation. Redis key expiry is the purge mechanism, and
// every read re-checks the embedded expiry so an expired-but-present entry
// behaves as absent.
//
// All operations are single-key or pipelined; there is no cross-request
// locking. A delete racing a concurrent get may let that one in-flight read
// through, which is acceptable for logout semantics.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a session [Store] backed by the given Redis client.
// prefix namespaces all keys.
func NewStore(client redis.UniversalClient, prefix string) *Store {
	return &Store{
		redis:  client,
		prefix: prefix,
	}
}

func (s *Store) key(sid string) string {
	return s.prefix + ":s:" + sid
}

func (s *Store) principalKey(principalID string) string {
	return s.prefix + ":p:" + principalID
}

// Put persists a session with the given TTL and records it in the owning
// principal's index.
func (s *Store) Put(ctx context.Context, sess *Session, ttl time.Duration) error {
	if sess == nil || sess.SID == "" || sess.PrincipalID == "" {
		return errors.New("session requires sid and principal id")
	}
	if ttl <= 0 {
		return errors.New("session ttl must be positive")
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(sess.SID), data, ttl)
		pipe.SAdd(ctx, s.principalKey(sess.PrincipalID), sess.SID)
		pipe.Expire(ctx, s.principalKey(sess.PrincipalID), ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// Get retrieves a live session by ID. Expired or corrupt entries are purged
// lazily and reported as [ErrNotFound].
func (s *Store) Get(ctx context.Context, sid string) (*Session, error) {
	data, err := s.redis.Get(ctx, s.key(sid)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		_ = s.redis.Del(ctx, s.key(sid)).Err()
		return nil, ErrNotFound
	}
	sess.SID = sid

	if time.Now().Unix() >= sess.ExpiresAt {
		if err := s.removeSession(ctx, sess.PrincipalID, sid); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}

	return &sess, nil
}

// Delete removes a session. Deleting a missing session is a no-op, so
// repeated logouts stay idempotent.
func (s *Store) Delete(ctx context.Context, sid string) error {
	data, err := s.redis.Get(ctx, s.key(sid)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		if err := s.redis.Del(ctx, s.key(sid)).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		return nil
	}

	return s.removeSession(ctx, sess.PrincipalID, sid)
}

func (s *Store) removeSession(ctx context.Context, principalID, sid string) error {
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key(sid))
		if principalID != "" {
			pipe.SRem(ctx, s.principalKey(principalID), sid)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// DeleteAllForPrincipal removes every tracked session of a principal.
//
// ATOMICITY NOTE: the index read and the deletes are separate round-trips; a
// session created in between is not captured by this call. The window is
// narrow and the stray session either expires naturally or falls to the next
// invocation.
func (s *Store) DeleteAllForPrincipal(ctx context.Context, principalID string) error {
	return s.deleteForPrincipal(ctx, principalID, "")
}

// DeleteAllExcept removes every tracked session of a principal other than
// keepSID. Used after password changes to revoke all other devices.
func (s *Store) DeleteAllExcept(ctx context.Context, principalID, keepSID string) error {
	return s.deleteForPrincipal(ctx, principalID, keepSID)
}

func (s *Store) deleteForPrincipal(ctx context.Context, principalID, keepSID string) error {
	indexKey := s.principalKey(principalID)

	sids, err := s.redis.SMembers(ctx, indexKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var sessionKeys []string
	var removed []interface{}
	for _, sid := range sids {
		if sid == keepSID {
			continue
		}
		sessionKeys = append(sessionKeys, s.key(sid))
		removed = append(removed, sid)
	}
	if len(sessionKeys) == 0 {
		return nil
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, sessionKeys...)
		if keepSID == "" {
			pipe.Del(ctx, indexKey)
		} else {
			pipe.SRem(ctx, indexKey, removed...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// ActiveSessionIDs returns the live session IDs tracked for a principal,
// pruning index entries whose sessions already expired.
func (s *Store) ActiveSessionIDs(ctx context.Context, principalID string) ([]string, error) {
	indexKey := s.principalKey(principalID)

	sids, err := s.redis.SMembers(ctx, indexKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(sids) == 0 {
		return nil, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.IntCmd, len(sids))
	for i, sid := range sids {
		cmds[i] = pipe.Exists(ctx, s.key(sid))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var live []string
	var stale []interface{}
	for i, cmd := range cmds {
		n, cmdErr := cmd.Result()
		if cmdErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, cmdErr)
		}
		if n > 0 {
			live = append(live, sids[i])
		} else {
			stale = append(stale, sids[i])
		}
	}

	if len(stale) > 0 {
		if err := s.redis.SRem(ctx, indexKey, stale...).Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return live, nil
}
