package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix   = "neko:token:"
	redisIndexPrefix = "neko:user-tokens:"
)

// redisStore keeps device tokens as JSON values with native TTL, one
// key per (username, tokenID), plus a per-user set of token ids.
// Enumeration reads the set, never a glob SCAN: usernames are opaque
// bytes to the store and must not be able to widen a match into
// another user's namespace.
type redisStore struct {
	rdb *redis.Client
}

// NewRedisStore creates a Redis-backed token store.
func NewRedisStore(rdb *redis.Client) Store {
	return &redisStore{rdb: rdb}
}

func (s *redisStore) key(username, tokenID string) string {
	return redisKeyPrefix + username + ":" + tokenID
}

func (s *redisStore) indexKey(username string) string {
	return redisIndexPrefix + username
}

func (s *redisStore) Put(ctx context.Context, t Token) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("session: marshal token: %w", err)
	}
	ttl := time.Until(t.ExpiresAt)
	if ttl <= 0 {
		// Already expired, keep nothing.
		_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, s.key(t.Username, t.TokenID))
			pipe.SRem(ctx, s.indexKey(t.Username), t.TokenID)
			return nil
		})
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(t.Username, t.TokenID), data, ttl)
		pipe.SAdd(ctx, s.indexKey(t.Username), t.TokenID)
		return nil
	})
	return err
}

func (s *redisStore) Get(ctx context.Context, username, tokenID string) (*Token, error) {
	val, err := s.rdb.Get(ctx, s.key(username, tokenID)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var t Token
	if err := json.Unmarshal([]byte(val), &t); err != nil {
		return nil, fmt.Errorf("session: unmarshal token: %w", err)
	}
	return &t, nil
}

func (s *redisStore) ListByUser(ctx context.Context, username string) ([]Token, error) {
	ids, err := s.rdb.SMembers(ctx, s.indexKey(username)).Result()
	if err != nil {
		return nil, err
	}

	tokens := make([]Token, 0, len(ids))
	var stale []interface{}
	for _, id := range ids {
		val, err := s.rdb.Get(ctx, s.key(username, id)).Result()
		if err == redis.Nil {
			// Value expired; the index member lags behind.
			stale = append(stale, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		var t Token
		if err := json.Unmarshal([]byte(val), &t); err != nil {
			return nil, fmt.Errorf("session: unmarshal token: %w", err)
		}
		tokens = append(tokens, t)
	}
	if len(stale) > 0 {
		// Best-effort reap; the set disappears once its last member goes.
		s.rdb.SRem(ctx, s.indexKey(username), stale...)
	}

	sort.Slice(tokens, func(i, j int) bool {
		return tokens[i].IssuedAt.After(tokens[j].IssuedAt)
	})
	return tokens, nil
}

func (s *redisStore) Delete(ctx context.Context, username, tokenID string) (bool, error) {
	var del *redis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, s.key(username, tokenID))
		pipe.SRem(ctx, s.indexKey(username), tokenID)
		return nil
	})
	if err != nil {
		return false, err
	}
	return del.Val() > 0, nil
}

func (s *redisStore) DeleteAllByUser(ctx context.Context, username string) (int, error) {
	ids, err := s.rdb.SMembers(ctx, s.indexKey(username)).Result()
	if err != nil {
		return 0, err
	}

	removed := 0
	if len(ids) > 0 {
		keys := make([]string, len(ids))
		for i, id := range ids {
			keys[i] = s.key(username, id)
		}
		n, err := s.rdb.Del(ctx, keys...).Result()
		if err != nil {
			return int(n), err
		}
		removed = int(n)
	}
	if err := s.rdb.Del(ctx, s.indexKey(username)).Err(); err != nil {
		return removed, err
	}
	return removed, nil
}
