package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "console:session:"

// RedisStore keeps one JSON value per client id. When the token carries an
// exp claim the key expires with it.
type RedisStore struct {
	rc      *redis.Client
	nowFunc func() time.Time
}

func NewRedisStore(ctx context.Context, rc *redis.Client) (*RedisStore, error) {
	if rc == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if err := rc.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis: failed to ping server: %w", err)
	}
	return &RedisStore{rc: rc, nowFunc: time.Now}, nil
}

func redisKey(clientID string) string {
	return redisKeyPrefix + clientID
}

func (s *RedisStore) Load(ctx context.Context, clientID string) (Session, error) {
	raw, err := s.rc.Get(ctx, redisKey(clientID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, ErrNotFound
		}
		return Session{}, fmt.Errorf("get session: %w", err)
	}
	var r record
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}
	return fromRecord(r), nil
}

func (s *RedisStore) Save(ctx context.Context, clientID string, sess Session) error {
	if !sess.Authenticated() {
		return ErrIncompleteSession
	}
	b, err := json.Marshal(sess.record())
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	var ttl time.Duration
	if exp, ok := TokenExpiry(sess.Token()); ok {
		ttl = exp.Sub(s.nowFunc())
		if ttl < time.Second {
			ttl = time.Second
		}
	}
	if err := s.rc.Set(ctx, redisKey(clientID), string(b), ttl).Err(); err != nil {
		return fmt.Errorf("set session: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, clientID string) error {
	if err := s.rc.Del(ctx, redisKey(clientID)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *RedisStore) All(ctx context.Context) (map[string]Session, error) {
	out := make(map[string]Session)
	var cursor uint64
	for {
		keys, next, err := s.rc.Scan(ctx, cursor, redisKeyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("scan sessions: %w", err)
		}
		for _, key := range keys {
			id := strings.TrimPrefix(key, redisKeyPrefix)
			sess, err := s.Load(ctx, id)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			out[id] = sess
		}
		if next == 0 {
			return out, nil
		}
		cursor = next
	}
}
