package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "call:session:"
	sessionIndexKey  = "call:session:index"
	sessionTTL       = 24 * time.Hour
)

// RedisSessionStore persists live call sessions in Redis so any API
// instance can serve a webhook for any call. A sorted-set index keyed by
// deadline drives SweepExpired without scanning every session.
type RedisSessionStore struct {
	rdb *redis.Client
}

func NewRedisSessionStore(rdb *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{rdb: rdb}
}

func sessionKey(callID string) string {
	return sessionKeyPrefix + callID
}

func (s *RedisSessionStore) Get(ctx context.Context, callID string) (*CallSession, error) {
	data, err := s.rdb.Get(ctx, sessionKey(callID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("call session: get: %w", err)
	}
	var session CallSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("call session: unmarshal: %w", err)
	}
	return &session, nil
}

func (s *RedisSessionStore) Put(ctx context.Context, session *CallSession) error {
	if session == nil || session.CallID == "" {
		return fmt.Errorf("call session: call_id required")
	}
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("call session: marshal: %w", err)
	}
	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, sessionKey(session.CallID), data, sessionTTL)
	pipe.ZAdd(ctx, sessionIndexKey, redis.Z{
		Score:  float64(session.Deadline.Unix()),
		Member: session.CallID,
	})
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisSessionStore) Delete(ctx context.Context, callID string) error {
	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, sessionKey(callID))
	pipe.ZRem(ctx, sessionIndexKey, callID)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisSessionStore) SweepExpired(ctx context.Context, now time.Time, grace time.Duration) ([]string, error) {
	cutoff := now.Add(-grace).Unix()
	ids, err := s.rdb.ZRangeByScore(ctx, sessionIndexKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", cutoff),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("call session: sweep: %w", err)
	}
	var reaped []string
	for _, id := range ids {
		session, err := s.Get(ctx, id)
		if err != nil {
			continue
		}
		if session == nil {
			// Key already expired via TTL; drop the index entry.
			_ = s.rdb.ZRem(ctx, sessionIndexKey, id).Err()
			continue
		}
		if session.Expired(now, grace) {
			if err := s.Delete(ctx, id); err == nil {
				reaped = append(reaped, id)
			}
		}
	}
	return reaped, nil
}
