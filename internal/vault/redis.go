package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"backup_vault/internal/model"
)

const (
	accountKeyPrefix = "vault:user:"
	usersSetKey      = "vault:users"
)

// RedisStore keeps each account as a JSON value under vault:user:<name>
// and tracks membership in the vault:users set. Mutations run inside
// WATCH-guarded transactions, so a raced retrieval aborts and re-reads
// instead of double-issuing an envelope.
type RedisStore struct {
	rdb      *redis.Client
	cooldown time.Duration
	now      func() time.Time
}

func NewRedisStore(rdb *redis.Client, cooldown time.Duration) *RedisStore {
	return &RedisStore{
		rdb:      rdb,
		cooldown: cooldown,
		now:      time.Now,
	}
}

func accountKey(username string) string {
	return accountKeyPrefix + username
}

func (s *RedisStore) Register(ctx context.Context, username string, envelopes []string) error {
	if err := validateRegistration(username, envelopes); err != nil {
		return err
	}

	acc := model.Account{
		Username:        username,
		Envelopes:       envelopes,
		RedeemedIndices: []int{},
		CreatedAt:       s.now(),
	}
	data, err := json.Marshal(&acc)
	if err != nil {
		return fmt.Errorf("marshal account: %w", err)
	}

	key := accountKey(username)
	for {
		err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			n, err := tx.Exists(ctx, key).Result()
			if err != nil {
				return err
			}
			if n > 0 {
				return ErrAlreadyExists
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, data, 0)
				pipe.SAdd(ctx, usersSetKey, username)
				return nil
			})
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil && !errors.Is(err, ErrAlreadyExists) {
			return fmt.Errorf("redis error: %w", err)
		}
		return err
	}
}

func (s *RedisStore) RetrieveNext(ctx context.Context, username string) (*Retrieval, error) {
	key := accountKey(username)

	for {
		var result *Retrieval
		err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				return ErrNotFound
			}
			if err != nil {
				return err
			}

			var acc model.Account
			if err := json.Unmarshal(data, &acc); err != nil {
				return fmt.Errorf("unmarshal account: %w", err)
			}

			now := s.now()
			if wait := cooldownRemaining(acc.LastRequest, now, s.cooldown); wait > 0 {
				return &RateLimitedError{RetryAfter: wait}
			}

			idx := acc.NextUnredeemed()
			if idx < 0 {
				return ErrExhausted
			}

			acc.RedeemedIndices = append(acc.RedeemedIndices, idx)
			acc.LastRequest = &now

			updated, err := json.Marshal(&acc)
			if err != nil {
				return fmt.Errorf("marshal account: %w", err)
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, 0)
				return nil
			})
			if err != nil {
				return err
			}

			result = &Retrieval{
				Envelope:  acc.Envelopes[idx],
				Remaining: acc.Remaining(),
				Total:     len(acc.Envelopes),
			}
			return nil
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}
}

func (s *RedisStore) Reset(ctx context.Context, username string) error {
	key := accountKey(username)

	for {
		err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			n, err := tx.Exists(ctx, key).Result()
			if err != nil {
				return err
			}
			if n == 0 {
				return ErrNotFound
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				pipe.SRem(ctx, usersSetKey, username)
				return nil
			})
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("redis error: %w", err)
		}
		return err
	}
}

func (s *RedisStore) Count(ctx context.Context) (int64, error) {
	n, err := s.rdb.SCard(ctx, usersSetKey).Result()
	if err != nil {
		return 0, fmt.Errorf("redis error: %w", err)
	}
	return n, nil
}
