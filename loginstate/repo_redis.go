package loginstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var _ Repo = (*RedisRepo)(nil)

const defaultRedisPrefix = "tf:login-state:"

// RedisRepo keeps pending logins in Redis. Entries expire through the key TTL,
// and Take uses GETDEL so two callbacks racing on the same state cannot both win.
type RedisRepo struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisRepo creates a Redis-backed pending login repository.
func NewRedisRepo(client redis.UniversalClient) *RedisRepo {
	return &RedisRepo{
		client: client,
		prefix: defaultRedisPrefix,
	}
}

func (r *RedisRepo) key(state string) string {
	return r.prefix + state
}

func (r *RedisRepo) Save(ctx context.Context, pending PendingLogin, ttl time.Duration) error {
	if pending.State == "" {
		return errors.New("state cannot be empty")
	}
	if ttl <= 0 {
		return errors.New("ttl must be positive")
	}

	data, err := json.Marshal(pending)
	if err != nil {
		return fmt.Errorf("[loginstate RedisRepo.Save] marshal: %w", err)
	}
	if err := r.client.Set(ctx, r.key(pending.State), data, ttl).Err(); err != nil {
		return fmt.Errorf("[loginstate RedisRepo.Save] %w", err)
	}
	return nil
}

func (r *RedisRepo) Take(ctx context.Context, state string) (*PendingLogin, error) {
	val, err := r.client.GetDel(ctx, r.key(state)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("[loginstate RedisRepo.Take] %w", err)
	}

	var pending PendingLogin
	if err := json.Unmarshal([]byte(val), &pending); err != nil {
		return nil, fmt.Errorf("[loginstate RedisRepo.Take] unmarshal: %w", err)
	}
	return &pending, nil
}

// DeleteExpired is a no-op: Redis expires keys on its own.
func (r *RedisRepo) DeleteExpired(context.Context, time.Time) error {
	return nil
}
