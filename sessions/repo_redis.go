package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var _ Repo = (*RedisRepo)(nil)

// RedisRepo stores each session as a JSON value that expires with the session,
// plus a per-admin set of session keys.
type RedisRepo struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisRepo creates a Redis-backed session store.
func NewRedisRepo(client redis.UniversalClient) *RedisRepo {
	return &RedisRepo{
		client: client,
		prefix: "tf:session:",
	}
}

func (r *RedisRepo) key(key string) string {
	return r.prefix + key
}

func (r *RedisRepo) adminKey(adminUserID string) string {
	return r.prefix + "admin:" + adminUserID
}

func (r *RedisRepo) Create(ctx context.Context, session Session) error {
	if session.Key == "" || session.AdminUserID == "" {
		return errors.New("session: missing key or admin user id")
	}

	// TTL comes from the session's own timestamps so it follows the caller's clock.
	ttl := session.ExpiresAt.Sub(session.CreatedAt)
	if ttl <= 0 {
		return errors.New("session: expires_at must be after created_at")
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("[sessions RedisRepo.Create] marshal: %w", err)
	}

	created, err := r.client.SetNX(ctx, r.key(session.Key), data, ttl).Result()
	if err != nil {
		return fmt.Errorf("[sessions RedisRepo.Create] %w", err)
	}
	if !created {
		return errors.New("session key already exists")
	}

	adminKey := r.adminKey(session.AdminUserID)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, adminKey, session.Key)
		// Sessions share one max age, so the newest session outlives the rest.
		pipe.Expire(ctx, adminKey, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("[sessions RedisRepo.Create] index: %w", err)
	}
	return nil
}

func (r *RedisRepo) Get(ctx context.Context, key string) (*Session, error) {
	val, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil // not found
	}
	if err != nil {
		return nil, fmt.Errorf("[sessions RedisRepo.Get] %w", err)
	}

	var s Session
	if err := json.Unmarshal([]byte(val), &s); err != nil {
		return nil, fmt.Errorf("[sessions RedisRepo.Get] %w: %v", ErrCorruptRecord, err)
	}
	return &s, nil
}

func (r *RedisRepo) Delete(ctx context.Context, key string) error {
	val, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("[sessions RedisRepo.Delete] %w", err)
	}

	// An undecodable record is still removed; its admin index entry expires with the set.
	var session Session
	indexed := json.Unmarshal([]byte(val), &session) == nil && session.AdminUserID != ""

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.key(key))
		if indexed {
			pipe.SRem(ctx, r.adminKey(session.AdminUserID), key)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("[sessions RedisRepo.Delete] %w", err)
	}
	return nil
}

func (r *RedisRepo) DeleteForAdmin(ctx context.Context, adminUserID string) error {
	adminKey := r.adminKey(adminUserID)
	keys, err := r.client.SMembers(ctx, adminKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("[sessions RedisRepo.DeleteForAdmin] %w", err)
	}
	if len(keys) == 0 {
		return nil
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, key := range keys {
			pipe.Del(ctx, r.key(key))
		}
		pipe.SRem(ctx, adminKey, toAny(keys)...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("[sessions RedisRepo.DeleteForAdmin] %w", err)
	}
	return nil
}

// DeleteExpired is a no-op: session keys carry their own TTL.
func (r *RedisRepo) DeleteExpired(context.Context, time.Time) error {
	return nil
}

func toAny(keys []string) []any {
	out := make([]any, len(keys))
	for i, k := range keys {
		out[i] = k
	}
	return out
}
