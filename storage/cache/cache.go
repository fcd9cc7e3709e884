// Package cache keeps the active records of staff members in redis,
// in front of any repository.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/adribv/edutool/core"
)

const keyPrefix = "edutool:"

// NewClient returns a redis client for the configuration and checks it answers.
func NewClient(ctx context.Context, conf *core.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return client, nil
}

// backend is what the repositories need from the cache.
// A fill only lands when no write invalidated the key since the generation was read.
type backend interface {
	get(ctx context.Context, key string, v interface{}) bool
	generation(ctx context.Context, key string) (gen int64, ok bool)
	fill(ctx context.Context, key string, gen int64, v interface{})
	invalidate(ctx context.Context, key string)
}

var errStaleFill = errors.New("cache generation moved")

type store struct {
	client redis.UniversalClient
	ttl    time.Duration
	logger core.Logger
}

var _ backend = store{}

func generationKey(key string) string {
	return key + ":gen"
}

func readGeneration(ctx context.Context, c interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}, key string) (int64, error) {
	gen, err := c.Get(ctx, generationKey(key)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return gen, err
}

func (s store) get(ctx context.Context, key string, v interface{}) bool {
	b, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.warn("cache read failed", key, err)
		}
		return false
	}
	if err = json.Unmarshal(b, v); err != nil {
		s.warn("cache decode failed", key, err)
		return false
	}
	return true
}

func (s store) generation(ctx context.Context, key string) (int64, bool) {
	gen, err := readGeneration(ctx, s.client, key)
	if err != nil {
		s.warn("cache generation read failed", key, err)
		return 0, false
	}
	return gen, true
}

// fill stores v under key if the generation of key still equals gen.
func (s store) fill(ctx context.Context, key string, gen int64, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		s.warn("cache encode failed", key, err)
		return
	}

	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := readGeneration(ctx, tx, key)
		if err != nil {
			return err
		}
		if cur != gen {
			return errStaleFill
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, b, s.ttl)
			return nil
		})
		return err
	}, generationKey(key))

	switch {
	case err == nil, err == errStaleFill, err == redis.TxFailedErr:
	default:
		s.warn("cache write failed", key, err)
	}
}

// invalidate bumps the generation of key and drops the cached value.
func (s store) invalidate(ctx context.Context, key string) {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKey(key))
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		s.warn("cache invalidation failed", key, err)
	}
}

func (s store) warn(msg, key string, err error) {
	if s.logger != nil {
		s.logger.Warn(msg, err, map[string]interface{}{"key": key})
	}
}
