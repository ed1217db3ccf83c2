package kv

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Tx batches writes that are applied atomically with MULTI/EXEC.
type Tx struct {
	s   *Store
	ops []func(ctx context.Context, pipe redis.Pipeliner)
	err error
}

func (s *Store) Transaction() *Tx {
	return &Tx{s: s}
}

func (t *Tx) SetAdd(key string, members ...string) *Tx {
	t.ops = append(t.ops, func(ctx context.Context, pipe redis.Pipeliner) {
		pipe.SAdd(ctx, key, toAny(members)...)
	})
	return t
}

func (t *Tx) Store(key string, value any, ttl time.Duration) *Tx {
	data, err := encode(value)
	if err != nil {
		if t.err == nil {
			t.err = fmt.Errorf("failed to encode '%s': %w", key, err)
		}
		return t
	}
	t.ops = append(t.ops, func(ctx context.Context, pipe redis.Pipeliner) {
		pipe.Set(ctx, key, data, ttl)
	})
	return t
}

func (t *Tx) Exec(ctx context.Context) error {
	if t.err != nil {
		return t.err
	}
	if len(t.ops) == 0 {
		return nil
	}
	if err := t.s.ready(); err != nil {
		return err
	}
	_, err := t.s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, op := range t.ops {
			op(ctx, pipe)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to execute transaction: %w", err)
	}
	return nil
}
