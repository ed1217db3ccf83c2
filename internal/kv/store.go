// Package kv wraps Redis as the key/value store used for sessions and
// the record cache.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/charadev96/ratewise/internal/shared/log"
)

// ErrUnavailable is returned while the connection monitor considers the
// server unreachable. Operations fail instead of queueing.
var ErrUnavailable = errors.New("key/value store unavailable")

type Options struct {
	Addr         string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PingInterval time.Duration
	BackoffCap   time.Duration
}

type Store struct {
	client     redis.UniversalClient
	subscriber redis.UniversalClient
	opts       Options
	logger     *zerolog.Logger

	down    atomic.Bool
	backoff func(attempt int) time.Duration
}

func New(ctx context.Context, opts Options, logger *zerolog.Logger) (*Store, error) {
	if opts.PingInterval <= 0 {
		opts.PingInterval = 5 * time.Second
	}
	if opts.BackoffCap <= 0 {
		opts.BackoffCap = DefaultBackoffCap
	}
	ropts := &redis.UniversalOptions{
		Addrs:        []string{opts.Addr},
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		MaxRetries:   -1,
	}
	s := &Store{
		client: redis.NewUniversalClient(ropts),
		// pub/sub blocks its connection, so it gets a client of its own
		subscriber: redis.NewUniversalClient(ropts),
		opts:       opts,
		logger:     log.OrNop(logger),
	}
	s.backoff = func(attempt int) time.Duration {
		return Backoff(attempt, s.opts.BackoffCap)
	}

	if err := s.Ping(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}
	s.logger.Info().
		Str("address", opts.Addr).
		Int("db", opts.DB).
		Msg("connected to redis")
	return s, nil
}

func (s *Store) Close() error {
	return errors.Join(s.client.Close(), s.subscriber.Close())
}

func (s *Store) Ping(ctx context.Context) error {
	if s.opts.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.DialTimeout)
		defer cancel()
	}
	return s.client.Ping(ctx).Err()
}

func (s *Store) ready() error {
	if s.down.Load() {
		return ErrUnavailable
	}
	return nil
}

// Get decodes the JSON value at key into dst. A value that is not JSON is
// handed over as is when dst is a *string.
func (s *Store) Get(ctx context.Context, key string, dst any) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get '%s': %w", key, err)
	}
	if err := decode(raw, dst); err != nil {
		return false, fmt.Errorf("failed to decode '%s': %w", key, err)
	}
	return true, nil
}

// GetMany reads all keys in one round trip. Missing keys yield nil.
func (s *Store) GetMany(ctx context.Context, keys ...string) ([][]byte, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get %d keys: %w", len(keys), err)
	}
	out := make([][]byte, len(vals))
	for i, v := range vals {
		switch typed := v.(type) {
		case nil:
		case string:
			out[i] = []byte(typed)
		case []byte:
			out[i] = typed
		default:
			return nil, fmt.Errorf("unexpected redis value type %T", v)
		}
	}
	return out, nil
}

// Set stores value at key. A zero ttl keeps the key until deleted.
func (s *Store) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if err := s.ready(); err != nil {
		return err
	}
	data, err := encode(value)
	if err != nil {
		return fmt.Errorf("failed to encode '%s': %w", key, err)
	}
	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set '%s': %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete %d keys: %w", len(keys), err)
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check '%s': %w", key, err)
	}
	return n > 0, nil
}

func (s *Store) SetAdd(ctx context.Context, key string, members ...string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.client.SAdd(ctx, key, toAny(members)...).Err(); err != nil {
		return fmt.Errorf("failed to add to set '%s': %w", key, err)
	}
	return nil
}

var setAddCappedScript = redis.NewScript(`
if redis.call("SISMEMBER", KEYS[1], ARGV[1]) == 1 then
  return 1
end
if redis.call("SCARD", KEYS[1]) >= tonumber(ARGV[2]) then
  return 0
end
redis.call("SADD", KEYS[1], ARGV[1])
return 1
`)

// SetAddCapped adds member to the set at key unless the set already holds
// limit members. Check and add run as one script, so concurrent callers
// cannot overshoot limit.
func (s *Store) SetAddCapped(ctx context.Context, key, member string, limit int) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	added, err := setAddCappedScript.Run(ctx, s.client, []string{key}, member, limit).Int()
	if err != nil {
		return false, fmt.Errorf("failed to add to set '%s': %w", key, err)
	}
	return added == 1, nil
}

func (s *Store) SetRemove(ctx context.Context, key string, members ...string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.client.SRem(ctx, key, toAny(members)...).Err(); err != nil {
		return fmt.Errorf("failed to remove from set '%s': %w", key, err)
	}
	return nil
}

func (s *Store) SetIsMember(ctx context.Context, key, member string) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	ok, err := s.client.SIsMember(ctx, key, member).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check set '%s': %w", key, err)
	}
	return ok, nil
}

func (s *Store) SetMembers(ctx context.Context, key string) ([]string, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	members, err := s.client.SMembers(ctx, key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read set '%s': %w", key, err)
	}
	return members, nil
}

func (s *Store) SetSize(ctx context.Context, key string) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	n, err := s.client.SCard(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count set '%s': %w", key, err)
	}
	return int(n), nil
}

func encode(value any) ([]byte, error) {
	switch v := value.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return json.Marshal(value)
	}
}

func decode(raw []byte, dst any) error {
	err := json.Unmarshal(raw, dst)
	if err == nil {
		return nil
	}
	if str, ok := dst.(*string); ok {
		*str = string(raw)
		return nil
	}
	return err
}

func toAny(members []string) []any {
	out := make([]any, len(members))
	for i, m := range members {
		out[i] = m
	}
	return out
}
