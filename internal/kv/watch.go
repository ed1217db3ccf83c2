package kv

import (
	"context"
	"math/rand/v2"
	"time"
)

const (
	DefaultBackoffCap = 30 * time.Second

	backoffBase   = 50 * time.Millisecond
	backoffJitter = time.Second
)

// Backoff returns min(2^attempt * 50ms, ceiling) plus up to a second of
// jitter.
func Backoff(attempt int, ceiling time.Duration) time.Duration {
	if ceiling <= 0 {
		ceiling = DefaultBackoffCap
	}
	delay := ceiling
	if attempt < 0 {
		attempt = 0
	}
	if attempt < 32 {
		if d := backoffBase << attempt; d > 0 && d < ceiling {
			delay = d
		}
	}
	return delay + rand.N(backoffJitter)
}

// Watch pings the server until ctx is done. When a ping fails the store is
// marked unavailable and reconnection is retried with Backoff.
func (s *Store) Watch(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		err := s.Ping(ctx)
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			return nil
		}
		s.logger.Error().
			Err(err).
			Str("address", s.opts.Addr).
			Msg("lost connection to redis")
		s.reconnect(ctx)
	}
}

func (s *Store) reconnect(ctx context.Context) {
	s.down.Store(true)
	for attempt := 0; ; attempt++ {
		delay := s.backoff(attempt)
		s.logger.Warn().
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("reconnecting to redis")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if err := s.Ping(ctx); err != nil {
			s.logger.Debug().Err(err).Msg("redis still unreachable")
			continue
		}
		s.down.Store(false)
		s.logger.Info().
			Int("attempts", attempt+1).
			Msg("reconnected to redis")
		return
	}
}

// Available reports whether operations are currently attempted.
func (s *Store) Available() bool {
	return !s.down.Load()
}
