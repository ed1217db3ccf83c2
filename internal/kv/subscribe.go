package kv

import (
	"context"
	"fmt"
	"time"
)

// Handler receives one pub/sub message.
type Handler func(ctx context.Context, channel, payload string)

// EnableKeyspaceEvents asks the server to publish key expiration events.
// Managed servers often forbid CONFIG, so callers treat failure as a
// warning.
func (s *Store) EnableKeyspaceEvents(ctx context.Context) error {
	if err := s.client.ConfigSet(ctx, "notify-keyspace-events", "Ex").Err(); err != nil {
		return fmt.Errorf("failed to enable keyspace events: %w", err)
	}
	return nil
}

// Subscribe delivers messages on channels matching pattern to handler until
// ctx is done. A lost subscription is re-established with Backoff.
func (s *Store) Subscribe(ctx context.Context, pattern string, handler Handler) error {
	attempt := 0
	for {
		err := s.subscribeOnce(ctx, pattern, handler, func() { attempt = 0 })
		if ctx.Err() != nil {
			return nil
		}
		delay := s.backoff(attempt)
		attempt++
		s.logger.Warn().
			Err(err).
			Str("pattern", pattern).
			Dur("delay", delay).
			Msg("subscription lost")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

func (s *Store) subscribeOnce(ctx context.Context, pattern string, handler Handler, subscribed func()) error {
	ps := s.subscriber.PSubscribe(ctx, pattern)
	defer ps.Close()
	// Blocking reads ignore ctx; closing the subscription unblocks them.
	stop := context.AfterFunc(ctx, func() { _ = ps.Close() })
	defer stop()

	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to '%s': %w", pattern, err)
	}
	subscribed()
	s.logger.Info().
		Str("pattern", pattern).
		Msg("subscribed")

	for {
		msg, err := ps.ReceiveMessage(ctx)
		if err != nil {
			return err
		}
		handler(ctx, msg.Channel, msg.Payload)
	}
}
