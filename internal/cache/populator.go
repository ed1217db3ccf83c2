package cache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/charadev96/ratewise/internal/shared/log"
)

const DefaultWorkers = 8

// Writer is where populated entries go.
type Writer interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Populator writes cache entries in the background with a bounded number
// of concurrent writes. Jobs that find every worker busy are dropped.
type Populator struct {
	store   Writer
	ttl     time.Duration
	logger  *zerolog.Logger
	group   errgroup.Group
	dropped atomic.Int64
}

func NewPopulator(store Writer, ttl time.Duration, workers int, logger *zerolog.Logger) *Populator {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	p := &Populator{
		store:  store,
		ttl:    ttl,
		logger: log.OrNop(logger),
	}
	p.group.SetLimit(workers)
	return p
}

// Enqueue schedules a write of value under key and returns immediately.
// The write outlives the cancellation of ctx.
func (p *Populator) Enqueue(ctx context.Context, key string, value any) {
	p.EnqueueIf(ctx, key, value, nil)
}

// EnqueueIf is Enqueue with a guard checked right before the write. A nil
// guard always writes.
func (p *Populator) EnqueueIf(ctx context.Context, key string, value any, valid func() bool) {
	ctx = context.WithoutCancel(ctx)
	ok := p.group.TryGo(func() error {
		if valid != nil && !valid() {
			p.logger.Debug().Str("key", key).Msg("cache entry outdated, skipping write")
			return nil
		}
		if err := p.store.Set(ctx, key, value, p.ttl); err != nil {
			p.logger.Warn().Err(err).Str("key", key).Msg("failed to populate cache")
		}
		return nil
	})
	if !ok {
		p.dropped.Add(1)
		p.logger.Debug().Str("key", key).Msg("cache populator saturated, dropping write")
	}
}

// Dropped reports how many writes were skipped because the populator was
// saturated.
func (p *Populator) Dropped() int64 {
	return p.dropped.Load()
}

// Wait blocks until every scheduled write has finished.
func (p *Populator) Wait() {
	_ = p.group.Wait()
}
