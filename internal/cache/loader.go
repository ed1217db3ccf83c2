// Package cache resolves record ids through the key/value store, falling
// back to the primary store for misses and repopulating in the background.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/charadev96/ratewise/internal/kv"
	"github.com/charadev96/ratewise/internal/pagination"
	"github.com/charadev96/ratewise/internal/shared/domain"
	"github.com/charadev96/ratewise/internal/shared/log"
)

// Store is the subset of *kv.Store the loader reads and invalidates with.
type Store interface {
	Writer
	GetMany(ctx context.Context, keys ...string) ([][]byte, error)
	Delete(ctx context.Context, keys ...string) error
}

var _ Store = (*kv.Store)(nil)

type KeyFunc func(id uuid.UUID) string

// Prefix builds a KeyFunc producing "<kind>:<id>".
func Prefix(kind string) KeyFunc {
	return func(id uuid.UUID) string { return kind + ":" + id.String() }
}

// Fetcher reads records from the primary store. Results may come back in
// any order and ids with no record are left out.
type Fetcher[T any] interface {
	FetchByIDs(ctx context.Context, ids []uuid.UUID) ([]T, error)
}

type FetcherFunc[T any] func(ctx context.Context, ids []uuid.UUID) ([]T, error)

func (f FetcherFunc[T]) FetchByIDs(ctx context.Context, ids []uuid.UUID) ([]T, error) {
	return f(ctx, ids)
}

type Loader[T any] struct {
	store     Store
	fetch     Fetcher[T]
	key       KeyFunc
	id        func(T) uuid.UUID
	populator *Populator
	logger    *zerolog.Logger

	// invalidations is bumped by Invalidate. Loads that overlap one do not
	// populate the cache.
	invalidations atomic.Uint64
}

var _ pagination.Loader[struct{}] = (*Loader[struct{}])(nil)

func NewLoader[T any](store Store, fetch Fetcher[T], key KeyFunc, id func(T) uuid.UUID, populator *Populator, logger *zerolog.Logger) *Loader[T] {
	return &Loader[T]{
		store:     store,
		fetch:     fetch,
		key:       key,
		id:        id,
		populator: populator,
		logger:    log.OrNop(logger),
	}
}

// Load returns the records for ids in the order of ids. Cache failures are
// logged and served from the primary store; primary store failures are
// returned.
func (l *Loader[T]) Load(ctx context.Context, ids []uuid.UUID) ([]T, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	gen := l.invalidations.Load()
	current := func() bool { return l.invalidations.Load() == gen }

	slots := make([]*T, len(ids))
	misses := l.readCache(ctx, ids, slots)

	if len(misses) > 0 {
		fetched, err := l.fetch.FetchByIDs(ctx, misses)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch records: %w", err)
		}
		byID := make(map[uuid.UUID]T, len(fetched))
		for _, rec := range fetched {
			byID[l.id(rec)] = rec
		}
		for i, id := range ids {
			if slots[i] != nil {
				continue
			}
			rec, ok := byID[id]
			if !ok {
				continue
			}
			slots[i] = &rec
			if l.populator != nil && current() {
				l.populator.EnqueueIf(ctx, l.key(id), rec, current)
			}
		}
	}

	out := make([]T, 0, len(ids))
	for _, s := range slots {
		if s != nil {
			out = append(out, *s)
		}
	}
	return out, nil
}

// readCache fills slots with cache hits and returns the ids still missing.
// Any cache error turns the whole batch into misses.
func (l *Loader[T]) readCache(ctx context.Context, ids []uuid.UUID, slots []*T) []uuid.UUID {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = l.key(id)
	}

	raw, err := l.store.GetMany(ctx, keys...)
	if err != nil {
		l.logger.Warn().Err(err).Int("keys", len(keys)).Msg("cache read failed, using primary store")
		return ids
	}

	var misses []uuid.UUID
	for i, payload := range raw {
		if payload == nil {
			misses = append(misses, ids[i])
			continue
		}
		var rec T
		if err := json.Unmarshal(payload, &rec); err != nil {
			l.logger.Warn().Err(err).Str("key", keys[i]).Msg("undecodable cache entry, using primary store")
			clear(slots)
			return ids
		}
		slots[i] = &rec
	}
	return misses
}

// Get loads a single record, returning domain.ErrNotExist when the primary
// store has none.
func (l *Loader[T]) Get(ctx context.Context, id uuid.UUID) (T, error) {
	var zero T
	recs, err := l.Load(ctx, []uuid.UUID{id})
	if err != nil {
		return zero, err
	}
	if len(recs) == 0 {
		return zero, domain.ErrNotExist
	}
	return recs[0], nil
}

// Invalidate drops the cached entry of id. Populate writes of loads still
// in flight are skipped.
func (l *Loader[T]) Invalidate(ctx context.Context, id uuid.UUID) error {
	l.invalidations.Add(1)
	if err := l.store.Delete(ctx, l.key(id)); err != nil {
		return fmt.Errorf("failed to invalidate cache entry: %w", err)
	}
	return nil
}

