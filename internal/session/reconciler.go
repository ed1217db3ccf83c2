package session

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/charadev96/ratewise/internal/shared/log"
)

// ExpiredEvents matches the expiration channel of every database.
const ExpiredEvents = "__keyevent@*__:expired"

// Reconciler removes the relation and index entry of sessions whose
// record expired inside the store. Expiration events carry only the key,
// so the owner is recovered through the relation.
type Reconciler struct {
	store  Store
	logger *zerolog.Logger

	// ConfigureServer turns on keyspace notifications at startup.
	ConfigureServer bool
}

func NewReconciler(store Store, logger *zerolog.Logger) *Reconciler {
	return &Reconciler{
		store:           store,
		logger:          log.OrNop(logger),
		ConfigureServer: true,
	}
}

// Run blocks until ctx is done.
func (r *Reconciler) Run(ctx context.Context) error {
	if r.ConfigureServer {
		if err := r.store.EnableKeyspaceEvents(ctx); err != nil {
			r.logger.Warn().
				Err(err).
				Msg("keyspace notifications must be enabled on the server (notify-keyspace-events Ex)")
		}
	}
	return r.store.Subscribe(ctx, ExpiredEvents, func(ctx context.Context, _ string, key string) {
		r.HandleExpired(ctx, key)
	})
}

func (r *Reconciler) HandleExpired(ctx context.Context, key string) {
	id, ok := strings.CutPrefix(key, RecordPrefix)
	if !ok || id == "" {
		return
	}

	var owner string
	found, err := r.store.Get(ctx, RelationKey(id), &owner)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("session", id).
			Msg("failed to read owner of expired session")
		return
	}
	if !found {
		r.logger.Debug().
			Str("session", id).
			Msg("expired session already cleaned")
		return
	}

	if err := r.store.Delete(ctx, RelationKey(id)); err != nil {
		r.logger.Error().
			Err(err).
			Str("session", id).
			Msg("failed to delete relation of expired session")
	}
	if err := r.store.SetRemove(ctx, indexKeyRaw(owner), id); err != nil {
		r.logger.Error().
			Err(err).
			Str("user", owner).
			Str("session", id).
			Msg("failed to remove expired session from index")
	}

	r.logger.Debug().
		Str("user", owner).
		Str("session", id).
		Msg("reclaimed expired session")
}
