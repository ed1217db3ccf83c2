package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	shared "github.com/charadev96/ratewise/internal/shared/domain"
	"github.com/charadev96/ratewise/internal/shared/log"
)

type Options struct {
	TTL time.Duration
	// MaxUserSessions caps live sessions per user, 0 disables the cap.
	MaxUserSessions int
}

// Registry owns the lifecycle of sessions: the record at session:<id>,
// the relation at sess_user:<id> and the membership in index:<userId>.
type Registry struct {
	store  Store
	opts   Options
	logger *zerolog.Logger

	newID func() (string, error)
	now   func() time.Time
}

func NewRegistry(store Store, opts Options, logger *zerolog.Logger) *Registry {
	return &Registry{
		store:  store,
		opts:   opts,
		logger: log.OrNop(logger),
		newID:  GenerateID,
		now:    time.Now,
	}
}

// Load reads the session record for id.
func (r *Registry) Load(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, fmt.Errorf("failed to load session: %w", shared.ErrNotExist)
	}
	sess := new(Session)
	found, err := r.store.Get(ctx, RecordKey(id), sess)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("failed to load session: %w", shared.ErrNotExist)
	}
	sess.ID = id
	return sess, nil
}

// Create binds sess to userID under a freshly allocated id. Any previous
// id of sess is destroyed first so a pre-authentication id never becomes
// authenticated.
func (r *Registry) Create(ctx context.Context, sess *Session, userID uuid.UUID) error {
	if sess == nil {
		return errors.New("failed to create session: nil session")
	}
	if userID == uuid.Nil {
		return fmt.Errorf("failed to create session: %w", shared.ErrInvalidInput)
	}

	if sess.ID != "" {
		if err := r.store.Delete(ctx, RecordKey(sess.ID)); err != nil {
			return fmt.Errorf("failed to destroy previous session: %w", err)
		}
		if sess.UserID != uuid.Nil {
			r.unlink(ctx, sess.UserID.String(), sess.ID)
		}
		*sess = Session{Data: sess.Data}
	}

	id, err := r.newID()
	if err != nil {
		return err
	}

	// The index slot is reserved before anything else is written.
	reserved := false
	if r.opts.MaxUserSessions > 0 {
		ok, err := r.store.SetAddCapped(ctx, IndexKey(userID), id, r.opts.MaxUserSessions)
		if err != nil {
			return fmt.Errorf("failed to reserve session slot: %w", err)
		}
		if !ok {
			return fmt.Errorf("failed to create session: %w", shared.ErrSessionLimit)
		}
		reserved = true
	}

	next := Session{
		ID:        id,
		UserID:    userID,
		CreatedAt: r.now().UTC(),
		Data:      sess.Data,
	}

	if err := r.store.Set(ctx, RecordKey(id), next, r.opts.TTL); err != nil {
		if reserved {
			r.release(ctx, userID, id)
		}
		return fmt.Errorf("failed to save session: %w", err)
	}
	err = r.store.Transaction().
		Store(RelationKey(id), userID.String(), 0).
		SetAdd(IndexKey(userID), id).
		Exec(ctx)
	if err != nil {
		if derr := r.store.Delete(ctx, RecordKey(id)); derr != nil {
			r.logger.Error().
				Err(derr).
				Str("session", id).
				Msg("failed to roll back session record")
		}
		if reserved {
			r.release(ctx, userID, id)
		}
		return fmt.Errorf("failed to index session: %w", err)
	}

	*sess = next
	r.logger.Debug().
		Str("user", userID.String()).
		Str("session", id).
		Msg("created session")
	return nil
}

func (r *Registry) release(ctx context.Context, userID uuid.UUID, id string) {
	if err := r.store.SetRemove(ctx, IndexKey(userID), id); err != nil {
		r.logger.Error().
			Err(err).
			Str("session", id).
			Msg("failed to release session slot")
	}
}

// Destroy removes the session record only. The index entry and relation
// are left to TrySessionCleanup or the Reconciler.
func (r *Registry) Destroy(ctx context.Context, sess *Session) error {
	if sess == nil || sess.ID == "" {
		return nil
	}
	if err := r.store.Delete(ctx, RecordKey(sess.ID)); err != nil {
		return fmt.Errorf("failed to destroy session: %w", err)
	}
	return nil
}

// DestroyAll signs userID out everywhere and returns how many sessions
// were removed. Partial completion is left for IsDangling and the
// Reconciler to detect.
func (r *Registry) DestroyAll(ctx context.Context, userID uuid.UUID) (int, error) {
	ids, err := r.store.SetMembers(ctx, IndexKey(userID))
	if err != nil {
		return 0, err
	}
	records := make([]string, len(ids))
	relations := make([]string, len(ids))
	for i, id := range ids {
		records[i] = RecordKey(id)
		relations[i] = RelationKey(id)
	}

	if err := r.store.Delete(ctx, records...); err != nil {
		return 0, fmt.Errorf("failed to destroy sessions: %w", err)
	}
	if err := r.store.Delete(ctx, IndexKey(userID)); err != nil {
		return 0, fmt.Errorf("failed to delete session index: %w", err)
	}
	if err := r.store.Delete(ctx, relations...); err != nil {
		return 0, fmt.Errorf("failed to delete session relations: %w", err)
	}

	r.logger.Info().
		Str("user", userID.String()).
		Int("sessions", len(ids)).
		Msg("destroyed all sessions")
	return len(ids), nil
}

func (r *Registry) Count(ctx context.Context, userID uuid.UUID) (int, error) {
	n, err := r.store.SetSize(ctx, IndexKey(userID))
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return n, nil
}

// IsDangling reports whether the record, the relation and the index entry
// of sessID disagree on whether the session exists.
func (r *Registry) IsDangling(ctx context.Context, userID uuid.UUID, sessID string) (bool, error) {
	record, err := r.store.Exists(ctx, RecordKey(sessID))
	if err != nil {
		return false, err
	}
	relation, err := r.store.Exists(ctx, RelationKey(sessID))
	if err != nil {
		return false, err
	}
	indexed, err := r.store.SetIsMember(ctx, IndexKey(userID), sessID)
	if err != nil {
		return false, err
	}
	all := record && relation && indexed
	none := !record && !relation && !indexed
	return !all && !none, nil
}

// TrySessionCleanup removes every trace of sess. Store errors are logged,
// never returned, and the record is destroyed regardless.
func (r *Registry) TrySessionCleanup(ctx context.Context, sess *Session) {
	if sess == nil || sess.ID == "" {
		return
	}
	owner := ""
	if sess.UserID != uuid.Nil {
		owner = sess.UserID.String()
	}
	r.unlink(ctx, owner, sess.ID)
	if err := r.Destroy(ctx, sess); err != nil {
		r.logger.Warn().
			Err(err).
			Str("session", sess.ID).
			Msg("failed to destroy session record during cleanup")
	}
	*sess = Session{}
}

// unlink drops the relation and index entry of id. owner may be empty,
// in which case it is looked up through the relation.
func (r *Registry) unlink(ctx context.Context, owner, id string) {
	if owner == "" {
		found, err := r.store.Get(ctx, RelationKey(id), &owner)
		if err != nil {
			r.logger.Warn().
				Err(err).
				Str("session", id).
				Msg("failed to read session owner")
		}
		if !found {
			owner = ""
		}
	}
	if owner != "" {
		if err := r.store.SetRemove(ctx, indexKeyRaw(owner), id); err != nil {
			r.logger.Warn().
				Err(err).
				Str("user", owner).
				Str("session", id).
				Msg("failed to remove session from index")
		}
	}
	if err := r.store.Delete(ctx, RelationKey(id)); err != nil {
		r.logger.Warn().
			Err(err).
			Str("session", id).
			Msg("failed to delete session relation")
	}
}
