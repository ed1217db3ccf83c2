// Package session keeps server-side sessions in the key/value store along
// with a per-user index of live session ids and the session-to-user
// relation needed to clean that index when a record expires.
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/charadev96/ratewise/internal/kv"
)

const (
	RecordPrefix   = "session:"
	RelationPrefix = "sess_user:"
	IndexPrefix    = "index:"
)

func RecordKey(id string) string       { return RecordPrefix + id }
func RelationKey(id string) string     { return RelationPrefix + id }
func IndexKey(userID uuid.UUID) string { return IndexPrefix + userID.String() }
func indexKeyRaw(userID string) string { return IndexPrefix + userID }

// Session is the handle bound to one client. ID is empty until the
// session has been created.
type Session struct {
	ID        string         `json:"-"`
	UserID    uuid.UUID      `json:"userId"`
	CreatedAt time.Time      `json:"createdAt"`
	Data      map[string]any `json:"data,omitempty"`
}

func (s *Session) Authenticated() bool {
	return s != nil && s.ID != "" && s.UserID != uuid.Nil
}

// GenerateID returns 256 random bits, base64url encoded.
func GenerateID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate session id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Store is the subset of *kv.Store sessions are kept in.
type Store interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	SetAddCapped(ctx context.Context, key, member string, limit int) (bool, error)
	SetRemove(ctx context.Context, key string, members ...string) error
	SetIsMember(ctx context.Context, key, member string) (bool, error)
	SetMembers(ctx context.Context, key string) ([]string, error)
	SetSize(ctx context.Context, key string) (int, error)
	Transaction() *kv.Tx
	Subscribe(ctx context.Context, pattern string, handler kv.Handler) error
	EnableKeyspaceEvents(ctx context.Context) error
}

var _ Store = (*kv.Store)(nil)
