package domain

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/charadev96/ratewise/internal/pagination"
)

type Item struct {
	ID          uuid.UUID `json:"id"`
	OwnerID     uuid.UUID `json:"ownerId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ItemUpdate holds the fields to change; nil fields are left as they are.
type ItemUpdate struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Category    *string `json:"category,omitempty"`
}

// ItemFilter narrows an item listing. Zero fields match everything.
type ItemFilter struct {
	OwnerID  uuid.UUID
	Category string
}

type ItemRepository interface {
	Create(ctx context.Context, it Item) (Item, error)
	GetByID(ctx context.Context, id uuid.UUID) (Item, error)
	Update(ctx context.Context, id uuid.UUID, upd ItemUpdate) (Item, error)
	FetchByIDs(ctx context.Context, ids []uuid.UUID) ([]Item, error)
	Query(f ItemFilter) pagination.Query
}
