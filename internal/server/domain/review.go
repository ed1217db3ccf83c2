package domain

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/charadev96/ratewise/internal/pagination"
)

const (
	MinRating = 1
	MaxRating = 5
)

type Review struct {
	ID        uuid.UUID `json:"id"`
	ItemID    uuid.UUID `json:"itemId"`
	AuthorID  uuid.UUID `json:"authorId"`
	Body      string    `json:"body"`
	Rating    int       `json:"rating"`
	CreatedAt time.Time `json:"createdAt"`
}

type ReviewRepository interface {
	Create(ctx context.Context, r Review) (Review, error)
	FetchByIDs(ctx context.Context, ids []uuid.UUID) ([]Review, error)
	QueryByItem(itemID uuid.UUID) pagination.Query
}
