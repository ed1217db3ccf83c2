package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/charadev96/ratewise/internal/cache"
	"github.com/charadev96/ratewise/internal/pagination"
	server "github.com/charadev96/ratewise/internal/server/domain"
)

type ReviewService struct {
	Reviews  server.ReviewRepository
	Items    *ItemService
	Cache    *cache.Loader[server.Review]
	MaxLimit int
}

type ReviewInput struct {
	Body   string `json:"body"`
	Rating int    `json:"rating"`
}

func reviewID(r server.Review) uuid.UUID { return r.ID }

func (s *ReviewService) Create(ctx context.Context, author, itemID uuid.UUID, in ReviewInput) (server.Review, error) {
	if err := validateReviewInput(in); err != nil {
		return server.Review{}, err
	}
	if _, err := s.Items.Get(ctx, itemID); err != nil {
		return server.Review{}, err
	}
	return s.Reviews.Create(ctx, server.Review{
		ItemID:   itemID,
		AuthorID: author,
		Body:     strings.TrimSpace(in.Body),
		Rating:   in.Rating,
	})
}

// ListByItem pages through the reviews of itemID, oldest first.
func (s *ReviewService) ListByItem(ctx context.Context, itemID uuid.UUID, req pagination.Request) (pagination.Page[server.Review], error) {
	if _, err := s.Items.Get(ctx, itemID); err != nil {
		return pagination.Page[server.Review]{}, err
	}
	p := pagination.Paginator[server.Review]{
		Loader:   s.Cache,
		MaxLimit: s.MaxLimit,
		ID:       reviewID,
	}
	return p.Paginate(ctx, s.Reviews.QueryByItem(itemID), req)
}
