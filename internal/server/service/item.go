package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/charadev96/ratewise/internal/cache"
	"github.com/charadev96/ratewise/internal/pagination"
	server "github.com/charadev96/ratewise/internal/server/domain"
	shared "github.com/charadev96/ratewise/internal/shared/domain"
	"github.com/charadev96/ratewise/internal/shared/log"
)

type ItemService struct {
	Items    server.ItemRepository
	Cache    *cache.Loader[server.Item]
	MaxLimit int
	Logger   *zerolog.Logger
}

type ItemInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

type ItemListQuery struct {
	Filter server.ItemFilter
	Page   pagination.Request
}

func itemID(it server.Item) uuid.UUID { return it.ID }

func (s *ItemService) Create(ctx context.Context, owner uuid.UUID, in ItemInput) (server.Item, error) {
	if err := validateItemInput(in); err != nil {
		return server.Item{}, err
	}
	return s.Items.Create(ctx, server.Item{
		OwnerID:     owner,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Category:    in.Category,
	})
}

// Update applies upd on behalf of actor, who must own the item or
// moderate. The cached copy is dropped afterwards.
func (s *ItemService) Update(ctx context.Context, actor server.User, id uuid.UUID, upd server.ItemUpdate) (server.Item, error) {
	if err := validateItemUpdate(upd); err != nil {
		return server.Item{}, err
	}
	cur, err := s.Items.GetByID(ctx, id)
	if err != nil {
		return server.Item{}, err
	}
	if cur.OwnerID != actor.ID && !actor.HasRole(server.RoleModerator) && !actor.HasRole(server.RoleAdmin) {
		return server.Item{}, fmt.Errorf("item '%s' belongs to another user: %w", id, shared.ErrForbidden)
	}
	if upd.Title != nil {
		t := strings.TrimSpace(*upd.Title)
		upd.Title = &t
	}

	it, err := s.Items.Update(ctx, id, upd)
	if err != nil {
		return server.Item{}, err
	}
	if err := s.Cache.Invalidate(ctx, id); err != nil {
		log.OrNop(s.Logger).Warn().
			Err(err).
			Str("item", id.String()).
			Msg("failed to invalidate cached item")
	}
	return it, nil
}

func (s *ItemService) Get(ctx context.Context, id uuid.UUID) (server.Item, error) {
	it, err := s.Cache.Get(ctx, id)
	if err != nil {
		return server.Item{}, fmt.Errorf("failed to get item: %w", err)
	}
	return it, nil
}

func (s *ItemService) List(ctx context.Context, q ItemListQuery) (pagination.Page[server.Item], error) {
	p := pagination.Paginator[server.Item]{
		Loader:   s.Cache,
		MaxLimit: s.MaxLimit,
		ID:       itemID,
	}
	return p.Paginate(ctx, s.Items.Query(q.Filter), q.Page)
}
