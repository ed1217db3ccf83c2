package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/uptrace/bun"

	"github.com/charadev96/ratewise/internal/pagination"
	server "github.com/charadev96/ratewise/internal/server/domain"
	shared "github.com/charadev96/ratewise/internal/shared/domain"
	"github.com/charadev96/ratewise/internal/shared/infra"
)

type BunItemRepository struct {
	db *bun.DB
}

var _ server.ItemRepository = (*BunItemRepository)(nil)

func NewBunItemRepository(ctx context.Context, db *bun.DB) (*BunItemRepository, error) {
	r := &BunItemRepository{
		db: db,
	}
	tx := infra.ExtractTx(ctx, r.db)
	_, err := tx.NewCreateTable().
		Model((*item)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return r, fmt.Errorf("failed to create repository: %w", err)
	}
	_, err = tx.NewCreateIndex().
		Model((*item)(nil)).
		Index("items_created_at_id_idx").
		Column("created_at", "id").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return r, fmt.Errorf("failed to create repository index: %w", err)
	}
	return r, nil
}

func (r *BunItemRepository) Create(ctx context.Context, it server.Item) (server.Item, error) {
	tx := infra.ExtractTx(ctx, r.db)
	if it.ID == uuid.Nil {
		it.ID = uuid.New()
	}
	it.CreatedAt = now()
	it.UpdatedAt = it.CreatedAt
	m := new(item)
	copier.Copy(m, &it)
	_, err := tx.NewInsert().
		Model(m).
		Exec(ctx)
	if err != nil {
		return server.Item{}, fmt.Errorf("failed to create item: %w", err)
	}
	return it, nil
}

func (r *BunItemRepository) GetByID(ctx context.Context, id uuid.UUID) (server.Item, error) {
	tx := infra.ExtractTx(ctx, r.db)
	m := new(item)
	err := tx.NewSelect().
		Model(m).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = shared.ErrNotExist
		}
		return server.Item{}, fmt.Errorf("failed to get item: %w", err)
	}
	return m.toDomain(), nil
}

func (r *BunItemRepository) Update(ctx context.Context, id uuid.UUID, upd server.ItemUpdate) (server.Item, error) {
	tx := infra.ExtractTx(ctx, r.db)
	m := &item{ID: id, UpdatedAt: now()}
	columns := []string{"updated_at"}
	if upd.Title != nil {
		m.Title = *upd.Title
		columns = append(columns, "title")
	}
	if upd.Description != nil {
		m.Description = *upd.Description
		columns = append(columns, "description")
	}
	if upd.Category != nil {
		m.Category = *upd.Category
		columns = append(columns, "category")
	}

	res, err := tx.NewUpdate().
		Model(m).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		return server.Item{}, fmt.Errorf("failed to update item: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return server.Item{}, fmt.Errorf("failed to update item: %w", shared.ErrNotExist)
	}
	return r.GetByID(ctx, id)
}

func (r *BunItemRepository) FetchByIDs(ctx context.Context, ids []uuid.UUID) ([]server.Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	tx := infra.ExtractTx(ctx, r.db)
	var ms []item
	err := tx.NewSelect().
		Model(&ms).
		Where("id IN (?)", bun.In(ids)).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch items: %w", err)
	}
	out := make([]server.Item, len(ms))
	for i := range ms {
		out[i] = ms[i].toDomain()
	}
	return out, nil
}

func (r *BunItemRepository) Query(f server.ItemFilter) pagination.Query {
	var filters []Filter
	if f.OwnerID != uuid.Nil {
		filters = append(filters, whereEq("owner_id", f.OwnerID))
	}
	if f.Category != "" {
		filters = append(filters, whereEq("category", f.Category))
	}
	return NewBunQuery(r.db, (*item)(nil), filters...)
}

type item struct {
	bun.BaseModel `bun:"table:items"`

	ID          uuid.UUID `bun:",pk"`
	OwnerID     uuid.UUID `bun:",notnull"`
	Title       string    `bun:",notnull"`
	Description string
	Category    string    `bun:",notnull"`
	CreatedAt   time.Time `bun:",notnull"`
	UpdatedAt   time.Time `bun:",notnull"`
}

func (m *item) toDomain() server.Item {
	it := server.Item{}
	copier.Copy(&it, m)
	it.CreatedAt = m.CreatedAt.UTC()
	it.UpdatedAt = m.UpdatedAt.UTC()
	return it
}
