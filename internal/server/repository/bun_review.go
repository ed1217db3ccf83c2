package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/uptrace/bun"

	"github.com/charadev96/ratewise/internal/pagination"
	server "github.com/charadev96/ratewise/internal/server/domain"
	"github.com/charadev96/ratewise/internal/shared/infra"
)

type BunReviewRepository struct {
	db *bun.DB
}

var _ server.ReviewRepository = (*BunReviewRepository)(nil)

func NewBunReviewRepository(ctx context.Context, db *bun.DB) (*BunReviewRepository, error) {
	r := &BunReviewRepository{
		db: db,
	}
	tx := infra.ExtractTx(ctx, r.db)
	_, err := tx.NewCreateTable().
		Model((*review)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return r, fmt.Errorf("failed to create repository: %w", err)
	}
	_, err = tx.NewCreateIndex().
		Model((*review)(nil)).
		Index("reviews_item_created_at_id_idx").
		Column("item_id", "created_at", "id").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return r, fmt.Errorf("failed to create repository index: %w", err)
	}
	return r, nil
}

func (r *BunReviewRepository) Create(ctx context.Context, rv server.Review) (server.Review, error) {
	tx := infra.ExtractTx(ctx, r.db)
	if rv.ID == uuid.Nil {
		rv.ID = uuid.New()
	}
	rv.CreatedAt = now()
	m := new(review)
	copier.Copy(m, &rv)
	_, err := tx.NewInsert().
		Model(m).
		Exec(ctx)
	if err != nil {
		return server.Review{}, fmt.Errorf("failed to create review: %w", err)
	}
	return rv, nil
}

func (r *BunReviewRepository) FetchByIDs(ctx context.Context, ids []uuid.UUID) ([]server.Review, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	tx := infra.ExtractTx(ctx, r.db)
	var ms []review
	err := tx.NewSelect().
		Model(&ms).
		Where("id IN (?)", bun.In(ids)).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch reviews: %w", err)
	}
	out := make([]server.Review, len(ms))
	for i := range ms {
		rv := server.Review{}
		copier.Copy(&rv, &ms[i])
		rv.CreatedAt = ms[i].CreatedAt.UTC()
		out[i] = rv
	}
	return out, nil
}

func (r *BunReviewRepository) QueryByItem(itemID uuid.UUID) pagination.Query {
	return NewBunQuery(r.db, (*review)(nil), whereEq("item_id", itemID))
}

type review struct {
	bun.BaseModel `bun:"table:reviews"`

	ID        uuid.UUID `bun:",pk"`
	ItemID    uuid.UUID `bun:",notnull"`
	AuthorID  uuid.UUID `bun:",notnull"`
	Body      string    `bun:",notnull"`
	Rating    int       `bun:",notnull"`
	CreatedAt time.Time `bun:",notnull"`
}
