package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/charadev96/ratewise/internal/pagination"
	"github.com/charadev96/ratewise/internal/shared/infra"
)

// Filter narrows a select. Filters run before the keyset predicate.
type Filter func(*bun.SelectQuery) *bun.SelectQuery

func whereEq(column string, value any) Filter {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.? = ?", bun.Ident(column), value)
	}
}

// BunQuery pages over a table in (created_at, id) order.
type BunQuery struct {
	db      *bun.DB
	model   any
	filters []Filter
}

var _ pagination.Query = (*BunQuery)(nil)

func NewBunQuery(db *bun.DB, model any, filters ...Filter) *BunQuery {
	return &BunQuery{db: db, model: model, filters: filters}
}

func (q *BunQuery) selectQuery(ctx context.Context) *bun.SelectQuery {
	sel := infra.ExtractTx(ctx, q.db).NewSelect().Model(q.model)
	for _, f := range q.filters {
		sel = f(sel)
	}
	return sel
}

func (q *BunQuery) Count(ctx context.Context) (int, error) {
	n, err := q.selectQuery(ctx).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count rows: %w", err)
	}
	return n, nil
}

type pageRow struct {
	ID        uuid.UUID `bun:"id"`
	SortValue time.Time `bun:"sort_value"`
}

func (q *BunQuery) Page(ctx context.Context, after *pagination.Cursor, limit int) ([]pagination.Row, error) {
	sel := q.selectQuery(ctx).
		ColumnExpr("?TableAlias.id AS id").
		ColumnExpr("?TableAlias.created_at AS sort_value")
	if after != nil {
		sel = sel.WhereGroup(" AND ", func(s *bun.SelectQuery) *bun.SelectQuery {
			return s.
				Where("?TableAlias.created_at > ?", after.SortValue).
				WhereOr("?TableAlias.created_at = ? AND ?TableAlias.id > ?", after.SortValue, after.ID)
		})
	}

	var rows []pageRow
	err := sel.
		OrderExpr("?TableAlias.created_at ASC, ?TableAlias.id ASC").
		Limit(limit).
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to select page: %w", err)
	}

	out := make([]pagination.Row, len(rows))
	for i, r := range rows {
		out[i] = pagination.Row{ID: r.ID, SortValue: r.SortValue.UTC()}
	}
	return out, nil
}

// now is the timestamp stored for new rows. Microsecond precision survives
// every sqlite driver round trip, which keeps cursors comparable.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
