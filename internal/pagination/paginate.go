// Package pagination implements forward-only keyset pagination over the
// compound (created_at, id) order.
package pagination

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var ErrInvalidLimit = errors.New("invalid limit")

const DefaultMaxLimit = 100

// Row is the key of one record in page order.
type Row struct {
	ID        uuid.UUID
	SortValue time.Time
}

func (r Row) Cursor() Cursor {
	return Cursor{SortValue: r.SortValue, ID: r.ID}
}

// Query is a filtered result set. Page returns at most limit rows strictly
// after the cursor, ordered by (SortValue ASC, ID ASC), with the filter
// applied before the position predicate.
type Query interface {
	Count(ctx context.Context) (int, error)
	Page(ctx context.Context, after *Cursor, limit int) ([]Row, error)
}

// Loader resolves ids to records in any order. Ids without a record are
// left out.
type Loader[T any] interface {
	Load(ctx context.Context, ids []uuid.UUID) ([]T, error)
}

type Request struct {
	Limit int
	After string
}

type Edge[T any] struct {
	Cursor string `json:"cursor"`
	Node   T      `json:"node"`
}

type Page[T any] struct {
	Edges       []Edge[T] `json:"edges"`
	Nodes       []T       `json:"nodes"`
	TotalCount  int       `json:"totalCount"`
	HasNextPage bool      `json:"hasNextPage"`
}

type Paginator[T any] struct {
	Loader   Loader[T]
	MaxLimit int
	// ID extracts the id of a loaded record.
	ID func(T) uuid.UUID
}

func (p *Paginator[T]) Paginate(ctx context.Context, q Query, req Request) (Page[T], error) {
	maxLimit := p.MaxLimit
	if maxLimit <= 0 {
		maxLimit = DefaultMaxLimit
	}
	if req.Limit <= 0 || req.Limit > maxLimit {
		return Page[T]{}, fmt.Errorf("%w: must be between 1 and %d", ErrInvalidLimit, maxLimit)
	}

	var after *Cursor
	if req.After != "" {
		c, err := Decode(req.After)
		if err != nil {
			return Page[T]{}, err
		}
		after = &c
	}

	var (
		total int
		rows  []Row
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := q.Count(gctx)
		if err != nil {
			return fmt.Errorf("failed to count records: %w", err)
		}
		total = n
		return nil
	})
	g.Go(func() error {
		r, err := q.Page(gctx, after, req.Limit+1)
		if err != nil {
			return fmt.Errorf("failed to fetch page: %w", err)
		}
		rows = r
		return nil
	})
	if err := g.Wait(); err != nil {
		return Page[T]{}, err
	}

	page := Page[T]{
		TotalCount:  total,
		HasNextPage: len(rows) > req.Limit,
	}
	if page.HasNextPage {
		rows = rows[:req.Limit]
	}

	ids := make([]uuid.UUID, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}

	nodes, err := p.Loader.Load(ctx, ids)
	if err != nil {
		return Page[T]{}, fmt.Errorf("failed to load records: %w", err)
	}

	byID := make(map[uuid.UUID]T, len(nodes))
	for _, n := range nodes {
		byID[p.ID(n)] = n
	}

	// the loader gives no order guarantee, the page order comes from rows
	page.Nodes = make([]T, 0, len(rows))
	page.Edges = make([]Edge[T], 0, len(rows))
	for _, r := range rows {
		n, ok := byID[r.ID]
		if !ok {
			continue
		}
		page.Nodes = append(page.Nodes, n)
		page.Edges = append(page.Edges, Edge[T]{
			Cursor: Encode(r.Cursor()),
			Node:   n,
		})
	}
	return page, nil
}
