package pagination

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	ID        uuid.UUID
	CreatedAt time.Time
	Name      string
}

type memoryQuery struct {
	records []record
	filter  func(record) bool
}

func (q *memoryQuery) matching() []record {
	var out []record
	for _, r := range q.records {
		if q.filter == nil || q.filter(r) {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b record) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return compareIDs(a.ID, b.ID)
	})
	return out
}

func compareIDs(a, b uuid.UUID) int {
	switch {
	case a.String() < b.String():
		return -1
	case a.String() > b.String():
		return 1
	}
	return 0
}

func (q *memoryQuery) Count(context.Context) (int, error) {
	return len(q.matching()), nil
}

func (q *memoryQuery) Page(_ context.Context, after *Cursor, limit int) ([]Row, error) {
	var rows []Row
	for _, r := range q.matching() {
		row := Row{ID: r.ID, SortValue: r.CreatedAt}
		if after != nil && !row.Cursor().After(*after) {
			continue
		}
		rows = append(rows, row)
		if len(rows) == limit {
			break
		}
	}
	return rows, nil
}

// shuffleLoader returns records in random order to prove the paginator
// restores page order itself.
type shuffleLoader struct {
	byID  map[uuid.UUID]record
	calls int
}

func newShuffleLoader(records []record) *shuffleLoader {
	l := &shuffleLoader{byID: make(map[uuid.UUID]record, len(records))}
	for _, r := range records {
		l.byID[r.ID] = r
	}
	return l
}

func (l *shuffleLoader) Load(_ context.Context, ids []uuid.UUID) ([]record, error) {
	l.calls++
	out := make([]record, 0, len(ids))
	for _, id := range ids {
		if r, ok := l.byID[id]; ok {
			out = append(out, r)
		}
	}
	rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out, nil
}

func newPaginator(l Loader[record]) *Paginator[record] {
	return &Paginator[record]{
		Loader:   l,
		MaxLimit: 50,
		ID:       func(r record) uuid.UUID { return r.ID },
	}
}

func seqRecords(names ...string) []record {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]record, len(names))
	for i, n := range names {
		out[i] = record{ID: uuid.New(), CreatedAt: base.Add(time.Duration(i) * time.Minute), Name: n}
	}
	return out
}

func names(rs []record) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Name
	}
	return out
}

func TestPaginateWalk(t *testing.T) {
	ctx := context.Background()
	recs := seqRecords("a", "b", "c", "d", "e")
	q := &memoryQuery{records: recs}
	p := newPaginator(newShuffleLoader(recs))

	page, err := p.Paginate(ctx, q, Request{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names(page.Nodes))
	assert.True(t, page.HasNextPage)
	assert.Equal(t, 5, page.TotalCount)
	require.Len(t, page.Edges, 2)
	assert.Equal(t, "b", page.Edges[1].Node.Name)

	page, err = p.Paginate(ctx, q, Request{Limit: 2, After: page.Edges[1].Cursor})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "d"}, names(page.Nodes))
	assert.True(t, page.HasNextPage)

	page, err = p.Paginate(ctx, q, Request{Limit: 2, After: page.Edges[1].Cursor})
	require.NoError(t, err)
	assert.Equal(t, []string{"e"}, names(page.Nodes))
	assert.False(t, page.HasNextPage)
	assert.Equal(t, 5, page.TotalCount)
}

func TestPaginateHasNextPageBoundary(t *testing.T) {
	ctx := context.Background()
	for _, k := range []int{1, 3, 7} {
		t.Run(fmt.Sprintf("k=%d", k), func(t *testing.T) {
			labels := make([]string, k+1)
			for i := range labels {
				labels[i] = fmt.Sprint(i)
			}
			recs := seqRecords(labels...)

			exact := &memoryQuery{records: recs[:k]}
			p := newPaginator(newShuffleLoader(recs))
			page, err := p.Paginate(ctx, exact, Request{Limit: k})
			require.NoError(t, err)
			assert.Len(t, page.Nodes, k)
			assert.False(t, page.HasNextPage)

			more := &memoryQuery{records: recs}
			page, err = p.Paginate(ctx, more, Request{Limit: k})
			require.NoError(t, err)
			assert.Len(t, page.Nodes, k)
			assert.True(t, page.HasNextPage)
		})
	}
}

func TestPaginateCompletenessWithTies(t *testing.T) {
	ctx := context.Background()
	ts := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	var recs []record
	for i := range 23 {
		// three distinct timestamps, many records share each
		recs = append(recs, record{
			ID:        uuid.New(),
			CreatedAt: ts.Add(time.Duration(i%3) * time.Second),
			Name:      fmt.Sprint(i),
		})
	}
	q := &memoryQuery{records: recs}
	p := newPaginator(newShuffleLoader(recs))

	for _, limit := range []int{1, 2, 4, 5, 23, 50} {
		t.Run(fmt.Sprintf("limit=%d", limit), func(t *testing.T) {
			var (
				seen  []uuid.UUID
				after string
			)
			for {
				page, err := p.Paginate(ctx, q, Request{Limit: limit, After: after})
				require.NoError(t, err)
				for _, n := range page.Nodes {
					seen = append(seen, n.ID)
				}
				if !page.HasNextPage {
					break
				}
				after = page.Edges[len(page.Edges)-1].Cursor
			}

			want := make([]uuid.UUID, 0, len(recs))
			for _, r := range q.matching() {
				want = append(want, r.ID)
			}
			assert.Equal(t, want, seen)
		})
	}
}

func TestPaginateFilterAppliesToCount(t *testing.T) {
	recs := seqRecords("a", "b", "c", "d", "e", "f")
	q := &memoryQuery{
		records: recs,
		filter:  func(r record) bool { return r.Name != "b" && r.Name != "e" },
	}
	p := newPaginator(newShuffleLoader(recs))

	page, err := p.Paginate(context.Background(), q, Request{Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c", "d"}, names(page.Nodes))
	assert.Equal(t, 4, page.TotalCount)
	assert.True(t, page.HasNextPage)
}

func TestPaginateRejectsInvalidLimit(t *testing.T) {
	recs := seqRecords("a")
	p := newPaginator(newShuffleLoader(recs))
	q := &memoryQuery{records: recs}

	for _, limit := range []int{0, -1, 51} {
		_, err := p.Paginate(context.Background(), q, Request{Limit: limit})
		assert.ErrorIs(t, err, ErrInvalidLimit, "limit %d", limit)
	}
}

func TestPaginateDefaultMaxLimit(t *testing.T) {
	p := &Paginator[record]{
		Loader: newShuffleLoader(nil),
		ID:     func(r record) uuid.UUID { return r.ID },
	}
	q := &memoryQuery{}

	_, err := p.Paginate(context.Background(), q, Request{Limit: DefaultMaxLimit})
	assert.NoError(t, err)
	_, err = p.Paginate(context.Background(), q, Request{Limit: DefaultMaxLimit + 1})
	assert.ErrorIs(t, err, ErrInvalidLimit)
}

func TestPaginateRejectsMalformedCursor(t *testing.T) {
	recs := seqRecords("a")
	l := newShuffleLoader(recs)
	p := newPaginator(l)

	_, err := p.Paginate(context.Background(), &memoryQuery{records: recs}, Request{Limit: 1, After: "garbage!"})
	assert.ErrorIs(t, err, ErrInvalidCursor)
	assert.Zero(t, l.calls)
}

func TestPaginatePastTheEnd(t *testing.T) {
	recs := seqRecords("a", "b")
	p := newPaginator(newShuffleLoader(recs))
	after := Encode(Cursor{SortValue: time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC), ID: uuid.New()})

	page, err := p.Paginate(context.Background(), &memoryQuery{records: recs}, Request{Limit: 10, After: after})
	require.NoError(t, err)
	assert.Empty(t, page.Nodes)
	assert.Empty(t, page.Edges)
	assert.False(t, page.HasNextPage)
	assert.Equal(t, 2, page.TotalCount)
}

func TestPaginateSkipsVanishedRecords(t *testing.T) {
	recs := seqRecords("a", "b", "c")
	// b was deleted between the page query and the load
	l := newShuffleLoader([]record{recs[0], recs[2]})
	p := newPaginator(l)

	page, err := p.Paginate(context.Background(), &memoryQuery{records: recs}, Request{Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, names(page.Nodes))
	require.Len(t, page.Edges, 2)
	assert.Equal(t, Encode(Cursor{SortValue: recs[2].CreatedAt, ID: recs[2].ID}), page.Edges[1].Cursor)
}

type failingQuery struct{ memoryQuery }

func (failingQuery) Count(context.Context) (int, error) {
	return 0, errors.New("boom")
}

func TestPaginatePropagatesQueryError(t *testing.T) {
	p := newPaginator(newShuffleLoader(nil))
	_, err := p.Paginate(context.Background(), &failingQuery{}, Request{Limit: 1})
	assert.ErrorContains(t, err, "boom")
}
