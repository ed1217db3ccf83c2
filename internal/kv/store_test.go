package kv

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStoreForTest(t *testing.T) (*miniredis.Miniredis, *Store) {
	t.Helper()
	m := miniredis.RunT(t)
	s, err := New(context.Background(), Options{
		Addr:         m.Addr(),
		DialTimeout:  200 * time.Millisecond,
		ReadTimeout:  200 * time.Millisecond,
		WriteTimeout: 200 * time.Millisecond,
		PingInterval: 10 * time.Millisecond,
	}, nil)
	require.NoError(t, err)
	s.backoff = func(int) time.Duration { return 5 * time.Millisecond }
	t.Cleanup(func() { _ = s.Close() })
	return m, s
}

type record struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

func TestGetDecodesJSONAndFallsBackToRawString(t *testing.T) {
	m, s := newStoreForTest(t)
	ctx := context.Background()

	created := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
	require.NoError(t, s.Set(ctx, "rec", record{Name: "lamp", CreatedAt: created}, 0))

	var got record
	found, err := s.Get(ctx, "rec", &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "lamp", got.Name)
	assert.True(t, created.Equal(got.CreatedAt))

	m.Set("raw", "not json at all")
	var raw string
	found, err = s.Get(ctx, "raw", &raw)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "not json at all", raw)

	var wrong record
	_, err = s.Get(ctx, "raw", &wrong)
	assert.Error(t, err)

	found, err = s.Get(ctx, "absent", &raw)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSetWithTTL(t *testing.T) {
	m, s := newStoreForTest(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "short", "v", time.Minute))
	assert.Equal(t, time.Minute, m.TTL("short"))

	require.NoError(t, s.Set(ctx, "forever", "v", 0))
	assert.Equal(t, time.Duration(0), m.TTL("forever"))

	m.FastForward(2 * time.Minute)
	ok, err := s.Exists(ctx, "short")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetManyKeepsPositions(t *testing.T) {
	_, s := newStoreForTest(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "a", "1", 0))
	require.NoError(t, s.Set(ctx, "c", "3", 0))

	vals, err := s.GetMany(ctx, "a", "b", "c")
	require.NoError(t, err)
	require.Len(t, vals, 3)
	assert.Equal(t, []byte("1"), vals[0])
	assert.Nil(t, vals[1])
	assert.Equal(t, []byte("3"), vals[2])
}

func TestSetOperations(t *testing.T) {
	_, s := newStoreForTest(t)
	ctx := context.Background()

	require.NoError(t, s.SetAdd(ctx, "set", "x", "y", "z"))
	require.NoError(t, s.SetRemove(ctx, "set", "y"))

	n, err := s.SetSize(ctx, "set")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	ok, err := s.SetIsMember(ctx, "set", "x")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.SetIsMember(ctx, "set", "y")
	require.NoError(t, err)
	assert.False(t, ok)

	members, err := s.SetMembers(ctx, "set")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"x", "z"}, members)

	members, err = s.SetMembers(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, members)

	require.NoError(t, s.Delete(ctx, "set"))
	n, err = s.SetSize(ctx, "set")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSetAddCapped(t *testing.T) {
	m, s := newStoreForTest(t)
	ctx := context.Background()

	for _, member := range []string{"a", "b"} {
		ok, err := s.SetAddCapped(ctx, "capped", member, 2)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, err := s.SetAddCapped(ctx, "capped", "c", 2)
	require.NoError(t, err)
	assert.False(t, ok)

	// re-adding a member never counts against the limit
	ok, err = s.SetAddCapped(ctx, "capped", "a", 2)
	require.NoError(t, err)
	assert.True(t, ok)

	members, err := m.Members("capped")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, members)
}

func TestTransactionAppliesAllWrites(t *testing.T) {
	m, s := newStoreForTest(t)
	ctx := context.Background()

	err := s.Transaction().
		Store("rel", "owner", 0).
		SetAdd("idx", "one", "two").
		Store("obj", record{Name: "x"}, time.Hour).
		Exec(ctx)
	require.NoError(t, err)

	v, err := m.Get("rel")
	require.NoError(t, err)
	assert.Equal(t, "owner", v)

	members, err := m.Members("idx")
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, members)
	assert.Equal(t, time.Hour, m.TTL("obj"))
}

func TestTransactionEncodeErrorSkipsExec(t *testing.T) {
	m, s := newStoreForTest(t)

	err := s.Transaction().
		SetAdd("idx", "one").
		Store("bad", func() {}, 0).
		Exec(context.Background())
	require.Error(t, err)
	assert.False(t, m.Exists("idx"))
}

func TestOperationsFailFastWhileUnavailable(t *testing.T) {
	_, s := newStoreForTest(t)
	ctx := context.Background()
	s.down.Store(true)

	var v string
	_, err := s.Get(ctx, "k", &v)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, s.Set(ctx, "k", "v", 0), ErrUnavailable)
	assert.ErrorIs(t, s.SetAdd(ctx, "s", "m"), ErrUnavailable)
	assert.ErrorIs(t, s.Transaction().SetAdd("s", "m").Exec(ctx), ErrUnavailable)
	_, err = s.GetMany(ctx, "k")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestWatchMarksStoreDownAndRecovers(t *testing.T) {
	m, s := newStoreForTest(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = s.Watch(ctx)
	}()

	m.Close()
	require.Eventually(t, func() bool { return !s.Available() }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, m.Restart())
	require.Eventually(t, s.Available, 2*time.Second, 10*time.Millisecond)
	assert.NoError(t, s.Set(context.Background(), "k", "v", 0))

	cancel()
	wg.Wait()
}

func TestSubscribeDeliversMatchingMessages(t *testing.T) {
	m, s := newStoreForTest(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan string, 4)
	done := make(chan error, 1)
	go func() {
		done <- s.Subscribe(ctx, "__keyevent@*__:expired", func(_ context.Context, channel, payload string) {
			got <- channel + " " + payload
		})
	}()

	require.Eventually(t, func() bool { return m.PubSubNumPat() == 1 }, time.Second, 5*time.Millisecond)
	m.Publish("__keyevent@0__:expired", "session:abc")
	m.Publish("unrelated", "ignored")

	select {
	case msg := <-got:
		assert.Equal(t, "__keyevent@0__:expired session:abc", msg)
	case <-time.After(time.Second):
		t.Fatal("message was not delivered")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("subscribe did not stop")
	}
	assert.Empty(t, got)
}

func TestSubscribeStopsWhileIdle(t *testing.T) {
	m, s := newStoreForTest(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- s.Subscribe(ctx, "__keyevent@*__:expired", func(context.Context, string, string) {})
	}()
	require.Eventually(t, func() bool { return m.PubSubNumPat() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("subscribe did not stop")
	}
	assert.Eventually(t, func() bool { return m.PubSubNumPat() == 0 }, time.Second, 5*time.Millisecond)
}

func TestBackoffBounds(t *testing.T) {
	for attempt := 0; attempt < 40; attempt++ {
		d := Backoff(attempt, 30*time.Second)
		base := 50 * time.Millisecond << attempt
		if attempt >= 10 || base > 30*time.Second {
			base = 30 * time.Second
		}
		assert.GreaterOrEqual(t, d, base, "attempt %d", attempt)
		assert.Less(t, d, base+time.Second, "attempt %d", attempt)
	}
}
