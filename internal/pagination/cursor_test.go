package pagination

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	cases := []Cursor{
		{SortValue: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), ID: uuid.New()},
		{SortValue: time.Date(2024, 1, 2, 3, 4, 5, 123456789, time.UTC), ID: uuid.New()},
		{SortValue: time.Date(1999, 12, 31, 23, 59, 59, 1000, time.UTC), ID: uuid.Nil},
		{SortValue: time.Unix(0, 0).UTC(), ID: uuid.MustParse("ffffffff-ffff-ffff-ffff-ffffffffffff")},
	}
	for _, c := range cases {
		got, err := Decode(Encode(c))
		require.NoError(t, err)
		assert.True(t, c.SortValue.Equal(got.SortValue), "sort value %v != %v", c.SortValue, got.SortValue)
		assert.Equal(t, c.ID, got.ID)
	}
}

func TestCursorRoundTripNormalizesZone(t *testing.T) {
	zone := time.FixedZone("UTC+3", 3*60*60)
	c := Cursor{SortValue: time.Date(2024, 6, 1, 12, 0, 0, 42, zone), ID: uuid.New()}
	got, err := Decode(Encode(c))
	require.NoError(t, err)
	assert.True(t, c.SortValue.Equal(got.SortValue))
	assert.Equal(t, time.UTC, got.SortValue.Location())
}

func TestDecodeRejectsMalformed(t *testing.T) {
	enc := func(s string) string { return base64.RawURLEncoding.EncodeToString([]byte(s)) }
	cases := map[string]string{
		"not base64":      "%%%",
		"no separator":    enc("2024-01-01T00:00:00Z"),
		"bad time":        enc("yesterday|" + uuid.NewString()),
		"bad id":          enc("2024-01-01T00:00:00Z|not-a-uuid"),
		"empty":           enc(""),
		"extra separator": enc("2024-01-01T00:00:00Z|" + uuid.NewString() + "|x"),
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(in)
			assert.ErrorIs(t, err, ErrInvalidCursor)
		})
	}
}

func TestCursorAfter(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := Cursor{SortValue: ts, ID: uuid.MustParse("00000000-0000-0000-0000-000000000001")}
	b := Cursor{SortValue: ts, ID: uuid.MustParse("00000000-0000-0000-0000-000000000002")}
	c := Cursor{SortValue: ts.Add(time.Millisecond), ID: uuid.Nil}

	assert.True(t, b.After(a))
	assert.False(t, a.After(b))
	assert.False(t, a.After(a))
	assert.True(t, c.After(b))
}
