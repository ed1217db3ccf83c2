package pagination

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidCursor = errors.New("invalid cursor")

const cursorSeparator = "|"

// Cursor is a position in the (SortValue, ID) order.
type Cursor struct {
	SortValue time.Time
	ID        uuid.UUID
}

// After reports whether c sorts strictly after o.
func (c Cursor) After(o Cursor) bool {
	if !c.SortValue.Equal(o.SortValue) {
		return c.SortValue.After(o.SortValue)
	}
	return strings.Compare(c.ID.String(), o.ID.String()) > 0
}

func Encode(c Cursor) string {
	raw := c.SortValue.UTC().Format(time.RFC3339Nano) + cursorSeparator + c.ID.String()
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func Decode(s string) (Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %w", ErrInvalidCursor, err)
	}
	sortPart, idPart, ok := strings.Cut(string(raw), cursorSeparator)
	if !ok {
		return Cursor{}, fmt.Errorf("%w: missing separator", ErrInvalidCursor)
	}
	sortValue, err := time.Parse(time.RFC3339Nano, sortPart)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %w", ErrInvalidCursor, err)
	}
	id, err := uuid.Parse(idPart)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %w", ErrInvalidCursor, err)
	}
	return Cursor{SortValue: sortValue.UTC(), ID: id}, nil
}
