package domain

import (
	"context"
)

// TransactionRunner runs fn inside a single primary-store transaction.
// Nested calls join the outer transaction.
type TransactionRunner interface {
	Exec(ctx context.Context, fn func(ctx context.Context) error) error
}
