package cartitem

import (
	"context"
	"errors"

	"cartsync/internal/domain"
)

// ErrNonPositiveQuantity rejects writes that would persist a quantity of
// zero or less; rows reaching zero are deleted, never stored.
var ErrNonPositiveQuantity = errors.New("quantity must be positive")

// Repository is the local cart cache. ProductID is unique across the table
// at all times; the store enforces it, not the callers. ReplaceAll runs as
// a single transaction so observers never see an empty table mid-swap.
type Repository interface {
	FindByProduct(ctx context.Context, productID int64) (*domain.CartLineItem, error)
	InsertIfAbsent(ctx context.Context, item domain.CartLineItem) (bool, error)
	Update(ctx context.Context, item domain.CartLineItem) error
	Delete(ctx context.Context, productID int64) error

	// UpsertAll inserts or replaces rows keyed by productId. Rows absent
	// from the given set are left alone.
	UpsertAll(ctx context.Context, items []domain.CartLineItem) error

	// ReplaceAll clears the table and inserts the given set atomically.
	ReplaceAll(ctx context.Context, items []domain.CartLineItem) error

	Clear(ctx context.Context) error
	GetAll(ctx context.Context) ([]domain.CartLineItem, error)

	// Ping reports whether the backing storage is reachable.
	Ping(ctx context.Context) error
}
