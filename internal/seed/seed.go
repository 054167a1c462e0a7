package seed

import (
	"context"
	"fmt"

	"cartsync/internal/domain"
	"cartsync/internal/repository/cartitem"
)

// Apply inserts demo cart line items for manual testing. It is idempotent:
// existing rows for the same products are replaced.
func Apply(ctx context.Context, repo cartitem.Repository) error {
	items := []domain.CartLineItem{
		{
			ProductID:      1001,
			Name:           "Demo T-Shirt",
			ImageURL:       "https://example.com/img/demo-tshirt.png",
			UnitPriceCents: 1999,
			Quantity:       2,
		},
		{
			ProductID:      1002,
			Name:           "Demo Mug",
			ImageURL:       "https://example.com/img/demo-mug.png",
			UnitPriceCents: 1299,
			Quantity:       1,
		},
	}
	for i := range items {
		items[i].Touch()
	}

	if err := repo.UpsertAll(ctx, items); err != nil {
		return fmt.Errorf("upsert demo items: %w", err)
	}
	return nil
}
