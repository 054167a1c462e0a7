package cartitem

import (
	"context"
	"errors"

	"cartsync/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresRepo struct {
	pool *pgxpool.Pool
}

// NewPostgres returns a Repository backed by a pgx pool. Schema is managed
// by the embedded migrations in internal/migrate.
func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

const selectColumns = `id, product_id, name, image_url, unit_price_cents, quantity, user_id, synced, updated_at`

func (r *postgresRepo) FindByProduct(ctx context.Context, productID int64) (*domain.CartLineItem, error) {
	const q = `
SELECT ` + selectColumns + `
FROM cart_items
WHERE product_id = $1
`
	var item domain.CartLineItem
	if err := r.pool.QueryRow(ctx, q, productID).Scan(
		&item.ID,
		&item.ProductID,
		&item.Name,
		&item.ImageURL,
		&item.UnitPriceCents,
		&item.Quantity,
		&item.UserID,
		&item.Synced,
		&item.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (r *postgresRepo) InsertIfAbsent(ctx context.Context, item domain.CartLineItem) (bool, error) {
	if item.Quantity <= 0 {
		return false, ErrNonPositiveQuantity
	}
	const q = `
INSERT INTO cart_items (product_id, name, image_url, unit_price_cents, quantity, user_id, synced, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (product_id) DO NOTHING
`
	cmd, err := r.pool.Exec(ctx, q,
		item.ProductID, item.Name, item.ImageURL, item.UnitPriceCents,
		item.Quantity, item.UserID, item.Synced, item.UpdatedAt)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *postgresRepo) Update(ctx context.Context, item domain.CartLineItem) error {
	if item.Quantity <= 0 {
		return ErrNonPositiveQuantity
	}
	const q = `
UPDATE cart_items
SET name = $1, image_url = $2, unit_price_cents = $3, quantity = $4, user_id = $5, synced = $6, updated_at = $7
WHERE product_id = $8
`
	cmd, err := r.pool.Exec(ctx, q,
		item.Name, item.ImageURL, item.UnitPriceCents, item.Quantity,
		item.UserID, item.Synced, item.UpdatedAt, item.ProductID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) Delete(ctx context.Context, productID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM cart_items WHERE product_id = $1`, productID)
	return err
}

func (r *postgresRepo) UpsertAll(ctx context.Context, items []domain.CartLineItem) error {
	if len(items) == 0 {
		return nil
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := upsertItems(ctx, tx, items); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *postgresRepo) ReplaceAll(ctx context.Context, items []domain.CartLineItem) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM cart_items`); err != nil {
		return err
	}
	if err := upsertItems(ctx, tx, items); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func upsertItems(ctx context.Context, tx pgx.Tx, items []domain.CartLineItem) error {
	const q = `
INSERT INTO cart_items (product_id, name, image_url, unit_price_cents, quantity, user_id, synced, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (product_id) DO UPDATE
SET name = EXCLUDED.name,
    image_url = EXCLUDED.image_url,
    unit_price_cents = EXCLUDED.unit_price_cents,
    quantity = EXCLUDED.quantity,
    user_id = EXCLUDED.user_id,
    synced = EXCLUDED.synced,
    updated_at = EXCLUDED.updated_at
`
	for _, item := range items {
		if item.Quantity <= 0 {
			return ErrNonPositiveQuantity
		}
		if _, err := tx.Exec(ctx, q,
			item.ProductID, item.Name, item.ImageURL, item.UnitPriceCents,
			item.Quantity, item.UserID, item.Synced, item.UpdatedAt); err != nil {
			return err
		}
	}
	return nil
}

func (r *postgresRepo) Clear(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM cart_items`)
	return err
}

func (r *postgresRepo) GetAll(ctx context.Context) ([]domain.CartLineItem, error) {
	const q = `
SELECT ` + selectColumns + `
FROM cart_items
ORDER BY id ASC
`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.CartLineItem
	for rows.Next() {
		var item domain.CartLineItem
		if err := rows.Scan(
			&item.ID,
			&item.ProductID,
			&item.Name,
			&item.ImageURL,
			&item.UnitPriceCents,
			&item.Quantity,
			&item.UserID,
			&item.Synced,
			&item.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *postgresRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
