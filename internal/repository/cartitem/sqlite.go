package cartitem

import (
	"context"
	"database/sql"
	"errors"

	"cartsync/internal/domain"
	_ "github.com/mattn/go-sqlite3"
)

type sqliteRepo struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS cart_items (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	product_id INTEGER NOT NULL UNIQUE,
	name TEXT NOT NULL DEFAULT '',
	image_url TEXT NOT NULL DEFAULT '',
	unit_price_cents INTEGER NOT NULL,
	quantity INTEGER NOT NULL CHECK (quantity > 0),
	user_id INTEGER,
	synced INTEGER NOT NULL DEFAULT 0,
	updated_at INTEGER NOT NULL DEFAULT 0
);
`

// NewSQLite returns a Repository backed by a single-file sqlite database,
// suitable for standalone/on-device deployments. The schema is created on
// open.
func NewSQLite(db *sql.DB) (Repository, error) {
	if _, err := db.Exec(sqliteSchema); err != nil {
		return nil, err
	}
	return &sqliteRepo{db: db}, nil
}

func (r *sqliteRepo) FindByProduct(ctx context.Context, productID int64) (*domain.CartLineItem, error) {
	const q = `
SELECT id, product_id, name, image_url, unit_price_cents, quantity, user_id, synced, updated_at
FROM cart_items
WHERE product_id = ?
`
	var item domain.CartLineItem
	if err := r.db.QueryRowContext(ctx, q, productID).Scan(
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
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (r *sqliteRepo) InsertIfAbsent(ctx context.Context, item domain.CartLineItem) (bool, error) {
	if item.Quantity <= 0 {
		return false, ErrNonPositiveQuantity
	}
	const q = `
INSERT OR IGNORE INTO cart_items (product_id, name, image_url, unit_price_cents, quantity, user_id, synced, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`
	res, err := r.db.ExecContext(ctx, q,
		item.ProductID, item.Name, item.ImageURL, item.UnitPriceCents,
		item.Quantity, item.UserID, item.Synced, item.UpdatedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *sqliteRepo) Update(ctx context.Context, item domain.CartLineItem) error {
	if item.Quantity <= 0 {
		return ErrNonPositiveQuantity
	}
	const q = `
UPDATE cart_items
SET name = ?, image_url = ?, unit_price_cents = ?, quantity = ?, user_id = ?, synced = ?, updated_at = ?
WHERE product_id = ?
`
	res, err := r.db.ExecContext(ctx, q,
		item.Name, item.ImageURL, item.UnitPriceCents, item.Quantity,
		item.UserID, item.Synced, item.UpdatedAt, item.ProductID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *sqliteRepo) Delete(ctx context.Context, productID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE product_id = ?`, productID)
	return err
}

func (r *sqliteRepo) UpsertAll(ctx context.Context, items []domain.CartLineItem) error {
	if len(items) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := sqliteUpsert(ctx, tx, items); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *sqliteRepo) ReplaceAll(ctx context.Context, items []domain.CartLineItem) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items`); err != nil {
		return err
	}
	if err := sqliteUpsert(ctx, tx, items); err != nil {
		return err
	}
	return tx.Commit()
}

func sqliteUpsert(ctx context.Context, tx *sql.Tx, items []domain.CartLineItem) error {
	const q = `
INSERT INTO cart_items (product_id, name, image_url, unit_price_cents, quantity, user_id, synced, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (product_id) DO UPDATE
SET name = excluded.name,
    image_url = excluded.image_url,
    unit_price_cents = excluded.unit_price_cents,
    quantity = excluded.quantity,
    user_id = excluded.user_id,
    synced = excluded.synced,
    updated_at = excluded.updated_at
`
	for _, item := range items {
		if item.Quantity <= 0 {
			return ErrNonPositiveQuantity
		}
		if _, err := tx.ExecContext(ctx, q,
			item.ProductID, item.Name, item.ImageURL, item.UnitPriceCents,
			item.Quantity, item.UserID, item.Synced, item.UpdatedAt); err != nil {
			return err
		}
	}
	return nil
}

func (r *sqliteRepo) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM cart_items`)
	return err
}

func (r *sqliteRepo) GetAll(ctx context.Context) ([]domain.CartLineItem, error) {
	const q = `
SELECT id, product_id, name, image_url, unit_price_cents, quantity, user_id, synced, updated_at
FROM cart_items
ORDER BY id ASC
`
	rows, err := r.db.QueryContext(ctx, q)
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

func (r *sqliteRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
