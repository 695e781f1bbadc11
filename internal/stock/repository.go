package stock

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for stock entries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get returns the stock entry for an item.
func (r *Repository) Get(ctx context.Context, itemID int64) (Entry, error) {
	var entry Entry
	err := r.pool.QueryRow(ctx, `SELECT item_id, quantity, updated_at FROM stock_entries WHERE item_id = $1`, itemID).
		Scan(&entry.ItemID, &entry.Quantity, &entry.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrStockNotFound
	}
	if err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// Restock adds quantity to an entry and returns the new level. The single
// UPDATE serializes concurrent restocks on the row lock.
func (r *Repository) Restock(ctx context.Context, itemID int64, quantity int) (Entry, error) {
	var entry Entry
	err := r.pool.QueryRow(ctx, `
		UPDATE stock_entries
		SET quantity = quantity + $2, updated_at = NOW()
		WHERE item_id = $1
		RETURNING item_id, quantity, updated_at`, itemID, quantity).
		Scan(&entry.ItemID, &entry.Quantity, &entry.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrStockNotFound
	}
	if err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// DeductTx atomically checks and decrements an item's quantity inside an
// open transaction. The quantity predicate makes check-and-decrement one
// step: two concurrent dispensations racing for the last units serialize on
// the row lock and the loser sees the post-commit quantity.
func DeductTx(ctx context.Context, tx pgx.Tx, itemID int64, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	tag, err := tx.Exec(ctx, `
		UPDATE stock_entries
		SET quantity = quantity - $2, updated_at = NOW()
		WHERE item_id = $1 AND quantity >= $2`, itemID, quantity)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var available int
	err = tx.QueryRow(ctx, `SELECT quantity FROM stock_entries WHERE item_id = $1`, itemID).Scan(&available)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrStockNotFound
	}
	if err != nil {
		return err
	}
	return &InsufficientStockError{ItemID: itemID, Available: available, Requested: quantity}
}
