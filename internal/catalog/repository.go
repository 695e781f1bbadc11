package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/clinova-emr/clinova/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for the catalog.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const itemColumns = `id, name, description, dosage, instructions, price::text, is_active, expiration_date, created_at, updated_at`

func scanItem(row pgx.Row) (Item, error) {
	var (
		item        Item
		priceText   string
		description pgtype.Text
		dosage      pgtype.Text
		instr       pgtype.Text
		expiry      pgtype.Date
	)
	err := row.Scan(&item.ID, &item.Name, &description, &dosage, &instr, &priceText, &item.IsActive, &expiry, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrNotFound
		}
		return Item{}, err
	}
	item.Description = description.String
	item.Dosage = dosage.String
	item.Instructions = instr.String
	item.Price, err = decimal.NewFromString(priceText)
	if err != nil {
		return Item{}, err
	}
	if expiry.Valid {
		t := expiry.Time
		item.ExpirationDate = &t
	}
	return item, nil
}

// List returns the whole formulary ordered by name.
func (r *Repository) List(ctx context.Context) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM drugs ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Get retrieves an item by ID.
func (r *Repository) Get(ctx context.Context, id int64) (Item, error) {
	return scanItem(r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM drugs WHERE id = $1`, id))
}

// GetTx retrieves an item inside an open transaction. Used by the
// dispensation engine so price resolution sees transaction-consistent data.
func GetTx(ctx context.Context, tx pgx.Tx, id int64) (Item, error) {
	return scanItem(tx.QueryRow(ctx, `SELECT `+itemColumns+` FROM drugs WHERE id = $1`, id))
}

// Create inserts a new item together with its zero-quantity stock row.
func (r *Repository) Create(ctx context.Context, input CreateInput) (Item, error) {
	var item Item
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var expiry pgtype.Date
		if input.ExpirationDate != nil {
			expiry = pgtype.Date{Time: *input.ExpirationDate, Valid: true}
		}
		row := tx.QueryRow(ctx, `
			INSERT INTO drugs (name, description, dosage, instructions, price, is_active, expiration_date, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
			RETURNING `+itemColumns,
			input.Name, input.Description, input.Dosage, input.Instructions,
			input.Price.StringFixed(2), input.IsActive, expiry,
		)
		created, err := scanItem(row)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return ErrDuplicateName
			}
			return err
		}
		if _, err := tx.Exec(ctx, `INSERT INTO stock_entries (item_id, quantity, updated_at) VALUES ($1, 0, NOW())`, created.ID); err != nil {
			return err
		}
		item = created
		return nil
	})
	if err != nil {
		return Item{}, err
	}
	return item, nil
}

// Update persists a full item snapshot.
func (r *Repository) Update(ctx context.Context, item Item) (Item, error) {
	var expiry pgtype.Date
	if item.ExpirationDate != nil {
		expiry = pgtype.Date{Time: *item.ExpirationDate, Valid: true}
	}
	row := r.pool.QueryRow(ctx, `
		UPDATE drugs
		SET name = $2, description = $3, dosage = $4, instructions = $5,
			price = $6, is_active = $7, expiration_date = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING `+itemColumns,
		item.ID, item.Name, item.Description, item.Dosage, item.Instructions,
		item.Price.StringFixed(2), item.IsActive, expiry,
	)
	updated, err := scanItem(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Item{}, ErrDuplicateName
		}
		return Item{}, err
	}
	return updated, nil
}

// Delete removes an item. The stock row cascades with it.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM drugs WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
