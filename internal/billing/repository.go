package billing

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository provides PostgreSQL backed persistence for billing accounts.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const accountColumns = `id, patient_id, balance::text, invoice_number, invoice_status, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var (
		acc         Account
		balanceText string
		invoiceNum  pgtype.Text
	)
	err := row.Scan(&acc.ID, &acc.PatientID, &balanceText, &invoiceNum, &acc.InvoiceStatus, &acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, err
	}
	acc.InvoiceNumber = invoiceNum.String
	acc.Balance, err = decimal.NewFromString(balanceText)
	if err != nil {
		return Account{}, err
	}
	return acc, nil
}

// Get returns the account for a patient.
func (r *Repository) Get(ctx context.Context, patientID string) (Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM billing_accounts WHERE patient_id = $1`, patientID))
}

// GetOrCreate returns the account for a patient, lazily creating it with a
// zero balance on first reference.
func (r *Repository) GetOrCreate(ctx context.Context, patientID string) (Account, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO billing_accounts (patient_id, balance, invoice_status, created_at, updated_at)
		VALUES ($1, 0.00, 'not_generated', NOW(), NOW())
		ON CONFLICT (patient_id) DO UPDATE SET patient_id = EXCLUDED.patient_id
		RETURNING `+accountColumns, patientID)
	return scanAccount(row)
}

// PostChargeTx accumulates a charge onto the patient's balance inside an
// open transaction, creating the account on first charge. The upsert is a
// single statement, so concurrent postings for the same patient serialize
// on the row lock and never lose an increment.
func PostChargeTx(ctx context.Context, tx pgx.Tx, patientID string, amount decimal.Decimal) (Account, error) {
	if amount.IsNegative() {
		return Account{}, ErrNegativeAmount
	}
	row := tx.QueryRow(ctx, `
		INSERT INTO billing_accounts (patient_id, balance, invoice_status, created_at, updated_at)
		VALUES ($1, $2, 'not_generated', NOW(), NOW())
		ON CONFLICT (patient_id) DO UPDATE
		SET balance = billing_accounts.balance + EXCLUDED.balance, updated_at = NOW()
		RETURNING `+accountColumns, patientID, amount.StringFixed(2))
	return scanAccount(row)
}

// AssignInvoiceNumber sets the invoice number once. The status predicate
// makes a second generation attempt a no-row update, not an overwrite.
func (r *Repository) AssignInvoiceNumber(ctx context.Context, patientID, invoiceNumber string) (Account, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE billing_accounts
		SET invoice_number = $2, invoice_status = 'generated', updated_at = NOW()
		WHERE patient_id = $1 AND invoice_status = 'not_generated'
		RETURNING `+accountColumns, patientID, invoiceNumber)
	acc, err := scanAccount(row)
	if errors.Is(err, ErrNotFound) {
		if _, getErr := r.Get(ctx, patientID); getErr == nil {
			return Account{}, ErrInvoiceAlreadyGenerated
		}
		return Account{}, ErrNotFound
	}
	return acc, err
}
