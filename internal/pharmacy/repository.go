package pharmacy

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/clinova-emr/clinova/internal/billing"
	"github.com/clinova-emr/clinova/internal/catalog"
	"github.com/clinova-emr/clinova/internal/platform/db"
	"github.com/clinova-emr/clinova/internal/stock"
)

// Repository provides PostgreSQL backed persistence for pharmacy records.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the operations available inside a dispensation
// transaction. Everything it touches commits or rolls back as one unit.
type TxRepository interface {
	GetItem(ctx context.Context, itemID int64) (catalog.Item, error)
	DeductStock(ctx context.Context, itemID int64, quantity int) error
	InsertDispensation(ctx context.Context, rec *DispensationRecord) error
	PostCharge(ctx context.Context, patientID string, amount decimal.Decimal) (billing.Account, error)
	InsertWalkInSale(ctx context.Context, rec *WalkInSaleRecord) error
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

func (t *txRepo) GetItem(ctx context.Context, itemID int64) (catalog.Item, error) {
	return catalog.GetTx(ctx, t.tx, itemID)
}

func (t *txRepo) DeductStock(ctx context.Context, itemID int64, quantity int) error {
	return stock.DeductTx(ctx, t.tx, itemID, quantity)
}

func (t *txRepo) PostCharge(ctx context.Context, patientID string, amount decimal.Decimal) (billing.Account, error) {
	return billing.PostChargeTx(ctx, t.tx, patientID, amount)
}

func (t *txRepo) InsertDispensation(ctx context.Context, rec *DispensationRecord) error {
	lines, err := json.Marshal(rec.Lines)
	if err != nil {
		return err
	}
	var dispDate pgtype.Timestamptz
	if rec.DispensationDate != nil {
		dispDate = pgtype.Timestamptz{Time: *rec.DispensationDate, Valid: true}
	}
	return t.tx.QueryRow(ctx, `
		INSERT INTO pharmacy_records (
			patient_id, medication_name, dosage_and_route, frequency,
			dispensation_date, drug_orders, total, is_paid,
			billing_account_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, $8, NOW(), NOW())
		RETURNING id, created_at, updated_at`,
		rec.PatientID, rec.MedicationName, rec.DosageAndRoute, rec.Frequency,
		dispDate, lines, rec.Total.StringFixed(2), rec.BillingAccountID,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
}

func (t *txRepo) InsertWalkInSale(ctx context.Context, rec *WalkInSaleRecord) error {
	lines, err := json.Marshal(rec.Lines)
	if err != nil {
		return err
	}
	return t.tx.QueryRow(ctx, `
		INSERT INTO walkin_sales (receipt_number, invoice_number, customer_name, drug_orders, total, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id, created_at`,
		rec.ReceiptNumber, rec.InvoiceNumber, rec.CustomerName, lines, rec.Total.StringFixed(2),
	).Scan(&rec.ID, &rec.CreatedAt)
}

const recordColumns = `id, patient_id, medication_name, dosage_and_route, frequency, dispensation_date, drug_orders, total::text, is_paid, billing_account_id, created_at, updated_at`

func scanRecord(row pgx.Row) (DispensationRecord, error) {
	var (
		rec       DispensationRecord
		medName   pgtype.Text
		dosage    pgtype.Text
		freq      pgtype.Text
		dispDate  pgtype.Timestamptz
		rawLines  []byte
		totalText string
	)
	err := row.Scan(&rec.ID, &rec.PatientID, &medName, &dosage, &freq, &dispDate, &rawLines, &totalText, &rec.Paid, &rec.BillingAccountID, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DispensationRecord{}, ErrRecordNotFound
		}
		return DispensationRecord{}, err
	}
	rec.MedicationName = medName.String
	rec.DosageAndRoute = dosage.String
	rec.Frequency = freq.String
	if dispDate.Valid {
		t := dispDate.Time
		rec.DispensationDate = &t
	}
	if len(rawLines) > 0 {
		if err := json.Unmarshal(rawLines, &rec.Lines); err != nil {
			return DispensationRecord{}, err
		}
	}
	if rec.Lines == nil {
		rec.Lines = []LineItem{}
	}
	rec.Total, err = decimal.NewFromString(totalText)
	if err != nil {
		return DispensationRecord{}, err
	}
	return rec, nil
}

// Get retrieves a dispensation record scoped to its patient.
func (r *Repository) Get(ctx context.Context, patientID string, id int64) (DispensationRecord, error) {
	return scanRecord(r.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM pharmacy_records WHERE id = $1 AND patient_id = $2`, id, patientID))
}

// ListForPatient returns all dispensation records for a patient, newest first.
func (r *Repository) ListForPatient(ctx context.Context, patientID string) ([]DispensationRecord, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+recordColumns+` FROM pharmacy_records WHERE patient_id = $1 ORDER BY created_at DESC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []DispensationRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// UpdateFields replaces only the descriptive medication fields.
func (r *Repository) UpdateFields(ctx context.Context, patientID string, id int64, fields MedicationFields) (DispensationRecord, error) {
	var dispDate pgtype.Timestamptz
	if fields.DispensationDate != nil {
		dispDate = pgtype.Timestamptz{Time: *fields.DispensationDate, Valid: true}
	}
	return scanRecord(r.pool.QueryRow(ctx, `
		UPDATE pharmacy_records
		SET medication_name = $3, dosage_and_route = $4, frequency = $5,
			dispensation_date = $6, updated_at = NOW()
		WHERE id = $1 AND patient_id = $2
		RETURNING `+recordColumns,
		id, patientID, fields.MedicationName, fields.DosageAndRoute, fields.Frequency, dispDate))
}

// Delete removes a dispensation record. Stock and billing are deliberately
// left untouched; see the service-level note.
func (r *Repository) Delete(ctx context.Context, patientID string, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM pharmacy_records WHERE id = $1 AND patient_id = $2`, id, patientID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// MarkPaid flips the paid flag exactly once. The paid = FALSE predicate
// makes concurrent double submission resolve to one winner; the loser gets
// ErrAlreadyPaid, never a second success.
func (r *Repository) MarkPaid(ctx context.Context, patientID string, id int64) (DispensationRecord, error) {
	rec, err := scanRecord(r.pool.QueryRow(ctx, `
		UPDATE pharmacy_records
		SET is_paid = TRUE, updated_at = NOW()
		WHERE id = $1 AND patient_id = $2 AND is_paid = FALSE
		RETURNING `+recordColumns, id, patientID))
	if errors.Is(err, ErrRecordNotFound) {
		existing, getErr := r.Get(ctx, patientID, id)
		if getErr != nil {
			return DispensationRecord{}, getErr
		}
		if existing.Paid {
			return DispensationRecord{}, ErrAlreadyPaid
		}
		return DispensationRecord{}, err
	}
	return rec, err
}

// GetWalkInSale retrieves a finalized walk-in sale by receipt number.
func (r *Repository) GetWalkInSale(ctx context.Context, receiptNumber string) (WalkInSaleRecord, error) {
	var (
		rec       WalkInSaleRecord
		rawLines  []byte
		totalText string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, receipt_number, invoice_number, customer_name, drug_orders, total::text, created_at
		FROM walkin_sales WHERE receipt_number = $1`, receiptNumber).
		Scan(&rec.ID, &rec.ReceiptNumber, &rec.InvoiceNumber, &rec.CustomerName, &rawLines, &totalText, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return WalkInSaleRecord{}, ErrRecordNotFound
	}
	if err != nil {
		return WalkInSaleRecord{}, err
	}
	if len(rawLines) > 0 {
		if err := json.Unmarshal(rawLines, &rec.Lines); err != nil {
			return WalkInSaleRecord{}, err
		}
	}
	rec.Total, err = decimal.NewFromString(totalText)
	if err != nil {
		return WalkInSaleRecord{}, err
	}
	return rec, nil
}
