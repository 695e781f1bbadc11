// Package pharmacy implements the dispensation and billing transaction
// core: stock-checked dispensation records, the unpaid-to-paid payment
// transition, walk-in cash sales, and receipt rendering.
package pharmacy

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// LineItem is one dispensed (item, quantity, price) entry. Name and unit
// price are captured at order time; later catalog changes never rewrite a
// historical record.
type LineItem struct {
	ItemID    int64           `json:"drug_id"`
	ItemName  string          `json:"drug_name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"price"`
}

// Total returns the line total rounded to 2 decimal places.
func (l LineItem) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))).Round(2)
}

// MedicationFields are the descriptive fields of a dispensation. They stay
// editable after creation, unlike the line items.
type MedicationFields struct {
	MedicationName   string     `json:"medication_name"`
	DosageAndRoute   string     `json:"dosage_and_route"`
	Frequency        string     `json:"frequency"`
	DispensationDate *time.Time `json:"dispensation_date,omitempty"`
}

// DispensationRecord is a clinical dispensation together with its captured
// line items and the charge it posted.
type DispensationRecord struct {
	ID               int64           `json:"id"`
	PatientID        string          `json:"patient_id"`
	MedicationFields
	Lines            []LineItem      `json:"drug_orders"`
	Total            decimal.Decimal `json:"total"`
	Paid             bool            `json:"is_paid"`
	BillingAccountID int64           `json:"billing_account_id"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// WalkInSaleRecord is a cash sale with no patient or billing linkage.
// It is settled the moment it is created.
type WalkInSaleRecord struct {
	ID            int64           `json:"id"`
	ReceiptNumber string          `json:"receipt_number"`
	InvoiceNumber string          `json:"invoice_number"`
	CustomerName  string          `json:"customer_name"`
	Lines         []LineItem      `json:"drug_orders"`
	Total         decimal.Decimal `json:"total"`
	CreatedAt     time.Time       `json:"created_at"`
}

// LineRequest is one requested line of a dispensation or walk-in sale.
// OverridePrice pins a price at order time without touching the catalog.
type LineRequest struct {
	ItemID        int64
	Quantity      int
	OverridePrice *decimal.Decimal
}

var (
	// ErrRecordNotFound indicates a missing dispensation record.
	ErrRecordNotFound = errors.New("pharmacy: dispensation record not found")
	// ErrAlreadyPaid rejects a second payment transition. Paid is terminal
	// and cannot be undone.
	ErrAlreadyPaid = errors.New("pharmacy: record is already marked as paid and cannot be undone")
	// ErrNotPaid gates receipts: only settled records may be printed.
	ErrNotPaid = errors.New("pharmacy: record is not paid, cannot generate receipt")
	// ErrInvalidQuantity rejects non-positive line quantities.
	ErrInvalidQuantity = errors.New("pharmacy: line quantity must be a positive integer")
	// ErrNoLines rejects dispensations without any line items.
	ErrNoLines = errors.New("pharmacy: at least one drug order is required")
	// ErrLineItemsImmutable rejects line-item or price edits after creation.
	ErrLineItemsImmutable = errors.New("pharmacy: drug orders and prices are fixed at creation and cannot be edited")
)

// ItemNotFoundError reports an unknown catalog item within a line request.
type ItemNotFoundError struct {
	ItemID int64
}

func (e *ItemNotFoundError) Error() string {
	return fmt.Sprintf("pharmacy: drug %d not found", e.ItemID)
}
