// Package billing keeps one running-balance account per patient. Within
// this service the balance only accumulates: dispensation charges post to
// it, while settlement happens per-record on the pharmacy side.
package billing

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus tracks whether an invoice number has been assigned.
type InvoiceStatus string

const (
	InvoiceNotGenerated InvoiceStatus = "not_generated"
	InvoiceGenerated    InvoiceStatus = "generated"
)

// Account is a patient's running balance of incurred charges.
type Account struct {
	ID            int64           `json:"id"`
	PatientID     string          `json:"patient_id"`
	Balance       decimal.Decimal `json:"balance"`
	InvoiceNumber string          `json:"invoice_number,omitempty"`
	InvoiceStatus InvoiceStatus   `json:"invoice_status"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// ErrNotFound indicates a missing billing account.
var ErrNotFound = errors.New("billing: account not found")

// ErrNegativeAmount rejects charge postings below zero.
var ErrNegativeAmount = errors.New("billing: charge amount must be >= 0")

// ErrInvoiceAlreadyGenerated indicates the invoice number was already assigned.
var ErrInvoiceAlreadyGenerated = errors.New("billing: invoice already generated")
