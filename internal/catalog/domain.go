// Package catalog manages the drug formulary: dispensable items with their
// unit prices, active flags, and expiration dates.
package catalog

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Item models a dispensable drug.
type Item struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Dosage         string          `json:"dosage"`
	Instructions   string          `json:"instructions"`
	Price          decimal.Decimal `json:"price"`
	IsActive       bool            `json:"is_active"`
	ExpirationDate *time.Time      `json:"expiration_date,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// EffectiveActive reports whether the item may be dispensed at the given
// time: the stored flag must be set and the expiration date, when present,
// must not have passed. An expired item is never effectively active no
// matter what the stored flag says.
func (i Item) EffectiveActive(now time.Time) bool {
	if !i.IsActive {
		return false
	}
	if i.ExpirationDate == nil {
		return true
	}
	today := now.Truncate(24 * time.Hour)
	return !i.ExpirationDate.Before(today)
}

// ResolvePrice returns the override when the caller pinned one at order
// time, otherwise the catalog unit price. The catalog itself is never
// mutated by an override.
func ResolvePrice(item Item, override *decimal.Decimal) decimal.Decimal {
	if override != nil {
		return *override
	}
	return item.Price
}

// ErrNotFound indicates a missing catalog item.
var ErrNotFound = errors.New("catalog: item not found")

// ErrDuplicateName indicates a drug name collision.
var ErrDuplicateName = errors.New("catalog: duplicate item name")

// ErrExpiredDate rejects creation with an expiration date in the past.
var ErrExpiredDate = errors.New("catalog: expiration date cannot be in the past")

// ErrInvalidInput marks caller mistakes that surface as 400s.
var ErrInvalidInput = errors.New("catalog: invalid input")

// CreateInput describes a new catalog item.
type CreateInput struct {
	Name           string
	Description    string
	Dosage         string
	Instructions   string
	Price          decimal.Decimal
	IsActive       bool
	ExpirationDate *time.Time
	ActorID        int64
}

// UpdateInput carries a partial update; nil fields are left untouched.
type UpdateInput struct {
	Name           *string
	Description    *string
	Dosage         *string
	Instructions   *string
	Price          *decimal.Decimal
	IsActive       *bool
	ExpirationDate *time.Time
	ActorID        int64
}
