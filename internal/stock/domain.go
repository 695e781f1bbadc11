// Package stock keeps the on-hand quantity ledger for catalog items. All
// decrements go through a single guarded entry point so quantities can
// never be driven below zero, even under concurrent dispensations.
package stock

import (
	"errors"
	"fmt"
	"time"
)

// Entry is the on-hand quantity for a catalog item.
type Entry struct {
	ItemID    int64     `json:"item_id"`
	Quantity  int       `json:"quantity"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ErrStockNotFound indicates a missing stock row. An item without a stock
// row is unavailable; it is not treated as an implicit zero balance.
var ErrStockNotFound = errors.New("stock: entry not found")

// ErrInvalidQuantity indicates a non-positive quantity.
var ErrInvalidQuantity = errors.New("stock: quantity must be a positive integer")

// InsufficientStockError reports a deduction that would overdraw the entry,
// carrying enough context for a precise user-facing message.
type InsufficientStockError struct {
	ItemID    int64
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("stock: insufficient stock for item %d: available %d, requested %d", e.ItemID, e.Available, e.Requested)
}
