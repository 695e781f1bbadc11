package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

type createItemRequest struct {
	Name           string          `json:"name" validate:"required,max=255"`
	Description    string          `json:"description"`
	Dosage         string          `json:"dosage"`
	Instructions   string          `json:"instructions"`
	Price          decimal.Decimal `json:"price"`
	IsActive       bool            `json:"is_active"`
	ExpirationDate *time.Time      `json:"expiration_date,omitempty"`
}

type updateItemRequest struct {
	Name           *string          `json:"name,omitempty" validate:"omitempty,max=255"`
	Description    *string          `json:"description,omitempty"`
	Dosage         *string          `json:"dosage,omitempty"`
	Instructions   *string          `json:"instructions,omitempty"`
	Price          *decimal.Decimal `json:"price,omitempty"`
	IsActive       *bool            `json:"is_active,omitempty"`
	ExpirationDate *time.Time       `json:"expiration_date,omitempty"`
}
