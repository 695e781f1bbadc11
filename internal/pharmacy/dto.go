package pharmacy

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type lineRequestDTO struct {
	DrugID   int64            `json:"drug_id" validate:"required,gt=0"`
	Quantity int              `json:"quantity" validate:"required,gt=0"`
	Price    *decimal.Decimal `json:"price,omitempty"`
}

type createDispensationRequest struct {
	MedicationName   string           `json:"medication_name" validate:"required"`
	DosageAndRoute   string           `json:"dosage_and_route"`
	Frequency        string           `json:"frequency"`
	DispensationDate *time.Time       `json:"dispensation_date,omitempty"`
	DrugOrders       []lineRequestDTO `json:"drug_orders" validate:"required,min=1,dive"`
}

func (r createDispensationRequest) lines() []LineRequest {
	lines := make([]LineRequest, 0, len(r.DrugOrders))
	for _, o := range r.DrugOrders {
		lines = append(lines, LineRequest{ItemID: o.DrugID, Quantity: o.Quantity, OverridePrice: o.Price})
	}
	return lines
}

func (r createDispensationRequest) fields() MedicationFields {
	return MedicationFields{
		MedicationName:   r.MedicationName,
		DosageAndRoute:   r.DosageAndRoute,
		Frequency:        r.Frequency,
		DispensationDate: r.DispensationDate,
	}
}

// updateDispensationRequest accepts only the descriptive fields. DrugOrders
// and Total are decoded solely so the handler can reject attempts to edit
// them instead of silently ignoring the fields.
type updateDispensationRequest struct {
	MedicationName   *string          `json:"medication_name,omitempty"`
	DosageAndRoute   *string          `json:"dosage_and_route,omitempty"`
	Frequency        *string          `json:"frequency,omitempty"`
	DispensationDate *time.Time       `json:"dispensation_date,omitempty"`
	DrugOrders       json.RawMessage  `json:"drug_orders,omitempty"`
	Total            *decimal.Decimal `json:"total,omitempty"`
	IsPaid           *bool            `json:"is_paid,omitempty"`
}

type walkInSaleRequest struct {
	CustomerName string           `json:"customer_name"`
	DrugOrders   []lineRequestDTO `json:"drug_orders" validate:"required,min=1,dive"`
}

func (r walkInSaleRequest) lines() []LineRequest {
	lines := make([]LineRequest, 0, len(r.DrugOrders))
	for _, o := range r.DrugOrders {
		lines = append(lines, LineRequest{ItemID: o.DrugID, Quantity: o.Quantity, OverridePrice: o.Price})
	}
	return lines
}
