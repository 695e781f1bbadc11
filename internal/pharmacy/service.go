package pharmacy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/clinova-emr/clinova/internal/catalog"
	"github.com/clinova-emr/clinova/internal/patients"
	"github.com/clinova-emr/clinova/internal/shared"
	"github.com/clinova-emr/clinova/internal/stock"
)

// RepositoryPort abstracts persistence for the service layer.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, patientID string, id int64) (DispensationRecord, error)
	ListForPatient(ctx context.Context, patientID string) ([]DispensationRecord, error)
	UpdateFields(ctx context.Context, patientID string, id int64, fields MedicationFields) (DispensationRecord, error)
	Delete(ctx context.Context, patientID string, id int64) error
	MarkPaid(ctx context.Context, patientID string, id int64) (DispensationRecord, error)
	GetWalkInSale(ctx context.Context, receiptNumber string) (WalkInSaleRecord, error)
}

// PatientPort resolves patient identities for receipt headers.
type PatientPort interface {
	Lookup(ctx context.Context, patientID string) (patients.Identity, error)
}

// ItemPort resolves catalog items outside the dispensation transaction.
// Used only to backfill a missing captured name at receipt render time.
type ItemPort interface {
	Get(ctx context.Context, id int64) (catalog.Item, error)
}

// ReceiptRenderer turns receipt payloads into PDF bytes.
type ReceiptRenderer interface {
	RenderDispensation(ctx context.Context, data ReceiptData) ([]byte, error)
	RenderWalkIn(ctx context.Context, data WalkInReceiptData) ([]byte, error)
}

// AuditPort records audit entries.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ReceiptData is everything the dispensation receipt template needs.
type ReceiptData struct {
	PatientName string
	PatientID   string
	Record      DispensationRecord
	GeneratedAt time.Time
}

// WalkInReceiptData feeds the walk-in receipt template.
type WalkInReceiptData struct {
	Sale        WalkInSaleRecord
	GeneratedAt time.Time
}

// Service implements the dispensation and payment workflows.
type Service struct {
	repo     RepositoryPort
	patients PatientPort
	items    ItemPort
	receipts ReceiptRenderer
	audit    AuditPort
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs Service.
func NewService(repo RepositoryPort, patientDir PatientPort, items ItemPort, receipts ReceiptRenderer, audit AuditPort, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		patients: patientDir,
		items:    items,
		receipts: receipts,
		audit:    audit,
		logger:   logger,
		now:      time.Now,
	}
}

func validateLines(lines []LineRequest) error {
	if len(lines) == 0 {
		return ErrNoLines
	}
	for _, l := range lines {
		if l.Quantity <= 0 {
			return fmt.Errorf("%w: drug %d", ErrInvalidQuantity, l.ItemID)
		}
		if l.OverridePrice != nil && l.OverridePrice.IsNegative() {
			return fmt.Errorf("%w: drug %d: price override cannot be negative", ErrInvalidQuantity, l.ItemID)
		}
	}
	return nil
}

// buildLines resolves and deducts every requested line inside the caller's
// transaction. Names and unit prices are captured at this moment; the
// returned total is the 2-dp sum of the 2-dp line totals.
func buildLines(ctx context.Context, tx TxRepository, reqs []LineRequest) ([]LineItem, decimal.Decimal, error) {
	items := make([]LineItem, 0, len(reqs))
	total := decimal.Zero
	for _, req := range reqs {
		item, err := tx.GetItem(ctx, req.ItemID)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				return nil, decimal.Zero, &ItemNotFoundError{ItemID: req.ItemID}
			}
			return nil, decimal.Zero, err
		}
		if err := tx.DeductStock(ctx, req.ItemID, req.Quantity); err != nil {
			return nil, decimal.Zero, err
		}
		line := LineItem{
			ItemID:    item.ID,
			ItemName:  item.Name,
			Quantity:  req.Quantity,
			UnitPrice: catalog.ResolvePrice(item, req.OverridePrice),
		}
		items = append(items, line)
		total = total.Add(line.Total())
	}
	return items, total, nil
}

// CreateDispensation checks and deducts stock for every line, captures
// names and prices, inserts the record unpaid, and posts the total to the
// patient's billing account. Any failed line rolls the whole thing back.
func (s *Service) CreateDispensation(ctx context.Context, patientID string, fields MedicationFields, lineReqs []LineRequest, actorID int64) (DispensationRecord, error) {
	if err := validateLines(lineReqs); err != nil {
		return DispensationRecord{}, err
	}

	var rec DispensationRecord
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		lines, total, err := buildLines(ctx, tx, lineReqs)
		if err != nil {
			return err
		}
		account, err := tx.PostCharge(ctx, patientID, total)
		if err != nil {
			return err
		}
		rec = DispensationRecord{
			PatientID:        patientID,
			MedicationFields: fields,
			Lines:            lines,
			Total:            total,
			BillingAccountID: account.ID,
		}
		return tx.InsertDispensation(ctx, &rec)
	})
	if err != nil {
		var insufficient *stock.InsufficientStockError
		if errors.As(err, &insufficient) {
			s.recordAudit(ctx, actorID, "dispensation_rejected_insufficient_stock", "pharmacy_record", patientID, map[string]any{
				"drug_id":   insufficient.ItemID,
				"available": insufficient.Available,
				"requested": insufficient.Requested,
			})
		}
		return DispensationRecord{}, err
	}

	s.recordAudit(ctx, actorID, "pharmacy_record_created", "pharmacy_record", strconv.FormatInt(rec.ID, 10), map[string]any{
		"patient_id": patientID,
		"total":      rec.Total.StringFixed(2),
		"lines":      len(rec.Lines),
	})
	return rec, nil
}

// Get returns one dispensation record for a patient.
func (s *Service) Get(ctx context.Context, patientID string, id int64) (DispensationRecord, error) {
	return s.repo.Get(ctx, patientID, id)
}

// ListForPatient returns a patient's dispensation history.
func (s *Service) ListForPatient(ctx context.Context, patientID string) ([]DispensationRecord, error) {
	return s.repo.ListForPatient(ctx, patientID)
}

// UpdateInput carries a partial descriptive-fields update.
type UpdateInput struct {
	MedicationName   *string
	DosageAndRoute   *string
	Frequency        *string
	DispensationDate *time.Time
}

// UpdateDispensation edits the descriptive medication fields. Line items,
// prices, and the paid flag are not reachable through this path.
func (s *Service) UpdateDispensation(ctx context.Context, patientID string, id int64, in UpdateInput, actorID int64) (DispensationRecord, error) {
	existing, err := s.repo.Get(ctx, patientID, id)
	if err != nil {
		return DispensationRecord{}, err
	}

	fields := existing.MedicationFields
	if in.MedicationName != nil {
		fields.MedicationName = *in.MedicationName
	}
	if in.DosageAndRoute != nil {
		fields.DosageAndRoute = *in.DosageAndRoute
	}
	if in.Frequency != nil {
		fields.Frequency = *in.Frequency
	}
	if in.DispensationDate != nil {
		fields.DispensationDate = in.DispensationDate
	}

	rec, err := s.repo.UpdateFields(ctx, patientID, id, fields)
	if err != nil {
		return DispensationRecord{}, err
	}
	s.recordAudit(ctx, actorID, "pharmacy_record_updated", "pharmacy_record", strconv.FormatInt(id, 10), map[string]any{"patient_id": patientID})
	return rec, nil
}

// DeleteDispensation removes a record. Stock and the billing balance are
// deliberately not compensated; corrections are posted through restock and
// billing adjustments, not by rewinding history.
func (s *Service) DeleteDispensation(ctx context.Context, patientID string, id int64, actorID int64) error {
	if err := s.repo.Delete(ctx, patientID, id); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "pharmacy_record_deleted", "pharmacy_record", strconv.FormatInt(id, 10), map[string]any{"patient_id": patientID})
	return nil
}

// MarkPaid transitions a record from unpaid to paid. The transition is
// terminal; a repeat call returns ErrAlreadyPaid.
func (s *Service) MarkPaid(ctx context.Context, patientID string, id int64, actorID int64) (DispensationRecord, error) {
	rec, err := s.repo.MarkPaid(ctx, patientID, id)
	if err != nil {
		return DispensationRecord{}, err
	}
	s.recordAudit(ctx, actorID, "pharmacy_record_paid", "pharmacy_record", strconv.FormatInt(id, 10), map[string]any{
		"patient_id": patientID,
		"total":      rec.Total.StringFixed(2),
	})
	return rec, nil
}

// RenderReceipt produces the PDF receipt for a paid record. Captured line
// names are authoritative; a blank one is resolved from the catalog at
// render time without writing the record back.
func (s *Service) RenderReceipt(ctx context.Context, patientID string, id int64, actorID int64) ([]byte, string, error) {
	rec, err := s.repo.Get(ctx, patientID, id)
	if err != nil {
		return nil, "", err
	}
	if !rec.Paid {
		return nil, "", ErrNotPaid
	}

	for i, line := range rec.Lines {
		if strings.TrimSpace(line.ItemName) != "" {
			continue
		}
		item, err := s.items.Get(ctx, line.ItemID)
		if err != nil {
			rec.Lines[i].ItemName = "Unknown drug"
			continue
		}
		rec.Lines[i].ItemName = item.Name
	}

	ident, err := s.patients.Lookup(ctx, patientID)
	if err != nil {
		return nil, "", err
	}

	pdf, err := s.receipts.RenderDispensation(ctx, ReceiptData{
		PatientName: ident.DisplayName(),
		PatientID:   patientID,
		Record:      rec,
		GeneratedAt: s.now(),
	})
	if err != nil {
		return nil, "", err
	}

	s.recordAudit(ctx, actorID, "receipt_downloaded", "pharmacy_record", strconv.FormatInt(id, 10), map[string]any{"patient_id": patientID})
	return pdf, fmt.Sprintf("receipt_record_%d.pdf", id), nil
}

// CreateWalkInSale runs the same stock-checked deduction as a dispensation
// but touches no patient account: the sale settles at the counter and the
// receipt is returned with it.
func (s *Service) CreateWalkInSale(ctx context.Context, customerName string, lineReqs []LineRequest, actorID int64) (WalkInSaleRecord, []byte, error) {
	if err := validateLines(lineReqs); err != nil {
		return WalkInSaleRecord{}, nil, err
	}
	if strings.TrimSpace(customerName) == "" {
		customerName = "Walk-in Customer"
	}

	now := s.now()
	rec := WalkInSaleRecord{
		ReceiptNumber: saleNumber("WALKIN", now),
		InvoiceNumber: saleNumber("INV", now),
		CustomerName:  customerName,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		lines, total, err := buildLines(ctx, tx, lineReqs)
		if err != nil {
			return err
		}
		rec.Lines = lines
		rec.Total = total
		return tx.InsertWalkInSale(ctx, &rec)
	})
	if err != nil {
		var insufficient *stock.InsufficientStockError
		if errors.As(err, &insufficient) {
			s.recordAudit(ctx, actorID, "walkin_sale_rejected_insufficient_stock", "walkin_sale", rec.ReceiptNumber, map[string]any{
				"drug_id":   insufficient.ItemID,
				"available": insufficient.Available,
				"requested": insufficient.Requested,
			})
		}
		return WalkInSaleRecord{}, nil, err
	}

	pdf, err := s.receipts.RenderWalkIn(ctx, WalkInReceiptData{Sale: rec, GeneratedAt: now})
	if err != nil {
		// The sale is committed; a rendering failure must not void it.
		s.logger.ErrorContext(ctx, "walk-in receipt rendering failed", "receipt_number", rec.ReceiptNumber, "error", err)
		return WalkInSaleRecord{}, nil, err
	}

	s.recordAudit(ctx, actorID, "walkin_sale_created", "walkin_sale", rec.ReceiptNumber, map[string]any{
		"customer": customerName,
		"total":    rec.Total.StringFixed(2),
		"lines":    len(rec.Lines),
	})
	return rec, pdf, nil
}

// ReprintWalkInReceipt re-renders the receipt for a finalized walk-in sale.
func (s *Service) ReprintWalkInReceipt(ctx context.Context, receiptNumber string) ([]byte, error) {
	rec, err := s.repo.GetWalkInSale(ctx, receiptNumber)
	if err != nil {
		return nil, err
	}
	return s.receipts.RenderWalkIn(ctx, WalkInReceiptData{Sale: rec, GeneratedAt: s.now()})
}

func saleNumber(prefix string, now time.Time) string {
	return fmt.Sprintf("%s-%s-%s", prefix, now.Format("20060102"), uuid.NewString()[:8])
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action, entity, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: entity, EntityID: entityID, Meta: meta}); err != nil {
		s.logger.WarnContext(ctx, "audit append failed", "action", action, "error", err)
	}
}
