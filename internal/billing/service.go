package billing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/clinova-emr/clinova/internal/shared"
)

// RepositoryPort abstracts billing persistence for the service.
type RepositoryPort interface {
	Get(ctx context.Context, patientID string) (Account, error)
	GetOrCreate(ctx context.Context, patientID string) (Account, error)
	AssignInvoiceNumber(ctx context.Context, patientID, invoiceNumber string) (Account, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles billing account reads and invoice numbering. Charge
// postings go through PostChargeTx inside dispensation transactions.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger}
}

// Get returns the billing account for a patient, creating it lazily so the
// billing page always has a balance to show.
func (s *Service) Get(ctx context.Context, patientID string) (Account, error) {
	return s.repo.GetOrCreate(ctx, patientID)
}

// GenerateInvoice assigns an invoice number to the patient's account.
// Numbering happens exactly once per account.
func (s *Service) GenerateInvoice(ctx context.Context, patientID string, actorID int64) (Account, error) {
	number := invoiceNumber(time.Now())
	acc, err := s.repo.AssignInvoiceNumber(ctx, patientID, number)
	if err != nil {
		return Account{}, err
	}
	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "invoice_generated",
			Entity:   "billing_account",
			EntityID: patientID,
			Meta:     map[string]any{"invoice_number": acc.InvoiceNumber},
		}); err != nil {
			s.logger.Warn("audit record failed", slog.String("action", "invoice_generated"), slog.Any("error", err))
		}
	}
	return acc, nil
}

func invoiceNumber(now time.Time) string {
	return fmt.Sprintf("INV-%s-%s", now.Format("20060102"), uuid.NewString()[:8])
}
