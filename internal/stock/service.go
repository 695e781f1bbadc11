package stock

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/clinova-emr/clinova/internal/shared"
)

// RepositoryPort abstracts stock persistence for the service.
type RepositoryPort interface {
	Get(ctx context.Context, itemID int64) (Entry, error)
	Restock(ctx context.Context, itemID int64, quantity int) (Entry, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service exposes the read and restock side of the stock ledger. Deductions
// happen only inside dispensation transactions via DeductTx.
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

// Quantity reports the on-hand level for an item.
func (s *Service) Quantity(ctx context.Context, itemID int64) (Entry, error) {
	return s.repo.Get(ctx, itemID)
}

// Restock increases an item's on-hand quantity.
func (s *Service) Restock(ctx context.Context, itemID int64, quantity int, actorID int64) (Entry, error) {
	if quantity <= 0 {
		return Entry{}, ErrInvalidQuantity
	}
	entry, err := s.repo.Restock(ctx, itemID, quantity)
	if err != nil {
		return Entry{}, err
	}
	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "stock_updated",
			Entity:   "stock_entry",
			EntityID: fmt.Sprintf("%d", itemID),
			Meta: map[string]any{
				"added":        quantity,
				"new_quantity": entry.Quantity,
			},
		}); err != nil {
			s.logger.Warn("audit record failed", slog.String("action", "stock_updated"), slog.Any("error", err))
		}
	}
	return entry, nil
}
