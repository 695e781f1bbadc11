package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clinova-emr/clinova/internal/shared"
)

// RepositoryPort abstracts catalog persistence for the service.
type RepositoryPort interface {
	List(ctx context.Context) ([]Item, error)
	Get(ctx context.Context, id int64) (Item, error)
	Create(ctx context.Context, input CreateInput) (Item, error)
	Update(ctx context.Context, item Item) (Item, error)
	Delete(ctx context.Context, id int64) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

const listCacheKey = "catalog:list"
const listCacheTTL = time.Minute

// Service coordinates catalog operations. The formulary list is cached in
// Redis because the dispensing screen reloads it constantly.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	cache  *redis.Client
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, cache *redis.Client, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, cache: cache, logger: logger}
}

// List returns all catalog items, served from cache when possible.
func (s *Service) List(ctx context.Context) ([]Item, error) {
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, listCacheKey).Bytes(); err == nil {
			var items []Item
			if err := json.Unmarshal(raw, &items); err == nil {
				return items, nil
			}
		}
	}
	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if raw, err := json.Marshal(items); err == nil {
			if err := s.cache.Set(ctx, listCacheKey, raw, listCacheTTL).Err(); err != nil {
				s.logger.Warn("catalog list cache set failed", slog.Any("error", err))
			}
		}
	}
	return items, nil
}

// Get retrieves a single item.
func (s *Service) Get(ctx context.Context, id int64) (Item, error) {
	if id <= 0 {
		return Item{}, ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

// Create adds a new item to the formulary, with its stock row at zero.
func (s *Service) Create(ctx context.Context, input CreateInput) (Item, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return Item{}, fmt.Errorf("%w: item name is required", ErrInvalidInput)
	}
	if input.Price.IsNegative() {
		return Item{}, fmt.Errorf("%w: price must be >= 0", ErrInvalidInput)
	}
	if input.ExpirationDate != nil && input.ExpirationDate.Before(today()) {
		return Item{}, ErrExpiredDate
	}
	item, err := s.repo.Create(ctx, input)
	if err != nil {
		return Item{}, err
	}
	s.invalidate(ctx)
	s.recordAudit(ctx, input.ActorID, "drug_created", item.ID, map[string]any{
		"name":  item.Name,
		"price": item.Price.StringFixed(2),
	})
	return item, nil
}

// Update applies a partial update. When the resulting expiration date is in
// the past the stored active flag is forced off: a caller-supplied
// active=true can never resurrect an expired item.
func (s *Service) Update(ctx context.Context, id int64, input UpdateInput) (Item, error) {
	item, err := s.repo.Get(ctx, id)
	if err != nil {
		return Item{}, err
	}
	if input.Name != nil {
		item.Name = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		item.Description = *input.Description
	}
	if input.Dosage != nil {
		item.Dosage = *input.Dosage
	}
	if input.Instructions != nil {
		item.Instructions = *input.Instructions
	}
	if input.Price != nil {
		if input.Price.IsNegative() {
			return Item{}, fmt.Errorf("%w: price must be >= 0", ErrInvalidInput)
		}
		item.Price = *input.Price
	}
	if input.IsActive != nil {
		item.IsActive = *input.IsActive
	}
	if input.ExpirationDate != nil {
		item.ExpirationDate = input.ExpirationDate
	}
	if item.ExpirationDate != nil && item.ExpirationDate.Before(today()) {
		item.IsActive = false
	}
	updated, err := s.repo.Update(ctx, item)
	if err != nil {
		return Item{}, err
	}
	s.invalidate(ctx)
	s.recordAudit(ctx, input.ActorID, "drug_updated", updated.ID, map[string]any{
		"name": updated.Name,
	})
	return updated, nil
}

// Delete removes an item from the formulary.
func (s *Service) Delete(ctx context.Context, id int64, actorID int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	s.recordAudit(ctx, actorID, "drug_deleted", id, nil)
	return nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, listCacheKey).Err(); err != nil {
		s.logger.Warn("catalog list cache invalidate failed", slog.Any("error", err))
	}
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, itemID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "drug",
		EntityID: fmt.Sprintf("%d", itemID),
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

func today() time.Time {
	return time.Now().Truncate(24 * time.Hour)
}
