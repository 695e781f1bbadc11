package stock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clinova-emr/clinova/internal/shared"
)

type memoryRepo struct {
	entries map[int64]int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{entries: make(map[int64]int)}
}

func (r *memoryRepo) Get(ctx context.Context, itemID int64) (Entry, error) {
	qty, ok := r.entries[itemID]
	if !ok {
		return Entry{}, ErrStockNotFound
	}
	return Entry{ItemID: itemID, Quantity: qty, UpdatedAt: time.Now()}, nil
}

func (r *memoryRepo) Restock(ctx context.Context, itemID int64, quantity int) (Entry, error) {
	qty, ok := r.entries[itemID]
	if !ok {
		return Entry{}, ErrStockNotFound
	}
	r.entries[itemID] = qty + quantity
	return Entry{ItemID: itemID, Quantity: qty + quantity, UpdatedAt: time.Now()}, nil
}

type captureAudit struct {
	logs []shared.AuditLog
}

func (a *captureAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func TestRestock(t *testing.T) {
	repo := newMemoryRepo()
	repo.entries[1] = 10
	audit := &captureAudit{}
	svc := NewService(repo, audit, nil)

	entry, err := svc.Restock(context.Background(), 1, 15, 3)
	require.NoError(t, err)
	require.Equal(t, 25, entry.Quantity)

	require.Len(t, audit.logs, 1)
	require.Equal(t, "stock_updated", audit.logs[0].Action)
	require.Equal(t, 15, audit.logs[0].Meta["added"])
	require.Equal(t, 25, audit.logs[0].Meta["new_quantity"])
}

func TestRestockRejectsNonPositive(t *testing.T) {
	repo := newMemoryRepo()
	repo.entries[1] = 10
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	_, err := svc.Restock(ctx, 1, 0, 0)
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.Restock(ctx, 1, -5, 0)
	require.ErrorIs(t, err, ErrInvalidQuantity)

	require.Equal(t, 10, repo.entries[1])
}

func TestRestockMissingEntry(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)

	_, err := svc.Restock(context.Background(), 42, 5, 0)
	require.ErrorIs(t, err, ErrStockNotFound)
}

func TestQuantity(t *testing.T) {
	repo := newMemoryRepo()
	repo.entries[1] = 7
	svc := NewService(repo, nil, nil)

	entry, err := svc.Quantity(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 7, entry.Quantity)

	_, err = svc.Quantity(context.Background(), 2)
	require.ErrorIs(t, err, ErrStockNotFound)
}
