package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	items     map[int64]Item
	nextID    int64
	listCalls int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: make(map[int64]Item)}
}

func (r *memoryRepo) List(ctx context.Context) ([]Item, error) {
	r.listCalls++
	out := make([]Item, 0, len(r.items))
	for _, item := range r.items {
		out = append(out, item)
	}
	return out, nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Item, error) {
	item, ok := r.items[id]
	if !ok {
		return Item{}, ErrNotFound
	}
	return item, nil
}

func (r *memoryRepo) Create(ctx context.Context, input CreateInput) (Item, error) {
	for _, existing := range r.items {
		if existing.Name == input.Name {
			return Item{}, ErrDuplicateName
		}
	}
	r.nextID++
	item := Item{
		ID:             r.nextID,
		Name:           input.Name,
		Description:    input.Description,
		Dosage:         input.Dosage,
		Instructions:   input.Instructions,
		Price:          input.Price,
		IsActive:       input.IsActive,
		ExpirationDate: input.ExpirationDate,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	r.items[item.ID] = item
	return item, nil
}

func (r *memoryRepo) Update(ctx context.Context, item Item) (Item, error) {
	if _, ok := r.items[item.ID]; !ok {
		return Item{}, ErrNotFound
	}
	item.UpdatedAt = time.Now()
	r.items[item.ID] = item
	return item, nil
}

func (r *memoryRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.items[id]; !ok {
		return ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func datePtr(t time.Time) *time.Time { return &t }

func TestEffectiveActive(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	item := Item{IsActive: true}
	require.True(t, item.EffectiveActive(now))

	item.ExpirationDate = datePtr(now.AddDate(0, 1, 0))
	require.True(t, item.EffectiveActive(now))

	item.ExpirationDate = datePtr(now.AddDate(0, -1, 0))
	require.False(t, item.EffectiveActive(now))

	// The stored flag cannot resurrect an expired item.
	item.IsActive = true
	require.False(t, item.EffectiveActive(now))

	item = Item{IsActive: false}
	require.False(t, item.EffectiveActive(now))
}

func TestResolvePrice(t *testing.T) {
	item := Item{Price: decimal.RequireFromString("10.00")}

	require.Equal(t, "10.00", ResolvePrice(item, nil).StringFixed(2))

	override := decimal.RequireFromString("7.25")
	require.Equal(t, "7.25", ResolvePrice(item, &override).StringFixed(2))
	require.Equal(t, "10.00", item.Price.StringFixed(2))
}

func TestCreateValidation(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{Name: "   ", Price: decimal.Zero})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Create(ctx, CreateInput{Name: "Aspirin", Price: decimal.RequireFromString("-1")})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Create(ctx, CreateInput{Name: "Aspirin", Price: decimal.Zero, ExpirationDate: datePtr(time.Now().AddDate(0, 0, -2))})
	require.ErrorIs(t, err, ErrExpiredDate)
}

func TestCreateDuplicateName(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{Name: "Aspirin", Price: decimal.RequireFromString("2.00"), IsActive: true})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateInput{Name: "Aspirin", Price: decimal.RequireFromString("3.00"), IsActive: true})
	require.ErrorIs(t, err, ErrDuplicateName)
}

func TestUpdatePastExpiryForcesInactive(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	item, err := svc.Create(ctx, CreateInput{Name: "Aspirin", Price: decimal.RequireFromString("2.00"), IsActive: true})
	require.NoError(t, err)

	active := true
	updated, err := svc.Update(ctx, item.ID, UpdateInput{
		IsActive:       &active,
		ExpirationDate: datePtr(time.Now().AddDate(0, 0, -1)),
	})
	require.NoError(t, err)
	require.False(t, updated.IsActive)
}

func TestListUsesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	repo := newMemoryRepo()
	svc := NewService(repo, nil, cache, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{Name: "Aspirin", Price: decimal.RequireFromString("2.00"), IsActive: true})
	require.NoError(t, err)

	items, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, 1, repo.listCalls)

	// Second read is served from Redis.
	items, err = svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, 1, repo.listCalls)

	// A mutation invalidates the cached list.
	_, err = svc.Create(ctx, CreateInput{Name: "Ibuprofen", Price: decimal.RequireFromString("4.00"), IsActive: true})
	require.NoError(t, err)

	items, err = svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, 2, repo.listCalls)
}

func TestDeleteMissing(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)

	err := svc.Delete(context.Background(), 99, 0)
	require.ErrorIs(t, err, ErrNotFound)
}
