package reports

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backoffice/internal/domain/settlement"
)

type fakeStore struct {
	mu        sync.Mutex
	sales     SalesSnapshot
	cafe      map[string]CafeSnapshot
	shops     []Shop
	salesHits int
	from, to  time.Time
}

func (f *fakeStore) LoadSalesSnapshot(_ context.Context, from, to time.Time) (SalesSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.salesHits++
	f.from, f.to = from, to
	return f.sales, nil
}

func (f *fakeStore) LoadCafeSnapshot(_ context.Context, shopID string, from, to time.Time) (CafeSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cafe[shopID], nil
}

func (f *fakeStore) ListShops(context.Context) ([]Shop, error) {
	return f.shops, nil
}

func (f *fakeStore) ShopExists(_ context.Context, shopID string) (bool, error) {
	for _, shop := range f.shops {
		if shop.ID == shopID {
			return true, nil
		}
	}
	return false, nil
}

type memoryCache struct {
	mu          sync.Mutex
	entries     map[string][]byte
	generations map[string]int64
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string][]byte{}, generations: map[string]int64{}}
}

func (c *memoryCache) Generation(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[key], nil
}

func (c *memoryCache) Bump(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[key]++
	return nil
}

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.entries[key]
	return value, ok, nil
}

func (c *memoryCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	return nil
}

func (c *memoryCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.entries, key)
	}
	return nil
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func salesFixture() SalesSnapshot {
	return SalesSnapshot{
		Employees: []settlement.Employee{{ID: "e1", Name: "Aida", FixedRate: d("500"), PercentRate: d("10")}},
		Orders:    []settlement.SalesRecord{{ID: "o1", Date: settlement.Date(2024, 3, 5), Amount: d("1000"), CreatedBy: "e1"}},
		Shifts:    []settlement.ShiftAssignment{{Date: settlement.Date(2024, 3, 5), EmployeeIDs: []string{"e1"}}},
		Payouts:   []settlement.Payout{{ID: "p1", EmployeeID: "e1", AnchorDate: settlement.Date(2024, 3, 1), Amount: d("200"), Pipeline: settlement.PipelineSales}},
	}
}

func newTestService(store StoreAPI, cache Cache, mode string) *Service {
	return NewService(store, cache, settlement.NewEngine(settlement.DefaultCalculator()), mode, time.Minute)
}

func TestSalesReportSemimonthly(t *testing.T) {
	store := &fakeStore{sales: salesFixture()}
	svc := newTestService(store, nil, settlement.PeriodModeSemimonthly)

	set, err := svc.SalesReport(context.Background(), 3, 2024)
	require.NoError(t, err)
	require.Len(t, set.Periods, 2)
	assert.Equal(t, settlement.PipelineSales, set.Pipeline)
	assert.True(t, store.from.Equal(settlement.Date(2024, 3, 1)))
	assert.True(t, store.to.Equal(settlement.Date(2024, 3, 31)))

	summary, ok := set.Periods[0].Employee("e1")
	require.True(t, ok)
	assert.True(t, summary.Outstanding.Equal(d("400")), "outstanding %s", summary.Outstanding)
	assert.Len(t, set.Periods[0].Creators, 1)
}

func TestSalesReportWeekly(t *testing.T) {
	store := &fakeStore{sales: salesFixture()}
	store.sales.Payouts = nil
	svc := newTestService(store, nil, settlement.PeriodModeWeekly)

	set, err := svc.SalesReport(context.Background(), 3, 2024)
	require.NoError(t, err)
	require.Len(t, set.Periods, 4)
	assert.Equal(t, settlement.PeriodModeWeekly, set.PeriodMode)
	_, ok := set.Periods[0].Employee("e1")
	assert.True(t, ok)
}

func TestSalesReportInvalidMonth(t *testing.T) {
	svc := newTestService(&fakeStore{}, nil, "")
	_, err := svc.SalesReport(context.Background(), 13, 2024)
	assert.True(t, errors.Is(err, settlement.ErrInvalidPeriod))
}

func TestReportCacheHitAndInvalidate(t *testing.T) {
	store := &fakeStore{sales: salesFixture()}
	cache := newMemoryCache()
	svc := newTestService(store, cache, "")
	ctx := context.Background()

	_, err := svc.SalesReport(ctx, 3, 2024)
	require.NoError(t, err)
	_, err = svc.SalesReport(ctx, 3, 2024)
	require.NoError(t, err)
	assert.Equal(t, 1, store.salesHits)

	_, ok, _ := cache.Get(ctx, CacheKey(settlement.PipelineSales, "", 2024, 3))
	require.True(t, ok)

	require.NoError(t, svc.InvalidateMonth(ctx, settlement.PipelineSales, "ignored", settlement.Date(2024, 3, 16)))
	_, ok, _ = cache.Get(ctx, CacheKey(settlement.PipelineSales, "", 2024, 3))
	assert.False(t, ok)

	_, err = svc.SalesReport(ctx, 3, 2024)
	require.NoError(t, err)
	assert.Equal(t, 2, store.salesHits)
}

func TestEmployeeBalanceBypassesCache(t *testing.T) {
	store := &fakeStore{sales: salesFixture()}
	cache := newMemoryCache()
	svc := newTestService(store, cache, "")
	ctx := context.Background()

	_, err := svc.SalesReport(ctx, 3, 2024)
	require.NoError(t, err)

	store.sales.Payouts = append(store.sales.Payouts, settlement.Payout{ID: "p2", EmployeeID: "e1", AnchorDate: settlement.Date(2024, 3, 1), Amount: d("50")})
	summary, err := svc.EmployeeBalance(ctx, settlement.PipelineSales, "", "e1", settlement.Date(2024, 3, 1))
	require.NoError(t, err)
	assert.True(t, summary.Outstanding.Equal(d("350")), "outstanding %s", summary.Outstanding)
	assert.Equal(t, 2, store.salesHits)

	_, err = svc.EmployeeBalance(ctx, settlement.PipelineSales, "", "e1", settlement.Date(2024, 3, 4))
	assert.True(t, errors.Is(err, settlement.ErrMisfiledPayout))
}

func TestCafeReportRequiresKnownShop(t *testing.T) {
	store := &fakeStore{
		shops: []Shop{{ID: "s1", Name: "Central"}},
		cafe: map[string]CafeSnapshot{"s1": {
			Employees: []settlement.Employee{{ID: "b1", Name: "Bek", FixedRate: d("300"), PercentRate: d("5")}},
			Records: []settlement.CashRecord{{ID: "c1", ShopID: "s1", Date: settlement.Date(2024, 3, 20),
				TotalCash: d("2000"), Expenses: d("400"), BaristaID: "b1"}},
		}},
	}
	svc := newTestService(store, nil, "")
	ctx := context.Background()

	_, err := svc.CafeReport(ctx, "", 3, 2024)
	assert.ErrorIs(t, err, ErrShopRequired)
	_, err = svc.CafeReport(ctx, "s2", 3, 2024)
	assert.ErrorIs(t, err, ErrShopNotFound)

	set, err := svc.CafeReport(ctx, "s1", 3, 2024)
	require.NoError(t, err)
	assert.Equal(t, "s1", set.ShopID)
	assert.True(t, set.Periods[1].Totals.Profit.Equal(d("1200")), "profit %s", set.Periods[1].Totals.Profit)
}

func TestReportUnknownPipeline(t *testing.T) {
	svc := newTestService(&fakeStore{}, nil, "")
	_, err := svc.Report(context.Background(), "payroll", "", 3, 2024)
	assert.ErrorIs(t, err, ErrUnknownPipeline)
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "settlement:report:sales:all:2024-03", CacheKey(settlement.PipelineSales, "", 2024, 3))
	assert.Equal(t, "settlement:report:cafe:s1:2024-11", CacheKey(settlement.PipelineCafe, "s1", 2024, 11))
}

// blockingStore hands out the snapshot it held when the load began, then
// waits for release before returning it.
type blockingStore struct {
	*fakeStore
	loaded  chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingStore) LoadSalesSnapshot(ctx context.Context, from, to time.Time) (SalesSnapshot, error) {
	snap, err := b.fakeStore.LoadSalesSnapshot(ctx, from, to)
	snap.Payouts = append([]settlement.Payout(nil), snap.Payouts...)
	blocked := false
	b.once.Do(func() { blocked = true })
	if blocked {
		close(b.loaded)
		<-b.release
	}
	return snap, err
}

func TestReportWrittenDuringInvalidationIsNotServed(t *testing.T) {
	store := &blockingStore{
		fakeStore: &fakeStore{sales: salesFixture()},
		loaded:    make(chan struct{}),
		release:   make(chan struct{}),
	}
	cache := newMemoryCache()
	svc := newTestService(store, cache, "")
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := svc.SalesReport(ctx, 3, 2024)
		done <- err
	}()
	<-store.loaded

	store.fakeStore.mu.Lock()
	store.fakeStore.sales.Payouts = append(store.fakeStore.sales.Payouts,
		settlement.Payout{ID: "p2", EmployeeID: "e1", AnchorDate: settlement.Date(2024, 3, 1), Amount: d("50"), Pipeline: settlement.PipelineSales})
	store.fakeStore.mu.Unlock()
	require.NoError(t, svc.InvalidateMonth(ctx, settlement.PipelineSales, "", settlement.Date(2024, 3, 1)))

	close(store.release)
	require.NoError(t, <-done)

	set, err := svc.SalesReport(ctx, 3, 2024)
	require.NoError(t, err)
	summary, ok := set.Periods[0].Employee("e1")
	require.True(t, ok)
	assert.True(t, summary.Paid.Equal(d("250")), "paid %s", summary.Paid)
	assert.True(t, summary.Outstanding.Equal(d("350")), "outstanding %s", summary.Outstanding)
}

func TestReportCacheIgnoresOlderGeneration(t *testing.T) {
	store := &fakeStore{sales: salesFixture()}
	cache := newMemoryCache()
	svc := newTestService(store, cache, "")
	ctx := context.Background()
	key := CacheKey(settlement.PipelineSales, "", 2024, 3)

	_, err := svc.SalesReport(ctx, 3, 2024)
	require.NoError(t, err)
	require.NoError(t, cache.Bump(ctx, key))

	_, err = svc.SalesReport(ctx, 3, 2024)
	require.NoError(t, err)
	_, err = svc.SalesReport(ctx, 3, 2024)
	require.NoError(t, err)
	assert.Equal(t, 2, store.salesHits)
}
