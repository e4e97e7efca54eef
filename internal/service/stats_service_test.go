package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/commission-service/internal/config"
	"github.com/spec-kit/commission-service/internal/domain"
	"github.com/spec-kit/commission-service/internal/events"
	apperrors "github.com/spec-kit/commission-service/pkg/util/errorutil"
)

type mapCache struct {
	mu          sync.Mutex
	entries     map[string][]domain.MonthlyStat
	tracking    map[string][]string
	generations map[string]int64
	hits        int
	// beforeSet runs ahead of every Set, outside the lock.
	beforeSet func(trackingKey string)
}

func newMapCache() *mapCache {
	return &mapCache{
		entries:     map[string][]domain.MonthlyStat{},
		tracking:    map[string][]string{},
		generations: map[string]int64{},
	}
}

func (c *mapCache) Get(_ context.Context, key string) ([]domain.MonthlyStat, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	stats, ok := c.entries[key]
	if ok {
		c.hits++
	}
	return stats, ok, nil
}

func (c *mapCache) Generation(_ context.Context, trackingKey string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[trackingKey], nil
}

func (c *mapCache) Set(_ context.Context, trackingKey, key string, generation int64, stats []domain.MonthlyStat, _ time.Duration) error {
	if c.beforeSet != nil {
		c.beforeSet(trackingKey)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[trackingKey] != generation {
		return nil
	}
	c.entries[key] = stats
	c.tracking[trackingKey] = append(c.tracking[trackingKey], key)
	return nil
}

func (c *mapCache) Invalidate(_ context.Context, trackingKey string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[trackingKey]++
	for _, key := range c.tracking[trackingKey] {
		delete(c.entries, key)
	}
	delete(c.tracking, trackingKey)
	return nil
}

func (c *mapCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

var statsConfig = config.StatsConfig{CacheTTLSeconds: 60, DefaultMonths: 6, MaxMonths: 24}

func datedInput(ref domain.CloserReference, amount string, at time.Time) domain.SaleInput {
	in := saleInput(ref, amount)
	in.SaleDate = &at
	return in
}

func TestMonthlyStatsBuckets(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	stats := NewStatsService(f.deps, nil, statsConfig, zap.NewNop())
	agent := f.agent(t, "10", "5")
	closer := f.closer(t, "5")
	ref := domain.RegisteredCloser(closer.ID)

	may := f.submit(t, agent.ID, datedInput(ref, "1000", time.Date(2024, time.May, 2, 0, 0, 0, 0, time.UTC)))
	f.approve(t, may.ID)
	for _, next := range []domain.CommissionStatus{domain.CommissionStatusApproved, domain.CommissionStatusPaid} {
		_, err := f.review.SetCommissionStatus(ctx, admin, may.ID, next)
		require.NoError(t, err)
	}
	f.submit(t, agent.ID, datedInput(ref, "500", time.Date(2024, time.April, 10, 0, 0, 0, 0, time.UTC)))
	rejected := f.submit(t, agent.ID, datedInput(ref, "300", time.Date(2024, time.April, 20, 0, 0, 0, 0, time.UTC)))
	_, err := f.review.SetSaleStatus(ctx, admin, rejected.ID, domain.SaleStatusRejected)
	require.NoError(t, err)
	march := f.submit(t, agent.ID, datedInput(ref, "200", time.Date(2024, time.March, 31, 23, 0, 0, 0, time.UTC)))
	f.approve(t, march.ID)
	_, err = f.review.SetCommissionStatus(ctx, admin, march.ID, domain.CommissionStatusCancelled)
	require.NoError(t, err)
	f.submit(t, agent.ID, datedInput(ref, "700", time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC)))

	got, err := stats.MonthlyStats(ctx, agentActor(agent.ID), domain.PrincipalAgent, agent.ID, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"2024-05", "2024-04", "2024-03"}, []string{got[0].Month, got[1].Month, got[2].Month})

	assert.Equal(t, int64(1), got[0].SaleCount)
	assertMoney(t, "1000.00", got[0].SaleValue)
	assertMoney(t, "100.00", got[0].Commission)
	assertMoney(t, "100.00", got[0].PaidCommission)
	assertMoney(t, "0.00", got[0].PendingCommission)

	assert.Equal(t, int64(1), got[1].SaleCount)
	assertMoney(t, "500.00", got[1].SaleValue)
	assertMoney(t, "50.00", got[1].PendingCommission)

	assert.Equal(t, int64(1), got[2].SaleCount)
	assertMoney(t, "200.00", got[2].SaleValue)
	assertMoney(t, "0.00", got[2].Commission)

	closerStats, err := stats.MonthlyStats(ctx, closerActor(closer.ID), domain.PrincipalCloser, closer.ID, 1)
	require.NoError(t, err)
	require.Len(t, closerStats, 1)
	assertMoney(t, "50.00", closerStats[0].Commission)
}

func TestMonthlyStatsArguments(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	stats := NewStatsService(f.deps, nil, statsConfig, nil)
	agent := f.agent(t, "10", "5")

	got, err := stats.MonthlyStats(ctx, admin, domain.PrincipalAgent, agent.ID, 0)
	require.NoError(t, err)
	assert.Len(t, got, statsConfig.DefaultMonths)
	for _, stat := range got {
		assert.Zero(t, stat.SaleCount)
	}

	_, err = stats.MonthlyStats(ctx, admin, domain.PrincipalAgent, agent.ID, 25)
	assertCode(t, apperrors.CodeValidation, err)
	_, err = stats.MonthlyStats(ctx, admin, domain.PrincipalAgent, agent.ID, -1)
	assertCode(t, apperrors.CodeValidation, err)
	_, err = stats.MonthlyStats(ctx, agentActor("other"), domain.PrincipalAgent, agent.ID, 3)
	assertCode(t, apperrors.CodeForbidden, err)
	_, err = stats.MonthlyStats(ctx, admin, domain.PrincipalCloser, "missing", 3)
	assertCode(t, apperrors.CodeNotFound, err)
}

func TestMonthlyStatsCacheInvalidatedByEvents(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	cache := newMapCache()
	stats := NewStatsService(f.deps, cache, statsConfig, zap.NewNop())
	events.SubscribeAll(f.dispatcher, stats.HandleEvent)
	agent := f.agent(t, "10", "5")

	first, err := stats.MonthlyStats(ctx, admin, domain.PrincipalAgent, agent.ID, 2)
	require.NoError(t, err)
	assert.Zero(t, first[0].SaleCount)
	assert.Equal(t, 1, cache.size())

	_, err = stats.MonthlyStats(ctx, admin, domain.PrincipalAgent, agent.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits)

	f.submit(t, agent.ID, saleInput(domain.AdhocCloser("Walk-in"), "100"))
	assert.Zero(t, cache.size())

	fresh, err := stats.MonthlyStats(ctx, admin, domain.PrincipalAgent, agent.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), fresh[0].SaleCount)
}

func TestMonthlyStatsSkipsCacheWriteAfterConcurrentInvalidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	cache := newMapCache()
	stats := NewStatsService(f.deps, cache, statsConfig, zap.NewNop())
	agent := f.agent(t, "10", "5")

	// An approval landing between the query and the cache write.
	cache.beforeSet = func(trackingKey string) {
		require.NoError(t, cache.Invalidate(ctx, trackingKey))
	}
	_, err := stats.MonthlyStats(ctx, admin, domain.PrincipalAgent, agent.ID, 2)
	require.NoError(t, err)
	assert.Zero(t, cache.size())

	cache.beforeSet = nil
	_, err = stats.MonthlyStats(ctx, admin, domain.PrincipalAgent, agent.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.size())
}
