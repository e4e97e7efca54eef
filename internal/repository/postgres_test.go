package repository_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/commission-service/internal/domain"
	"github.com/spec-kit/commission-service/internal/persistence"
	"github.com/spec-kit/commission-service/internal/repository"
	"github.com/spec-kit/commission-service/internal/service"
	apperrors "github.com/spec-kit/commission-service/pkg/util/errorutil"
)

// Runs against a real database; set TEST_POSTGRES_DSN to enable.
func newTestStore(t *testing.T) *repository.PostgresStore {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, persistence.RunMigrations(ctx, pool, zap.NewNop()))
	return repository.NewPostgresStore(pool)
}

func seedAgent(t *testing.T, store *repository.PostgresStore) *domain.Agent {
	t.Helper()
	agent := &domain.Agent{
		Code:           "T-" + uuid.NewString()[:8],
		Name:           "Ana",
		Email:          uuid.NewString() + "@example.com",
		CommissionRate: decimal.NewFromInt(10),
		Active:         true,
	}
	require.NoError(t, store.Repos().Agents.Create(context.Background(), agent))
	return agent
}

func TestPostgresWithinTxRollsBack(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	agent := seedAgent(t, store)
	boom := errors.New("boom")

	err := store.WithinTx(ctx, func(repos repository.Repositories) error {
		require.NoError(t, repos.Agents.AdjustCounters(ctx, agent.ID, domain.CounterDelta{Sales: 1, SalesValue: decimal.NewFromInt(500)}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := store.Repos().Agents.GetByID(ctx, agent.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.TotalSales)

	require.NoError(t, store.WithinTx(ctx, func(repos repository.Repositories) error {
		return repos.Agents.AdjustCounters(ctx, agent.ID, domain.CounterDelta{Sales: 1, SalesValue: decimal.NewFromInt(500)})
	}))
	got, err = store.Repos().Agents.GetByID(ctx, agent.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.TotalSales)
	assert.True(t, got.TotalSalesValue.Equal(decimal.NewFromInt(500)))
}

func TestPostgresDuplicateCode(t *testing.T) {
	store := newTestStore(t)
	agent := seedAgent(t, store)
	err := store.Repos().Agents.Create(context.Background(), &domain.Agent{Code: agent.Code, Name: "Dup", CommissionRate: decimal.Zero})
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestPostgresMissingAgent(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Repos().Agents.GetByID(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestPostgresMalformedIDIsNotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Repos().Sales.GetByID(ctx, "nope")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	err = store.WithinTx(ctx, func(repos repository.Repositories) error {
		_, err := repos.Agents.GetByIDForUpdate(ctx, "nope")
		return err
	})
	assert.ErrorIs(t, err, repository.ErrNotFound)

	agent := seedAgent(t, store)
	sales := service.NewSaleService(service.Dependencies{Store: store})
	actor := domain.Actor{UserID: "user-1", Role: domain.RoleAgent, AgentID: &agent.ID}
	_, err = sales.SubmitSale(ctx, actor, agent.ID, domain.SaleInput{
		Closer:      domain.RegisteredCloser("nope"),
		ClientName:  "Acme Corp",
		ClientEmail: "ops@acme.test",
		ServiceName: "Onboarding",
		Amount:      decimal.NewFromInt(100),
	})
	assert.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(err), "%v", err)
}

func TestPostgresCounterOverflowIsInvalidValue(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	agent := seedAgent(t, store)

	err := store.Repos().Agents.AdjustCounters(ctx, agent.ID, domain.CounterDelta{Sales: 1, SalesValue: decimal.New(1, 13)})
	assert.ErrorIs(t, err, repository.ErrInvalidValue)
}
