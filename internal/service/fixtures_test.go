package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/commission-service/internal/domain"
	"github.com/spec-kit/commission-service/internal/events"
	"github.com/spec-kit/commission-service/internal/repository/memory"
	apperrors "github.com/spec-kit/commission-service/pkg/util/errorutil"
)

var fixedNow = time.Date(2024, time.May, 15, 10, 0, 0, 0, time.UTC)

var admin = domain.Actor{UserID: "admin-1", Role: domain.RoleAdmin}

func agentActor(agentID string) domain.Actor {
	return domain.Actor{UserID: "user-" + agentID, Role: domain.RoleAgent, AgentID: &agentID}
}

func closerActor(closerID string) domain.Actor {
	return domain.Actor{UserID: "user-" + closerID, Role: domain.RoleCloser, CloserID: &closerID}
}

type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) handle(_ context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *eventRecorder) ofType(eventType events.EventType) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, event := range r.events {
		if event.Type == eventType {
			out = append(out, event)
		}
	}
	return out
}

type fixture struct {
	store      *memory.Store
	dispatcher events.Dispatcher
	recorder   *eventRecorder
	deps       Dependencies
	sales      *SaleService
	review     *ReviewService
	roster     *RosterService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := func() time.Time { return fixedNow }
	store := memory.New().WithClock(clock)
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	recorder := &eventRecorder{}
	events.SubscribeAll(dispatcher, recorder.handle)

	deps := Dependencies{Store: store, Dispatcher: dispatcher, Clock: clock}
	return &fixture{
		store:      store,
		dispatcher: dispatcher,
		recorder:   recorder,
		deps:       deps,
		sales:      NewSaleService(deps),
		review:     NewReviewService(deps),
		roster:     NewRosterService(deps),
	}
}

func (f *fixture) agent(t *testing.T, rate, closerRate string) *domain.Agent {
	t.Helper()
	agent, err := f.roster.CreateAgent(context.Background(), admin, AgentInput{
		Name:                 "Ana Agent",
		Email:                "ana@agency.test",
		CommissionRate:       decimal.RequireFromString(rate),
		CloserCommissionRate: decimal.RequireFromString(closerRate),
	})
	require.NoError(t, err)
	return agent
}

func (f *fixture) closer(t *testing.T, rate string) *domain.Closer {
	t.Helper()
	closer, err := f.roster.CreateCloser(context.Background(), admin, CloserInput{
		Name:           "Carl Closer",
		Email:          "carl@agency.test",
		CommissionRate: decimal.RequireFromString(rate),
	})
	require.NoError(t, err)
	return closer
}

func (f *fixture) getAgent(t *testing.T, id string) *domain.Agent {
	t.Helper()
	agent, err := f.store.Repos().Agents.GetByID(context.Background(), id)
	require.NoError(t, err)
	return agent
}

func (f *fixture) getCloser(t *testing.T, id string) *domain.Closer {
	t.Helper()
	closer, err := f.store.Repos().Closers.GetByID(context.Background(), id)
	require.NoError(t, err)
	return closer
}

func (f *fixture) getSale(t *testing.T, id string) *domain.Sale {
	t.Helper()
	sale, err := f.store.Repos().Sales.GetByID(context.Background(), id)
	require.NoError(t, err)
	return sale
}

// submit files a sale through the agent's own account.
func (f *fixture) submit(t *testing.T, agentID string, in domain.SaleInput) *domain.Sale {
	t.Helper()
	sale, err := f.sales.SubmitSale(context.Background(), agentActor(agentID), agentID, in)
	require.NoError(t, err)
	return sale
}

func (f *fixture) approve(t *testing.T, saleID string) *domain.Sale {
	t.Helper()
	sale, err := f.review.SetSaleStatus(context.Background(), admin, saleID, domain.SaleStatusApproved)
	require.NoError(t, err)
	return sale
}

func saleInput(ref domain.CloserReference, amount string) domain.SaleInput {
	return domain.SaleInput{
		Closer:      ref,
		ClientName:  "Acme Corp",
		ClientEmail: "ops@acme.test",
		ServiceName: "Onboarding",
		Amount:      decimal.RequireFromString(amount),
	}
}

func assertMoney(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.Equal(t, want, got.StringFixed(2), msgAndArgs...)
}

func assertCode(t *testing.T, code string, err error) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, apperrors.CodeOf(err), "unexpected error: %v", err)
}
