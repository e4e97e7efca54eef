package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/commission-service/internal/domain"
	"github.com/spec-kit/commission-service/internal/events"
	"github.com/spec-kit/commission-service/internal/repository"
	apperrors "github.com/spec-kit/commission-service/pkg/util/errorutil"
)

func mustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestRateUpdateOutOfRangeChangesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	agent := f.agent(t, "10", "5")
	sale := f.submit(t, agent.ID, saleInput(domain.AdhocCloser("Walk-in"), "1000"))

	_, err := f.roster.SetAgentCommissionRates(ctx, admin, agent.ID, mustDecimal("150"), mustDecimal("5"))
	assertCode(t, apperrors.CodeValidation, err)
	_, err = f.roster.SetAgentCommissionRates(ctx, admin, agent.ID, mustDecimal("10"), mustDecimal("-1"))
	assertCode(t, apperrors.CodeValidation, err)

	got := f.getAgent(t, agent.ID)
	assertMoney(t, "10.00", got.CommissionRate)
	assertMoney(t, "5.00", got.CloserCommissionRate)
	assertMoney(t, "100.00", f.getSale(t, sale.ID).AgentCommission)
	assert.Empty(t, f.recorder.ofType(events.EventCommissionRatesUpdated))
}

func TestRateUpdateRecalculatesSalesUnderReview(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	agent := f.agent(t, "10", "5")

	pending := f.submit(t, agent.ID, saleInput(domain.AdhocCloser("Walk-in"), "1000"))
	closer := f.closer(t, "8")
	withCloser := f.submit(t, agent.ID, saleInput(domain.RegisteredCloser(closer.ID), "1000"))
	approved := f.submit(t, agent.ID, saleInput(domain.AdhocCloser("Walk-in"), "1000"))
	paid := f.submit(t, agent.ID, saleInput(domain.AdhocCloser("Walk-in"), "1000"))
	rejected := f.submit(t, agent.ID, saleInput(domain.AdhocCloser("Walk-in"), "1000"))

	f.approve(t, approved.ID)
	f.approve(t, paid.ID)
	for _, next := range []domain.CommissionStatus{domain.CommissionStatusApproved, domain.CommissionStatusPaid} {
		_, err := f.review.SetCommissionStatus(ctx, admin, paid.ID, next)
		require.NoError(t, err)
	}
	_, err := f.review.SetSaleStatus(ctx, admin, rejected.ID, domain.SaleStatusRejected)
	require.NoError(t, err)
	resubmitted, err := f.sales.ResubmitSale(ctx, agentActor(agent.ID), agent.ID, rejected.ID, saleInput(domain.AdhocCloser("Walk-in"), "2000"))
	require.NoError(t, err)
	before := f.getAgent(t, agent.ID).Counters

	result, err := f.roster.SetAgentCommissionRates(ctx, admin, agent.ID, mustDecimal("12.5"), mustDecimal("2"))
	require.NoError(t, err)
	assert.Equal(t, 3, result.RecalculatedSales)
	assertMoney(t, "12.50", result.Agent.CommissionRate)

	got := f.getSale(t, pending.ID)
	assertMoney(t, "125.00", got.AgentCommission)
	assertMoney(t, "20.00", got.CloserCommission)
	assertMoney(t, "250.00", f.getSale(t, resubmitted.ID).AgentCommission)

	// Registered closers keep their own rate; only free-text closers take the
	// agent's closer rate.
	got = f.getSale(t, withCloser.ID)
	assertMoney(t, "125.00", got.AgentCommission)
	assertMoney(t, "8.00", got.CloserCommissionRate)
	assertMoney(t, "80.00", got.CloserCommission)
	single, err := f.review.RecalculateSale(ctx, admin, withCloser.ID)
	require.NoError(t, err)
	assertMoney(t, "80.00", single.CloserCommission)

	for _, id := range []string{approved.ID, paid.ID, rejected.ID} {
		untouched := f.getSale(t, id)
		assertMoney(t, "100.00", untouched.AgentCommission, id)
		assertMoney(t, "10.00", untouched.AgentCommissionRate, id)
	}
	assert.Equal(t, before, f.getAgent(t, agent.ID).Counters)

	assert.Len(t, f.recorder.ofType(events.EventCommissionRatesUpdated), 1)
	assert.Len(t, f.recorder.ofType(events.EventSaleRecalculated), 4)

	history, err := f.sales.ListHistory(ctx, admin, pending.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.ChangeTypeRecalculated, history[1].ChangeType)

	next := f.submit(t, agent.ID, saleInput(domain.AdhocCloser("Walk-in"), "100"))
	assertMoney(t, "12.50", next.AgentCommission)
}

func TestRateUpdateRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	agent := f.agent(t, "10", "5")
	_, err := f.roster.SetAgentCommissionRates(context.Background(), agentActor(agent.ID), agent.ID, mustDecimal("50"), mustDecimal("5"))
	assertCode(t, apperrors.CodeForbidden, err)

	_, err = f.roster.SetAgentCommissionRates(context.Background(), admin, "missing", mustDecimal("50"), mustDecimal("5"))
	assertCode(t, apperrors.CodeNotFound, err)
}

func TestRegistryCodes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	agent := f.agent(t, "10", "5")
	assert.Regexp(t, `^AGT-[A-Z0-9]{6}$`, agent.Code)
	assert.True(t, agent.Active)

	_, err := f.roster.CreateAgent(ctx, admin, AgentInput{Code: agent.Code, Name: "Dup", CommissionRate: mustDecimal("1")})
	assertCode(t, apperrors.CodeConflict, err)

	closer, err := f.roster.CreateCloser(ctx, admin, CloserInput{Code: "CLS-HOUSE1", Name: "House"})
	require.NoError(t, err)
	assert.Equal(t, "CLS-HOUSE1", closer.Code)
	assert.Equal(t, domain.CloserStatusActive, closer.Status)

	_, err = f.roster.CreateCloser(ctx, admin, CloserInput{Code: "CLS-HOUSE1", Name: "Other"})
	assertCode(t, apperrors.CodeConflict, err)

	_, err = f.roster.CreateAgent(ctx, admin, AgentInput{Name: "Bad", CommissionRate: mustDecimal("101")})
	assertCode(t, apperrors.CodeValidation, err)

	_, err = f.roster.CreateAgent(ctx, admin, AgentInput{Name: "", Email: "not-an-email"})
	assertCode(t, apperrors.CodeValidation, err)
}

func TestRegistryAccess(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	agent := f.agent(t, "10", "5")
	active := f.closer(t, "5")
	retired := f.closer(t, "5")
	inactive := domain.CloserStatusInactive
	_, err := f.roster.UpdateCloser(ctx, admin, retired.ID, CloserUpdate{Status: &inactive})
	require.NoError(t, err)

	_, err = f.roster.GetAgent(ctx, agentActor("other"), agent.ID)
	assertCode(t, apperrors.CodeForbidden, err)
	got, err := f.roster.GetAgent(ctx, agentActor(agent.ID), agent.ID)
	require.NoError(t, err)
	assert.Equal(t, agent.Code, got.Code)

	_, err = f.roster.ListAgents(ctx, agentActor(agent.ID), repository.RosterFilter{})
	assertCode(t, apperrors.CodeForbidden, err)

	visible, err := f.roster.ListClosers(ctx, agentActor(agent.ID), repository.RosterFilter{})
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, active.ID, visible[0].ID)

	all, err := f.roster.ListClosers(ctx, admin, repository.RosterFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = f.roster.ListClosers(ctx, closerActor(active.ID), repository.RosterFilter{})
	assertCode(t, apperrors.CodeForbidden, err)

	_, err = f.roster.GetCloser(ctx, closerActor(active.ID), retired.ID)
	assertCode(t, apperrors.CodeForbidden, err)

	bad := domain.CloserStatus("RETIRED")
	_, err = f.roster.UpdateCloser(ctx, admin, active.ID, CloserUpdate{Status: &bad})
	assertCode(t, apperrors.CodeValidation, err)
}
