package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/commission-service/internal/domain"
	"github.com/spec-kit/commission-service/internal/events"
	apperrors "github.com/spec-kit/commission-service/pkg/util/errorutil"
)

func TestSaleLifecycleEndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	agent := f.agent(t, "10", "5")
	closer := f.closer(t, "5")

	first := f.submit(t, agent.ID, saleInput(domain.RegisteredCloser(closer.ID), "1000"))
	assertMoney(t, "100.00", first.AgentCommission)
	assertMoney(t, "50.00", first.CloserCommission)
	assert.Equal(t, domain.SaleStatusPending, first.Status)
	assert.Equal(t, domain.CommissionStatusPending, first.CommissionStatus)
	assert.Equal(t, closer.Name, first.Closer.Name)

	_, err := f.review.SetSaleStatus(ctx, admin, first.ID, domain.SaleStatusRejected)
	require.NoError(t, err)
	assert.Equal(t, int64(0), f.getAgent(t, agent.ID).TotalSales)

	second, err := f.sales.ResubmitSale(ctx, agentActor(agent.ID), agent.ID, first.ID, saleInput(domain.RegisteredCloser(closer.ID), "1200"))
	require.NoError(t, err)
	assert.Equal(t, domain.SaleStatusResubmitted, second.Status)
	assertMoney(t, "120.00", second.AgentCommission)
	require.NotNil(t, second.OriginalSaleID)
	assert.Equal(t, first.ID, *second.OriginalSaleID)
	assert.Equal(t, domain.SaleStatusRejected, f.getSale(t, first.ID).Status)

	f.approve(t, second.ID)
	got := f.getAgent(t, agent.ID)
	assert.Equal(t, int64(1), got.TotalSales)
	assertMoney(t, "1200.00", got.TotalSalesValue)
	assertMoney(t, "120.00", got.TotalEarnings)
	assertMoney(t, "120.00", got.PendingCommission)

	gotCloser := f.getCloser(t, closer.ID)
	assert.Equal(t, int64(1), gotCloser.TotalSales)
	assertMoney(t, "60.00", gotCloser.TotalEarnings)
	assertMoney(t, "60.00", gotCloser.PendingCommission)

	_, err = f.review.SetCommissionStatus(ctx, admin, second.ID, domain.CommissionStatusApproved)
	require.NoError(t, err)
	_, err = f.review.SetCommissionStatus(ctx, admin, second.ID, domain.CommissionStatusPaid)
	require.NoError(t, err)

	got = f.getAgent(t, agent.ID)
	assertMoney(t, "0.00", got.PendingCommission)
	assertMoney(t, "120.00", got.TotalEarnings)
	assertMoney(t, "0.00", f.getCloser(t, closer.ID).PendingCommission)

	history, err := f.sales.ListHistory(ctx, admin, second.ID)
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, domain.ChangeTypeResubmitted, history[0].ChangeType)
	assert.Equal(t, domain.ChangeTypeCommissionStatus, history[3].ChangeType)

	assert.Len(t, f.recorder.ofType(events.EventSaleSubmitted), 1)
	assert.Len(t, f.recorder.ofType(events.EventSaleResubmitted), 1)
	assert.Len(t, f.recorder.ofType(events.EventSaleStatusChanged), 2)
}

func TestSubmitSaleValidation(t *testing.T) {
	f := newFixture(t)
	agent := f.agent(t, "10", "5")

	in := saleInput(domain.AdhocCloser("Walk-in"), "0")
	in.ClientName = "   "
	_, err := f.sales.SubmitSale(context.Background(), agentActor(agent.ID), agent.ID, in)
	assertCode(t, apperrors.CodeValidation, err)

	details := apperrors.ToDomainError(err).Details
	assert.Contains(t, details, "client_name")
	assert.Contains(t, details, "sale_amount")
}

func TestSubmitSaleScope(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	agent := f.agent(t, "10", "5")
	in := saleInput(domain.AdhocCloser("Walk-in"), "100")

	_, err := f.sales.SubmitSale(ctx, agentActor("someone-else"), agent.ID, in)
	assertCode(t, apperrors.CodeForbidden, err)

	_, err = f.sales.SubmitSale(ctx, admin, "missing", in)
	assertCode(t, apperrors.CodeNotFound, err)

	inactive := false
	_, err = f.roster.UpdateAgent(ctx, admin, agent.ID, AgentUpdate{Active: &inactive})
	require.NoError(t, err)
	_, err = f.sales.SubmitSale(ctx, agentActor(agent.ID), agent.ID, in)
	assertCode(t, apperrors.CodeNotFound, err)
}

func TestSubmitSaleCloserResolution(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	agent := f.agent(t, "10", "5")
	closer := f.closer(t, "7.5")

	adhoc := f.submit(t, agent.ID, saleInput(domain.AdhocCloser("Walk-in Wally"), "200"))
	assert.Equal(t, domain.CloserKindAdhoc, adhoc.Closer.Kind)
	assert.Equal(t, "Walk-in Wally", adhoc.Closer.Name)
	assertMoney(t, "0.00", adhoc.CloserCommission)
	assertMoney(t, "20.00", adhoc.AgentCommission)

	registered := f.submit(t, agent.ID, saleInput(domain.RegisteredCloser(closer.ID), "200"))
	assertMoney(t, "15.00", registered.CloserCommission)
	assert.Regexp(t, `^SL-202405-[A-Z0-9]{8}$`, registered.ReferenceCode)

	inactive := domain.CloserStatusInactive
	_, err := f.roster.UpdateCloser(ctx, admin, closer.ID, CloserUpdate{Status: &inactive})
	require.NoError(t, err)
	_, err = f.sales.SubmitSale(ctx, agentActor(agent.ID), agent.ID, saleInput(domain.RegisteredCloser(closer.ID), "200"))
	assertCode(t, apperrors.CodeNotFound, err)

	_, err = f.sales.SubmitSale(ctx, agentActor(agent.ID), agent.ID, saleInput(domain.RegisteredCloser("nope"), "200"))
	assertCode(t, apperrors.CodeNotFound, err)
}

func TestResubmitRules(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	agent := f.agent(t, "10", "5")
	other := f.agent(t, "10", "5")
	sale := f.submit(t, agent.ID, saleInput(domain.AdhocCloser("Walk-in"), "500"))
	in := saleInput(domain.AdhocCloser("Walk-in"), "550")

	_, err := f.sales.ResubmitSale(ctx, agentActor(agent.ID), agent.ID, sale.ID, in)
	assertCode(t, apperrors.CodeInvalidState, err)

	_, err = f.review.SetSaleStatus(ctx, admin, sale.ID, domain.SaleStatusRejected)
	require.NoError(t, err)

	_, err = f.sales.ResubmitSale(ctx, agentActor(other.ID), other.ID, sale.ID, in)
	assertCode(t, apperrors.CodeNotFound, err)

	_, err = f.sales.ResubmitSale(ctx, agentActor(agent.ID), agent.ID, sale.ID, in)
	require.NoError(t, err)

	_, err = f.sales.ResubmitSale(ctx, agentActor(agent.ID), agent.ID, sale.ID, in)
	assertCode(t, apperrors.CodeConflict, err)
}

func TestResubmitAfterRejectedResubmission(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	agent := f.agent(t, "10", "5")
	sale := f.submit(t, agent.ID, saleInput(domain.AdhocCloser("Walk-in"), "500"))
	_, err := f.review.SetSaleStatus(ctx, admin, sale.ID, domain.SaleStatusRejected)
	require.NoError(t, err)

	retry, err := f.sales.ResubmitSale(ctx, agentActor(agent.ID), agent.ID, sale.ID, saleInput(domain.AdhocCloser("Walk-in"), "450"))
	require.NoError(t, err)
	_, err = f.review.SetSaleStatus(ctx, admin, retry.ID, domain.SaleStatusRejected)
	require.NoError(t, err)

	_, err = f.sales.ResubmitSale(ctx, agentActor(agent.ID), agent.ID, sale.ID, saleInput(domain.AdhocCloser("Walk-in"), "400"))
	require.NoError(t, err)
}

func TestSaleVisibility(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	agent := f.agent(t, "10", "5")
	other := f.agent(t, "10", "5")
	closer := f.closer(t, "5")
	sale := f.submit(t, agent.ID, saleInput(domain.RegisteredCloser(closer.ID), "300"))
	f.submit(t, other.ID, saleInput(domain.AdhocCloser("Walk-in"), "300"))

	_, err := f.sales.GetSale(ctx, agentActor(other.ID), sale.ID)
	assertCode(t, apperrors.CodeNotFound, err)

	got, err := f.sales.GetSale(ctx, closerActor(closer.ID), sale.ID)
	require.NoError(t, err)
	assert.Equal(t, sale.ID, got.ID)

	mine, err := f.sales.ListSales(ctx, agentActor(agent.ID), domain.SaleFilter{})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, sale.ID, mine[0].ID)

	all, err := f.sales.ListSales(ctx, admin, domain.SaleFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	forCloser, err := f.sales.ListSales(ctx, closerActor(closer.ID), domain.SaleFilter{})
	require.NoError(t, err)
	assert.Len(t, forCloser, 1)

	_, err = f.sales.ListSalesForAgent(ctx, agentActor(other.ID), agent.ID, domain.SaleFilter{})
	assertCode(t, apperrors.CodeForbidden, err)
}

func TestListSalesFilters(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	agent := f.agent(t, "10", "5")
	small := f.submit(t, agent.ID, saleInput(domain.AdhocCloser("Walk-in"), "100"))
	big := f.submit(t, agent.ID, saleInput(domain.AdhocCloser("Walk-in"), "900"))
	f.approve(t, big.ID)

	approved := domain.SaleStatusApproved
	sales, err := f.sales.ListSalesForAgent(ctx, admin, agent.ID, domain.SaleFilter{SaleStatus: &approved})
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, big.ID, sales[0].ID)

	ceiling := small.Amount
	sales, err = f.sales.ListSales(ctx, admin, domain.SaleFilter{MaxAmount: &ceiling})
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, small.ID, sales[0].ID)
}

func TestExportSalesCSV(t *testing.T) {
	f := newFixture(t)
	agent := f.agent(t, "10", "5")
	f.submit(t, agent.ID, saleInput(domain.AdhocCloser("Walk-in"), "100"))
	f.submit(t, agent.ID, saleInput(domain.AdhocCloser("Walk-in"), "250.5"))

	var buf bytes.Buffer
	n, err := f.sales.ExportSalesCSV(context.Background(), admin, domain.SaleFilter{Limit: 1}, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	records, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "reference_code", records[0][0])
	assert.Contains(t, []string{records[1][7], records[2][7]}, "250.50")
}

func TestStoreOutageSurfacesAsStoreUnavailable(t *testing.T) {
	f := newFixture(t)
	agent := f.agent(t, "10", "5")
	f.store.Fail(errors.New("connection refused"))

	_, err := f.sales.SubmitSale(context.Background(), agentActor(agent.ID), agent.ID, saleInput(domain.AdhocCloser("Walk-in"), "100"))
	assertCode(t, apperrors.CodeStoreUnavailable, err)

	_, err = f.sales.ListSales(context.Background(), admin, domain.SaleFilter{})
	assertCode(t, apperrors.CodeStoreUnavailable, err)
	assert.Empty(t, f.recorder.ofType(events.EventSaleSubmitted))
}
