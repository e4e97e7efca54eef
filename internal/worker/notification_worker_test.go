package worker

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/commission-service/internal/domain"
	"github.com/spec-kit/commission-service/internal/events"
	"github.com/spec-kit/commission-service/internal/observability"
)

func TestEventWorkersRecordMetrics(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	metrics := observability.NewMetrics()
	StartEventWorkers(dispatcher, Subscribers{Metrics: metrics})

	ctx := context.Background()
	actor := domain.SystemActor()
	require.NoError(t, dispatcher.Publish(ctx, events.NewEvent(events.EventSaleStatusChanged, "s-1", actor, events.Principals{AgentID: "a-1"},
		events.SaleStatusChangedPayload{OldStatus: domain.SaleStatusPending, NewStatus: domain.SaleStatusApproved})))
	require.NoError(t, dispatcher.Publish(ctx, events.NewEvent(events.EventPaymentFailed, "p-1", actor, events.Principals{},
		events.PaymentPayload{Status: domain.PaymentStatusFailed})))

	count, err := testutil.GatherAndCount(metrics.Registry(), "commission_service_events_published_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = testutil.GatherAndCount(metrics.Registry(), "commission_service_sales_status_transitions_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = testutil.GatherAndCount(metrics.Registry(), "commission_service_payments_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStartEventWorkersToleratesMissingSubscribers(t *testing.T) {
	StartEventWorkers(nil, Subscribers{})
	dispatcher := events.NewInMemoryDispatcher(nil)
	StartEventWorkers(dispatcher, Subscribers{})
	assert.NoError(t, dispatcher.Publish(context.Background(), events.Event{Type: events.EventSaleSubmitted}))
}
