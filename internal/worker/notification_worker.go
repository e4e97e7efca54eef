package worker

import (
	"context"

	"github.com/spec-kit/commission-service/internal/events"
	"github.com/spec-kit/commission-service/internal/observability"
	"github.com/spec-kit/commission-service/internal/service"
)

// Subscribers groups the event consumers started with the service.
type Subscribers struct {
	Notifications *service.NotificationService
	Stats         *service.StatsService
	Metrics       *observability.Metrics
}

// StartEventWorkers registers notification, stats cache and metrics handlers.
func StartEventWorkers(dispatcher events.Dispatcher, subs Subscribers) {
	if dispatcher == nil {
		return
	}
	if subs.Notifications != nil {
		subs.Notifications.RegisterHandlers()
	}
	if subs.Stats != nil {
		events.SubscribeAll(dispatcher, subs.Stats.HandleEvent)
	}
	if subs.Metrics != nil {
		events.SubscribeAll(dispatcher, metricsHandler(subs.Metrics))
	}
}

func metricsHandler(metrics *observability.Metrics) events.EventHandler {
	return func(_ context.Context, event events.Event) error {
		metrics.RecordEvent(string(event.Type))
		switch payload := event.Payload.(type) {
		case events.SaleStatusChangedPayload:
			metrics.RecordSaleTransition(string(payload.OldStatus), string(payload.NewStatus))
		case events.CommissionStatusChangedPayload:
			metrics.RecordCommissionTransition(string(payload.OldStatus), string(payload.NewStatus))
		case events.PaymentPayload:
			metrics.RecordPayment(string(payload.Status))
		}
		return nil
	}
}
