package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/commission-service/internal/config"
	"github.com/spec-kit/commission-service/internal/events"
)

// NotificationService handles emitting notifications for domain events.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventSaleSubmitted, n.handleSaleSubmitted)
	n.dispatcher.Subscribe(events.EventSaleResubmitted, n.handleSaleSubmitted)
	n.dispatcher.Subscribe(events.EventSaleStatusChanged, n.handleSaleStatusChanged)
	n.dispatcher.Subscribe(events.EventCommissionStatusChanged, n.handleCommissionStatusChanged)
	n.dispatcher.Subscribe(events.EventCommissionRatesUpdated, n.handleRatesUpdated)
	n.dispatcher.Subscribe(events.EventPaymentCaptured, n.handlePayment)
	n.dispatcher.Subscribe(events.EventPaymentFailed, n.handlePayment)
	n.dispatcher.Subscribe(events.EventPaymentRefunded, n.handlePayment)
}

func (n *NotificationService) handleSaleSubmitted(ctx context.Context, event events.Event) error {
	n.logger.Info("SaleSubmitted", zap.String("sale_id", event.SubjectID), zap.String("agent_id", event.Principals.AgentID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

// Agents hear about review decisions by email.
func (n *NotificationService) handleSaleStatusChanged(ctx context.Context, event events.Event) error {
	n.logger.Info("SaleStatusChanged", zap.String("sale_id", event.SubjectID), zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(ctx, event)
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleCommissionStatusChanged(ctx context.Context, event events.Event) error {
	n.logger.Info("CommissionStatusChanged", zap.String("sale_id", event.SubjectID), zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleRatesUpdated(ctx context.Context, event events.Event) error {
	n.logger.Info("CommissionRatesUpdated", zap.String("agent_id", event.SubjectID), zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handlePayment(ctx context.Context, event events.Event) error {
	n.logger.Info("Payment", zap.String("type", string(event.Type)), zap.String("payment_id", event.SubjectID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) sendEmailNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("subject_id", event.SubjectID),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhookNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("subject_id", event.SubjectID),
		zap.String("event_type", string(event.Type)))
}
