package service

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/spec-kit/commission-service/internal/domain"
	"github.com/spec-kit/commission-service/internal/events"
	"github.com/spec-kit/commission-service/internal/gateway"
	"github.com/spec-kit/commission-service/internal/repository"
	"github.com/spec-kit/commission-service/pkg/util/codegen"
	apperrors "github.com/spec-kit/commission-service/pkg/util/errorutil"
)

// PaymentService captures and refunds card payments through the gateway.
type PaymentService struct {
	store      repository.Store
	gateway    gateway.Gateway
	dispatcher events.Dispatcher
	currency   string
	logger     *zap.Logger
	now        Clock
}

// ChargeInput describes a card charge. The card itself is only forwarded.
type ChargeInput struct {
	SaleID      *string
	ClientName  string
	ClientEmail string
	Amount      decimal.Decimal
	Description string
	Card        gateway.Card
}

// NewPaymentService constructs the service.
func NewPaymentService(deps Dependencies, gw gateway.Gateway, currency string, logger *zap.Logger) *PaymentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if currency == "" {
		currency = "USD"
	}
	return &PaymentService{
		store:      deps.Store,
		gateway:    gw,
		dispatcher: deps.Dispatcher,
		currency:   strings.ToUpper(currency),
		logger:     logger,
		now:        deps.clock(),
	}
}

// Charge captures amount from the card. Declined charges are persisted as
// FAILED and reported as PAYMENT_DECLINED.
func (s *PaymentService) Charge(ctx context.Context, actor domain.Actor, input ChargeInput) (*domain.Payment, error) {
	if err := requireAdmin(actor, "charge payments"); err != nil {
		return nil, err
	}
	input.ClientName = strings.TrimSpace(input.ClientName)
	input.ClientEmail = normalizeEmail(input.ClientEmail)
	input.Amount = input.Amount.Round(2)
	if err := validateCharge(input, s.now()); err != nil {
		return nil, err
	}
	if input.SaleID != nil {
		if _, err := s.store.Repos().Sales.GetByID(ctx, *input.SaleID); err != nil {
			return nil, lookupError(err, "sale", *input.SaleID)
		}
	}

	now := s.now()
	reference, err := codegen.PaymentReference(now)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	result, err := s.gateway.Charge(ctx, gateway.ChargeRequest{
		Reference:   reference,
		Amount:      input.Amount,
		Currency:    s.currency,
		Description: input.Description,
		Card:        input.Card,
	})
	if err != nil {
		s.logger.Error("gateway charge failed", zap.String("reference", reference), zap.Error(err))
		return nil, apperrors.NewGatewayFailure(err)
	}

	payment := &domain.Payment{
		Reference:      reference,
		SaleID:         input.SaleID,
		ClientName:     input.ClientName,
		ClientEmail:    input.ClientEmail,
		Amount:         input.Amount,
		Currency:       s.currency,
		Status:         domain.PaymentStatusSucceeded,
		TransactionID:  result.TransactionID,
		CardBrand:      input.Card.Brand(),
		CardLast4:      input.Card.Last4(),
		RefundedAmount: decimal.Zero,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if !result.Success {
		payment.Status = domain.PaymentStatusFailed
		payment.FailureMessage = result.Message
	}
	if err := s.store.Repos().Payments.Create(ctx, payment); err != nil {
		// Charged but unrecorded: log enough to reconcile by hand.
		s.logger.Error("payment not recorded",
			zap.String("reference", reference),
			zap.String("transaction_id", result.TransactionID),
			zap.Error(err))
		return nil, storeError(err)
	}

	eventType := events.EventPaymentCaptured
	if !result.Success {
		eventType = events.EventPaymentFailed
	}
	publish(ctx, s.dispatcher, events.NewEvent(eventType, payment.ID, actor, paymentPrincipals(ctx, s.store, payment), events.PaymentPayload{
		Reference: payment.Reference,
		Amount:    payment.Amount,
		Status:    payment.Status,
		Message:   payment.FailureMessage,
	}))

	if !result.Success {
		return payment, apperrors.NewPaymentDeclined("payment declined", map[string]any{
			"payment_id": payment.ID,
			"reference":  payment.Reference,
			"message":    result.Message,
		})
	}
	return payment, nil
}

// Refund returns amount to the card. The payment row stays locked while the
// processor is called so two refunds cannot both pass the balance check.
func (s *PaymentService) Refund(ctx context.Context, actor domain.Actor, paymentID string, amount decimal.Decimal) (*domain.Payment, error) {
	if err := requireAdmin(actor, "refund payments"); err != nil {
		return nil, err
	}
	amount = amount.Round(2)
	if !amount.IsPositive() {
		return nil, apperrors.NewValidationError("refund amount must be greater than 0", map[string]any{"amount": amount.String()})
	}

	var payment *domain.Payment
	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		var err error
		payment, err = repos.Payments.GetByIDForUpdate(ctx, paymentID)
		if err != nil {
			return lookupError(err, "payment", paymentID)
		}
		if payment.Status != domain.PaymentStatusSucceeded && payment.Status != domain.PaymentStatusPartiallyRefunded {
			return apperrors.NewInvalidState("payment cannot be refunded", map[string]any{
				"payment_id": payment.ID,
				"status":     string(payment.Status),
			})
		}
		remaining := payment.Refundable()
		if amount.GreaterThan(remaining) {
			return apperrors.NewValidationError("refund exceeds captured amount", map[string]any{
				"amount":    amount.StringFixed(2),
				"remaining": remaining.StringFixed(2),
			})
		}

		result, err := s.gateway.Refund(ctx, payment.TransactionID, amount)
		if err != nil {
			s.logger.Error("gateway refund failed", zap.String("payment_id", payment.ID), zap.Error(err))
			return apperrors.NewGatewayFailure(err)
		}
		if !result.Success {
			return apperrors.NewPaymentDeclined("refund declined", map[string]any{
				"payment_id": payment.ID,
				"message":    result.Message,
			})
		}
		payment.ApplyRefund(amount, s.now())
		return repos.Payments.Update(ctx, payment)
	})
	if err != nil {
		return nil, storeError(err)
	}

	publish(ctx, s.dispatcher, events.NewEvent(events.EventPaymentRefunded, payment.ID, actor, paymentPrincipals(ctx, s.store, payment), events.PaymentPayload{
		Reference: payment.Reference,
		Amount:    amount,
		Status:    payment.Status,
	}))
	return payment, nil
}

// GetPayment returns one payment.
func (s *PaymentService) GetPayment(ctx context.Context, actor domain.Actor, paymentID string) (*domain.Payment, error) {
	if err := requireAdmin(actor, "view payments"); err != nil {
		return nil, err
	}
	payment, err := s.store.Repos().Payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, lookupError(err, "payment", paymentID)
	}
	return payment, nil
}

// ListPayments lists payments newest first.
func (s *PaymentService) ListPayments(ctx context.Context, actor domain.Actor, filter domain.PaymentFilter) ([]*domain.Payment, error) {
	if err := requireAdmin(actor, "list payments"); err != nil {
		return nil, err
	}
	payments, err := s.store.Repos().Payments.List(ctx, filter)
	if err != nil {
		return nil, storeError(err)
	}
	return payments, nil
}

func validateCharge(input ChargeInput, now time.Time) error {
	fields := map[string]any{}
	switch {
	case !input.Amount.IsPositive():
		fields["amount"] = "must be greater than 0"
	case input.Amount.GreaterThan(domain.MaxAmount):
		fields["amount"] = "must not exceed " + domain.MaxAmount.StringFixed(2)
	}
	if input.ClientName == "" {
		fields["client_name"] = "required"
	}
	if input.ClientEmail != "" && !domain.ValidEmail(input.ClientEmail) {
		fields["client_email"] = "invalid"
	}
	card := input.Card
	if !gateway.ValidCardNumber(card.Number) {
		fields["card_number"] = "invalid"
	}
	if card.ExpiryMonth < 1 || card.ExpiryMonth > 12 {
		fields["exp_month"] = "invalid"
	} else if card.ExpiryYear < now.Year() || (card.ExpiryYear == now.Year() && card.ExpiryMonth < int(now.Month())) {
		fields["exp_year"] = "card expired"
	}
	if n := len(card.CVC); n < 3 || n > 4 || strings.Trim(card.CVC, "0123456789") != "" {
		fields["cvc"] = "invalid"
	}
	if len(fields) > 0 {
		return apperrors.NewValidationError("invalid charge input", fields)
	}
	return nil
}

// paymentPrincipals links a payment event to the sale's agent when the
// payment belongs to a sale.
func paymentPrincipals(ctx context.Context, store repository.Store, payment *domain.Payment) events.Principals {
	if payment.SaleID == nil {
		return events.Principals{}
	}
	sale, err := store.Repos().Sales.GetByID(ctx, *payment.SaleID)
	if err != nil {
		return events.Principals{}
	}
	return events.PrincipalsOf(sale)
}
