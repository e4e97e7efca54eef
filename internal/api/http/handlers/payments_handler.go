package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/commission-service/internal/api/dto"
	"github.com/spec-kit/commission-service/internal/auth"
	"github.com/spec-kit/commission-service/internal/domain"
	"github.com/spec-kit/commission-service/internal/gateway"
	"github.com/spec-kit/commission-service/internal/service"
	apperrors "github.com/spec-kit/commission-service/pkg/util/errorutil"
)

// PaymentsHandler exposes card charges and refunds.
type PaymentsHandler struct {
	payments *service.PaymentService
}

// NewPaymentsHandler constructs handler.
func NewPaymentsHandler(payments *service.PaymentService) *PaymentsHandler {
	return &PaymentsHandler{payments: payments}
}

// Charge POST /payments.
func (h *PaymentsHandler) Charge(c *fiber.Ctx) error {
	actor, err := auth.MustActor(c)
	if err != nil {
		return err
	}
	var req dto.ChargeRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	payment, err := h.payments.Charge(c.UserContext(), actor, service.ChargeInput{
		SaleID:      req.SaleID,
		ClientName:  req.ClientName,
		ClientEmail: req.ClientEmail,
		Amount:      req.Amount,
		Description: req.Description,
		Card: gateway.Card{
			Number:      req.Card.Number,
			ExpiryMonth: req.Card.ExpMonth,
			ExpiryYear:  req.Card.ExpYear,
			CVC:         req.Card.CVC,
			HolderName:  req.Card.HolderName,
		},
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewPaymentResponse(payment)})
}

// ListPayments GET /payments.
func (h *PaymentsHandler) ListPayments(c *fiber.Ctx) error {
	actor, err := auth.MustActor(c)
	if err != nil {
		return err
	}
	var filter domain.PaymentFilter
	if val := c.Query("sale_id"); val != "" {
		if !validID(val) {
			return apperrors.NewValidationError("invalid filter", map[string]any{"sale_id": "invalid id"})
		}
		filter.SaleID = &val
	}
	if val := c.Query("status"); val != "" {
		status := domain.PaymentStatus(strings.ToUpper(val))
		switch status {
		case domain.PaymentStatusSucceeded, domain.PaymentStatusFailed, domain.PaymentStatusRefunded, domain.PaymentStatusPartiallyRefunded:
			filter.Status = &status
		default:
			return apperrors.NewValidationError("invalid filter", map[string]any{"status": "unknown payment status"})
		}
	}
	filter.Limit, filter.Offset = pageBounds(c)

	payments, err := h.payments.ListPayments(c.UserContext(), actor, filter)
	if err != nil {
		return err
	}
	resp := make([]dto.PaymentResponse, 0, len(payments))
	for _, payment := range payments {
		resp = append(resp, dto.NewPaymentResponse(payment))
	}
	return c.JSON(fiber.Map{"data": resp})
}

// GetPayment GET /payments/:id.
func (h *PaymentsHandler) GetPayment(c *fiber.Ctx) error {
	actor, err := auth.MustActor(c)
	if err != nil {
		return err
	}
	payment, err := h.payments.GetPayment(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewPaymentResponse(payment)})
}

// Refund POST /payments/:id/refund.
func (h *PaymentsHandler) Refund(c *fiber.Ctx) error {
	actor, err := auth.MustActor(c)
	if err != nil {
		return err
	}
	var req dto.RefundRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	payment, err := h.payments.Refund(c.UserContext(), actor, c.Params("id"), req.Amount)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewPaymentResponse(payment)})
}
