package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/spec-kit/commission-service/internal/domain"
)

// ChargeRequest payload for POST /payments.
type ChargeRequest struct {
	SaleID      *string         `json:"sale_id"`
	ClientName  string          `json:"client_name"`
	ClientEmail string          `json:"client_email"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Card        CardRequest     `json:"card"`
}

// CardRequest carries card details straight through to the gateway.
type CardRequest struct {
	Number     string `json:"number"`
	ExpMonth   int    `json:"exp_month"`
	ExpYear    int    `json:"exp_year"`
	CVC        string `json:"cvc"`
	HolderName string `json:"holder_name"`
}

// RefundRequest payload for POST /payments/:id/refund.
type RefundRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// PaymentResponse renders a payment.
type PaymentResponse struct {
	ID             string               `json:"id"`
	Reference      string               `json:"reference"`
	SaleID         *string              `json:"sale_id"`
	ClientName     string               `json:"client_name"`
	ClientEmail    string               `json:"client_email,omitempty"`
	Amount         string               `json:"amount"`
	RefundedAmount string               `json:"refunded_amount"`
	Currency       string               `json:"currency"`
	Status         domain.PaymentStatus `json:"status"`
	TransactionID  string               `json:"transaction_id,omitempty"`
	CardBrand      string               `json:"card_brand"`
	CardLast4      string               `json:"card_last4"`
	FailureMessage string               `json:"failure_message,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

// NewPaymentResponse maps a payment.
func NewPaymentResponse(payment *domain.Payment) PaymentResponse {
	return PaymentResponse{
		ID:             payment.ID,
		Reference:      payment.Reference,
		SaleID:         payment.SaleID,
		ClientName:     payment.ClientName,
		ClientEmail:    payment.ClientEmail,
		Amount:         payment.Amount.StringFixed(2),
		RefundedAmount: payment.RefundedAmount.StringFixed(2),
		Currency:       payment.Currency,
		Status:         payment.Status,
		TransactionID:  payment.TransactionID,
		CardBrand:      payment.CardBrand,
		CardLast4:      payment.CardLast4,
		FailureMessage: payment.FailureMessage,
		CreatedAt:      payment.CreatedAt,
		UpdatedAt:      payment.UpdatedAt,
	}
}
