package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus enumerates captured card payment states.
type PaymentStatus string

const (
	PaymentStatusSucceeded         PaymentStatus = "SUCCEEDED"
	PaymentStatusFailed            PaymentStatus = "FAILED"
	PaymentStatusRefunded          PaymentStatus = "REFUNDED"
	PaymentStatusPartiallyRefunded PaymentStatus = "PARTIALLY_REFUNDED"
)

// Payment records a charge attempt made through the card gateway. Only the
// card brand and last four digits are kept.
type Payment struct {
	ID             string
	Reference      string
	SaleID         *string
	ClientName     string
	ClientEmail    string
	Amount         decimal.Decimal
	Currency       string
	Status         PaymentStatus
	TransactionID  string
	CardBrand      string
	CardLast4      string
	RefundedAmount decimal.Decimal
	FailureMessage string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Refundable returns the amount that may still be refunded.
func (p *Payment) Refundable() decimal.Decimal {
	if p.Status != PaymentStatusSucceeded && p.Status != PaymentStatusPartiallyRefunded {
		return decimal.Zero
	}
	return p.Amount.Sub(p.RefundedAmount)
}

// ApplyRefund records amount as refunded and updates the status.
func (p *Payment) ApplyRefund(amount decimal.Decimal, now time.Time) {
	p.RefundedAmount = p.RefundedAmount.Add(amount)
	if p.RefundedAmount.GreaterThanOrEqual(p.Amount) {
		p.Status = PaymentStatusRefunded
	} else {
		p.Status = PaymentStatusPartiallyRefunded
	}
	p.UpdatedAt = now
}

// PaymentFilter narrows payment listings.
type PaymentFilter struct {
	SaleID *string
	Status *PaymentStatus
	Limit  int
	Offset int
}
