// Package gateway reaches the third-party card processor. The processor's
// protocol is opaque to the service: it only ever charges and refunds.
package gateway

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
)

// Card holds the card details forwarded to the processor. It is never
// persisted.
type Card struct {
	Number      string
	ExpiryMonth int
	ExpiryYear  int
	CVC         string
	HolderName  string
}

// Last4 returns the last four digits of the card number.
func (c Card) Last4() string {
	digits := digitsOnly(c.Number)
	if len(digits) < 4 {
		return digits
	}
	return digits[len(digits)-4:]
}

// Brand guesses the network from the number prefix.
func (c Card) Brand() string {
	digits := digitsOnly(c.Number)
	switch {
	case strings.HasPrefix(digits, "4"):
		return "visa"
	case strings.HasPrefix(digits, "34"), strings.HasPrefix(digits, "37"):
		return "amex"
	case len(digits) >= 2 && digits[0] == '5' && digits[1] >= '1' && digits[1] <= '5':
		return "mastercard"
	case strings.HasPrefix(digits, "2"):
		return "mastercard"
	case strings.HasPrefix(digits, "6"):
		return "discover"
	default:
		return "unknown"
	}
}

// ChargeRequest asks the processor to capture an amount.
type ChargeRequest struct {
	Reference   string
	Amount      decimal.Decimal
	Currency    string
	Description string
	Card        Card
}

// ChargeResult reports a charge outcome. Success false carries the
// processor's decline message.
type ChargeResult struct {
	Success       bool
	TransactionID string
	Message       string
}

// RefundResult reports a refund outcome.
type RefundResult struct {
	Success  bool
	RefundID string
	Message  string
}

// Gateway is the card processor boundary.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error)
	Refund(ctx context.Context, transactionID string, amount decimal.Decimal) (RefundResult, error)
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidCardNumber applies the Luhn checksum.
func ValidCardNumber(number string) bool {
	digits := digitsOnly(number)
	if len(digits) < 12 || len(digits) > 19 || len(digits) != len(strings.ReplaceAll(strings.ReplaceAll(number, " ", ""), "-", "")) {
		return false
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
