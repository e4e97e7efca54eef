package domain

import (
	"github.com/shopspring/decimal"

	apperrors "github.com/spec-kit/commission-service/pkg/util/errorutil"
)

var (
	hundred = decimal.NewFromInt(100)
	// MaxRate is the upper bound for any commission percentage.
	MaxRate = hundred
)

// Commission computes amount × rate / 100 rounded to cents.
func Commission(amount, ratePercent decimal.Decimal) decimal.Decimal {
	return amount.Mul(ratePercent).Div(hundred).Round(2)
}

// ValidateRate checks a percentage is within [0, 100].
func ValidateRate(field string, rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(MaxRate) {
		return apperrors.NewValidationError(field+" must be between 0 and 100", map[string]any{
			"field": field,
			"value": rate.String(),
		})
	}
	return nil
}

// ApplyRates snapshots both rates onto the sale and recomputes the amounts.
func (s *Sale) ApplyRates(agentRate, closerRate decimal.Decimal) {
	s.AgentCommissionRate = agentRate.Round(2)
	s.CloserCommissionRate = closerRate.Round(2)
	s.AgentCommission = Commission(s.Amount, s.AgentCommissionRate)
	s.CloserCommission = Commission(s.Amount, s.CloserCommissionRate)
}

// ApprovalDelta is the counter change for a sale moving to APPROVED, from the
// perspective of a principal earning commission on it.
func ApprovalDelta(amount, commission decimal.Decimal) CounterDelta {
	return CounterDelta{
		Sales:             1,
		SalesValue:        amount,
		Earnings:          commission,
		PendingCommission: commission,
	}
}

// CommissionDelta is the counter change when a sale's commission status moves
// to next. Pending and paid are a split of the same earned total.
func CommissionDelta(next CommissionStatus, commission decimal.Decimal) CounterDelta {
	switch next {
	case CommissionStatusPaid:
		return CounterDelta{PendingCommission: commission.Neg()}
	case CommissionStatusCancelled:
		return CounterDelta{PendingCommission: commission.Neg(), Earnings: commission.Neg()}
	default:
		return CounterDelta{}
	}
}
