package gateway

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DeclineCardNumber is always declined by the sandbox.
const DeclineCardNumber = "4000000000000002"

// Sandbox is a deterministic in-process processor for development and tests.
type Sandbox struct {
	mu       sync.Mutex
	captured map[string]decimal.Decimal
}

// NewSandbox builds an empty sandbox.
func NewSandbox() *Sandbox {
	return &Sandbox{captured: make(map[string]decimal.Decimal)}
}

func (s *Sandbox) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	if err := ctx.Err(); err != nil {
		return ChargeResult{}, err
	}
	if digitsOnly(req.Card.Number) == DeclineCardNumber {
		return ChargeResult{Success: false, Message: "card declined"}, nil
	}
	id := "sbx_ch_" + uuid.NewString()
	s.mu.Lock()
	s.captured[id] = req.Amount
	s.mu.Unlock()
	return ChargeResult{Success: true, TransactionID: id, Message: "approved"}, nil
}

func (s *Sandbox) Refund(ctx context.Context, transactionID string, amount decimal.Decimal) (RefundResult, error) {
	if err := ctx.Err(); err != nil {
		return RefundResult{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	remaining, ok := s.captured[transactionID]
	if !ok {
		return RefundResult{Success: false, Message: "unknown transaction"}, nil
	}
	if amount.GreaterThan(remaining) {
		return RefundResult{Success: false, Message: "refund exceeds captured amount"}, nil
	}
	s.captured[transactionID] = remaining.Sub(amount)
	return RefundResult{Success: true, RefundID: "sbx_re_" + uuid.NewString(), Message: "refunded"}, nil
}
