package domain

import "time"

// SaleChangeType captures what changed in a history entry.
type SaleChangeType string

const (
	ChangeTypeSubmitted        SaleChangeType = "SUBMITTED"
	ChangeTypeResubmitted      SaleChangeType = "RESUBMITTED"
	ChangeTypeSaleStatus       SaleChangeType = "SALE_STATUS"
	ChangeTypeCommissionStatus SaleChangeType = "COMMISSION_STATUS"
	ChangeTypeRecalculated     SaleChangeType = "RECALCULATED"
)

// SaleHistory is an immutable audit trail entry.
type SaleHistory struct {
	ID         string
	SaleID     string
	ActorID    string
	ActorRole  Role
	ChangeType SaleChangeType
	OldValue   map[string]any
	NewValue   map[string]any
	CreatedAt  time.Time
}

// NewSaleHistory stamps an entry for actor.
func NewSaleHistory(saleID string, actor Actor, changeType SaleChangeType, oldValue, newValue map[string]any, now time.Time) *SaleHistory {
	return &SaleHistory{
		SaleID:     saleID,
		ActorID:    actor.UserID,
		ActorRole:  actor.Role,
		ChangeType: changeType,
		OldValue:   oldValue,
		NewValue:   newValue,
		CreatedAt:  now,
	}
}

// RateSnapshot is the history payload for commission rate changes on a sale.
func RateSnapshot(s *Sale) map[string]any {
	return map[string]any{
		"agent_commission_rate":  s.AgentCommissionRate.StringFixed(2),
		"agent_commission":       s.AgentCommission.StringFixed(2),
		"closer_commission_rate": s.CloserCommissionRate.StringFixed(2),
		"closer_commission":      s.CloserCommission.StringFixed(2),
	}
}
