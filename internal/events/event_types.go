package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/spec-kit/commission-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventSaleSubmitted           EventType = "sale_submitted"
	EventSaleResubmitted         EventType = "sale_resubmitted"
	EventSaleStatusChanged       EventType = "sale_status_changed"
	EventCommissionStatusChanged EventType = "commission_status_changed"
	EventCommissionRatesUpdated  EventType = "commission_rates_updated"
	EventSaleRecalculated        EventType = "sale_recalculated"
	EventPaymentCaptured         EventType = "payment_captured"
	EventPaymentFailed           EventType = "payment_failed"
	EventPaymentRefunded         EventType = "payment_refunded"
)

// AllEventTypes lists every event a subscriber may register for.
var AllEventTypes = []EventType{
	EventSaleSubmitted,
	EventSaleResubmitted,
	EventSaleStatusChanged,
	EventCommissionStatusChanged,
	EventCommissionRatesUpdated,
	EventSaleRecalculated,
	EventPaymentCaptured,
	EventPaymentFailed,
	EventPaymentRefunded,
}

// Actor encapsulates actor metadata for an event.
type Actor struct {
	UserID string      `json:"user_id"`
	Role   domain.Role `json:"role"`
}

// Principals names the agent and registered closer whose figures an event
// affects. CloserID is nil for ad-hoc closers.
type Principals struct {
	AgentID  string  `json:"agent_id,omitempty"`
	CloserID *string `json:"closer_id,omitempty"`
}

// Event represents a domain event emitted by services after commit.
type Event struct {
	ID         string      `json:"id"`
	Type       EventType   `json:"type"`
	SubjectID  string      `json:"subject_id"`
	Actor      Actor       `json:"actor"`
	Principals Principals  `json:"principals"`
	Timestamp  time.Time   `json:"timestamp"`
	Payload    interface{} `json:"payload"`
}

// NewEvent stamps an event with a fresh id.
func NewEvent(eventType EventType, subjectID string, actor domain.Actor, principals Principals, payload interface{}) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		SubjectID:  subjectID,
		Actor:      Actor{UserID: actor.UserID, Role: actor.Role},
		Principals: principals,
		Timestamp:  time.Now().UTC(),
		Payload:    payload,
	}
}

// PrincipalsOf returns the principals referenced by sale.
func PrincipalsOf(sale *domain.Sale) Principals {
	p := Principals{AgentID: sale.AgentID}
	if id, ok := sale.Closer.RegisteredID(); ok {
		p.CloserID = &id
	}
	return p
}

// SaleSubmittedPayload payload for submitted and resubmitted sales.
type SaleSubmittedPayload struct {
	ReferenceCode  string          `json:"reference_code"`
	Amount         decimal.Decimal `json:"amount"`
	ClientName     string          `json:"client_name"`
	OriginalSaleID *string         `json:"original_sale_id,omitempty"`
}

// SaleStatusChangedPayload payload.
type SaleStatusChangedPayload struct {
	ReferenceCode string            `json:"reference_code"`
	OldStatus     domain.SaleStatus `json:"old_status"`
	NewStatus     domain.SaleStatus `json:"new_status"`
}

// CommissionStatusChangedPayload payload.
type CommissionStatusChangedPayload struct {
	ReferenceCode    string                  `json:"reference_code"`
	OldStatus        domain.CommissionStatus `json:"old_status"`
	NewStatus        domain.CommissionStatus `json:"new_status"`
	AgentCommission  decimal.Decimal         `json:"agent_commission"`
	CloserCommission decimal.Decimal         `json:"closer_commission"`
}

// CommissionRatesUpdatedPayload payload.
type CommissionRatesUpdatedPayload struct {
	AgentRate         decimal.Decimal `json:"agent_rate"`
	CloserRate        decimal.Decimal `json:"closer_rate"`
	RecalculatedSales int             `json:"recalculated_sales"`
}

// SaleRecalculatedPayload payload.
type SaleRecalculatedPayload struct {
	ReferenceCode string         `json:"reference_code"`
	Old           map[string]any `json:"old"`
	New           map[string]any `json:"new"`
}

// PaymentPayload payload for captured, failed and refunded payments.
type PaymentPayload struct {
	Reference string               `json:"reference"`
	Amount    decimal.Decimal      `json:"amount"`
	Status    domain.PaymentStatus `json:"status"`
	Message   string               `json:"message,omitempty"`
}
