package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/spec-kit/commission-service/internal/domain"
)

// AgentRequest payload for POST /agents.
type AgentRequest struct {
	Code                 string          `json:"code"`
	Name                 string          `json:"name"`
	Email                string          `json:"email"`
	Phone                string          `json:"phone"`
	CommissionRate       decimal.Decimal `json:"commission_rate"`
	CloserCommissionRate decimal.Decimal `json:"closer_commission_rate"`
}

// AgentUpdateRequest payload for PATCH /agents/:id.
type AgentUpdateRequest struct {
	Name   *string `json:"name"`
	Email  *string `json:"email"`
	Phone  *string `json:"phone"`
	Active *bool   `json:"active"`
}

// CommissionRatesRequest payload for PUT /agents/:id/commission-rates. Both
// rates are required.
type CommissionRatesRequest struct {
	AgentRate  *decimal.Decimal `json:"agent_rate"`
	CloserRate *decimal.Decimal `json:"closer_rate"`
}

// CloserRequest payload for POST /closers.
type CloserRequest struct {
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	Email          string          `json:"email"`
	Phone          string          `json:"phone"`
	CommissionRate decimal.Decimal `json:"commission_rate"`
	Notes          string          `json:"notes"`
}

// CloserUpdateRequest payload for PATCH /closers/:id.
type CloserUpdateRequest struct {
	Name           *string              `json:"name"`
	Email          *string              `json:"email"`
	Phone          *string              `json:"phone"`
	CommissionRate *decimal.Decimal     `json:"commission_rate"`
	Status         *domain.CloserStatus `json:"status"`
	Notes          *string              `json:"notes"`
}

// CountersResponse renders the aggregate projection.
type CountersResponse struct {
	TotalSales        int64  `json:"total_sales"`
	TotalSalesValue   string `json:"total_sales_value"`
	TotalEarnings     string `json:"total_earnings"`
	PendingCommission string `json:"pending_commission"`
}

func newCountersResponse(c domain.Counters) CountersResponse {
	return CountersResponse{
		TotalSales:        c.TotalSales,
		TotalSalesValue:   c.TotalSalesValue.StringFixed(2),
		TotalEarnings:     c.TotalEarnings.StringFixed(2),
		PendingCommission: c.PendingCommission.StringFixed(2),
	}
}

// AgentResponse renders an agent.
type AgentResponse struct {
	ID                   string           `json:"id"`
	Code                 string           `json:"code"`
	Name                 string           `json:"name"`
	Email                string           `json:"email,omitempty"`
	Phone                string           `json:"phone,omitempty"`
	CommissionRate       string           `json:"commission_rate"`
	CloserCommissionRate string           `json:"closer_commission_rate"`
	Active               bool             `json:"active"`
	Counters             CountersResponse `json:"counters"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

// NewAgentResponse maps an agent.
func NewAgentResponse(agent *domain.Agent) AgentResponse {
	return AgentResponse{
		ID:                   agent.ID,
		Code:                 agent.Code,
		Name:                 agent.Name,
		Email:                agent.Email,
		Phone:                agent.Phone,
		CommissionRate:       agent.CommissionRate.StringFixed(2),
		CloserCommissionRate: agent.CloserCommissionRate.StringFixed(2),
		Active:               agent.Active,
		Counters:             newCountersResponse(agent.Counters),
		CreatedAt:            agent.CreatedAt,
		UpdatedAt:            agent.UpdatedAt,
	}
}

// CommissionRatesResponse reports a rate update.
type CommissionRatesResponse struct {
	Agent             AgentResponse `json:"agent"`
	RecalculatedSales int           `json:"recalculated_sales"`
}

// CloserResponse renders a closer.
type CloserResponse struct {
	ID             string              `json:"id"`
	Code           string              `json:"code"`
	Name           string              `json:"name"`
	Email          string              `json:"email,omitempty"`
	Phone          string              `json:"phone,omitempty"`
	CommissionRate string              `json:"commission_rate"`
	Status         domain.CloserStatus `json:"status"`
	Notes          string              `json:"notes,omitempty"`
	Counters       CountersResponse    `json:"counters"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// NewCloserResponse maps a closer.
func NewCloserResponse(closer *domain.Closer) CloserResponse {
	return CloserResponse{
		ID:             closer.ID,
		Code:           closer.Code,
		Name:           closer.Name,
		Email:          closer.Email,
		Phone:          closer.Phone,
		CommissionRate: closer.CommissionRate.StringFixed(2),
		Status:         closer.Status,
		Notes:          closer.Notes,
		Counters:       newCountersResponse(closer.Counters),
		CreatedAt:      closer.CreatedAt,
		UpdatedAt:      closer.UpdatedAt,
	}
}
