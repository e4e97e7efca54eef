package dto

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/spec-kit/commission-service/internal/domain"
	apperrors "github.com/spec-kit/commission-service/pkg/util/errorutil"
)

const dateLayout = "2006-01-02"

// SaleRequest payload for POST /sales and POST /sales/:id/resubmit. Exactly
// one of CloserID and CloserName must be set. AgentID is only read for admin
// callers.
type SaleRequest struct {
	AgentID            string          `json:"agent_id"`
	CloserID           *string         `json:"closer_id"`
	CloserName         *string         `json:"closer_name"`
	ClientName         string          `json:"client_name"`
	ClientEmail        string          `json:"client_email"`
	ClientPhone        string          `json:"client_phone"`
	ServiceName        string          `json:"service_name"`
	ServiceDescription string          `json:"service_description"`
	SaleAmount         decimal.Decimal `json:"sale_amount"`
	SaleDate           string          `json:"sale_date"`
	PaymentDate        string          `json:"payment_date"`
	Notes              string          `json:"notes"`
}

// ToInput converts the payload into the ledger input.
func (r SaleRequest) ToInput() (domain.SaleInput, error) {
	ref, err := domain.CloserReferenceFrom(r.CloserID, r.CloserName)
	if err != nil {
		return domain.SaleInput{}, err
	}
	saleDate, err := ParseDate("sale_date", r.SaleDate)
	if err != nil {
		return domain.SaleInput{}, err
	}
	paymentDate, err := ParseDate("payment_date", r.PaymentDate)
	if err != nil {
		return domain.SaleInput{}, err
	}
	return domain.SaleInput{
		Closer:             ref,
		ClientName:         r.ClientName,
		ClientEmail:        r.ClientEmail,
		ClientPhone:        r.ClientPhone,
		ServiceName:        r.ServiceName,
		ServiceDescription: r.ServiceDescription,
		Amount:             r.SaleAmount,
		SaleDate:           saleDate,
		PaymentDate:        paymentDate,
		Notes:              r.Notes,
	}, nil
}

// ParseDate accepts YYYY-MM-DD or RFC 3339. Empty input yields nil.
func ParseDate(field, value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	for _, layout := range []string{dateLayout, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, apperrors.NewValidationError("invalid date", map[string]any{field: "expected YYYY-MM-DD or RFC 3339"})
}

// SaleStatusRequest payload for PUT /sales/:id/status.
type SaleStatusRequest struct {
	Status domain.SaleStatus `json:"status"`
}

// CommissionStatusRequest payload for PUT /sales/:id/commission-status.
type CommissionStatusRequest struct {
	Status domain.CommissionStatus `json:"status"`
}

// SaleResponse renders a sale. Money and rates are fixed two-decimal strings.
type SaleResponse struct {
	ID                   string                  `json:"id"`
	ReferenceCode        string                  `json:"reference_code"`
	AgentID              string                  `json:"agent_id"`
	CloserID             *string                 `json:"closer_id"`
	CloserName           string                  `json:"closer_name"`
	ClientName           string                  `json:"client_name"`
	ClientEmail          string                  `json:"client_email"`
	ClientPhone          string                  `json:"client_phone,omitempty"`
	ServiceName          string                  `json:"service_name"`
	ServiceDescription   string                  `json:"service_description,omitempty"`
	SaleAmount           string                  `json:"sale_amount"`
	SaleDate             *string                 `json:"sale_date"`
	PaymentDate          *string                 `json:"payment_date"`
	AgentCommissionRate  string                  `json:"agent_commission_rate"`
	AgentCommission      string                  `json:"agent_commission"`
	CloserCommissionRate string                  `json:"closer_commission_rate"`
	CloserCommission     string                  `json:"closer_commission"`
	Status               domain.SaleStatus       `json:"status"`
	CommissionStatus     domain.CommissionStatus `json:"commission_status"`
	Notes                string                  `json:"notes,omitempty"`
	OriginalSaleID       *string                 `json:"original_sale_id"`
	CreatedAt            time.Time               `json:"created_at"`
	UpdatedAt            time.Time               `json:"updated_at"`
}

// NewSaleResponse maps a sale.
func NewSaleResponse(sale *domain.Sale) SaleResponse {
	resp := SaleResponse{
		ID:                   sale.ID,
		ReferenceCode:        sale.ReferenceCode,
		AgentID:              sale.AgentID,
		CloserName:           sale.Closer.Name,
		ClientName:           sale.ClientName,
		ClientEmail:          sale.ClientEmail,
		ClientPhone:          sale.ClientPhone,
		ServiceName:          sale.ServiceName,
		ServiceDescription:   sale.ServiceDescription,
		SaleAmount:           sale.Amount.StringFixed(2),
		SaleDate:             formatDate(sale.SaleDate),
		PaymentDate:          formatDate(sale.PaymentDate),
		AgentCommissionRate:  sale.AgentCommissionRate.StringFixed(2),
		AgentCommission:      sale.AgentCommission.StringFixed(2),
		CloserCommissionRate: sale.CloserCommissionRate.StringFixed(2),
		CloserCommission:     sale.CloserCommission.StringFixed(2),
		Status:               sale.Status,
		CommissionStatus:     sale.CommissionStatus,
		Notes:                sale.Notes,
		OriginalSaleID:       sale.OriginalSaleID,
		CreatedAt:            sale.CreatedAt,
		UpdatedAt:            sale.UpdatedAt,
	}
	if id, ok := sale.Closer.RegisteredID(); ok {
		resp.CloserID = &id
	}
	return resp
}

// NewSaleResponses maps a list of sales.
func NewSaleResponses(sales []*domain.Sale) []SaleResponse {
	out := make([]SaleResponse, 0, len(sales))
	for _, sale := range sales {
		out = append(out, NewSaleResponse(sale))
	}
	return out
}

// SaleHistoryResponse renders an audit entry.
type SaleHistoryResponse struct {
	ID         string                `json:"id"`
	ChangeType domain.SaleChangeType `json:"change_type"`
	ActorID    string                `json:"actor_id"`
	ActorRole  domain.Role           `json:"actor_role"`
	OldValue   map[string]any        `json:"old_value"`
	NewValue   map[string]any        `json:"new_value"`
	CreatedAt  time.Time             `json:"created_at"`
}

// NewSaleHistoryResponses maps audit entries.
func NewSaleHistoryResponses(entries []domain.SaleHistory) []SaleHistoryResponse {
	out := make([]SaleHistoryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, SaleHistoryResponse{
			ID:         entry.ID,
			ChangeType: entry.ChangeType,
			ActorID:    entry.ActorID,
			ActorRole:  entry.ActorRole,
			OldValue:   entry.OldValue,
			NewValue:   entry.NewValue,
			CreatedAt:  entry.CreatedAt,
		})
	}
	return out
}

// MonthlyStatsResponse wraps the monthly buckets of one principal.
type MonthlyStatsResponse struct {
	Kind   domain.PrincipalKind `json:"kind"`
	ID     string               `json:"id"`
	Months []MonthlyStatItem    `json:"months"`
}

// MonthlyStatItem renders one month.
type MonthlyStatItem struct {
	Month             string `json:"month"`
	SaleCount         int64  `json:"sale_count"`
	SaleValue         string `json:"sale_value"`
	Commission        string `json:"commission"`
	PaidCommission    string `json:"paid_commission"`
	PendingCommission string `json:"pending_commission"`
}

// NewMonthlyStatsResponse maps stats.
func NewMonthlyStatsResponse(kind domain.PrincipalKind, id string, stats []domain.MonthlyStat) MonthlyStatsResponse {
	months := make([]MonthlyStatItem, 0, len(stats))
	for _, stat := range stats {
		months = append(months, MonthlyStatItem{
			Month:             stat.Month,
			SaleCount:         stat.SaleCount,
			SaleValue:         stat.SaleValue.StringFixed(2),
			Commission:        stat.Commission.StringFixed(2),
			PaidCommission:    stat.PaidCommission.StringFixed(2),
			PendingCommission: stat.PendingCommission.StringFixed(2),
		})
	}
	return MonthlyStatsResponse{Kind: kind, ID: id, Months: months}
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(dateLayout)
	return &s
}
