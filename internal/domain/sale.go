package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	apperrors "github.com/spec-kit/commission-service/pkg/util/errorutil"
)

// Sale is the central ledger record owned by an agent.
type Sale struct {
	ID                   string
	ReferenceCode        string
	AgentID              string
	Closer               CloserReference
	ClientName           string
	ClientEmail          string
	ClientPhone          string
	ServiceName          string
	ServiceDescription   string
	Amount               decimal.Decimal
	SaleDate             *time.Time
	PaymentDate          *time.Time
	AgentCommissionRate  decimal.Decimal
	AgentCommission      decimal.Decimal
	CloserCommissionRate decimal.Decimal
	CloserCommission     decimal.Decimal
	Status               SaleStatus
	CommissionStatus     CommissionStatus
	Notes                string
	OriginalSaleID       *string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// EffectiveDate is the date used for monthly bucketing and range filters.
func (s *Sale) EffectiveDate() time.Time {
	if s.SaleDate != nil {
		return *s.SaleDate
	}
	return s.CreatedAt
}

// SaleInput carries the agent-editable fields of a sale.
type SaleInput struct {
	Closer             CloserReference
	ClientName         string
	ClientEmail        string
	ClientPhone        string
	ServiceName        string
	ServiceDescription string
	Amount             decimal.Decimal
	SaleDate           *time.Time
	PaymentDate        *time.Time
	Notes              string
}

// MaxAmount is the largest money value the ledger stores: 14 digits, 2 of
// them decimals.
var MaxAmount = decimal.RequireFromString("999999999999.99")

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// ValidEmail reports whether email looks like a mailbox address.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// Normalize trims the input and validates it. Amounts are rounded to cents
// before the positivity check.
func (in SaleInput) Normalize() (SaleInput, error) {
	out := in
	out.ClientName = strings.TrimSpace(in.ClientName)
	out.ClientEmail = strings.ToLower(strings.TrimSpace(in.ClientEmail))
	out.ClientPhone = strings.TrimSpace(in.ClientPhone)
	out.ServiceName = strings.TrimSpace(in.ServiceName)
	out.ServiceDescription = strings.TrimSpace(in.ServiceDescription)
	out.Notes = strings.TrimSpace(in.Notes)
	out.Amount = in.Amount.Round(2)

	fields := map[string]any{}
	if out.ClientName == "" {
		fields["client_name"] = "required"
	}
	switch {
	case out.ClientEmail == "":
		fields["client_email"] = "required"
	case !ValidEmail(out.ClientEmail):
		fields["client_email"] = "invalid"
	}
	if out.ServiceName == "" {
		fields["service_name"] = "required"
	}
	switch {
	case !out.Amount.IsPositive():
		fields["sale_amount"] = "must be greater than 0"
	case out.Amount.GreaterThan(MaxAmount):
		fields["sale_amount"] = "must not exceed " + MaxAmount.StringFixed(2)
	}
	if err := out.Closer.Validate(); err != nil {
		fields["closer"] = err.Error()
	}
	if len(fields) > 0 {
		return SaleInput{}, apperrors.NewValidationError("invalid sale input", fields)
	}
	return out, nil
}

// NewSale builds a sale from normalized input with the given rates snapshotted.
func NewSale(agentID string, in SaleInput, agentRate, closerRate decimal.Decimal, now time.Time) *Sale {
	sale := &Sale{
		AgentID:            agentID,
		Closer:             in.Closer,
		ClientName:         in.ClientName,
		ClientEmail:        in.ClientEmail,
		ClientPhone:        in.ClientPhone,
		ServiceName:        in.ServiceName,
		ServiceDescription: in.ServiceDescription,
		Amount:             in.Amount,
		SaleDate:           in.SaleDate,
		PaymentDate:        in.PaymentDate,
		Status:             SaleStatusPending,
		CommissionStatus:   CommissionStatusPending,
		Notes:              in.Notes,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	sale.ApplyRates(agentRate, closerRate)
	return sale
}

// SaleFilter narrows sale listings. Date bounds apply to EffectiveDate and are
// inclusive on From, exclusive on To.
type SaleFilter struct {
	AgentID          *string
	CloserID         *string
	SaleStatus       *SaleStatus
	CommissionStatus *CommissionStatus
	From             *time.Time
	To               *time.Time
	MinAmount        *decimal.Decimal
	MaxAmount        *decimal.Decimal
	Limit            int
	Offset           int
}

// Matches reports whether sale passes every set criterion. Pagination is not
// considered.
func (f SaleFilter) Matches(sale *Sale) bool {
	if f.AgentID != nil && sale.AgentID != *f.AgentID {
		return false
	}
	if f.CloserID != nil {
		id, ok := sale.Closer.RegisteredID()
		if !ok || id != *f.CloserID {
			return false
		}
	}
	if f.SaleStatus != nil && sale.Status != *f.SaleStatus {
		return false
	}
	if f.CommissionStatus != nil && sale.CommissionStatus != *f.CommissionStatus {
		return false
	}
	at := sale.EffectiveDate()
	if f.From != nil && at.Before(*f.From) {
		return false
	}
	if f.To != nil && !at.Before(*f.To) {
		return false
	}
	if f.MinAmount != nil && sale.Amount.LessThan(*f.MinAmount) {
		return false
	}
	if f.MaxAmount != nil && sale.Amount.GreaterThan(*f.MaxAmount) {
		return false
	}
	return true
}
