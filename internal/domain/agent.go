package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Counters is the aggregate projection kept on agents and closers. It only
// moves inside the transaction that changes the triggering sale.
type Counters struct {
	TotalSales        int64
	TotalSalesValue   decimal.Decimal
	TotalEarnings     decimal.Decimal
	PendingCommission decimal.Decimal
}

// CounterDelta is applied to Counters in place.
type CounterDelta struct {
	Sales             int64
	SalesValue        decimal.Decimal
	Earnings          decimal.Decimal
	PendingCommission decimal.Decimal
}

// IsZero reports whether applying the delta changes nothing.
func (d CounterDelta) IsZero() bool {
	return d.Sales == 0 && d.SalesValue.IsZero() && d.Earnings.IsZero() && d.PendingCommission.IsZero()
}

// Apply returns c with d added.
func (c Counters) Apply(d CounterDelta) Counters {
	return Counters{
		TotalSales:        c.TotalSales + d.Sales,
		TotalSalesValue:   c.TotalSalesValue.Add(d.SalesValue),
		TotalEarnings:     c.TotalEarnings.Add(d.Earnings),
		PendingCommission: c.PendingCommission.Add(d.PendingCommission),
	}
}

// Agent is a sales representative who owns sales.
type Agent struct {
	ID                   string
	Code                 string
	Name                 string
	Email                string
	Phone                string
	CommissionRate       decimal.Decimal
	CloserCommissionRate decimal.Decimal
	Active               bool
	Counters
	CreatedAt time.Time
	UpdatedAt time.Time
}
