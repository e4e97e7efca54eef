package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PrincipalKind distinguishes whose commission a stats query aggregates.
type PrincipalKind string

const (
	PrincipalAgent  PrincipalKind = "agent"
	PrincipalCloser PrincipalKind = "closer"
)

// MonthlyStat aggregates one calendar month of sales for a principal.
type MonthlyStat struct {
	Month             string          `json:"month"`
	SaleCount         int64           `json:"sale_count"`
	SaleValue         decimal.Decimal `json:"sale_value"`
	Commission        decimal.Decimal `json:"commission"`
	PaidCommission    decimal.Decimal `json:"paid_commission"`
	PendingCommission decimal.Decimal `json:"pending_commission"`
}

// MonthKey formats t's UTC calendar month as YYYY-MM.
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// MonthWindow returns the first instant of the oldest month covered by the
// last n months including the month of now.
func MonthWindow(now time.Time, n int) time.Time {
	now = now.UTC()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return first.AddDate(0, -(n - 1), 0)
}

// BuildMonthlyStats buckets sales into n months ending at now, most recent
// first. Rejected and cancelled sales are skipped, and cancelled commissions
// contribute to neither commission nor pending.
func BuildMonthlyStats(kind PrincipalKind, sales []*Sale, now time.Time, n int) []MonthlyStat {
	if n <= 0 {
		return []MonthlyStat{}
	}
	start := MonthWindow(now, n)
	stats := make([]MonthlyStat, n)
	index := make(map[string]int, n)
	for i := 0; i < n; i++ {
		month := start.AddDate(0, n-1-i, 0)
		key := MonthKey(month)
		stats[i] = MonthlyStat{
			Month:             key,
			SaleValue:         decimal.Zero,
			Commission:        decimal.Zero,
			PaidCommission:    decimal.Zero,
			PendingCommission: decimal.Zero,
		}
		index[key] = i
	}

	for _, sale := range sales {
		if sale.Status == SaleStatusRejected || sale.Status == SaleStatusCancelled {
			continue
		}
		i, ok := index[MonthKey(sale.EffectiveDate())]
		if !ok {
			continue
		}
		commission := sale.AgentCommission
		if kind == PrincipalCloser {
			commission = sale.CloserCommission
		}
		stat := &stats[i]
		stat.SaleCount++
		stat.SaleValue = stat.SaleValue.Add(sale.Amount)
		switch sale.CommissionStatus {
		case CommissionStatusPaid:
			stat.Commission = stat.Commission.Add(commission)
			stat.PaidCommission = stat.PaidCommission.Add(commission)
		case CommissionStatusPending, CommissionStatusApproved:
			stat.Commission = stat.Commission.Add(commission)
			stat.PendingCommission = stat.PendingCommission.Add(commission)
		}
	}
	return stats
}
