package domain

import (
	apperrors "github.com/spec-kit/commission-service/pkg/util/errorutil"
)

// SaleStatus enumerates the review lifecycle of a sale.
type SaleStatus string

const (
	SaleStatusPending     SaleStatus = "PENDING"
	SaleStatusResubmitted SaleStatus = "RESUBMITTED"
	SaleStatusApproved    SaleStatus = "APPROVED"
	SaleStatusRejected    SaleStatus = "REJECTED"
	SaleStatusCancelled   SaleStatus = "CANCELLED"
)

// CommissionStatus enumerates the payout lifecycle of a sale's commission.
type CommissionStatus string

const (
	CommissionStatusPending   CommissionStatus = "PENDING"
	CommissionStatusApproved  CommissionStatus = "APPROVED"
	CommissionStatusPaid      CommissionStatus = "PAID"
	CommissionStatusCancelled CommissionStatus = "CANCELLED"
)

var saleTransitions = map[SaleStatus][]SaleStatus{
	SaleStatusPending:     {SaleStatusApproved, SaleStatusRejected, SaleStatusCancelled},
	SaleStatusResubmitted: {SaleStatusApproved, SaleStatusRejected, SaleStatusCancelled},
	SaleStatusApproved:    {},
	SaleStatusRejected:    {},
	SaleStatusCancelled:   {},
}

var commissionTransitions = map[CommissionStatus][]CommissionStatus{
	CommissionStatusPending:   {CommissionStatusApproved, CommissionStatusCancelled},
	CommissionStatusApproved:  {CommissionStatusPaid, CommissionStatusCancelled},
	CommissionStatusPaid:      {},
	CommissionStatusCancelled: {},
}

// Valid reports whether s is a known sale status.
func (s SaleStatus) Valid() bool {
	_, ok := saleTransitions[s]
	return ok
}

// Terminal reports whether no further transition is possible.
func (s SaleStatus) Terminal() bool {
	return len(saleTransitions[s]) == 0
}

// CanTransitionTo reports whether next is reachable from s.
func (s SaleStatus) CanTransitionTo(next SaleStatus) bool {
	for _, candidate := range saleTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Valid reports whether c is a known commission status.
func (c CommissionStatus) Valid() bool {
	_, ok := commissionTransitions[c]
	return ok
}

// CanTransitionTo reports whether next is reachable from c.
func (c CommissionStatus) CanTransitionTo(next CommissionStatus) bool {
	for _, candidate := range commissionTransitions[c] {
		if candidate == next {
			return true
		}
	}
	return false
}

// CheckSaleTransition validates moving sale to next.
func CheckSaleTransition(sale *Sale, next SaleStatus) error {
	if !next.Valid() {
		return apperrors.NewValidationError("unknown sale status", map[string]any{"status": string(next)})
	}
	if !sale.Status.CanTransitionTo(next) {
		return apperrors.NewInvalidState("sale status transition not allowed", map[string]any{
			"sale_id": sale.ID,
			"from":    string(sale.Status),
			"to":      string(next),
		})
	}
	return nil
}

// CheckCommissionTransition validates moving the sale's commission to next.
// A commission may only leave PENDING once the sale itself is APPROVED.
func CheckCommissionTransition(sale *Sale, next CommissionStatus) error {
	if !next.Valid() {
		return apperrors.NewValidationError("unknown commission status", map[string]any{"status": string(next)})
	}
	if sale.Status != SaleStatusApproved {
		return apperrors.NewInvalidState("commission cannot change before the sale is approved", map[string]any{
			"sale_id":     sale.ID,
			"sale_status": string(sale.Status),
		})
	}
	if !sale.CommissionStatus.CanTransitionTo(next) {
		return apperrors.NewInvalidState("commission status transition not allowed", map[string]any{
			"sale_id": sale.ID,
			"from":    string(sale.CommissionStatus),
			"to":      string(next),
		})
	}
	return nil
}

// Recalculable reports whether the sale's snapshotted rates may still be
// overwritten: it is still under review and nothing has been counted.
func (s *Sale) Recalculable() bool {
	if s.CommissionStatus != CommissionStatusPending {
		return false
	}
	return s.Status == SaleStatusPending || s.Status == SaleStatusResubmitted
}
