package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/spec-kit/commission-service/internal/domain"
	"github.com/spec-kit/commission-service/internal/events"
	"github.com/spec-kit/commission-service/internal/repository"
	apperrors "github.com/spec-kit/commission-service/pkg/util/errorutil"
)

// ReviewService applies admin decisions to sales and their commissions.
type ReviewService struct {
	store      repository.Store
	dispatcher events.Dispatcher
	now        Clock
}

// NewReviewService constructs the service.
func NewReviewService(deps Dependencies) *ReviewService {
	return &ReviewService{
		store:      deps.Store,
		dispatcher: deps.Dispatcher,
		now:        deps.clock(),
	}
}

// SetSaleStatus moves a sale through its review lifecycle. Approval credits
// the agent and the registered closer in the same transaction.
func (s *ReviewService) SetSaleStatus(ctx context.Context, actor domain.Actor, saleID string, next domain.SaleStatus) (*domain.Sale, error) {
	if err := requireAdmin(actor, "change sale status"); err != nil {
		return nil, err
	}

	var (
		sale *domain.Sale
		prev domain.SaleStatus
	)
	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		var err error
		sale, err = repos.Sales.GetByIDForUpdate(ctx, saleID)
		if err != nil {
			return lookupError(err, "sale", saleID)
		}
		if err := domain.CheckSaleTransition(sale, next); err != nil {
			return err
		}
		now := s.now()
		prev = sale.Status
		sale.Status = next
		sale.UpdatedAt = now
		if err := repos.Sales.Update(ctx, sale); err != nil {
			return err
		}
		if next == domain.SaleStatusApproved {
			err := adjustPrincipals(ctx, repos, sale, func(commission decimal.Decimal) domain.CounterDelta {
				return domain.ApprovalDelta(sale.Amount, commission)
			})
			if err != nil {
				return err
			}
		}
		entry := domain.NewSaleHistory(sale.ID, actor, domain.ChangeTypeSaleStatus,
			map[string]any{"sale_status": string(prev)},
			map[string]any{"sale_status": string(next)}, now)
		return repos.History.Append(ctx, entry)
	})
	if err != nil {
		return nil, storeError(err)
	}

	publish(ctx, s.dispatcher, events.NewEvent(events.EventSaleStatusChanged, sale.ID, actor, events.PrincipalsOf(sale), events.SaleStatusChangedPayload{
		ReferenceCode: sale.ReferenceCode,
		OldStatus:     prev,
		NewStatus:     next,
	}))
	return sale, nil
}

// SetCommissionStatus moves an approved sale's commission toward payout.
func (s *ReviewService) SetCommissionStatus(ctx context.Context, actor domain.Actor, saleID string, next domain.CommissionStatus) (*domain.Sale, error) {
	if err := requireAdmin(actor, "change commission status"); err != nil {
		return nil, err
	}

	var (
		sale *domain.Sale
		prev domain.CommissionStatus
	)
	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		var err error
		sale, err = repos.Sales.GetByIDForUpdate(ctx, saleID)
		if err != nil {
			return lookupError(err, "sale", saleID)
		}
		if err := domain.CheckCommissionTransition(sale, next); err != nil {
			return err
		}
		now := s.now()
		prev = sale.CommissionStatus
		sale.CommissionStatus = next
		sale.UpdatedAt = now
		if err := repos.Sales.Update(ctx, sale); err != nil {
			return err
		}
		err = adjustPrincipals(ctx, repos, sale, func(commission decimal.Decimal) domain.CounterDelta {
			return domain.CommissionDelta(next, commission)
		})
		if err != nil {
			return err
		}
		entry := domain.NewSaleHistory(sale.ID, actor, domain.ChangeTypeCommissionStatus,
			map[string]any{"commission_status": string(prev)},
			map[string]any{"commission_status": string(next)}, now)
		return repos.History.Append(ctx, entry)
	})
	if err != nil {
		return nil, storeError(err)
	}

	publish(ctx, s.dispatcher, events.NewEvent(events.EventCommissionStatusChanged, sale.ID, actor, events.PrincipalsOf(sale), events.CommissionStatusChangedPayload{
		ReferenceCode:    sale.ReferenceCode,
		OldStatus:        prev,
		NewStatus:        next,
		AgentCommission:  sale.AgentCommission,
		CloserCommission: sale.CloserCommission,
	}))
	return sale, nil
}

// RecalculateSale re-snapshots the current agent and closer rates onto a sale
// still under review. Ad-hoc closers take the agent's closer rate.
func (s *ReviewService) RecalculateSale(ctx context.Context, actor domain.Actor, saleID string) (*domain.Sale, error) {
	if err := requireAdmin(actor, "recalculate commissions"); err != nil {
		return nil, err
	}

	var (
		sale         *domain.Sale
		old, updated map[string]any
	)
	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		var err error
		sale, err = repos.Sales.GetByIDForUpdate(ctx, saleID)
		if err != nil {
			return lookupError(err, "sale", saleID)
		}
		if !sale.Recalculable() {
			return apperrors.NewInvalidState("sale commission can no longer be recalculated", map[string]any{
				"sale_id":           sale.ID,
				"sale_status":       string(sale.Status),
				"commission_status": string(sale.CommissionStatus),
			})
		}
		agent, err := repos.Agents.GetByID(ctx, sale.AgentID)
		if err != nil {
			return lookupError(err, "agent", sale.AgentID)
		}
		closerRate, err := closerRateFor(ctx, repos, sale, agent.CloserCommissionRate)
		if err != nil {
			return err
		}

		now := s.now()
		old, updated, err = recalculate(ctx, repos, actor, sale, agent.CommissionRate, closerRate, now)
		return err
	})
	if err != nil {
		return nil, storeError(err)
	}

	publish(ctx, s.dispatcher, recalculatedEvent(actor, sale, old, updated))
	return sale, nil
}

// adjustPrincipals applies the delta derived from each principal's own
// commission to the agent and, when registered, the closer.
func adjustPrincipals(ctx context.Context, repos repository.Repositories, sale *domain.Sale, deltaFor func(decimal.Decimal) domain.CounterDelta) error {
	if delta := deltaFor(sale.AgentCommission); !delta.IsZero() {
		if err := repos.Agents.AdjustCounters(ctx, sale.AgentID, delta); err != nil {
			return err
		}
	}
	closerID, ok := sale.Closer.RegisteredID()
	if !ok {
		return nil
	}
	if delta := deltaFor(sale.CloserCommission); !delta.IsZero() {
		if err := repos.Closers.AdjustCounters(ctx, closerID, delta); err != nil {
			return err
		}
	}
	return nil
}

// closerRateFor is the closer rate a recalculation applies: a registered
// closer's own current rate, or adhocRate for a free-text closer.
func closerRateFor(ctx context.Context, repos repository.Repositories, sale *domain.Sale, adhocRate decimal.Decimal) (decimal.Decimal, error) {
	id, ok := sale.Closer.RegisteredID()
	if !ok {
		return adhocRate, nil
	}
	closer, err := repos.Closers.GetByID(ctx, id)
	if err != nil {
		return decimal.Zero, lookupError(err, "closer", id)
	}
	return closer.CommissionRate, nil
}

// recalculate overwrites the rate snapshots on a locked sale and records the
// change.
func recalculate(ctx context.Context, repos repository.Repositories, actor domain.Actor, sale *domain.Sale, agentRate, closerRate decimal.Decimal, now time.Time) (map[string]any, map[string]any, error) {
	old := domain.RateSnapshot(sale)
	sale.ApplyRates(agentRate, closerRate)
	sale.UpdatedAt = now
	if err := repos.Sales.Update(ctx, sale); err != nil {
		return nil, nil, err
	}
	next := domain.RateSnapshot(sale)
	entry := domain.NewSaleHistory(sale.ID, actor, domain.ChangeTypeRecalculated, old, next, now)
	if err := repos.History.Append(ctx, entry); err != nil {
		return nil, nil, err
	}
	return old, next, nil
}

func recalculatedEvent(actor domain.Actor, sale *domain.Sale, old, next map[string]any) events.Event {
	return events.NewEvent(events.EventSaleRecalculated, sale.ID, actor, events.PrincipalsOf(sale), events.SaleRecalculatedPayload{
		ReferenceCode: sale.ReferenceCode,
		Old:           old,
		New:           next,
	})
}
