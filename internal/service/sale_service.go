package service

import (
	"context"
	"encoding/csv"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"github.com/spec-kit/commission-service/internal/domain"
	"github.com/spec-kit/commission-service/internal/events"
	"github.com/spec-kit/commission-service/internal/repository"
	"github.com/spec-kit/commission-service/pkg/util/codegen"
	apperrors "github.com/spec-kit/commission-service/pkg/util/errorutil"
)

const referenceAttempts = 5

// Dependencies bundles what the ledger services share.
type Dependencies struct {
	Store      repository.Store
	Dispatcher events.Dispatcher
	Clock      Clock
}

func (d Dependencies) clock() Clock {
	if d.Clock == nil {
		return systemClock
	}
	return d.Clock
}

// SaleService coordinates submission and read access to the sale ledger.
type SaleService struct {
	store      repository.Store
	dispatcher events.Dispatcher
	now        Clock
}

// NewSaleService constructs the service.
func NewSaleService(deps Dependencies) *SaleService {
	return &SaleService{
		store:      deps.Store,
		dispatcher: deps.Dispatcher,
		now:        deps.clock(),
	}
}

// SubmitSale records a new PENDING sale for agentID with the agent's and the
// closer's current rates snapshotted.
func (s *SaleService) SubmitSale(ctx context.Context, actor domain.Actor, agentID string, input domain.SaleInput) (*domain.Sale, error) {
	if !actor.IsAdmin() && !actor.IsAgent(agentID) {
		return nil, apperrors.NewForbidden("agents may only submit their own sales")
	}
	in, err := input.Normalize()
	if err != nil {
		return nil, err
	}

	var sale *domain.Sale
	err = s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		agent, err := activeAgent(ctx, repos, agentID)
		if err != nil {
			return err
		}
		ref, closerRate, err := resolveCloser(ctx, repos, in.Closer)
		if err != nil {
			return err
		}
		in.Closer = ref

		now := s.now()
		sale = domain.NewSale(agent.ID, in, agent.CommissionRate, closerRate, now)
		if err := assignReference(ctx, repos.Sales, sale, now); err != nil {
			return err
		}
		if err := repos.Sales.Create(ctx, sale); err != nil {
			return err
		}
		entry := domain.NewSaleHistory(sale.ID, actor, domain.ChangeTypeSubmitted, nil, saleSnapshot(sale), now)
		return repos.History.Append(ctx, entry)
	})
	if err != nil {
		return nil, storeError(err)
	}

	publish(ctx, s.dispatcher, events.NewEvent(events.EventSaleSubmitted, sale.ID, actor, events.PrincipalsOf(sale), events.SaleSubmittedPayload{
		ReferenceCode: sale.ReferenceCode,
		Amount:        sale.Amount,
		ClientName:    sale.ClientName,
	}))
	return sale, nil
}

// ResubmitSale creates a revised copy of a REJECTED sale. The original row is
// locked for the duration and left untouched.
func (s *SaleService) ResubmitSale(ctx context.Context, actor domain.Actor, agentID, originalSaleID string, input domain.SaleInput) (*domain.Sale, error) {
	if !actor.IsAdmin() && !actor.IsAgent(agentID) {
		return nil, apperrors.NewForbidden("agents may only resubmit their own sales")
	}
	in, err := input.Normalize()
	if err != nil {
		return nil, err
	}

	var sale *domain.Sale
	err = s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		original, err := repos.Sales.GetByIDForUpdate(ctx, originalSaleID)
		if err != nil {
			return lookupError(err, "sale", originalSaleID)
		}
		if original.AgentID != agentID {
			return apperrors.NewNotFound("sale", map[string]any{"id": originalSaleID})
		}
		if original.Status != domain.SaleStatusRejected {
			return apperrors.NewInvalidState("only rejected sales can be resubmitted", map[string]any{
				"sale_id": original.ID,
				"status":  string(original.Status),
			})
		}
		exists, err := repos.Sales.HasActiveResubmission(ctx, original.ID)
		if err != nil {
			return err
		}
		if exists {
			return resubmissionConflict(original.ID)
		}

		agent, err := activeAgent(ctx, repos, agentID)
		if err != nil {
			return err
		}
		ref, closerRate, err := resolveCloser(ctx, repos, in.Closer)
		if err != nil {
			return err
		}
		in.Closer = ref

		now := s.now()
		sale = domain.NewSale(agent.ID, in, agent.CommissionRate, closerRate, now)
		sale.Status = domain.SaleStatusResubmitted
		sale.OriginalSaleID = &original.ID
		if err := assignReference(ctx, repos.Sales, sale, now); err != nil {
			return err
		}
		if err := repos.Sales.Create(ctx, sale); err != nil {
			if apperrors.CodeOf(storeError(err)) == apperrors.CodeConflict {
				return resubmissionConflict(original.ID)
			}
			return err
		}
		entry := domain.NewSaleHistory(sale.ID, actor, domain.ChangeTypeResubmitted,
			map[string]any{"original_sale_id": original.ID, "original_reference": original.ReferenceCode},
			saleSnapshot(sale), now)
		return repos.History.Append(ctx, entry)
	})
	if err != nil {
		return nil, storeError(err)
	}

	publish(ctx, s.dispatcher, events.NewEvent(events.EventSaleResubmitted, sale.ID, actor, events.PrincipalsOf(sale), events.SaleSubmittedPayload{
		ReferenceCode:  sale.ReferenceCode,
		Amount:         sale.Amount,
		ClientName:     sale.ClientName,
		OriginalSaleID: sale.OriginalSaleID,
	}))
	return sale, nil
}

// GetSale returns a sale visible to actor. Sales outside the caller's scope
// are reported as missing.
func (s *SaleService) GetSale(ctx context.Context, actor domain.Actor, saleID string) (*domain.Sale, error) {
	sale, err := s.store.Repos().Sales.GetByID(ctx, saleID)
	if err != nil {
		return nil, lookupError(err, "sale", saleID)
	}
	if !canView(actor, sale) {
		return nil, apperrors.NewNotFound("sale", map[string]any{"id": saleID})
	}
	return sale, nil
}

// ListSalesForAgent lists one agent's sales, newest first.
func (s *SaleService) ListSalesForAgent(ctx context.Context, actor domain.Actor, agentID string, filter domain.SaleFilter) ([]*domain.Sale, error) {
	if !actor.IsAdmin() && !actor.IsAgent(agentID) {
		return nil, apperrors.NewForbidden("agents may only list their own sales")
	}
	repos := s.store.Repos()
	if _, err := repos.Agents.GetByID(ctx, agentID); err != nil {
		return nil, lookupError(err, "agent", agentID)
	}
	filter.AgentID = &agentID
	sales, err := repos.Sales.List(ctx, filter)
	if err != nil {
		return nil, storeError(err)
	}
	return sales, nil
}

// ListSales lists sales matching filter within the caller's scope.
func (s *SaleService) ListSales(ctx context.Context, actor domain.Actor, filter domain.SaleFilter) ([]*domain.Sale, error) {
	scoped, err := scopeFilter(actor, filter)
	if err != nil {
		return nil, err
	}
	sales, err := s.store.Repos().Sales.List(ctx, scoped)
	if err != nil {
		return nil, storeError(err)
	}
	return sales, nil
}

// ListHistory returns the audit trail of a sale, oldest first.
func (s *SaleService) ListHistory(ctx context.Context, actor domain.Actor, saleID string) ([]domain.SaleHistory, error) {
	if _, err := s.GetSale(ctx, actor, saleID); err != nil {
		return nil, err
	}
	entries, err := s.store.Repos().History.ListBySale(ctx, saleID)
	if err != nil {
		return nil, storeError(err)
	}
	return entries, nil
}

var exportHeader = []string{
	"reference_code", "agent_id", "closer_id", "closer_name", "client_name", "client_email",
	"service_name", "sale_amount", "sale_date", "agent_commission_rate", "agent_commission",
	"closer_commission_rate", "closer_commission", "sale_status", "commission_status",
	"original_sale_id", "created_at",
}

// ExportSalesCSV writes every sale matching filter, ignoring pagination.
func (s *SaleService) ExportSalesCSV(ctx context.Context, actor domain.Actor, filter domain.SaleFilter, w io.Writer) (int, error) {
	scoped, err := scopeFilter(actor, filter)
	if err != nil {
		return 0, err
	}
	sales, err := s.store.Repos().Sales.ListAll(ctx, scoped)
	if err != nil {
		return 0, storeError(err)
	}

	out := csv.NewWriter(w)
	if err := out.Write(exportHeader); err != nil {
		return 0, err
	}
	for _, sale := range sales {
		closerID, _ := sale.Closer.RegisteredID()
		original := ""
		if sale.OriginalSaleID != nil {
			original = *sale.OriginalSaleID
		}
		record := []string{
			sale.ReferenceCode,
			sale.AgentID,
			closerID,
			sale.Closer.Name,
			sale.ClientName,
			sale.ClientEmail,
			sale.ServiceName,
			sale.Amount.StringFixed(2),
			sale.EffectiveDate().UTC().Format("2006-01-02"),
			sale.AgentCommissionRate.StringFixed(2),
			sale.AgentCommission.StringFixed(2),
			sale.CloserCommissionRate.StringFixed(2),
			sale.CloserCommission.StringFixed(2),
			string(sale.Status),
			string(sale.CommissionStatus),
			original,
			sale.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := out.Write(record); err != nil {
			return 0, err
		}
	}
	out.Flush()
	return len(sales), out.Error()
}

func activeAgent(ctx context.Context, repos repository.Repositories, agentID string) (*domain.Agent, error) {
	agent, err := repos.Agents.GetByID(ctx, agentID)
	if err != nil {
		return nil, lookupError(err, "agent", agentID)
	}
	if !agent.Active {
		return nil, apperrors.NewNotFound("agent", map[string]any{"id": agentID, "reason": "inactive"})
	}
	return agent, nil
}

// resolveCloser returns the reference to store and the closer rate to
// snapshot. Ad-hoc closers earn nothing until an admin recalculates.
func resolveCloser(ctx context.Context, repos repository.Repositories, ref domain.CloserReference) (domain.CloserReference, decimal.Decimal, error) {
	id, ok := ref.RegisteredID()
	if !ok {
		return ref, decimal.Zero, nil
	}
	closer, err := repos.Closers.GetByID(ctx, id)
	if err != nil {
		return ref, decimal.Zero, lookupError(err, "closer", id)
	}
	if !closer.IsActive() {
		return ref, decimal.Zero, apperrors.NewNotFound("closer", map[string]any{"id": id, "reason": "inactive"})
	}
	ref.Name = closer.Name
	return ref, closer.CommissionRate, nil
}

func assignReference(ctx context.Context, sales repository.SaleRepository, sale *domain.Sale, now time.Time) error {
	for i := 0; i < referenceAttempts; i++ {
		code, err := codegen.SaleReference(now)
		if err != nil {
			return apperrors.NewInternalError(err)
		}
		exists, err := sales.ReferenceExists(ctx, code)
		if err != nil {
			return err
		}
		if !exists {
			sale.ReferenceCode = code
			return nil
		}
	}
	return apperrors.NewConflict("could not allocate a unique reference code", nil)
}

func resubmissionConflict(originalID string) error {
	return apperrors.NewConflict("sale already has an active resubmission", map[string]any{"original_sale_id": originalID})
}

func canView(actor domain.Actor, sale *domain.Sale) bool {
	if actor.IsAdmin() || actor.IsAgent(sale.AgentID) {
		return true
	}
	if id, ok := sale.Closer.RegisteredID(); ok {
		return actor.IsCloser(id)
	}
	return false
}

// scopeFilter pins agent and closer callers to their own records.
func scopeFilter(actor domain.Actor, filter domain.SaleFilter) (domain.SaleFilter, error) {
	switch actor.Role {
	case domain.RoleAdmin:
	case domain.RoleAgent:
		if actor.AgentID == nil {
			return filter, apperrors.NewForbidden("account is not linked to an agent")
		}
		filter.AgentID = actor.AgentID
	case domain.RoleCloser:
		if actor.CloserID == nil {
			return filter, apperrors.NewForbidden("account is not linked to a closer")
		}
		filter.CloserID = actor.CloserID
	default:
		return filter, apperrors.NewForbidden("unknown role")
	}
	return filter, nil
}
