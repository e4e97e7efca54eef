package service

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/spec-kit/commission-service/internal/domain"
	"github.com/spec-kit/commission-service/internal/events"
	"github.com/spec-kit/commission-service/internal/repository"
	"github.com/spec-kit/commission-service/pkg/util/codegen"
	apperrors "github.com/spec-kit/commission-service/pkg/util/errorutil"
)

// RosterService maintains the agent and closer registries.
type RosterService struct {
	store      repository.Store
	dispatcher events.Dispatcher
	now        Clock
}

// AgentInput describes agent creation payload. An empty code is generated.
type AgentInput struct {
	Code                 string
	Name                 string
	Email                string
	Phone                string
	CommissionRate       decimal.Decimal
	CloserCommissionRate decimal.Decimal
}

// AgentUpdate carries the profile fields an admin may change.
type AgentUpdate struct {
	Name   *string
	Email  *string
	Phone  *string
	Active *bool
}

// CloserInput describes closer creation payload. An empty code is generated.
type CloserInput struct {
	Code           string
	Name           string
	Email          string
	Phone          string
	CommissionRate decimal.Decimal
	Notes          string
}

// CloserUpdate carries the closer fields an admin may change.
type CloserUpdate struct {
	Name           *string
	Email          *string
	Phone          *string
	CommissionRate *decimal.Decimal
	Status         *domain.CloserStatus
	Notes          *string
}

// RatesUpdate reports the outcome of SetAgentCommissionRates.
type RatesUpdate struct {
	Agent             *domain.Agent
	RecalculatedSales int
}

// NewRosterService constructs the service.
func NewRosterService(deps Dependencies) *RosterService {
	return &RosterService{
		store:      deps.Store,
		dispatcher: deps.Dispatcher,
		now:        deps.clock(),
	}
}

// CreateAgent registers an agent with zeroed counters.
func (s *RosterService) CreateAgent(ctx context.Context, actor domain.Actor, input AgentInput) (*domain.Agent, error) {
	if err := requireAdmin(actor, "create agents"); err != nil {
		return nil, err
	}
	agent := &domain.Agent{
		Code:                 strings.TrimSpace(input.Code),
		Name:                 strings.TrimSpace(input.Name),
		Email:                strings.ToLower(strings.TrimSpace(input.Email)),
		Phone:                strings.TrimSpace(input.Phone),
		CommissionRate:       input.CommissionRate.Round(2),
		CloserCommissionRate: input.CloserCommissionRate.Round(2),
		Active:               true,
	}
	if err := validateContact(agent.Name, agent.Email); err != nil {
		return nil, err
	}
	if err := domain.ValidateRate("commission_rate", agent.CommissionRate); err != nil {
		return nil, err
	}
	if err := domain.ValidateRate("closer_commission_rate", agent.CloserCommissionRate); err != nil {
		return nil, err
	}

	err := createWithCode(agent.Code, codegen.AgentCode, func(code string) error {
		agent.Code = code
		return s.store.Repos().Agents.Create(ctx, agent)
	})
	if err != nil {
		return nil, codeError(err, "agent", agent.Code)
	}
	return agent, nil
}

// UpdateAgent changes profile fields. Rates go through SetAgentCommissionRates.
func (s *RosterService) UpdateAgent(ctx context.Context, actor domain.Actor, agentID string, update AgentUpdate) (*domain.Agent, error) {
	if err := requireAdmin(actor, "update agents"); err != nil {
		return nil, err
	}
	var agent *domain.Agent
	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		var err error
		agent, err = repos.Agents.GetByIDForUpdate(ctx, agentID)
		if err != nil {
			return lookupError(err, "agent", agentID)
		}
		if update.Name != nil {
			agent.Name = strings.TrimSpace(*update.Name)
		}
		if update.Email != nil {
			agent.Email = strings.ToLower(strings.TrimSpace(*update.Email))
		}
		if update.Phone != nil {
			agent.Phone = strings.TrimSpace(*update.Phone)
		}
		if update.Active != nil {
			agent.Active = *update.Active
		}
		if err := validateContact(agent.Name, agent.Email); err != nil {
			return err
		}
		return repos.Agents.Update(ctx, agent)
	})
	if err != nil {
		return nil, storeError(err)
	}
	return agent, nil
}

// GetAgent returns an agent to an admin or to the agent itself.
func (s *RosterService) GetAgent(ctx context.Context, actor domain.Actor, agentID string) (*domain.Agent, error) {
	if !actor.IsAdmin() && !actor.IsAgent(agentID) {
		return nil, apperrors.NewForbidden("agents may only view their own profile")
	}
	agent, err := s.store.Repos().Agents.GetByID(ctx, agentID)
	if err != nil {
		return nil, lookupError(err, "agent", agentID)
	}
	return agent, nil
}

// ListAgents lists the agent registry.
func (s *RosterService) ListAgents(ctx context.Context, actor domain.Actor, filter repository.RosterFilter) ([]domain.Agent, error) {
	if err := requireAdmin(actor, "list agents"); err != nil {
		return nil, err
	}
	agents, err := s.store.Repos().Agents.List(ctx, filter)
	if err != nil {
		return nil, storeError(err)
	}
	return agents, nil
}

// SetAgentCommissionRates stores new rates on the agent and re-snapshots
// every sale of that agent still under review. Sales that are approved, paid,
// rejected or cancelled keep their snapshot.
func (s *RosterService) SetAgentCommissionRates(ctx context.Context, actor domain.Actor, agentID string, agentRate, closerRate decimal.Decimal) (*RatesUpdate, error) {
	if err := requireAdmin(actor, "change commission rates"); err != nil {
		return nil, err
	}
	agentRate, closerRate = agentRate.Round(2), closerRate.Round(2)
	if err := domain.ValidateRate("agent_rate", agentRate); err != nil {
		return nil, err
	}
	if err := domain.ValidateRate("closer_rate", closerRate); err != nil {
		return nil, err
	}

	result := &RatesUpdate{}
	var recalculated []events.Event
	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		agent, err := repos.Agents.GetByIDForUpdate(ctx, agentID)
		if err != nil {
			return lookupError(err, "agent", agentID)
		}
		if err := repos.Agents.UpdateRates(ctx, agent.ID, agentRate, closerRate); err != nil {
			return err
		}
		agent.CommissionRate = agentRate
		agent.CloserCommissionRate = closerRate

		sales, err := repos.Sales.ListRecalculableForUpdate(ctx, agent.ID)
		if err != nil {
			return err
		}
		now := s.now()
		for _, sale := range sales {
			saleCloserRate, err := closerRateFor(ctx, repos, sale, closerRate)
			if err != nil {
				return err
			}
			old, next, err := recalculate(ctx, repos, actor, sale, agentRate, saleCloserRate, now)
			if err != nil {
				return err
			}
			recalculated = append(recalculated, recalculatedEvent(actor, sale, old, next))
		}
		result.Agent = agent
		result.RecalculatedSales = len(sales)
		return nil
	})
	if err != nil {
		return nil, storeError(err)
	}

	publish(ctx, s.dispatcher, events.NewEvent(events.EventCommissionRatesUpdated, agentID, actor, events.Principals{AgentID: agentID}, events.CommissionRatesUpdatedPayload{
		AgentRate:         agentRate,
		CloserRate:        closerRate,
		RecalculatedSales: result.RecalculatedSales,
	}))
	publish(ctx, s.dispatcher, recalculated...)
	return result, nil
}

// CreateCloser registers an ACTIVE closer.
func (s *RosterService) CreateCloser(ctx context.Context, actor domain.Actor, input CloserInput) (*domain.Closer, error) {
	if err := requireAdmin(actor, "create closers"); err != nil {
		return nil, err
	}
	closer := &domain.Closer{
		Code:           strings.TrimSpace(input.Code),
		Name:           strings.TrimSpace(input.Name),
		Email:          strings.ToLower(strings.TrimSpace(input.Email)),
		Phone:          strings.TrimSpace(input.Phone),
		CommissionRate: input.CommissionRate.Round(2),
		Status:         domain.CloserStatusActive,
		Notes:          strings.TrimSpace(input.Notes),
	}
	if err := validateContact(closer.Name, closer.Email); err != nil {
		return nil, err
	}
	if err := domain.ValidateRate("commission_rate", closer.CommissionRate); err != nil {
		return nil, err
	}

	err := createWithCode(closer.Code, codegen.CloserCode, func(code string) error {
		closer.Code = code
		return s.store.Repos().Closers.Create(ctx, closer)
	})
	if err != nil {
		return nil, codeError(err, "closer", closer.Code)
	}
	return closer, nil
}

// UpdateCloser changes closer fields. A new rate applies to future sales and
// explicit recalculations only.
func (s *RosterService) UpdateCloser(ctx context.Context, actor domain.Actor, closerID string, update CloserUpdate) (*domain.Closer, error) {
	if err := requireAdmin(actor, "update closers"); err != nil {
		return nil, err
	}
	var closer *domain.Closer
	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		var err error
		closer, err = repos.Closers.GetByID(ctx, closerID)
		if err != nil {
			return lookupError(err, "closer", closerID)
		}
		if update.Name != nil {
			closer.Name = strings.TrimSpace(*update.Name)
		}
		if update.Email != nil {
			closer.Email = strings.ToLower(strings.TrimSpace(*update.Email))
		}
		if update.Phone != nil {
			closer.Phone = strings.TrimSpace(*update.Phone)
		}
		if update.Notes != nil {
			closer.Notes = strings.TrimSpace(*update.Notes)
		}
		if update.CommissionRate != nil {
			closer.CommissionRate = update.CommissionRate.Round(2)
			if err := domain.ValidateRate("commission_rate", closer.CommissionRate); err != nil {
				return err
			}
		}
		if update.Status != nil {
			if *update.Status != domain.CloserStatusActive && *update.Status != domain.CloserStatusInactive {
				return apperrors.NewValidationError("unknown closer status", map[string]any{"status": string(*update.Status)})
			}
			closer.Status = *update.Status
		}
		if err := validateContact(closer.Name, closer.Email); err != nil {
			return err
		}
		return repos.Closers.Update(ctx, closer)
	})
	if err != nil {
		return nil, storeError(err)
	}
	return closer, nil
}

// GetCloser returns a closer to an admin, an agent, or the closer itself.
func (s *RosterService) GetCloser(ctx context.Context, actor domain.Actor, closerID string) (*domain.Closer, error) {
	if actor.Role == domain.RoleCloser && !actor.IsCloser(closerID) {
		return nil, apperrors.NewForbidden("closers may only view their own profile")
	}
	closer, err := s.store.Repos().Closers.GetByID(ctx, closerID)
	if err != nil {
		return nil, lookupError(err, "closer", closerID)
	}
	return closer, nil
}

// ListClosers lists the closer registry. Agents see active closers only so
// they can pick one for a sale.
func (s *RosterService) ListClosers(ctx context.Context, actor domain.Actor, filter repository.RosterFilter) ([]domain.Closer, error) {
	switch actor.Role {
	case domain.RoleAdmin:
	case domain.RoleAgent:
		filter.ActiveOnly = true
	default:
		return nil, apperrors.NewForbidden("closers may not list the registry")
	}
	closers, err := s.store.Repos().Closers.List(ctx, filter)
	if err != nil {
		return nil, storeError(err)
	}
	return closers, nil
}

func validateContact(name, email string) error {
	fields := map[string]any{}
	if name == "" {
		fields["name"] = "required"
	}
	if email != "" && !domain.ValidEmail(email) {
		fields["email"] = "invalid"
	}
	if len(fields) > 0 {
		return apperrors.NewValidationError("invalid registry input", fields)
	}
	return nil
}

// createWithCode uses the supplied code once, or retries generated codes on
// collision.
func createWithCode(code string, generate func() (string, error), create func(string) error) error {
	if code != "" {
		return create(code)
	}
	var err error
	for i := 0; i < referenceAttempts; i++ {
		var generated string
		generated, err = generate()
		if err != nil {
			return apperrors.NewInternalError(err)
		}
		err = create(generated)
		if !errors.Is(err, repository.ErrDuplicate) {
			return err
		}
	}
	return err
}

func codeError(err error, resource, code string) error {
	if errors.Is(err, repository.ErrDuplicate) {
		return apperrors.NewConflict(resource+" code already exists", map[string]any{"code": code})
	}
	return storeError(err)
}
