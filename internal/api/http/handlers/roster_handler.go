package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/commission-service/internal/api/dto"
	"github.com/spec-kit/commission-service/internal/auth"
	"github.com/spec-kit/commission-service/internal/domain"
	"github.com/spec-kit/commission-service/internal/service"
	apperrors "github.com/spec-kit/commission-service/pkg/util/errorutil"
)

// RosterHandler exposes the agent and closer registries and their monthly
// statistics.
type RosterHandler struct {
	roster *service.RosterService
	stats  *service.StatsService
}

// NewRosterHandler constructs handler.
func NewRosterHandler(roster *service.RosterService, stats *service.StatsService) *RosterHandler {
	return &RosterHandler{roster: roster, stats: stats}
}

// CreateAgent POST /agents.
func (h *RosterHandler) CreateAgent(c *fiber.Ctx) error {
	actor, err := auth.MustActor(c)
	if err != nil {
		return err
	}
	var req dto.AgentRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	agent, err := h.roster.CreateAgent(c.UserContext(), actor, service.AgentInput{
		Code:                 req.Code,
		Name:                 req.Name,
		Email:                req.Email,
		Phone:                req.Phone,
		CommissionRate:       req.CommissionRate,
		CloserCommissionRate: req.CloserCommissionRate,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewAgentResponse(agent)})
}

// ListAgents GET /agents.
func (h *RosterHandler) ListAgents(c *fiber.Ctx) error {
	actor, err := auth.MustActor(c)
	if err != nil {
		return err
	}
	agents, err := h.roster.ListAgents(c.UserContext(), actor, parseRosterFilter(c))
	if err != nil {
		return err
	}
	resp := make([]dto.AgentResponse, 0, len(agents))
	for i := range agents {
		resp = append(resp, dto.NewAgentResponse(&agents[i]))
	}
	return c.JSON(fiber.Map{"data": resp})
}

// GetAgent GET /agents/:id.
func (h *RosterHandler) GetAgent(c *fiber.Ctx) error {
	actor, err := auth.MustActor(c)
	if err != nil {
		return err
	}
	agent, err := h.roster.GetAgent(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAgentResponse(agent)})
}

// UpdateAgent PATCH /agents/:id.
func (h *RosterHandler) UpdateAgent(c *fiber.Ctx) error {
	actor, err := auth.MustActor(c)
	if err != nil {
		return err
	}
	var req dto.AgentUpdateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	agent, err := h.roster.UpdateAgent(c.UserContext(), actor, c.Params("id"), service.AgentUpdate{
		Name:   req.Name,
		Email:  req.Email,
		Phone:  req.Phone,
		Active: req.Active,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAgentResponse(agent)})
}

// SetCommissionRates PUT /agents/:id/commission-rates.
func (h *RosterHandler) SetCommissionRates(c *fiber.Ctx) error {
	actor, err := auth.MustActor(c)
	if err != nil {
		return err
	}
	var req dto.CommissionRatesRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.AgentRate == nil || req.CloserRate == nil {
		return apperrors.NewValidationError("agent_rate and closer_rate required", nil)
	}
	result, err := h.roster.SetAgentCommissionRates(c.UserContext(), actor, c.Params("id"), *req.AgentRate, *req.CloserRate)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.CommissionRatesResponse{
		Agent:             dto.NewAgentResponse(result.Agent),
		RecalculatedSales: result.RecalculatedSales,
	}})
}

// AgentStats GET /agents/:id/stats.
func (h *RosterHandler) AgentStats(c *fiber.Ctx) error {
	return h.monthlyStats(c, domain.PrincipalAgent)
}

// CreateCloser POST /closers.
func (h *RosterHandler) CreateCloser(c *fiber.Ctx) error {
	actor, err := auth.MustActor(c)
	if err != nil {
		return err
	}
	var req dto.CloserRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	closer, err := h.roster.CreateCloser(c.UserContext(), actor, service.CloserInput{
		Code:           req.Code,
		Name:           req.Name,
		Email:          req.Email,
		Phone:          req.Phone,
		CommissionRate: req.CommissionRate,
		Notes:          req.Notes,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewCloserResponse(closer)})
}

// ListClosers GET /closers.
func (h *RosterHandler) ListClosers(c *fiber.Ctx) error {
	actor, err := auth.MustActor(c)
	if err != nil {
		return err
	}
	closers, err := h.roster.ListClosers(c.UserContext(), actor, parseRosterFilter(c))
	if err != nil {
		return err
	}
	resp := make([]dto.CloserResponse, 0, len(closers))
	for i := range closers {
		resp = append(resp, dto.NewCloserResponse(&closers[i]))
	}
	return c.JSON(fiber.Map{"data": resp})
}

// GetCloser GET /closers/:id.
func (h *RosterHandler) GetCloser(c *fiber.Ctx) error {
	actor, err := auth.MustActor(c)
	if err != nil {
		return err
	}
	closer, err := h.roster.GetCloser(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewCloserResponse(closer)})
}

// UpdateCloser PATCH /closers/:id.
func (h *RosterHandler) UpdateCloser(c *fiber.Ctx) error {
	actor, err := auth.MustActor(c)
	if err != nil {
		return err
	}
	var req dto.CloserUpdateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	closer, err := h.roster.UpdateCloser(c.UserContext(), actor, c.Params("id"), service.CloserUpdate{
		Name:           req.Name,
		Email:          req.Email,
		Phone:          req.Phone,
		CommissionRate: req.CommissionRate,
		Status:         req.Status,
		Notes:          req.Notes,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewCloserResponse(closer)})
}

// CloserStats GET /closers/:id/stats.
func (h *RosterHandler) CloserStats(c *fiber.Ctx) error {
	return h.monthlyStats(c, domain.PrincipalCloser)
}

func (h *RosterHandler) monthlyStats(c *fiber.Ctx, kind domain.PrincipalKind) error {
	actor, err := auth.MustActor(c)
	if err != nil {
		return err
	}
	months := 0
	if raw := c.Query("months"); raw != "" {
		parsed, convErr := strconv.Atoi(raw)
		if convErr != nil || parsed <= 0 {
			return apperrors.NewValidationError("months must be a positive integer", map[string]any{"months": raw})
		}
		months = parsed
	}
	id := c.Params("id")
	stats, err := h.stats.MonthlyStats(c.UserContext(), actor, kind, id, months)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewMonthlyStatsResponse(kind, id, stats)})
}
