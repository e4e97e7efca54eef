package handlers

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/commission-service/internal/api/dto"
	"github.com/spec-kit/commission-service/internal/auth"
	"github.com/spec-kit/commission-service/internal/domain"
	"github.com/spec-kit/commission-service/internal/service"
	apperrors "github.com/spec-kit/commission-service/pkg/util/errorutil"
)

// SalesHandler exposes the sale ledger.
type SalesHandler struct {
	sales  *service.SaleService
	review *service.ReviewService
}

// NewSalesHandler constructs handler.
func NewSalesHandler(sales *service.SaleService, review *service.ReviewService) *SalesHandler {
	return &SalesHandler{sales: sales, review: review}
}

// CreateSale POST /sales.
func (h *SalesHandler) CreateSale(c *fiber.Ctx) error {
	actor, err := auth.MustActor(c)
	if err != nil {
		return err
	}
	var req dto.SaleRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	agentID, err := submittingAgent(actor, req.AgentID)
	if err != nil {
		return err
	}
	input, err := req.ToInput()
	if err != nil {
		return err
	}

	sale, err := h.sales.SubmitSale(c.UserContext(), actor, agentID, input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewSaleResponse(sale)})
}

// ResubmitSale POST /sales/:id/resubmit.
func (h *SalesHandler) ResubmitSale(c *fiber.Ctx) error {
	actor, err := auth.MustActor(c)
	if err != nil {
		return err
	}
	var req dto.SaleRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	originalID := c.Params("id")
	agentID := req.AgentID
	if actor.IsAdmin() && strings.TrimSpace(agentID) == "" {
		original, err := h.sales.GetSale(c.UserContext(), actor, originalID)
		if err != nil {
			return err
		}
		agentID = original.AgentID
	}
	agentID, err = submittingAgent(actor, agentID)
	if err != nil {
		return err
	}
	input, err := req.ToInput()
	if err != nil {
		return err
	}

	sale, err := h.sales.ResubmitSale(c.UserContext(), actor, agentID, originalID, input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewSaleResponse(sale)})
}

// GetSale GET /sales/:id.
func (h *SalesHandler) GetSale(c *fiber.Ctx) error {
	actor, err := auth.MustActor(c)
	if err != nil {
		return err
	}
	sale, err := h.sales.GetSale(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSaleResponse(sale)})
}

// ListSales GET /sales.
func (h *SalesHandler) ListSales(c *fiber.Ctx) error {
	actor, err := auth.MustActor(c)
	if err != nil {
		return err
	}
	filter, err := parseSaleFilter(c)
	if err != nil {
		return err
	}
	sales, err := h.sales.ListSales(c.UserContext(), actor, filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSaleResponses(sales)})
}

// ListAgentSales GET /agents/:id/sales.
func (h *SalesHandler) ListAgentSales(c *fiber.Ctx) error {
	actor, err := auth.MustActor(c)
	if err != nil {
		return err
	}
	filter, err := parseSaleFilter(c)
	if err != nil {
		return err
	}
	sales, err := h.sales.ListSalesForAgent(c.UserContext(), actor, c.Params("id"), filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSaleResponses(sales)})
}

// ExportSales GET /sales/export.csv.
func (h *SalesHandler) ExportSales(c *fiber.Ctx) error {
	actor, err := auth.MustActor(c)
	if err != nil {
		return err
	}
	filter, err := parseSaleFilter(c)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	count, err := h.sales.ExportSalesCSV(c.UserContext(), actor, filter, &buf)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="sales.csv"`)
	c.Set("X-Total-Count", strconv.Itoa(count))
	return c.Send(buf.Bytes())
}

// ListHistory GET /sales/:id/history.
func (h *SalesHandler) ListHistory(c *fiber.Ctx) error {
	actor, err := auth.MustActor(c)
	if err != nil {
		return err
	}
	entries, err := h.sales.ListHistory(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSaleHistoryResponses(entries)})
}

// SetSaleStatus PUT /sales/:id/status.
func (h *SalesHandler) SetSaleStatus(c *fiber.Ctx) error {
	actor, err := auth.MustActor(c)
	if err != nil {
		return err
	}
	var req dto.SaleStatusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	sale, err := h.review.SetSaleStatus(c.UserContext(), actor, c.Params("id"), domain.SaleStatus(strings.ToUpper(string(req.Status))))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSaleResponse(sale)})
}

// SetCommissionStatus PUT /sales/:id/commission-status.
func (h *SalesHandler) SetCommissionStatus(c *fiber.Ctx) error {
	actor, err := auth.MustActor(c)
	if err != nil {
		return err
	}
	var req dto.CommissionStatusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	sale, err := h.review.SetCommissionStatus(c.UserContext(), actor, c.Params("id"), domain.CommissionStatus(strings.ToUpper(string(req.Status))))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSaleResponse(sale)})
}

// RecalculateSale POST /sales/:id/recalculate.
func (h *SalesHandler) RecalculateSale(c *fiber.Ctx) error {
	actor, err := auth.MustActor(c)
	if err != nil {
		return err
	}
	sale, err := h.review.RecalculateSale(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSaleResponse(sale)})
}

// submittingAgent resolves whose ledger a submission goes to. Agents always
// submit as themselves; admins name the agent.
func submittingAgent(actor domain.Actor, requested string) (string, error) {
	requested = strings.TrimSpace(requested)
	switch actor.Role {
	case domain.RoleAgent:
		if actor.AgentID == nil {
			return "", apperrors.NewForbidden("account is not linked to an agent")
		}
		if requested != "" && requested != *actor.AgentID {
			return "", apperrors.NewForbidden("agents may only submit their own sales")
		}
		return *actor.AgentID, nil
	case domain.RoleAdmin:
		if requested == "" {
			return "", apperrors.NewValidationError("agent_id required", map[string]any{"agent_id": "required"})
		}
		return requested, nil
	default:
		return "", apperrors.NewForbidden("only agents and admins may submit sales")
	}
}
