package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/spec-kit/commission-service/internal/api/dto"
	"github.com/spec-kit/commission-service/internal/domain"
	"github.com/spec-kit/commission-service/internal/repository"
	apperrors "github.com/spec-kit/commission-service/pkg/util/errorutil"
)

const defaultPageSize = 20

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return nil
}

func parseBoolQuery(c *fiber.Ctx, key string, defaultVal bool) bool {
	if val := c.Query(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func pageBounds(c *fiber.Ctx) (limit, offset int) {
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), defaultPageSize)
	return pageSize, (page - 1) * pageSize
}

// validID reports whether s can name a stored row. Every store keys rows by
// UUID.
func validID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

func parseRosterFilter(c *fiber.Ctx) repository.RosterFilter {
	limit, offset := pageBounds(c)
	return repository.RosterFilter{
		ActiveOnly: parseBoolQuery(c, "active_only", false),
		Search:     strings.TrimSpace(c.Query("q")),
		Limit:      limit,
		Offset:     offset,
	}
}

// parseSaleFilter reads the listing filters shared by the sale endpoints.
// Unknown statuses and malformed bounds are rejected rather than ignored.
func parseSaleFilter(c *fiber.Ctx) (domain.SaleFilter, error) {
	var filter domain.SaleFilter
	fields := map[string]any{}

	if val := c.Query("agent_id"); val != "" {
		if validID(val) {
			filter.AgentID = &val
		} else {
			fields["agent_id"] = "invalid id"
		}
	}
	if val := c.Query("closer_id"); val != "" {
		if validID(val) {
			filter.CloserID = &val
		} else {
			fields["closer_id"] = "invalid id"
		}
	}
	if val := c.Query("status"); val != "" {
		status := domain.SaleStatus(strings.ToUpper(val))
		if status.Valid() {
			filter.SaleStatus = &status
		} else {
			fields["status"] = "unknown sale status"
		}
	}
	if val := c.Query("commission_status"); val != "" {
		status := domain.CommissionStatus(strings.ToUpper(val))
		if status.Valid() {
			filter.CommissionStatus = &status
		} else {
			fields["commission_status"] = "unknown commission status"
		}
	}
	for key, target := range map[string]**decimal.Decimal{"min_amount": &filter.MinAmount, "max_amount": &filter.MaxAmount} {
		val := c.Query(key)
		if val == "" {
			continue
		}
		amount, err := decimal.NewFromString(val)
		if err != nil {
			fields[key] = "invalid amount"
			continue
		}
		*target = &amount
	}
	var err error
	if filter.From, err = dto.ParseDate("from", c.Query("from")); err != nil {
		fields["from"] = "expected YYYY-MM-DD or RFC 3339"
	}
	if filter.To, err = dto.ParseDate("to", c.Query("to")); err != nil {
		fields["to"] = "expected YYYY-MM-DD or RFC 3339"
	}
	if len(fields) > 0 {
		return domain.SaleFilter{}, apperrors.NewValidationError("invalid filter", fields)
	}

	filter.Limit, filter.Offset = pageBounds(c)
	return filter, nil
}
