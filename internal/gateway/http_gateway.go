package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// HTTPGateway posts JSON to a processor endpoint using fiber's client.
type HTTPGateway struct {
	baseURL string
	apiKey  string
	timeout time.Duration
}

// NewHTTPGateway configures a client for baseURL.
func NewHTTPGateway(baseURL, apiKey string, timeout time.Duration) *HTTPGateway {
	return &HTTPGateway{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, timeout: timeout}
}

type chargeBody struct {
	Reference   string          `json:"reference"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Description string          `json:"description,omitempty"`
	Card        cardBody        `json:"card"`
}

type cardBody struct {
	Number      string `json:"number"`
	ExpiryMonth int    `json:"exp_month"`
	ExpiryYear  int    `json:"exp_year"`
	CVC         string `json:"cvc"`
	HolderName  string `json:"holder_name,omitempty"`
}

type refundBody struct {
	TransactionID string          `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
}

type processorReply struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transaction_id"`
	RefundID      string `json:"refund_id"`
	Message       string `json:"message"`
}

func (g *HTTPGateway) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	body := chargeBody{
		Reference:   req.Reference,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Description: req.Description,
		Card: cardBody{
			Number:      digitsOnly(req.Card.Number),
			ExpiryMonth: req.Card.ExpiryMonth,
			ExpiryYear:  req.Card.ExpiryYear,
			CVC:         req.Card.CVC,
			HolderName:  req.Card.HolderName,
		},
	}
	reply, err := g.post(ctx, "/charges", body)
	if err != nil {
		return ChargeResult{}, err
	}
	return ChargeResult{Success: reply.Success, TransactionID: reply.TransactionID, Message: reply.Message}, nil
}

func (g *HTTPGateway) Refund(ctx context.Context, transactionID string, amount decimal.Decimal) (RefundResult, error) {
	reply, err := g.post(ctx, "/refunds", refundBody{TransactionID: transactionID, Amount: amount})
	if err != nil {
		return RefundResult{}, err
	}
	return RefundResult{Success: reply.Success, RefundID: reply.RefundID, Message: reply.Message}, nil
}

// post sends body and decodes the reply. 402 responses are declines and
// carry a reply body; any other non-2xx status is a transport failure.
func (g *HTTPGateway) post(ctx context.Context, path string, body any) (processorReply, error) {
	timeout := g.timeout
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return processorReply{}, fmt.Errorf("gateway %s: %w", path, context.DeadlineExceeded)
		}
		if timeout <= 0 || remaining < timeout {
			timeout = remaining
		}
	}

	agent := fiber.Post(g.baseURL + path)
	agent.Set(fiber.HeaderAuthorization, "Bearer "+g.apiKey)
	agent.JSON(body)
	if timeout > 0 {
		agent.Timeout(timeout)
	}
	if err := agent.Parse(); err != nil {
		fiber.ReleaseAgent(agent)
		return processorReply{}, fmt.Errorf("gateway %s: %w", path, err)
	}

	status, raw, errs := agent.Bytes()
	if len(errs) > 0 {
		return processorReply{}, fmt.Errorf("gateway %s: %w", path, errs[0])
	}

	var reply processorReply
	if status != fiber.StatusPaymentRequired && (status < 200 || status >= 300) {
		return processorReply{}, fmt.Errorf("gateway %s: unexpected status %d", path, status)
	}
	if err := json.Unmarshal(raw, &reply); err != nil {
		return processorReply{}, fmt.Errorf("gateway %s: decode reply: %w", path, err)
	}
	if status == fiber.StatusPaymentRequired {
		reply.Success = false
	}
	return reply, nil
}
