package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/commission-service/internal/api/http/handlers"
	"github.com/spec-kit/commission-service/internal/auth"
	"github.com/spec-kit/commission-service/internal/config"
	"github.com/spec-kit/commission-service/internal/events"
	"github.com/spec-kit/commission-service/internal/gateway"
	"github.com/spec-kit/commission-service/internal/observability"
	"github.com/spec-kit/commission-service/internal/repository/memory"
	"github.com/spec-kit/commission-service/internal/service"
)

const (
	adminEmail    = "admin@example.com"
	adminPassword = "admin-password"
)

type testServer struct {
	t   *testing.T
	app *fiber.App
}

func newTestServer(t *testing.T, loginRate string) *testServer {
	t.Helper()
	logger := zap.NewNop()
	store := memory.New()
	dispatcher := events.NewInMemoryDispatcher(logger)
	deps := service.Dependencies{Store: store, Dispatcher: dispatcher}

	authService := service.NewAuthService(config.AuthConfig{
		JWTSecret:               "test-secret",
		AccessTokenTTLMinutes:   15,
		PasswordResetTTLMinutes: 30,
		BcryptCost:              bcrypt.MinCost,
	}, deps)
	_, err := authService.EnsureBootstrapAdmin(context.Background(), adminEmail, adminPassword)
	require.NoError(t, err)

	statsService := service.NewStatsService(deps, nil, config.StatsConfig{DefaultMonths: 6, MaxMonths: 24}, logger)
	loginLimiter, err := NewRateLimiter(loginRate, "limiter:test", nil)
	require.NoError(t, err)

	metrics := observability.NewMetrics()
	app := NewApp(config.AppConfig{Name: "commission-service-test"}, logger, metrics, RouteConfig{
		Health:         handlers.NewHealthHandler("commission-service-test", "test", store, nil),
		Auth:           handlers.NewAuthHandler(authService),
		Sales:          handlers.NewSalesHandler(service.NewSaleService(deps), service.NewReviewService(deps)),
		Roster:         handlers.NewRosterHandler(service.NewRosterService(deps), statsService),
		Payments:       handlers.NewPaymentsHandler(service.NewPaymentService(deps, gateway.NewSandbox(), "USD", logger)),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), store.Repos().Users),
		Metrics:        metrics.Handler(),
		LoginLimiter:   loginLimiter,
	})
	return &testServer{t: t, app: app}
}

func (s *testServer) do(method, path, token string, body any) (*nethttp.Response, []byte) {
	s.t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(s.t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(s.t, err)
	return resp, raw
}

func (s *testServer) doJSON(method, path, token string, body any) (int, map[string]any) {
	s.t.Helper()
	resp, raw := s.do(method, path, token, body)
	var decoded map[string]any
	require.NoError(s.t, json.Unmarshal(raw, &decoded), string(raw))
	return resp.StatusCode, decoded
}

func (s *testServer) login(email, password string) string {
	s.t.Helper()
	status, body := s.doJSON(fiber.MethodPost, "/auth/login", "", map[string]any{"email": email, "password": password})
	require.Equal(s.t, fiber.StatusOK, status, body)
	return body["data"].(map[string]any)["auth"].(map[string]any)["token"].(string)
}

func data(body map[string]any) map[string]any {
	return body["data"].(map[string]any)
}

func errorCode(body map[string]any) string {
	errBody, ok := body["error"].(map[string]any)
	if !ok {
		return ""
	}
	code, _ := errBody["code"].(string)
	return code
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t, "100-M")

	status, body := srv.doJSON(fiber.MethodGet, "/health/live", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "alive", body["status"])

	status, body = srv.doJSON(fiber.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, fiber.StatusOK, status, body)

	resp, raw := srv.do(fiber.MethodGet, "/metrics", "", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "commission_service_http_requests_total")
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv := newTestServer(t, "100-M")

	status, body := srv.doJSON(fiber.MethodGet, "/sales", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(body))

	status, body = srv.doJSON(fiber.MethodGet, "/sales", "not-a-token", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(body))

	status, body = srv.doJSON(fiber.MethodGet, "/no-such-route", "", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))
}

func TestLoginIsRateLimited(t *testing.T) {
	srv := newTestServer(t, "2-M")
	creds := map[string]any{"email": adminEmail, "password": "wrong-password"}

	for i := 0; i < 2; i++ {
		status, body := srv.doJSON(fiber.MethodPost, "/auth/login", "", creds)
		assert.Equal(t, fiber.StatusUnauthorized, status)
		assert.Equal(t, "UNAUTHORIZED", errorCode(body))
	}

	resp, raw := srv.do(fiber.MethodPost, "/auth/login", "", creds)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "0", resp.Header.Get("X-RateLimit-Remaining"))
	assert.Contains(t, string(raw), "RATE_LIMITED")
}

func TestSaleLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t, "100-M")
	admin := srv.login(adminEmail, adminPassword)

	status, body := srv.doJSON(fiber.MethodPost, "/agents", admin, map[string]any{
		"name":                   "Dana Seller",
		"email":                  "dana@example.com",
		"commission_rate":        "10",
		"closer_commission_rate": "5",
	})
	require.Equal(t, fiber.StatusCreated, status, body)
	agentID := data(body)["id"].(string)
	assert.NotEmpty(t, data(body)["code"])

	status, body = srv.doJSON(fiber.MethodPost, "/admin/users", admin, map[string]any{
		"name":     "Dana Seller",
		"email":    "dana@example.com",
		"password": "agent-password",
		"role":     "AGENT",
		"agent_id": agentID,
	})
	require.Equal(t, fiber.StatusCreated, status, body)
	agent := srv.login("dana@example.com", "agent-password")

	status, body = srv.doJSON(fiber.MethodPost, "/sales", agent, map[string]any{
		"closer_name":  "Walk-in Closer",
		"client_name":  "Acme Ltd",
		"client_email": "buyer@acme.test",
		"service_name": "Consulting",
		"sale_amount":  "1000",
		"sale_date":    "2024-05-10",
	})
	require.Equal(t, fiber.StatusCreated, status, body)
	sale := data(body)
	saleID := sale["id"].(string)
	assert.Equal(t, agentID, sale["agent_id"])
	assert.Equal(t, "1000.00", sale["sale_amount"])
	assert.Equal(t, "100.00", sale["agent_commission"])
	assert.Equal(t, "0.00", sale["closer_commission"])
	assert.Equal(t, "PENDING", sale["status"])
	assert.Nil(t, sale["closer_id"])

	status, body = srv.doJSON(fiber.MethodPut, "/sales/"+saleID+"/status", agent, map[string]any{"status": "approved"})
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errorCode(body))

	status, body = srv.doJSON(fiber.MethodPut, "/sales/"+saleID+"/status", admin, map[string]any{"status": "approved"})
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, "APPROVED", data(body)["status"])

	status, body = srv.doJSON(fiber.MethodPut, "/sales/"+saleID+"/status", admin, map[string]any{"status": "pending"})
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
	assert.Equal(t, "INVALID_STATE", errorCode(body))

	status, body = srv.doJSON(fiber.MethodGet, "/sales/"+saleID+"/history", agent, nil)
	require.Equal(t, fiber.StatusOK, status, body)
	assert.NotEmpty(t, body["data"])

	status, body = srv.doJSON(fiber.MethodGet, "/agents/"+agentID, admin, nil)
	require.Equal(t, fiber.StatusOK, status, body)
	counters := data(body)["counters"].(map[string]any)
	assert.EqualValues(t, 1, counters["total_sales"])
	assert.Equal(t, "1000.00", counters["total_sales_value"])
	assert.Equal(t, "100.00", counters["pending_commission"])

	status, body = srv.doJSON(fiber.MethodGet, "/agents/"+agentID+"/stats?months=3", agent, nil)
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Len(t, data(body)["months"], 3)

	status, body = srv.doJSON(fiber.MethodGet, "/agents/"+agentID+"/stats?months=0", agent, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))

	resp, raw := srv.do(fiber.MethodGet, "/sales/export.csv", admin, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(raw))
	assert.True(t, strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), "text/csv"))
	assert.Equal(t, "1", resp.Header.Get("X-Total-Count"))
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], sale["reference_code"].(string))
}

func TestErrorEnvelopeForBadInput(t *testing.T) {
	srv := newTestServer(t, "100-M")
	admin := srv.login(adminEmail, adminPassword)

	resp, raw := srv.do(fiber.MethodPost, "/agents", admin, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(raw), "VALIDATION_FAILED")

	status, body := srv.doJSON(fiber.MethodPost, "/agents", admin, map[string]any{
		"name":            "Bad Rate",
		"email":           "bad@example.com",
		"commission_rate": "150",
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))
	assert.NotEmpty(t, body["error"].(map[string]any)["message"])

	status, body = srv.doJSON(fiber.MethodGet, "/sales?status=bogus", admin, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))

	status, body = srv.doJSON(fiber.MethodGet, "/sales?agent_id=nope", admin, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))

	status, body = srv.doJSON(fiber.MethodGet, "/payments?sale_id=nope", admin, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))

	status, body = srv.doJSON(fiber.MethodGet, "/sales/does-not-exist", admin, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))
}

func TestDeclinedPaymentOverHTTP(t *testing.T) {
	srv := newTestServer(t, "100-M")
	admin := srv.login(adminEmail, adminPassword)

	charge := func(number string) (int, map[string]any) {
		return srv.doJSON(fiber.MethodPost, "/payments", admin, map[string]any{
			"client_name":  "Acme Ltd",
			"client_email": "billing@acme.test",
			"amount":       "250.00",
			"card": map[string]any{
				"number":      number,
				"exp_month":   12,
				"exp_year":    2099,
				"cvc":         "123",
				"holder_name": "Acme Ltd",
			},
		})
	}

	status, body := charge(gateway.DeclineCardNumber)
	assert.Equal(t, fiber.StatusPaymentRequired, status)
	assert.Equal(t, "PAYMENT_DECLINED", errorCode(body))
	details := body["error"].(map[string]any)["details"].(map[string]any)
	assert.NotEmpty(t, details["payment_id"])

	status, body = charge("4242424242424242")
	require.Equal(t, fiber.StatusCreated, status, body)
	assert.Equal(t, "SUCCEEDED", data(body)["status"])

	status, body = srv.doJSON(fiber.MethodGet, "/payments?status=FAILED", admin, nil)
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Len(t, body["data"], 1)
}
