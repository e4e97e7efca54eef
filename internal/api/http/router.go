package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/commission-service/internal/api/http/handlers"
	"github.com/spec-kit/commission-service/internal/auth"
	"github.com/spec-kit/commission-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Sales          *handlers.SalesHandler
	Roster         *handlers.RosterHandler
	Payments       *handlers.PaymentsHandler
	AuthMiddleware *auth.AuthMiddleware
	// Metrics serves /metrics when set.
	Metrics fiber.Handler
	// LoginLimiter guards the unauthenticated credential endpoints when set.
	LoginLimiter fiber.Handler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", cfg.Metrics)
	}

	limited := []fiber.Handler{}
	if cfg.LoginLimiter != nil {
		limited = append(limited, cfg.LoginLimiter)
	}
	authn := cfg.AuthMiddleware.Handle
	admin := auth.RequireAdmin()

	authGroup := app.Group("/auth")
	authGroup.Post("/login", append(limited, cfg.Auth.Login)...)
	authGroup.Post("/password/reset/request", append(limited, cfg.Auth.RequestPasswordReset)...)
	authGroup.Post("/password/reset/confirm", append(limited, cfg.Auth.ConfirmPasswordReset)...)
	authGroup.Post("/password/change", authn, cfg.Auth.ChangePassword)

	adminGroup := app.Group("/admin", authn, admin)
	adminGroup.Post("/users", cfg.Auth.CreateUser)

	agents := app.Group("/agents", authn)
	agents.Post("/", admin, cfg.Roster.CreateAgent)
	agents.Get("/", cfg.Roster.ListAgents)
	agents.Get("/:id", cfg.Roster.GetAgent)
	agents.Patch("/:id", admin, cfg.Roster.UpdateAgent)
	agents.Put("/:id/commission-rates", admin, cfg.Roster.SetCommissionRates)
	agents.Get("/:id/sales", cfg.Sales.ListAgentSales)
	agents.Get("/:id/stats", cfg.Roster.AgentStats)

	closers := app.Group("/closers", authn)
	closers.Post("/", admin, cfg.Roster.CreateCloser)
	closers.Get("/", cfg.Roster.ListClosers)
	closers.Get("/:id", cfg.Roster.GetCloser)
	closers.Patch("/:id", admin, cfg.Roster.UpdateCloser)
	closers.Get("/:id/stats", cfg.Roster.CloserStats)

	sales := app.Group("/sales", authn)
	sales.Post("/", auth.RequireRole(domain.RoleAdmin, domain.RoleAgent), cfg.Sales.CreateSale)
	sales.Get("/", cfg.Sales.ListSales)
	sales.Get("/export.csv", cfg.Sales.ExportSales)
	sales.Get("/:id", cfg.Sales.GetSale)
	sales.Get("/:id/history", cfg.Sales.ListHistory)
	sales.Post("/:id/resubmit", auth.RequireRole(domain.RoleAdmin, domain.RoleAgent), cfg.Sales.ResubmitSale)
	sales.Put("/:id/status", admin, cfg.Sales.SetSaleStatus)
	sales.Put("/:id/commission-status", admin, cfg.Sales.SetCommissionStatus)
	sales.Post("/:id/recalculate", admin, cfg.Sales.RecalculateSale)

	payments := app.Group("/payments", authn, admin)
	payments.Post("/", cfg.Payments.Charge)
	payments.Get("/", cfg.Payments.ListPayments)
	payments.Get("/:id", cfg.Payments.GetPayment)
	payments.Post("/:id/refund", cfg.Payments.Refund)
}
