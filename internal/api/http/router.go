package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/reputation-service/internal/api/http/handlers"
	"github.com/spec-kit/reputation-service/internal/auth"
	"github.com/spec-kit/reputation-service/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Facts          *handlers.FactsHandler
	Referrals      *handlers.ReferralsHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	read := auth.RequireScope(auth.ScopeReputationRead)
	write := auth.RequireScope(auth.ScopeFactsWrite)

	users := app.Group("/users", cfg.AuthMiddleware.Handle, auth.RequireService())
	users.Post("/", auth.RequireScope(auth.ScopeUsersWrite), cfg.Users.Create)
	users.Get("/:id", read, cfg.Users.Get)
	users.Get("/:id/reputation", read, cfg.Users.Reputation)
	users.Post("/:id/reputation/recompute", write, cfg.Users.Recompute)
	users.Get("/:id/badges", read, cfg.Users.ListBadges)
	users.Post("/:id/badges/award", auth.RequireScope(auth.ScopeBadgesGrant), cfg.Users.AwardBadge)

	users.Patch("/:id/cloud-membership", write, cfg.Facts.CloudMembership)
	users.Post("/:id/kyc", write, cfg.Facts.SubmitKYC)
	users.Post("/:id/kyc/verify", write, cfg.Facts.VerifyKYC)
	users.Post("/:id/payment/verify", write, cfg.Facts.VerifyPayment)
	users.Post("/:id/email/verify", write, cfg.Facts.VerifyEmail)
	users.Post("/:id/certifications", write, cfg.Facts.AddCertification)
	users.Post("/:id/certifications/:certId/verify", write, cfg.Facts.ReviewCertification)
	users.Post("/:id/background-check/initiate", write, cfg.Facts.InitiateBackgroundCheck)
	users.Post("/:id/background-check/verify", write, cfg.Facts.CompleteBackgroundCheck)
	users.Post("/:id/tax-form", write, cfg.Facts.SubmitTaxForm)
	users.Post("/:id/subscription", write, cfg.Facts.Subscription)
	users.Post("/:id/insurance", write, cfg.Facts.Insurance)
	users.Patch("/:id/job-success", write, cfg.Facts.JobSuccess)
	users.Patch("/:id/profile-completion", write, cfg.Facts.ProfileCompletion)

	referrals := app.Group("/referrals", cfg.AuthMiddleware.Handle, auth.RequireScope(auth.ScopeReferrals))
	referrals.Post("/", cfg.Referrals.Create)
	referrals.Post("/:id/complete", cfg.Referrals.Complete)
}
