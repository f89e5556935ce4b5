package auth

import (
	"net/http"
	"slices"

	"github.com/gofiber/fiber/v2"
)

// Scopes granted to calling services.
const (
	ScopeReputationRead = "reputation:read"
	ScopeFactsWrite     = "facts:write"
	ScopeBadgesGrant    = "badges:grant"
	ScopeReferrals      = "referrals:write"
	ScopeUsersWrite     = "users:write"
	ScopeConnectsGrant  = "connects:grant"
)

// RequireScope ensures the calling service holds scope.
func RequireScope(scope string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		}
		if !slices.Contains(principal.Scopes, scope) {
			return fiber.NewError(http.StatusForbidden, "missing scope "+scope)
		}
		return c.Next()
	}
}

// RequireService ensures caller is authenticated.
func RequireService() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		}
		return c.Next()
	}
}
