package auth

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/spec-kit/reputation-service/pkg/util/errorutil"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", "marketplace", 5)
	token, expiresAt, err := tm.GenerateToken("certifications", []string{ScopeFactsWrite})
	require.NoError(t, err)
	assert.False(t, expiresAt.IsZero())

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "certifications", claims.Service)
	assert.True(t, claims.HasScope(ScopeFactsWrite))
	assert.False(t, claims.HasScope(ScopeBadgesGrant))
}

func TestParseTokenRejectsForeignTokens(t *testing.T) {
	tm := NewTokenManager("secret", "marketplace", 5)

	other, _, err := NewTokenManager("other-secret", "marketplace", 5).GenerateToken("x", nil)
	require.NoError(t, err)
	_, err = tm.ParseToken(other)
	assert.Error(t, err)

	wrongIssuer, _, err := NewTokenManager("secret", "elsewhere", 5).GenerateToken("x", nil)
	require.NoError(t, err)
	_, err = tm.ParseToken(wrongIssuer)
	assert.Error(t, err)

	_, err = tm.ParseToken("not-a-jwt")
	assert.Error(t, err)
}

func TestServiceTokenSourceCachesToken(t *testing.T) {
	src := NewServiceTokenSource(NewTokenManager("secret", "marketplace", 60), "reputation-service", ScopeConnectsGrant)
	first, err := src.Token()
	require.NoError(t, err)
	second, err := src.Token()
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestMiddlewareAndScopes(t *testing.T) {
	tm := NewTokenManager("secret", "marketplace", 5)
	app := fiber.New(fiber.Config{ErrorHandler: func(c *fiber.Ctx, err error) error {
		return c.SendStatus(apperrors.ToDomainError(err).HTTPStatus)
	}})
	mw := NewAuthMiddleware(tm)
	app.Post("/grant", mw.Handle, RequireScope(ScopeBadgesGrant), func(c *fiber.Ctx) error {
		p, ok := PrincipalFromContext(c)
		require.True(t, ok)
		return c.SendString(p.Service)
	})

	call := func(header string) int {
		req := httptest.NewRequest("POST", "/grant", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	granted, _, err := tm.GenerateToken("academy", []string{ScopeBadgesGrant})
	require.NoError(t, err)
	readOnly, _, err := tm.GenerateToken("web", []string{ScopeReputationRead})
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusOK, call("Bearer "+granted))
	assert.Equal(t, fiber.StatusForbidden, call("Bearer "+readOnly))
	assert.Equal(t, fiber.StatusUnauthorized, call("Basic abc"))
	assert.Equal(t, fiber.StatusUnauthorized, call(""))
}
