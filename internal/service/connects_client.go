package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// BearerTokenSource supplies the token sent on outbound calls.
type BearerTokenSource interface {
	Token() (string, error)
}

// HTTPConnectsGranter posts grants to the billing service.
type HTTPConnectsGranter struct {
	url     string
	timeout time.Duration
	tokens  BearerTokenSource
}

// NewHTTPConnectsGranter builds a granter for url. tokens may be nil.
func NewHTTPConnectsGranter(url string, timeout time.Duration, tokens BearerTokenSource) *HTTPConnectsGranter {
	return &HTTPConnectsGranter{url: url, timeout: timeout, tokens: tokens}
}

type connectsGrantRequest struct {
	UserID string `json:"userId"`
	Amount int    `json:"amount"`
	Reason string `json:"reason"`
}

// GrantConnects sends one grant request.
func (g *HTTPConnectsGranter) GrantConnects(ctx context.Context, userID string, amount int, idempotencyKey string) error {
	headers := map[string]string{"Idempotency-Key": idempotencyKey}
	if g.tokens != nil {
		token, err := g.tokens.Token()
		if err != nil {
			return err
		}
		headers["Authorization"] = "Bearer " + token
	}
	return postJSON(ctx, outboundRequest{
		URL:     g.url,
		Timeout: g.timeout,
		Headers: headers,
		Body:    connectsGrantRequest{UserID: userID, Amount: amount, Reason: "referral"},
	})
}

// LogConnectsGranter only logs grants. Used when no billing URL is configured.
type LogConnectsGranter struct {
	logger *zap.Logger
}

// NewLogConnectsGranter returns a granter that writes to logger.
func NewLogConnectsGranter(logger *zap.Logger) *LogConnectsGranter {
	return &LogConnectsGranter{logger: logger}
}

// GrantConnects logs the grant and succeeds.
func (g *LogConnectsGranter) GrantConnects(_ context.Context, userID string, amount int, idempotencyKey string) error {
	g.logger.Info("connects grant (no billing service configured)",
		zap.String("user_id", userID),
		zap.Int("connects", amount),
		zap.String("idempotency_key", idempotencyKey))
	return nil
}
