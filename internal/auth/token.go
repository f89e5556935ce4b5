package auth

import (
	"errors"
	"slices"
	"sync"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// TokenManager issues and validates service-to-service JWTs.
type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewTokenManager builds a new manager.
func NewTokenManager(secret, issuer string, ttlMinutes int) *TokenManager {
	if ttlMinutes <= 0 {
		ttlMinutes = 60
	}
	return &TokenManager{secret: []byte(secret), issuer: issuer, ttl: time.Duration(ttlMinutes) * time.Minute}
}

// Claims describes the JWT payload of a calling service.
type Claims struct {
	Service string   `json:"service"`
	Scopes  []string `json:"scopes"`
	jwt.RegisteredClaims
}

// HasScope reports whether the token grants scope.
func (c *Claims) HasScope(scope string) bool {
	return slices.Contains(c.Scopes, scope)
}

// GenerateToken builds and signs a JWT for service.
func (tm *TokenManager) GenerateToken(service string, scopes []string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(tm.ttl)
	claims := &Claims{
		Service: service,
		Scopes:  scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tm.issuer,
			Subject:   service,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// ParseToken validates signature, expiry and issuer and returns the claims.
func (tm *TokenManager) ParseToken(tokenStr string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired()}
	if tm.issuer != "" {
		opts = append(opts, jwt.WithIssuer(tm.issuer))
	}
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return tm.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.Service == "" {
		return nil, errors.New("token has no service")
	}
	return claims, nil
}

// ServiceTokenSource caches a self-issued token for outbound calls and
// renews it shortly before expiry.
type ServiceTokenSource struct {
	tokens  *TokenManager
	service string
	scopes  []string

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewServiceTokenSource returns a source for service with scopes.
func NewServiceTokenSource(tokens *TokenManager, service string, scopes ...string) *ServiceTokenSource {
	return &ServiceTokenSource{tokens: tokens, service: service, scopes: scopes}
}

// Token returns a valid bearer token.
func (s *ServiceTokenSource) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != "" && time.Until(s.expiresAt) > time.Minute {
		return s.token, nil
	}
	token, expiresAt, err := s.tokens.GenerateToken(s.service, s.scopes)
	if err != nil {
		return "", err
	}
	s.token, s.expiresAt = token, expiresAt
	return token, nil
}
