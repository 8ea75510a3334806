package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"tradedesk/internal/domain"
)

// Claims are the token claims the middleware cares about: the subject is
// the user id.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// JWTVerifier validates bearer tokens and returns their claims.
type JWTVerifier interface {
	VerifyToken(tokenString string) (*Claims, error)
	Close() error
}

// JWKSVerifier verifies tokens against a JWKS endpoint. Keys are cached
// and refreshed by keyfunc based on HTTP cache headers.
type JWKSVerifier struct {
	jwks   keyfunc.Keyfunc
	logger *slog.Logger
}

func NewJWTVerifier(jwksURL string, logger *slog.Logger) (JWTVerifier, error) {
	if jwksURL == "" {
		return nil, errors.New("JWKS URL cannot be empty")
	}

	jwks, err := keyfunc.NewDefaultCtx(context.Background(), []string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("failed to create JWKS client: %w", err)
	}

	logger.Info("JWT verifier initialized", "jwks_url", jwksURL)
	return &JWKSVerifier{jwks: jwks, logger: logger}, nil
}

func (v *JWKSVerifier) VerifyToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, v.jwks.Keyfunc)
	if err != nil || !token.Valid {
		return nil, domain.ErrUnauthorized
	}

	// Reject algorithm confusion: asymmetric signatures only.
	switch token.Method.Alg() {
	case "RS256", "ES256":
	default:
		v.logger.Warn("token uses unexpected algorithm", "algorithm", token.Method.Alg())
		return nil, domain.ErrUnauthorized
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || claims.Subject == "" {
		return nil, domain.ErrUnauthorized
	}
	if claims.Role != "" && claims.Role != "authenticated" {
		return nil, domain.ErrUnauthorized
	}
	return claims, nil
}

// Close exists for graceful-shutdown symmetry; keyfunc manages its own
// refresh lifecycle.
func (v *JWKSVerifier) Close() error { return nil }
