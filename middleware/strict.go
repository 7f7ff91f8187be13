package middleware

import (
	"context"
	"net/http"

	"github.com/MrEthical07/authcore/jwt"
)

// RequireStrict is Guard under its mode-explicit name.
func RequireStrict(v TokenValidator) func(http.Handler) http.Handler {
	return Guard(v)
}

// RequireSignatureOnly checks only token integrity. Expired or foreign-issuer
// tokens pass; use it for diagnostic endpoints, never for authorization.
func RequireSignatureOnly(v TokenValidator) func(http.Handler) http.Handler {
	if v == nil {
		return guard(nil, nil)
	}
	return guard(v, func(ctx context.Context, token string) (*jwt.Claims, error) {
		return v.ValidateToken(ctx, token, jwt.SignatureOnlyOptions())
	})
}
