package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/jwt"
)

// TokenValidator is the part of *authcore.Engine the guards use.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string, opts jwt.ValidationOptions) (*jwt.Claims, error)
	ValidateTokenStrict(ctx context.Context, token string) (*jwt.Claims, error)
}

type claimsContextKey struct{}

// ClaimsFromContext returns the claims stored by a guard.
func ClaimsFromContext(ctx context.Context) (*jwt.Claims, bool) {
	c, ok := ctx.Value(claimsContextKey{}).(*jwt.Claims)
	return c, ok
}

type validateFunc func(ctx context.Context, token string) (*jwt.Claims, error)

func guard(v TokenValidator, validate validateFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v == nil {
				writeError(w, http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeError(w, http.StatusUnauthorized)
				return
			}

			claims, err := validate(r.Context(), token)
			if err != nil {
				if errors.Is(authcore.PublicError(err), authcore.ErrAuthenticationFailed) {
					writeError(w, http.StatusUnauthorized)
				} else {
					writeError(w, http.StatusInternalServerError)
				}
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Guard rejects requests without a bearer token that passes every check
// (signature, lifetime, issuer, audience). Validated claims are stored in
// the request context.
func Guard(v TokenValidator) func(http.Handler) http.Handler {
	if v == nil {
		return guard(nil, nil)
	}
	return guard(v, v.ValidateTokenStrict)
}

func bearerToken(value string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(value), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}

func writeError(w http.ResponseWriter, status int) {
	msg := authcore.ErrAuthenticationFailed.Error()
	if status >= http.StatusInternalServerError {
		msg = http.StatusText(status)
	}
	w.Header().Set("Content-Type", "application/json")
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
