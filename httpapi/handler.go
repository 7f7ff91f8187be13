// Package httpapi binds the authentication engine to HTTP with chi.
//
// Every failure a client can cause (unknown user, wrong password, locked
// account, bad token) produces the same 401 body. Only operator-side
// failures are distinguishable: 500 for configuration errors and 503 when the
// credential store is unreachable.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/middleware"
)

const maxBodyBytes = 64 << 10

// Authenticator is the engine surface the handlers need.
type Authenticator interface {
	middleware.TokenValidator
	Authenticate(ctx context.Context, username, password string) (string, error)
}

// Handler serves the /api/auth endpoints.
type Handler struct {
	auth Authenticator
	log  *zap.Logger
}

func NewHandler(auth Authenticator, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{auth: auth, log: log}
}

// Routes returns the auth router:
//
//	POST /login  {"userName","password"} -> {"token"}
//	GET  /me     bearer token -> claims
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/login", h.login)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Guard(h.auth))
		r.Get("/me", h.me)
	})
	return r
}

type loginRequest struct {
	UserName string `json:"userName"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if strings.TrimSpace(req.UserName) == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "userName and password are required"})
		return
	}

	token, err := h.auth.Authenticate(r.Context(), req.UserName, req.Password)
	if err != nil {
		h.writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		h.writeAuthError(w, authcore.ErrAuthenticationFailed)
		return
	}
	writeJSON(w, http.StatusOK, claims)
}

func (h *Handler) writeAuthError(w http.ResponseWriter, err error) {
	public := authcore.PublicError(err)
	switch {
	case errors.Is(public, authcore.ErrStoreUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "service unavailable"})
	case errors.Is(public, authcore.ErrConfiguration), errors.Is(public, authcore.ErrEngineNotReady):
		h.log.Error("login failed on server configuration", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	default:
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: public.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
