package jwt

import (
	"errors"
	"fmt"
	"slices"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claim names exposed to downstream consumers of issued tokens.
const (
	ClaimName           = "name"
	ClaimAuthorityLevel = "AuthorityLevel"
	ClaimIdentityNumber = "IdentityNumber"
)

var (
	// ErrEmptyKey is returned when a token is signed or verified without key material.
	ErrEmptyKey = errors.New("signing key is empty")
	// ErrMalformed indicates the token is not a parseable three-segment JWS.
	ErrMalformed = errors.New("token malformed")
	// ErrInvalidSignature indicates the signature does not verify under the configured key or algorithm.
	ErrInvalidSignature = errors.New("token signature invalid")
	// ErrExpired indicates the token is past its exp claim (or carries none).
	ErrExpired = errors.New("token expired")
	// ErrNotYetValid indicates the token nbf claim is in the future.
	ErrNotYetValid = errors.New("token not yet valid")
	// ErrIssuerMismatch indicates the iss claim differs from the expected issuer.
	ErrIssuerMismatch = errors.New("token issuer mismatch")
	// ErrAudienceMismatch indicates the aud claim does not contain the expected audience.
	ErrAudienceMismatch = errors.New("token audience mismatch")
)

// Claims is the payload carried by every issued token. AuthorityLevel and
// IdentityNumber are string-typed on the wire.
type Claims struct {
	Name           string `json:"name,omitempty"`
	AuthorityLevel string `json:"AuthorityLevel"`
	IdentityNumber string `json:"IdentityNumber"`
	gjwt.RegisteredClaims
}

// ValidationOptions toggles each validation step independently. Diagnostic
// reads may verify the signature only; authorization checks should use
// [StrictOptions].
type ValidationOptions struct {
	ValidateSignature bool
	ValidateLifetime  bool
	ValidateIssuer    bool
	ValidateAudience  bool

	Issuer   string
	Audience string
	Leeway   time.Duration

	// FallbackKeys are tried, in order, after the primary key fails to verify
	// the signature. Used while rotating keys.
	FallbackKeys [][]byte
}

// StrictOptions enables every check against the given issuer and audience.
func StrictOptions(issuer, audience string) ValidationOptions {
	return ValidationOptions{
		ValidateSignature: true,
		ValidateLifetime:  true,
		ValidateIssuer:    true,
		ValidateAudience:  true,
		Issuer:            issuer,
		Audience:          audience,
	}
}

// SignatureOnlyOptions verifies integrity but skips lifetime, issuer and audience.
func SignatureOnlyOptions() ValidationOptions {
	return ValidationOptions{ValidateSignature: true}
}

// Signer signs and validates HS256 compact tokens. The zero value is not
// usable; construct with [NewSigner].
//
// A Signer holds no mutable state and is safe for concurrent use.
type Signer struct {
	method gjwt.SigningMethod
	now    func() time.Time
	newID  func() string
}

// Option customises a [Signer].
type Option func(*Signer)

// WithClock overrides the time source used for iat/nbf stamping and lifetime checks.
func WithClock(now func() time.Time) Option {
	return func(s *Signer) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSigner returns an HS256 signer.
func NewSigner(opts ...Option) *Signer {
	s := &Signer{
		method: gjwt.SigningMethodHS256,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sign stamps iss, aud, iat, nbf, exp and jti onto claims and returns the
// compact token. It fails only when key is empty.
func (s *Signer) Sign(claims Claims, key []byte, issuer, audience string, expiresAt time.Time) (string, error) {
	if len(key) == 0 {
		return "", ErrEmptyKey
	}

	now := s.now()
	claims.Issuer = issuer
	claims.Audience = nil
	if audience != "" {
		claims.Audience = gjwt.ClaimStrings{audience}
	}
	claims.IssuedAt = gjwt.NewNumericDate(now)
	claims.NotBefore = gjwt.NewNumericDate(now)
	claims.ExpiresAt = gjwt.NewNumericDate(expiresAt)
	if claims.ID == "" {
		claims.ID = s.newID()
	}

	token := gjwt.NewWithClaims(s.method, claims)
	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate parses token and runs the checks enabled in opts in a fixed order:
// signature, lifetime, issuer, audience. The first failing check decides the
// returned error, so outcomes never overlap.
func (s *Signer) Validate(token string, key []byte, opts ValidationOptions) (*Claims, error) {
	claims, err := s.parse(token, key, opts)
	if err != nil {
		return nil, err
	}

	if opts.ValidateLifetime {
		now := s.now()
		if claims.ExpiresAt == nil || !now.Before(claims.ExpiresAt.Add(opts.Leeway)) {
			return nil, ErrExpired
		}
		if claims.NotBefore != nil && now.Add(opts.Leeway).Before(claims.NotBefore.Time) {
			return nil, ErrNotYetValid
		}
	}

	if opts.ValidateIssuer && claims.Issuer != opts.Issuer {
		return nil, ErrIssuerMismatch
	}

	if opts.ValidateAudience && !slices.Contains(claims.Audience, opts.Audience) {
		return nil, ErrAudienceMismatch
	}

	return claims, nil
}

func (s *Signer) parse(token string, key []byte, opts ValidationOptions) (*Claims, error) {
	// Claim validation is done by Validate so every check can be toggled.
	parser := gjwt.NewParser(
		gjwt.WithValidMethods([]string{s.method.Alg()}),
		gjwt.WithoutClaimsValidation(),
	)

	if !opts.ValidateSignature {
		claims := &Claims{}
		if _, _, err := parser.ParseUnverified(token, claims); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return claims, nil
	}

	keys := make([][]byte, 0, 1+len(opts.FallbackKeys))
	if len(key) > 0 {
		keys = append(keys, key)
	}
	for _, k := range opts.FallbackKeys {
		if len(k) > 0 {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil, ErrEmptyKey
	}

	var lastErr error
	for _, k := range keys {
		claims := &Claims{}
		parsed, err := parser.ParseWithClaims(token, claims, func(t *gjwt.Token) (interface{}, error) {
			if t.Method.Alg() != s.method.Alg() {
				return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
			}
			return k, nil
		})
		if err == nil && parsed.Valid {
			return claims, nil
		}
		lastErr = classify(err)
		if !errors.Is(lastErr, ErrInvalidSignature) {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

func classify(err error) error {
	switch {
	case err == nil:
		return ErrInvalidSignature
	case errors.Is(err, gjwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	case errors.Is(err, gjwt.ErrTokenSignatureInvalid),
		errors.Is(err, gjwt.ErrTokenUnverifiable),
		errors.Is(err, gjwt.ErrSignatureInvalid):
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}
