package authcore

import (
	"context"
	"time"

	"github.com/MrEthical07/authcore/jwt"
)

// LoginState is the mutable, lockout-relevant part of a UserAccount. Stores
// must apply changes to it atomically per username.
type LoginState struct {
	IsActive           bool
	FailedAttemptCount int
	LastLoginAt        *time.Time
	// CurrentToken is only written when Config.Token.CacheIssuedToken is set.
	CurrentToken *string
}

// Clone returns a copy that shares no pointers with s.
func (s LoginState) Clone() LoginState {
	out := s
	if s.LastLoginAt != nil {
		t := *s.LastLoginAt
		out.LastLoginAt = &t
	}
	if s.CurrentToken != nil {
		tok := *s.CurrentToken
		out.CurrentToken = &tok
	}
	return out
}

// UserAccount is the record a CredentialStore returns for a username.
type UserAccount struct {
	Username       string
	IdentityNumber int64
	Email          string
	PasswordHash   string
	AuthorityLevel int
	UserTypeName   string
	RememberMe     bool

	LoginState
}

// Clone returns a deep copy of a.
func (a UserAccount) Clone() UserAccount {
	out := a
	out.LoginState = a.LoginState.Clone()
	return out
}

// LoginStateMutation edits a LoginState in place. Returning an error aborts
// the update and nothing is written. Stores with optimistic concurrency may
// call it more than once; it must not have side effects of its own.
type LoginStateMutation func(*LoginState) error

// CredentialStore looks up accounts and applies atomic login-state updates.
//
// Implementations return ErrUserNotFound for an absent username and wrap
// transport failures (including ctx cancellation) in ErrStoreUnavailable.
// An error returned by the mutation is passed back unchanged.
type CredentialStore interface {
	FindByUsername(ctx context.Context, username string) (UserAccount, error)
	AtomicUpdateLoginState(ctx context.Context, username string, fn LoginStateMutation) (LoginState, error)
}

// Notifier receives failed-attempt and lockout events. Calls are made from a
// background worker; implementations may block or fail without affecting
// authentication.
type Notifier interface {
	NotifyFailedAttempt(ctx context.Context, username string, attempts int)
	NotifyLockout(ctx context.Context, username string)
}

// PasswordVerifier checks a plaintext password against a stored hash.
type PasswordVerifier interface {
	Verify(password, encoded string) (bool, error)
}

// dummyHasher is implemented by verifiers that can supply a throwaway hash
// for unknown users.
type dummyHasher interface {
	DummyHash() string
}

// TokenSigner signs and validates compact tokens. *jwt.Signer implements it.
type TokenSigner interface {
	Sign(claims jwt.Claims, key []byte, issuer, audience string, expiresAt time.Time) (string, error)
	Validate(token string, key []byte, opts jwt.ValidationOptions) (*jwt.Claims, error)
}

// AttemptResult reports the effect of RecordFailedAttempt.
type AttemptResult struct {
	Attempts int
	Locked   bool
	// JustLocked is true only for the attempt that crossed the threshold.
	JustLocked bool
}
