package authcore

import "errors"

var (
	// ErrUserNotFound is returned when the credential store has no record for the username.
	ErrUserNotFound = errors.New("user not found")
	// ErrConfiguration marks every signing or engine misconfiguration. It is never retried.
	ErrConfiguration = errors.New("authentication configuration invalid")
	// ErrSigningKeyMissing is returned when no signing key is configured. It matches ErrConfiguration.
	ErrSigningKeyMissing error = &configError{msg: "signing key not configured; check the signing settings"}
	// ErrAccountLocked is returned when the lockout policy denies the account.
	ErrAccountLocked = errors.New("account locked")
	// ErrStoreUnavailable indicates a transport or timeout failure in the credential store.
	ErrStoreUnavailable = errors.New("credential store unavailable")
	// ErrInvalidCredentials is returned when the password does not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAuthenticationFailed is the single generic error exposed to end users.
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrEngineNotReady is returned by methods called on a nil Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

type configError struct {
	msg string
}

func (e *configError) Error() string { return e.msg }

func (e *configError) Unwrap() error { return ErrConfiguration }

func configErrorf(msg string) error {
	return &configError{msg: msg}
}

// PublicError collapses err into what an outer boundary may reveal. Account
// existence, lock state, password mismatch and token defects all become
// ErrAuthenticationFailed. Configuration and store failures are operator
// problems and pass through unchanged.
func PublicError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrConfiguration), errors.Is(err, ErrStoreUnavailable), errors.Is(err, ErrEngineNotReady):
		return err
	default:
		return ErrAuthenticationFailed
	}
}
