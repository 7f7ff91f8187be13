// Package authcore authenticates users against a credential store, enforces
// account lockout after repeated failures and issues signed HS256 session
// tokens.
//
// Engine methods are safe to call from multiple goroutines after
// [Builder.Build]. Read-modify-write of a user's login state is serialized by
// the [CredentialStore]; different usernames never contend.
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config],
// the collaborator interfaces ([CredentialStore], [Notifier],
// [PasswordVerifier], [TokenSigner], [SigningConfigProvider]) and value types.
// The lockout state machine and notification dispatch live under internal/.
// Store implementations live under store/ and depend on this package, never
// the other way round.
//
// # Errors
//
// Callers can tell apart ErrUserNotFound, ErrConfiguration, ErrAccountLocked,
// ErrStoreUnavailable and ErrInvalidCredentials with errors.Is. Token
// validation returns the sentinels of the jwt package. Outer boundaries
// should pass errors through [PublicError] so a client cannot learn whether
// an account exists or is locked.
//
// # What this package must NOT do
//
//   - Read signing settings from process-global state; they come from a
//     SigningConfigProvider on every call.
//   - Wait on notification delivery.
//   - Log passwords, password hashes or signing keys.
package authcore
