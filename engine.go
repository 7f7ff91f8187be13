package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/MrEthical07/authcore/internal/lockout"
	"github.com/MrEthical07/authcore/internal/logging"
	"github.com/MrEthical07/authcore/internal/notify"
	"github.com/MrEthical07/authcore/jwt"
)

// Engine authenticates users, enforces lockout and issues signed tokens.
// It is safe for concurrent use; per-user serialization is delegated to the
// CredentialStore.
type Engine struct {
	config   Config
	store    CredentialStore
	signing  SigningConfigProvider
	signer   TokenSigner
	verifier PasswordVerifier
	policy   lockout.Policy
	notifier *notify.Dispatcher
	metrics  *metrics
	log      *zap.Logger
	now      func() time.Time
}

// Close drains pending notifications and stops the dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.notifier.Close()
}

// NotificationsDropped returns the number of notifications discarded because
// the dispatcher buffer was full.
func (e *Engine) NotificationsDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.notifier.Dropped()
}

// IssueToken issues a token for username without checking a password. The
// caller is responsible for having authenticated the user.
//
// Checks run in order: account lookup, signing configuration, lockout. On
// success the failed-attempt count is reset and LastLoginAt is set, in one
// atomic store update that re-checks the lockout policy.
func (e *Engine) IssueToken(ctx context.Context, username string) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}

	acct, err := e.find(ctx, username)
	if err != nil {
		e.metrics.issued(issueOutcome(err))
		return "", err
	}

	token, err := e.issue(ctx, acct)
	e.metrics.issued(issueOutcome(err))
	return token, err
}

// Authenticate verifies password for username and, on success, issues a
// token through the same pipeline as IssueToken. A mismatch is recorded as a
// failed attempt.
func (e *Engine) Authenticate(ctx context.Context, username, password string) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}

	acct, err := e.find(ctx, username)
	if errors.Is(err, ErrUserNotFound) {
		e.burnVerify(password)
	}
	if err != nil {
		e.metrics.issued(issueOutcome(err))
		return "", err
	}

	ok, verr := e.verifier.Verify(password, acct.PasswordHash)
	if verr != nil {
		e.log.Error("stored password hash unusable",
			zap.String("username", username),
			zap.Error(verr),
		)
		ok = false
	}

	if e.policy.Evaluate(snapshotOf(acct.LoginState)) == lockout.Deny {
		e.enqueue(ctx, notify.Event{Kind: notify.Lockout, Username: acct.Username})
		e.metrics.issued(OutcomeLocked)
		return "", ErrAccountLocked
	}

	if !ok {
		if verr != nil {
			e.metrics.issued(OutcomeInvalidPassword)
			return "", ErrInvalidCredentials
		}
		res, err := e.RecordFailedAttempt(ctx, username)
		if err != nil {
			e.metrics.issued(issueOutcome(err))
			return "", err
		}
		if res.Locked {
			e.metrics.issued(OutcomeLocked)
			return "", ErrAccountLocked
		}
		e.metrics.issued(OutcomeInvalidPassword)
		return "", ErrInvalidCredentials
	}

	token, err := e.issue(ctx, acct)
	e.metrics.issued(issueOutcome(err))
	return token, err
}

// burnVerify spends one verification on a throwaway hash so unknown users
// take as long as known ones.
func (e *Engine) burnVerify(password string) {
	if d, ok := e.verifier.(dummyHasher); ok {
		_, _ = e.verifier.Verify(password, d.DummyHash())
	}
}

// RecordFailedAttempt atomically increments the failed-attempt count for
// username. Reaching the lockout threshold deactivates the account. The
// failed-attempt notification is always sent; the lockout notification only
// on the attempt that crossed the threshold.
func (e *Engine) RecordFailedAttempt(ctx context.Context, username string) (AttemptResult, error) {
	if e == nil {
		return AttemptResult{}, ErrEngineNotReady
	}

	var tr lockout.Transition
	state, err := e.store.AtomicUpdateLoginState(ctx, username, func(s *LoginState) error {
		tr = e.policy.OnFailure(snapshotOf(*s))
		s.FailedAttemptCount = tr.To.FailedAttempts
		s.IsActive = tr.To.Active
		return nil
	})
	if err != nil {
		return AttemptResult{}, e.storeError(ctx, "record failed attempt", username, err)
	}

	res := AttemptResult{
		Attempts:   state.FailedAttemptCount,
		Locked:     tr.ToState == lockout.Locked,
		JustLocked: tr.JustLocked(),
	}
	e.metrics.failedAttempt(res.JustLocked)

	e.log.Info("failed authentication attempt",
		zap.String("username", username),
		zap.Int("attempts", res.Attempts),
		zap.String("client_ip", ClientIPFromContext(ctx)),
	)
	e.enqueue(ctx, notify.Event{Kind: notify.FailedAttempt, Username: username, Attempts: res.Attempts})

	if res.JustLocked {
		e.log.Warn("account locked",
			zap.String("username", username),
			zap.Int("threshold", e.policy.Threshold()),
			zap.String("client_ip", ClientIPFromContext(ctx)),
		)
		e.enqueue(ctx, notify.Event{Kind: notify.Lockout, Username: username})
	}

	return res, nil
}

// UnlockAccount clears the failed-attempt count and re-activates the
// account. It is the only way out of the locked state.
func (e *Engine) UnlockAccount(ctx context.Context, username string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	_, err := e.store.AtomicUpdateLoginState(ctx, username, func(s *LoginState) error {
		reset := e.policy.Reset()
		s.FailedAttemptCount = reset.FailedAttempts
		s.IsActive = reset.Active
		return nil
	})
	if err != nil {
		return e.storeError(ctx, "unlock account", username, err)
	}

	e.metrics.unlocked()
	e.log.Info("account unlocked", zap.String("username", username))
	return nil
}

// ValidateToken validates token against the current signing key with the
// given options. When opts carries no fallback keys, the configured previous
// keys are used. A blank current key still lets previous keys verify, so
// tokens survive a rotation that clears the key before setting the new one;
// with no key at all the result is ErrSigningKeyMissing.
func (e *Engine) ValidateToken(ctx context.Context, token string, opts jwt.ValidationOptions) (*jwt.Claims, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	sc := e.signing.SigningConfig()
	if opts.FallbackKeys == nil {
		opts.FallbackKeys = sc.FallbackKeys()
	}
	if opts.ValidateSignature && sc.Key == "" && len(opts.FallbackKeys) == 0 {
		e.log.Error("token validation without signing key")
		return nil, ErrSigningKeyMissing
	}

	claims, err := e.signer.Validate(token, []byte(sc.Key), opts)
	e.metrics.validated(err)
	if err != nil {
		e.logValidationFailure(ctx, err)
		return nil, err
	}
	return claims, nil
}

// ValidateTokenStrict runs every check with the configured issuer, audience
// and leeway.
func (e *Engine) ValidateTokenStrict(ctx context.Context, token string) (*jwt.Claims, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	sc := e.signing.SigningConfig()
	opts := jwt.StrictOptions(sc.Issuer, sc.Audience)
	opts.Leeway = e.config.Token.Leeway
	return e.ValidateToken(ctx, token, opts)
}

func (e *Engine) find(ctx context.Context, username string) (UserAccount, error) {
	acct, err := e.store.FindByUsername(ctx, username)
	if err != nil {
		return UserAccount{}, e.storeError(ctx, "find user", username, err)
	}
	return acct, nil
}

func (e *Engine) issue(ctx context.Context, acct UserAccount) (string, error) {
	sc := e.signing.SigningConfig()
	if err := sc.Validate(); err != nil {
		e.log.Error("signing configuration invalid", zap.Error(err))
		return "", err
	}

	if e.policy.Evaluate(snapshotOf(acct.LoginState)) == lockout.Deny {
		e.enqueue(ctx, notify.Event{Kind: notify.Lockout, Username: acct.Username})
		return "", ErrAccountLocked
	}

	now := e.now()
	expiresAt := now.Add(sc.TTL())
	if acct.RememberMe {
		expiresAt = now.Add(e.config.Token.RememberMeTTL)
	}

	token, err := e.signer.Sign(claimsFor(acct), []byte(sc.Key), sc.Issuer, sc.Audience, expiresAt)
	if err != nil {
		if errors.Is(err, jwt.ErrEmptyKey) {
			return "", ErrSigningKeyMissing
		}
		e.log.Error("token signing failed", zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	_, err = e.store.AtomicUpdateLoginState(ctx, acct.Username, func(s *LoginState) error {
		snap := snapshotOf(*s)
		if e.policy.Evaluate(snap) == lockout.Deny {
			return ErrAccountLocked
		}
		s.FailedAttemptCount = e.policy.OnSuccess(snap).FailedAttempts
		at := now
		s.LastLoginAt = &at
		if e.config.Token.CacheIssuedToken {
			tok := token
			s.CurrentToken = &tok
		}
		return nil
	})
	if errors.Is(err, ErrAccountLocked) {
		e.enqueue(ctx, notify.Event{Kind: notify.Lockout, Username: acct.Username})
		return "", ErrAccountLocked
	}
	if err != nil {
		return "", e.storeError(ctx, "record login", acct.Username, err)
	}

	e.log.Debug("token issued",
		zap.String("username", acct.Username),
		zap.Time("expires_at", expiresAt),
		zap.Bool("remember_me", acct.RememberMe),
	)
	return token, nil
}

// storeError normalizes store errors: not-found and configuration errors pass
// through, everything else becomes ErrStoreUnavailable.
func (e *Engine) storeError(ctx context.Context, op, username string, err error) error {
	if errors.Is(err, ErrUserNotFound) {
		return ErrUserNotFound
	}
	logging.Error(e.log, "credential store failure", err,
		zap.String("op", op),
		zap.String("username", username),
		zap.String("client_ip", ClientIPFromContext(ctx)),
	)
	if errors.Is(err, ErrStoreUnavailable) || errors.Is(err, ErrConfiguration) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func (e *Engine) logValidationFailure(ctx context.Context, err error) {
	fields := []zap.Field{
		zap.Error(err),
		zap.String("client_ip", ClientIPFromContext(ctx)),
	}
	switch {
	case errors.Is(err, jwt.ErrInvalidSignature), errors.Is(err, jwt.ErrMalformed):
		e.log.Warn("token rejected", append(fields, zap.Bool("security_event", true))...)
	default:
		e.log.Debug("token rejected", fields...)
	}
}

func (e *Engine) enqueue(ctx context.Context, ev notify.Event) {
	if e.notifier == nil {
		return
	}
	ev.At = e.now()
	if !e.notifier.TryEnqueue(ev) {
		e.log.Debug("notification dropped",
			zap.String("kind", ev.Kind.String()),
			zap.String("username", ev.Username),
			zap.String("client_ip", ClientIPFromContext(ctx)),
		)
	}
}

func snapshotOf(s LoginState) lockout.Snapshot {
	return lockout.Snapshot{FailedAttempts: s.FailedAttemptCount, Active: s.IsActive}
}
