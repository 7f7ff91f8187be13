// Package redisstore is a CredentialStore backed by one Redis hash per user.
//
// Login-state updates use WATCH/MULTI optimistic transactions on the user's
// key, so concurrent updates to one username never lose writes and different
// usernames never contend.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/MrEthical07/authcore"
)

const (
	fieldIdentityNumber = "identity_number"
	fieldEmail          = "email"
	fieldPasswordHash   = "password_hash"
	fieldAuthorityLevel = "authority_level"
	fieldUserTypeName   = "user_type_name"
	fieldIsActive       = "is_active"
	fieldFailedAttempts = "failed_attempt_count"
	fieldLastLoginAt    = "last_login_at"
	fieldRememberMe     = "remember_me"
	fieldCurrentToken   = "current_token"
)

// DefaultMaxAttempts bounds the optimistic retry loop of AtomicUpdateLoginState.
const DefaultMaxAttempts = 8

// ErrCorruptRecord indicates a stored hash field could not be decoded.
var ErrCorruptRecord = errors.New("corrupt user record")

// Config configures a Store.
type Config struct {
	Prefix      string `koanf:"prefix" env:"PREFIX"`
	MaxAttempts int    `koanf:"max_attempts" env:"MAX_ATTEMPTS"`
}

// Store implements authcore.CredentialStore.
type Store struct {
	client      redis.UniversalClient
	prefix      string
	maxAttempts int
}

func New(client redis.UniversalClient, cfg Config) *Store {
	if cfg.Prefix == "" {
		cfg.Prefix = "authcore"
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	return &Store{client: client, prefix: cfg.Prefix, maxAttempts: cfg.MaxAttempts}
}

func (s *Store) key(username string) string {
	return s.prefix + ":user:" + username
}

// Put writes acct, replacing any existing record for the username.
func (s *Store) Put(ctx context.Context, acct authcore.UserAccount) error {
	key := s.key(acct.Username)
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, key)
		p.HSet(ctx, key, encodeAccount(acct))
		return nil
	})
	if err != nil {
		return unavailable("put", acct.Username, err)
	}
	return nil
}

func (s *Store) FindByUsername(ctx context.Context, username string) (authcore.UserAccount, error) {
	vals, err := s.client.HGetAll(ctx, s.key(username)).Result()
	if err != nil {
		return authcore.UserAccount{}, unavailable("find", username, err)
	}
	if len(vals) == 0 {
		return authcore.UserAccount{}, authcore.ErrUserNotFound
	}
	return decodeAccount(username, vals)
}

// mutationAbort carries an error returned by the caller's mutation out of
// the WATCH callback without it being mistaken for a Redis failure.
type mutationAbort struct {
	err error
}

func (m *mutationAbort) Error() string { return m.err.Error() }

func (s *Store) AtomicUpdateLoginState(ctx context.Context, username string, fn authcore.LoginStateMutation) (authcore.LoginState, error) {
	key := s.key(username)

	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		var out authcore.LoginState

		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			vals, err := tx.HGetAll(ctx, key).Result()
			if err != nil {
				return err
			}
			if len(vals) == 0 {
				return authcore.ErrUserNotFound
			}
			acct, err := decodeAccount(username, vals)
			if err != nil {
				return err
			}

			next := acct.LoginState.Clone()
			if err := fn(&next); err != nil {
				return &mutationAbort{err: err}
			}

			_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
				p.HSet(ctx, key, encodeLoginState(next))
				if del := absentLoginFields(next); len(del) > 0 {
					p.HDel(ctx, key, del...)
				}
				return nil
			})
			out = next
			return err
		}, key)

		var abort *mutationAbort
		switch {
		case err == nil:
			return out, nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.As(err, &abort):
			return authcore.LoginState{}, abort.err
		case errors.Is(err, authcore.ErrUserNotFound), errors.Is(err, ErrCorruptRecord):
			return authcore.LoginState{}, err
		default:
			return authcore.LoginState{}, unavailable("update", username, err)
		}
	}

	return authcore.LoginState{}, oops.
		In("redisstore").
		Code("UPDATE_CONTENTION").
		With("username", username).
		With("attempts", s.maxAttempts).
		Wrapf(authcore.ErrStoreUnavailable, "optimistic update did not converge")
}

func unavailable(op, username string, err error) error {
	return oops.
		In("redisstore").
		Code("STORE_UNAVAILABLE").
		With("op", op).
		With("username", username).
		Wrap(fmt.Errorf("%w: %w", authcore.ErrStoreUnavailable, err))
}

func encodeAccount(a authcore.UserAccount) map[string]any {
	m := encodeLoginState(a.LoginState)
	m[fieldIdentityNumber] = strconv.FormatInt(a.IdentityNumber, 10)
	m[fieldEmail] = a.Email
	m[fieldPasswordHash] = a.PasswordHash
	m[fieldAuthorityLevel] = strconv.Itoa(a.AuthorityLevel)
	m[fieldUserTypeName] = a.UserTypeName
	m[fieldRememberMe] = boolField(a.RememberMe)
	return m
}

func encodeLoginState(s authcore.LoginState) map[string]any {
	m := map[string]any{
		fieldIsActive:       boolField(s.IsActive),
		fieldFailedAttempts: strconv.Itoa(s.FailedAttemptCount),
	}
	if s.LastLoginAt != nil {
		m[fieldLastLoginAt] = s.LastLoginAt.UTC().Format(time.RFC3339Nano)
	}
	if s.CurrentToken != nil {
		m[fieldCurrentToken] = *s.CurrentToken
	}
	return m
}

func absentLoginFields(s authcore.LoginState) []string {
	var out []string
	if s.LastLoginAt == nil {
		out = append(out, fieldLastLoginAt)
	}
	if s.CurrentToken == nil {
		out = append(out, fieldCurrentToken)
	}
	return out
}

func decodeAccount(username string, vals map[string]string) (authcore.UserAccount, error) {
	acct := authcore.UserAccount{
		Username:     username,
		Email:        vals[fieldEmail],
		PasswordHash: vals[fieldPasswordHash],
		UserTypeName: vals[fieldUserTypeName],
		RememberMe:   vals[fieldRememberMe] == "1",
	}
	acct.IsActive = vals[fieldIsActive] == "1"

	var err error
	if acct.IdentityNumber, err = intField(vals, fieldIdentityNumber); err != nil {
		return authcore.UserAccount{}, corrupt(username, fieldIdentityNumber, err)
	}
	level, err := intField(vals, fieldAuthorityLevel)
	if err != nil {
		return authcore.UserAccount{}, corrupt(username, fieldAuthorityLevel, err)
	}
	acct.AuthorityLevel = int(level)
	failed, err := intField(vals, fieldFailedAttempts)
	if err != nil {
		return authcore.UserAccount{}, corrupt(username, fieldFailedAttempts, err)
	}
	acct.FailedAttemptCount = int(failed)

	if raw, ok := vals[fieldLastLoginAt]; ok && raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return authcore.UserAccount{}, corrupt(username, fieldLastLoginAt, err)
		}
		acct.LastLoginAt = &t
	}
	if tok, ok := vals[fieldCurrentToken]; ok {
		acct.CurrentToken = &tok
	}
	return acct, nil
}

func intField(vals map[string]string, field string) (int64, error) {
	raw, ok := vals[field]
	if !ok || raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func corrupt(username, field string, err error) error {
	return oops.
		In("redisstore").
		Code("CORRUPT_RECORD").
		With("username", username).
		With("field", field).
		Wrap(fmt.Errorf("%w: %s: %w", ErrCorruptRecord, field, err))
}
