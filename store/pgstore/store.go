// Package pgstore is a CredentialStore backed by PostgreSQL.
//
// It expects an app_users table with the columns
//
//	username             text primary key
//	identity_number      bigint
//	email                text
//	password_hash        text
//	authority_level      integer
//	user_type_name       text
//	is_active            boolean
//	failed_attempt_count integer
//	last_login_at        timestamptz null
//	remember_me          boolean
//	current_token        text null
//
// Schema management is left to the deployment. A missing table, column or
// privilege surfaces as authcore.ErrConfiguration rather than
// authcore.ErrStoreUnavailable.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/MrEthical07/authcore"
)

// Pool is the subset of *pgxpool.Pool the store uses.
type Pool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store implements authcore.CredentialStore.
type Store struct {
	pool Pool
}

func New(pool Pool) *Store {
	return &Store{pool: pool}
}

const selectAccount = `
	SELECT identity_number, email, password_hash, authority_level, user_type_name,
	       is_active, failed_attempt_count, last_login_at, remember_me, current_token
	FROM app_users
	WHERE username = $1`

const selectLoginStateForUpdate = `
	SELECT is_active, failed_attempt_count, last_login_at, current_token
	FROM app_users
	WHERE username = $1
	FOR UPDATE`

const updateLoginState = `
	UPDATE app_users
	SET is_active = $2, failed_attempt_count = $3, last_login_at = $4, current_token = $5
	WHERE username = $1`

const upsertAccount = `
	INSERT INTO app_users (
		username, identity_number, email, password_hash, authority_level, user_type_name,
		is_active, failed_attempt_count, last_login_at, remember_me, current_token
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (username) DO UPDATE SET
		identity_number = EXCLUDED.identity_number,
		email = EXCLUDED.email,
		password_hash = EXCLUDED.password_hash,
		authority_level = EXCLUDED.authority_level,
		user_type_name = EXCLUDED.user_type_name,
		is_active = EXCLUDED.is_active,
		failed_attempt_count = EXCLUDED.failed_attempt_count,
		last_login_at = EXCLUDED.last_login_at,
		remember_me = EXCLUDED.remember_me,
		current_token = EXCLUDED.current_token`

// Put inserts acct or replaces the existing row for its username.
func (s *Store) Put(ctx context.Context, acct authcore.UserAccount) error {
	_, err := s.pool.Exec(ctx, upsertAccount,
		acct.Username,
		acct.IdentityNumber,
		acct.Email,
		acct.PasswordHash,
		acct.AuthorityLevel,
		acct.UserTypeName,
		acct.IsActive,
		acct.FailedAttemptCount,
		acct.LastLoginAt,
		acct.RememberMe,
		acct.CurrentToken,
	)
	if err != nil {
		return unavailable("put", acct.Username, err)
	}
	return nil
}

func (s *Store) FindByUsername(ctx context.Context, username string) (authcore.UserAccount, error) {
	acct := authcore.UserAccount{Username: username}
	var (
		email, userType *string
		lastLogin       *time.Time
		token           *string
	)
	err := s.pool.QueryRow(ctx, selectAccount, username).Scan(
		&acct.IdentityNumber,
		&email,
		&acct.PasswordHash,
		&acct.AuthorityLevel,
		&userType,
		&acct.IsActive,
		&acct.FailedAttemptCount,
		&lastLogin,
		&acct.RememberMe,
		&token,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return authcore.UserAccount{}, notFound(username)
	}
	if err != nil {
		return authcore.UserAccount{}, unavailable("find", username, err)
	}

	if email != nil {
		acct.Email = *email
	}
	if userType != nil {
		acct.UserTypeName = *userType
	}
	acct.LastLoginAt = lastLogin
	acct.CurrentToken = token
	return acct, nil
}

// AtomicUpdateLoginState locks the user's row for the duration of fn.
func (s *Store) AtomicUpdateLoginState(ctx context.Context, username string, fn authcore.LoginStateMutation) (authcore.LoginState, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return authcore.LoginState{}, unavailable("begin", username, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	var state authcore.LoginState
	err = tx.QueryRow(ctx, selectLoginStateForUpdate, username).Scan(
		&state.IsActive,
		&state.FailedAttemptCount,
		&state.LastLoginAt,
		&state.CurrentToken,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return authcore.LoginState{}, notFound(username)
	}
	if err != nil {
		return authcore.LoginState{}, unavailable("lock row", username, err)
	}

	if err := fn(&state); err != nil {
		return authcore.LoginState{}, err
	}

	if _, err := tx.Exec(ctx, updateLoginState,
		username,
		state.IsActive,
		state.FailedAttemptCount,
		state.LastLoginAt,
		state.CurrentToken,
	); err != nil {
		return authcore.LoginState{}, unavailable("update", username, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return authcore.LoginState{}, unavailable("commit", username, err)
	}
	committed = true
	return state, nil
}

func notFound(username string) error {
	return oops.
		In("pgstore").
		Code("USER_NOT_FOUND").
		With("username", username).
		Wrap(authcore.ErrUserNotFound)
}

func unavailable(op, username string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && schemaMismatch(pgErr.Code) {
		return oops.
			In("pgstore").
			Code("SCHEMA_MISMATCH").
			With("operation", op).
			With("username", username).
			With("sqlstate", pgErr.Code).
			Wrap(fmt.Errorf("%w: %w", authcore.ErrConfiguration, err))
	}
	return oops.
		In("pgstore").
		Code("STORE_UNAVAILABLE").
		With("operation", op).
		With("username", username).
		Wrap(fmt.Errorf("%w: %w", authcore.ErrStoreUnavailable, err))
}

func schemaMismatch(code string) bool {
	switch code {
	case pgerrcode.UndefinedTable, pgerrcode.UndefinedColumn, pgerrcode.InsufficientPrivilege:
		return true
	}
	return false
}
