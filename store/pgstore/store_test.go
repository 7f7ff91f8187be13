package pgstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/authcore"
)

var accountColumns = []string{
	"identity_number", "email", "password_hash", "authority_level", "user_type_name",
	"is_active", "failed_attempt_count", "last_login_at", "remember_me", "current_token",
}

var stateColumns = []string{"is_active", "failed_attempt_count", "last_login_at", "current_token"}

func strPtr(s string) *string { return &s }

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	t.Cleanup(mock.Close)
	return mock
}

func TestFindByUsername(t *testing.T) {
	lastLogin := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name      string
		username  string
		setupMock func(mock pgxmock.PgxPoolIface)
		check     func(t *testing.T, acct authcore.UserAccount)
		wantErr   error
	}{
		{
			name:     "found",
			username: "oyku",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows(accountColumns).AddRow(
					int64(12345678900), strPtr("oyku@example.com"), "$argon2id$stub", 4, strPtr("Admin"),
					true, 1, &lastLogin, true, strPtr("cached"),
				)
				mock.ExpectQuery(`(?s)SELECT identity_number, .* FROM app_users\s+WHERE username = \$1`).
					WithArgs("oyku").
					WillReturnRows(rows)
			},
			check: func(t *testing.T, acct authcore.UserAccount) {
				assert.Equal(t, "oyku", acct.Username)
				assert.Equal(t, int64(12345678900), acct.IdentityNumber)
				assert.Equal(t, "oyku@example.com", acct.Email)
				assert.Equal(t, 4, acct.AuthorityLevel)
				assert.Equal(t, "Admin", acct.UserTypeName)
				assert.True(t, acct.IsActive)
				assert.True(t, acct.RememberMe)
				assert.Equal(t, 1, acct.FailedAttemptCount)
				require.NotNil(t, acct.LastLoginAt)
				assert.True(t, acct.LastLoginAt.Equal(lastLogin))
				require.NotNil(t, acct.CurrentToken)
				assert.Equal(t, "cached", *acct.CurrentToken)
			},
		},
		{
			name:     "nullable columns",
			username: "testuser",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows(accountColumns).AddRow(
					int64(1), nil, "$argon2id$stub", 0, nil,
					false, 0, nil, false, nil,
				)
				mock.ExpectQuery(`FROM app_users`).WithArgs("testuser").WillReturnRows(rows)
			},
			check: func(t *testing.T, acct authcore.UserAccount) {
				assert.Empty(t, acct.Email)
				assert.Nil(t, acct.LastLoginAt)
				assert.Nil(t, acct.CurrentToken)
				assert.False(t, acct.IsActive)
			},
		},
		{
			name:     "no rows",
			username: "nonexistent",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`FROM app_users`).WithArgs("nonexistent").WillReturnError(pgx.ErrNoRows)
			},
			wantErr: authcore.ErrUserNotFound,
		},
		{
			name:     "connection refused",
			username: "oyku",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`FROM app_users`).WithArgs("oyku").WillReturnError(errors.New("connection refused"))
			},
			wantErr: authcore.ErrStoreUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock(t)
			tt.setupMock(mock)

			acct, err := New(mock).FindByUsername(context.Background(), tt.username)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				tt.check(t, acct)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAtomicUpdateLoginStateCommits(t *testing.T) {
	mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)SELECT is_active, failed_attempt_count, last_login_at, current_token .* FOR UPDATE`).
		WithArgs("oyku").
		WillReturnRows(pgxmock.NewRows(stateColumns).AddRow(true, 4, nil, nil))
	mock.ExpectExec(`UPDATE app_users`).
		WithArgs("oyku", false, 5, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	state, err := New(mock).AtomicUpdateLoginState(context.Background(), "oyku", func(s *authcore.LoginState) error {
		s.FailedAttemptCount++
		s.IsActive = false
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 5, state.FailedAttemptCount)
	assert.False(t, state.IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAtomicUpdateLoginStateMutationErrorRollsBack(t *testing.T) {
	mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs("oyku").
		WillReturnRows(pgxmock.NewRows(stateColumns).AddRow(false, 5, nil, nil))
	mock.ExpectRollback()

	_, err := New(mock).AtomicUpdateLoginState(context.Background(), "oyku", func(*authcore.LoginState) error {
		return authcore.ErrAccountLocked
	})
	require.ErrorIs(t, err, authcore.ErrAccountLocked)
	assert.NotErrorIs(t, err, authcore.ErrStoreUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAtomicUpdateLoginStateUnknownUser(t *testing.T) {
	mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WithArgs("ghost").WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := New(mock).AtomicUpdateLoginState(context.Background(), "ghost", func(*authcore.LoginState) error { return nil })
	require.ErrorIs(t, err, authcore.ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMissingSchemaIsConfigurationError(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`FROM app_users`).
		WithArgs("oyku").
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UndefinedTable, Message: `relation "app_users" does not exist`})

	_, err := New(mock).FindByUsername(context.Background(), "oyku")
	require.ErrorIs(t, err, authcore.ErrConfiguration)
	assert.NotErrorIs(t, err, authcore.ErrStoreUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAtomicUpdateLoginStateBeginFails(t *testing.T) {
	mock := newMock(t)
	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

	_, err := New(mock).AtomicUpdateLoginState(context.Background(), "oyku", func(*authcore.LoginState) error { return nil })
	require.ErrorIs(t, err, authcore.ErrStoreUnavailable)
	assert.Contains(t, err.Error(), "too many connections")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAtomicUpdateLoginStateUpdateFails(t *testing.T) {
	mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs("oyku").
		WillReturnRows(pgxmock.NewRows(stateColumns).AddRow(true, 0, nil, nil))
	mock.ExpectExec(`UPDATE app_users`).
		WithArgs("oyku", true, 0, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	_, err := New(mock).AtomicUpdateLoginState(context.Background(), "oyku", func(*authcore.LoginState) error { return nil })
	require.ErrorIs(t, err, authcore.ErrStoreUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPut(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec(`(?s)INSERT INTO app_users .* ON CONFLICT \(username\) DO UPDATE`).
		WithArgs("oyku", int64(12345678900), "oyku@example.com", "$hash", 4, "Admin",
			true, 0, pgxmock.AnyArg(), false, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := New(mock).Put(context.Background(), authcore.UserAccount{
		Username:       "oyku",
		IdentityNumber: 12345678900,
		Email:          "oyku@example.com",
		PasswordHash:   "$hash",
		AuthorityLevel: 4,
		UserTypeName:   "Admin",
		LoginState:     authcore.LoginState{IsActive: true},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConnectRejectsInvalidDSN(t *testing.T) {
	_, err := Connect(context.Background(), "postgres://%zz")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid DSN")
}
