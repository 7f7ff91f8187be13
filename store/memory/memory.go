// Package memory is an in-process CredentialStore for tests, the CLI's
// default backend and single-instance deployments.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/MrEthical07/authcore"
)

type entry struct {
	mu      sync.Mutex
	account authcore.UserAccount
}

// Store keeps accounts in a map. Updates to one username are serialized by a
// per-entry mutex; the map lock is only held for lookup and insert.
type Store struct {
	mu    sync.RWMutex
	users map[string]*entry
}

// New returns an empty Store. Seed it with Put.
func New() *Store {
	return &Store{users: make(map[string]*entry)}
}

// Put inserts or replaces the account keyed by acct.Username.
func (s *Store) Put(acct authcore.UserAccount) {
	acct = acct.Clone()

	s.mu.Lock()
	e, ok := s.users[acct.Username]
	if !ok {
		s.users[acct.Username] = &entry{account: acct}
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	e.mu.Lock()
	e.account = acct
	e.mu.Unlock()
}

// Get returns a copy of the stored account.
func (s *Store) Get(username string) (authcore.UserAccount, bool) {
	e := s.lookup(username)
	if e == nil {
		return authcore.UserAccount{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.account.Clone(), true
}

func (s *Store) lookup(username string) *entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.users[username]
}

// FindByUsername returns a copy of the account, or authcore.ErrUserNotFound.
// A cancelled ctx yields authcore.ErrStoreUnavailable.
func (s *Store) FindByUsername(ctx context.Context, username string) (authcore.UserAccount, error) {
	if err := ctx.Err(); err != nil {
		return authcore.UserAccount{}, fmt.Errorf("%w: %v", authcore.ErrStoreUnavailable, err)
	}
	acct, ok := s.Get(username)
	if !ok {
		return authcore.UserAccount{}, authcore.ErrUserNotFound
	}
	return acct, nil
}

// AtomicUpdateLoginState applies fn to a copy of the login state while
// holding the account's lock and stores the result only when fn succeeds.
func (s *Store) AtomicUpdateLoginState(ctx context.Context, username string, fn authcore.LoginStateMutation) (authcore.LoginState, error) {
	if err := ctx.Err(); err != nil {
		return authcore.LoginState{}, fmt.Errorf("%w: %v", authcore.ErrStoreUnavailable, err)
	}
	e := s.lookup(username)
	if e == nil {
		return authcore.LoginState{}, authcore.ErrUserNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.account.LoginState.Clone()
	if err := fn(&next); err != nil {
		return authcore.LoginState{}, err
	}
	e.account.LoginState = next
	return next.Clone(), nil
}
