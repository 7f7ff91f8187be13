// Package lockout holds the account lockout state machine. It is pure: callers
// feed it the persisted attempt count and active flag and persist what it returns.
package lockout

import "errors"

// DefaultThreshold is the failed-attempt count at which an account locks.
const DefaultThreshold = 5

// ErrInvalidThreshold is returned by [New] for thresholds below one.
var ErrInvalidThreshold = errors.New("lockout threshold must be >= 1")

// Decision is the admit/deny outcome of evaluating a login state.
type Decision uint8

const (
	Admit Decision = iota
	Deny
)

func (d Decision) String() string {
	if d == Deny {
		return "deny"
	}
	return "admit"
}

// State is the per-user lock state.
type State uint8

const (
	Unlocked State = iota
	Locked
)

func (s State) String() string {
	if s == Locked {
		return "locked"
	}
	return "unlocked"
}

// Snapshot is the subset of persisted login state the policy reads and writes.
type Snapshot struct {
	FailedAttempts int
	Active         bool
}

// Transition describes the effect of one failed attempt.
type Transition struct {
	From Snapshot
	To   Snapshot

	FromState State
	ToState   State
}

// JustLocked reports whether this transition moved the account from Unlocked to Locked.
func (t Transition) JustLocked() bool {
	return t.FromState == Unlocked && t.ToState == Locked
}

// Policy evaluates lockout against a fixed threshold. There is no time decay:
// a locked account stays locked until an administrative reset.
type Policy struct {
	threshold int
}

// New returns a policy with the given threshold.
func New(threshold int) (Policy, error) {
	if threshold < 1 {
		return Policy{}, ErrInvalidThreshold
	}
	return Policy{threshold: threshold}, nil
}

// Threshold returns the configured lockout threshold.
func (p Policy) Threshold() int {
	if p.threshold < 1 {
		return DefaultThreshold
	}
	return p.threshold
}

// StateOf classifies a snapshot. Inactive accounts are always Locked.
func (p Policy) StateOf(s Snapshot) State {
	if !s.Active || s.FailedAttempts >= p.Threshold() {
		return Locked
	}
	return Unlocked
}

// Evaluate decides whether a login for s may proceed.
func (p Policy) Evaluate(s Snapshot) Decision {
	if p.StateOf(s) == Locked {
		return Deny
	}
	return Admit
}

// OnFailure records one failed attempt. Reaching the threshold deactivates the
// account; an already locked account stays locked.
func (p Policy) OnFailure(s Snapshot) Transition {
	next := Snapshot{
		FailedAttempts: s.FailedAttempts + 1,
		Active:         s.Active,
	}
	if next.FailedAttempts < 0 {
		next.FailedAttempts = s.FailedAttempts
	}
	if next.FailedAttempts >= p.Threshold() {
		next.Active = false
	}

	return Transition{
		From:      s,
		To:        next,
		FromState: p.StateOf(s),
		ToState:   p.StateOf(next),
	}
}

// OnSuccess returns the snapshot to persist after a successful authentication.
// The active flag is left as-is; success never re-activates an account.
func (p Policy) OnSuccess(s Snapshot) Snapshot {
	return Snapshot{FailedAttempts: 0, Active: s.Active}
}

// Reset returns the snapshot written by an administrative unlock.
func (p Policy) Reset() Snapshot {
	return Snapshot{FailedAttempts: 0, Active: true}
}
