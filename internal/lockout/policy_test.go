package lockout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustPolicy(t *testing.T, threshold int) Policy {
	t.Helper()
	p, err := New(threshold)
	require.NoError(t, err)
	return p
}

func TestNewRejectsNonPositiveThreshold(t *testing.T) {
	_, err := New(0)
	require.ErrorIs(t, err, ErrInvalidThreshold)
	_, err = New(-3)
	require.ErrorIs(t, err, ErrInvalidThreshold)
}

func TestZeroPolicyFallsBackToDefaultThreshold(t *testing.T) {
	var p Policy
	assert.Equal(t, DefaultThreshold, p.Threshold())
}

func TestEvaluate(t *testing.T) {
	p := mustPolicy(t, 5)

	tests := []struct {
		name   string
		snap   Snapshot
		want   Decision
		status State
	}{
		{"fresh active account", Snapshot{FailedAttempts: 0, Active: true}, Admit, Unlocked},
		{"below threshold", Snapshot{FailedAttempts: 4, Active: true}, Admit, Unlocked},
		{"at threshold", Snapshot{FailedAttempts: 5, Active: true}, Deny, Locked},
		{"above threshold", Snapshot{FailedAttempts: 9, Active: true}, Deny, Locked},
		{"inactive with zero attempts", Snapshot{FailedAttempts: 0, Active: false}, Deny, Locked},
		{"inactive below threshold", Snapshot{FailedAttempts: 2, Active: false}, Deny, Locked},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Evaluate(tt.snap))
			assert.Equal(t, tt.status, p.StateOf(tt.snap))
		})
	}
}

func TestOnFailureTransitions(t *testing.T) {
	p := mustPolicy(t, 3)

	tr := p.OnFailure(Snapshot{FailedAttempts: 0, Active: true})
	assert.Equal(t, Snapshot{FailedAttempts: 1, Active: true}, tr.To)
	assert.Equal(t, Unlocked, tr.ToState)
	assert.False(t, tr.JustLocked())

	tr = p.OnFailure(Snapshot{FailedAttempts: 2, Active: true})
	assert.Equal(t, Snapshot{FailedAttempts: 3, Active: false}, tr.To)
	assert.Equal(t, Locked, tr.ToState)
	assert.True(t, tr.JustLocked())

	tr = p.OnFailure(tr.To)
	assert.Equal(t, Locked, tr.FromState)
	assert.Equal(t, Locked, tr.ToState)
	assert.False(t, tr.JustLocked(), "locked to locked is not a new lockout")
	assert.False(t, tr.To.Active)
}

func TestOnFailureOnDeactivatedAccountStaysLocked(t *testing.T) {
	p := mustPolicy(t, 5)

	tr := p.OnFailure(Snapshot{FailedAttempts: 0, Active: false})
	assert.Equal(t, Locked, tr.FromState)
	assert.Equal(t, Locked, tr.ToState)
	assert.Equal(t, 1, tr.To.FailedAttempts)
}

// Lockout has no time component: once locked, only Reset unlocks.
func TestLockoutIsPermanentUntilReset(t *testing.T) {
	p := mustPolicy(t, 2)

	snap := Snapshot{Active: true}
	for i := 0; i < 2; i++ {
		snap = p.OnFailure(snap).To
	}
	require.Equal(t, Deny, p.Evaluate(snap))

	success := p.OnSuccess(snap)
	assert.Equal(t, 0, success.FailedAttempts)
	assert.Equal(t, Deny, p.Evaluate(success), "success must not re-activate a locked account")

	assert.Equal(t, Admit, p.Evaluate(p.Reset()))
}

func TestDecisionAndStateStrings(t *testing.T) {
	assert.Equal(t, "admit", Admit.String())
	assert.Equal(t, "deny", Deny.String())
	assert.Equal(t, "unlocked", Unlocked.String())
	assert.Equal(t, "locked", Locked.String())
}
