package notify

import (
	"context"
	"time"
)

// Kind identifies the notification being delivered.
type Kind uint8

const (
	FailedAttempt Kind = iota + 1
	Lockout
)

func (k Kind) String() string {
	switch k {
	case FailedAttempt:
		return "failed_attempt"
	case Lockout:
		return "lockout"
	default:
		return "unknown"
	}
}

// Event is one queued notification.
type Event struct {
	Kind     Kind
	Username string
	Attempts int
	At       time.Time
}

// Target receives delivered notifications. It has the same method set as
// authcore.Notifier so any Notifier can be passed directly.
type Target interface {
	NotifyFailedAttempt(ctx context.Context, username string, attempts int)
	NotifyLockout(ctx context.Context, username string)
}

func deliver(ctx context.Context, t Target, ev Event) {
	switch ev.Kind {
	case FailedAttempt:
		t.NotifyFailedAttempt(ctx, ev.Username, ev.Attempts)
	case Lockout:
		t.NotifyLockout(ctx, ev.Username)
	}
}
