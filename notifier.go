package authcore

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Notification kinds carried by Notification.Kind.
const (
	NotificationFailedAttempt = "failed_attempt"
	NotificationLockout       = "lockout"
)

// Notification is the record produced by the bundled Notifier implementations.
type Notification struct {
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"kind"`
	Username  string    `json:"username"`
	Attempts  int       `json:"attempts,omitempty"`
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

func (NopNotifier) NotifyFailedAttempt(context.Context, string, int) {}

func (NopNotifier) NotifyLockout(context.Context, string) {}

// ChannelNotifier writes notifications into a buffered channel. Useful for
// tests and for bridging into an application's own delivery loop.
type ChannelNotifier struct {
	events chan Notification
}

// NewChannelNotifier returns a notifier whose channel holds buffer events.
// A non-positive buffer is raised to 1. When the channel is full, sends wait
// until the delivery context ends.
func NewChannelNotifier(buffer int) *ChannelNotifier {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelNotifier{events: make(chan Notification, buffer)}
}

func (n *ChannelNotifier) NotifyFailedAttempt(ctx context.Context, username string, attempts int) {
	n.emit(ctx, Notification{Kind: NotificationFailedAttempt, Username: username, Attempts: attempts})
}

func (n *ChannelNotifier) NotifyLockout(ctx context.Context, username string) {
	n.emit(ctx, Notification{Kind: NotificationLockout, Username: username})
}

func (n *ChannelNotifier) emit(ctx context.Context, ev Notification) {
	ev.Timestamp = time.Now().UTC()
	select {
	case n.events <- ev:
	case <-ctx.Done():
	}
}

// Events returns the channel notifications are written to.
func (n *ChannelNotifier) Events() <-chan Notification {
	return n.events
}

// JSONWriterNotifier writes one JSON object per line.
type JSONWriterNotifier struct {
	writer io.Writer
	mu     sync.Mutex
}

// NewJSONWriterNotifier returns a notifier writing to w. Writes are
// serialized, so w need not be safe for concurrent use.
func NewJSONWriterNotifier(w io.Writer) *JSONWriterNotifier {
	return &JSONWriterNotifier{writer: w}
}

func (n *JSONWriterNotifier) NotifyFailedAttempt(_ context.Context, username string, attempts int) {
	n.write(Notification{Kind: NotificationFailedAttempt, Username: username, Attempts: attempts})
}

func (n *JSONWriterNotifier) NotifyLockout(_ context.Context, username string) {
	n.write(Notification{Kind: NotificationLockout, Username: username})
}

func (n *JSONWriterNotifier) write(ev Notification) {
	if n == nil || n.writer == nil {
		return
	}
	ev.Timestamp = time.Now().UTC()
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	_, _ = n.writer.Write(append(data, '\n'))
}

// LogNotifier records notifications as structured log entries. It is the
// default target for the CLI when no delivery channel is configured.
type LogNotifier struct {
	Log *zap.Logger
}

func (n LogNotifier) NotifyFailedAttempt(_ context.Context, username string, attempts int) {
	n.Log.Info("failed login attempt", zap.String("username", username), zap.Int("attempts", attempts))
}

func (n LogNotifier) NotifyLockout(_ context.Context, username string) {
	n.Log.Warn("account locked", zap.String("username", username))
}
