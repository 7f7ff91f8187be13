// Package notify relays failed-attempt and lockout events to a notification
// target without blocking the caller.
//
// # Components
//
//   - [Target]: the receiving side (email, SMS, webhook; supplied by the caller).
//   - [Dispatcher]: buffered async relay with drop-if-full / block-if-full semantics.
//   - [Event]: one notification: kind, username, attempt count, timestamp.
//
// # Architecture boundaries
//
// This package owns buffering and delivery. It does NOT decide when to notify;
// that belongs to the Engine. A Target that panics or stalls only affects the
// worker goroutine, never the authentication decision.
package notify
