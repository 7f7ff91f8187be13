package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingTarget struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingTarget) NotifyFailedAttempt(_ context.Context, username string, attempts int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Kind: FailedAttempt, Username: username, Attempts: attempts})
}

func (r *recordingTarget) NotifyLockout(_ context.Context, username string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Kind: Lockout, Username: username})
}

func (r *recordingTarget) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

type gateTarget struct {
	entered chan struct{}
	gate    chan struct{}
}

func newGateTarget() *gateTarget {
	return &gateTarget{entered: make(chan struct{}, 16), gate: make(chan struct{})}
}

func (g *gateTarget) NotifyFailedAttempt(context.Context, string, int) {
	g.entered <- struct{}{}
	<-g.gate
}

func (g *gateTarget) NotifyLockout(context.Context, string) {
	g.entered <- struct{}{}
	<-g.gate
}

type panickingTarget struct {
	recordingTarget
}

func (p *panickingTarget) NotifyLockout(context.Context, string) {
	panic("smtp exploded")
}

func TestNilTargetYieldsNoOpDispatcher(t *testing.T) {
	d := NewDispatcher(Config{}, nil, nil)
	assert.Nil(t, d)
	assert.False(t, d.Enqueue(context.Background(), Event{Kind: Lockout}))
	assert.Zero(t, d.Dropped())
	d.Close()
}

func TestDispatcherDeliversInOrderAndDrainsOnClose(t *testing.T) {
	target := &recordingTarget{}
	d := NewDispatcher(Config{BufferSize: 8}, target, nil)

	require.True(t, d.Enqueue(context.Background(), Event{Kind: FailedAttempt, Username: "oyku", Attempts: 1}))
	require.True(t, d.Enqueue(context.Background(), Event{Kind: FailedAttempt, Username: "oyku", Attempts: 2}))
	require.True(t, d.Enqueue(context.Background(), Event{Kind: Lockout, Username: "oyku"}))
	d.Close()

	got := target.snapshot()
	require.Len(t, got, 3)
	assert.Equal(t, FailedAttempt, got[0].Kind)
	assert.Equal(t, 1, got[0].Attempts)
	assert.Equal(t, 2, got[1].Attempts)
	assert.Equal(t, Lockout, got[2].Kind)
	assert.Equal(t, uint64(3), d.Delivered())
}

func TestDispatcherDropIfFullNeverBlocks(t *testing.T) {
	target := newGateTarget()
	d := NewDispatcher(Config{BufferSize: 1, DropIfFull: true}, target, nil)
	defer d.Close()
	defer close(target.gate)

	require.True(t, d.Enqueue(context.Background(), Event{Kind: Lockout, Username: "a"}))
	<-target.entered

	require.True(t, d.Enqueue(context.Background(), Event{Kind: Lockout, Username: "b"}))

	start := time.Now()
	assert.False(t, d.Enqueue(context.Background(), Event{Kind: Lockout, Username: "c"}))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, uint64(1), d.Dropped())
}

func TestDispatcherBlockingModeHonoursContext(t *testing.T) {
	target := newGateTarget()
	d := NewDispatcher(Config{BufferSize: 1}, target, nil)
	defer d.Close()
	defer close(target.gate)

	require.True(t, d.Enqueue(context.Background(), Event{Kind: Lockout, Username: "a"}))
	<-target.entered
	require.True(t, d.Enqueue(context.Background(), Event{Kind: Lockout, Username: "b"}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.False(t, d.Enqueue(ctx, Event{Kind: Lockout, Username: "c"}))
	assert.Equal(t, uint64(1), d.Dropped())
}

func TestTryEnqueueIgnoresBlockingMode(t *testing.T) {
	target := newGateTarget()
	d := NewDispatcher(Config{BufferSize: 1}, target, nil)
	defer d.Close()
	defer close(target.gate)

	require.True(t, d.TryEnqueue(Event{Kind: Lockout, Username: "a"}))
	<-target.entered
	require.True(t, d.TryEnqueue(Event{Kind: Lockout, Username: "b"}))

	start := time.Now()
	assert.False(t, d.TryEnqueue(Event{Kind: Lockout, Username: "c"}))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, uint64(1), d.Dropped())
}

func TestCloseReleasesBlockedSender(t *testing.T) {
	target := newGateTarget()
	d := NewDispatcher(Config{BufferSize: 1}, target, nil)

	require.True(t, d.Enqueue(context.Background(), Event{Kind: Lockout, Username: "a"}))
	<-target.entered
	require.True(t, d.Enqueue(context.Background(), Event{Kind: Lockout, Username: "b"}))

	sent := make(chan bool, 1)
	go func() { sent <- d.Enqueue(context.Background(), Event{Kind: Lockout, Username: "c"}) }()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		d.Close()
	}()

	select {
	case ok := <-sent:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("sender still blocked after Close")
	}

	close(target.gate)
	<-closed
	assert.Equal(t, uint64(2), d.Delivered())
}

func TestEnqueueRacingCloseDeliversEveryAcceptedEvent(t *testing.T) {
	for round := 0; round < 50; round++ {
		target := &recordingTarget{}
		d := NewDispatcher(Config{BufferSize: 2}, target, nil)

		var accepted atomic.Int64
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if d.Enqueue(context.Background(), Event{Kind: FailedAttempt, Username: "oyku", Attempts: i}) {
					accepted.Add(1)
				}
			}()
		}
		d.Close()
		wg.Wait()

		assert.Equal(t, uint64(accepted.Load()), d.Delivered())
		assert.Len(t, target.snapshot(), int(accepted.Load()))
	}
}

func TestDispatcherSurvivesPanickingTarget(t *testing.T) {
	target := &panickingTarget{}
	d := NewDispatcher(Config{BufferSize: 4}, target, nil)

	d.Enqueue(context.Background(), Event{Kind: Lockout, Username: "oyku"})
	d.Enqueue(context.Background(), Event{Kind: FailedAttempt, Username: "oyku", Attempts: 5})
	d.Close()

	assert.Equal(t, uint64(1), d.Panics())
	got := target.snapshot()
	require.Len(t, got, 1)
	assert.Equal(t, FailedAttempt, got[0].Kind)
}

func TestEnqueueAfterCloseIsRejected(t *testing.T) {
	d := NewDispatcher(Config{}, &recordingTarget{}, nil)
	d.Close()
	d.Close()
	assert.False(t, d.Enqueue(context.Background(), Event{Kind: Lockout}))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "failed_attempt", FailedAttempt.String())
	assert.Equal(t, "lockout", Lockout.String())
	assert.Equal(t, "unknown", Kind(0).String())
}
