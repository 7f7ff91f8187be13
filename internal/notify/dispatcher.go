package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	BufferSize int
	DropIfFull bool
	// DeliveryTimeout bounds the context handed to each Target call. Zero
	// means no deadline.
	DeliveryTimeout time.Duration
}

// Dispatcher asynchronously forwards events to a Target on a single worker.
type Dispatcher struct {
	cfg       Config
	target    Target
	log       *zap.Logger
	ch        chan Event
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	delivered atomic.Uint64
	panics    atomic.Uint64
	closeOnce sync.Once

	// stopping releases senders blocked on a full buffer. done tells the
	// worker to drain; it is closed only once no sender holds mu.
	stopping chan struct{}
	done     chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts the worker goroutine. A nil target yields a nil
// dispatcher, on which every method is a no-op.
func NewDispatcher(cfg Config, target Target, log *zap.Logger) *Dispatcher {
	if target == nil {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if log == nil {
		log = zap.NewNop()
	}

	d := &Dispatcher{
		cfg:      cfg,
		target:   target,
		log:      log,
		ch:       make(chan Event, cfg.BufferSize),
		stopping: make(chan struct{}),
		done:     make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case ev := <-d.ch:
			d.deliver(ev)
		case <-d.done:
			for {
				select {
				case ev := <-d.ch:
					d.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			d.panics.Add(1)
			d.log.Error("notification target panicked",
				zap.String("kind", ev.Kind.String()),
				zap.String("username", ev.Username),
				zap.Any("panic", r),
			)
		}
	}()

	ctx := context.Background()
	if d.cfg.DeliveryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.DeliveryTimeout)
		defer cancel()
	}

	deliver(ctx, d.target, ev)
	d.delivered.Add(1)
}

// Enqueue queues ev for delivery. With DropIfFull the call never blocks and
// a full buffer drops the event; otherwise it waits for space until ctx ends
// or Close starts.
// It reports whether the event was queued. A queued event is always
// delivered, even when Close runs concurrently.
func (d *Dispatcher) Enqueue(ctx context.Context, ev Event) bool {
	if d == nil {
		return false
	}
	if d.cfg.DropIfFull {
		return d.TryEnqueue(ev)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}
	ev = stamp(ev)

	select {
	case d.ch <- ev:
		return true
	case <-ctx.Done():
		d.dropped.Add(1)
		return false
	case <-d.stopping:
		return false
	}
}

// TryEnqueue queues ev without ever blocking, whatever DropIfFull says. A
// full buffer drops the event.
func (d *Dispatcher) TryEnqueue(ev Event) bool {
	if d == nil {
		return false
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}
	ev = stamp(ev)

	select {
	case d.ch <- ev:
		return true
	default:
		d.dropped.Add(1)
		return false
	}
}

func stamp(ev Event) Event {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	return ev
}

// Close stops accepting events, drains the buffer and waits for the worker.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		close(d.stopping)

		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()

		close(d.done)
		d.wg.Wait()
	})
}

// Dropped returns the number of events discarded because the buffer was full.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Delivered returns the number of events handed to the target without panicking.
func (d *Dispatcher) Delivered() uint64 {
	if d == nil {
		return 0
	}
	return d.delivered.Load()
}

// Panics returns the number of target calls that panicked.
func (d *Dispatcher) Panics() uint64 {
	if d == nil {
		return 0
	}
	return d.panics.Load()
}
