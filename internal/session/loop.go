package session

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultPollInterval bounds how long a completed operation waits before the
// dispatch loop delivers its callback.
const DefaultPollInterval = 10 * time.Millisecond

// loop is the single dispatcher of one session incarnation. Worker goroutines
// post completions; the loop goroutine drains them in FIFO order and invokes
// the callbacks serially. Once stopped, queued and future posts are dropped.
type loop struct {
	interval time.Duration
	logger   *slog.Logger

	mu    sync.Mutex
	queue []func()

	wake     chan struct{}
	done     chan struct{}
	started  atomic.Bool
	stopOnce sync.Once
}

func newLoop(interval time.Duration, logger *slog.Logger) *loop {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	return &loop{
		interval: interval,
		logger:   logger,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// start launches the loop goroutine. Starting twice is a no-op.
func (l *loop) start() {
	if !l.started.CompareAndSwap(false, true) {
		return
	}

	go l.run()
}

// stop ends the loop. Safe to call repeatedly, including from a callback
// running on the loop itself.
func (l *loop) stop() {
	l.stopOnce.Do(func() { close(l.done) })
}

func (l *loop) stopped() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

// post queues fn for delivery. Reports false if the loop has stopped.
func (l *loop) post(fn func()) bool {
	if l.stopped() {
		return false
	}

	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}

	return true
}

func (l *loop) run() {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			l.discard()
			return
		case <-ticker.C:
		case <-l.wake:
		}

		l.drain()
	}
}

// drain delivers everything queued so far, stopping early if a callback
// stopped the loop.
func (l *loop) drain() {
	l.mu.Lock()
	batch := l.queue
	l.queue = nil
	l.mu.Unlock()

	for i, fn := range batch {
		if l.stopped() {
			l.logger.Debug("dispatch loop stopped, discarding callbacks",
				slog.Int("discarded", len(batch)-i),
			)

			return
		}

		l.invoke(fn)
	}
}

func (l *loop) discard() {
	l.mu.Lock()
	n := len(l.queue)
	l.queue = nil
	l.mu.Unlock()

	if n > 0 {
		l.logger.Debug("dispatch loop stopped, discarding callbacks", slog.Int("discarded", n))
	}
}

// invoke runs one callback. A panicking callback is logged and does not take
// the loop down with it.
func (l *loop) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("callback panicked", slog.String("panic", fmt.Sprint(r)))
		}
	}()

	fn()
}
