package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"github.com/tonimelisma/storj-go/internal/transfer"
)

// incarnation is one ACTIVE period of a Session: a bridge bound to the keys
// in use, the dispatch loop delivering its callbacks, and the transfer
// handles it issued. Tearing the session down stops the incarnation as a
// whole, so nothing from it can leak into the next one.
type incarnation struct {
	gen         uint64
	bridge      Bridge
	transfers   *transfer.Manager
	loop        *loop
	parallelism int
	observer    TransferObserver
	logger      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	handles map[Handle]*handleState
}

func newIncarnation(s *Session, gen uint64, b Bridge) *incarnation {
	ctx, cancel := context.WithCancel(context.Background())
	logger := s.logger.With(slog.Uint64("generation", gen))

	inc := &incarnation{
		gen:         gen,
		bridge:      b,
		transfers:   transfer.NewManager(b, b, s.limiter, logger),
		loop:        newLoop(s.interval, logger),
		parallelism: s.parallelism,
		observer:    s.observer,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
		handles:     make(map[Handle]*handleState),
	}

	inc.loop.start()

	return inc
}

// stop cancels in-flight requests, stops the loop and forgets all handles.
func (inc *incarnation) stop() {
	inc.cancel()
	inc.loop.stop()

	inc.mu.Lock()
	inc.handles = make(map[Handle]*handleState)
	inc.mu.Unlock()
}

// bind derives a request context canceled by either the caller's ctx or the
// end of this incarnation. The returned release must be called when the
// request is finished.
func (inc *incarnation) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(inc.ctx, cancel)

	return ctx, func() {
		stop()
		cancel()
	}
}

// post hands a completion to the dispatch loop.
func (inc *incarnation) post(fn func()) {
	if !inc.loop.post(fn) {
		inc.logger.Debug("dispatch loop stopped, dropping completion")
	}
}

// goAsync runs one request on its own goroutine.
func (inc *incarnation) goAsync(ctx context.Context, fn func(ctx context.Context)) {
	ctx, release := inc.bind(ctx)

	go func() {
		defer release()
		fn(ctx)
	}()
}

// fanOut runs fn once per id with at most inc.parallelism running at a time.
// Each invocation reports its own outcome; one failing does not affect the
// others.
func (inc *incarnation) fanOut(ctx context.Context, ids []string, fn func(ctx context.Context, id string)) {
	ctx, release := inc.bind(ctx)

	go func() {
		defer release()

		p := pool.New().WithMaxGoroutines(inc.parallelism)
		for _, id := range ids {
			p.Go(func() { fn(ctx, id) })
		}

		p.Wait()
	}()
}
