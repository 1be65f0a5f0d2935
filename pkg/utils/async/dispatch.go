package async

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/shikigami/pkg/utils/errors"
)

var inflight sync.WaitGroup

type syncModeKey struct{}

// WithSyncMode makes Dispatch run handlers inline on ctx. Tests use it to
// observe side effects without waiting.
func WithSyncMode(ctx context.Context) context.Context {
	return context.WithValue(ctx, syncModeKey{}, true)
}

func isSyncMode(ctx context.Context) bool {
	on, _ := ctx.Value(syncModeKey{}).(bool)
	return on
}

// Dispatch runs handler in a detached goroutine. The handler gets a fresh
// background context carrying only the logger of ctx, so cancellation of the
// caller's request never aborts a side effect. Errors and panics are logged
// and never propagated. If sync mode is enabled in ctx, the handler runs inline.
func Dispatch(ctx context.Context, handler func(ctx context.Context) error) {
	if isSyncMode(ctx) {
		run(ctx, handler)
		return
	}

	detached := ctxlog.With(context.Background(), ctxlog.From(ctx))

	inflight.Add(1)
	go func() {
		defer inflight.Done()
		run(detached, handler)
	}()
}

func run(ctx context.Context, handler func(ctx context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			err := goerr.New("panic in async handler",
				goerr.V("recover", r),
				goerr.V("stack", string(stack)),
			)
			errors.Handle(ctx, err)
		}
	}()

	if err := handler(ctx); err != nil {
		errors.Handle(ctx, err)
	}
}

// Wait blocks until all dispatched handlers finish or timeout elapses. It
// returns false on timeout. CLI commands call it before exiting so that
// execution logs are flushed.
func Wait(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
