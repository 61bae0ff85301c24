// internal/browser/context_utils.go
package browser

import (
	"context"
	"time"
)

// CombineContext creates a new context derived from ctx1 that is canceled
// when either ctx1 or ctx2 is canceled. It inherits values from ctx1 only.
// chromedp needs this: ctx1 carries the tab's CDP target, ctx2 carries the
// caller's deadline.
func CombineContext(ctx1, ctx2 context.Context) (context.Context, context.CancelFunc) {
	combinedCtx, cancel := context.WithCancel(ctx1)

	go func() {
		select {
		case <-ctx2.Done():
			cancel()
		case <-combinedCtx.Done():
		}
	}()

	return combinedCtx, cancel
}

// valueOnlyContext keeps the parent's values but drops its deadline and cancellation.
type valueOnlyContext struct {
	context.Context
}

func (valueOnlyContext) Deadline() (deadline time.Time, ok bool) { return }
func (valueOnlyContext) Done() <-chan struct{}                       { return nil }
func (valueOnlyContext) Err() error                                  { return nil }

// Detach returns a context that inherits values from ctx but is not canceled when ctx is.
// Used for tab cleanup that must run after the request context has ended.
func Detach(ctx context.Context) context.Context {
	return valueOnlyContext{ctx}
}
