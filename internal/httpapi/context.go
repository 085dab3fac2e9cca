package httpapi

import (
	"context"
)

// serverBaseCtx is canceled when the daemon shuts down, so handlers stop even
// when the client keeps its request open.
var serverBaseCtx = context.Background()

// SetBaseContext installs the daemon lifetime context handlers derive from.
// A nil ctx resets to Background.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	serverBaseCtx = ctx
}

// joinContexts derives a context canceled as soon as either parent is done.
// Callers must invoke the returned cancel once the handler finishes.
func joinContexts(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(a)
	stop := context.AfterFunc(b, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
