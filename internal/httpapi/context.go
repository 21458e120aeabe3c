package httpapi

import "context"

// serverBaseCtx parents every handler's work so daemon shutdown cancels
// in-flight resolutions and pulls. Background until the daemon installs its
// own cancelable context at startup.
var serverBaseCtx = context.Background()

// SetBaseContext installs the shutdown-aware base context. Passing nil
// resets to Background.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	serverBaseCtx = ctx
}

// joinContexts derives a context that is canceled as soon as either input is
// done, tying a request's lifetime to both the client connection and the
// server base context. The cancel func must be called when the handler
// returns so the watcher goroutine exits.
func joinContexts(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		defer cancel()
		select {
		case <-a.Done():
		case <-b.Done():
		}
	}()
	return ctx, cancel
}
