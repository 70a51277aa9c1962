// Package tcontext provides context utilities for shutdown paths.
package tcontext

import (
	"context"

	"time"
)

// Reopen returns a context carrying all the values of the parent but not tied
// to the parent's lifespan: it has no deadline and is never closed.
//
// Reopen works even on an already closed context, hence the name. It is meant
// for cleanup work that must proceed after the main context is canceled, such
// as flushing buffered data on shutdown.
func Reopen(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

// Graceful reopens a closed context and bounds the result with the given
// timeout. Cleanup work running under the returned context gets a fresh
// budget of the given duration regardless of why the parent was closed.
func Graceful(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(Reopen(ctx), timeout)
}
