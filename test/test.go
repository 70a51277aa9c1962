// Package test provides the context and group plumbing shared by unit tests.
package test

import (
	"context"
	"errors"
	"testing"

	"github.com/ridge/alluvium/tlog"
	"github.com/ridge/parallel"
	"github.com/stretchr/testify/require"
	"time"
)

// Context returns a context for a unit test, with a logger that reports
// through t.
//
// Code that expects the values injected by run.Tool or run.Server should be
// tested with a context from here so that it finds adequate replacements.
func Context(t *testing.T) context.Context {
	return tlog.WithLogger(context.Background(), tlog.NewForTesting(t))
}

// ContextWithTimeout is Context with a deadline. When the timeout expires the
// context closes with context.DeadlineExceeded.
func ContextWithTimeout(t *testing.T, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(Context(t), timeout)
	t.Cleanup(cancel)
	return ctx
}

// Group returns a parallel.Group on a testing context. The group is shut down
// at the end of the test, and the test fails if it finishes with an error
// other than context.Canceled.
func Group(t *testing.T) *parallel.Group {
	return newGroup(t, Context(t))
}

// GroupWithTimeout is Group with a deadline on the group context.
func GroupWithTimeout(t *testing.T, timeout time.Duration) *parallel.Group {
	return newGroup(t, ContextWithTimeout(t, timeout))
}

func newGroup(t *testing.T, ctx context.Context) *parallel.Group {
	group := parallel.NewGroup(ctx)
	t.Cleanup(func() {
		group.Exit(nil)
		if err := group.Wait(); !errors.Is(err, context.Canceled) {
			require.NoError(t, err)
		}
	})
	return group
}
