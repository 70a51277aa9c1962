package tcontext

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"time"
)

func requireOpen(t *testing.T, ctx context.Context) {
	t.Helper()
	assert.Nil(t, ctx.Err())
	_, hasDeadline := ctx.Deadline()
	assert.False(t, hasDeadline)
	select {
	case <-ctx.Done():
		assert.Fail(t, "context closed")
	default:
	}
}

func TestReopen(t *testing.T) {
	var key struct{}
	ctx1, cancel := context.WithTimeout(context.WithValue(context.Background(), &key, 42), time.Hour)

	ctx2 := Reopen(ctx1)
	assert.Equal(t, 42, ctx2.Value(&key))
	requireOpen(t, ctx2)

	cancel()

	assert.Equal(t, 42, ctx2.Value(&key))
	requireOpen(t, ctx2)

	ctx3 := Reopen(ctx1)
	assert.Equal(t, 42, ctx3.Value(&key))
	requireOpen(t, ctx3)
}

func TestGraceful(t *testing.T) {
	var key struct{}
	ctx1, cancel := context.WithCancel(context.WithValue(context.Background(), &key, "v"))
	cancel()

	ctx2, cancel2 := Graceful(ctx1, time.Hour)
	defer cancel2()

	assert.Equal(t, "v", ctx2.Value(&key))
	assert.Nil(t, ctx2.Err())
	deadline, hasDeadline := ctx2.Deadline()
	require.True(t, hasDeadline)
	assert.WithinDuration(t, time.Now().Add(time.Hour), deadline, time.Minute)

	cancel2()
	assert.ErrorIs(t, ctx2.Err(), context.Canceled)
}
