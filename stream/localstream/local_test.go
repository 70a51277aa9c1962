package localstream

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ridge/alluvium/chain"
	"github.com/ridge/alluvium/stream"
	"github.com/ridge/alluvium/test"
	"github.com/ridge/parallel"
	"github.com/stretchr/testify/require"
	"time"
)

func txn(version uint64) *chain.Transaction {
	return &chain.Transaction{
		Version:   version,
		Timestamp: time.Unix(int64(1700000000+version), 0).UTC(),
		Type:      chain.TypeUser,
		Hash:      "0xabc",
		Success:   true,
		Sender:    "0x1",
	}
}

func streamFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "txns")
}

func TestStreamTail(t *testing.T) {
	group := test.GroupWithTimeout(t, time.Minute)
	path := streamFile(t)

	require.NoError(t, Append(path, txn(0), txn(1)))

	incoming := make(chan *chain.Transaction)
	group.Spawn("source", parallel.Continue, func(ctx context.Context) error {
		return New(path).Stream(ctx, stream.Tail(0), incoming)
	})

	require.Equal(t, txn(0), <-incoming)
	require.Equal(t, txn(1), <-incoming)
	require.Nil(t, <-incoming) // hot end

	require.NoError(t, Append(path, txn(2)))
	require.Equal(t, txn(2), <-incoming)
	require.Nil(t, <-incoming)
}

func TestStreamWaitsForFile(t *testing.T) {
	group := test.GroupWithTimeout(t, time.Minute)
	path := streamFile(t)

	incoming := make(chan *chain.Transaction)
	group.Spawn("source", parallel.Continue, func(ctx context.Context) error {
		return New(path).Stream(ctx, stream.Tail(0), incoming)
	})

	require.Nil(t, <-incoming) // empty stream is at its hot end

	require.NoError(t, Append(path, txn(0)))
	require.Equal(t, txn(0), <-incoming)
	require.Nil(t, <-incoming)
}

func TestStreamBounded(t *testing.T) {
	ctx := test.ContextWithTimeout(t, time.Minute)
	path := streamFile(t)

	require.NoError(t, Append(path, txn(0), txn(1), txn(2), txn(3)))

	incoming := make(chan *chain.Transaction, 16)
	require.NoError(t, New(path).Stream(ctx, stream.Range{From: 1, To: 2}, incoming))
	close(incoming)

	var got []uint64
	for txn := range incoming {
		if txn != nil {
			got = append(got, txn.Version)
		}
	}
	require.Equal(t, []uint64{1, 2}, got)
}

func TestStreamRangeUnavailable(t *testing.T) {
	ctx := test.ContextWithTimeout(t, time.Minute)
	path := streamFile(t)

	require.NoError(t, Append(path, txn(100), txn(101)))

	incoming := make(chan *chain.Transaction, 16)
	err := New(path).Stream(ctx, stream.Range{From: 50, To: 60}, incoming)
	require.ErrorIs(t, err, stream.ErrRangeUnavailable)
}

func TestStreamOrderingViolation(t *testing.T) {
	ctx := test.ContextWithTimeout(t, time.Minute)
	path := streamFile(t)

	require.NoError(t, Append(path, txn(0), txn(1), txn(5)))

	incoming := make(chan *chain.Transaction, 16)
	err := New(path).Stream(ctx, stream.Range{From: 0, To: 10}, incoming)
	require.ErrorIs(t, err, stream.ErrOrderingViolation)
}
