package memsink

import (
	"errors"
	"testing"

	"github.com/ridge/alluvium/batch"
	"github.com/ridge/alluvium/extract"
	"github.com/ridge/alluvium/test"
	"github.com/stretchr/testify/require"
)

type row struct {
	Key    string
	Amount string
}

func upsert(key string, version uint64, amount string) extract.Record {
	return extract.Record{
		Table:    "current_balances",
		Key:      key,
		Mutation: extract.Upsert,
		Version:  version,
		Row:      &row{Key: key, Amount: amount},
	}
}

func insert(key string, version uint64) extract.Record {
	return extract.Record{
		Table:    "balances",
		Key:      key,
		Mutation: extract.Insert,
		Version:  version,
		Row:      &row{Key: key},
	}
}

func del(key string, version uint64) extract.Record {
	return extract.Record{
		Table:    "current_balances",
		Key:      key,
		Mutation: extract.Delete,
		Version:  version,
		Row:      &row{Key: key},
	}
}

func testBatch(start, end uint64, records ...extract.Record) *batch.Batch {
	b := &batch.Batch{Start: start, End: end, Tables: map[string][]extract.Record{}}
	for _, rec := range records {
		b.Tables[rec.Table] = append(b.Tables[rec.Table], rec)
	}
	return b
}

func TestCommit(t *testing.T) {
	ctx := test.Context(t)
	s := New()

	_, ok, err := s.Checkpoint(ctx, "main")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Commit(ctx, "main", testBatch(0, 4,
		insert("0|a", 0),
		upsert("a", 0, "100"),
		insert("3|a", 3),
		upsert("a", 3, "250"),
	)))

	version, ok, err := s.Checkpoint(ctx, "main")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(4), version)
	require.Equal(t, 1, s.CommitCount())

	stored, ok := s.Row("current_balances", "a")
	require.True(t, ok)
	require.Equal(t, &row{Key: "a", Amount: "250"}, stored)
	require.Len(t, s.Rows("balances"), 2)
}

func TestCommitEmptyBatchAdvancesCheckpoint(t *testing.T) {
	ctx := test.Context(t)
	s := New()

	require.NoError(t, s.Commit(ctx, "main", testBatch(0, 9)))
	version, ok, err := s.Checkpoint(ctx, "main")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(9), version)
}

func TestReplay(t *testing.T) {
	ctx := test.Context(t)
	s := New()

	b := testBatch(0, 4, insert("0|a", 0), upsert("a", 0, "100"))
	require.NoError(t, s.Commit(ctx, "main", b))
	require.NoError(t, s.Commit(ctx, "main", b), "full replay is a no-op")
	require.Equal(t, 1, s.CommitCount())
	require.Len(t, s.Rows("balances"), 1)

	// Restart overlap: the new batch covers already committed versions.
	// Stale upserts lose to the stored row, new ones win.
	require.NoError(t, s.Commit(ctx, "main", testBatch(5, 9, upsert("a", 7, "300"))))
	require.NoError(t, s.Commit(ctx, "main", testBatch(5, 12,
		insert("0|a", 5),
		upsert("a", 5, "stale"),
		upsert("a", 11, "400"),
	)))

	version, _, err := s.Checkpoint(ctx, "main")
	require.NoError(t, err)
	require.Equal(t, uint64(12), version)
	stored, _ := s.Row("current_balances", "a")
	require.Equal(t, &row{Key: "a", Amount: "400"}, stored)
}

func TestDelete(t *testing.T) {
	ctx := test.Context(t)
	s := New()

	require.NoError(t, s.Commit(ctx, "main", testBatch(0, 0, upsert("a", 0, "100"))))
	require.NoError(t, s.Commit(ctx, "main", testBatch(1, 1, del("a", 1))))

	_, ok := s.Row("current_balances", "a")
	require.False(t, ok)

	require.NoError(t, s.Commit(ctx, "main", testBatch(2, 2, del("a", 2))), "deleting a missing row is fine")
}

func TestFailNext(t *testing.T) {
	ctx := test.Context(t)
	s := New()

	boom := errors.New("boom")
	s.FailNext(boom)

	b := testBatch(0, 0, insert("0|a", 0))
	require.ErrorIs(t, s.Commit(ctx, "main", b), boom)
	require.Equal(t, 0, s.CommitCount())
	require.Empty(t, s.Rows("balances"))

	require.NoError(t, s.Commit(ctx, "main", b))
	require.Equal(t, 1, s.CommitCount())
}

func TestReset(t *testing.T) {
	ctx := test.Context(t)
	s := New()

	b := testBatch(0, 4, insert("0|a", 0))
	require.NoError(t, s.Commit(ctx, "main", b))
	require.NoError(t, s.Commit(ctx, "main", b), "replay guard holds before the reset")
	require.Equal(t, 1, s.CommitCount())

	require.NoError(t, s.Reset(ctx, "main"))
	_, ok, err := s.Checkpoint(ctx, "main")
	require.NoError(t, err)
	require.False(t, ok)
	require.Len(t, s.Rows("balances"), 1, "committed data survives the reset")

	require.NoError(t, s.Commit(ctx, "main", b), "the range can be committed again")
	require.Equal(t, 2, s.CommitCount())

	require.NoError(t, s.Reset(ctx, "missing"), "resetting an unknown pipeline is fine")
}

func TestCheckpointsPerPipeline(t *testing.T) {
	ctx := test.Context(t)
	s := New()

	require.NoError(t, s.Commit(ctx, "main", testBatch(100, 110)))
	require.NoError(t, s.Commit(ctx, "backfill", testBatch(0, 10)))

	version, ok, err := s.Checkpoint(ctx, "main")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(110), version)

	version, ok, err = s.Checkpoint(ctx, "backfill")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(10), version)
}
