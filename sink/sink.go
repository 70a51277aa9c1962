// Package sink defines the destination side of the pipeline.
//
// Implementations live in subpackages: memsink keeps everything in memory,
// pgsink writes to PostgreSQL, parquetsink writes parquet files to a bucket.
package sink

import (
	"context"

	"github.com/ridge/alluvium/batch"
)

// Sink applies batches to a destination.
//
// A sink tracks one checkpoint per pipeline name. Commit must apply the
// batch and advance the checkpoint to b.End as one atomic step: after a
// crash either both happened or neither. Re-committing a range at or below
// the checkpoint must leave the destination unchanged, so a pipeline that
// restarts from its checkpoint can safely replay the batch it crashed in.
type Sink interface {
	// Commit applies a batch and advances the pipeline's checkpoint to
	// b.End
	Commit(ctx context.Context, pipeline string, b *batch.Batch) error

	// Checkpoint returns the last committed version of a pipeline, or
	// ok=false if it has never committed
	Checkpoint(ctx context.Context, pipeline string) (version uint64, ok bool, err error)

	// Reset forgets the pipeline's checkpoint, so ranges at or below it can
	// be committed again. Committed data stays in place.
	Reset(ctx context.Context, pipeline string) error
}
