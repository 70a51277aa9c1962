package alluvium

import (
	"context"
	"errors"
	"fmt"

	"github.com/ridge/alluvium/batch"
	"github.com/ridge/alluvium/chain"
	"github.com/ridge/alluvium/extract"
	"github.com/ridge/alluvium/metrics"
	"github.com/ridge/alluvium/retry"
	"github.com/ridge/alluvium/stream"
	"github.com/ridge/alluvium/tcontext"
	"github.com/ridge/alluvium/tlog"
	"github.com/ridge/parallel"
	"go.uber.org/zap"
	"time"
)

// drainTimeout bounds the final flush after cancellation
const drainTimeout = 30 * time.Second

// commitTimeout bounds one sink commit attempt; a hung transport surfaces as
// a transient error and the attempt is retried
const commitTimeout = time.Minute

// Run executes the pipeline.
// Call it once and use the context to signal shutdown.
//
// Returns nil when a bounded run has drained its range, the fatal error that
// stopped the pipeline, or the cancellation reason.
func (p *Processor) Run(ctx context.Context) error {
	ctx = tlog.With(ctx, zap.String("pipeline", p.Pipeline()))
	logger := tlog.Get(ctx)

	p.setState(StateInitializing)
	defer p.setState(StateStopped)

	rng, err := p.resolveRange(ctx)
	if err != nil {
		return err
	}
	if rng.From > rng.To {
		logger.Info("Requested range is already committed", zap.Object("range", rng))
		return nil
	}

	pool := extract.NewPool(extract.PoolConfig{
		Extractors: p.config.Extractors,
		Workers:    p.config.ExtractWorkers,
		OnError:    p.config.OnExtractionError,
		OnSkip: func(extract.Error) {
			metrics.ExtractionSkips.Inc()
		},
	})

	txns := make(chan *chain.Transaction, p.config.ChannelSize)
	results := make(chan *extract.Result, p.config.ChannelSize)

	logger.Info("Pipeline starting",
		zap.String("mode", string(p.config.Mode)),
		zap.Object("range", rng),
		zap.Int("extractors", len(p.config.Extractors)))
	p.setState(p.streamingState())

	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		spawn("pump", parallel.Continue, func(ctx context.Context) error {
			if err := p.config.Source.Stream(ctx, rng, txns); err != nil {
				return err
			}
			close(txns)
			return nil
		})
		spawn("extract", parallel.Continue, func(ctx context.Context) error {
			if err := pool.Run(ctx, txns, results); err != nil {
				return err
			}
			close(results)
			return nil
		})
		spawn("commit", parallel.Exit, func(ctx context.Context) error {
			return p.commit(ctx, rng.From, results)
		})
		return nil
	})
}

// resolveRange turns the configured bounds and the stored checkpoint into
// the version range to stream
func (p *Processor) resolveRange(ctx context.Context) (stream.Range, error) {
	logger := tlog.Get(ctx)

	to := uint64(stream.Unbounded)
	if p.config.EndingVersion != 0 {
		to = p.config.EndingVersion
	}

	from := p.config.StartingVersion
	if p.config.OverwriteCheckpoint {
		// without this, the sink's replay guard would drop every commit
		// below the stored checkpoint
		if err := p.config.Sink.Reset(ctx, p.Pipeline()); err != nil {
			return stream.Range{}, fmt.Errorf("failed to overwrite checkpoint: %w", err)
		}
		logger.Info("Stored checkpoint discarded", zap.Uint64("from", from))
		return stream.Range{From: from, To: to}, nil
	}

	committed, ok, err := p.config.Sink.Checkpoint(ctx, p.Pipeline())
	if err != nil {
		return stream.Range{}, fmt.Errorf("failed to read checkpoint: %w", err)
	}
	if ok {
		logger.Debug("Checkpoint loaded", zap.Uint64("committed", committed))
		if committed+1 > from {
			from = committed + 1
		}
	}
	return stream.Range{From: from, To: to}, nil
}

// commit is the downstream stage: it accumulates extraction results in
// version order and flushes them to the sink when a trigger fires.
func (p *Processor) commit(ctx context.Context, from uint64, results <-chan *extract.Result) error {
	logger := tlog.Get(ctx)
	acc := batch.NewAccumulator(from)

	var flushTimer *time.Timer
	var flushC <-chan time.Time
	disarm := func() {
		if flushTimer == nil {
			return
		}
		flushTimer.Stop()
		flushTimer, flushC = nil, nil
	}
	defer disarm()

	caughtUp := false
	chainChecked := p.config.ChainID == 0

	for {
		select {
		case <-ctx.Done():
			p.finalFlush(ctx, acc)
			return ctx.Err()

		case <-flushC:
			flushTimer, flushC = nil, nil
			if err := p.flush(ctx, acc); err != nil {
				return err
			}

		case res, ok := <-results:
			if !ok {
				p.setState(StateDraining)
				logger.Info("Range drained", zap.Uint64("next", acc.Next()))
				return p.flush(ctx, acc)
			}
			if res == nil {
				if !caughtUp {
					caughtUp = true
					logger.Info("Caught up with the hot end", zap.Uint64("next", acc.Next()))
				}
				continue
			}

			if !chainChecked && res.Txn.ChainID != 0 {
				chainChecked = true
				if res.Txn.ChainID != p.config.ChainID {
					p.finalFlush(ctx, acc)
					return fmt.Errorf("%w: stream carries chain %d, expected %d",
						ErrChainMismatch, res.Txn.ChainID, p.config.ChainID)
				}
			}

			if err := acc.Add(res); err != nil {
				p.finalFlush(ctx, acc)
				return err
			}
			metrics.LatestVersion.Set(float64(res.Txn.Version))

			if p.config.MaxBufferBytes > 0 && acc.Bytes() >= p.config.MaxBufferBytes {
				disarm()
				if err := p.flush(ctx, acc); err != nil {
					return err
				}
			} else if flushC == nil && p.config.UploadInterval > 0 {
				flushTimer = time.NewTimer(p.config.UploadInterval)
				flushC = flushTimer.C
			}
		}
	}
}

// flush cuts the pending batch and commits it. A batch without records still
// commits: it advances the checkpoint over a quiet stretch of versions.
func (p *Processor) flush(ctx context.Context, acc *batch.Accumulator) error {
	b, ok := acc.Cut()
	if !ok {
		return nil
	}

	prev := p.Status()
	p.setState(StateFlushing)
	defer p.setState(prev)

	return p.commitBatch(ctx, b)
}

func (p *Processor) commitBatch(ctx context.Context, b *batch.Batch) error {
	err := retry.Do(ctx, p.policy, func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, commitTimeout)
		defer cancel()
		if err := p.config.Sink.Commit(attemptCtx, p.Pipeline(), b); err != nil {
			metrics.SinkRetries.Inc()
			return retry.Transient(fmt.Errorf("failed to commit batch [%d, %d]: %w", b.Start, b.End, err))
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrSinkExhausted, err)
	}

	metrics.CommittedVersion.Set(float64(b.End))
	metrics.BatchesCommitted.Inc()
	for table, records := range b.Tables {
		metrics.RecordsWritten.WithLabelValues(table).Add(float64(len(records)))
	}
	tlog.Get(ctx).Debug("Batch committed", zap.Object("batch", b))
	return nil
}

// finalFlush commits what has accumulated before the pipeline stops, on a
// context that survives cancellation. The accumulator only ever holds
// complete transactions of a contiguous range, so this is safe even when the
// pipeline is stopping on an error.
func (p *Processor) finalFlush(ctx context.Context, acc *batch.Accumulator) {
	if !acc.Pending() {
		return
	}
	flushCtx, cancel := tcontext.Graceful(ctx, drainTimeout)
	defer cancel()
	if err := p.flush(flushCtx, acc); err != nil {
		tlog.Get(ctx).Warn("Final flush failed, the last buffered records will be re-processed after restart",
			zap.Error(err))
	}
}
