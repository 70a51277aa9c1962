package extract

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ridge/alluvium/chain"
	"github.com/ridge/alluvium/tlog"
	"github.com/ridge/must/v2"
	"github.com/ridge/parallel"
	"go.uber.org/zap"
)

// Result is the outcome of extracting one transaction. A nil *Result flowing
// through the pipeline is the hot-end marker forwarded from the source.
type Result struct {
	Txn     *chain.Transaction
	Records []Record
}

// PoolConfig configures an extraction pool
type PoolConfig struct {
	Extractors []Extractor
	Workers    int

	// OnError decides what an extraction failure does; defaults to Halt
	OnError ErrorPolicy

	// OnSkip is called for every failure skipped under the Skip policy
	OnSkip func(Error)
}

// Pool runs extractors concurrently across transactions while delivering
// results in the original version order.
//
// Transactions are dispatched to workers round-robin and collected in the
// same order, so with N workers up to N transactions are extracted in
// parallel and the output order still matches the input order.
type Pool struct {
	config PoolConfig
}

// NewPool creates a Pool
func NewPool(config PoolConfig) *Pool {
	if len(config.Extractors) == 0 {
		panic("need at least one extractor")
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.OnError == "" {
		config.OnError = Halt
	}
	return &Pool{config: config}
}

// Run consumes transactions from in until it is closed and produces one
// Result per transaction on out, in input order. Hot-end markers (nil) pass
// through in order. Returns when in is closed, or with an Error when
// extraction fails under the Halt policy.
func (p *Pool) Run(ctx context.Context, in <-chan *chain.Transaction, out chan<- *Result) error {
	n := p.config.Workers
	jobs := make([]chan *chain.Transaction, n)
	results := make([]chan *Result, n)
	for i := range jobs {
		jobs[i] = make(chan *chain.Transaction)
		results[i] = make(chan *Result, 1)
	}

	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		spawn("dispatch", parallel.Continue, func(ctx context.Context) error {
			defer func() {
				for _, ch := range jobs {
					close(ch)
				}
			}()
			w := 0
			for {
				var txn *chain.Transaction
				var ok bool
				select {
				case <-ctx.Done():
					return ctx.Err()
				case txn, ok = <-in:
					if !ok {
						return nil
					}
				}
				select {
				case <-ctx.Done():
					return ctx.Err()
				case jobs[w] <- txn:
				}
				w = (w + 1) % n
			}
		})

		for i := 0; i < n; i++ {
			spawn(fmt.Sprintf("worker-%d", i), parallel.Continue, func(ctx context.Context) error {
				defer close(results[i])
				for txn := range jobs[i] {
					res, err := p.extract(ctx, txn)
					if err != nil {
						return err
					}
					select {
					case <-ctx.Done():
						return ctx.Err()
					case results[i] <- res:
					}
				}
				return nil
			})
		}

		spawn("collect", parallel.Exit, func(ctx context.Context) error {
			w := 0
			for {
				var res *Result
				var ok bool
				select {
				case <-ctx.Done():
					return ctx.Err()
				case res, ok = <-results[w]:
					if !ok {
						return nil
					}
				}
				select {
				case <-ctx.Done():
					return ctx.Err()
				case out <- res:
				}
				w = (w + 1) % n
			}
		})

		return nil
	})
}

func (p *Pool) extract(ctx context.Context, txn *chain.Transaction) (*Result, error) {
	if txn == nil {
		return nil, nil // hot-end marker passes through
	}

	res := &Result{Txn: txn}
	for _, ex := range p.config.Extractors {
		records, err := ex.Extract(txn)
		if err != nil {
			e := Error{Version: txn.Version, Extractor: ex.Name(), Err: err}
			if p.config.OnError == Halt {
				return nil, e
			}
			tlog.Get(ctx).Warn("Skipping failed extraction", zap.Error(e))
			if p.config.OnSkip != nil {
				p.config.OnSkip(e)
			}
			continue
		}
		for i := range records {
			records[i].Version = txn.Version
			records[i].Bytes = len(must.OK1(json.Marshal(records[i].Row)))
		}
		res.Records = append(res.Records, records...)
	}
	return res, nil
}
