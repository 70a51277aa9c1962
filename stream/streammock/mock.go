// Package streammock provides an in-memory transaction source for tests.
package streammock

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ridge/alluvium/chain"
	"github.com/ridge/alluvium/stream"
)

// Source is an appendable in-memory transaction stream. It implements
// stream.Source and may be appended to in the middle of a test while a
// pipeline is consuming it.
type Source struct {
	mu   sync.RWMutex
	base uint64 // version of txns[0]; earlier versions count as pruned
	txns []*chain.Transaction
	more chan struct{}

	delivered atomic.Int64
}

// New creates an empty source whose first retained version will be base
func New(base uint64) *Source {
	return &Source{
		base: base,
		more: make(chan struct{}),
	}
}

// Append appends transactions to the stream. Versions must continue the
// existing sequence without gaps; Append panics otherwise because a test
// feeding a broken sequence on purpose should use Inject.
func (s *Source) Append(txns ...*chain.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, txn := range txns {
		if expected := s.base + uint64(len(s.txns)); txn.Version != expected {
			panic(fmt.Sprintf("appended version %d, expected %d", txn.Version, expected))
		}
		s.txns = append(s.txns, txn)
	}
	close(s.more)
	s.more = make(chan struct{})
}

// Delivered returns the number of transactions handed to consumers so far,
// not counting hot-end markers. Lets backpressure tests observe how far a
// pipeline has pulled ahead of a stuck sink.
func (s *Source) Delivered() int64 {
	return s.delivered.Load()
}

// Inject appends transactions without validating version continuity,
// simulating a misbehaving transport.
func (s *Source) Inject(txns ...*chain.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.txns = append(s.txns, txns...)
	close(s.more)
	s.more = make(chan struct{})
}

// Stream implements stream.Source
func (s *Source) Stream(ctx context.Context, rng stream.Range, dest chan<- *chain.Transaction) error {
	s.mu.RLock()
	base := s.base
	s.mu.RUnlock()
	if rng.From < base {
		return fmt.Errorf("%w: version %d is before the oldest retained version %d",
			stream.ErrRangeUnavailable, rng.From, base)
	}

	next := rng.From - base // index into txns
	atEnd := false
	for {
		txns, more := s.read(next)

		for _, txn := range txns {
			if txn.Version > rng.To {
				return nil
			}
			atEnd = false
			select {
			case <-ctx.Done():
				return ctx.Err()
			case dest <- txn:
			}
			s.delivered.Add(1)
			next++
			if txn.Version == rng.To {
				return nil
			}
		}

		if !atEnd {
			atEnd = true
			select {
			case <-ctx.Done():
				return ctx.Err()
			case dest <- nil:
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-more:
		}
	}
}

func (s *Source) read(from uint64) ([]*chain.Transaction, <-chan struct{}) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if uint64(len(s.txns)) <= from {
		return nil, s.more
	}
	return s.txns[from:], s.more
}
