// Package stream defines the contract between transaction sources and the
// rest of the pipeline.
package stream

import (
	"context"
	"math"

	"github.com/ridge/alluvium/chain"
	"go.uber.org/zap/zapcore"
)

// Unbounded as Range.To means the range has no upper bound
const Unbounded = math.MaxUint64

// Range is an inclusive range of transaction versions
type Range struct {
	From uint64
	To   uint64
}

// Tail returns the unbounded range starting at the given version
func Tail(from uint64) Range {
	return Range{From: from, To: Unbounded}
}

// Bounded reports whether the range has an upper bound
func (r Range) Bounded() bool {
	return r.To != Unbounded
}

// Contains reports whether the version falls within the range
func (r Range) Contains(version uint64) bool {
	return version >= r.From && version <= r.To
}

// MarshalLogObject implements zapcore.ObjectMarshaler to allow logging of Range with zap.Object
func (r Range) MarshalLogObject(e zapcore.ObjectEncoder) error {
	e.AddUint64("from", r.From)
	if r.Bounded() {
		e.AddUint64("to", r.To)
	}
	return nil
}

// Source is a transport that delivers the canonical transaction stream.
//
// Implementations must deliver transactions in strictly ascending, gap-free
// version order. The consumer re-verifies this and treats any deviation as
// ErrOrderingViolation.
type Source interface {
	// Stream delivers the transactions with versions in rng to the channel
	// until the context is cancelled or, for a bounded range, until the last
	// transaction of the range has been delivered, in which case it returns
	// nil. Every time delivery reaches the hot end of the stream, including
	// before the first transaction if the stream is empty, nil is sent to
	// the channel.
	//
	// Keeps retrying on temporary transport errors, returns permanent ones.
	// Returns ErrRangeUnavailable if the beginning of rng is no longer
	// retained upstream.
	Stream(ctx context.Context, rng Range, dest chan<- *chain.Transaction) error
}
