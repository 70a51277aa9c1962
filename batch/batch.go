// Package batch groups extraction results into sink-sized batches.
//
// A Batch covers a contiguous, inclusive version range. The records of all
// transactions in the range are grouped by destination table, preserving
// version order within each table. A batch with no records is still
// meaningful: committing it advances the checkpoint over a stretch of
// transactions that produced nothing for the chosen tables.
package batch

import (
	"github.com/ridge/alluvium/extract"
	"github.com/ridge/alluvium/stream"
	"go.uber.org/zap/zapcore"
)

// Batch is a flushable unit of sink work
type Batch struct {
	Start uint64
	End   uint64

	// Tables holds the records grouped by table name, each group in
	// version order
	Tables map[string][]extract.Record

	// Bytes is the total serialized size of the records
	Bytes int
}

// Size returns the total number of records across all tables
func (b *Batch) Size() int {
	n := 0
	for _, records := range b.Tables {
		n += len(records)
	}
	return n
}

// Empty reports whether the batch carries no records
func (b *Batch) Empty() bool {
	return len(b.Tables) == 0
}

// MarshalLogObject implements zapcore.ObjectMarshaler to allow logging of Batch with zap.Object
func (b *Batch) MarshalLogObject(e zapcore.ObjectEncoder) error {
	e.AddUint64("start", b.Start)
	e.AddUint64("end", b.End)
	e.AddInt("tables", len(b.Tables))
	e.AddInt("records", b.Size())
	e.AddInt("bytes", b.Bytes)
	return nil
}

// Accumulator collects per-transaction extraction results into the next
// batch. It is passive: flush policy (size, interval, drain) lives with the
// caller, which decides when to Cut.
//
// Not safe for concurrent use.
type Accumulator struct {
	next    uint64
	start   uint64
	tables  map[string][]extract.Record
	records int
	bytes   int
}

// NewAccumulator returns an accumulator whose first batch starts at the
// given version
func NewAccumulator(start uint64) *Accumulator {
	return &Accumulator{
		next:   start,
		start:  start,
		tables: map[string][]extract.Record{},
	}
}

// Add appends one transaction's records to the pending batch. Transactions
// must arrive in contiguous version order; a gap or regression is reported
// as a version ordering violation.
func (a *Accumulator) Add(res *extract.Result) error {
	if res.Txn.Version != a.next {
		return stream.OrderingViolation(a.next, res.Txn.Version)
	}
	a.next++
	for _, rec := range res.Records {
		a.tables[rec.Table] = append(a.tables[rec.Table], rec)
		a.bytes += rec.Bytes
	}
	a.records += len(res.Records)
	return nil
}

// Size returns the number of records in the pending batch
func (a *Accumulator) Size() int {
	return a.records
}

// Bytes returns the total serialized size of the pending batch's records
func (a *Accumulator) Bytes() int {
	return a.bytes
}

// Pending reports whether any transactions were added since the last Cut.
// True even if they produced no records: cutting then yields an empty batch
// that advances the checkpoint.
func (a *Accumulator) Pending() bool {
	return a.next > a.start
}

// Next returns the version the accumulator expects to see next
func (a *Accumulator) Next() uint64 {
	return a.next
}

// Cut detaches the pending batch and starts a new one right after it.
// Returns false if no transactions were added since the last cut.
func (a *Accumulator) Cut() (*Batch, bool) {
	if !a.Pending() {
		return nil, false
	}
	b := &Batch{
		Start:  a.start,
		End:    a.next - 1,
		Tables: a.tables,
		Bytes:  a.bytes,
	}
	a.start = a.next
	a.tables = map[string][]extract.Record{}
	a.records = 0
	a.bytes = 0
	return b, true
}
