// Package extract turns transactions into table records.
//
// An Extractor is a pure function from one transaction to the records it
// contributes to one family of tables. Extractors carry no cross-transaction
// state, so the Pool can run them concurrently across transactions as long as
// the results are reassembled in version order.
package extract

import (
	"fmt"

	"github.com/ridge/alluvium/chain"
	"go.uber.org/zap/zapcore"
)

// Mutation is how a record applies to its table
type Mutation string

// Mutation kinds
const (
	// Insert appends an immutable row; re-delivery of the same key is a no-op
	Insert Mutation = "insert"

	// Upsert replaces the row with the same key unless the stored row
	// derives from a higher version
	Upsert Mutation = "upsert"

	// Delete removes the row with the same key
	Delete Mutation = "delete"
)

// Record is one table mutation produced by an extractor.
//
// Key is the string form of the row's logical primary key, used for in-batch
// deduplication; the sink derives the actual key column values from Row using
// the table metadata. Version and Bytes are stamped by the Pool: Version with
// the version of the originating transaction, Bytes with the serialized size
// of Row, which the accumulator sums for flush thresholds.
type Record struct {
	Table    string
	Key      string
	Mutation Mutation
	Version  uint64
	Bytes    int
	Row      any
}

// MarshalLogObject implements zapcore.ObjectMarshaler to allow logging of Record with zap.Object
func (r Record) MarshalLogObject(e zapcore.ObjectEncoder) error {
	e.AddString("table", r.Table)
	e.AddString("key", r.Key)
	e.AddString("mutation", string(r.Mutation))
	e.AddUint64("version", r.Version)
	return nil
}

// Extractor derives table records from single transactions
type Extractor interface {
	// Name identifies the extractor in errors and logs
	Name() string

	// Extract returns the records the transaction contributes. It must be
	// pure: no side effects, no state carried between calls.
	Extract(txn *chain.Transaction) ([]Record, error)
}

// Error reports a transaction an extractor could not process
type Error struct {
	Version   uint64
	Extractor string
	Err       error
}

func (e Error) Error() string {
	return fmt.Sprintf("extractor %s failed on version %d: %v", e.Extractor, e.Version, e.Err)
}

// Unwrap returns the underlying extraction failure
func (e Error) Unwrap() error {
	return e.Err
}

// ErrorPolicy decides what an extraction failure does to the pipeline
type ErrorPolicy string

// Extraction failure policies
const (
	// Halt stops the pipeline on the first extraction failure
	Halt ErrorPolicy = "halt"

	// Skip drops the failing extractor's records for that transaction,
	// keeps everyone else's, and continues
	Skip ErrorPolicy = "skip"
)
