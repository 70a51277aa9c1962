// Package memsink is an in-memory sink for tests and dry runs.
//
// Rows live in a go-memdb database, so a Commit is atomic the same way it is
// in the relational sinks: the batch and the checkpoint land in one memdb
// transaction. The sink can also inject commit failures to exercise the
// pipeline's retry path.
package memsink

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/go-memdb"
	"github.com/ridge/alluvium/batch"
	"github.com/ridge/alluvium/checkpoint"
	"github.com/ridge/alluvium/extract"
	"github.com/ridge/alluvium/sink"
	"github.com/ridge/must/v2"
)

type storedRow struct {
	Table   string
	Key     string
	Version uint64
	Row     any
}

var schema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		"rows": {
			Name: "rows",
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:   "id",
					Unique: true,
					Indexer: &memdb.CompoundIndex{
						Indexes: []memdb.Indexer{
							&memdb.StringFieldIndex{Field: "Table"},
							&memdb.StringFieldIndex{Field: "Key"},
						},
					},
				},
			},
		},
		"checkpoints": {
			Name: "checkpoints",
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "Name"},
				},
			},
		},
	},
}

// Sink is an in-memory sink.Sink
type Sink struct {
	db *memdb.MemDB

	mu       sync.Mutex
	failNext []error
	commits  int
}

var _ sink.Sink = &Sink{}

// New creates an empty in-memory sink
func New() *Sink {
	return &Sink{db: must.OK1(memdb.NewMemDB(schema))}
}

// FailNext makes the next Commit calls fail with the given errors, one per
// call, before touching any data
func (s *Sink) FailNext(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = append(s.failNext, errs...)
}

// CommitCount returns the number of successful commits
func (s *Sink) CommitCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

func (s *Sink) takeFailure() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.failNext) == 0 {
		return nil
	}
	err := s.failNext[0]
	s.failNext = s.failNext[1:]
	return err
}

// Commit implements interface sink.Sink
func (s *Sink) Commit(ctx context.Context, pipeline string, b *batch.Batch) error {
	if err := s.takeFailure(); err != nil {
		return err
	}

	txn := s.db.Txn(true)
	defer txn.Abort()

	if rec, ok, err := loadCheckpoint(txn, pipeline); err != nil {
		return err
	} else if ok && b.End <= rec.Version {
		return nil // replay of an already committed range
	}

	for table, records := range b.Tables {
		for _, rec := range records {
			if err := applyRecord(txn, table, rec); err != nil {
				return err
			}
		}
	}

	if err := txn.Insert("checkpoints", &checkpoint.Record{
		Name:      pipeline,
		Version:   b.End,
		UpdatedAt: time.Now().UTC(),
	}); err != nil {
		return err
	}

	txn.Commit()

	s.mu.Lock()
	s.commits++
	s.mu.Unlock()
	return nil
}

func applyRecord(txn *memdb.Txn, table string, rec extract.Record) error {
	existing, err := txn.First("rows", "id", table, rec.Key)
	if err != nil {
		return err
	}

	switch rec.Mutation {
	case extract.Insert:
		if existing != nil {
			return nil
		}
	case extract.Upsert:
		if existing != nil && existing.(*storedRow).Version >= rec.Version {
			return nil
		}
	case extract.Delete:
		if existing == nil || existing.(*storedRow).Version > rec.Version {
			return nil
		}
		return txn.Delete("rows", existing)
	}

	return txn.Insert("rows", &storedRow{
		Table:   table,
		Key:     rec.Key,
		Version: rec.Version,
		Row:     rec.Row,
	})
}

func loadCheckpoint(txn *memdb.Txn, pipeline string) (checkpoint.Record, bool, error) {
	raw, err := txn.First("checkpoints", "id", pipeline)
	if err != nil || raw == nil {
		return checkpoint.Record{}, false, err
	}
	return *raw.(*checkpoint.Record), true, nil
}

// Checkpoint implements interface sink.Sink
func (s *Sink) Checkpoint(ctx context.Context, pipeline string) (uint64, bool, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	rec, ok, err := loadCheckpoint(txn, pipeline)
	return rec.Version, ok, err
}

// Reset implements interface sink.Sink
func (s *Sink) Reset(ctx context.Context, pipeline string) error {
	txn := s.db.Txn(true)
	defer txn.Abort()

	if _, err := txn.DeleteAll("checkpoints", "id", pipeline); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

// Row returns the stored row of a table, or ok=false if the key is absent
func (s *Sink) Row(table, key string) (any, bool) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	raw := must.OK1(txn.First("rows", "id", table, key))
	if raw == nil {
		return nil, false
	}
	return raw.(*storedRow).Row, true
}

// Rows returns all rows of a table in key order
func (s *Sink) Rows(table string) []any {
	txn := s.db.Txn(false)
	defer txn.Abort()

	it := must.OK1(txn.Get("rows", "id_prefix", table))
	var rows []any
	for raw := it.Next(); raw != nil; raw = it.Next() {
		row := raw.(*storedRow)
		// the prefix match is on the raw compound key, so a table whose
		// name extends this one would slip in without this check
		if row.Table != table {
			continue
		}
		rows = append(rows, row.Row)
	}
	return rows
}
