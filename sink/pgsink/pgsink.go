// Package pgsink writes batches to PostgreSQL.
//
// Each output table maps to a relational table of the same name. A batch is
// applied in a single database transaction together with the pipeline's row
// in processor_checkpoints, which makes commit-plus-checkpoint atomic.
// Inserts are deduplicated with ON CONFLICT DO NOTHING, upserts resolve
// conflicts in favor of the higher originating version, and deletes are
// guarded the same way, so replaying a batch after a restart, or running a
// backfill behind the live pipeline, never moves a table backwards.
package pgsink

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ridge/alluvium/batch"
	"github.com/ridge/alluvium/extract"
	"github.com/ridge/alluvium/sink"
	"github.com/ridge/alluvium/tlog"
	"go.uber.org/zap"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Config configures the PostgreSQL sink
type Config struct {
	// URI is a connection string, either key/value or URL form
	URI string

	// CreateTables makes New create missing destination tables and the
	// checkpoint table on startup
	CreateTables bool
}

// Sink writes to PostgreSQL
type Sink struct {
	pool   *pgxpool.Pool
	tables map[string]extract.Table
}

var _ sink.Sink = &Sink{}

// New connects to the database and prepares it for the given destination
// tables
func New(ctx context.Context, config Config, tables []extract.Table) (*Sink, error) {
	poolConfig, err := pgxpool.ParseConfig(config.URI)
	if err != nil {
		return nil, fmt.Errorf("parsing database URI: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Sink{pool: pool, tables: map[string]extract.Table{}}
	for _, t := range tables {
		s.tables[t.Name] = t
	}

	if config.CreateTables {
		if err := s.ensureSchema(ctx, tables); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return s, nil
}

// Close releases the connection pool
func (s *Sink) Close() {
	s.pool.Close()
}

func (s *Sink) ensureSchema(ctx context.Context, tables []extract.Table) error {
	ddl := []string{checkpointTableDDL}
	for _, t := range tables {
		ddl = append(ddl, createTableSQL(t))
	}
	for _, stmt := range ddl {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("preparing schema: %w", err)
		}
	}
	tlog.Get(ctx).Debug("Database schema prepared", zap.Int("tables", len(tables)))
	return nil
}

// Commit implements interface sink.Sink
func (s *Sink) Commit(ctx context.Context, pipeline string, b *batch.Batch) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	var committed uint64
	err = tx.QueryRow(ctx,
		"SELECT version FROM processor_checkpoints WHERE pipeline = $1 FOR UPDATE",
		pipeline).Scan(&committed)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return err
	case b.End <= committed:
		return nil // replay of an already committed range
	}

	names := maps.Keys(b.Tables)
	slices.Sort(names)
	for _, name := range names {
		table, ok := s.tables[name]
		if !ok {
			return fmt.Errorf("batch targets unknown table %s", name)
		}
		if err := s.applyTable(ctx, tx, table, b.Tables[name]); err != nil {
			return fmt.Errorf("table %s: %w", name, err)
		}
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO processor_checkpoints (pipeline, version, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (pipeline) DO UPDATE SET version = excluded.version, updated_at = excluded.updated_at`,
		pipeline, b.End); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Sink) applyTable(ctx context.Context, tx pgx.Tx, table extract.Table, records []extract.Record) error {
	var inserts, upserts []extract.Record
	pending := &pgx.Batch{}
	for _, rec := range collapse(records) {
		switch rec.Mutation {
		case extract.Insert:
			inserts = append(inserts, rec)
		case extract.Upsert:
			upserts = append(upserts, rec)
		case extract.Delete:
			args := table.KeyValues(rec.Row)
			if table.VersionColumn != "" {
				args = append(args, rec.Version)
			}
			pending.Queue(deleteSQL(table), args...)
		}
	}
	queueWrites(pending, table, extract.Insert, inserts)
	queueWrites(pending, table, extract.Upsert, upserts)
	return tx.SendBatch(ctx, pending).Close()
}

func queueWrites(pending *pgx.Batch, table extract.Table, mutation extract.Mutation, records []extract.Record) {
	for len(records) > 0 {
		chunk := records
		if limit := rowsPerStatement(table); len(chunk) > limit {
			chunk = chunk[:limit]
		}
		records = records[len(chunk):]

		args := make([]any, 0, len(chunk)*len(table.Columns))
		for _, rec := range chunk {
			args = append(args, table.Values(rec.Row)...)
		}
		pending.Queue(writeSQL(table, mutation, len(chunk)), args...)
	}
}

// Checkpoint implements interface sink.Sink
func (s *Sink) Checkpoint(ctx context.Context, pipeline string) (uint64, bool, error) {
	var version uint64
	err := s.pool.QueryRow(ctx,
		"SELECT version FROM processor_checkpoints WHERE pipeline = $1", pipeline).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return version, true, nil
}

// Reset implements interface sink.Sink
func (s *Sink) Reset(ctx context.Context, pipeline string) error {
	if _, err := s.pool.Exec(ctx,
		"DELETE FROM processor_checkpoints WHERE pipeline = $1", pipeline); err != nil {
		return fmt.Errorf("failed to reset checkpoint %s: %w", pipeline, err)
	}
	return nil
}
