// Package parquetsink writes batches as parquet files to a bucket.
//
// Every committed batch produces one file per touched table, named
// <pipeline>/<table>/<zero-padded batch start>.parquet. The name depends
// only on the batch start, which is fully determined by the checkpoint, so a
// pipeline restarting after a crash between the file writes and the
// checkpoint update rewrites the same objects instead of leaving duplicate
// coverage behind. Upserts appear as ordinary rows and deletes as tombstone
// rows; readers resolve each key to its highest-version row.
//
// Checkpoints live in a local pebble database through checkpoint.Store,
// since a bucket offers no transactional metadata.
package parquetsink

import (
	"context"
	"fmt"
	"time"

	"github.com/ridge/alluvium/batch"
	"github.com/ridge/alluvium/checkpoint"
	"github.com/ridge/alluvium/extract"
	"github.com/ridge/alluvium/sink"
	"github.com/ridge/alluvium/tlog"
	"go.uber.org/zap"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Sink writes parquet files
type Sink struct {
	bucket      Bucket
	checkpoints checkpoint.Store
	tables      map[string]extract.Table
	codecs      map[string]*rowCodec
}

var _ sink.Sink = &Sink{}

// New creates a parquet sink over the given bucket and checkpoint store
func New(bucket Bucket, checkpoints checkpoint.Store, tables []extract.Table) *Sink {
	s := &Sink{
		bucket:      bucket,
		checkpoints: checkpoints,
		tables:      map[string]extract.Table{},
		codecs:      map[string]*rowCodec{},
	}
	for _, t := range tables {
		s.tables[t.Name] = t
		s.codecs[t.Name] = newRowCodec(t)
	}
	return s
}

func objectName(pipeline, table string, start uint64) string {
	return fmt.Sprintf("%s/%s/%020d.parquet", pipeline, table, start)
}

// Commit implements interface sink.Sink
func (s *Sink) Commit(ctx context.Context, pipeline string, b *batch.Batch) error {
	if rec, ok, err := s.checkpoints.Load(pipeline); err != nil {
		return err
	} else if ok && b.End <= rec.Version {
		return nil // replay of an already committed range
	}

	names := maps.Keys(b.Tables)
	slices.Sort(names)
	for _, name := range names {
		codec, ok := s.codecs[name]
		if !ok {
			return fmt.Errorf("batch targets unknown table %s", name)
		}
		data, err := codec.encode(b.Tables[name])
		if err != nil {
			return fmt.Errorf("encoding table %s: %w", name, err)
		}
		if err := s.bucket.Put(ctx, objectName(pipeline, name, b.Start), data); err != nil {
			return err
		}
	}

	if err := s.checkpoints.Save(checkpoint.Record{
		Name:      pipeline,
		Version:   b.End,
		UpdatedAt: time.Now().UTC(),
	}); err != nil {
		return err
	}
	tlog.Get(ctx).Debug("Batch written", zap.String("pipeline", pipeline), zap.Object("batch", b))
	return nil
}

// Checkpoint implements interface sink.Sink
func (s *Sink) Checkpoint(ctx context.Context, pipeline string) (uint64, bool, error) {
	rec, ok, err := s.checkpoints.Load(pipeline)
	return rec.Version, ok, err
}

// Reset implements interface sink.Sink
func (s *Sink) Reset(ctx context.Context, pipeline string) error {
	return s.checkpoints.Delete(pipeline)
}
