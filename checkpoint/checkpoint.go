// Package checkpoint persists pipeline progress markers.
//
// A checkpoint names the last version a pipeline has durably committed.
// Relational sinks store it inside the database transaction that commits the
// batch; sinks without transactional metadata of their own keep it in a local
// pebble database through Store.
package checkpoint

import (
	"time"

	"go.uber.org/zap/zapcore"
)

// Record is the saved progress of one pipeline
type Record struct {
	Name      string    `json:"name"`
	Version   uint64    `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MarshalLogObject implements zapcore.ObjectMarshaler to allow logging of Record with zap.Object
func (r Record) MarshalLogObject(e zapcore.ObjectEncoder) error {
	e.AddString("name", r.Name)
	e.AddUint64("version", r.Version)
	e.AddTime("updatedAt", r.UpdatedAt)
	return nil
}

// Store persists checkpoint records keyed by pipeline name
type Store interface {
	// Load returns the checkpoint of a pipeline, or ok=false if the
	// pipeline has never committed
	Load(name string) (Record, bool, error)

	// Save writes a checkpoint, replacing any previous one
	Save(rec Record) error

	// Delete removes a pipeline's checkpoint. Deleting a missing
	// checkpoint is not an error.
	Delete(name string) error

	// List returns all saved checkpoints sorted by pipeline name
	List() ([]Record, error)
}
