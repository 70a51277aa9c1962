package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// Checkpoints live under their own key prefix so that the database can host
// other bookkeeping later without a migration.
const (
	keyPrefix    = "checkpoint/"
	keyPrefixEnd = "checkpoint0" // '0' follows '/' in ASCII
)

// PebbleStore is a Store backed by a local pebble database
type PebbleStore struct {
	db *pebble.DB
}

var _ Store = &PebbleStore{}

// OpenPebble opens (creating if needed) a checkpoint database at path
func OpenPebble(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("opening checkpoint database %s: %w", path, err)
	}
	return &PebbleStore{db: db}, nil
}

// Close releases the database
func (s *PebbleStore) Close() error {
	return s.db.Close()
}

func checkpointKey(name string) []byte {
	return []byte(keyPrefix + name)
}

// Load implements interface Store
func (s *PebbleStore) Load(name string) (Record, bool, error) {
	value, closer, err := s.db.Get(checkpointKey(name))
	if errors.Is(err, pebble.ErrNotFound) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	defer closer.Close()

	var rec Record
	if err := json.Unmarshal(value, &rec); err != nil {
		return Record{}, false, fmt.Errorf("corrupt checkpoint %s: %w", name, err)
	}
	return rec, true, nil
}

// Save implements interface Store
func (s *PebbleStore) Save(rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.db.Set(checkpointKey(rec.Name), data, pebble.Sync)
}

// Delete implements interface Store
func (s *PebbleStore) Delete(name string) error {
	return s.db.Delete(checkpointKey(name), pebble.Sync)
}

// List implements interface Store
func (s *PebbleStore) List() ([]Record, error) {
	it, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyPrefixEnd),
	})
	if err != nil {
		return nil, err
	}

	var records []Record
	for ok := it.First(); ok; ok = it.Next() {
		var rec Record
		if err := json.Unmarshal(it.Value(), &rec); err != nil {
			_ = it.Close()
			return nil, fmt.Errorf("corrupt checkpoint %s: %w", it.Key(), err)
		}
		records = append(records, rec)
	}
	if err := it.Close(); err != nil {
		return nil, err
	}
	return records, nil
}
