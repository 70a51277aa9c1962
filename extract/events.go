package extract

import (
	"fmt"
	"time"

	"github.com/ridge/alluvium/chain"
)

// EventRow is a row of the events table
type EventRow struct {
	Version        uint64    `db:"version" parquet:"version"`
	EventIndex     int       `db:"event_index" parquet:"event_index"`
	Address        string    `db:"address" parquet:"address"`
	CreationNumber uint64    `db:"creation_number" parquet:"creation_number"`
	SequenceNumber uint64    `db:"sequence_number" parquet:"sequence_number"`
	Type           string    `db:"type" parquet:"type"`
	Data           string    `db:"data" parquet:"data"`
	Timestamp      time.Time `db:"timestamp" parquet:"timestamp,timestamp(millisecond)"`
}

// EventsTable holds one row per event, keyed by the emitting transaction
// version and the position of the event within it
var EventsTable = Register(TableOf("events", EventRow{}, []string{"version", "event_index"}, ""))

// Events emits one events row per event of every transaction
type Events struct{}

// Name implements interface Extractor
func (Events) Name() string {
	return "events"
}

// Extract implements interface Extractor
func (Events) Extract(txn *chain.Transaction) ([]Record, error) {
	if len(txn.Events) == 0 {
		return nil, nil
	}

	records := make([]Record, 0, len(txn.Events))
	for i, ev := range txn.Events {
		address, err := chain.NormalizeAddress(ev.Address)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		records = append(records, Record{
			Table:    EventsTable.Name,
			Key:      recordKey(versionKey(txn.Version), fmt.Sprint(i)),
			Mutation: Insert,
			Row: &EventRow{
				Version:        txn.Version,
				EventIndex:     i,
				Address:        address,
				CreationNumber: ev.CreationNumber,
				SequenceNumber: ev.SequenceNumber,
				Type:           ev.Type,
				Data:           string(ev.Data),
				Timestamp:      txn.Timestamp,
			},
		})
	}
	return records, nil
}
