package extract

import (
	"github.com/ridge/alluvium/chain"
	"time"
)

// TransactionRow is a row of the transactions table
type TransactionRow struct {
	Version         uint64    `db:"version" parquet:"version"`
	BlockHeight     uint64    `db:"block_height" parquet:"block_height"`
	Epoch           uint64    `db:"epoch" parquet:"epoch"`
	Type            string    `db:"type" parquet:"type"`
	Hash            string    `db:"hash" parquet:"hash"`
	Success         bool      `db:"success" parquet:"success"`
	VMStatus        string    `db:"vm_status" parquet:"vm_status"`
	GasUsed         uint64    `db:"gas_used" parquet:"gas_used"`
	PayloadFunction string    `db:"payload_function" parquet:"payload_function"`
	NumEvents       int       `db:"num_events" parquet:"num_events"`
	NumChanges      int       `db:"num_changes" parquet:"num_changes"`
	Timestamp       time.Time `db:"timestamp" parquet:"timestamp,timestamp(millisecond)"`
}

// TransactionsTable holds one row per transaction of any kind
var TransactionsTable = Register(TableOf("transactions", TransactionRow{}, []string{"version"}, ""))

// Transactions emits one transactions row per transaction
type Transactions struct{}

// Name implements interface Extractor
func (Transactions) Name() string {
	return "transactions"
}

// Extract implements interface Extractor
func (Transactions) Extract(txn *chain.Transaction) ([]Record, error) {
	return []Record{{
		Table:    TransactionsTable.Name,
		Key:      versionKey(txn.Version),
		Mutation: Insert,
		Row: &TransactionRow{
			Version:         txn.Version,
			BlockHeight:     txn.BlockHeight,
			Epoch:           txn.Epoch,
			Type:            string(txn.Type),
			Hash:            txn.Hash,
			Success:         txn.Success,
			VMStatus:        txn.VMStatus,
			GasUsed:         txn.GasUsed,
			PayloadFunction: txn.EntryFunction,
			NumEvents:       len(txn.Events),
			NumChanges:      len(txn.Changes),
			Timestamp:       txn.Timestamp,
		},
	}}, nil
}
