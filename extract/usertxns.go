package extract

import (
	"time"

	"github.com/ridge/alluvium/chain"
)

// UserTransactionRow is a row of the user_transactions table
type UserTransactionRow struct {
	Version        uint64    `db:"version" parquet:"version"`
	Sender         string    `db:"sender" parquet:"sender"`
	SequenceNumber uint64    `db:"sequence_number" parquet:"sequence_number"`
	EntryFunction  string    `db:"entry_function" parquet:"entry_function"`
	Expiration     time.Time `db:"expiration_timestamp" parquet:"expiration_timestamp,timestamp(millisecond)"`
	GasUsed        uint64    `db:"gas_used" parquet:"gas_used"`
	Success        bool      `db:"success" parquet:"success"`
	Timestamp      time.Time `db:"timestamp" parquet:"timestamp,timestamp(millisecond)"`
}

// UserTransactionsTable holds one row per user-submitted transaction
var UserTransactionsTable = Register(TableOf("user_transactions", UserTransactionRow{}, []string{"version"}, ""))

// UserTransactions emits one user_transactions row per user transaction.
// Transactions of other kinds produce nothing.
type UserTransactions struct{}

// Name implements interface Extractor
func (UserTransactions) Name() string {
	return "user_transactions"
}

// Extract implements interface Extractor
func (UserTransactions) Extract(txn *chain.Transaction) ([]Record, error) {
	if txn.Type != chain.TypeUser {
		return nil, nil
	}

	sender, err := chain.NormalizeAddress(txn.Sender)
	if err != nil {
		return nil, err
	}
	return []Record{{
		Table:    UserTransactionsTable.Name,
		Key:      versionKey(txn.Version),
		Mutation: Insert,
		Row: &UserTransactionRow{
			Version:        txn.Version,
			Sender:         sender,
			SequenceNumber: txn.SequenceNumber,
			EntryFunction:  txn.EntryFunction,
			Expiration:     txn.ExpirationTimestamp,
			GasUsed:        txn.GasUsed,
			Success:        txn.Success,
			Timestamp:      txn.Timestamp,
		},
	}}, nil
}
