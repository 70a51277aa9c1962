package pgsink

import (
	"testing"

	"github.com/ridge/alluvium/extract"
	"github.com/stretchr/testify/require"
)

func TestCreateTableSQL(t *testing.T) {
	require.Equal(t,
		`CREATE TABLE IF NOT EXISTS current_coin_balances (
    owner_address TEXT NOT NULL,
    coin_type TEXT NOT NULL,
    amount TEXT NOT NULL,
    last_transaction_version BIGINT NOT NULL,
    last_transaction_timestamp TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (owner_address, coin_type)
)`,
		createTableSQL(extract.CurrentCoinBalancesTable))
}

func TestWriteSQLInsert(t *testing.T) {
	require.Equal(t,
		"INSERT INTO user_transactions (version, sender, sequence_number, entry_function, "+
			"expiration_timestamp, gas_used, success, timestamp) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, $8), ($9, $10, $11, $12, $13, $14, $15, $16) "+
			"ON CONFLICT (version) DO NOTHING",
		writeSQL(extract.UserTransactionsTable, extract.Insert, 2))
}

func TestWriteSQLUpsert(t *testing.T) {
	require.Equal(t,
		"INSERT INTO current_coin_balances (owner_address, coin_type, amount, "+
			"last_transaction_version, last_transaction_timestamp) "+
			"VALUES ($1, $2, $3, $4, $5) "+
			"ON CONFLICT (owner_address, coin_type) DO UPDATE SET "+
			"amount = excluded.amount, "+
			"last_transaction_version = excluded.last_transaction_version, "+
			"last_transaction_timestamp = excluded.last_transaction_timestamp "+
			"WHERE excluded.last_transaction_version > current_coin_balances.last_transaction_version",
		writeSQL(extract.CurrentCoinBalancesTable, extract.Upsert, 1))
}

func TestDeleteSQL(t *testing.T) {
	require.Equal(t,
		"DELETE FROM current_coin_balances WHERE owner_address = $1 AND coin_type = $2 "+
			"AND last_transaction_version <= $3",
		deleteSQL(extract.CurrentCoinBalancesTable))

	noVersion := extract.TableOf("plain", struct {
		ID string `db:"id"`
	}{}, []string{"id"}, "")
	require.Equal(t, "DELETE FROM plain WHERE id = $1", deleteSQL(noVersion))
}

func TestRowsPerStatement(t *testing.T) {
	require.Equal(t, maxStatementParams/len(extract.EventsTable.Columns),
		rowsPerStatement(extract.EventsTable))
	require.Positive(t, rowsPerStatement(extract.EventsTable))
}

func TestCollapse(t *testing.T) {
	records := []extract.Record{
		{Key: "a", Mutation: extract.Upsert, Version: 1},
		{Key: "b", Mutation: extract.Upsert, Version: 2},
		{Key: "a", Mutation: extract.Delete, Version: 3},
		{Key: "c", Mutation: extract.Upsert, Version: 4},
		{Key: "b", Mutation: extract.Upsert, Version: 5},
	}

	collapsed := collapse(records)
	require.Equal(t, []extract.Record{
		{Key: "a", Mutation: extract.Delete, Version: 3},
		{Key: "b", Mutation: extract.Upsert, Version: 5},
		{Key: "c", Mutation: extract.Upsert, Version: 4},
	}, collapsed)

	require.Empty(t, collapse(nil))
	one := []extract.Record{{Key: "a"}}
	require.Equal(t, one, collapse(one))
}
