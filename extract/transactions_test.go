package extract

import (
	"testing"

	"github.com/ridge/alluvium/chain"
	"github.com/stretchr/testify/require"
)

func TestTransactions(t *testing.T) {
	txn := testTxn(42)
	txn.Epoch = 7
	txn.VMStatus = "Executed successfully"
	txn.GasUsed = 55
	txn.EntryFunction = "0x1::coin::transfer"
	txn.Events = []chain.Event{{Type: "0x1::coin::DepositEvent"}}

	records, err := Transactions{}.Extract(txn)
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	require.Equal(t, "transactions", rec.Table)
	require.Equal(t, "42", rec.Key)
	require.Equal(t, Insert, rec.Mutation)
	require.Equal(t, &TransactionRow{
		Version:         42,
		BlockHeight:     21,
		Epoch:           7,
		Type:            "user",
		Hash:            txn.Hash,
		Success:         true,
		VMStatus:        "Executed successfully",
		GasUsed:         55,
		PayloadFunction: "0x1::coin::transfer",
		NumEvents:       1,
		NumChanges:      0,
		Timestamp:       testTime(42),
	}, rec.Row)
}
