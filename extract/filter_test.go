package extract

import (
	"testing"

	"github.com/ridge/alluvium/chain"
	"github.com/stretchr/testify/require"
)

type pairExtractor struct{}

func (pairExtractor) Name() string {
	return "pair"
}

func (pairExtractor) Extract(txn *chain.Transaction) ([]Record, error) {
	return []Record{
		{Table: "left", Key: "k", Mutation: Insert, Row: txn.Version},
		{Table: "right", Key: "k", Mutation: Insert, Row: txn.Version},
	}, nil
}

func TestAllowlist(t *testing.T) {
	exs := Allowlist([]Extractor{pairExtractor{}}, []string{"left"})
	require.Len(t, exs, 1)
	require.Equal(t, "pair", exs[0].Name())

	records, err := exs[0].Extract(testTxn(7))
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "left", records[0].Table)
}

func TestAllowlistEmptyKeepsEverything(t *testing.T) {
	exs := Allowlist([]Extractor{pairExtractor{}}, nil)
	records, err := exs[0].Extract(testTxn(7))
	require.NoError(t, err)
	require.Len(t, records, 2)
}
