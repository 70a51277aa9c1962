package extract

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetFor(t *testing.T) {
	set, err := SetFor(SetDefault, Options{})
	require.NoError(t, err)
	require.Len(t, set, 3)

	set, err = SetFor(SetCoins, Options{})
	require.NoError(t, err)
	require.Len(t, set, 1)
	require.Equal(t, "balances", set[0].Name())

	set, err = SetFor(SetNames, Options{NamesContract: "0x7"})
	require.NoError(t, err)
	require.Len(t, set, 1)

	_, err = SetFor(SetNames, Options{})
	require.Error(t, err)

	_, err = SetFor("bogus", Options{})
	require.Error(t, err)
}

func TestTablesFor(t *testing.T) {
	tables, err := TablesFor(SetCoins)
	require.NoError(t, err)
	names := make([]string, 0, len(tables))
	for _, table := range tables {
		names = append(names, table.Name)
	}
	require.Equal(t, []string{"coin_balances", "current_coin_balances", "coin_infos"}, names)

	for _, typ := range []string{SetDefault, SetCoins, SetTokens, SetNames} {
		tables, err := TablesFor(typ)
		require.NoError(t, err)
		require.NotEmpty(t, tables)
	}

	_, err = TablesFor("bogus")
	require.Error(t, err)
}
