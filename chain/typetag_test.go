package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTypeTag(t *testing.T) {
	tag, err := ParseTypeTag("0x1::coin::CoinStore<0x1::aptos_coin::AptosCoin>")
	require.NoError(t, err)
	assert.Equal(t, "0x"+addr1, tag.Address)
	assert.Equal(t, "coin", tag.Module)
	assert.Equal(t, "CoinStore", tag.Name)
	assert.Equal(t, []string{"0x1::aptos_coin::AptosCoin"}, tag.TypeParams)
	assert.True(t, tag.Is("0x1", "coin", "CoinStore"))
	assert.False(t, tag.Is("0x1", "coin", "CoinInfo"))
	assert.False(t, tag.Is("0x4", "coin", "CoinStore"))
}

func TestParseTypeTagPlain(t *testing.T) {
	tag, err := ParseTypeTag("0x4::token::Token")
	require.NoError(t, err)
	assert.Equal(t, "token", tag.Module)
	assert.Equal(t, "Token", tag.Name)
	assert.Empty(t, tag.TypeParams)
}

func TestParseTypeTagNested(t *testing.T) {
	tag, err := ParseTypeTag("0x1::table::Table<0x1::string::String, 0x1::pair::Pair<u64, bool>>")
	require.NoError(t, err)
	assert.Equal(t, []string{"0x1::string::String", "0x1::pair::Pair<u64, bool>"}, tag.TypeParams)
}

func TestParseTypeTagErrors(t *testing.T) {
	for _, s := range []string{
		"",
		"coin::CoinStore",
		"0x1::coin",
		"0x1::coin::",
		"0x1::coin::CoinStore<",
		"0x1::coin::CoinStore<0x1::a::B",
		"0x1::coin::CoinStore<>",
		"0x1::coin::CoinStore<0x1::a::B,>",
		"zz::coin::CoinStore",
	} {
		_, err := ParseTypeTag(s)
		assert.ErrorIsf(t, err, ErrBadTypeTag, "input: %q", s)
	}
}

func TestTypeTagString(t *testing.T) {
	for _, s := range []string{
		"0x" + addr1 + "::coin::CoinStore<0x1::aptos_coin::AptosCoin>",
		"0x" + addr4 + "::token::Token",
	} {
		tag, err := ParseTypeTag(s)
		require.NoError(t, err)
		assert.Equal(t, s, tag.String())
	}
}
