package extract

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ridge/alluvium/chain"
)

// CoinBalanceRow is a row of the coin_balances table, one balance observation
// per touched coin store
type CoinBalanceRow struct {
	Version   uint64    `db:"version" parquet:"version"`
	Owner     string    `db:"owner_address" parquet:"owner_address"`
	CoinType  string    `db:"coin_type" parquet:"coin_type"`
	Amount    string    `db:"amount" parquet:"amount"`
	Timestamp time.Time `db:"timestamp" parquet:"timestamp,timestamp(millisecond)"`
}

// CurrentCoinBalanceRow is a row of the current_coin_balances table, the
// latest known balance per owner and coin type
type CurrentCoinBalanceRow struct {
	Owner         string    `db:"owner_address" parquet:"owner_address"`
	CoinType      string    `db:"coin_type" parquet:"coin_type"`
	Amount        string    `db:"amount" parquet:"amount"`
	LastVersion   uint64    `db:"last_transaction_version" parquet:"last_transaction_version"`
	LastTimestamp time.Time `db:"last_transaction_timestamp" parquet:"last_transaction_timestamp,timestamp(millisecond)"`
}

// CoinInfoRow is a row of the coin_infos table, coin type metadata taken from
// the creator's CoinInfo resource
type CoinInfoRow struct {
	CoinType    string `db:"coin_type" parquet:"coin_type"`
	Name        string `db:"name" parquet:"name"`
	Symbol      string `db:"symbol" parquet:"symbol"`
	Decimals    int    `db:"decimals" parquet:"decimals"`
	Creator     string `db:"creator_address" parquet:"creator_address"`
	LastVersion uint64 `db:"last_transaction_version" parquet:"last_transaction_version"`
}

// Tables written by the Balances extractor
var (
	CoinBalancesTable = Register(TableOf("coin_balances", CoinBalanceRow{},
		[]string{"version", "owner_address", "coin_type"}, ""))
	CurrentCoinBalancesTable = Register(TableOf("current_coin_balances", CurrentCoinBalanceRow{},
		[]string{"owner_address", "coin_type"}, "last_transaction_version"))
	CoinInfosTable = Register(TableOf("coin_infos", CoinInfoRow{},
		[]string{"coin_type"}, "last_transaction_version"))
)

// coinStoreData is the JSON shape of a 0x1::coin::CoinStore resource
type coinStoreData struct {
	Coin struct {
		Value string `json:"value"`
	} `json:"coin"`
}

// coinInfoData is the JSON shape of a 0x1::coin::CoinInfo resource
type coinInfoData struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// Balances tracks coin stores and coin metadata. Every written CoinStore
// becomes a historical coin_balances row and a current_coin_balances upsert;
// a deleted CoinStore becomes a zero balance and a deletion of the current
// row. CoinInfo resources feed coin_infos.
type Balances struct{}

// Name implements interface Extractor
func (Balances) Name() string {
	return "balances"
}

// Extract implements interface Extractor
func (Balances) Extract(txn *chain.Transaction) ([]Record, error) {
	var records []Record
	for i, ch := range txn.Changes {
		if ch.Kind != chain.WriteResource && ch.Kind != chain.DeleteResource {
			continue
		}
		var err error
		records, err = appendCoinRecords(records, txn, ch)
		if err != nil {
			return nil, fmt.Errorf("change %d: %w", i, err)
		}
	}
	return records, nil
}

func appendCoinRecords(records []Record, txn *chain.Transaction, ch chain.Change) ([]Record, error) {
	tag, err := chain.ParseTypeTag(ch.Type)
	if err != nil {
		return records, err
	}

	switch {
	case tag.Is("0x1", "coin", "CoinStore") && len(tag.TypeParams) == 1:
		owner, err := chain.NormalizeAddress(ch.Address)
		if err != nil {
			return records, err
		}
		coinType := tag.TypeParams[0]

		amount := "0"
		if ch.Kind == chain.WriteResource {
			var store coinStoreData
			if err := json.Unmarshal(ch.Data, &store); err != nil {
				return records, fmt.Errorf("coin store of %s: %w", owner, err)
			}
			amount = store.Coin.Value
		}

		records = append(records, Record{
			Table:    CoinBalancesTable.Name,
			Key:      recordKey(versionKey(txn.Version), owner, coinType),
			Mutation: Insert,
			Row: &CoinBalanceRow{
				Version:   txn.Version,
				Owner:     owner,
				CoinType:  coinType,
				Amount:    amount,
				Timestamp: txn.Timestamp,
			},
		})

		mutation := Upsert
		if ch.Kind == chain.DeleteResource {
			mutation = Delete
		}
		records = append(records, Record{
			Table:    CurrentCoinBalancesTable.Name,
			Key:      recordKey(owner, coinType),
			Mutation: mutation,
			Row: &CurrentCoinBalanceRow{
				Owner:         owner,
				CoinType:      coinType,
				Amount:        amount,
				LastVersion:   txn.Version,
				LastTimestamp: txn.Timestamp,
			},
		})

	case tag.Is("0x1", "coin", "CoinInfo") && len(tag.TypeParams) == 1 && ch.Kind == chain.WriteResource:
		creator, err := chain.NormalizeAddress(ch.Address)
		if err != nil {
			return records, err
		}
		var info coinInfoData
		if err := json.Unmarshal(ch.Data, &info); err != nil {
			return records, fmt.Errorf("coin info of %s: %w", creator, err)
		}
		coinType := tag.TypeParams[0]

		records = append(records, Record{
			Table:    CoinInfosTable.Name,
			Key:      coinType,
			Mutation: Upsert,
			Row: &CoinInfoRow{
				CoinType:    coinType,
				Name:        info.Name,
				Symbol:      info.Symbol,
				Decimals:    info.Decimals,
				Creator:     creator,
				LastVersion: txn.Version,
			},
		})
	}

	return records, nil
}
