package extract

import (
	"errors"
	"fmt"
)

// Known processor types. A processor type selects the extractor set a
// pipeline runs and therefore the tables it writes.
const (
	SetDefault = "default"
	SetCoins   = "coins"
	SetTokens  = "tokens"
	SetNames   = "names"
)

// Options configures extractors that cannot be built without external
// parameters
type Options struct {
	// NamesContract is the address of the name service contract. Required
	// by the names set, ignored by the others.
	NamesContract string
}

// SetFor returns the extractor set of a processor type
func SetFor(processorType string, opts Options) ([]Extractor, error) {
	switch processorType {
	case SetDefault:
		return []Extractor{Transactions{}, Events{}, UserTransactions{}}, nil
	case SetCoins:
		return []Extractor{Balances{}}, nil
	case SetTokens:
		return []Extractor{Tokens{}}, nil
	case SetNames:
		if opts.NamesContract == "" {
			return nil, errors.New("processor type names requires a name service contract address")
		}
		names, err := NewNames(opts.NamesContract)
		if err != nil {
			return nil, err
		}
		return []Extractor{names}, nil
	default:
		return nil, fmt.Errorf("unknown processor type %q", processorType)
	}
}

// TablesFor returns the tables written by the extractor set of a processor
// type
func TablesFor(processorType string) ([]Table, error) {
	switch processorType {
	case SetDefault:
		return []Table{TransactionsTable, EventsTable, UserTransactionsTable}, nil
	case SetCoins:
		return []Table{CoinBalancesTable, CurrentCoinBalancesTable, CoinInfosTable}, nil
	case SetTokens:
		return []Table{CollectionsTable, CurrentCollectionsTable, TokensTable, CurrentTokensTable}, nil
	case SetNames:
		return []Table{NameRecordsTable, CurrentNameRecordsTable, CurrentPrimaryNamesTable}, nil
	default:
		return nil, fmt.Errorf("unknown processor type %q", processorType)
	}
}
