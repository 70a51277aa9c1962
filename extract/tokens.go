package extract

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ridge/alluvium/chain"
)

// CollectionRow is a row of the collections table, one observation per
// touched collection object
type CollectionRow struct {
	Version      uint64    `db:"version" parquet:"version"`
	CollectionID string    `db:"collection_id" parquet:"collection_id"`
	Creator      string    `db:"creator_address" parquet:"creator_address"`
	Name         string    `db:"name" parquet:"name"`
	Description  string    `db:"description" parquet:"description"`
	URI          string    `db:"uri" parquet:"uri"`
	Timestamp    time.Time `db:"timestamp" parquet:"timestamp,timestamp(millisecond)"`
}

// CurrentCollectionRow is a row of the current_collections table
type CurrentCollectionRow struct {
	CollectionID  string    `db:"collection_id" parquet:"collection_id"`
	Creator       string    `db:"creator_address" parquet:"creator_address"`
	Name          string    `db:"name" parquet:"name"`
	Description   string    `db:"description" parquet:"description"`
	URI           string    `db:"uri" parquet:"uri"`
	LastVersion   uint64    `db:"last_transaction_version" parquet:"last_transaction_version"`
	LastTimestamp time.Time `db:"last_transaction_timestamp" parquet:"last_transaction_timestamp,timestamp(millisecond)"`
}

// TokenRow is a row of the tokens table, one observation per touched token
// object
type TokenRow struct {
	Version      uint64    `db:"version" parquet:"version"`
	TokenID      string    `db:"token_id" parquet:"token_id"`
	CollectionID string    `db:"collection_id" parquet:"collection_id"`
	Name         string    `db:"name" parquet:"name"`
	Description  string    `db:"description" parquet:"description"`
	URI          string    `db:"uri" parquet:"uri"`
	Timestamp    time.Time `db:"timestamp" parquet:"timestamp,timestamp(millisecond)"`
}

// CurrentTokenRow is a row of the current_tokens table. Burned tokens are
// deleted from it.
type CurrentTokenRow struct {
	TokenID       string    `db:"token_id" parquet:"token_id"`
	CollectionID  string    `db:"collection_id" parquet:"collection_id"`
	Name          string    `db:"name" parquet:"name"`
	Description   string    `db:"description" parquet:"description"`
	URI           string    `db:"uri" parquet:"uri"`
	LastVersion   uint64    `db:"last_transaction_version" parquet:"last_transaction_version"`
	LastTimestamp time.Time `db:"last_transaction_timestamp" parquet:"last_transaction_timestamp,timestamp(millisecond)"`
}

// Tables written by the Tokens extractor
var (
	CollectionsTable = Register(TableOf("collections", CollectionRow{},
		[]string{"version", "collection_id"}, ""))
	CurrentCollectionsTable = Register(TableOf("current_collections", CurrentCollectionRow{},
		[]string{"collection_id"}, "last_transaction_version"))
	TokensTable = Register(TableOf("tokens", TokenRow{},
		[]string{"version", "token_id"}, ""))
	CurrentTokensTable = Register(TableOf("current_tokens", CurrentTokenRow{},
		[]string{"token_id"}, "last_transaction_version"))
)

// collectionData is the JSON shape of a 0x4::collection::Collection resource
type collectionData struct {
	Creator     string `json:"creator"`
	Description string `json:"description"`
	Name        string `json:"name"`
	URI         string `json:"uri"`
}

// tokenData is the JSON shape of a 0x4::token::Token resource. The
// collection reference is an Object field.
type tokenData struct {
	Collection struct {
		Inner string `json:"inner"`
	} `json:"collection"`
	Description string `json:"description"`
	Name        string `json:"name"`
	URI         string `json:"uri"`
}

// Tokens tracks digital asset objects: collections and the tokens minted in
// them. Object addresses serve as identifiers. Deleting a token object
// removes the current_tokens row.
type Tokens struct{}

// Name implements interface Extractor
func (Tokens) Name() string {
	return "tokens"
}

// Extract implements interface Extractor
func (Tokens) Extract(txn *chain.Transaction) ([]Record, error) {
	var records []Record
	for i, ch := range txn.Changes {
		if ch.Kind != chain.WriteResource && ch.Kind != chain.DeleteResource {
			continue
		}
		var err error
		records, err = appendTokenRecords(records, txn, ch)
		if err != nil {
			return nil, fmt.Errorf("change %d: %w", i, err)
		}
	}
	return records, nil
}

func appendTokenRecords(records []Record, txn *chain.Transaction, ch chain.Change) ([]Record, error) {
	tag, err := chain.ParseTypeTag(ch.Type)
	if err != nil {
		return records, err
	}

	switch {
	case tag.Is("0x4", "collection", "Collection"):
		id, err := chain.NormalizeAddress(ch.Address)
		if err != nil {
			return records, err
		}
		if ch.Kind == chain.DeleteResource {
			return append(records, Record{
				Table:    CurrentCollectionsTable.Name,
				Key:      id,
				Mutation: Delete,
				Row:      &CurrentCollectionRow{CollectionID: id, LastVersion: txn.Version, LastTimestamp: txn.Timestamp},
			}), nil
		}

		var data collectionData
		if err := json.Unmarshal(ch.Data, &data); err != nil {
			return records, fmt.Errorf("collection %s: %w", id, err)
		}
		creator, err := chain.NormalizeAddress(data.Creator)
		if err != nil {
			return records, fmt.Errorf("collection %s: %w", id, err)
		}

		records = append(records, Record{
			Table:    CollectionsTable.Name,
			Key:      recordKey(versionKey(txn.Version), id),
			Mutation: Insert,
			Row: &CollectionRow{
				Version:      txn.Version,
				CollectionID: id,
				Creator:      creator,
				Name:         data.Name,
				Description:  data.Description,
				URI:          data.URI,
				Timestamp:    txn.Timestamp,
			},
		})
		records = append(records, Record{
			Table:    CurrentCollectionsTable.Name,
			Key:      id,
			Mutation: Upsert,
			Row: &CurrentCollectionRow{
				CollectionID:  id,
				Creator:       creator,
				Name:          data.Name,
				Description:   data.Description,
				URI:           data.URI,
				LastVersion:   txn.Version,
				LastTimestamp: txn.Timestamp,
			},
		})

	case tag.Is("0x4", "token", "Token"):
		id, err := chain.NormalizeAddress(ch.Address)
		if err != nil {
			return records, err
		}
		if ch.Kind == chain.DeleteResource {
			return append(records, Record{
				Table:    CurrentTokensTable.Name,
				Key:      id,
				Mutation: Delete,
				Row:      &CurrentTokenRow{TokenID: id, LastVersion: txn.Version, LastTimestamp: txn.Timestamp},
			}), nil
		}

		var data tokenData
		if err := json.Unmarshal(ch.Data, &data); err != nil {
			return records, fmt.Errorf("token %s: %w", id, err)
		}
		collectionID, err := chain.NormalizeAddress(data.Collection.Inner)
		if err != nil {
			return records, fmt.Errorf("token %s: %w", id, err)
		}

		records = append(records, Record{
			Table:    TokensTable.Name,
			Key:      recordKey(versionKey(txn.Version), id),
			Mutation: Insert,
			Row: &TokenRow{
				Version:      txn.Version,
				TokenID:      id,
				CollectionID: collectionID,
				Name:         data.Name,
				Description:  data.Description,
				URI:          data.URI,
				Timestamp:    txn.Timestamp,
			},
		})
		records = append(records, Record{
			Table:    CurrentTokensTable.Name,
			Key:      id,
			Mutation: Upsert,
			Row: &CurrentTokenRow{
				TokenID:       id,
				CollectionID:  collectionID,
				Name:          data.Name,
				Description:   data.Description,
				URI:           data.URI,
				LastVersion:   txn.Version,
				LastTimestamp: txn.Timestamp,
			},
		})
	}

	return records, nil
}
