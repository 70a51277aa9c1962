package extract

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/ridge/alluvium/chain"
)

// NameRecordRow is a row of the name_records table, one observation per
// touched name record
type NameRecordRow struct {
	Version    uint64    `db:"version" parquet:"version"`
	Domain     string    `db:"domain_name" parquet:"domain_name"`
	Subdomain  string    `db:"subdomain_name" parquet:"subdomain_name"`
	Registered string    `db:"registered_address" parquet:"registered_address"`
	Expiration time.Time `db:"expiration_timestamp" parquet:"expiration_timestamp,timestamp(millisecond)"`
	Timestamp  time.Time `db:"timestamp" parquet:"timestamp,timestamp(millisecond)"`
}

// CurrentNameRecordRow is a row of the current_name_records table. Records
// whose target address is cleared are deleted from it.
type CurrentNameRecordRow struct {
	Domain        string    `db:"domain_name" parquet:"domain_name"`
	Subdomain     string    `db:"subdomain_name" parquet:"subdomain_name"`
	Registered    string    `db:"registered_address" parquet:"registered_address"`
	Expiration    time.Time `db:"expiration_timestamp" parquet:"expiration_timestamp,timestamp(millisecond)"`
	LastVersion   uint64    `db:"last_transaction_version" parquet:"last_transaction_version"`
	LastTimestamp time.Time `db:"last_transaction_timestamp" parquet:"last_transaction_timestamp,timestamp(millisecond)"`
}

// CurrentPrimaryNameRow is a row of the current_primary_names table, the name
// an address resolves to in reverse lookups. Accounts that clear their primary
// name are deleted from it.
type CurrentPrimaryNameRow struct {
	Registered    string    `db:"registered_address" parquet:"registered_address"`
	Domain        string    `db:"domain_name" parquet:"domain_name"`
	Subdomain     string    `db:"subdomain_name" parquet:"subdomain_name"`
	LastVersion   uint64    `db:"last_transaction_version" parquet:"last_transaction_version"`
	LastTimestamp time.Time `db:"last_transaction_timestamp" parquet:"last_transaction_timestamp,timestamp(millisecond)"`
}

// Tables written by the Names extractor
var (
	NameRecordsTable = Register(TableOf("name_records", NameRecordRow{},
		[]string{"version", "domain_name", "subdomain_name"}, ""))
	CurrentNameRecordsTable = Register(TableOf("current_name_records", CurrentNameRecordRow{},
		[]string{"domain_name", "subdomain_name"}, "last_transaction_version"))
	CurrentPrimaryNamesTable = Register(TableOf("current_primary_names", CurrentPrimaryNameRow{},
		[]string{"registered_address"}, "last_transaction_version"))
)

// moveOption is the JSON shape of a Move Option value
type moveOption[T any] struct {
	Vec []T `json:"vec"`
}

func (o moveOption[T]) get() (T, bool) {
	if len(o.Vec) == 0 {
		var zero T
		return zero, false
	}
	return o.Vec[0], true
}

// nameRecordData is the JSON shape of a NameRecord resource of the name
// service contract
type nameRecordData struct {
	Domain     string             `json:"domain_name"`
	Subdomain  moveOption[string] `json:"subdomain_name"`
	Expiration string             `json:"expiration_time_sec"`
	Target     moveOption[string] `json:"target_address"`
}

// reverseLookupData is the JSON shape of a SetReverseLookupEvent, emitted when
// an account changes the name its address resolves back to
type reverseLookupData struct {
	Address       string             `json:"account_addr"`
	CurrDomain    moveOption[string] `json:"curr_domain_name"`
	CurrSubdomain moveOption[string] `json:"curr_subdomain_name"`
}

// Names tracks name service records and the primary name each account
// resolves back to. The contract address varies between networks, so it is
// supplied by configuration.
type Names struct {
	contract string
}

// NewNames returns a Names extractor bound to the name service contract
// deployed at the given address
func NewNames(contractAddress string) (*Names, error) {
	addr, err := chain.NormalizeAddress(contractAddress)
	if err != nil {
		return nil, fmt.Errorf("name service contract: %w", err)
	}
	return &Names{contract: addr}, nil
}

// Name implements interface Extractor
func (*Names) Name() string {
	return "names"
}

// Extract implements interface Extractor
func (n *Names) Extract(txn *chain.Transaction) ([]Record, error) {
	var records []Record
	for i, ch := range txn.Changes {
		if ch.Kind != chain.WriteResource {
			continue
		}
		tag, err := chain.ParseTypeTag(ch.Type)
		if err != nil {
			return nil, fmt.Errorf("change %d: %w", i, err)
		}
		if tag.Address != n.contract || tag.Module != "domains" || tag.Name != "NameRecord" {
			continue
		}

		var data nameRecordData
		if err := json.Unmarshal(ch.Data, &data); err != nil {
			return nil, fmt.Errorf("change %d: name record: %w", i, err)
		}
		rec, err := nameRecords(txn, data)
		if err != nil {
			return nil, fmt.Errorf("change %d: name record %q: %w", i, data.Domain, err)
		}
		records = append(records, rec...)
	}
	for i, ev := range txn.Events {
		tag, err := chain.ParseTypeTag(ev.Type)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		if tag.Address != n.contract || tag.Module != "domains" || tag.Name != "SetReverseLookupEvent" {
			continue
		}

		rec, err := primaryName(txn, ev.Data)
		if err != nil {
			return nil, fmt.Errorf("event %d: reverse lookup: %w", i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func nameRecords(txn *chain.Transaction, data nameRecordData) ([]Record, error) {
	expirationSec, err := strconv.ParseUint(data.Expiration, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("expiration: %w", err)
	}
	expiration := time.Unix(int64(expirationSec), 0).UTC()
	subdomain, _ := data.Subdomain.get()

	target, registered := data.Target.get()
	if registered {
		target, err = chain.NormalizeAddress(target)
		if err != nil {
			return nil, fmt.Errorf("target: %w", err)
		}
	}

	records := []Record{{
		Table:    NameRecordsTable.Name,
		Key:      recordKey(versionKey(txn.Version), data.Domain, subdomain),
		Mutation: Insert,
		Row: &NameRecordRow{
			Version:    txn.Version,
			Domain:     data.Domain,
			Subdomain:  subdomain,
			Registered: target,
			Expiration: expiration,
			Timestamp:  txn.Timestamp,
		},
	}}

	// A record with no target address no longer resolves. Dropping it from
	// the current table keeps lookups clean while name_records retains the
	// history.
	mutation := Upsert
	if !registered {
		mutation = Delete
	}
	records = append(records, Record{
		Table:    CurrentNameRecordsTable.Name,
		Key:      recordKey(data.Domain, subdomain),
		Mutation: mutation,
		Row: &CurrentNameRecordRow{
			Domain:        data.Domain,
			Subdomain:     subdomain,
			Registered:    target,
			Expiration:    expiration,
			LastVersion:   txn.Version,
			LastTimestamp: txn.Timestamp,
		},
	})
	return records, nil
}

func primaryName(txn *chain.Transaction, data []byte) (Record, error) {
	var ev reverseLookupData
	if err := json.Unmarshal(data, &ev); err != nil {
		return Record{}, err
	}
	addr, err := chain.NormalizeAddress(ev.Address)
	if err != nil {
		return Record{}, err
	}
	domain, set := ev.CurrDomain.get()
	subdomain, _ := ev.CurrSubdomain.get()

	// An event with no current domain clears the account's primary name
	mutation := Upsert
	if !set {
		mutation = Delete
	}
	return Record{
		Table:    CurrentPrimaryNamesTable.Name,
		Key:      addr,
		Mutation: mutation,
		Row: &CurrentPrimaryNameRow{
			Registered:    addr,
			Domain:        domain,
			Subdomain:     subdomain,
			LastVersion:   txn.Version,
			LastTimestamp: txn.Timestamp,
		},
	}, nil
}
