package extract

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/ridge/alluvium/chain"
	"github.com/stretchr/testify/require"
)

const nsContract = "0x7"

func nsRecord(t *testing.T, data string) []Record {
	t.Helper()
	names, err := NewNames(nsContract)
	require.NoError(t, err)

	txn := testTxn(300, writeResource("0xe5", nsContract+"::domains::NameRecord", data))
	records, err := names.Extract(txn)
	require.NoError(t, err)
	return records
}

func nsReverseLookup(t *testing.T, data string) []Record {
	t.Helper()
	names, err := NewNames(nsContract)
	require.NoError(t, err)

	txn := testTxn(310)
	txn.Events = []chain.Event{{
		Address:        "0xa1",
		CreationNumber: 4,
		Type:           nsContract + "::domains::SetReverseLookupEvent",
		Data:           json.RawMessage(data),
	}}
	records, err := names.Extract(txn)
	require.NoError(t, err)
	return records
}

func TestNamesRegistration(t *testing.T) {
	records := nsRecord(t,
		`{"domain_name":"alice","subdomain_name":{"vec":[]},"expiration_time_sec":"1800000000","target_address":{"vec":["0xa1"]}}`)
	require.Len(t, records, 2)

	expiration := time.Unix(1800000000, 0).UTC()

	require.Equal(t, "name_records", records[0].Table)
	require.Equal(t, "300|alice|", records[0].Key)
	require.Equal(t, Insert, records[0].Mutation)
	require.Equal(t, &NameRecordRow{
		Version:    300,
		Domain:     "alice",
		Registered: ownerAddr,
		Expiration: expiration,
		Timestamp:  testTime(300),
	}, records[0].Row)

	require.Equal(t, "current_name_records", records[1].Table)
	require.Equal(t, "alice|", records[1].Key)
	require.Equal(t, Upsert, records[1].Mutation)
	require.Equal(t, &CurrentNameRecordRow{
		Domain:        "alice",
		Registered:    ownerAddr,
		Expiration:    expiration,
		LastVersion:   300,
		LastTimestamp: testTime(300),
	}, records[1].Row)
}

func TestNamesSubdomain(t *testing.T) {
	records := nsRecord(t,
		`{"domain_name":"alice","subdomain_name":{"vec":["www"]},"expiration_time_sec":"1800000000","target_address":{"vec":["0xa1"]}}`)
	require.Len(t, records, 2)
	require.Equal(t, "300|alice|www", records[0].Key)
	require.Equal(t, "www", records[0].Row.(*NameRecordRow).Subdomain)
	require.Equal(t, "alice|www", records[1].Key)
}

func TestNamesCleared(t *testing.T) {
	records := nsRecord(t,
		`{"domain_name":"alice","subdomain_name":{"vec":[]},"expiration_time_sec":"1800000000","target_address":{"vec":[]}}`)
	require.Len(t, records, 2)

	require.Equal(t, "name_records", records[0].Table)
	require.Equal(t, "", records[0].Row.(*NameRecordRow).Registered)

	require.Equal(t, "current_name_records", records[1].Table)
	require.Equal(t, Delete, records[1].Mutation)
	require.Equal(t, "alice|", records[1].Key)
}

func TestNamesPrimarySet(t *testing.T) {
	records := nsReverseLookup(t,
		`{"account_addr":"0xa1","curr_domain_name":{"vec":["alice"]},"curr_subdomain_name":{"vec":[]},"curr_expiration_time_secs":{"vec":["1800000000"]},"prev_domain_name":{"vec":[]},"prev_subdomain_name":{"vec":[]},"prev_expiration_time_secs":{"vec":[]}}`)
	require.Len(t, records, 1)

	require.Equal(t, "current_primary_names", records[0].Table)
	require.Equal(t, ownerAddr, records[0].Key)
	require.Equal(t, Upsert, records[0].Mutation)
	require.Equal(t, &CurrentPrimaryNameRow{
		Registered:    ownerAddr,
		Domain:        "alice",
		LastVersion:   310,
		LastTimestamp: testTime(310),
	}, records[0].Row)
}

func TestNamesPrimarySubdomain(t *testing.T) {
	records := nsReverseLookup(t,
		`{"account_addr":"0xa1","curr_domain_name":{"vec":["alice"]},"curr_subdomain_name":{"vec":["www"]}}`)
	require.Len(t, records, 1)
	require.Equal(t, "www", records[0].Row.(*CurrentPrimaryNameRow).Subdomain)
}

func TestNamesPrimaryCleared(t *testing.T) {
	records := nsReverseLookup(t,
		`{"account_addr":"0xa1","curr_domain_name":{"vec":[]},"curr_subdomain_name":{"vec":[]},"prev_domain_name":{"vec":["alice"]}}`)
	require.Len(t, records, 1)

	require.Equal(t, "current_primary_names", records[0].Table)
	require.Equal(t, Delete, records[0].Mutation)
	require.Equal(t, ownerAddr, records[0].Key)
}

func TestNamesPrimaryOtherContract(t *testing.T) {
	names, err := NewNames(nsContract)
	require.NoError(t, err)

	txn := testTxn(310)
	txn.Events = []chain.Event{{
		Address: "0xa1",
		Type:    "0x8::domains::SetReverseLookupEvent",
		Data:    json.RawMessage(`{"account_addr":"0xa1","curr_domain_name":{"vec":["alice"]}}`),
	}}
	records, err := names.Extract(txn)
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestNamesPrimaryBadAddress(t *testing.T) {
	names, err := NewNames(nsContract)
	require.NoError(t, err)

	txn := testTxn(310)
	txn.Events = []chain.Event{{
		Address: "0xa1",
		Type:    nsContract + "::domains::SetReverseLookupEvent",
		Data:    json.RawMessage(`{"account_addr":"bogus","curr_domain_name":{"vec":["alice"]}}`),
	}}
	_, err = names.Extract(txn)
	require.ErrorIs(t, err, chain.ErrBadAddress)
}

func TestNamesOtherContract(t *testing.T) {
	names, err := NewNames(nsContract)
	require.NoError(t, err)

	txn := testTxn(300, writeResource("0xe5", "0x8::domains::NameRecord",
		`{"domain_name":"alice","subdomain_name":{"vec":[]},"expiration_time_sec":"1800000000","target_address":{"vec":["0xa1"]}}`))
	records, err := names.Extract(txn)
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestNamesBadExpiration(t *testing.T) {
	names, err := NewNames(nsContract)
	require.NoError(t, err)

	txn := testTxn(300, writeResource("0xe5", nsContract+"::domains::NameRecord",
		`{"domain_name":"alice","subdomain_name":{"vec":[]},"expiration_time_sec":"soon","target_address":{"vec":["0xa1"]}}`))
	_, err = names.Extract(txn)
	require.Error(t, err)
}

func TestNewNamesBadContract(t *testing.T) {
	_, err := NewNames("bogus")
	require.ErrorIs(t, err, chain.ErrBadAddress)
}
