// Package chain defines the transaction data model shared by every part of
// the pipeline: sources decode into it, extractors consume it.
package chain

import (
	"encoding/json"

	"go.uber.org/zap/zapcore"
	"time"
)

// Type is the kind of a transaction
type Type string

// Transaction kinds
const (
	TypeGenesis         Type = "genesis"
	TypeBlockMetadata   Type = "block_metadata"
	TypeStateCheckpoint Type = "state_checkpoint"
	TypeUser            Type = "user"
)

// Transaction is a single committed transaction as observed on the stream.
//
// Version is the global sequence number of the transaction: versions are
// assigned consecutively by the chain, so a healthy stream delivers them
// gap-free in ascending order. A Transaction is immutable once observed.
type Transaction struct {
	Version uint64 `json:"version"`

	// ChainID identifies the chain the stream was produced from; zero when
	// the producer does not stamp it
	ChainID uint64 `json:"chain_id,omitempty"`

	Timestamp   time.Time `json:"timestamp"`
	Type        Type      `json:"type"`
	Hash        string    `json:"hash"`
	Success     bool      `json:"success"`
	VMStatus    string    `json:"vm_status"`
	GasUsed     uint64    `json:"gas_used"`
	Epoch       uint64    `json:"epoch"`
	BlockHeight uint64    `json:"block_height"`

	// User transaction payload; zero values for other kinds
	Sender              string    `json:"sender,omitempty"`
	SequenceNumber      uint64    `json:"sequence_number,omitempty"`
	EntryFunction       string    `json:"entry_function,omitempty"`
	ExpirationTimestamp time.Time `json:"expiration_timestamp,omitempty"`

	Events  []Event  `json:"events,omitempty"`
	Changes []Change `json:"changes,omitempty"`
}

// Event is a single event emitted during transaction execution
type Event struct {
	Address        string          `json:"address"`
	CreationNumber uint64          `json:"creation_number"`
	SequenceNumber uint64          `json:"sequence_number"`
	Type           string          `json:"type"` // Move type tag
	Data           json.RawMessage `json:"data"`
}

// ChangeKind is the kind of a write-set change
type ChangeKind string

// Write-set change kinds
const (
	WriteResource   ChangeKind = "write_resource"
	DeleteResource  ChangeKind = "delete_resource"
	WriteTableItem  ChangeKind = "write_table_item"
	DeleteTableItem ChangeKind = "delete_table_item"
)

// Change is a single entry of a transaction's write set.
//
// Resource changes carry the owning account address, the resource type tag
// and, for writes, the resource data. Table item changes carry the table
// handle and the item key instead of a type tag.
type Change struct {
	Kind         ChangeKind      `json:"kind"`
	Address      string          `json:"address,omitempty"`
	StateKeyHash string          `json:"state_key_hash"`
	Type         string          `json:"resource_type,omitempty"` // Move type tag
	Handle       string          `json:"handle,omitempty"`
	Key          json.RawMessage `json:"key,omitempty"`
	Data         json.RawMessage `json:"data,omitempty"`
}

// MarshalLogObject implements zapcore.ObjectMarshaler to allow logging of Transaction with zap.Object
func (txn *Transaction) MarshalLogObject(e zapcore.ObjectEncoder) error {
	e.AddUint64("version", txn.Version)
	e.AddString("type", string(txn.Type))
	e.AddString("hash", txn.Hash)
	e.AddBool("success", txn.Success)
	e.AddInt("events", len(txn.Events))
	e.AddInt("changes", len(txn.Changes))
	return nil
}
