// Package config loads and validates the processor configuration file.
//
// The file is YAML. Unknown keys are rejected so that a typo fails startup
// instead of silently running with a default.
package config

import (
	"fmt"
	"os"
	"runtime"

	"github.com/ridge/alluvium/extract"
	"github.com/ridge/must/v2"
	"gopkg.in/yaml.v3"
	"time"
)

// Defaults for omitted options
const (
	DefaultHealthCheckPort = 8084
	DefaultChannelSize     = 128
	DefaultMaxBufferSize   = 16 << 20
	DefaultUploadInterval  = 30 * time.Second
	DefaultSinkRetries     = 5
)

// Transaction stream kinds
const (
	StreamKafka = "kafka"
	StreamLocal = "local"
)

// Sink backends
const (
	DBPostgres = "postgres"
	DBParquet  = "parquet"
)

// Processor modes
const (
	ModeDefault  = "default"
	ModeBackfill = "backfill"
)

// Config is the processor configuration
type Config struct {
	// HealthCheckPort is the port of the liveness and metrics HTTP server
	HealthCheckPort int `yaml:"health_check_port"`

	Processor Processor `yaml:"processor_config"`
	Stream    Stream    `yaml:"transaction_stream_config"`
	Mode      Mode      `yaml:"processor_mode"`
	DB        DB        `yaml:"db_config"`

	// ChannelSize caps the transactions in flight between pipeline stages
	ChannelSize int `yaml:"channel_size"`

	// MaxBufferSize is the serialized size in bytes at which a batch is
	// flushed to the sink
	MaxBufferSize int `yaml:"max_buffer_size"`

	// UploadInterval flushes a non-empty batch that has been pending this
	// long even if it is below MaxBufferSize
	UploadInterval time.Duration `yaml:"upload_interval"`

	// ChainID is the chain the stream is expected to carry; zero disables
	// the check
	ChainID uint64 `yaml:"chain_id"`

	// SinkRetries is the number of attempts per batch commit
	SinkRetries int `yaml:"sink_retries"`

	// ExtractWorkers is the size of the extraction pool
	ExtractWorkers int `yaml:"extract_workers"`

	// OnExtractionError is what an extraction failure does: halt or skip
	OnExtractionError string `yaml:"on_extraction_error"`
}

// Processor selects the extractor set and the tables it writes
type Processor struct {
	// Type is one of the known processor types: default, coins, tokens,
	// names
	Type string `yaml:"type"`

	// Tables restricts output to the listed tables; empty writes all
	// tables of the set
	Tables []string `yaml:"tables"`

	// NamesContract is the address of the name service contract, required
	// by the names type
	NamesContract string `yaml:"names_contract_address"`
}

// Stream describes the transaction stream to consume
type Stream struct {
	// Kind is kafka or local
	Kind string `yaml:"kind"`

	// Address is the broker list (kafka, comma-separated) or the stream
	// file path (local)
	Address string `yaml:"address"`

	// Topic is the stream topic, kafka only
	Topic string `yaml:"topic"`

	// AuthToken enables SASL/PLAIN authentication when set, kafka only
	AuthToken string `yaml:"auth_token"`

	// RequestName identifies this consumer to the transport
	RequestName string `yaml:"request_name"`
}

// Mode selects tailing or backfill behavior
type Mode struct {
	// Type is default (tail the stream) or backfill (re-extract a range
	// under a separate checkpoint identity)
	Type string `yaml:"type"`

	// BackfillAlias is the checkpoint identity of a backfill run, so that
	// the tailing checkpoint stays untouched. Required in backfill mode.
	BackfillAlias string `yaml:"backfill_alias"`

	// InitialStartingVersion is where processing starts when no checkpoint
	// exists, or when it does and OverwriteCheckpoint is set
	InitialStartingVersion uint64 `yaml:"initial_starting_version"`

	// EndingVersion makes the run bounded: the processor stops after
	// committing it. Zero tails forever.
	EndingVersion uint64 `yaml:"ending_version"`

	// OverwriteCheckpoint discards the stored checkpoint and starts from
	// InitialStartingVersion
	OverwriteCheckpoint bool `yaml:"overwrite_checkpoint"`
}

// DB describes the sink backend
type DB struct {
	// Type is postgres or parquet
	Type string `yaml:"type"`

	// ConnectionString is the Postgres connection URL, postgres only
	ConnectionString string `yaml:"connection_string"`

	// BucketDir is the object bucket directory for Parquet files, parquet
	// only
	BucketDir string `yaml:"bucket_dir"`

	// CheckpointDir is the checkpoint store directory, parquet only
	CheckpointDir string `yaml:"checkpoint_dir"`
}

// Load reads, parses and validates a configuration file, filling defaults for
// omitted options
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	defer must.Do(f.Close)

	var config Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	config.fillDefaults()
	if err := config.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return config, nil
}

func (c *Config) fillDefaults() {
	if c.HealthCheckPort == 0 {
		c.HealthCheckPort = DefaultHealthCheckPort
	}
	if c.ChannelSize == 0 {
		c.ChannelSize = DefaultChannelSize
	}
	if c.MaxBufferSize == 0 {
		c.MaxBufferSize = DefaultMaxBufferSize
	}
	if c.UploadInterval == 0 {
		c.UploadInterval = DefaultUploadInterval
	}
	if c.SinkRetries == 0 {
		c.SinkRetries = DefaultSinkRetries
	}
	if c.ExtractWorkers == 0 {
		c.ExtractWorkers = runtime.NumCPU()
	}
	if c.Mode.Type == "" {
		c.Mode.Type = ModeDefault
	}
	if c.OnExtractionError == "" {
		c.OnExtractionError = string(extract.Halt)
	}
	if c.Stream.RequestName == "" {
		c.Stream.RequestName = c.Processor.Type
	}
}

// Validate checks the configuration for contradictions and omissions
func (c *Config) Validate() error {
	tables, err := extract.TablesFor(c.Processor.Type)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(tables))
	for _, table := range tables {
		known[table.Name] = true
	}
	for _, name := range c.Processor.Tables {
		if !known[name] {
			return fmt.Errorf("processor type %s does not write table %q", c.Processor.Type, name)
		}
	}
	if c.Processor.Type == extract.SetNames && c.Processor.NamesContract == "" {
		return fmt.Errorf("processor type %s requires names_contract_address", extract.SetNames)
	}

	switch c.Stream.Kind {
	case StreamKafka:
		if c.Stream.Address == "" {
			return fmt.Errorf("%s stream requires a broker address", StreamKafka)
		}
		if c.Stream.Topic == "" {
			return fmt.Errorf("%s stream requires a topic", StreamKafka)
		}
	case StreamLocal:
		if c.Stream.Address == "" {
			return fmt.Errorf("%s stream requires a stream file path", StreamLocal)
		}
	default:
		return fmt.Errorf("unknown transaction stream kind %q", c.Stream.Kind)
	}

	switch c.Mode.Type {
	case ModeDefault:
		if c.Mode.BackfillAlias != "" {
			return fmt.Errorf("backfill_alias is only valid in %s mode", ModeBackfill)
		}
	case ModeBackfill:
		if c.Mode.BackfillAlias == "" {
			return fmt.Errorf("%s mode requires backfill_alias", ModeBackfill)
		}
	default:
		return fmt.Errorf("unknown processor mode %q", c.Mode.Type)
	}
	if c.Mode.EndingVersion != 0 && c.Mode.EndingVersion < c.Mode.InitialStartingVersion {
		return fmt.Errorf("ending_version %d is below initial_starting_version %d",
			c.Mode.EndingVersion, c.Mode.InitialStartingVersion)
	}

	switch c.DB.Type {
	case DBPostgres:
		if c.DB.ConnectionString == "" {
			return fmt.Errorf("%s sink requires connection_string", DBPostgres)
		}
	case DBParquet:
		if c.DB.BucketDir == "" {
			return fmt.Errorf("%s sink requires bucket_dir", DBParquet)
		}
		if c.DB.CheckpointDir == "" {
			return fmt.Errorf("%s sink requires checkpoint_dir", DBParquet)
		}
	default:
		return fmt.Errorf("unknown sink type %q", c.DB.Type)
	}

	switch extract.ErrorPolicy(c.OnExtractionError) {
	case extract.Halt, extract.Skip:
	default:
		return fmt.Errorf("unknown extraction error policy %q", c.OnExtractionError)
	}

	if c.HealthCheckPort < 0 || c.HealthCheckPort > 65535 {
		return fmt.Errorf("health_check_port %d is out of range", c.HealthCheckPort)
	}
	if c.ChannelSize < 0 || c.MaxBufferSize < 0 || c.UploadInterval < 0 ||
		c.SinkRetries < 0 || c.ExtractWorkers < 0 {
		return fmt.Errorf("sizes, intervals and retry budgets must not be negative")
	}
	return nil
}
