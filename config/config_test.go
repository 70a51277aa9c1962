package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ridge/alluvium/extract"
	"github.com/stretchr/testify/require"
	"time"
)

func write(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validYAML = `
health_check_port: 8084
processor_config:
  type: coins
  tables: [coin_balances, current_coin_balances]
channel_size: 64
max_buffer_size: 1048576
upload_interval: 10s
chain_id: 1
transaction_stream_config:
  kind: kafka
  address: broker-1:9092,broker-2:9092
  topic: chain-txns
  auth_token: sekrit
  request_name: coins-tail
processor_mode:
  type: default
db_config:
  type: postgres
  connection_string: postgres://alluvium@localhost/chain
sink_retries: 3
extract_workers: 2
on_extraction_error: skip
`

func validConfig(t *testing.T) Config {
	config, err := Load(write(t, validYAML))
	require.NoError(t, err)
	return config
}

func TestLoad(t *testing.T) {
	config := validConfig(t)
	require.Equal(t, 8084, config.HealthCheckPort)
	require.Equal(t, extract.SetCoins, config.Processor.Type)
	require.Equal(t, []string{"coin_balances", "current_coin_balances"}, config.Processor.Tables)
	require.Equal(t, 64, config.ChannelSize)
	require.Equal(t, 1<<20, config.MaxBufferSize)
	require.Equal(t, 10*time.Second, config.UploadInterval)
	require.EqualValues(t, 1, config.ChainID)
	require.Equal(t, StreamKafka, config.Stream.Kind)
	require.Equal(t, "broker-1:9092,broker-2:9092", config.Stream.Address)
	require.Equal(t, "chain-txns", config.Stream.Topic)
	require.Equal(t, "coins-tail", config.Stream.RequestName)
	require.Equal(t, ModeDefault, config.Mode.Type)
	require.Equal(t, DBPostgres, config.DB.Type)
	require.Equal(t, 3, config.SinkRetries)
	require.Equal(t, 2, config.ExtractWorkers)
	require.Equal(t, string(extract.Skip), config.OnExtractionError)
}

func TestLoadDefaults(t *testing.T) {
	config, err := Load(write(t, `
processor_config:
  type: default
transaction_stream_config:
  kind: local
  address: /var/lib/alluvium/stream
db_config:
  type: parquet
  bucket_dir: /var/lib/alluvium/objects
  checkpoint_dir: /var/lib/alluvium/checkpoints
`))
	require.NoError(t, err)
	require.Equal(t, DefaultHealthCheckPort, config.HealthCheckPort)
	require.Equal(t, DefaultChannelSize, config.ChannelSize)
	require.Equal(t, DefaultMaxBufferSize, config.MaxBufferSize)
	require.Equal(t, DefaultUploadInterval, config.UploadInterval)
	require.Equal(t, DefaultSinkRetries, config.SinkRetries)
	require.Positive(t, config.ExtractWorkers)
	require.Equal(t, ModeDefault, config.Mode.Type)
	require.Equal(t, string(extract.Halt), config.OnExtractionError)
	// the consumer identifies itself by processor type unless configured
	require.Equal(t, extract.SetDefault, config.Stream.RequestName)
}

func TestLoadUnknownKey(t *testing.T) {
	_, err := Load(write(t, validYAML+"max_bufer_size: 10\n"))
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	check := func(mutate func(*Config)) error {
		config := validConfig(t)
		mutate(&config)
		return config.Validate()
	}

	require.NoError(t, check(func(*Config) {}))
	require.NoError(t, check(func(c *Config) {
		c.Mode.Type = ModeBackfill
		c.Mode.BackfillAlias = "coins_redo_2026"
	}))

	require.Error(t, check(func(c *Config) { c.Processor.Type = "bogus" }))
	require.Error(t, check(func(c *Config) { c.Processor.Tables = []string{"tokens"} }))
	require.Error(t, check(func(c *Config) {
		c.Processor.Type = extract.SetNames
		c.Processor.Tables = nil
	}))
	require.Error(t, check(func(c *Config) { c.Stream.Kind = "carrier-pigeon" }))
	require.Error(t, check(func(c *Config) { c.Stream.Topic = "" }))
	require.Error(t, check(func(c *Config) {
		c.Stream.Kind = StreamLocal
		c.Stream.Address = ""
	}))
	require.Error(t, check(func(c *Config) { c.Mode.BackfillAlias = "stray" }))
	require.Error(t, check(func(c *Config) { c.Mode.Type = ModeBackfill }))
	require.Error(t, check(func(c *Config) {
		c.Mode.InitialStartingVersion = 100
		c.Mode.EndingVersion = 50
	}))
	require.Error(t, check(func(c *Config) { c.DB.ConnectionString = "" }))
	require.Error(t, check(func(c *Config) { c.DB.Type = DBParquet }))
	require.Error(t, check(func(c *Config) { c.DB.Type = "csv" }))
	require.Error(t, check(func(c *Config) { c.OnExtractionError = "retry" }))
	require.Error(t, check(func(c *Config) { c.HealthCheckPort = 70000 }))
	require.Error(t, check(func(c *Config) { c.ChannelSize = -1 }))
}
