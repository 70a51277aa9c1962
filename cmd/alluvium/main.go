// Command alluvium runs one extraction pipeline: it tails or backfills a
// transaction stream and loads the extracted tables into the configured sink.
package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/ridge/alluvium"
	"github.com/ridge/alluvium/checkpoint"
	"github.com/ridge/alluvium/config"
	"github.com/ridge/alluvium/extract"
	"github.com/ridge/alluvium/health"
	"github.com/ridge/alluvium/run"
	"github.com/ridge/alluvium/sink"
	"github.com/ridge/alluvium/sink/parquetsink"
	"github.com/ridge/alluvium/sink/pgsink"
	"github.com/ridge/alluvium/stream"
	"github.com/ridge/alluvium/stream/kafkastream"
	"github.com/ridge/alluvium/stream/localstream"
	"github.com/ridge/must/v2"
	"github.com/ridge/parallel"
	"github.com/spf13/pflag"
)

func main() {
	var configPath string
	pflag.StringVar(&configPath, "config", "config.yaml", "Path to the configuration file")
	pflag.Parse()

	run.Server(func(ctx context.Context) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		return serve(ctx, cfg)
	})
}

func serve(ctx context.Context, cfg config.Config) error {
	tables := must.OK1(extract.TablesFor(cfg.Processor.Type)) // validated by config.Load
	extractors := extract.Allowlist(
		must.OK1(extract.SetFor(cfg.Processor.Type, extract.Options{
			NamesContract: cfg.Processor.NamesContract,
		})),
		cfg.Processor.Tables)

	sk, closeSink, err := buildSink(ctx, cfg.DB, tables)
	if err != nil {
		return err
	}
	defer closeSink()

	processor := alluvium.New(alluvium.Config{
		Name:                cfg.Processor.Type,
		Source:              buildSource(cfg.Stream),
		Extractors:          extractors,
		Sink:                sk,
		Mode:                alluvium.Mode(cfg.Mode.Type),
		BackfillAlias:       cfg.Mode.BackfillAlias,
		StartingVersion:     cfg.Mode.InitialStartingVersion,
		EndingVersion:       cfg.Mode.EndingVersion,
		OverwriteCheckpoint: cfg.Mode.OverwriteCheckpoint,
		ChainID:             cfg.ChainID,
		ChannelSize:         cfg.ChannelSize,
		ExtractWorkers:      cfg.ExtractWorkers,
		MaxBufferBytes:      cfg.MaxBufferSize,
		UploadInterval:      cfg.UploadInterval,
		OnExtractionError:   extract.ErrorPolicy(cfg.OnExtractionError),
		SinkRetries:         cfg.SinkRetries,
	})

	healthServer, err := health.Listen(cfg.HealthCheckPort, processor)
	if err != nil {
		return err
	}

	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		spawn("health", parallel.Fail, healthServer.Run)
		spawn("pipeline", parallel.Exit, processor.Run)
		return nil
	})
}

func buildSource(cfg config.Stream) stream.Source {
	switch cfg.Kind {
	case config.StreamKafka:
		return kafkastream.New(kafkastream.Config{
			Brokers:   strings.Split(cfg.Address, ","),
			Topic:     cfg.Topic,
			ClientID:  cfg.RequestName,
			AuthToken: cfg.AuthToken,
		})
	case config.StreamLocal:
		return localstream.New(cfg.Address)
	default:
		panic(fmt.Sprintf("unknown transaction stream kind %q", cfg.Kind)) // unreachable, validated by config.Load
	}
}

func buildSink(ctx context.Context, cfg config.DB, tables []extract.Table) (sink.Sink, func(), error) {
	switch cfg.Type {
	case config.DBPostgres:
		s, err := pgsink.New(ctx, pgsink.Config{
			URI:          cfg.ConnectionString,
			CreateTables: true,
		}, tables)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case config.DBParquet:
		checkpoints, err := checkpoint.OpenPebble(cfg.CheckpointDir)
		if err != nil {
			return nil, nil, err
		}
		s := parquetsink.New(parquetsink.NewDirBucket(cfg.BucketDir), checkpoints, tables)
		return s, func() { must.OK(checkpoints.Close()) }, nil
	default:
		panic(fmt.Sprintf("unknown sink type %q", cfg.Type)) // unreachable, validated by config.Load
	}
}
