package kafkastream

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ridge/alluvium/chain"
	"github.com/ridge/alluvium/retry"
	"github.com/ridge/alluvium/stream"
	"github.com/ridge/alluvium/tlog"
	"github.com/ridge/must/v2"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"time"
)

const (
	readerMaxBytes = 1e7
	readerMaxWait  = time.Hour
)

var readerRetry = retry.FixedPolicy{RetryAfter: time.Second}

// Stream implements stream.Source
func (s *Source) Stream(ctx context.Context, rng stream.Range, dest chan<- *chain.Transaction) error {
	ctx = tlog.With(ctx, zap.String("topic", s.config.Topic))
	logger := tlog.Get(ctx)
	logger.Info("Reading transaction stream from Kafka topic", zap.Object("range", rng))

	kr := s.kafkaAPI.NewReader(kafka.ReaderConfig{
		Brokers:  s.config.Brokers,
		Topic:    s.config.Topic,
		Dialer:   s.dialer(),
		MinBytes: 1,
		MaxBytes: readerMaxBytes,
		MaxWait:  readerMaxWait,
	})
	defer must.Do(kr.Close)

	must.OK(kr.SetOffset(kafka.FirstOffset))

	needLag := true
	resolved := false // the base version has been read and the reader repositioned
	next := rng.From  // next version to deliver
	for ctx.Err() == nil {
		message, more, err := readMessage(ctx, needLag, kr)
		if err != nil {
			return err
		}
		needLag = false

		if message != nil {
			txn, err := decode(message.Value)
			if err != nil {
				return fmt.Errorf("offset %d: %w", message.Offset, err)
			}

			if !resolved {
				offset, err := resolveOffset(txn.Version, message.Offset, rng.From)
				if err != nil {
					return err
				}
				resolved = true
				if offset != message.Offset {
					logger.Debug("Resolved start offset", zap.Int64("offset", offset),
						zap.Uint64("base", txn.Version))
					must.OK(kr.SetOffset(offset))
					needLag = true
					continue
				}
			}

			if txn.Version != next {
				return stream.OrderingViolation(next, txn.Version)
			}
			next = txn.Version + 1

			select {
			case <-ctx.Done():
				return ctx.Err()
			case dest <- txn:
			}

			if txn.Version == rng.To {
				return nil
			}
		}

		if !more {
			logger.Debug("Reached the hot end of the stream", zap.Uint64("next", next))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case dest <- nil:
			}
		}
	}

	return ctx.Err()
}

// resolveOffset maps the first requested version to a topic offset given the
// first retained message
func resolveOffset(base uint64, baseOffset int64, from uint64) (int64, error) {
	if from < base {
		return 0, fmt.Errorf("%w: version %d is before the oldest retained version %d",
			stream.ErrRangeUnavailable, from, base)
	}
	return baseOffset + int64(from-base), nil
}

func decode(value []byte) (*chain.Transaction, error) {
	var txn chain.Transaction
	if err := json.Unmarshal(value, &txn); err != nil {
		return nil, fmt.Errorf("corrupt transaction message: %w", err)
	}
	return &txn, nil
}

// readMessage reads one message from the topic.
// Returns nil at the hot end.
// Retries until success.
func readMessage(ctx context.Context, needLag bool, kr kafkaReader) (msg *kafka.Message, more bool, err error) {
	err = retry.Do(ctx, readerRetry, func() error {
		if needLag {
			lag, err := kr.ReadLag(ctx)
			if err != nil {
				if shouldRetry(err) {
					return retry.Transient(fmt.Errorf("failed to retrieve Kafka topic lag: %w", err))
				}
				return err
			}
			switch {
			case lag < 0: // the topic was truncated or recreated under us
				return stream.ErrRangeUnavailable
			case lag == 0:
				return nil
			}
		}

		m, err := kr.FetchMessage(ctx)
		if err != nil {
			if shouldRetry(err) {
				needLag = true
				return retry.Transient(fmt.Errorf("failed to read from Kafka topic: %w", err))
			}
			return err
		}
		msg = &m
		more = kr.Lag() > 0
		return nil
	})
	return msg, more, err
}
