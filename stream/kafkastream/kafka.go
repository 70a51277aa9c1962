// Package kafkastream reads the canonical transaction stream from a Kafka
// topic. Message value N of the topic is the JSON encoding of one
// transaction; the topic offset order is the version order, so the version of
// the message at offset N is base+N where base is the version of the first
// retained message.
package kafkastream

import (
	"context"
	"errors"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"
	"time"
)

// Config describes the connection to the stream topic
type Config struct {
	Brokers []string
	Topic   string

	// ClientID identifies this consumer to the brokers.
	ClientID string

	// AuthToken, when set, enables SASL/PLAIN authentication with ClientID
	// as the username and the token as the password.
	AuthToken string
}

// Source reads the transaction stream from Kafka. It implements
// stream.Source.
type Source struct {
	config   Config
	kafkaAPI kafkaAPI
}

// New creates a Source reading from real Kafka brokers
func New(config Config) *Source {
	return newSource(config, realKafkaAPI{})
}

func newSource(config Config, kafkaAPI kafkaAPI) *Source {
	if len(config.Brokers) == 0 {
		panic("need at least one Kafka broker")
	}
	return &Source{
		config:   config,
		kafkaAPI: kafkaAPI,
	}
}

func (s *Source) dialer() *kafka.Dialer {
	dialer := &kafka.Dialer{
		ClientID:  s.config.ClientID,
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	if s.config.AuthToken != "" {
		dialer.SASLMechanism = plain.Mechanism{
			Username: s.config.ClientID,
			Password: s.config.AuthToken,
		}
	}
	return dialer
}

// This is the subset of the kafka-go API that we use, defined as mockable API

type kafkaAPI interface {
	NewReader(config kafka.ReaderConfig) kafkaReader
}

type kafkaReader interface {
	Close() error
	SetOffset(offset int64) error
	ReadLag(ctx context.Context) (lag int64, err error)
	Lag() int64
	FetchMessage(ctx context.Context) (kafka.Message, error)
}

type realKafkaAPI struct{}

func (realKafkaAPI) NewReader(config kafka.ReaderConfig) kafkaReader {
	return kafka.NewReader(config)
}

func shouldRetry(err error) bool {
	if errors.Is(err, kafka.Unknown) {
		return true
	}
	var kerr kafka.Error
	if !errors.As(err, &kerr) {
		return true
	}
	return kerr.Timeout()
}
