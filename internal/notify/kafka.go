// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"
	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker/v2"

	"github.com/craftsmenplatform/craftsmen/internal/core"
)

// messageNamespace derives stable message ids from event ids so consumers
// can deduplicate redeliveries.
var messageNamespace = uuid.MustParse("6f1c2b7e-3d4a-5b8c-9e0f-1a2b3c4d5e6f")

// Envelope is the JSON value written to Kafka for each domain event.
type Envelope struct {
	MessageID     uuid.UUID       `json:"message_id"`
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Source        string          `json:"source"`
	Payload       json.RawMessage `json:"payload"`
}

// NewEnvelope wraps e for publication.
func NewEnvelope(e core.Event, source string) (Envelope, error) {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return Envelope{}, oops.Code("NOTIFY_ENCODE_FAILED").
			With("event_id", e.ID.String()).
			Wrap(err)
	}
	return Envelope{
		MessageID:     uuid.NewSHA1(messageNamespace, e.ID[:]),
		EventID:       e.ID.String(),
		EventType:     string(e.Type),
		AggregateType: e.AggregateType,
		AggregateID:   e.AggregateID.String(),
		OccurredAt:    e.OccurredAt.UTC(),
		Source:        source,
		Payload:       payload,
	}, nil
}

// MessageWriter is the subset of *kafka.Writer used by KafkaPublisher.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig configures the publisher.
type KafkaConfig struct {
	Brokers []string
	// TopicPrefix is joined with the aggregate type, e.g. "craftsmen." + "project".
	TopicPrefix  string
	Source       string
	WriteTimeout time.Duration
	// BreakerFailures consecutive failures open the breaker for BreakerTimeout.
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// DefaultKafkaConfig returns defaults for the given brokers.
func DefaultKafkaConfig(brokers []string) KafkaConfig {
	return KafkaConfig{
		Brokers:         brokers,
		TopicPrefix:     "craftsmen.",
		Source:          "craftsmen",
		WriteTimeout:    5 * time.Second,
		BreakerFailures: 5,
		BreakerTimeout:  30 * time.Second,
	}
}

// NewKafkaWriter builds a synchronous writer that routes by message topic and
// keys partitions by aggregate id, keeping per-aggregate ordering.
func NewKafkaWriter(cfg KafkaConfig) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           10 * time.Millisecond,
		WriteTimeout:           cfg.WriteTimeout,
		AllowAutoTopicCreation: true,
	}
}

// KafkaPublisher is a core.Sink that publishes events to Kafka behind a
// circuit breaker. While the breaker is open events are dropped with a log
// line rather than stalling the request that produced them.
type KafkaPublisher struct {
	writer  MessageWriter
	breaker *gobreaker.CircuitBreaker[struct{}]
	cfg     KafkaConfig
	logger  *slog.Logger
}

// NewKafkaPublisher creates a publisher writing through w.
func NewKafkaPublisher(w MessageWriter, cfg KafkaConfig, logger *slog.Logger) *KafkaPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	threshold := cfg.BreakerFailures
	settings := gobreaker.Settings{
		Name:    "kafka-publisher",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}
	return &KafkaPublisher{
		writer:  w,
		breaker: gobreaker.NewCircuitBreaker[struct{}](settings),
		cfg:     cfg,
		logger:  logger,
	}
}

// Topic returns the topic events of the given aggregate type go to.
func (p *KafkaPublisher) Topic(aggregateType string) string {
	return p.cfg.TopicPrefix + aggregateType
}

// Handle implements core.Sink.
func (p *KafkaPublisher) Handle(ctx context.Context, e core.Event) error {
	env, err := NewEnvelope(e, p.cfg.Source)
	if err != nil {
		return err
	}
	value, err := json.Marshal(env)
	if err != nil {
		return oops.Code("NOTIFY_ENCODE_FAILED").With("event_id", env.EventID).Wrap(err)
	}
	msg := kafka.Message{
		Topic: p.Topic(e.AggregateType),
		Key:   []byte(env.AggregateID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(env.EventType)},
			{Key: "message_id", Value: []byte(env.MessageID.String())},
		},
	}

	_, err = p.breaker.Execute(func() (struct{}, error) {
		writeCtx, cancel := context.WithTimeout(ctx, p.cfg.WriteTimeout)
		defer cancel()
		return struct{}{}, p.writer.WriteMessages(writeCtx, msg)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return oops.Code("NOTIFY_BREAKER_OPEN").
			With("topic", msg.Topic).
			With("event_id", env.EventID).
			Wrap(err)
	}
	if err != nil {
		return oops.Code("NOTIFY_PUBLISH_FAILED").
			With("topic", msg.Topic).
			With("event_id", env.EventID).
			Wrap(err)
	}
	p.logger.DebugContext(ctx, "event published",
		"topic", msg.Topic,
		"event_type", env.EventType,
		"aggregate_id", env.AggregateID,
	)
	return nil
}

// State reports the breaker state, for health output.
func (p *KafkaPublisher) State() gobreaker.State {
	return p.breaker.State()
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	if err := p.writer.Close(); err != nil {
		return oops.Code("NOTIFY_CLOSE_FAILED").Wrap(err)
	}
	return nil
}

var _ core.Sink = (*KafkaPublisher)(nil)
