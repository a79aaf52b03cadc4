package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	"github.com/cypherlabdev/bookshop-service/internal/models"
)

// Publisher announces committed resource mutations
type Publisher interface {
	Publish(ctx context.Context, event models.ResourceEvent) error
}

// NoopPublisher discards every event
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, models.ResourceEvent) error { return nil }

// DefaultTopic receives events whose resource has no explicit topic
const DefaultTopic = "bookshop.events"

// KafkaPublisher writes events to Kafka, one topic per resource
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topicMap map[string]string // resource -> Kafka topic
	logger   zerolog.Logger
}

// NewKafkaPublisher creates a Kafka publisher. prefix is prepended to each
// resource topic, e.g. "bookshop" yields "bookshop.books".
func NewKafkaPublisher(producer sarama.SyncProducer, prefix string, logger zerolog.Logger) *KafkaPublisher {
	if prefix == "" {
		prefix = "bookshop"
	}
	return &KafkaPublisher{
		producer: producer,
		topicMap: map[string]string{
			models.TableBooks:     prefix + ".books",
			models.TableCustomers: prefix + ".customers",
			models.TableOrders:    prefix + ".orders",
		},
		logger: logger.With().Str("component", "kafka_publisher").Logger(),
	}
}

// NewSyncProducer builds the producer configuration used in production
func NewSyncProducer(brokers []string) (sarama.SyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Return.Successes = true
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Idempotent = true
	cfg.Net.MaxOpenRequests = 1

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	return producer, nil
}

// TopicFor returns the topic an event for resource is written to
func (p *KafkaPublisher) TopicFor(resource string) string {
	if topic, ok := p.topicMap[resource]; ok {
		return topic
	}
	return DefaultTopic
}

// Publish sends a single event to Kafka
func (p *KafkaPublisher) Publish(_ context.Context, event models.ResourceEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	topic := p.TopicFor(event.Resource)
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(event.ID),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(event.Type)},
			{Key: []byte("resource"), Value: []byte(event.Resource)},
		},
	}
	if event.Shard != "" {
		msg.Headers = append(msg.Headers, sarama.RecordHeader{
			Key:   []byte("shard"),
			Value: []byte(event.Shard),
		})
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to send to Kafka: %w", err)
	}

	p.logger.Debug().
		Str("event_type", event.Type).
		Str("topic", topic).
		Int32("partition", partition).
		Int64("offset", offset).
		Msg("published event to Kafka")

	return nil
}

// Close releases the underlying producer
func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
