package kafka

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/IBM/sarama"
)

const producerClientID = "resort-outbox"

// ErrMissingKey rejects records without a booking id. The id is the partition
// key, so every event of one booking lands on one partition in order.
var ErrMissingKey = errors.New("kafka: booking key required")

// Producer relays outbox records for the booking topics. Sends are
// synchronous and idempotent: the outbox worker marks a record sent only after
// every in-sync replica has it.
type Producer struct {
	sync sarama.SyncProducer
}

func NewProducer(brokers []string, cfg *sarama.Config) (*Producer, error) {
	sync, err := sarama.NewSyncProducer(brokers, producerConfig(cfg))
	if err != nil {
		return nil, err
	}
	return &Producer{sync: sync}, nil
}

func producerConfig(cfg *sarama.Config) *sarama.Config {
	if cfg == nil {
		cfg = sarama.NewConfig()
	}
	if cfg.ClientID == "" || cfg.ClientID == sarama.NewConfig().ClientID {
		cfg.ClientID = producerClientID
	}
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Idempotent = true
	cfg.Producer.Return.Successes = true
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	cfg.Net.MaxOpenRequests = 1
	return cfg
}

func (p *Producer) Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := bookingMessage(topic, key, payload, headers)
	if err != nil {
		return err
	}
	if _, _, err := p.sync.SendMessage(msg); err != nil {
		return fmt.Errorf("kafka: publish booking %s to %s: %w", key, topic, err)
	}
	return nil
}

// bookingMessage builds the record with headers in name order.
func bookingMessage(topic, key string, payload []byte, headers map[string]string) (*sarama.ProducerMessage, error) {
	if key == "" {
		return nil, ErrMissingKey
	}
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)
	hs := make([]sarama.RecordHeader, 0, len(names))
	for _, name := range names {
		hs = append(hs, sarama.RecordHeader{Key: []byte(name), Value: []byte(headers[name])})
	}
	return &sarama.ProducerMessage{
		Topic:   topic,
		Key:     sarama.StringEncoder(key),
		Value:   sarama.ByteEncoder(payload),
		Headers: hs,
	}, nil
}

func (p *Producer) Close() error {
	if p.sync == nil {
		return nil
	}
	return p.sync.Close()
}
