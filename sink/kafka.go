package sink

import (
	"context"
	"sync"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"

	"github.com/luno/docstream"
	"github.com/luno/docstream/internal/tracing"
)

const defaultFlushTimeout = 10 * time.Second

// Producer is the subset of *kafka.Producer used by the kafka sink.
type Producer interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
	Flush(timeoutMs int) int
	Close()
}

// KafkaOption configures the kafka sink.
type KafkaOption func(*Kafka)

// WithProducerFunc replaces the function creating producers, ex. for testing.
func WithProducerFunc(f func() (Producer, error)) KafkaOption {
	return func(k *Kafka) {
		k.newProducer = f
	}
}

// WithFlushTimeout sets how long Stop waits for outstanding messages.
// It defaults to 10 seconds.
func WithFlushTimeout(d time.Duration) KafkaOption {
	return func(k *Kafka) {
		k.flushTimeout = d
	}
}

// NewKafka returns a sink publishing payloads to the "<db>-<coll>" topic
// keyed by the event position. A producer is created on the first put of
// every run and closed by Stop.
func NewKafka(bootstrapServers string, opts ...KafkaOption) *Kafka {
	k := &Kafka{
		flushTimeout: defaultFlushTimeout,
		newProducer: func() (Producer, error) {
			return kafka.NewProducer(&kafka.ConfigMap{
				"bootstrap.servers":   bootstrapServers,
				"acks":                "all",
				"enable.idempotence":  true,
				"delivery.timeout.ms": 10000,
			})
		},
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Kafka is a docstream.Sink and docstream.Stopper.
type Kafka struct {
	newProducer  func() (Producer, error)
	flushTimeout time.Duration

	mu       sync.Mutex
	producer Producer
}

func (k *Kafka) Name() string {
	return "kafka"
}

func (k *Kafka) getProducer() (Producer, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.producer != nil {
		return k.producer, nil
	}

	p, err := k.newProducer()
	if err != nil {
		return nil, errors.Wrap(err, "new kafka producer")
	}
	k.producer = p
	return p, nil
}

// Put produces the message and waits for its delivery report.
func (k *Kafka) Put(ctx context.Context, e docstream.Envelope) error {
	p, err := k.getProducer()
	if err != nil {
		return err
	}

	value, err := e.Payload.JSON()
	if err != nil {
		return err
	}

	topic := e.RoutingKey()
	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            []byte(e.Event.Position),
		Value:          value,
	}
	if tp := tracing.Encode(ctx); tp != nil {
		msg.Headers = append(msg.Headers, kafka.Header{Key: tracing.Header, Value: tp})
	}

	delivery := make(chan kafka.Event, 1)
	if err := p.Produce(msg, delivery); err != nil {
		return errors.Wrap(err, "produce", j.KS("topic", topic))
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case ev := <-delivery:
		m, ok := ev.(*kafka.Message)
		if !ok {
			return errors.New("unexpected delivery event", j.KS("event", ev.String()))
		}
		if m.TopicPartition.Error != nil {
			return errors.Wrap(m.TopicPartition.Error, "delivery failed", j.KS("topic", topic))
		}
		return nil
	}
}

// Stop flushes and closes the producer. The next put creates a new one.
func (k *Kafka) Stop() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.producer == nil {
		return nil
	}

	p := k.producer
	k.producer = nil

	remaining := p.Flush(int(k.flushTimeout / time.Millisecond))
	p.Close()

	if remaining > 0 {
		return errors.New("kafka messages not flushed", j.KV("remaining", remaining))
	}
	return nil
}

var (
	_ docstream.Sink    = (*Kafka)(nil)
	_ docstream.Stopper = (*Kafka)(nil)
)
