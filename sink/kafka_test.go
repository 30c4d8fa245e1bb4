package sink_test

import (
	"context"
	"testing"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/jtest"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"

	"github.com/luno/docstream/internal/tracing"
	"github.com/luno/docstream/sink"
)

type fakeProducer struct {
	msgs       []*kafka.Message
	produceErr error
	deliverErr error
	remaining  int
	flushed    int
	closed     int
}

func (p *fakeProducer) Produce(msg *kafka.Message, ch chan kafka.Event) error {
	if p.produceErr != nil {
		return p.produceErr
	}
	p.msgs = append(p.msgs, msg)

	report := *msg
	report.TopicPartition.Error = p.deliverErr
	ch <- &report
	return nil
}

func (p *fakeProducer) Flush(int) int {
	p.flushed++
	return p.remaining
}

func (p *fakeProducer) Close() {
	p.closed++
}

func newTestKafka(t *testing.T) (*sink.Kafka, *[]*fakeProducer) {
	var producers []*fakeProducer
	k := sink.NewKafka("localhost:9092", sink.WithProducerFunc(func() (sink.Producer, error) {
		p := new(fakeProducer)
		producers = append(producers, p)
		return p, nil
	}))
	return k, &producers
}

func TestKafkaPut(t *testing.T) {
	ctx := context.Background()
	k, producers := newTestKafka(t)

	e := insertEnvelope(t, "82a1", bson.D{{Key: "_id", Value: "o1"}, {Key: "total", Value: 5}})
	jtest.RequireNil(t, k.Put(ctx, e))
	jtest.RequireNil(t, k.Put(ctx, deleteEnvelope(t, "82a2", "o1")))

	require.Len(t, *producers, 1)
	p := (*producers)[0]
	require.Len(t, p.msgs, 2)

	msg := p.msgs[0]
	require.Equal(t, "shop-Orders", *msg.TopicPartition.Topic)
	require.Equal(t, kafka.PartitionAny, msg.TopicPartition.Partition)
	require.Equal(t, []byte("82a1"), msg.Key)
	require.JSONEq(t, `{"_id":"o1","total":5}`, string(msg.Value))
	require.Empty(t, msg.Headers)

	require.JSONEq(t, `{"_id":"o1"}`, string(p.msgs[1].Value))
}

func TestKafkaStop(t *testing.T) {
	ctx := context.Background()
	k, producers := newTestKafka(t)

	// No producer yet.
	jtest.RequireNil(t, k.Stop())
	require.Empty(t, *producers)

	e := insertEnvelope(t, "82a1", bson.D{{Key: "_id", Value: "o1"}})
	jtest.RequireNil(t, k.Put(ctx, e))
	jtest.RequireNil(t, k.Stop())

	p := (*producers)[0]
	require.Equal(t, 1, p.flushed)
	require.Equal(t, 1, p.closed)

	// A new producer per run.
	jtest.RequireNil(t, k.Put(ctx, e))
	require.Len(t, *producers, 2)

	(*producers)[1].remaining = 3
	require.Error(t, k.Stop())
	require.Equal(t, 1, (*producers)[1].closed)
}

func TestKafkaErrors(t *testing.T) {
	ctx := context.Background()
	e := insertEnvelope(t, "82a1", bson.D{{Key: "_id", Value: "o1"}})
	errBoom := errors.New("boom")

	t.Run("produce", func(t *testing.T) {
		k := sink.NewKafka("", sink.WithProducerFunc(func() (sink.Producer, error) {
			return &fakeProducer{produceErr: errBoom}, nil
		}))
		jtest.Require(t, errBoom, k.Put(ctx, e))
	})

	t.Run("delivery", func(t *testing.T) {
		k := sink.NewKafka("", sink.WithProducerFunc(func() (sink.Producer, error) {
			return &fakeProducer{deliverErr: errBoom}, nil
		}))
		jtest.Require(t, errBoom, k.Put(ctx, e))
	})

	t.Run("new producer", func(t *testing.T) {
		k := sink.NewKafka("", sink.WithProducerFunc(func() (sink.Producer, error) {
			return nil, errBoom
		}))
		jtest.Require(t, errBoom, k.Put(ctx, e))
	})
}

func TestKafkaTraceHeader(t *testing.T) {
	k, producers := newTestKafka(t)

	tp := tracesdk.NewTracerProvider()
	ctx, span := tp.Tracer("test").Start(context.Background(), "put")
	defer span.End()

	e := insertEnvelope(t, "82a1", bson.D{{Key: "_id", Value: "o1"}})
	jtest.RequireNil(t, k.Put(ctx, e))

	msg := (*producers)[0].msgs[0]
	require.Len(t, msg.Headers, 1)
	require.Equal(t, tracing.Header, msg.Headers[0].Key)

	sc, err := tracing.Unmarshal(msg.Headers[0].Value)
	jtest.RequireNil(t, err)
	require.Equal(t, span.SpanContext().TraceID(), sc.TraceID())
}
