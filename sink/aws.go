package sink

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kinesis"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"

	"github.com/luno/docstream"
)

// KinesisAPI is the subset of *kinesis.Client used by the kinesis sink.
type KinesisAPI interface {
	PutRecord(ctx context.Context, in *kinesis.PutRecordInput, optFns ...func(*kinesis.Options)) (*kinesis.PutRecordOutput, error)
}

// SQSAPI is the subset of *sqs.Client used by the sqs sink.
type SQSAPI interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SNSAPI is the subset of *sns.Client used by the sns sink and alerter.
type SNSAPI interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// NewKinesis returns a sink putting payloads to the stream with the
// "<db>-<coll>" partition key so that events of a collection stay ordered
// within a shard.
func NewKinesis(api KinesisAPI, stream string) *Kinesis {
	return &Kinesis{api: api, stream: stream}
}

// Kinesis is a docstream.Sink.
type Kinesis struct {
	api    KinesisAPI
	stream string
}

func (k *Kinesis) Name() string {
	return "kinesis"
}

func (k *Kinesis) Put(ctx context.Context, e docstream.Envelope) error {
	data, err := e.Payload.JSON()
	if err != nil {
		return err
	}

	_, err = k.api.PutRecord(ctx, &kinesis.PutRecordInput{
		StreamName:   aws.String(k.stream),
		Data:         data,
		PartitionKey: aws.String(e.RoutingKey()),
	})
	if err != nil {
		return errors.Wrap(err, "put record", j.KS("stream", k.stream))
	}
	return nil
}

// NewSQS returns a sink sending payloads to the queue. For FIFO queues
// messages are grouped by "<db>-<coll>" and deduplicated by position.
func NewSQS(api SQSAPI, queueURL string) *SQS {
	return &SQS{api: api, queueURL: queueURL, fifo: strings.HasSuffix(queueURL, ".fifo")}
}

// SQS is a docstream.Sink.
type SQS struct {
	api      SQSAPI
	queueURL string
	fifo     bool
}

func (s *SQS) Name() string {
	return "sqs"
}

func (s *SQS) Put(ctx context.Context, e docstream.Envelope) error {
	body, err := e.Payload.JSON()
	if err != nil {
		return err
	}

	in := &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(body)),
	}
	if s.fifo {
		in.MessageGroupId = aws.String(e.RoutingKey())
		in.MessageDeduplicationId = aws.String(e.DedupKey())
	}

	if _, err := s.api.SendMessage(ctx, in); err != nil {
		return errors.Wrap(err, "send message", j.KS("queue", s.queueURL))
	}
	return nil
}

// NewSNS returns a sink publishing payloads to the topic. For FIFO topics
// messages are grouped by "<db>-<coll>" and deduplicated by position.
func NewSNS(api SNSAPI, topicARN string) *SNS {
	return &SNS{api: api, topicARN: topicARN, fifo: strings.HasSuffix(topicARN, ".fifo")}
}

// SNS is a docstream.Sink.
type SNS struct {
	api      SNSAPI
	topicARN string
	fifo     bool
}

func (s *SNS) Name() string {
	return "sns"
}

func (s *SNS) Put(ctx context.Context, e docstream.Envelope) error {
	body, err := e.Payload.JSON()
	if err != nil {
		return err
	}

	in := &sns.PublishInput{
		TopicArn: aws.String(s.topicARN),
		Message:  aws.String(string(body)),
	}
	if s.fifo {
		in.MessageGroupId = aws.String(e.RoutingKey())
		in.MessageDeduplicationId = aws.String(e.DedupKey())
	}

	if _, err := s.api.Publish(ctx, in); err != nil {
		return errors.Wrap(err, "publish", j.KS("topic", s.topicARN))
	}
	return nil
}

var (
	_ docstream.Sink = (*Kinesis)(nil)
	_ docstream.Sink = (*SQS)(nil)
	_ docstream.Sink = (*SNS)(nil)
)
