package sink

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
	"gocloud.dev/blob"
	"gocloud.dev/blob/s3blob"

	"github.com/luno/docstream"
	"github.com/luno/docstream/config"
)

// Clients holds the process wide clients sinks are built from. Only the
// clients of enabled sink kinds are required.
type Clients struct {
	S3      *s3.Client
	Kinesis KinesisAPI
	SQS     SQSAPI
	SNS     SNSAPI

	// OpenBucket overrides opening s3 buckets with the S3 client.
	OpenBucket func(ctx context.Context, name string) (*blob.Bucket, error)

	KafkaOptions []KafkaOption
}

func (c Clients) openBucket(ctx context.Context, name string) (*blob.Bucket, error) {
	if c.OpenBucket != nil {
		return c.OpenBucket(ctx, name)
	}
	if c.S3 == nil {
		return nil, errors.New("s3 client required")
	}
	return s3blob.OpenBucketV2(ctx, c.S3, name, nil)
}

// Build returns the enabled sinks of the targets in declared order.
func Build(ctx context.Context, c Clients, targets []config.SinkTarget) ([]docstream.Sink, error) {
	var res []docstream.Sink
	for _, t := range targets {
		if !t.Enabled {
			continue
		}

		s, err := build(ctx, c, t)
		if err != nil {
			return nil, errors.Wrap(err, "build sink", j.KS("kind", string(t.Kind)))
		}
		res = append(res, s)
	}
	return res, nil
}

func build(ctx context.Context, c Clients, t config.SinkTarget) (docstream.Sink, error) {
	switch t.Kind {
	case config.SinkKafka:
		return NewKafka(t.Address, c.KafkaOptions...), nil

	case config.SinkElasticsearch:
		es, err := NewElasticClient(t.Address)
		if err != nil {
			return nil, err
		}
		return NewElastic(es), nil

	case config.SinkS3:
		bucket, err := c.openBucket(ctx, t.Address)
		if err != nil {
			return nil, errors.Wrap(err, "open bucket", j.KS("bucket", t.Address))
		}
		return NewBlob(bucket, t.Path), nil

	case config.SinkKinesis:
		if c.Kinesis == nil {
			return nil, errors.New("kinesis client required")
		}
		return NewKinesis(c.Kinesis, t.Address), nil

	case config.SinkSQS:
		if c.SQS == nil {
			return nil, errors.New("sqs client required")
		}
		return NewSQS(c.SQS, t.Address), nil

	case config.SinkSNS:
		if c.SNS == nil {
			return nil, errors.New("sns client required")
		}
		return NewSNS(c.SNS, t.Address), nil
	}

	return nil, errors.Wrap(config.ErrInvalidConfig, "unknown sink kind")
}
