package sink_test

import (
	"context"
	"testing"

	"github.com/luno/jettison/jtest"
	"github.com/stretchr/testify/require"
	"gocloud.dev/blob"
	"gocloud.dev/blob/memblob"

	"github.com/luno/docstream/config"
	"github.com/luno/docstream/sink"
)

func testClients() sink.Clients {
	return sink.Clients{
		Kinesis: new(fakeKinesis),
		SQS:     new(fakeSQS),
		SNS:     new(fakeSNS),
		OpenBucket: func(context.Context, string) (*blob.Bucket, error) {
			return memblob.OpenBucket(nil), nil
		},
	}
}

func TestBuild(t *testing.T) {
	ctx := context.Background()

	targets := []config.SinkTarget{
		{Kind: config.SinkSQS, Enabled: true, Address: "https://sqs/q.fifo"},
		{Kind: config.SinkKafka, Enabled: true, Address: "localhost:9092"},
		{Kind: config.SinkSNS, Enabled: false, Address: "arn"},
		{Kind: config.SinkElasticsearch, Enabled: true, Address: "http://localhost:9200"},
		{Kind: config.SinkS3, Enabled: true, Address: "bucket", Path: "raw"},
		{Kind: config.SinkKinesis, Enabled: true, Address: "stream"},
	}

	sinks, err := sink.Build(ctx, testClients(), targets)
	jtest.RequireNil(t, err)

	var names []string
	for _, s := range sinks {
		names = append(names, s.Name())
	}
	require.Equal(t, []string{"sqs", "kafka", "elasticsearch", "s3", "kinesis"}, names)
}

func TestBuildErrors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		target config.SinkTarget
	}{
		{name: "unknown", target: config.SinkTarget{Kind: "ftp", Enabled: true}},
		{name: "no kinesis client", target: config.SinkTarget{Kind: config.SinkKinesis, Enabled: true, Address: "s"}},
		{name: "no sqs client", target: config.SinkTarget{Kind: config.SinkSQS, Enabled: true, Address: "q"}},
		{name: "no sns client", target: config.SinkTarget{Kind: config.SinkSNS, Enabled: true, Address: "t"}},
		{name: "no s3 client", target: config.SinkTarget{Kind: config.SinkS3, Enabled: true, Address: "b"}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := sink.Build(ctx, sink.Clients{}, []config.SinkTarget{test.target})
			require.Error(t, err)
		})
	}
}
