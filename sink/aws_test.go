package sink_test

import (
	"context"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kinesis"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/jtest"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/luno/docstream"
	"github.com/luno/docstream/sink"
)

type fakeKinesis struct {
	in  []*kinesis.PutRecordInput
	err error
}

func (f *fakeKinesis) PutRecord(_ context.Context, in *kinesis.PutRecordInput, _ ...func(*kinesis.Options)) (*kinesis.PutRecordOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.in = append(f.in, in)
	return &kinesis.PutRecordOutput{}, nil
}

type fakeSQS struct {
	in  []*sqs.SendMessageInput
	err error
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.in = append(f.in, in)
	return &sqs.SendMessageOutput{}, nil
}

type fakeSNS struct {
	in  []*sns.PublishInput
	err error
}

func (f *fakeSNS) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.in = append(f.in, in)
	return &sns.PublishOutput{}, nil
}

func TestKinesis(t *testing.T) {
	ctx := context.Background()
	api := new(fakeKinesis)
	s := sink.NewKinesis(api, "changes")

	jtest.RequireNil(t, s.Put(ctx, insertEnvelope(t, "82a1", bson.D{{Key: "_id", Value: "o1"}})))

	require.Len(t, api.in, 1)
	require.Equal(t, "changes", aws.ToString(api.in[0].StreamName))
	require.Equal(t, "shop-Orders", aws.ToString(api.in[0].PartitionKey))
	require.JSONEq(t, `{"_id":"o1"}`, string(api.in[0].Data))

	api.err = errors.New("throttled")
	jtest.Require(t, api.err, s.Put(ctx, insertEnvelope(t, "82a2", bson.D{{Key: "_id", Value: "o2"}})))
}

func TestSQS(t *testing.T) {
	ctx := context.Background()
	long := docstream.Position(strings.Repeat("8", 200))

	tests := []struct {
		name     string
		queueURL string
		pos      docstream.Position
		group    string
		dedup    string
	}{
		{
			name:     "fifo",
			queueURL: "https://sqs.eu-west-1.amazonaws.com/123/changes.fifo",
			pos:      "82a1",
			group:    "shop-Orders",
			dedup:    "82a1",
		},
		{
			name:     "fifo long position",
			queueURL: "https://sqs.eu-west-1.amazonaws.com/123/changes.fifo",
			pos:      long,
			group:    "shop-Orders",
		},
		{
			name:     "standard",
			queueURL: "https://sqs.eu-west-1.amazonaws.com/123/changes",
			pos:      "82a1",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			api := new(fakeSQS)
			s := sink.NewSQS(api, test.queueURL)

			e := deleteEnvelope(t, test.pos, int64(7))
			jtest.RequireNil(t, s.Put(ctx, e))

			require.Len(t, api.in, 1)
			in := api.in[0]
			require.Equal(t, test.queueURL, aws.ToString(in.QueueUrl))
			require.JSONEq(t, `{"_id":"7"}`, aws.ToString(in.MessageBody))
			require.Equal(t, test.group, aws.ToString(in.MessageGroupId))

			if test.pos == long {
				require.Len(t, aws.ToString(in.MessageDeduplicationId), 64)
			} else {
				require.Equal(t, test.dedup, aws.ToString(in.MessageDeduplicationId))
			}
		})
	}
}

func TestSNS(t *testing.T) {
	ctx := context.Background()

	api := new(fakeSNS)
	s := sink.NewSNS(api, "arn:aws:sns:eu-west-1:123:changes.fifo")
	jtest.RequireNil(t, s.Put(ctx, insertEnvelope(t, "82a1", bson.D{{Key: "_id", Value: "o1"}})))

	require.Len(t, api.in, 1)
	require.Equal(t, "shop-Orders", aws.ToString(api.in[0].MessageGroupId))
	require.Equal(t, "82a1", aws.ToString(api.in[0].MessageDeduplicationId))
	require.Nil(t, api.in[0].Subject)

	api = new(fakeSNS)
	s = sink.NewSNS(api, "arn:aws:sns:eu-west-1:123:changes")
	jtest.RequireNil(t, s.Put(ctx, insertEnvelope(t, "82a1", bson.D{{Key: "_id", Value: "o1"}})))
	require.Nil(t, api.in[0].MessageGroupId)
}
