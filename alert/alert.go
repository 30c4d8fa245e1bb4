// Package alert provides docstream.Alerter implementations used to notify
// operators of failed runs.
package alert

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/google/uuid"
	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
	"github.com/luno/jettison/log"

	"github.com/luno/docstream"
	"github.com/luno/docstream/sink"
)

// Log is an alerter that only logs.
type Log struct{}

func (Log) Alert(ctx context.Context, subject string, err error) error {
	log.Error(ctx, errors.Wrap(err, subject))
	return nil
}

// SNSOption configures an SNS alerter.
type SNSOption func(*SNS)

// WithNewID replaces the alert id generator.
func WithNewID(f func() string) SNSOption {
	return func(s *SNS) {
		s.newID = f
	}
}

// NewSNS returns an alerter publishing to the topic.
func NewSNS(api sink.SNSAPI, topicARN string, opts ...SNSOption) *SNS {
	s := &SNS{
		api:      api,
		topicARN: topicARN,
		newID:    uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SNS publishes alerts to an SNS topic. A failed publish is retried once;
// if that also fails the error is logged and returned.
type SNS struct {
	api      sink.SNSAPI
	topicARN string
	newID    func() string
}

func (s *SNS) Alert(ctx context.Context, subject string, cause error) error {
	id := s.newID()
	in := &sns.PublishInput{
		TopicArn: aws.String(s.topicARN),
		Subject:  aws.String(subject),
		Message:  aws.String(cause.Error()),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"alert_id": {
				DataType:    aws.String("String"),
				StringValue: aws.String(id),
			},
		},
	}

	var err error
	for i := 0; i < 2; i++ {
		if _, err = s.api.Publish(ctx, in); err == nil {
			return nil
		}
	}

	err = errors.Wrap(err, "publish alert", j.MKS{"topic": s.topicARN, "alert_id": id})
	log.Error(ctx, err)
	return err
}

var (
	_ docstream.Alerter = Log{}
	_ docstream.Alerter = (*SNS)(nil)
)
