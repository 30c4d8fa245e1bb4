// Package app builds the process wide dependencies of a docstream
// replicator from config.
package app

import (
	"context"
	"database/sql"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kinesis"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	_ "github.com/go-sql-driver/mysql"
	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
	"github.com/luno/jettison/log"

	"github.com/luno/docstream"
	"github.com/luno/docstream/alert"
	"github.com/luno/docstream/config"
	"github.com/luno/docstream/dmongo"
	"github.com/luno/docstream/dpebble"
	"github.com/luno/docstream/dsql"
	"github.com/luno/docstream/internal/secrets"
	"github.com/luno/docstream/sink"
)

// Option configures New.
type Option func(*options)

type options struct {
	awsConfig *aws.Config
	secrets   secrets.API
	sinks     *sink.Clients
}

// WithAWSConfig replaces loading the default AWS config.
func WithAWSConfig(cfg aws.Config) Option {
	return func(o *options) {
		o.awsConfig = &cfg
	}
}

// WithSecretsAPI replaces the secrets manager client.
func WithSecretsAPI(api secrets.API) Option {
	return func(o *options) {
		o.secrets = api
	}
}

// WithSinkClients replaces the clients sinks are built from.
func WithSinkClients(c sink.Clients) Option {
	return func(o *options) {
		o.sinks = &c
	}
}

// Deps are the dependencies shared by all runs of a process. Build them
// once with New and Close them on exit.
type Deps struct {
	Config  config.Config
	Mongo   *dmongo.Client
	Alerter docstream.Alerter
	Spec    docstream.Spec

	closers []func(ctx context.Context) error
}

// New validates the config and builds the dependencies. Credential
// failures are alerted since no run will be able to alert them.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*Deps, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	awsCfg, err := loadAWSConfig(ctx, cfg, o)
	if err != nil {
		return nil, err
	}

	d := &Deps{Config: cfg}
	d.Alerter = newAlerter(cfg, sns.NewFromConfig(awsCfg))

	d.Mongo, err = newMongo(ctx, cfg, awsCfg, o)
	if errors.Is(err, docstream.ErrCredentials) {
		_ = d.Alerter.Alert(ctx, docstream.AlertSubject, err)
		return nil, err
	} else if err != nil {
		return nil, err
	}
	d.closers = append(d.closers, d.Mongo.Disconnect)

	cstore, err := d.newCheckpointStore(cfg)
	if err != nil {
		return nil, d.closeOnErr(ctx, err)
	}

	clients := sinkClients(awsCfg)
	if o.sinks != nil {
		clients = *o.sinks
	}
	sinks, err := sink.Build(ctx, clients, cfg.Sinks)
	if err != nil {
		return nil, d.closeOnErr(ctx, err)
	}

	scope := docstream.Scope{Database: cfg.Watch.Database, Collection: cfg.Watch.Collection}
	d.Spec = docstream.NewSpec(scope,
		dmongo.NewFeed(d.Mongo),
		cstore,
		docstream.NewDispatcher(sinks...),
		docstream.WithMaxEvents(cfg.MaxEvents),
		docstream.WithSyncEvery(cfg.SyncEvery),
		docstream.WithCanary(dmongo.NewCanaryWriter(d.Mongo,
			dmongo.WithCanaryCollection(cfg.CanaryCollection))),
		docstream.WithAlerter(d.Alerter),
	)

	log.Info(ctx, "docstream configured", j.MKV{
		"scope":      scope.String(),
		"checkpoint": cfg.Checkpoint.Backend,
		"sinks":      len(sinks),
	})

	return d, nil
}

// Close releases the dependencies in reverse order of creation.
func (d *Deps) Close(ctx context.Context) error {
	var first error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](ctx); err != nil {
			log.Error(ctx, errors.Wrap(err, "close dependency"))
			if first == nil {
				first = err
			}
		}
	}
	d.closers = nil
	return first
}

func (d *Deps) closeOnErr(ctx context.Context, err error) error {
	_ = d.Close(ctx)
	return err
}

func loadAWSConfig(ctx context.Context, cfg config.Config, o options) (aws.Config, error) {
	if o.awsConfig != nil {
		return *o.awsConfig, nil
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.AWSRegion != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.AWSRegion))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, errors.Wrap(err, "load aws config")
	}
	return awsCfg, nil
}

func newAlerter(cfg config.Config, api sink.SNSAPI) docstream.Alerter {
	if cfg.AlertTopicARN == "" {
		return alert.Log{}
	}
	return alert.NewSNS(api, cfg.AlertTopicARN)
}

func newMongo(ctx context.Context, cfg config.Config, awsCfg aws.Config, o options) (*dmongo.Client, error) {
	opts := []dmongo.ClientOption{
		dmongo.WithConnectAttempts(cfg.Source.ConnectAttempts, 0),
	}

	if cfg.Source.SecretName != "" {
		api := o.secrets
		if api == nil {
			api = secretsmanager.NewFromConfig(awsCfg)
		}
		creds, err := secrets.Get(ctx, api, cfg.Source.SecretName)
		if err != nil {
			return nil, err
		}
		opts = append(opts, dmongo.WithCredentials(creds.Username, creds.Password))
	}

	if cfg.Source.CAURL != "" {
		pem, err := dmongo.LoadCA(ctx, cfg.Source.CAURL)
		if err != nil {
			return nil, err
		}
		tlsCfg, err := dmongo.TLSConfig(pem)
		if err != nil {
			return nil, err
		}
		opts = append(opts, dmongo.WithTLSConfig(tlsCfg))
	}

	return dmongo.NewClient(cfg.Source.URI, opts...), nil
}

func (d *Deps) newCheckpointStore(cfg config.Config) (docstream.CheckpointStore, error) {
	c := cfg.Checkpoint
	switch c.Backend {
	case config.BackendMongo:
		return dmongo.NewCheckpointStore(d.Mongo, c.Database, c.Collection), nil

	case config.BackendMySQL:
		dbc, err := sql.Open("mysql", c.DSN)
		if err != nil {
			return nil, errors.Wrap(err, "open checkpoint db")
		}
		d.closers = append(d.closers, func(context.Context) error { return dbc.Close() })
		return dsql.NewCheckpointsTable(c.Table).ToStore(dbc), nil

	case config.BackendPebble:
		s, err := dpebble.Open(c.Dir)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, func(context.Context) error { return s.Close() })
		return s, nil
	}

	return nil, errors.Wrap(config.ErrInvalidConfig, "unknown checkpoint backend", j.KS("backend", c.Backend))
}

func sinkClients(awsCfg aws.Config) sink.Clients {
	return sink.Clients{
		S3:      s3.NewFromConfig(awsCfg),
		Kinesis: kinesis.NewFromConfig(awsCfg),
		SQS:     sqs.NewFromConfig(awsCfg),
		SNS:     sns.NewFromConfig(awsCfg),
	}
}
