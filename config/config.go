package config

import (
	"os"
	"time"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config", j.C("ERR_4d8b1e2f6a0c3957"))

// SinkKind identifies a sink adapter.
type SinkKind string

const (
	SinkKafka         SinkKind = "kafka"
	SinkElasticsearch SinkKind = "elasticsearch"
	SinkS3            SinkKind = "s3"
	SinkKinesis       SinkKind = "kinesis"
	SinkSQS           SinkKind = "sqs"
	SinkSNS           SinkKind = "sns"
)

// Valid returns true if the kind is a known sink.
func (k SinkKind) Valid() bool {
	switch k {
	case SinkKafka, SinkElasticsearch, SinkS3, SinkKinesis, SinkSQS, SinkSNS:
		return true
	}
	return false
}

// Checkpoint backends.
const (
	BackendMongo  = "mongo"
	BackendMySQL  = "mysql"
	BackendPebble = "pebble"
)

// Config is the top-level configuration loaded from file and env.
type Config struct {
	Source     Source       `yaml:"source"`
	Watch      Watch        `yaml:"watch"`
	Checkpoint Checkpoint   `yaml:"checkpoint"`
	Sinks      []SinkTarget `yaml:"sinks"`

	// MaxEvents caps the events read per run.
	MaxEvents int `yaml:"maxEvents"`
	// SyncEvery is the number of events between checkpoint writes.
	SyncEvery int `yaml:"syncEvery"`
	// CanaryCollection is used to bootstrap database level scopes.
	CanaryCollection string `yaml:"canaryCollection"`

	AlertTopicARN string `yaml:"alertTopicArn"`
	AWSRegion     string `yaml:"awsRegion"`

	Serve Serve `yaml:"serve"`
}

// Source configures the DocumentDB connection.
type Source struct {
	URI string `yaml:"uri"`
	// SecretName is the secrets manager secret holding
	// {"username": ..., "password": ...}.
	SecretName string `yaml:"secretName"`
	// CAURL is a path or blob URL of the CA bundle.
	CAURL           string `yaml:"caUrl"`
	ConnectAttempts int    `yaml:"connectAttempts"`
}

// Watch is the watched scope. An empty collection watches the database.
type Watch struct {
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

// Checkpoint configures where positions are stored.
type Checkpoint struct {
	Backend    string `yaml:"backend"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
	DSN        string `yaml:"dsn"`
	Table      string `yaml:"table"`
	Dir        string `yaml:"dir"`
}

// SinkTarget is a declared sink. Address is the bootstrap servers, URL,
// bucket, stream, queue URL or topic ARN depending on the kind. Path is an
// optional object key prefix for s3.
type SinkTarget struct {
	Kind    SinkKind `yaml:"kind"`
	Enabled bool     `yaml:"enabled"`
	Address string   `yaml:"address"`
	Path    string   `yaml:"path"`
}

// Serve configures the long running mode.
type Serve struct {
	MetricsAddr string        `yaml:"metricsAddr"`
	Interval    time.Duration `yaml:"interval"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		Checkpoint: Checkpoint{
			Backend:    BackendMongo,
			Collection: "docstream_state",
			Table:      "docstream_checkpoints",
		},
		MaxEvents:        1000,
		SyncEvery:        100,
		CanaryCollection: "canary-collection",
		Source: Source{
			ConnectAttempts: 5,
		},
		Serve: Serve{
			MetricsAddr: ":9090",
			Interval:    time.Minute,
		},
	}
}

// Load reads the YAML file over the defaults and overlays DOCSTREAM_*
// environment variables. If path is empty only the environment is used.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrap(err, "read config", j.KS("path", path))
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, errors.Wrap(err, "parse config", j.KS("path", path))
		}
	}

	if err := FromEnv(&cfg); err != nil {
		return Config{}, err
	}

	// State lives next to the watched data unless configured.
	if cfg.Checkpoint.Database == "" {
		cfg.Checkpoint.Database = cfg.Watch.Database
	}

	return cfg, nil
}

// Validate statically checks the config.
func (c Config) Validate() error {
	if c.Source.URI == "" {
		return errors.Wrap(ErrInvalidConfig, "source uri required")
	}
	if c.Watch.Database == "" {
		return errors.Wrap(ErrInvalidConfig, "watched database required")
	}
	if c.MaxEvents <= 0 {
		return errors.Wrap(ErrInvalidConfig, "max events must be positive", j.KV("max_events", c.MaxEvents))
	}
	if c.SyncEvery <= 0 {
		return errors.Wrap(ErrInvalidConfig, "sync every must be positive", j.KV("sync_every", c.SyncEvery))
	}
	if c.Watch.Collection == "" && c.CanaryCollection == "" {
		return errors.Wrap(ErrInvalidConfig, "canary collection required for database scope")
	}

	if err := c.Checkpoint.validate(); err != nil {
		return err
	}

	var enabled int
	for i, s := range c.Sinks {
		if !s.Kind.Valid() {
			return errors.Wrap(ErrInvalidConfig, "unknown sink kind", j.MKV{"index": i, "kind": string(s.Kind)})
		}
		if !s.Enabled {
			continue
		}
		if s.Address == "" {
			return errors.Wrap(ErrInvalidConfig, "sink address required", j.KS("kind", string(s.Kind)))
		}
		enabled++
	}
	if enabled == 0 {
		return errors.Wrap(ErrInvalidConfig, "no enabled sinks")
	}

	return nil
}

func (c Checkpoint) validate() error {
	switch c.Backend {
	case BackendMongo:
		if c.Database == "" || c.Collection == "" {
			return errors.Wrap(ErrInvalidConfig, "checkpoint database and collection required")
		}
	case BackendMySQL:
		if c.DSN == "" || c.Table == "" {
			return errors.Wrap(ErrInvalidConfig, "checkpoint dsn and table required")
		}
	case BackendPebble:
		if c.Dir == "" {
			return errors.Wrap(ErrInvalidConfig, "checkpoint dir required")
		}
	default:
		return errors.Wrap(ErrInvalidConfig, "unknown checkpoint backend", j.KS("backend", c.Backend))
	}
	return nil
}

// EnabledSinks returns the enabled sink targets in declared order.
func (c Config) EnabledSinks() []SinkTarget {
	var res []SinkTarget
	for _, s := range c.Sinks {
		if s.Enabled {
			res = append(res, s)
		}
	}
	return res
}
