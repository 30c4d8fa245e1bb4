package config

import (
	"os"
	"strconv"
	"time"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
)

// FromEnv overlays DOCSTREAM_* environment variables onto cfg. It returns
// ErrInvalidConfig if a numeric or duration variable doesn't parse.
func FromEnv(cfg *Config) error {
	var err error
	str := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		v := os.Getenv(name)
		if v == "" || err != nil {
			return
		}
		n, perr := strconv.Atoi(v)
		if perr != nil {
			err = errors.Wrap(ErrInvalidConfig, "invalid integer",
				j.MKS{"name": name, "value": v})
			return
		}
		*dst = n
	}

	str("DOCSTREAM_SOURCE_URI", &cfg.Source.URI)
	str("DOCSTREAM_SECRET_NAME", &cfg.Source.SecretName)
	str("DOCSTREAM_CA_URL", &cfg.Source.CAURL)
	num("DOCSTREAM_CONNECT_ATTEMPTS", &cfg.Source.ConnectAttempts)

	str("DOCSTREAM_WATCHED_DB", &cfg.Watch.Database)
	str("DOCSTREAM_WATCHED_COLLECTION", &cfg.Watch.Collection)

	str("DOCSTREAM_CHECKPOINT_BACKEND", &cfg.Checkpoint.Backend)
	str("DOCSTREAM_CHECKPOINT_DB", &cfg.Checkpoint.Database)
	str("DOCSTREAM_CHECKPOINT_COLLECTION", &cfg.Checkpoint.Collection)
	str("DOCSTREAM_CHECKPOINT_DSN", &cfg.Checkpoint.DSN)
	str("DOCSTREAM_CHECKPOINT_TABLE", &cfg.Checkpoint.Table)
	str("DOCSTREAM_CHECKPOINT_DIR", &cfg.Checkpoint.Dir)

	num("DOCSTREAM_MAX_EVENTS", &cfg.MaxEvents)
	num("DOCSTREAM_SYNC_EVERY", &cfg.SyncEvery)
	str("DOCSTREAM_CANARY_COLLECTION", &cfg.CanaryCollection)

	str("DOCSTREAM_ALERT_TOPIC_ARN", &cfg.AlertTopicARN)
	str("DOCSTREAM_AWS_REGION", &cfg.AWSRegion)

	str("DOCSTREAM_METRICS_ADDR", &cfg.Serve.MetricsAddr)
	if v := os.Getenv("DOCSTREAM_INTERVAL"); v != "" && err == nil {
		d, perr := time.ParseDuration(v)
		if perr != nil {
			err = errors.Wrap(ErrInvalidConfig, "invalid duration",
				j.MKS{"name": "DOCSTREAM_INTERVAL", "value": v})
		} else {
			cfg.Serve.Interval = d
		}
	}
	if err != nil {
		return err
	}

	sinkEnv := []struct {
		name string
		kind SinkKind
	}{
		{"DOCSTREAM_KAFKA_BOOTSTRAP", SinkKafka},
		{"DOCSTREAM_ELASTICSEARCH_URI", SinkElasticsearch},
		{"DOCSTREAM_S3_BUCKET", SinkS3},
		{"DOCSTREAM_KINESIS_STREAM", SinkKinesis},
		{"DOCSTREAM_SQS_QUEUE_URL", SinkSQS},
		{"DOCSTREAM_SNS_EVENT_TOPIC_ARN", SinkSNS},
	}
	for _, se := range sinkEnv {
		v := os.Getenv(se.name)
		if v == "" {
			continue
		}
		setSink(cfg, SinkTarget{
			Kind:    se.kind,
			Enabled: true,
			Address: v,
		})
	}
	if v := os.Getenv("DOCSTREAM_S3_PATH"); v != "" {
		for i := range cfg.Sinks {
			if cfg.Sinks[i].Kind == SinkS3 {
				cfg.Sinks[i].Path = v
			}
		}
	}

	return nil
}

// setSink replaces the first target of the same kind or appends it.
func setSink(cfg *Config, t SinkTarget) {
	for i := range cfg.Sinks {
		if cfg.Sinks[i].Kind == t.Kind {
			t.Path = cfg.Sinks[i].Path
			cfg.Sinks[i] = t
			return
		}
	}
	cfg.Sinks = append(cfg.Sinks, t)
}
