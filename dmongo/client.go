package dmongo

import (
	"context"
	"crypto/tls"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"
	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
	"github.com/luno/jettison/log"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/luno/docstream"
	"github.com/luno/docstream/internal/metrics"
)

const (
	defaultConnectAttempts = 5
	defaultConnectDelay    = 500 * time.Millisecond
	defaultMaxConnectDelay = 10 * time.Second
)

// Connector returns a connected mongo client.
type Connector interface {
	Connect(ctx context.Context) (*mongo.Client, error)
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithCredentials provides the username and password used to authenticate.
func WithCredentials(username, password string) ClientOption {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

// WithTLSConfig provides the TLS config, ex. from TLSConfig.
func WithTLSConfig(cfg *tls.Config) ClientOption {
	return func(c *Client) {
		c.tls = cfg
	}
}

// WithConnectAttempts provides an option to configure the number of
// connection attempts and the initial delay between them. The delay
// doubles after every failed attempt. Non-positive values keep the
// defaults.
func WithConnectAttempts(n int, delay time.Duration) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.attempts = n
		}
		if delay > 0 {
			c.delay = delay
		}
	}
}

// WithClock replaces the clock used to wait between connection attempts.
func WithClock(clk clock.Clock) ClientOption {
	return func(c *Client) {
		c.clock = clk
	}
}

// withDial replaces the dial function for testing.
func withDial(f func(ctx context.Context, opts *options.ClientOptions) (*mongo.Client, error)) ClientOption {
	return func(c *Client) {
		c.dial = f
	}
}

// Client lazily connects to DocumentDB or MongoDB on first use and reuses
// the connection afterwards. It is safe for concurrent use.
type Client struct {
	uri      string
	username string
	password string
	tls      *tls.Config
	attempts int
	delay    time.Duration
	clock    clock.Clock
	dial     func(ctx context.Context, opts *options.ClientOptions) (*mongo.Client, error)

	mu        sync.Mutex
	connected bool
	client    *mongo.Client
}

// NewClient returns a new client for the connection string. It does not
// connect.
func NewClient(uri string, opts ...ClientOption) *Client {
	c := &Client{
		uri:      uri,
		attempts: defaultConnectAttempts,
		delay:    defaultConnectDelay,
		clock:    clock.WallClock,
		dial:     dial,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect returns the connected client, connecting with retries if not
// yet connected. It returns ErrConnect if all attempts fail.
func (c *Client) Connect(ctx context.Context) (*mongo.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return c.client, nil
	}

	co := options.Client().ApplyURI(c.uri).
		SetRetryWrites(false) // Not supported by DocumentDB.
	if c.username != "" {
		co.SetAuth(options.Credential{Username: c.username, Password: c.password})
	}
	if c.tls != nil {
		co.SetTLSConfig(c.tls)
	}

	var client *mongo.Client
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			var err error
			client, err = c.dial(ctx, co)
			return err
		},
		IsFatalError: func(err error) bool {
			return errors.IsAny(err, context.Canceled, context.DeadlineExceeded)
		},
		NotifyFunc: func(err error, attempt int) {
			metrics.ConnectAttempts.Inc()
			log.Info(ctx, "connect attempt failed", j.MKV{"attempt": attempt, "error": err.Error()})
		},
		Attempts:    c.attempts,
		Delay:       c.delay,
		MaxDelay:    defaultMaxConnectDelay,
		BackoffFunc: retry.DoubleDelay,
		Clock:       c.clock,
		Stop:        ctx.Done(),
	})
	if retry.IsAttemptsExceeded(err) {
		if last := retry.LastError(err); last != nil {
			log.Error(ctx, errors.Wrap(last, "last connect error"))
		}
		return nil, errors.Wrap(docstream.ErrConnect, "", j.KV("attempts", c.attempts))
	} else if err != nil {
		return nil, errors.Wrap(err, "connect")
	}

	c.client = client
	c.connected = true

	return client, nil
}

// Disconnect closes the connection if connected.
func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil
	}

	c.connected = false
	client := c.client
	c.client = nil

	if client == nil {
		return nil
	}
	return client.Disconnect(ctx)
}

func dial(ctx context.Context, opts *options.ClientOptions) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	return client, nil
}
