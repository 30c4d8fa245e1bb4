// Command docstream replicates DocumentDB change streams to sinks.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
	"github.com/luno/jettison/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/luno/docstream"
	"github.com/luno/docstream/config"
	"github.com/luno/docstream/dpatterns"
	"github.com/luno/docstream/internal/app"
)

func main() {
	if err := newRoot().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRoot() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "docstream",
		Short:         "Replicate DocumentDB change streams to sinks",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to the YAML config file")

	root.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run one bounded replication invocation and print the result",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOnce(cmd.Context(), configPath)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run replication on an interval and expose metrics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), configPath)
		},
	})

	return root
}

// response is the invocation result printed by run.
type response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

func setup(ctx context.Context, configPath string) (*app.Deps, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg)
}

func runOnce(ctx context.Context, configPath string) error {
	d, err := setup(ctx, configPath)
	if err != nil {
		log.Error(ctx, errors.Wrap(err, "setup"))
		return err
	}
	defer d.Close(ctx)

	res, err := docstream.Run(ctx, d.Spec)
	if err != nil {
		log.Error(ctx, errors.Wrap(err, "run"))
		return err
	}

	b, err := json.Marshal(response{StatusCode: res.Code(), Body: res.Detail()})
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func serve(ctx context.Context, configPath string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := setup(ctx, configPath)
	if err != nil {
		log.Error(ctx, errors.Wrap(err, "setup"))
		return err
	}
	defer d.Close(context.Background())

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := &http.Server{Addr: d.Config.Serve.MetricsAddr, Handler: mux}

	go func() {
		log.Info(ctx, "serving metrics", j.KS("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, errors.Wrap(err, "metrics server"))
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		dpatterns.RunForever(func() context.Context { return ctx }, d.Spec,
			dpatterns.WithInterval(d.Config.Serve.Interval))
	}()

	<-ctx.Done()
	log.Info(ctx, "shutting down")

	// The in-flight run must finish before the deferred Close releases
	// the feed and checkpoint store.
	<-done

	return srv.Shutdown(context.Background())
}
