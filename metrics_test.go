package docstream_test

import (
	"context"
	"testing"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/jtest"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/luno/docstream"
	"github.com/luno/docstream/dpatterns"
	"github.com/luno/docstream/internal/metrics"
	"github.com/luno/docstream/testmock"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	m := new(dto.Metric)
	require.NoError(t, c.Write(m))
	return m.Counter.GetValue()
}

func TestRunMetrics(t *testing.T) {
	ctx := context.Background()
	sc := docstream.Scope{Database: "metrics", Collection: "orders"}
	ns := docstream.Namespace{Database: "metrics", Collection: "orders"}
	labels := metrics.Labels(sc.String())

	feed := testmock.NewFeed(t)
	sink := testmock.NewSink("metrics_sink")
	store := dpatterns.MemCheckpointStore()
	spec := docstream.NewSpec(sc, feed, store, docstream.NewDispatcher(sink),
		docstream.WithCanary(feed), docstream.WithBootstrapPolls(1, 0))

	res, err := docstream.Run(ctx, spec)
	jtest.RequireNil(t, err)
	require.Equal(t, 202, res.Code())

	feed.Insert(ns, order("o1"))
	feed.Insert(ns, order("o2"))

	res, err = docstream.Run(ctx, spec)
	jtest.RequireNil(t, err)
	require.Equal(t, 200, res.Code())

	require.Equal(t, 1.0, counterValue(t, metrics.RunResults.WithLabelValues(sc.String(), "202")))
	require.Equal(t, 1.0, counterValue(t, metrics.RunResults.WithLabelValues(sc.String(), "200")))
	require.Equal(t, 2.0, counterValue(t, metrics.EventsProcessed.With(labels)))
	require.Equal(t, 1.0, counterValue(t, metrics.CheckpointSyncs.With(labels)))

	sink.FailAt(1, errors.New("down"))
	feed.Insert(ns, order("o3"))

	_, err = docstream.Run(ctx, spec)
	require.Error(t, err)
	require.Equal(t, 1.0, counterValue(t, metrics.RunErrors.With(labels)))
	require.Equal(t, 1.0, counterValue(t, metrics.SinkErrors.WithLabelValues("metrics_sink")))
}
