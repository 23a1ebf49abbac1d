package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/NYUCCL/psiturk/internal/model"
	"github.com/NYUCCL/psiturk/internal/service"

	"github.com/stretchr/testify/require"
)

func TestWatcher(t *testing.T) {
	t.Parallel()
	metrics := service.NewPrometheusMetrics("watch")

	_, upEp := listen(t, "")
	up, err := service.New(model.ServerExperiment, upEp, service.WithMetrics(metrics))
	require.NoError(t, err)
	down, err := service.New(model.ServerDashboard, closedEndpoint(t, "dashboard"), service.WithMetrics(metrics))
	require.NoError(t, err)

	t.Run("sweep", func(t *testing.T) {
		w, err := service.NewWatcher(t.Context(), model.Watch{Every: "1h"}, up, down)
		require.NoError(t, err)
		t.Cleanup(func() {
			_ = w.Close()
		})
		statuses := w.Sweep(t.Context())
		require.Len(t, statuses, 2)
		require.Equal(t, model.ServerExperiment, statuses[0].Name)
		require.True(t, statuses[0].Running)
		require.Equal(t, model.ServerDashboard, statuses[1].Name)
		require.False(t, statuses[1].Running)
	})

	t.Run("do", func(t *testing.T) {
		before := metricValue(t, metrics, "watch_server_probes_total")
		w, err := service.NewWatcher(t.Context(), model.Watch{Every: "20ms"}, up, down)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(t.Context())
		var g sync.WaitGroup
		g.Go(func() {
			err := w.Do(ctx)
			require.NoError(t, err)
		})

		require.Eventually(t, func() bool {
			return metricValue(t, metrics, "watch_server_probes_total") >= before+6
		}, 5*time.Second, 20*time.Millisecond)
		cancel()
		g.Wait()
		// one up, one down
		require.Equal(t, 1.0, metricValue(t, metrics, "watch_server_up"))
	})
}

func TestNewWatcher_Fail(t *testing.T) {
	t.Parallel()
	s, err := service.New(model.ServerExperiment, closedEndpoint(t, ""))
	require.NoError(t, err)

	var testCases = []struct {
		scenario string
		given    model.Watch
	}{
		{scenario: "empty", given: model.Watch{}},
		{scenario: "bad cron", given: model.Watch{Cron: "every minute"}},
		{scenario: "bad duration", given: model.Watch{Every: "often"}},
	}
	for _, tc := range testCases {
		t.Run(tc.scenario, func(t *testing.T) {
			_, err := service.NewWatcher(t.Context(), tc.given, s)
			require.Error(t, err)
		})
	}

	_, err = service.NewWatcher(t.Context(), model.Watch{Every: "1m"})
	require.Error(t, err)

	w, err := service.NewWatcher(t.Context(), model.Watch{Cron: "*/5 * * * *"}, s)
	require.NoError(t, err)
	require.NotNil(t, w)
	_ = w.Close()
}
