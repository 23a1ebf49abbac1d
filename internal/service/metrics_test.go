package service_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/NYUCCL/psiturk/internal/model"
	"github.com/NYUCCL/psiturk/internal/service"

	"github.com/stretchr/testify/require"
)

func TestPrometheusMetrics(t *testing.T) {
	t.Parallel()
	m := service.NewPrometheusMetrics("")
	m.ObserveProbe(model.ServerExperiment, true)
	m.ObserveProbe(model.ServerExperiment, false)
	m.ObserveLaunch(model.ServerDashboard)
	m.ObserveShutdown(model.ServerExperiment, nil)
	m.ObserveShutdown(model.ServerExperiment, errors.New("no such process"))

	require.Equal(t, 2.0, metricValue(t, m, "psiturk_server_probes_total"))
	require.Equal(t, 0.0, metricValue(t, m, "psiturk_server_up"))
	require.Equal(t, 1.0, metricValue(t, m, "psiturk_server_launches_total"))
	require.Equal(t, 2.0, metricValue(t, m, "psiturk_server_shutdowns_total"))

	srv := httptest.NewServer(m.Handler())
	t.Cleanup(srv.Close)
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer func() {
		_ = resp.Body.Close()
	}()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `psiturk_server_launches_total{server="dashboard"} 1`)
}
