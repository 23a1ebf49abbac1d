package model_test

import (
	"strings"
	"testing"

	"github.com/NYUCCL/psiturk/internal/model"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	yml := `
version: 0
service:
  verbose: true
  log: stdout
experiment:
  host: 127.0.0.1
  port: 5000
  launch: python experiment.py
dashboard:
  port: 5001
database:
  path: /tmp/participants.db
  table: experiment_1
`
	cfg, err := model.LoadConfig(strings.NewReader(yml))
	require.NoError(t, err)
	require.True(t, cfg.Service.Verbose)
	require.Equal(t, model.LogStdout, cfg.Service.Log)

	require.Equal(t, "127.0.0.1", cfg.Experiment.Host)
	require.Equal(t, 5000, cfg.Experiment.Port)
	require.Equal(t, "python experiment.py", cfg.Experiment.Launch)
	require.Equal(t, "ppid", cfg.Experiment.PIDRoute)
	require.Equal(t, "", cfg.Experiment.Route)

	require.Equal(t, "localhost", cfg.Dashboard.Host)
	require.Equal(t, 5001, cfg.Dashboard.Port)
	require.Equal(t, "dashboard", cfg.Dashboard.Route)
	require.Empty(t, cfg.Dashboard.PIDRoute)
	require.Empty(t, cfg.Dashboard.Launch)

	require.Equal(t, "/tmp/participants.db", cfg.Database.Path)
	require.Equal(t, "experiment_1", cfg.Database.Table)
	require.Equal(t, "1.0", cfg.Task.CodeVersion)
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := model.LoadConfig(strings.NewReader("version: 0\n"))
	require.NoError(t, err)
	require.Equal(t, model.DefaultConfig(), cfg)
}

func TestLoadConfig_Fail(t *testing.T) {
	var testCases = []struct {
		scenario string
		given    string
	}{
		{
			scenario: "port out of range",
			given:    "version: 0\nexperiment:\n  port: 70000\n",
		},
		{
			scenario: "port not a number",
			given:    "version: 0\ndashboard:\n  port: abc\n",
		},
		{
			scenario: "bad table name",
			given:    "version: 0\ndatabase:\n  table: \"drop table;\"\n",
		},
		{
			scenario: "unknown field",
			given:    "version: 0\nexperiment:\n  hostname: example.com\n",
		},
		{
			scenario: "unsupported version",
			given:    "version: 1\n",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.scenario, func(t *testing.T) {
			_, err := model.LoadConfig(strings.NewReader(tc.given))
			require.Error(t, err)
			details := model.CueErrDetails(err)
			require.NotEmpty(t, details)
			require.NotEmpty(t, details[0].Code)
		})
	}
}

func TestParseCron(t *testing.T) {
	require.NoError(t, model.ParseCron("*/5 * * * *"))
	require.NoError(t, model.ParseCron("@hourly"))
	require.Error(t, model.ParseCron(""))
	require.Error(t, model.ParseCron("* * *"))
}

func TestParseEvery(t *testing.T) {
	d, err := model.ParseEvery("30s")
	require.NoError(t, err)
	require.Equal(t, "30s", d.String())

	_, err = model.ParseEvery("0s")
	require.Error(t, err)
	_, err = model.ParseEvery("often")
	require.Error(t, err)
}
