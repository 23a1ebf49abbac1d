package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/NYUCCL/psiturk/internal/model"
	"github.com/NYUCCL/psiturk/internal/poll"

	"github.com/stretchr/testify/require"
)

// psiturk executes the root command with args and returns its stdout
func psiturk(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(t.Context())
	return out.String(), err
}

func TestPsiturk(t *testing.T) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = ln.Close()
	})
	closed, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	closedPort := closed.Addr().(*net.TCPAddr).Port
	require.NoError(t, closed.Close())

	dir := t.TempDir()
	configPath := filepath.Join(dir, "psiturk.yaml")
	config := fmt.Sprintf(`service:
  log: discard
experiment:
  host: 127.0.0.1
  port: %d
dashboard:
  host: 127.0.0.1
  port: %d
database:
  path: %q
task:
  code_version: "2.1"
`, ln.Addr().(*net.TCPAddr).Port, closedPort, filepath.Join(dir, "participants.db"))
	require.NoError(t, os.WriteFile(configPath, []byte(config), 0644))
	t.Setenv("PSITURKCONFIG", configPath)

	t.Run("status", func(t *testing.T) {
		out, err := psiturk(t, "status")
		require.NoError(t, err)
		require.Regexp(t, `experiment\s+http://127\.0\.0\.1:\d+/\s+up`, out)
		require.Regexp(t, `dashboard\s+http://127\.0\.0\.1:\d+/dashboard\s+down`, out)
	})

	t.Run("up already running", func(t *testing.T) {
		out, err := psiturk(t, "up", "experiment")
		require.NoError(t, err)
		require.Equal(t, "experiment: already running\n", out)
	})

	t.Run("up wait", func(t *testing.T) {
		t.Cleanup(func() {
			flagWait = false
			flagTimeout = 30 * time.Second
		})
		out, err := psiturk(t, "up", "experiment", "--wait", "--timeout", "5s")
		require.NoError(t, err)
		require.Equal(t, "experiment: already running\n", out)
	})

	t.Run("up wait not launchable", func(t *testing.T) {
		t.Cleanup(func() {
			flagWait = false
		})
		_, err := psiturk(t, "up", "experiment", "dashboard", "--wait")
		require.ErrorIs(t, err, model.ErrNotLaunchable)
	})

	t.Run("up not launchable", func(t *testing.T) {
		_, err := psiturk(t, "up", "dashboard")
		require.ErrorIs(t, err, model.ErrNotLaunchable)
	})

	t.Run("down without pid endpoint", func(t *testing.T) {
		_, err := psiturk(t, "down", "dashboard")
		require.ErrorIs(t, err, model.ErrNotSupported)
	})

	t.Run("down negative pid", func(t *testing.T) {
		t.Cleanup(func() {
			flagPID = 0
		})
		_, err := psiturk(t, "down", "experiment", "--pid", "-1")
		require.ErrorIs(t, err, model.ErrInvalidPID)
	})

	t.Run("participant", func(t *testing.T) {
		out, err := psiturk(t, "participant", "add", "--worker", "W1", "--assignment", "A1", "--hit", "H1")
		require.NoError(t, err)
		require.Equal(t, "W1:A1\n", out)

		_, err = psiturk(t, "participant", "add", "--worker", "W1", "--assignment", "A1", "--hit", "H1")
		require.Error(t, err)

		out, err = psiturk(t, "participant", "get", "W1:A1")
		require.NoError(t, err)
		var p model.Participant
		require.NoError(t, json.Unmarshal([]byte(out), &p))
		require.Equal(t, "W1", p.WorkerID)
		require.Equal(t, "A1", p.AssignmentID)
		require.Equal(t, "H1", p.HitID)
		require.Equal(t, "2.1", p.CodeVersion)
		require.Equal(t, model.StatusAllocated, p.Status)

		_, err = psiturk(t, "participant", "get", "W2:A2")
		require.ErrorIs(t, err, model.ErrNotFound)
	})
}

func TestPsiturk_InvalidConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "psiturk.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("experiment:\n  port: 70000\n"), 0644))
	t.Setenv("PSITURKCONFIG", configPath)

	_, err := psiturk(t, "status")
	require.Error(t, err)
}

func TestWaitAll(t *testing.T) {
	t.Parallel()
	never := func(context.Context) bool { return false }
	always := func(context.Context) bool { return true }

	t.Run("all online", func(t *testing.T) {
		t.Parallel()
		tasks := []*poll.Task{
			poll.Start(t.Context(), 10*time.Millisecond, always, func() {}),
			poll.Start(t.Context(), 10*time.Millisecond, always, func() {}),
		}
		require.NoError(t, waitAll(t.Context(), tasks, time.Second))
	})

	t.Run("timeout", func(t *testing.T) {
		t.Parallel()
		tasks := []*poll.Task{
			poll.Start(t.Context(), 10*time.Millisecond, never, func() {}),
			poll.Start(t.Context(), 10*time.Millisecond, always, func() {}),
		}
		start := time.Now()
		err := waitAll(t.Context(), tasks, 100*time.Millisecond)
		require.ErrorIs(t, err, context.DeadlineExceeded)
		require.ErrorContains(t, err, "1 server(s) did not come online")
		require.Less(t, time.Since(start), 5*time.Second)

		for _, task := range tasks {
			requireDone(t, task)
		}
		require.False(t, tasks[0].Fired())
		require.True(t, tasks[1].Fired())
	})
}

func TestCancelAll(t *testing.T) {
	t.Parallel()
	never := func(context.Context) bool { return false }
	tasks := []*poll.Task{
		poll.Start(t.Context(), time.Hour, never, func() {}),
		poll.Start(t.Context(), time.Hour, never, func() {}),
	}
	cancelAll(tasks)
	for _, task := range tasks {
		requireDone(t, task)
		require.False(t, task.Fired())
	}
}

func requireDone(t *testing.T, task *poll.Task) {
	t.Helper()
	select {
	case <-task.Done():
	default:
		t.Fatal("task is still running")
	}
}
