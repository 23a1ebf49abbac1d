package netscan_test

import (
	"context"
	"net"
	"strconv"
	"testing"

	"github.com/NYUCCL/psiturk/internal/model"
	"github.com/NYUCCL/psiturk/internal/netscan"

	"github.com/stretchr/testify/require"
)

// freePort returns a loopback port nobody listens on
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func TestIsReachable(t *testing.T) {
	t.Parallel()
	port := freePort(t)
	sport := strconv.Itoa(port)

	ok, err := netscan.IsReachable(t.Context(), "127.0.0.1", sport)
	require.NoError(t, err)
	require.False(t, ok)

	ln, err := net.Listen("tcp4", net.JoinHostPort("127.0.0.1", sport))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = ln.Close()
	})

	ok, err = netscan.IsReachable(t.Context(), "127.0.0.1", sport)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, ln.Close())
	ok, err = netscan.IsReachable(t.Context(), "127.0.0.1", sport)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestIsReachable_InvalidPort(t *testing.T) {
	t.Parallel()
	ok, err := netscan.IsReachable(t.Context(), "127.0.0.1", "abc")
	require.ErrorIs(t, err, model.ErrInvalidPort)
	require.False(t, ok)
}

func TestProbe_Cancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	require.False(t, netscan.Probe(ctx, "127.0.0.1:"+strconv.Itoa(freePort(t))))
}
