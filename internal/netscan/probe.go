// Package netscan answers whether something listens on a TCP address.
package netscan

import (
	"context"
	"log/slog"
	"net"
	"strconv"

	"github.com/NYUCCL/psiturk/internal/model"
)

// Probe makes a single TCP connection attempt to address and closes it right
// away. Any dial error (refused, unreachable, timeout) yields false. There is
// no timeout beyond the OS one, ctx is the only way to bound it.
func Probe(ctx context.Context, address string) bool {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		slog.DebugContext(ctx, "probe: not listening", "address", address, "error", err)
		return false
	}
	if err := conn.Close(); err != nil {
		slog.DebugContext(ctx, "probe: closing connection", "address", address, "error", err)
	}
	return true
}

// IsReachable coerces port and probes host:port. Only an invalid port is
// reported as an error, network failures mean false.
func IsReachable(ctx context.Context, host, port string) (bool, error) {
	p, err := model.ParsePort(port)
	if err != nil {
		return false, err
	}
	return Probe(ctx, net.JoinHostPort(host, strconv.Itoa(p))), nil
}
