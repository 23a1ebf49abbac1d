package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/NYUCCL/psiturk/internal/model"
)

// PIDEndpoint is a capability of servers which report the id of their
// owning process on GET {url}/{Route} as a bare number.
type PIDEndpoint struct {
	Route string
}

// Killer terminates a process by its id
type Killer interface {
	Kill(pid int) error
}

// the body is a bare pid, anything longer is not a pid
const maxPIDBody = 64

// OwningPID asks the running server for its process id.
func (s *Supervisor) OwningPID(ctx context.Context) (int, error) {
	if s.pid == nil {
		return 0, fmt.Errorf("server %s has no pid endpoint: %w", s.name, model.ErrNotSupported)
	}
	if !s.IsRunning(ctx) {
		return 0, fmt.Errorf("cannot retrieve %s server pid, it does not appear to be running on %s: %w",
			s.name, s.endpoint.Address(), model.ErrUnreachableService)
	}

	url := s.URL(s.pid.Route)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", model.ErrUpstreamHTTP, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPIDBody))
	if err != nil {
		return 0, fmt.Errorf("%w: reading %s: %w", model.ErrUpstreamHTTP, url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("%w: %s: status code: %d, body: %s", model.ErrUpstreamHTTP, url, resp.StatusCode, string(body))
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(body)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("%w: %s: unexpected body %q", model.ErrUpstreamHTTP, url, string(body))
	}
	slog.DebugContext(ctx, "got server pid", "server", s.name, "pid", pid)
	return pid, nil
}
