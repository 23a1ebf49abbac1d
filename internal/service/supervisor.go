package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/NYUCCL/psiturk/internal/model"
	"github.com/NYUCCL/psiturk/internal/netscan"
	"github.com/NYUCCL/psiturk/internal/poll"
)

type State int

const (
	StateIdle State = iota
	StateStarting
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// StartResult tells what StartUp has done
type StartResult string

const (
	StartAlreadyRunning StartResult = "already running"
	StartLaunching      StartResult = "launching"
)

// Supervisor owns the lifecycle of one named HTTP server.
type Supervisor struct {
	name     string
	endpoint model.Endpoint
	launch   string
	launcher Launcher
	pid      *PIDEndpoint
	killer   Killer
	browser  func(url string) error
	client   *http.Client
	metrics  Metrics
	probe    func(ctx context.Context, address string) bool

	mx    sync.Mutex
	state State
}

type Option func(*Supervisor)

// WithLaunch sets a shell command which starts the server
func WithLaunch(command string) Option {
	return func(s *Supervisor) {
		s.launch = command
	}
}

func WithLauncher(l Launcher) Option {
	return func(s *Supervisor) {
		s.launcher = l
	}
}

// WithPIDEndpoint marks the server as able to report its own process id,
// which enables Shutdown.
func WithPIDEndpoint(p PIDEndpoint) Option {
	return func(s *Supervisor) {
		s.pid = &p
	}
}

func WithKiller(k Killer) Option {
	return func(s *Supervisor) {
		s.killer = k
	}
}

func WithBrowser(open func(url string) error) Option {
	return func(s *Supervisor) {
		s.browser = open
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(s *Supervisor) {
		s.client = c
	}
}

func WithMetrics(m Metrics) Option {
	return func(s *Supervisor) {
		s.metrics = m
	}
}

// New returns a supervisor of a server listening on ep. Invalid endpoint
// port fails with model.ErrInvalidPort.
func New(name string, ep model.Endpoint, opts ...Option) (*Supervisor, error) {
	if err := ep.Validate(); err != nil {
		return nil, fmt.Errorf("server %s: %w", name, err)
	}
	s := &Supervisor{
		name:     name,
		endpoint: ep,
		launcher: ShellLauncher{},
		killer:   OSKiller{},
		browser:  openBrowser,
		client:   &http.Client{Timeout: 10 * time.Second},
		metrics:  noopMetrics{},
		probe:    netscan.Probe,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// FromConfig builds a supervisor from a server configuration section. The pid
// endpoint capability is attached only when pid_route is configured.
func FromConfig(name string, cfg model.Server, opts ...Option) (*Supervisor, error) {
	base := make([]Option, 0, 2)
	if cfg.Launch != "" {
		base = append(base, WithLaunch(cfg.Launch))
	}
	if cfg.PIDRoute != "" {
		base = append(base, WithPIDEndpoint(PIDEndpoint{Route: cfg.PIDRoute}))
	}
	return New(name, cfg.Endpoint(), append(base, opts...)...)
}

func (s *Supervisor) Name() string {
	return s.name
}

func (s *Supervisor) Endpoint() model.Endpoint {
	return s.endpoint
}

// State returns the last state observed by StartUp
func (s *Supervisor) State() State {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.state
}

func (s *Supervisor) setState(st State) {
	s.mx.Lock()
	s.state = st
	s.mx.Unlock()
}

// URL returns http://host:port/route, an empty route means the default one.
func (s *Supervisor) URL(route string) string {
	return s.endpoint.URL(route)
}

// IsRunning probes the server port, a listener there is assumed to be the
// server. It never changes the supervisor state.
func (s *Supervisor) IsRunning(ctx context.Context) bool {
	up := s.probe(ctx, s.endpoint.Address())
	s.metrics.ObserveProbe(s.name, up)
	return up
}

// StartUp launches the server unless it already listens. The launched process
// is not tracked, use IsRunning or WaitUntilOnline to learn it came up.
func (s *Supervisor) StartUp(ctx context.Context) (StartResult, error) {
	if s.IsRunning(ctx) {
		s.setState(StateRunning)
		slog.InfoContext(ctx, "server is already running", "server", s.name, "url", s.URL(""))
		return StartAlreadyRunning, nil
	}
	if s.launch == "" {
		return "", fmt.Errorf("starting server %s: %w", s.name, model.ErrNotLaunchable)
	}

	slog.InfoContext(ctx, "launching server", "server", s.name, "command", s.launch)
	if err := s.launcher.Launch(ctx, s.launch); err != nil {
		return "", fmt.Errorf("launching server %s: %w", s.name, err)
	}
	s.metrics.ObserveLaunch(s.name)
	s.setState(StateStarting)
	return StartLaunching, nil
}

// WaitUntilOnline polls IsRunning every interval in a background task and
// calls onReady once the server answers. It never blocks.
func (s *Supervisor) WaitUntilOnline(ctx context.Context, onReady func(), interval time.Duration) *poll.Task {
	return poll.Start(ctx, interval, s.IsRunning, onReady)
}

// Status is a snapshot of a supervised server
type Status struct {
	Name    string
	URL     string
	Running bool
}

func (s *Supervisor) Status(ctx context.Context) Status {
	return Status{
		Name:    s.name,
		URL:     s.URL(""),
		Running: s.IsRunning(ctx),
	}
}

// Shutdown kills the server process identified by pid, or by the pid the
// server reports when pid is zero. A negative pid fails with
// model.ErrInvalidPID. Only servers with a PID endpoint can be
// shut down. The kill is local, so the server must run on this host.
// Kill failures are logged, the process might have already exited.
func (s *Supervisor) Shutdown(ctx context.Context, pid int) error {
	if s.pid == nil {
		return fmt.Errorf("shutting down server %s: %w", s.name, model.ErrNotSupported)
	}
	// kill(2) treats negative pids as process groups
	if pid < 0 {
		return fmt.Errorf("shutting down server %s: %w: %d", s.name, model.ErrInvalidPID, pid)
	}
	if pid == 0 {
		var err error
		pid, err = s.OwningPID(ctx)
		if err != nil {
			return fmt.Errorf("shutting down server %s: %w", s.name, err)
		}
	}

	slog.InfoContext(ctx, "shutting down server", "server", s.name, "pid", pid)
	err := s.killer.Kill(pid)
	s.metrics.ObserveShutdown(s.name, err)
	if err != nil {
		slog.WarnContext(ctx, "killing server process failed: ignoring", "server", s.name, "pid", pid, "error", err)
		return nil
	}
	s.setState(StateIdle)
	return nil
}
