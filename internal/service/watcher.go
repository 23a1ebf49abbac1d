package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	gocron "github.com/go-co-op/gocron/v2"
	"golang.org/x/sync/errgroup"

	"github.com/NYUCCL/psiturk/internal/model"
)

// Watcher periodically probes supervised servers and logs when they go up or
// down. Probes feed the supervisors' Metrics.
type Watcher struct {
	supervisors []*Supervisor
	scheduler   gocron.Scheduler

	mx   sync.Mutex
	last map[string]bool
}

func NewWatcher(ctx context.Context, cfg model.Watch, supervisors ...*Supervisor) (*Watcher, error) {
	if len(supervisors) == 0 {
		return nil, errors.New("nothing to watch")
	}
	w := &Watcher{
		supervisors: supervisors,
		last:        make(map[string]bool, len(supervisors)),
	}
	scheduler, err := newScheduler(ctx, cfg, func() { w.Sweep(ctx) })
	if err != nil {
		return nil, err
	}
	w.scheduler = scheduler
	return w, nil
}

// Do runs the scheduler until ctx is cancelled. The first sweep runs
// immediately.
func (w *Watcher) Do(ctx context.Context) error {
	slog.DebugContext(ctx, "starting a watcher")
	w.scheduler.Start()
	defer func() {
		err := w.scheduler.Shutdown()
		if err != nil {
			slog.ErrorContext(ctx, "shutting down gocron has failed", "error", err)
		}
	}()

	<-ctx.Done()
	return nil
}

// Close releases the scheduler of a watcher which is not going to Do
func (w *Watcher) Close() error {
	return w.scheduler.Shutdown()
}

// Sweep probes all servers in parallel and returns their statuses in the
// order of supervisors.
func (w *Watcher) Sweep(ctx context.Context) []Status {
	statuses := make([]Status, len(w.supervisors))
	var g errgroup.Group
	for idx, s := range w.supervisors {
		g.Go(func() error {
			statuses[idx] = s.Status(ctx)
			return nil
		})
	}
	_ = g.Wait() // goroutines do not return an error

	w.mx.Lock()
	defer w.mx.Unlock()
	for _, st := range statuses {
		prev, seen := w.last[st.Name]
		if !seen || prev != st.Running {
			slog.InfoContext(ctx, "server state changed", "server", st.Name, "url", st.URL, "running", st.Running)
		}
		w.last[st.Name] = st.Running
	}
	return statuses
}

func newScheduler(ctx context.Context, cfg model.Watch, sweep func()) (gocron.Scheduler, error) {
	var job gocron.JobDefinition
	switch {
	case cfg.Cron != "":
		err := model.ParseCron(cfg.Cron)
		if err != nil {
			return nil, fmt.Errorf("parsing watch.cron: %w", err)
		}
		job = gocron.CronJob(cfg.Cron, false)
		slog.DebugContext(ctx, "successfully parsed", "cron", cfg.Cron)
	case cfg.Every != "":
		d, err := model.ParseEvery(cfg.Every)
		if err != nil {
			return nil, fmt.Errorf("parsing watch.every: %w", err)
		}
		job = gocron.DurationJob(d)
		slog.DebugContext(ctx, "successfully parsed", "every", d.String())
	default:
		return nil, errors.New("both watch.cron and watch.every are empty")
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("initializing gocron scheduler: %w", err)
	}
	_, err = s.NewJob(
		job,
		gocron.NewTask(sweep),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, fmt.Errorf("initializing gocron job: %w", err)
	}
	return s, nil
}
