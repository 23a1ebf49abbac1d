package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"slices"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/NYUCCL/psiturk/internal/model"
	"github.com/NYUCCL/psiturk/internal/poll"
	"github.com/NYUCCL/psiturk/internal/service"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	flagWait    bool          // up --wait
	flagTimeout time.Duration // up --timeout
	flagOpen    bool          // up --open
	flagPID     int           // down --pid
	flagRoute   string        // open --route
)

func init() {
	upCmd.Flags().BoolVar(&flagWait, "wait", false, "wait until launched servers accept connections")
	upCmd.Flags().DurationVar(&flagTimeout, "timeout", 30*time.Second, "how long to --wait, zero waits forever")
	upCmd.Flags().BoolVar(&flagOpen, "open", false, "open a browser once the server is online")

	downCmd.Flags().IntVar(&flagPID, "pid", 0, "kill this pid instead of the one reported by the server")

	openCmd.Flags().StringVar(&flagRoute, "route", "", "route to open, default is the configured one")
}

var upCmd = &cobra.Command{
	Use:       "up [server...]",
	Short:     "launch servers which are not running",
	ValidArgs: []string{model.ServerExperiment, model.ServerDashboard},
	Args:      cobra.OnlyValidArgs,
	RunE:      doUp,
}

var downCmd = &cobra.Command{
	Use:       "down [server]",
	Short:     "kill a server process, the server must run on this host",
	ValidArgs: []string{model.ServerExperiment, model.ServerDashboard},
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	RunE:      doDown,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "print whether servers are running",
	Args:  cobra.NoArgs,
	RunE:  doStatus,
}

var openCmd = &cobra.Command{
	Use:       "open [server]",
	Short:     "open a server in a web browser",
	ValidArgs: []string{model.ServerExperiment, model.ServerDashboard},
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	RunE:      doOpen,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "periodically probe servers and report changes",
	Args:  cobra.NoArgs,
	RunE:  doWatch,
}

// supervisors returns supervisors of named servers in the order given, all of
// them when names are empty
func supervisors(cfg model.Config, names []string, opts ...service.Option) ([]*service.Supervisor, error) {
	if len(names) == 0 {
		names = []string{model.ServerExperiment, model.ServerDashboard}
	}
	servers := cfg.Servers()
	ret := make([]*service.Supervisor, 0, len(names))
	for _, name := range slices.Compact(names) {
		server, ok := servers[name]
		if !ok {
			return nil, fmt.Errorf("unknown server %q", name)
		}
		s, err := service.FromConfig(name, server, opts...)
		if err != nil {
			return nil, err
		}
		ret = append(ret, s)
	}
	return ret, nil
}

func doUp(cmd *cobra.Command, args []string) error {
	ctx := contextOrBackground(cmd)
	names := args
	if len(names) == 0 {
		names = []string{model.ServerExperiment}
	}
	sups, err := supervisors(config, names)
	if err != nil {
		return err
	}

	tasks := make([]*poll.Task, 0, len(sups))
	for _, s := range sups {
		res, err := s.StartUp(ctx)
		if err != nil {
			cancelAll(tasks)
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", s.Name(), res)

		if !flagWait && !flagOpen {
			continue
		}
		if flagOpen {
			tasks = append(tasks, s.OpenBrowserWhenOnline(ctx, ""))
			continue
		}
		tasks = append(tasks, s.WaitUntilOnline(ctx, func() {
			slog.InfoContext(ctx, "server is online", "server", s.Name(), "url", s.URL(""))
		}, poll.DefaultInterval))
	}

	if len(tasks) == 0 {
		return nil
	}
	return waitAll(ctx, tasks, flagTimeout)
}

// cancelAll stops tasks and waits for their goroutines
func cancelAll(tasks []*poll.Task) {
	for _, task := range tasks {
		task.Cancel()
	}
	for _, task := range tasks {
		task.Wait()
	}
}

// waitAll waits until all tasks finish, timeout cancels the rest of them
func waitAll(ctx context.Context, tasks []*poll.Task, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, task := range tasks {
		g.Go(func() error {
			select {
			case <-task.Done():
				return nil
			case <-ctx.Done():
				task.Cancel()
				task.Wait()
				return ctx.Err()
			}
		})
	}
	err := g.Wait()

	var pending int
	for _, task := range tasks {
		if !task.Fired() {
			pending++
		}
	}
	switch {
	case pending > 0 && err != nil:
		return fmt.Errorf("%d server(s) did not come online: %w", pending, err)
	case pending > 0:
		return fmt.Errorf("%d server(s) did not come online", pending)
	}
	return nil
}

func doDown(cmd *cobra.Command, args []string) error {
	ctx := contextOrBackground(cmd)
	if flagPID < 0 {
		return fmt.Errorf("--pid %d: %w", flagPID, model.ErrInvalidPID)
	}
	names := args
	if len(names) == 0 {
		names = []string{model.ServerExperiment}
	}
	sups, err := supervisors(config, names)
	if err != nil {
		return err
	}
	s := sups[0]
	if err := s.Shutdown(ctx, flagPID); err != nil {
		if errors.Is(err, model.ErrUnreachableService) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: not running\n", s.Name())
			return nil
		}
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: stopped\n", s.Name())
	return nil
}

func doStatus(cmd *cobra.Command, _ []string) error {
	ctx := contextOrBackground(cmd)
	sups, err := supervisors(config, nil)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SERVER\tURL\tSTATUS")
	for _, s := range sups {
		st := s.Status(ctx)
		status := "down"
		if st.Running {
			status = "up"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", st.Name, st.URL, status)
	}
	return tw.Flush()
}

func doOpen(cmd *cobra.Command, args []string) error {
	ctx := contextOrBackground(cmd)
	names := args
	if len(names) == 0 {
		names = []string{model.ServerExperiment}
	}
	sups, err := supervisors(config, names)
	if err != nil {
		return err
	}
	s := sups[0]
	if !s.IsRunning(ctx) {
		return fmt.Errorf("opening %s: %w", s.Name(), model.ErrUnreachableService)
	}
	return s.OpenBrowser(flagRoute)
}

func doWatch(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(contextOrBackground(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := service.NewPrometheusMetrics("")
	sups, err := supervisors(config, nil, service.WithMetrics(metrics))
	if err != nil {
		return err
	}
	w, err := service.NewWatcher(ctx, config.Watch, sups...)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.Do(ctx)
	})

	if addr := config.Watch.MetricsAddr; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		srv := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			slog.InfoContext(ctx, "serving metrics", "addr", addr)
			err := srv.ListenAndServe()
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("serving metrics: %w", err)
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}
