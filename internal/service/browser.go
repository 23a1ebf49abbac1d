package service

import (
	"context"
	"log/slog"

	"github.com/NYUCCL/psiturk/internal/poll"
	"github.com/pkg/browser"
)

func openBrowser(url string) error {
	return browser.OpenURL(url)
}

// OpenBrowser points the default browser to the route of the server.
func (s *Supervisor) OpenBrowser(route string) error {
	return s.browser(s.URL(route))
}

// OpenBrowserWhenOnline waits for the server in a background task and then
// opens the browser. Browser failures are only logged.
func (s *Supervisor) OpenBrowserWhenOnline(ctx context.Context, route string) *poll.Task {
	return s.WaitUntilOnline(ctx, func() {
		if err := s.OpenBrowser(route); err != nil {
			slog.WarnContext(ctx, "can't open browser", "server", s.name, "url", s.URL(route), "error", err)
		}
	}, poll.DefaultInterval)
}
