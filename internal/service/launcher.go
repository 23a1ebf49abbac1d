package service

import (
	"context"
	"log/slog"
	"os/exec"
)

// Launcher starts a server process from a command string and forgets it.
type Launcher interface {
	Launch(ctx context.Context, command string) error
}

// ShellLauncher runs the command through the system shell in its own
// session, so the server outlives the psiturk process. Standard streams are
// not captured.
type ShellLauncher struct {
	Env []string // nil means the environment of psiturk
}

// Launch returns once the process has been started. Exit status is never
// observed, the child is only reaped.
func (l ShellLauncher) Launch(ctx context.Context, command string) error {
	shell, flag := shellCommand()
	// not a CommandContext: the server must not die with ctx
	cmd := exec.Command(shell, flag, command)
	cmd.Env = l.Env
	setSysProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return err
	}
	slog.DebugContext(ctx, "server process started", "pid", cmd.Process.Pid, "command", command)
	go func() {
		_ = cmd.Wait()
	}()
	return nil
}
