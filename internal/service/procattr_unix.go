//go:build unix

package service

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

func shellCommand() (string, string) {
	return "/bin/sh", "-c"
}

// setSysProcAttr detaches the server from our session and terminal
func setSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}

// OSKiller sends SIGKILL to a local process
type OSKiller struct{}

func (OSKiller) Kill(pid int) error {
	return unix.Kill(pid, unix.SIGKILL)
}
