//go:build !unix

package service

import (
	"os"
	"os/exec"
)

func shellCommand() (string, string) {
	return "cmd", "/C"
}

func setSysProcAttr(_ *exec.Cmd) {}

// OSKiller forcibly terminates a local process
type OSKiller struct{}

func (OSKiller) Kill(pid int) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return p.Kill()
}
