//go:build !linux

// Package procattr configures backend subprocesses so the whole process
// tree can be signalled and cannot outlive the supervisor.
package procattr

import (
	"os/exec"
	"syscall"
)

// Set places the child in its own process group. Pdeathsig is Linux-only;
// elsewhere group membership alone enables kill -<sig> -<pgid> cleanup.
func Set(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}
