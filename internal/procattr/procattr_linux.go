//go:build linux

// Package procattr configures backend subprocesses so the whole process
// tree can be signalled and cannot outlive the supervisor.
package procattr

import (
	"os/exec"
	"syscall"
)

// Set places the child in its own process group and arranges for it to
// receive SIGTERM if the supervising process dies (Pdeathsig). Group
// membership is what makes escalation signals reach grandchildren the
// CLI itself forks.
func Set(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGTERM,
	}
}
