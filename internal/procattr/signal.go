package procattr

import (
	"os"
	"syscall"
)

// SignalGroup delivers sig to the entire process group of p. The negative
// PID addresses the group rather than the single child, so CLI-spawned
// helpers receive the signal too. Nil process is a no-op.
func SignalGroup(p *os.Process, sig syscall.Signal) error {
	if p == nil {
		return nil
	}
	return syscall.Kill(-p.Pid, sig)
}

// InterruptGroup sends SIGINT to the process group. This is the cooperative
// step for CLIs without a control channel.
func InterruptGroup(p *os.Process) error {
	return SignalGroup(p, syscall.SIGINT)
}

// TerminateGroup sends SIGTERM to the process group.
func TerminateGroup(p *os.Process) error {
	return SignalGroup(p, syscall.SIGTERM)
}

// KillGroup sends SIGKILL to the process group.
func KillGroup(p *os.Process) error {
	return SignalGroup(p, syscall.SIGKILL)
}
