//go:build !windows

package pytest

import (
	"os/exec"
	"syscall"
)

// configureProcAttr runs pytest in its own process group and kills the whole
// group on cancellation, so xdist workers and subprocesses do not outlive it.
func configureProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
