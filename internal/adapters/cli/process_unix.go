//go:build !windows

package cli

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// killGrace is how long an agent's process group gets between SIGTERM and
// SIGKILL. It must stay below the WaitDelay set in ExecuteCommand.
const killGrace = 3 * time.Second

// configureProcAttr puts the agent in its own process group. Cancellation
// terminates the whole group so tools the agent spawned (test runners,
// language servers) do not outlive it.
func configureProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return terminateGroup(cmd.Process.Pid, killGrace)
	}
}

// terminateGroup sends SIGTERM to the group led by pgid and schedules a
// SIGKILL for whatever is still alive after grace. It does not wait.
func terminateGroup(pgid int, grace time.Duration) error {
	if err := syscall.Kill(-pgid, syscall.SIGTERM); err != nil {
		if errors.Is(err, syscall.ESRCH) {
			return os.ErrProcessDone
		}
		return fmt.Errorf("sigterm pgid %d: %w", pgid, err)
	}
	time.AfterFunc(grace, func() {
		if syscall.Kill(-pgid, 0) == nil {
			_ = syscall.Kill(-pgid, syscall.SIGKILL)
		}
	})
	return nil
}
