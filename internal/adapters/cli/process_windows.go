//go:build windows

package cli

import (
	"os/exec"
	"strconv"
	"syscall"
)

// configureProcAttr starts the agent in a new process group. Cancellation
// kills the whole process tree through taskkill and falls back to killing
// the agent alone.
func configureProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		// #nosec G204 -- pid of our own child
		tree := exec.Command("taskkill", "/T", "/F", "/PID", strconv.Itoa(cmd.Process.Pid))
		if err := tree.Run(); err != nil {
			return cmd.Process.Kill()
		}
		return nil
	}
}
