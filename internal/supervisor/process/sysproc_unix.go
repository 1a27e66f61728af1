//go:build !windows

package process

import (
	"errors"
	"os/exec"
	"syscall"
)

// setSysProcAttr places the child in its own process group so the whole
// group can be killed in one shot.
func setSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}

// killProcess forcefully kills the process group, falling back to the single
// process when the group is already gone. ESRCH is not an error: the target
// being absent is the desired end state.
func killProcess(pid int) error {
	err := syscall.Kill(-pid, syscall.SIGKILL)
	if err == nil || errors.Is(err, syscall.ESRCH) {
		return nil
	}

	err = syscall.Kill(pid, syscall.SIGKILL)
	if errors.Is(err, syscall.ESRCH) {
		return nil
	}
	return err
}

// exitSignal extracts the terminating signal name, if any.
func exitSignal(exitErr *exec.ExitError) string {
	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return status.Signal().String()
	}
	return ""
}
