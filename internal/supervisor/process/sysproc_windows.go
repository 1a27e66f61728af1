//go:build windows

package process

import (
	"errors"
	"os"
	"os/exec"
)

// setSysProcAttr is a no-op on Windows; descendant cleanup is handled by the
// gopsutil child walk in Terminate.
func setSysProcAttr(_ *exec.Cmd) {}

// killProcess forcefully kills the process. An already-absent target is not
// an error.
func killProcess(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return nil
	}
	err = proc.Kill()
	if err == nil || errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

// exitSignal has no meaning on Windows.
func exitSignal(_ *exec.ExitError) string { return "" }
