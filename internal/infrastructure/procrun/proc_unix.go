//go:build unix

package procrun

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// setProcessGroup starts the command in its own process group so that a
// timeout also kills the children it forked (ssh, shell pipelines).
// onSignal runs only when the kill reached a live process.
func setProcessGroup(cmd *exec.Cmd, onSignal func()) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		if errors.Is(err, syscall.ESRCH) {
			return os.ErrProcessDone
		}
		if err == nil {
			onSignal()
		}
		return err
	}
}
