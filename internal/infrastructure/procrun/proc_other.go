//go:build !unix

package procrun

import "os/exec"

func setProcessGroup(cmd *exec.Cmd, onSignal func()) {
	cmd.Cancel = func() error {
		err := cmd.Process.Kill()
		if err == nil {
			onSignal()
		}
		return err
	}
}
