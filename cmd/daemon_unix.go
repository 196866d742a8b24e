//go:build !windows

package cmd

import (
	"os"
	"os/exec"
	"syscall"
)

// execDetached builds the *exec.Cmd for a background gateway process:
// stdout/stderr redirected to the log file, detached into its own session
// so it survives the parent CLI invocation exiting.
func execDetached(exe string, args []string, logFile *os.File) *exec.Cmd {
	cmd := exec.Command(exe, args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	return cmd
}
