package cmd

import (
	"fmt"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/loomgate/loomgate/internal/daemon"
)

func stopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop a running gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			return stopRunning()
		},
	}
}

// stopRunning sends SIGTERM to the PID recorded at the config-dir pid file
// and waits briefly for it to exit, cleaning up a stale pid file either way.
func stopRunning() error {
	pidPath := pidFilePath(resolveConfigFilePathForPID())

	pid, running := daemon.ReadRunningPID(pidPath)
	if !running {
		daemon.RemovePIDFile(pidPath)
		return fmt.Errorf("no running gateway found (pid file stale or absent)")
	}

	if err := daemon.Signal(pidPath, syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to signal pid %d: %w", pid, err)
	}

	for i := 0; i < 50; i++ {
		if !daemon.IsRunning(pid) {
			daemon.RemovePIDFile(pidPath)
			fmt.Printf("loomgate (pid %d) stopped\n", pid)
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	return fmt.Errorf("gateway (pid %d) did not exit within 5s", pid)
}
