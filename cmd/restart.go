package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loomgate/loomgate/internal/daemon"
)

func restartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restart",
		Short: "Restart the gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			pidPath := pidFilePath(resolveConfigFilePathForPID())
			if _, running := daemon.ReadRunningPID(pidPath); running {
				if err := stopRunning(); err != nil {
					return fmt.Errorf("restart: stop failed: %w", err)
				}
			}
			startDetached()
			return nil
		},
	}
}
