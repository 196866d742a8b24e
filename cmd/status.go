package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loomgate/loomgate/internal/daemon"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report whether the gateway is running",
		Run: func(cmd *cobra.Command, args []string) {
			pidPath := pidFilePath(resolveConfigFilePathForPID())
			pid, running := daemon.ReadRunningPID(pidPath)
			if !running {
				fmt.Println("loomgate: not running")
				return
			}
			fmt.Printf("loomgate: running (pid %d)\n", pid)
		},
	}
}
