package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func logsCmd() *cobra.Command {
	var follow bool
	c := &cobra.Command{
		Use:   "logs",
		Short: "Print the gateway's log file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := logFilePath(resolveConfigFilePathForPID())
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open log file %s: %w", path, err)
			}
			defer f.Close()

			if _, err := io.Copy(os.Stdout, f); err != nil {
				return err
			}
			if !follow {
				return nil
			}

			reader := bufio.NewReader(f)
			for {
				line, err := reader.ReadString('\n')
				if len(line) > 0 {
					fmt.Print(line)
				}
				if err != nil {
					time.Sleep(500 * time.Millisecond)
				}
			}
		},
	}
	c.Flags().BoolVarP(&follow, "follow", "f", false, "keep printing new log lines as they're appended")
	return c
}
