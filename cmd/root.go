package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags "-X github.com/loomgate/loomgate/cmd.Version=v1.0.0"
var Version = "dev"

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "loomgate",
	Short: "Loomgate — persistent multi-tenant chat-agent gateway",
	Long:  "Loomgate routes Discord/Telegram conversations to LLM-backed agent personas, persists every turn, compacts history under a token budget, and runs scheduled/sub-agent work alongside live chat.",
	Run: func(cmd *cobra.Command, args []string) {
		runGateway()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $LOOMGATE_CONFIG, else <user config dir>/loomgate/config.json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(stopCmd())
	rootCmd.AddCommand(restartCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(healthCmd())
	rootCmd.AddCommand(logsCmd())
	rootCmd.AddCommand(sessionsCmd())
	rootCmd.AddCommand(cronCmd())
	rootCmd.AddCommand(installServiceCmd())
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("loomgate %s\n", Version)
		},
	}
}

// Execute runs the root cobra command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
