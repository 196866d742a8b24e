package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/loomgate/loomgate/internal/config"
)

func initCmd() *cobra.Command {
	var outputPath string
	c := &cobra.Command{
		Use:   "init",
		Short: "Interactively generate a starting config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if outputPath == "" {
				outputPath = resolveConfigFilePathForPID()
			}
			if _, err := os.Stat(outputPath); err == nil {
				return fmt.Errorf("%s already exists, pass --output to write elsewhere", outputPath)
			}

			cfg := config.Default()
			scanner := bufio.NewScanner(os.Stdin)

			cfg.Providers.Anthropic.APIKey = prompt(scanner, "Anthropic API key", "")
			cfg.Models.Primary = prompt(scanner, "Primary model", cfg.Models.Primary)
			cfg.Discord.Token = prompt(scanner, "Discord bot token (blank to skip)", "")
			cfg.Telegram.Token = prompt(scanner, "Telegram bot token (blank to skip)", "")
			cfg.Agent.Workspace = prompt(scanner, "Agent workspace directory", cfg.Agent.Workspace)

			if err := config.Save(outputPath, cfg); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			fmt.Printf("wrote %s\n", outputPath)
			fmt.Println("edit it to add personas, channel allowlists, and fallback models, then run: loomgate start")
			return nil
		},
	}
	c.Flags().StringVar(&outputPath, "output", "", "path to write the config file to (default: the usual config lookup path)")
	return c
}

func prompt(scanner *bufio.Scanner, label, def string) string {
	if def != "" {
		fmt.Printf("%s [%s]: ", label, def)
	} else {
		fmt.Printf("%s: ", label)
	}
	if !scanner.Scan() {
		return def
	}
	v := strings.TrimSpace(scanner.Text())
	if v == "" {
		return def
	}
	return v
}
