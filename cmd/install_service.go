package cmd

import (
	"fmt"
	"os"
	"text/template"

	"github.com/spf13/cobra"
)

const systemdUnitTemplate = `[Unit]
Description=Loomgate chat-agent gateway
After=network-online.target
Wants=network-online.target

[Service]
Type=simple
ExecStart={{.Exe}} start{{if .Config}} --config {{.Config}}{{end}}
ExecStop={{.Exe}} stop
Restart=on-failure
RestartSec=5
User={{.User}}

[Install]
WantedBy=multi-user.target
`

func installServiceCmd() *cobra.Command {
	var (
		outputPath string
		runAsUser  string
	)
	c := &cobra.Command{
		Use:   "install-service",
		Short: "Write a systemd unit file for running the gateway as a service",
		RunE: func(cmd *cobra.Command, args []string) error {
			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("resolve executable path: %w", err)
			}
			if runAsUser == "" {
				runAsUser = os.Getenv("USER")
			}

			tmpl, err := template.New("unit").Parse(systemdUnitTemplate)
			if err != nil {
				return err
			}

			f, err := os.Create(outputPath)
			if err != nil {
				return fmt.Errorf("create %s: %w", outputPath, err)
			}
			defer f.Close()

			if err := tmpl.Execute(f, struct {
				Exe    string
				Config string
				User   string
			}{Exe: exe, Config: cfgFile, User: runAsUser}); err != nil {
				return err
			}

			fmt.Printf("wrote %s\n", outputPath)
			fmt.Println("install with: sudo cp", outputPath, "/etc/systemd/system/loomgate.service && sudo systemctl enable --now loomgate")
			return nil
		},
	}
	c.Flags().StringVar(&outputPath, "output", "loomgate.service", "path to write the unit file to")
	c.Flags().StringVar(&runAsUser, "user", "", "user to run the service as (default: $USER)")
	return c
}
