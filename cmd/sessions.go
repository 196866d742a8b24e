package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/loomgate/loomgate/internal/config"
	"github.com/loomgate/loomgate/internal/store"
)

func sessionsCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and manage persisted conversation sessions",
	}
	c.AddCommand(sessionsListCmd())
	c.AddCommand(sessionsViewCmd())
	c.AddCommand(sessionsClearCmd())
	return c
}

func openSessionStore() (*store.SQLiteStore, store.SessionStore, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	sqlStore, err := store.Open(config.ExpandHome(cfg.Sessions.Storage))
	if err != nil {
		return nil, nil, fmt.Errorf("open session store: %w", err)
	}
	return sqlStore, sqlStore.Sessions(), nil
}

func sessionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every known session location",
		RunE: func(cmd *cobra.Command, args []string) error {
			sqlStore, sessions, err := openSessionStore()
			if err != nil {
				return err
			}
			defer sqlStore.Close()

			infos, err := sessions.List(context.Background())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
			fmt.Fprintln(w, "LOCATION\tMESSAGES\tUPDATED")
			for _, info := range infos {
				fmt.Fprintf(w, "%s\t%d\t%s\n", info.Location, info.MessageCount, info.UpdatedAt.Format("2006-01-02 15:04:05"))
			}
			return w.Flush()
		},
	}
}

func sessionsViewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "view <location>",
		Short: "Print every stored message for a session location",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sqlStore, sessions, err := openSessionStore()
			if err != nil {
				return err
			}
			defer sqlStore.Close()

			msgs, err := sessions.Messages(context.Background(), args[0], true)
			if err != nil {
				return err
			}
			for _, m := range msgs {
				compacted := ""
				if m.Compacted {
					compacted = " [compacted]"
				}
				fmt.Printf("[%s]%s %s: %s\n", m.CreatedAt.Format(time.RFC3339), compacted, m.Message.Role, m.Message.Content)
			}
			return nil
		},
	}
}

func sessionsClearCmd() *cobra.Command {
	var deleteSession bool
	c := &cobra.Command{
		Use:   "clear <location>",
		Short: "Clear a session's messages (or delete the session entirely with --delete)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sqlStore, sessions, err := openSessionStore()
			if err != nil {
				return err
			}
			defer sqlStore.Close()

			ctx := context.Background()
			if deleteSession {
				ok, err := sessions.Delete(ctx, args[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("session %s not found", args[0])
				}
				fmt.Printf("deleted session %s\n", args[0])
				return nil
			}

			n, err := sessions.Clear(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("cleared %d messages from %s\n", n, args[0])
			return nil
		},
	}
	c.Flags().BoolVar(&deleteSession, "delete", false, "delete the session record entirely instead of just clearing messages")
	return c
}
