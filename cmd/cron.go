package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/loomgate/loomgate/internal/config"
	"github.com/loomgate/loomgate/internal/scheduler"
	"github.com/loomgate/loomgate/internal/store"
)

func cronCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "cron",
		Short: "Inspect and manage scheduled jobs",
	}
	c.AddCommand(cronListCmd())
	c.AddCommand(cronAddCmd())
	c.AddCommand(cronRemoveCmd())
	c.AddCommand(cronRunsCmd())
	return c
}

func openCronStore() (*store.SQLiteStore, store.CronStore, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	sqlStore, err := store.Open(config.ExpandHome(cfg.Scheduler.Storage))
	if err != nil {
		return nil, nil, fmt.Errorf("open cron store: %w", err)
	}
	return sqlStore, sqlStore.Cron(), nil
}

func cronListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every cron job",
		RunE: func(cmd *cobra.Command, args []string) error {
			sqlStore, cron, err := openCronStore()
			if err != nil {
				return err
			}
			defer sqlStore.Close()

			jobs, err := cron.List(context.Background())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tENABLED\tSCHEDULE\tRUNS\tNEXT_RUN")
			for _, j := range jobs {
				next := "-"
				if j.NextRun != nil {
					next = time.Unix(int64(*j.NextRun), 0).UTC().Format("2006-01-02 15:04:05")
				}
				fmt.Fprintf(w, "%s\t%s\t%v\t%s\t%d\t%s\n", j.ID, j.Name, j.Enabled, j.ScheduleKind, j.RunCount, next)
			}
			return w.Flush()
		},
	}
}

func cronAddCmd() *cobra.Command {
	var (
		name      string
		cronExpr  string
		everyS    int
		atS       int64
		payload   string
		target    string
		timeoutS  int
		eventKind bool
	)
	c := &cobra.Command{
		Use:   "add",
		Short: "Add a scheduled job",
		RunE: func(cmd *cobra.Command, args []string) error {
			sqlStore, cron, err := openCronStore()
			if err != nil {
				return err
			}
			defer sqlStore.Close()

			job := &store.CronJob{
				Name:            name,
				Enabled:         true,
				PayloadKind:     store.PayloadAgentTurn,
				PayloadText:     payload,
				PayloadTimeoutS: timeoutS,
			}
			if eventKind {
				job.PayloadKind = store.PayloadSystemEvent
			}
			if target != "" {
				job.TargetLocation = &target
			}

			switch {
			case cronExpr != "":
				job.ScheduleKind = store.ScheduleCron
				job.ScheduleCronExpr = &cronExpr
			case everyS > 0:
				job.ScheduleKind = store.ScheduleEvery
				ms := int64(everyS) * 1000
				job.ScheduleEveryMS = &ms
			case atS > 0:
				job.ScheduleKind = store.ScheduleAt
				at := float64(atS)
				job.ScheduleAt = &at
			default:
				return fmt.Errorf("one of --cron, --every, or --at must be set")
			}

			next, err := scheduler.ComputeNextRun(job, time.Now())
			if err != nil {
				return fmt.Errorf("compute next run: %w", err)
			}
			job.NextRun = next

			if err := cron.Add(context.Background(), job); err != nil {
				return err
			}
			fmt.Printf("added cron job %s (%s)\n", job.ID, job.Name)
			return nil
		},
	}
	c.Flags().StringVar(&name, "name", "", "job name")
	c.Flags().StringVar(&cronExpr, "cron", "", "5-field cron expression")
	c.Flags().IntVar(&everyS, "every", 0, "run every N seconds")
	c.Flags().Int64Var(&atS, "at", 0, "run once at this unix epoch second")
	c.Flags().StringVar(&payload, "payload", "", "agent turn text or system event text")
	c.Flags().StringVar(&target, "target-location", "", "location to deliver the result to")
	c.Flags().IntVar(&timeoutS, "timeout", 300, "execution timeout in seconds")
	c.Flags().BoolVar(&eventKind, "system-event", false, "treat payload as a system_event instead of an agent_turn")
	c.MarkFlagRequired("name")
	c.MarkFlagRequired("payload")
	return c
}

func cronRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <job-id>",
		Short: "Remove a cron job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sqlStore, cron, err := openCronStore()
			if err != nil {
				return err
			}
			defer sqlStore.Close()

			ok, err := cron.Remove(context.Background(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("job %s not found", args[0])
			}
			fmt.Printf("removed cron job %s\n", args[0])
			return nil
		},
	}
}

func cronRunsCmd() *cobra.Command {
	var limit int
	c := &cobra.Command{
		Use:   "runs <job-id>",
		Short: "List a job's run history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sqlStore, cron, err := openCronStore()
			if err != nil {
				return err
			}
			defer sqlStore.Close()

			runs, err := cron.Runs(context.Background(), args[0], limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
			fmt.Fprintln(w, "RUN_ID\tSTARTED\tSTATUS\tRESULT")
			for _, r := range runs {
				started := time.Unix(int64(r.StartedAt), 0).UTC().Format("2006-01-02 15:04:05")
				result := ""
				if r.ResultText != nil {
					result = *r.ResultText
				} else if r.ErrorText != nil {
					result = *r.ErrorText
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.ID, started, r.Status, result)
			}
			return w.Flush()
		},
	}
	c.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to show")
	return c
}
