package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/loomgate/loomgate/internal/config"
	"github.com/loomgate/loomgate/internal/scheduler"
	"github.com/loomgate/loomgate/internal/store"
)

var startedAt = time.Now()

// healthReport is the /healthz payload: process uptime, store reachability,
// and last scheduler tick, grounded on spec §6's named health-probe fields.
type healthReport struct {
	Status        string    `json:"status"`
	UptimeSeconds float64   `json:"uptime_seconds"`
	StoreOK       bool      `json:"store_ok"`
	LastTick      time.Time `json:"last_scheduler_tick,omitempty"`
}

func startHealthServer(cfg *config.Config, st *store.SQLiteStore, sched *scheduler.Scheduler) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		report := healthReport{
			Status:        "ok",
			UptimeSeconds: time.Since(startedAt).Seconds(),
			StoreOK:       st.Ping(ctx) == nil,
			LastTick:      sched.LastTick(),
		}
		if !report.StoreOK {
			report.Status = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		if report.Status != "ok" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(report)
	})

	addr := "127.0.0.1:8787"
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "health server error: %v\n", err)
		}
	}()
	return srv
}

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the running gateway's health endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := http.Get("http://127.0.0.1:8787/healthz")
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			defer resp.Body.Close()

			body, _ := io.ReadAll(resp.Body)
			fmt.Println(string(body))
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("gateway reported unhealthy status: %d", resp.StatusCode)
			}
			return nil
		},
	}
}
