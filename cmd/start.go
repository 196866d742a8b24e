package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/loomgate/loomgate/internal/agentmanager"
	"github.com/loomgate/loomgate/internal/bus"
	"github.com/loomgate/loomgate/internal/channels"
	"github.com/loomgate/loomgate/internal/channels/discord"
	"github.com/loomgate/loomgate/internal/channels/telegram"
	"github.com/loomgate/loomgate/internal/compaction"
	"github.com/loomgate/loomgate/internal/config"
	"github.com/loomgate/loomgate/internal/daemon"
	"github.com/loomgate/loomgate/internal/orchestrator"
	"github.com/loomgate/loomgate/internal/router"
	"github.com/loomgate/loomgate/internal/scheduler"
	"github.com/loomgate/loomgate/internal/store"
	"github.com/loomgate/loomgate/internal/tokencount"
	"github.com/loomgate/loomgate/internal/tracing"
)

var detach bool

func init() {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the gateway",
		Run: func(cmd *cobra.Command, args []string) {
			if detach {
				startDetached()
				return
			}
			runGateway()
		},
	}
	startCmd.Flags().BoolVarP(&detach, "detach", "d", false, "run in the background")
	rootCmd.AddCommand(startCmd)
}

func pidFilePath(cfgPath string) string {
	return filepath.Join(filepath.Dir(cfgPath), "loomgate.pid")
}

func logFilePath(cfgPath string) string {
	return filepath.Join(filepath.Dir(cfgPath), "loomgate.log")
}

// runGateway wires every component together and blocks until a shutdown
// signal arrives: config load → provider registry → provider chain → tool
// registry → store → compaction → router → message bus → orchestrator →
// agentmanager (+ spawn tool) → channels → scheduler → bus consumer loop →
// health server → signal handling, in dependency order.
func runGateway() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	cfg, err := config.Load(cfgFile)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg.Agent.Workspace = config.ExpandHome(cfg.Agent.Workspace)
	if !filepath.IsAbs(cfg.Agent.Workspace) {
		if abs, err := filepath.Abs(cfg.Agent.Workspace); err == nil {
			cfg.Agent.Workspace = abs
		}
	}
	os.MkdirAll(cfg.Agent.Workspace, 0o755)

	pidPath := pidFilePath(resolveConfigFilePathForPID())
	if err := daemon.WritePIDFile(pidPath); err != nil {
		slog.Warn("failed to write pid file", "path", pidPath, "error", err)
	}
	defer daemon.RemovePIDFile(pidPath)

	providerReg := buildProviderRegistry(cfg)
	chain, err := buildProviderChain(cfg, providerReg)
	if err != nil {
		slog.Error("failed to build provider chain", "error", err)
		os.Exit(1)
	}

	toolsReg := buildToolRegistry(cfg)

	sqlStore, err := store.Open(config.ExpandHome(cfg.Sessions.Storage))
	if err != nil {
		slog.Error("failed to open session store", "error", err)
		os.Exit(1)
	}
	defer sqlStore.Close()
	sessions := sqlStore.Sessions()

	var cronStore store.CronStore
	if config.ExpandHome(cfg.Scheduler.Storage) == config.ExpandHome(cfg.Sessions.Storage) {
		cronStore = sqlStore.Cron()
	} else {
		cronSQL, err := store.Open(config.ExpandHome(cfg.Scheduler.Storage))
		if err != nil {
			slog.Error("failed to open cron store", "error", err)
			os.Exit(1)
		}
		defer cronSQL.Close()
		cronStore = cronSQL.Cron()
	}

	counter := tokencount.New()
	compactor := compaction.New(sessions, chain, counter,
		compaction.WithBudget(cfg.Compaction.MaxContextTokens, cfg.Compaction.TargetTokens),
		compaction.WithSummaryModel(cfg.Compaction.SummaryModel),
	)

	personas := buildPersonas(cfg)
	rtr := router.New(personas, cfg.Router.DefaultPersona, chain, router.WithChainFactory(buildChainFactory()))

	msgBus := bus.NewMessageBus(256)
	replier := newBusReplier(msgBus)

	var orchOpts []orchestrator.Option
	orchOpts = append(orchOpts,
		orchestrator.WithMaxToolRounds(cfg.Agent.MaxToolRounds),
		orchestrator.WithContinuationNudge(cfg.Agent.ContinuationNudge),
		orchestrator.WithGlobalSystemPrompt(loadGlobalSystemPrompt(cfg)),
		orchestrator.WithTracer(tracing.NewSlogCollector(nil)),
	)
	if cfg.Agent.ChunkLength > 0 {
		orchOpts = append(orchOpts, orchestrator.WithChunkLength(cfg.Agent.ChunkLength))
	}
	if targets := buildReportBackTargets(cfg); len(targets) > 0 {
		orchOpts = append(orchOpts, orchestrator.WithReportBack(targets, orchestrator.NewHTTPReportBack()))
	}

	orch := orchestrator.New(sessions, compactor, chain, rtr, toolsReg, toolsReg.Definitions(), replier, counter, orchOpts...)

	turnExec := newIsolatedTurnExecutor(chain, toolsReg, loadGlobalSystemPrompt(cfg), cfg.Agent.MaxToolRounds)
	deliverer := newOrchestratorDeliverer(orch)
	agentMgr := agentmanager.New(turnExec, deliverer, cfg.Agent.MaxSubagents)
	registerSpawnTool(toolsReg, agentMgr, 5*time.Minute)

	channelMgr := channels.NewManager(msgBus)
	if cfg.Discord.Token != "" {
		ch, err := discord.New(cfg.Discord, msgBus)
		if err != nil {
			slog.Error("failed to build discord channel", "error", err)
		} else {
			channelMgr.RegisterChannel("discord", ch)
		}
	}
	if cfg.Telegram.Token != "" {
		ch, err := telegram.New(cfg.Telegram, msgBus)
		if err != nil {
			slog.Error("failed to build telegram channel", "error", err)
		} else {
			channelMgr.RegisterChannel("telegram", ch)
		}
	}

	sched := scheduler.New(cronStore, newCronExecutor(orch), time.Duration(cfg.Scheduler.TickInterval)*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := channelMgr.StartAll(ctx); err != nil {
		slog.Error("failed to start channels", "error", err)
	}
	go sched.Run(ctx)
	go consumeInbound(ctx, msgBus, orch, rtr, cfg.Router.AuthorizeByDefault)

	healthSrv := startHealthServer(cfg, sqlStore, sched)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	slog.Info("loomgate gateway starting",
		"version", Version,
		"channels", channelMgr.GetEnabledChannels(),
		"personas", len(personas),
	)

	sig := <-sigCh
	slog.Info("graceful shutdown initiated", "signal", sig)

	cancel()
	channelMgr.StopAll(context.Background())
	agentMgr.CancelAll()
	if healthSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		healthSrv.Shutdown(shutdownCtx)
		shutdownCancel()
	}
}

// consumeInbound is the bus consumer loop: channel → orchestrator → channel.
// One goroutine per inbound message so a slow turn for one location never
// blocks delivery for another (spec §4.5's per-location concurrency gate
// already drops duplicate in-flight turns for the same location).
//
// Admission happens here, before HandleMessage ever runs (spec §4.4/§6): a
// mention inside a persona-mapped location (router.RoutedChannel) is ignored
// as "addressed elsewhere" rather than stripped and delivered, and a persona
// with authorized_users set rejects any sender not on that list. A location
// that no persona maps is not dropped for being unmapped, DM or group alike:
// it goes to the default persona, or, with none configured, is admitted
// according to authorizeByDefault.
func consumeInbound(ctx context.Context, msgBus *bus.MessageBus, orch *orchestrator.Orchestrator, rtr *router.Router, authorizeByDefault bool) {
	for {
		msg, ok := msgBus.ConsumeInbound(ctx)
		if !ok {
			return
		}
		go func(msg bus.InboundMessage) {
			kind := store.PeerDirect
			if msg.PeerKind == "group" {
				kind = store.PeerGroup
			}
			location := store.BuildLocationKey(msg.Channel, kind, msg.ChatID)

			if rtr.RoutedChannel(location) && msg.Metadata["mentioned"] == "true" {
				slog.Debug("ignoring mention in routed channel", "location", location)
				return
			}

			persona := rtr.Route(location)
			if !persona.Authorized(msg.UserID, authorizeByDefault) {
				slog.Debug("dropping message: sender not authorized", "location", location, "user_id", msg.UserID)
				return
			}

			if _, err := orch.HandleMessage(ctx, location, msg.Content); err != nil {
				slog.Error("orchestrator turn failed", "location", location, "error", err)
			}
		}(msg)
	}
}

func buildReportBackTargets(cfg *config.Config) map[string]orchestrator.ReportBackTarget {
	if len(cfg.Reportback.Executives) == 0 {
		return nil
	}
	targets := make(map[string]orchestrator.ReportBackTarget, len(cfg.Reportback.Executives))
	for _, exec := range cfg.Reportback.Executives {
		targets[exec.Location] = orchestrator.ReportBackTarget{Label: exec.Label, WebhookURL: exec.WebhookURL}
	}
	return targets
}

// resolveConfigFilePathForPID mirrors config.Load's own path resolution so
// the pid/log files land next to whichever config file was actually used.
func resolveConfigFilePathForPID() string {
	if cfgFile != "" {
		return cfgFile
	}
	if v := os.Getenv("LOOMGATE_CONFIG"); v != "" {
		return v
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "loomgate", "config.json")
	}
	return "config.json"
}

// startDetached re-execs the current binary with start (no --detach),
// redirecting its output to the log file and detaching it from the
// controlling terminal, then records its PID and returns immediately.
func startDetached() {
	cfgPath := resolveConfigFilePathForPID()
	logPath := logFilePath(cfgPath)

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log file %s: %v\n", logPath, err)
		os.Exit(1)
	}
	defer logFile.Close()

	exe, err := os.Executable()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to resolve executable: %v\n", err)
		os.Exit(1)
	}

	args := []string{"start"}
	if cfgFile != "" {
		args = append(args, "--config", cfgFile)
	}
	child := execDetached(exe, args, logFile)
	if err := child.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start detached gateway: %v\n", err)
		os.Exit(1)
	}

	pidPath := pidFilePath(cfgPath)
	if err := os.WriteFile(pidPath, []byte(fmt.Sprintf("%d", child.Process.Pid)), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to write pid file: %v\n", err)
	}
	fmt.Printf("loomgate started in background, pid %d (logs: %s)\n", child.Process.Pid, logPath)
}
