package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/aide/internal/assemble"
	"github.com/user/aide/internal/calendar"
	"github.com/user/aide/internal/capabilities"
	"github.com/user/aide/internal/delivery"
	"github.com/user/aide/internal/dispatch"
	"github.com/user/aide/internal/google"
	"github.com/user/aide/internal/orchestrator"
	"github.com/user/aide/internal/scheduler"
	"github.com/user/aide/internal/state"
	"github.com/user/aide/internal/telegram"
	"github.com/user/aide/internal/webhook"
	"github.com/user/aide/pkg/assistants/openai"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the aide daemon",
	RunE:  runServe,
}

func writePIDFile(dataDir string) (string, error) {
	pidPath := filepath.Join(dataDir, "aide.pid")
	pid := os.Getpid()
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return pidPath, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	pidPath, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(pidPath)

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Stores
	threads := state.NewThreadStore(filepath.Join(cfg.DataDir, "threads.json"))

	// Assistant provider
	provider := openai.New(&openai.Config{
		BaseURL:     cfg.Assistant.BaseURL,
		APIKey:      cfg.Assistant.APIKey,
		AssistantID: cfg.Assistant.AssistantID,
	})

	// Google clients and the calendar engine
	calendarClient := google.NewCalendarClient(cfg.Google.AccessToken)
	sourceReg := calendar.Probe(ctx, calendarClient, cfg.Calendars)
	if sourceReg.Empty() {
		slog.Warn("no calendar sources reachable at startup")
	}
	engine := calendar.NewEngine(calendarClient, loc)

	// Capability registry
	truncator, err := dispatch.NewTruncator(cfg.Assistant.Model, cfg.MaxOutputTokens)
	if err != nil {
		return fmt.Errorf("create truncator: %w", err)
	}
	registry := dispatch.NewRegistry(int64(cfg.MaxConcurrent), truncator)

	cal := capabilities.NewCalendar(engine, calendarClient, sourceReg)
	cal.RegisterAll(registry)

	if cfg.Google.AccessToken != "" {
		gmailClient := google.NewGmailClient(cfg.Google.AccessToken)
		capabilities.NewEmail(gmailClient).RegisterAll(registry)
	} else {
		slog.Warn("email capabilities disabled (no google token)")
	}

	capabilities.NewWeather(cfg.Weather.Latitude, cfg.Weather.Longitude, cfg.Weather.Place).RegisterAll(registry)

	if cfg.Brave.APIKey != "" {
		capabilities.NewResearch(cfg.Brave.APIKey).RegisterAll(registry)
	} else {
		slog.Warn("web search disabled (no brave key)")
	}

	// Orchestrator
	guard := orchestrator.NewGuard(time.Duration(cfg.ThrottleSeconds) * time.Second)
	poll := orchestrator.PollPolicy{
		MaxAttempts: cfg.Poll.MaxAttempts,
		Interval:    time.Duration(cfg.Poll.IntervalSeconds) * time.Second,
	}
	assembler := assemble.New(cfg.MessageCharLimit)
	orch := orchestrator.New(provider, registry, threads, guard, poll, assembler, loc, sourceReg.Names())

	slog.Info("aide started",
		"data_dir", cfg.DataDir,
		"log_level", cfg.LogLevel,
		"timezone", cfg.Timezone,
		"sources", len(sourceReg.Sources()),
		"capabilities", len(registry.Names()),
		"model", cfg.Assistant.Model,
		"pid_file", pidPath,
	)

	// Delivery registry
	deliveryReg := delivery.NewRegistry()

	// Telegram adapter
	if cfg.Telegram.Token != "" {
		adapter, err := telegram.New(cfg.Telegram.Token, orch, threads, cal.Briefing)
		if err != nil {
			return fmt.Errorf("create telegram adapter: %w", err)
		}
		adapter.RegisterDelivery(deliveryReg)
		go adapter.Start(ctx)
		slog.Info("telegram adapter started")
	} else {
		slog.Warn("telegram adapter disabled (no token)")
	}

	// Scheduled briefing
	var sched *scheduler.Scheduler
	if cfg.Briefing.Enabled && cfg.Briefing.ChatID != 0 {
		sessionKey := telegram.SessionPrefix + strconv.FormatInt(cfg.Briefing.ChatID, 10)
		sched = scheduler.New(deliveryReg, cal.Briefing, sessionKey, cfg.Briefing.Cron)
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		defer sched.Stop()
		slog.Info("briefing scheduler started", "schedule", cfg.Briefing.Cron)
	}

	// Webhook HTTP server
	if cfg.HTTP.Enabled {
		var trigger webhook.BriefingTrigger
		if sched != nil {
			trigger = func() { sched.Fire(ctx) }
		}
		webhookSrv := webhook.NewServer(sourceReg, trigger)
		httpServer := &http.Server{
			Addr:    cfg.HTTP.Listen,
			Handler: webhookSrv,
		}
		go func() {
			slog.Info("webhook server started", "listen", cfg.HTTP.Listen)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("webhook server error", "error", err)
			}
		}()
		go func() {
			<-ctx.Done()
			httpServer.Close()
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	slog.Info("shutting down", "signal", sig)
	return nil
}
