package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/gridwise/carbonsched/internal/carbon"
	"github.com/gridwise/carbonsched/internal/config"
	"github.com/gridwise/carbonsched/internal/emissions"
	"github.com/gridwise/carbonsched/internal/job"
	"github.com/gridwise/carbonsched/internal/platform/sqlite"
	emissionsrepo "github.com/gridwise/carbonsched/internal/repository/emissions"
	jobrepo "github.com/gridwise/carbonsched/internal/repository/job"
	"github.com/gridwise/carbonsched/internal/scheduler"
	"github.com/gridwise/carbonsched/internal/server"
)

func main() {
	cfg := config.Load()

	// Root context: cancelled on SIGINT/SIGTERM so in-flight evaluation and
	// run requests wind down during graceful shutdown.
	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	// Open database
	db, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	// Repositories
	jobRepo := jobrepo.NewRepository(db.DB)
	emissionsRepo := emissionsrepo.NewRepository(db.DB)

	// Components: explicit wiring, no shared singletons.
	jobSvc := job.NewService(jobRepo)
	carbonClient := carbon.New(
		carbon.WithEndpoint(cfg.CarbonAPIURL),
		carbon.WithToken(cfg.CarbonAPIToken),
	)
	ledger := emissions.NewLedger(emissionsRepo, emissions.NopMeter{}, cfg.CountryCode)
	engine := scheduler.NewEngine(jobSvc, carbonClient, ledger)

	// Websocket hub: push fresh dashboard stats after each cycle or run.
	hub := server.NewHub()
	engine.SetNotify(func() {
		stats, statsErr := engine.DashboardStats(rootCtx)
		if statsErr != nil {
			slog.Error("dashboard stats for broadcast", "error", statsErr)
			return
		}
		hub.Broadcast("dashboard", stats)
	})

	// Optional periodic evaluation cycles.
	var c *cron.Cron
	if cfg.EvalSchedule != "" {
		c = cron.New()
		_, cronErr := c.AddFunc(cfg.EvalSchedule, func() {
			if _, evalErr := engine.Evaluate(rootCtx, cfg.DefaultRegion); evalErr != nil {
				slog.Error("scheduled evaluation failed", "error", evalErr)
			}
		})
		if cronErr != nil {
			slog.Error("invalid EVAL_SCHEDULE", "schedule", cfg.EvalSchedule, "error", cronErr)
			os.Exit(1)
		}
		c.Start()
		slog.Info("periodic evaluation enabled", "schedule", cfg.EvalSchedule, "region", cfg.DefaultRegion)
	}

	mux := server.NewHandler(jobSvc, engine, carbonClient, hub, server.Options{
		DefaultRegion:  cfg.DefaultRegion,
		CompareRegions: cfg.CompareRegions,
	})
	srv := server.New(rootCtx, cfg.Port, mux)

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("server started", "port", cfg.Port, "region", cfg.DefaultRegion)
	<-done

	rootCancel()

	if c != nil {
		// Wait for any in-flight cron-triggered evaluation to finish.
		<-c.Stop().Done()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	slog.Info("server stopped")
}
