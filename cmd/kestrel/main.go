// Kestrel - Real-time transaction fraud scoring.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/finwatch/kestrel/internal/alerts"
	"github.com/finwatch/kestrel/internal/api"
	"github.com/finwatch/kestrel/internal/bus"
	"github.com/finwatch/kestrel/internal/cache"
	"github.com/finwatch/kestrel/internal/config"
	"github.com/finwatch/kestrel/internal/detect"
	"github.com/finwatch/kestrel/internal/domain"
	"github.com/finwatch/kestrel/internal/metrics"
	"github.com/finwatch/kestrel/internal/repository"
	"github.com/finwatch/kestrel/internal/rules"
	"github.com/finwatch/kestrel/internal/scoring"
	"github.com/finwatch/kestrel/internal/velocity"
	"github.com/finwatch/kestrel/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Load configuration first so the logger honors it
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Logging)

	slog.Info("starting kestrel",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)
	slog.Info("configuration loaded",
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"scorer", cfg.Scoring.Scorer,
	)

	metrics.Register()

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Subscribe the in-process alert consumer before any verdicts are
	// published so the channel bus has a live subscriber from the start
	alertConsumer := alerts.NewConsumer(busImpl)
	if err := alertConsumer.Start(ctx); err != nil {
		slog.Error("failed to start alert consumer", "error", err)
		os.Exit(1)
	}
	defer alertConsumer.Stop()

	// Initialize Velocity Service
	velocitySvc := velocity.NewService(repo, cacheImpl)

	// Initialize Rule Evaluator with velocity getter
	evaluator, err := rules.NewEvaluator(velocitySvc.Getter(), cfg.Scoring.VelocityWindow)
	if err != nil {
		slog.Error("failed to initialize rule evaluator", "error", err)
		os.Exit(1)
	}
	defer evaluator.Close()

	if err := loadRules(ctx, repo, evaluator); err != nil {
		slog.Error("failed to load rules", "error", err)
		os.Exit(1)
	}
	slog.Info("rule evaluator initialized", "rules_count", evaluator.RulesCount())

	// Initialize fallback Scorer
	scorer, err := scoring.New(cfg.Scoring)
	if err != nil {
		slog.Error("failed to initialize scorer", "error", err)
		os.Exit(1)
	}
	slog.Info("scorer initialized", "name", scorer.Name(), "threshold", cfg.Scoring.FraudThreshold)

	// Initialize detection Service and batch Pool
	service := detect.NewService(repo, cacheImpl, busImpl, evaluator, scorer)
	pool := worker.NewPool(service, cfg.Batch)

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, service, pool, evaluator, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("kestrel is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("kestrel shutdown complete")
}

func setupLogger(cfg domain.LoggingConfig) {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// loadRules loads rule configs from the database into the evaluator.
// An empty table is seeded with the built-in rule set on first start.
func loadRules(ctx context.Context, repo domain.Repository, evaluator *rules.Evaluator) error {
	dbRules, err := repo.ListRuleConfigs(ctx)
	if err != nil {
		slog.Warn("failed to list rules from database", "error", err)
		return nil // Start with empty rules - they can be added via API
	}

	if len(dbRules) == 0 {
		slog.Info("no rules in database, seeding built-in rules")
		for _, rule := range rules.SeedRules() {
			if err := repo.SaveRuleConfig(ctx, rule); err != nil {
				return fmt.Errorf("seed rule %s: %w", rule.ID, err)
			}
		}
		dbRules, err = repo.ListRuleConfigs(ctx)
		if err != nil {
			return err
		}
	}

	slog.Info("loading rules from database", "count", len(dbRules))
	return evaluator.LoadRules(dbRules)
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               KESTREL                     ║")
	fmt.Println("  ║    Transaction Fraud Scoring Engine       ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /detect            - Score a transaction")
	fmt.Println("    POST /detect/batch      - Score a batch of transactions")
	fmt.Println("    GET  /detections/{id}   - Get detection by transaction ID")
	fmt.Println("    POST /report            - File a fraud report")
	fmt.Println("    GET  /rules             - List all rules")
	fmt.Println("    POST /rules             - Create a new rule")
	fmt.Println("    POST /rules/reload      - Hot-reload rules from database")
	fmt.Println("    GET  /health            - Health check")
	fmt.Println("    GET  /metrics           - Prometheus metrics")
	fmt.Println()
}
