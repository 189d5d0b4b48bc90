package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tmarlen/aurora/internal/calendar"
	"github.com/tmarlen/aurora/internal/config"
	"github.com/tmarlen/aurora/internal/evolution"
	"github.com/tmarlen/aurora/internal/grader"
	"github.com/tmarlen/aurora/internal/market"
	"github.com/tmarlen/aurora/internal/monitoring"
	"github.com/tmarlen/aurora/internal/parallax"
	"github.com/tmarlen/aurora/internal/risk"
	"github.com/tmarlen/aurora/internal/scheduler"
	"github.com/tmarlen/aurora/internal/store"
)

func main() {
	envFile := flag.String("env", ".env", "Environment file path")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil {
		log.Printf("No %s file, reading environment directly", *envFile)
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Refusing to start: %v", err)
	}

	fmt.Println("Aurora daemon starting...")

	repo, err := store.Open(cfg.Store.Path)
	if err != nil {
		log.Fatalf("Failed to open store at %s: %v", cfg.Store.Path, err)
	}
	defer repo.Close()

	cal := calendar.New()
	feed := market.NewVendorClient(cfg.Vendor.BaseURL, cfg.Vendor.Token, cfg.Vendor.Timeout)

	weights := parallax.NewWeightsCache(repo, cfg.Pipeline.WeightsTTL)
	fuserCfg := parallax.Config{
		TickSize:          cfg.Pipeline.TickSize,
		ValueAreaFraction: cfg.Pipeline.ValueAreaFrac,
		IBDuration:        cfg.Pipeline.IBDuration,
		ORBDuration:       cfg.Pipeline.ORBDuration,
		ATRMult:           cfg.Risk.ATRFallback,
		ConfidenceFloor:   cfg.Pipeline.ConfidenceFloor,
	}
	fuser := parallax.New(weights, fuserCfg)

	projector := risk.NewProjector()
	projector.DefaultStopPct = cfg.Risk.StopLossPct
	projector.DefaultTargetMult = cfg.Risk.TargetMultiple

	gaParams := evolution.Params{
		PopulationSize: cfg.Evolution.PopulationSize,
		EliteCount:     cfg.Evolution.EliteCount,
		MutationRate:   cfg.Evolution.MutationRate,
		CrossoverRate:  cfg.Evolution.CrossoverRate,
		Generations:    1,
	}
	optimizer := evolution.NewOptimizer(repo, weights, gaParams, fuserCfg, cfg.Grading.WinRateFloor)
	reconciler := grader.NewGrader(repo, projector, optimizer)
	reconciler.SetThresholds(grader.Thresholds{
		WindowDays:     cfg.Grading.RollingWindowDays,
		AlertThreshold: cfg.Grading.DegradationAlert,
		MinGraded:      cfg.Grading.MinGradedForAlert,
	})

	daemon := scheduler.New(scheduler.Options{
		Calendar:     cal,
		Feed:         feed,
		Repo:         repo,
		Fuser:        fuser,
		Projector:    projector,
		Grader:       reconciler,
		Health:       startMonitoring(cfg),
		TickInterval: cfg.Pipeline.TickInterval,
		Primary:      cfg.Tickers.Primary,
		FridayOnly:   cfg.Tickers.FridayOnly,
	})

	if err := daemon.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	log.Printf("[Main] tracking %s (friday set: %v)", cfg.Tickers.Primary, cfg.Tickers.FridayOnly)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	fmt.Println("\nShutting down...")
	daemon.Stop()
	fmt.Println("Aurora daemon stopped.")
}

// startMonitoring brings up the metrics and health listeners. Their failure
// is logged, never fatal; the pipeline runs without them.
func startMonitoring(cfg *config.Config) *monitoring.HealthChecker {
	health := monitoring.NewHealthChecker()

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Monitoring.MetricsPort)
		mux := http.NewServeMux()
		mux.Handle("/metrics", monitoring.Handler())
		srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		log.Printf("[Main] metrics on %s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[Main] metrics server: %v", err)
		}
	}()

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Monitoring.HealthPort)
		mux := http.NewServeMux()
		mux.Handle("/health", health)
		srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		log.Printf("[Main] health on %s/health", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[Main] health server: %v", err)
		}
	}()

	return health
}
