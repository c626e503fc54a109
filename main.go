package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"triage_server/adapter/in/ingest"
	"triage_server/config"
	"triage_server/core/domain"
	"triage_server/core/service/report"
	"triage_server/internal/bootstrap"
	"triage_server/pkg/logger"

	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
)

const (
	shutdownTimeout = 30 * time.Second // Maximum time to wait for graceful shutdown
)

func main() {
	// Initialize logger early
	logger.Init(logger.Config{
		Level:   logger.LevelInfo,
		Service: "triage",
	})

	// Load .env file if exists (for local development)
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, using environment variables")
	}

	mode := flag.String("mode", "serve", "Run mode: serve, classify")
	file := flag.String("file", "", "CSV file of reviews (classify mode)")
	workers := flag.Int("workers", 0, "Batch worker count override")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config: %v", err)
	}
	if *workers > 0 {
		cfg.Workers = *workers
	}

	switch *mode {
	case "serve":
		runAPI(cfg)
	case "classify":
		runClassify(cfg, *file)
	default:
		logger.Fatal("Unknown mode: %s", *mode)
	}
}

func runAPI(cfg *config.Config) {
	app, cleanup, err := bootstrap.NewAPI(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize API: %v", err)
	}
	defer cleanup()

	// Graceful shutdown with timeout
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down API server (timeout: %v)...", shutdownTimeout)

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			done <- app.Shutdown()
		}()

		select {
		case err := <-done:
			if err != nil {
				logger.Error("Error shutting down: %v", err)
			} else {
				logger.Info("API server shut down gracefully")
			}
		case <-ctx.Done():
			logger.Warn("API shutdown timed out, forcing exit")
		}
	}()

	addr := ":" + cfg.Port
	logger.Info("Starting API server on %s", addr)
	if err := app.Listen(addr); err != nil {
		logger.Fatal("Failed to start server: %v", err)
	}
}

// runClassify classifies a CSV of reviews and prints the enriched batch as
// JSON on stdout.
func runClassify(cfg *config.Config, file string) {
	if file == "" {
		logger.Fatal("classify mode requires -file")
	}

	deps, cleanup, err := bootstrap.NewDependencies(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize dependencies: %v", err)
	}
	defer cleanup()

	inputs, err := ingest.LoadReviewsFile(file)
	if err != nil {
		logger.Fatal("Failed to load reviews: %v", err)
	}
	logger.Info("Loaded %d reviews from %s", len(inputs), file)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	start := time.Now()
	stream := deps.Orchestrator.Run(ctx, domain.BatchJob{
		Inputs:      inputs,
		WorkerCount: cfg.Workers,
	})

	results, err := stream.Collect(ctx)
	if err != nil {
		logger.Fatal("Batch interrupted after %d of %d results: %v", len(results), len(inputs), err)
	}
	logger.Info("Classified %d reviews in %v", len(results), time.Since(start).Round(time.Millisecond))

	enriched, err := report.Enrich(inputs, results)
	if err != nil {
		logger.Fatal("Failed to enrich results: %v", err)
	}

	output := map[string]any{
		"reviews": enriched,
		"summary": report.Summarize(results),
		"latency": deps.Latency.Stats().ToMap(),
	}

	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		logger.Fatal("Failed to encode output: %v", err)
	}
	fmt.Println(string(data))
}
