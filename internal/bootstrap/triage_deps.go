package bootstrap

import (
	"context"
	"os"
	"time"

	"triage_server/adapter/out/cache"
	"triage_server/adapter/out/persistence"
	"triage_server/config"
	"triage_server/core/agent/llm"
	"triage_server/core/port/out"
	"triage_server/core/service/triage"
	"triage_server/infra/database"
	"triage_server/pkg/logger"
	"triage_server/pkg/metrics"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Dependencies wires the triage core to its configured adapters. Redis, the
// database, and the remote classifier are all optional: the classifier
// degrades to rule-only operation when they are absent.
type Dependencies struct {
	Log zerolog.Logger

	Redis *redis.Client
	DB    *sqlx.DB

	Remote       out.RemoteClassifier
	Cache        out.ClassificationCache
	BatchRepo    out.BatchResultRepository
	Latency      *metrics.LatencyTracker
	Classifier   *triage.Classifier
	Orchestrator *triage.Orchestrator
}

// NewDependencies builds the dependency graph from configuration. The
// returned cleanup closes all owned connections.
func NewDependencies(cfg *config.Config) (*Dependencies, func(), error) {
	zlog := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
		With().Timestamp().Str("component", "triage").Logger()

	deps := &Dependencies{
		Log:     zlog,
		Latency: metrics.NewLatencyTracker(1000),
	}

	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	// Redis (optional)
	if cfg.RedisURL != "" {
		client, err := database.NewRedis(cfg.RedisURL)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, running without cache")
		} else {
			deps.Redis = client
			deps.Cache = cache.NewClassificationCache(client, time.Duration(cfg.CacheTTLMin)*time.Minute)
			cleanups = append(cleanups, func() { client.Close() })
			logger.Info("Redis cache connected")
		}
	}

	// Postgres (optional)
	if cfg.DatabaseURL != "" {
		db, err := database.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		deps.DB = db
		cleanups = append(cleanups, func() { db.Close() })

		repo := persistence.NewBatchResultAdapter(db)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = repo.EnsureSchema(ctx)
		cancel()
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		deps.BatchRepo = repo
		logger.Info("Postgres batch storage connected")
	}

	// Remote classifier (optional)
	if cfg.RemoteEnabled() {
		client := llm.NewClient(llm.ClientConfig{
			APIKey:      cfg.GroqAPIKey,
			BaseURL:     cfg.LLMBaseURL,
			Model:       cfg.LLMModel,
			MaxTokens:   cfg.LLMMaxTokens,
			Temperature: cfg.LLMTemperature,
			Timeout:     time.Duration(cfg.LLMTimeoutSec) * time.Second,
		}, zlog)
		deps.Remote = client
		logger.Info("Remote classifier enabled: %s", cfg.LLMModel)
	} else {
		logger.Info("No GROQ_API_KEY set, running rule-only classification")
	}

	deps.Classifier = triage.NewClassifier(deps.Remote, deps.Cache, zlog)
	deps.Orchestrator = triage.NewOrchestrator(deps.Classifier, deps.Latency, zlog)

	return deps, cleanup, nil
}
