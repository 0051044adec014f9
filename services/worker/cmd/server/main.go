package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/instantcocoa/rehoboam/pkg/cache"
	"github.com/instantcocoa/rehoboam/pkg/config"
	"github.com/instantcocoa/rehoboam/pkg/database"
	"github.com/instantcocoa/rehoboam/pkg/grpcutil"
	"github.com/instantcocoa/rehoboam/pkg/telemetry"
	"github.com/instantcocoa/rehoboam/services/catalog"
	"github.com/instantcocoa/rehoboam/services/evaluation"
	"github.com/instantcocoa/rehoboam/services/evaluator"
	"github.com/instantcocoa/rehoboam/services/runtime"
	"github.com/instantcocoa/rehoboam/services/worker"
)

const (
	serviceName = "worker"
	defaultPort = 9001
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	cfg, err := config.Load(serviceName)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.GRPCPort = defaultPort

	tp, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:     serviceName,
		ServiceVersion:  cfg.Version,
		Environment:     cfg.Environment,
		OTLPEndpoint:    cfg.ObserveEndpoint,
		TracingEnabled:  cfg.TracingEnabled,
		TracingSampling: cfg.TracingSampling,
		LogLevel:        cfg.LogLevel,
		LogFormat:       cfg.LogFormat,
	})
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	defer tp.Shutdown(ctx)

	logger := tp.Logger()

	var sqlDB *sql.DB
	if cfg.UsePostgresStorage() {
		db, err := database.ConnectDSN(ctx, cfg.DatabaseDSN())
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()
		sqlDB = db.DB
	}

	catalogStore, err := catalog.NewStore(catalog.StoreOptions{
		Backend: cfg.StorageBackend,
		DB:      sqlDB,
	})
	if err != nil {
		return fmt.Errorf("failed to create catalog store: %w", err)
	}
	evalStore, err := evaluation.NewStore(evaluation.StoreOptions{
		Backend: cfg.StorageBackend,
		DB:      sqlDB,
		Catalog: catalogStore,
	})
	if err != nil {
		return fmt.Errorf("failed to create evaluation store: %w", err)
	}

	// The memory backend keeps the queue in-process too; postgres deployments
	// share tasks across workers through Redis.
	var queue worker.Queue
	if cfg.UsePostgresStorage() {
		redisCfg := cache.DefaultConfig()
		redisCfg.Addr = cfg.RedisAddr
		redisCfg.Password = cfg.RedisPassword
		redisCfg.DB = cfg.RedisDB
		redisClient, err := cache.Connect(ctx, redisCfg)
		if err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		defer redisClient.Close()
		queue = worker.NewRedisQueue(redisClient.WithLogger(logger), cfg.QueueName)
	} else {
		queue = worker.NewMemoryQueue(0)
	}

	registry := runtime.NewRegistry()
	if cfg.OpenAIAPIKey != "" {
		registry.Register(runtime.NewOpenAIProvider(cfg.OpenAIAPIKey))
	}
	if cfg.AnthropicAPIKey != "" {
		registry.Register(runtime.NewAnthropicProvider(cfg.AnthropicAPIKey))
	}

	clientCfg := runtime.DefaultClientConfig()
	clientCfg.MaxRetries = cfg.ProviderRetries
	clientCfg.EmbedModel = cfg.EmbeddingModel
	for _, ref := range cfg.FallbackModels {
		parsed, err := runtime.ParseModelRef(ref)
		if err != nil {
			return fmt.Errorf("invalid fallback model: %w", err)
		}
		clientCfg.Fallbacks = append(clientCfg.Fallbacks, parsed)
	}
	client := runtime.NewClient(registry, clientCfg, logger)

	evaluators, err := evaluator.DefaultRegistry(client)
	if err != nil {
		return fmt.Errorf("failed to build evaluator registry: %w", err)
	}

	w := worker.New(queue, evalStore, catalogStore, evaluators, worker.Config{
		Concurrency: cfg.WorkerConcurrency,
		TaskTimeout: cfg.TaskTimeout,
	}, logger)

	serverCfg := grpcutil.DefaultServerConfig(cfg.GRPCPort, serviceName)
	server := grpcutil.NewServer(serverCfg, logger)

	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	workerDone := make(chan error, 1)
	go func() {
		workerDone <- w.Run(workerCtx)
	}()

	logger.Info("starting evaluation worker",
		"port", cfg.GRPCPort,
		"env", cfg.Environment,
		"concurrency", cfg.WorkerConcurrency,
		"backend", string(cfg.StorageBackend))

	err = server.Run(ctx)
	cancel()
	<-workerDone
	return err
}
