package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/instantcocoa/rehoboam/pkg/cache"
	pkgconfig "github.com/instantcocoa/rehoboam/pkg/config"
	"github.com/instantcocoa/rehoboam/pkg/database"
	"github.com/instantcocoa/rehoboam/services/catalog"
	"github.com/instantcocoa/rehoboam/services/evaluation"
	"github.com/instantcocoa/rehoboam/services/evaluator"
	"github.com/instantcocoa/rehoboam/services/runtime"
	"github.com/instantcocoa/rehoboam/services/worker"
)

// env bundles the storage and queue handles commands operate on. The CLI
// talks to the same stores as the worker daemon; with the postgres backend
// every invocation shares state through the database and Redis.
type env struct {
	base   *pkgconfig.Base
	logger *slog.Logger

	catalog catalog.Store
	evals   evaluation.Store
	queue   worker.Queue

	db    *database.DB
	redis *cache.Client
}

// openEnv connects the configured backend. Callers must Close the result.
func openEnv(ctx context.Context) (*env, error) {
	base, err := pkgconfig.Load("cli")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if cfg.Verbose {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	e := &env{base: base, logger: logger}

	var sqlDB *sql.DB
	if base.UsePostgresStorage() {
		db, err := database.ConnectDSN(ctx, base.DatabaseDSN())
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		e.db = db
		sqlDB = db.DB
	}

	e.catalog, err = catalog.NewStore(catalog.StoreOptions{
		Backend: base.StorageBackend,
		DB:      sqlDB,
	})
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("failed to create catalog store: %w", err)
	}
	e.evals, err = evaluation.NewStore(evaluation.StoreOptions{
		Backend: base.StorageBackend,
		DB:      sqlDB,
		Catalog: e.catalog,
	})
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("failed to create evaluation store: %w", err)
	}

	if base.UsePostgresStorage() {
		redisCfg := cache.DefaultConfig()
		redisCfg.Addr = base.RedisAddr
		redisCfg.Password = base.RedisPassword
		redisCfg.DB = base.RedisDB
		redisClient, err := cache.Connect(ctx, redisCfg)
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		e.redis = redisClient
		e.queue = worker.NewRedisQueue(redisClient, base.QueueName)
	} else {
		e.queue = worker.NewMemoryQueue(0)
	}

	return e, nil
}

// Close releases database and Redis connections.
func (e *env) Close() {
	if e.redis != nil {
		e.redis.Close()
	}
	if e.db != nil {
		e.db.Close()
	}
}

// catalogService returns the catalog service over the opened stores.
func (e *env) catalogService() *catalog.Service {
	return catalog.NewService(e.catalog)
}

// evaluationService returns the evaluation service over the opened stores.
// The evaluator registry is built without provider credentials; submission
// only consults it for prompt type support.
func (e *env) evaluationService() (*evaluation.Service, error) {
	client := runtime.NewClient(runtime.NewRegistry(), runtime.DefaultClientConfig(), e.logger)
	evaluators, err := evaluator.DefaultRegistry(client)
	if err != nil {
		return nil, fmt.Errorf("failed to build evaluator registry: %w", err)
	}
	return evaluation.NewService(e.evals, e.catalog, e.queue, evaluators, e.logger), nil
}

// cliContext returns a context bounded by the configured command timeout.
func cliContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), cfg.Timeout)
}
