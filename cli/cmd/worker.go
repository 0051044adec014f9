package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/instantcocoa/rehoboam/pkg/telemetry"
	"github.com/instantcocoa/rehoboam/services/evaluator"
	"github.com/instantcocoa/rehoboam/services/runtime"
	"github.com/instantcocoa/rehoboam/services/worker"
)

// workerCmd runs the evaluation worker pool in the foreground. Unlike the
// daemon it serves no health endpoint; it is meant for development and
// one-off queue draining.
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the evaluation worker in the foreground",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		e, err := openEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		tp, err := telemetry.Setup(ctx, telemetry.Config{
			ServiceName:     "worker",
			ServiceVersion:  e.base.Version,
			Environment:     e.base.Environment,
			OTLPEndpoint:    e.base.ObserveEndpoint,
			TracingEnabled:  e.base.TracingEnabled,
			TracingSampling: e.base.TracingSampling,
			LogLevel:        e.base.LogLevel,
			LogFormat:       e.base.LogFormat,
		})
		if err != nil {
			return fmt.Errorf("failed to setup telemetry: %w", err)
		}
		defer tp.Shutdown(context.Background())

		logger := tp.Logger()

		registry := runtime.NewRegistry()
		if e.base.OpenAIAPIKey != "" {
			registry.Register(runtime.NewOpenAIProvider(e.base.OpenAIAPIKey))
		}
		if e.base.AnthropicAPIKey != "" {
			registry.Register(runtime.NewAnthropicProvider(e.base.AnthropicAPIKey))
		}

		clientCfg := runtime.DefaultClientConfig()
		clientCfg.MaxRetries = e.base.ProviderRetries
		clientCfg.EmbedModel = e.base.EmbeddingModel
		for _, ref := range e.base.FallbackModels {
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

		concurrency, _ := cmd.Flags().GetInt("concurrency")
		if concurrency <= 0 {
			concurrency = e.base.WorkerConcurrency
		}

		w := worker.New(e.queue, e.evals, e.catalog, evaluators, worker.Config{
			Concurrency: concurrency,
			TaskTimeout: e.base.TaskTimeout,
		}, logger)

		logger.Info("worker running",
			"concurrency", concurrency,
			"backend", string(e.base.StorageBackend))

		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	workerCmd.Flags().Int("concurrency", 0, "Worker goroutines (default from config)")
}
