package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/instantcocoa/rehoboam/cli/internal/output"
	"github.com/instantcocoa/rehoboam/services/catalog"
	"github.com/instantcocoa/rehoboam/services/regression"
)

var regressionsCmd = &cobra.Command{
	Use:   "regressions",
	Short: "Detect and inspect score regressions",
	Long:  "Commands for comparing recent evaluation scores against their historical baselines.",
}

func openRegressionStore(e *env) (regression.Store, error) {
	opts := regression.StoreOptions{Backend: e.base.StorageBackend}
	if e.db != nil {
		opts.DB = e.db.DB
	}
	return regression.NewStore(opts)
}

var regressionsCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Run a regression check for a model",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cliContext()
		defer cancel()

		e, err := openEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		logs, err := openRegressionStore(e)
		if err != nil {
			return err
		}

		modelID, _ := cmd.Flags().GetString("model")
		promptType, _ := cmd.Flags().GetString("type")

		detector := regression.NewDetector(e.evals, logs, e.logger)
		report, err := detector.Check(ctx, modelID, catalog.PromptType(promptType))
		if err != nil {
			return fmt.Errorf("regression check failed: %w", err)
		}

		if cfg.Format == "json" || cfg.Format == "yaml" {
			w := output.NewWriter(cfg.Format)
			return w.Print(report)
		}

		switch report.Status {
		case regression.StatusNoData:
			output.Info("no evaluations recorded for this model and type")
			return nil
		case regression.StatusNoScores:
			output.Info("evaluations exist but none have settled with scores yet")
			return nil
		}

		if len(report.Regressions) == 0 {
			output.Success("no regressions across %d scored evaluations", report.SampleSize)
			return nil
		}

		table := output.Table{
			Headers: []string{"METRIC", "PREVIOUS", "CURRENT", "SHIFT", "SEVERITY"},
		}
		for metric, shift := range report.Regressions {
			table.Rows = append(table.Rows, []string{
				metric,
				output.FormatScore(shift.PreviousScore),
				output.FormatScore(shift.CurrentScore),
				output.FormatScore(shift.Difference),
				string(shift.Severity),
			})
		}

		w := output.NewWriter("table")
		if err := w.Print(table); err != nil {
			return err
		}
		output.Error("%d metric(s) regressed over %d scored evaluations", len(report.Regressions), report.SampleSize)
		return nil
	},
}

var regressionsLogsCmd = &cobra.Command{
	Use:   "logs",
	Short: "List recorded regressions",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cliContext()
		defer cancel()

		e, err := openEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		logs, err := openRegressionStore(e)
		if err != nil {
			return err
		}

		modelID, _ := cmd.Flags().GetString("model")
		promptType, _ := cmd.Flags().GetString("type")
		limit, _ := cmd.Flags().GetInt("limit")

		entries, err := logs.List(ctx, modelID, catalog.PromptType(promptType), limit)
		if err != nil {
			return fmt.Errorf("failed to list regression logs: %w", err)
		}

		if cfg.Format == "json" || cfg.Format == "yaml" {
			w := output.NewWriter(cfg.Format)
			return w.Print(entries)
		}

		table := output.Table{
			Headers: []string{"WHEN", "MODEL", "TYPE", "METRIC", "SHIFT", "SEVERITY"},
			Rows:    make([][]string, len(entries)),
		}
		for i, entry := range entries {
			table.Rows[i] = []string{
				output.FormatTime(entry.CreatedAt),
				output.ShortID(entry.ModelID),
				string(entry.EvaluationType),
				entry.Metric,
				output.FormatScore(entry.Difference),
				string(entry.Severity),
			}
		}

		w := output.NewWriter("table")
		return w.Print(table)
	},
}

func init() {
	regressionsCheckCmd.Flags().String("model", "", "Model ID")
	regressionsCheckCmd.Flags().String("type", "", "Prompt type")
	regressionsCheckCmd.MarkFlagRequired("model")
	regressionsCheckCmd.MarkFlagRequired("type")

	regressionsLogsCmd.Flags().String("model", "", "Filter by model ID")
	regressionsLogsCmd.Flags().String("type", "", "Filter by prompt type")
	regressionsLogsCmd.Flags().Int("limit", 50, "Maximum entries to return")

	regressionsCmd.AddCommand(regressionsCheckCmd)
	regressionsCmd.AddCommand(regressionsLogsCmd)
}
