package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/instantcocoa/rehoboam/cli/internal/output"
	"github.com/instantcocoa/rehoboam/services/catalog"
	"github.com/instantcocoa/rehoboam/services/evaluation"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Submit evaluations to the worker queue",
	Long: `Submit one evaluation per prompt for the given model. Evaluations
are queued and run asynchronously; use "rehoboam evaluations get" to
check results.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cliContext()
		defer cancel()

		e, err := openEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		svc, err := e.evaluationService()
		if err != nil {
			return err
		}

		modelID, _ := cmd.Flags().GetString("model")
		promptIDs, _ := cmd.Flags().GetStringSlice("prompt")
		metadata, _ := cmd.Flags().GetStringToString("meta")

		if len(promptIDs) == 1 {
			eval, task, err := svc.Create(ctx, evaluation.CreateInput{
				ModelID:  modelID,
				PromptID: promptIDs[0],
				Metadata: metadata,
			})
			if err != nil {
				return fmt.Errorf("failed to submit evaluation: %w", err)
			}
			output.Success("queued evaluation %s (task %s)", eval.ID, output.ShortID(task.TaskID))
			return nil
		}

		inputs := make([]evaluation.CreateInput, len(promptIDs))
		for i, promptID := range promptIDs {
			inputs[i] = evaluation.CreateInput{
				ModelID:  modelID,
				PromptID: promptID,
				Metadata: metadata,
			}
		}

		results := svc.CreateBatch(ctx, inputs)

		var failed int
		table := output.Table{
			Headers: []string{"PROMPT", "EVALUATION", "STATUS"},
			Rows:    make([][]string, len(results)),
		}
		for i, r := range results {
			if r.Err != nil {
				failed++
				table.Rows[i] = []string{output.ShortID(r.Input.PromptID), "-", r.Err.Error()}
				continue
			}
			table.Rows[i] = []string{output.ShortID(r.Input.PromptID), r.Evaluation.ID, "queued"}
		}

		w := output.NewWriter("table")
		if err := w.Print(table); err != nil {
			return err
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d evaluations failed to queue", failed, len(results))
		}
		output.Success("queued %d evaluations", len(results))
		return nil
	},
}

var evaluationsCmd = &cobra.Command{
	Use:   "evaluations",
	Short: "Inspect evaluation results",
	Long:  "Commands for retrieving queued and settled evaluations.",
}

var evaluationsGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Get an evaluation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cliContext()
		defer cancel()

		e, err := openEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		svc, err := e.evaluationService()
		if err != nil {
			return err
		}

		eval, err := svc.Get(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to get evaluation: %w", err)
		}

		w := output.NewWriter(cfg.Format)
		return w.Print(eval)
	},
}

var evaluationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List evaluations",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cliContext()
		defer cancel()

		e, err := openEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		svc, err := e.evaluationService()
		if err != nil {
			return err
		}

		modelID, _ := cmd.Flags().GetString("model")
		promptID, _ := cmd.Flags().GetString("prompt")
		promptType, _ := cmd.Flags().GetString("type")
		limit, _ := cmd.Flags().GetInt("limit")

		evals, total, err := svc.List(ctx, evaluation.ListQuery{
			ModelID:    modelID,
			PromptID:   promptID,
			PromptType: catalog.PromptType(promptType),
			Limit:      limit,
		})
		if err != nil {
			return fmt.Errorf("failed to list evaluations: %w", err)
		}

		if cfg.Format == "json" || cfg.Format == "yaml" {
			w := output.NewWriter(cfg.Format)
			return w.Print(evals)
		}

		table := output.Table{
			Headers: []string{"ID", "MODEL", "PROMPT", "STATUS", "DURATION", "CREATED"},
			Rows:    make([][]string, len(evals)),
		}
		for i, ev := range evals {
			duration := "-"
			if ev.DurationMs != nil {
				duration = fmt.Sprintf("%dms", *ev.DurationMs)
			}
			table.Rows[i] = []string{
				output.ShortID(ev.ID),
				output.ShortID(ev.ModelID),
				output.ShortID(ev.PromptID),
				string(ev.Status()),
				duration,
				output.FormatTime(ev.CreatedAt),
			}
		}

		w := output.NewWriter("table")
		if err := w.Print(table); err != nil {
			return err
		}
		if total > len(evals) {
			output.Info("showing %d of %d evaluations", len(evals), total)
		}
		return nil
	},
}

func init() {
	evaluateCmd.Flags().String("model", "", "Model ID")
	evaluateCmd.Flags().StringSlice("prompt", nil, "Prompt ID (repeatable)")
	evaluateCmd.Flags().StringToString("meta", nil, "Metadata entry (key=value, repeatable)")
	evaluateCmd.MarkFlagRequired("model")
	evaluateCmd.MarkFlagRequired("prompt")

	evaluationsListCmd.Flags().String("model", "", "Filter by model ID")
	evaluationsListCmd.Flags().String("prompt", "", "Filter by prompt ID")
	evaluationsListCmd.Flags().String("type", "", "Filter by prompt type")
	evaluationsListCmd.Flags().Int("limit", 50, "Maximum evaluations to return")

	evaluationsCmd.AddCommand(evaluationsGetCmd)
	evaluationsCmd.AddCommand(evaluationsListCmd)
}
