// Package cmd contains CLI commands.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/instantcocoa/rehoboam/cli/internal/config"
)

var (
	cfg     *config.Config
	format  string
	verbose bool
)

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "rehoboam",
	Short: "Rehoboam CLI - LLM Evaluation Harness",
	Long: `Rehoboam evaluates language models against a prompt catalog and
watches the resulting scores for regressions.

This CLI manages the model and prompt catalog, submits evaluations to
the worker queue, and inspects results and regression reports.

Examples:
  # Register a model
  rehoboam model create gpt-4o --provider openai

  # Register a factual QA prompt
  rehoboam prompt create --type factual_qa \
    --content "What is the capital of France?" \
    --meta expected_answer=Paris

  # Submit an evaluation
  rehoboam evaluate --model <model-id> --prompt <prompt-id>

  # Check for score regressions
  rehoboam regressions check --model <model-id> --type factual_qa
`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.DefaultConfig()
		if format != "" {
			cfg.Format = format
		}
		cfg.Verbose = verbose
	},
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&format, "output", "o", "", "Output format (table, json, yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	// Add subcommands
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(modelCmd)
	rootCmd.AddCommand(promptCmd)
	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(evaluationsCmd)
	rootCmd.AddCommand(regressionsCmd)
	rootCmd.AddCommand(versionCmd)
}

// versionCmd prints version info.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println("rehoboam version 0.1.0")
	},
}
