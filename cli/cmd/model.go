package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/instantcocoa/rehoboam/cli/internal/output"
	"github.com/instantcocoa/rehoboam/services/catalog"
)

var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Manage the model catalog",
	Long:  "Commands for registering and inspecting models under evaluation.",
}

var modelCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Register a new model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cliContext()
		defer cancel()

		e, err := openEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		provider, _ := cmd.Flags().GetString("provider")
		version, _ := cmd.Flags().GetString("model-version")
		description, _ := cmd.Flags().GetString("description")
		params, _ := cmd.Flags().GetStringToString("param")

		model, err := e.catalogService().CreateModel(ctx, catalog.CreateModelInput{
			Name:        args[0],
			Provider:    catalog.ParseProvider(provider),
			Version:     version,
			Description: description,
			Parameters:  params,
		})
		if err != nil {
			return fmt.Errorf("failed to create model: %w", err)
		}

		output.Success("registered model %s (%s)", model.Name, model.ID)
		return nil
	},
}

var modelListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered models",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cliContext()
		defer cancel()

		e, err := openEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		provider, _ := cmd.Flags().GetString("provider")
		search, _ := cmd.Flags().GetString("search")
		limit, _ := cmd.Flags().GetInt("limit")

		models, total, err := e.catalogService().ListModels(ctx, catalog.ListModelsQuery{
			Provider: catalog.Provider(provider),
			Search:   search,
			Limit:    limit,
		})
		if err != nil {
			return fmt.Errorf("failed to list models: %w", err)
		}

		if cfg.Format == "json" || cfg.Format == "yaml" {
			w := output.NewWriter(cfg.Format)
			return w.Print(models)
		}

		table := output.Table{
			Headers: []string{"ID", "NAME", "PROVIDER", "VERSION", "CREATED"},
			Rows:    make([][]string, len(models)),
		}
		for i, m := range models {
			table.Rows[i] = []string{
				output.ShortID(m.ID),
				m.Name,
				string(m.Provider),
				output.OrDash(m.Version),
				output.FormatTime(m.CreatedAt),
			}
		}

		w := output.NewWriter("table")
		if err := w.Print(table); err != nil {
			return err
		}
		if total > len(models) {
			output.Info("showing %d of %d models", len(models), total)
		}
		return nil
	},
}

var modelGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Get a model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cliContext()
		defer cancel()

		e, err := openEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		model, err := e.catalogService().GetModel(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to get model: %w", err)
		}

		w := output.NewWriter(cfg.Format)
		return w.Print(model)
	},
}

var modelDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cliContext()
		defer cancel()

		e, err := openEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.catalogService().DeleteModel(ctx, args[0]); err != nil {
			return fmt.Errorf("failed to delete model: %w", err)
		}

		output.Success("deleted model %s", args[0])
		return nil
	},
}

func init() {
	providers := make([]string, 0, len(catalog.Providers()))
	for _, p := range catalog.Providers() {
		providers = append(providers, string(p))
	}

	modelCreateCmd.Flags().String("provider", "", "Model provider ("+strings.Join(providers, ", ")+")")
	modelCreateCmd.Flags().String("model-version", "", "Provider-side model version")
	modelCreateCmd.Flags().String("description", "", "Model description")
	modelCreateCmd.Flags().StringToString("param", nil, "Default completion parameter (key=value, repeatable)")
	modelCreateCmd.MarkFlagRequired("provider")

	modelListCmd.Flags().String("provider", "", "Filter by provider")
	modelListCmd.Flags().String("search", "", "Filter by name substring")
	modelListCmd.Flags().Int("limit", 50, "Maximum models to return")

	modelCmd.AddCommand(modelCreateCmd)
	modelCmd.AddCommand(modelListCmd)
	modelCmd.AddCommand(modelGetCmd)
	modelCmd.AddCommand(modelDeleteCmd)
}
