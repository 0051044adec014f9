package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/instantcocoa/rehoboam/cli/internal/output"
	"github.com/instantcocoa/rehoboam/services/catalog"
)

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Manage the prompt catalog",
	Long:  "Commands for registering and inspecting evaluation prompts.",
}

var promptCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a new prompt",
	Long: `Register a new evaluation prompt.

The prompt body comes from --content or --file. Factual QA prompts need
an expected_answer metadata entry:

  rehoboam prompt create --type factual_qa \
    --content "What is the capital of France?" \
    --meta expected_answer=Paris`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cliContext()
		defer cancel()

		content, _ := cmd.Flags().GetString("content")
		file, _ := cmd.Flags().GetString("file")
		if content == "" && file == "" {
			return fmt.Errorf("either --content or --file is required")
		}
		if file != "" {
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read prompt file: %w", err)
			}
			content = string(data)
		}

		e, err := openEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		promptType, _ := cmd.Flags().GetString("type")
		tags, _ := cmd.Flags().GetStringSlice("tag")
		metadata, _ := cmd.Flags().GetStringToString("meta")

		prompt, err := e.catalogService().CreatePrompt(ctx, catalog.CreatePromptInput{
			Content:  content,
			Type:     catalog.ParsePromptType(promptType),
			Tags:     tags,
			Metadata: metadata,
		})
		if err != nil {
			return fmt.Errorf("failed to create prompt: %w", err)
		}

		output.Success("registered %s prompt %s", prompt.Type, prompt.ID)
		return nil
	},
}

var promptListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered prompts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cliContext()
		defer cancel()

		e, err := openEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		promptType, _ := cmd.Flags().GetString("type")
		tags, _ := cmd.Flags().GetStringSlice("tag")
		limit, _ := cmd.Flags().GetInt("limit")

		prompts, total, err := e.catalogService().ListPrompts(ctx, catalog.ListPromptsQuery{
			Type:  catalog.PromptType(promptType),
			Tags:  tags,
			Limit: limit,
		})
		if err != nil {
			return fmt.Errorf("failed to list prompts: %w", err)
		}

		if cfg.Format == "json" || cfg.Format == "yaml" {
			w := output.NewWriter(cfg.Format)
			return w.Print(prompts)
		}

		table := output.Table{
			Headers: []string{"ID", "TYPE", "CONTENT", "TAGS", "CREATED"},
			Rows:    make([][]string, len(prompts)),
		}
		for i, p := range prompts {
			table.Rows[i] = []string{
				output.ShortID(p.ID),
				string(p.Type),
				output.Truncate(p.Content, 48),
				output.OrDash(strings.Join(p.Tags, ",")),
				output.FormatTime(p.CreatedAt),
			}
		}

		w := output.NewWriter("table")
		if err := w.Print(table); err != nil {
			return err
		}
		if total > len(prompts) {
			output.Info("showing %d of %d prompts", len(prompts), total)
		}
		return nil
	},
}

var promptGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Get a prompt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cliContext()
		defer cancel()

		e, err := openEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		prompt, err := e.catalogService().GetPrompt(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to get prompt: %w", err)
		}

		w := output.NewWriter(cfg.Format)
		return w.Print(prompt)
	},
}

var promptDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a prompt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cliContext()
		defer cancel()

		e, err := openEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.catalogService().DeletePrompt(ctx, args[0]); err != nil {
			return fmt.Errorf("failed to delete prompt: %w", err)
		}

		output.Success("deleted prompt %s", args[0])
		return nil
	},
}

func init() {
	types := make([]string, 0, len(catalog.PromptTypes()))
	for _, pt := range catalog.PromptTypes() {
		types = append(types, string(pt))
	}

	promptCreateCmd.Flags().String("content", "", "Prompt body")
	promptCreateCmd.Flags().String("file", "", "Read the prompt body from a file")
	promptCreateCmd.Flags().String("type", "", "Prompt type ("+strings.Join(types, ", ")+")")
	promptCreateCmd.Flags().StringSlice("tag", nil, "Tag (repeatable)")
	promptCreateCmd.Flags().StringToString("meta", nil, "Metadata entry (key=value, repeatable)")
	promptCreateCmd.MarkFlagRequired("type")

	promptListCmd.Flags().String("type", "", "Filter by prompt type")
	promptListCmd.Flags().StringSlice("tag", nil, "Filter by tag (all must match)")
	promptListCmd.Flags().Int("limit", 50, "Maximum prompts to return")

	promptCmd.AddCommand(promptCreateCmd)
	promptCmd.AddCommand(promptListCmd)
	promptCmd.AddCommand(promptGetCmd)
	promptCmd.AddCommand(promptDeleteCmd)
}
