package cli

import (
	"context"
	"errors"

	"github.com/DecisionNerd/infoextract-cidoc/pkg/extraction"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/logger"

	"github.com/spf13/cobra"
)

func newResolveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <lite.json>",
		Short: "Resolve a lite extraction result into stable entities and relationships",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var lite extraction.LiteResult
			if err := readJSON(args[0], &lite); err != nil {
				return err
			}
			if err := lite.Validate(); err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), extraction.Resolve(lite))
		},
	}
}

func newExtractCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "extract <file|url>",
		Short: "Extract and resolve a biography with the configured language model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.AIModel == "" {
				return errors.New("AI_CHAT_EXTRACT_MODEL is not set")
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			sources, err := cfg.NewSources(ctx, true)
			if err != nil {
				return err
			}
			text, err := sources.Load(ctx, args[0])
			if err != nil {
				return err
			}

			client, err := cfg.NewAIClient()
			if err != nil {
				return err
			}
			pipeline, err := cfg.NewPipeline(client)
			if err != nil {
				return err
			}
			result, err := pipeline.ExtractAndResolve(ctx, text)
			if err != nil {
				return err
			}

			usage := client.GetMetrics()
			logger.Info(
				"AI Metrics",
				"requests", usage.Requests,
				"input_tokens", usage.InputTokens,
				"output_tokens", usage.OutputTokens,
			)
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}
}
