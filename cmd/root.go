package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/lehigh-university-libraries/describer/internal/config"
	"github.com/lehigh-university-libraries/describer/internal/pipeline"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   "describer",
		Short: "Image accessibility description tool with OCR and vision-model captioning",
		Long: `Describer finds images on web pages that lack meaningful alt text and
generates descriptions for them.

Text is extracted with Tesseract OCR and captions come from a chain of vision
providers (OpenAI-compatible, Hugging Face, Gemini) with a local fallback that
always produces a result.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			if logLevel == "" {
				logLevel = os.Getenv("LOG_LEVEL")
			}
			level, err := config.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); defaults to $LOG_LEVEL or info")

	// Add subcommands
	cmd.AddCommand(newScanCmd())
	cmd.AddCommand(newAnalyzeCmd())
	cmd.AddCommand(newInspectCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

// buildPipeline loads configuration and credentials and wires the services
func buildPipeline(ctx context.Context) (*pipeline.Pipeline, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	creds := config.NewCredentialStore(cfg.CredentialsFile)
	if err := creds.Reload(); err != nil {
		return nil, err
	}

	return pipeline.New(ctx, cfg, creds)
}
