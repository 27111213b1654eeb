package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/mselser95/mm-oracle/internal/campaign"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var validateManifestCmd = &cobra.Command{
	Use:   "validate-manifest <manifest>",
	Short: "Validate a campaign manifest",
	Long: `Validates a campaign manifest and prints its normalized form.

The manifest is a URL (checked against --hash), inline JSON, or @path to a
local file.`,
	Example: `  mm-oracle validate-manifest @manifest.json
  mm-oracle validate-manifest https://storage.example/manifest.json --hash 3f7a...`,
	Args: cobra.ExactArgs(1),
	RunE: runValidateManifest,
}

//nolint:gochecknoglobals // Cobra flags
var manifestHash string

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(validateManifestCmd)

	validateManifestCmd.Flags().StringVar(&manifestHash, "hash", "", "Expected SHA-1 of a downloaded manifest")
}

// manifestSummary is the printed form of a valid manifest.
type manifestSummary struct {
	*campaign.Manifest
	Market       string `json:"market"`
	DailyTarget  string `json:"daily_target"`
	DurationDays int64  `json:"duration_days"`
}

func runValidateManifest(cmd *cobra.Command, args []string) error {
	_, logger, err := loadCLI()
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	raw, err := readDocumentArg(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	fetcher := campaign.NewFetcher(campaign.FetcherConfig{Logger: logger})
	m, err := fetcher.RetrieveManifest(ctx, raw, manifestHash)
	if err != nil {
		return fmt.Errorf("invalid manifest: %w", err)
	}

	return printJSON(cmd.OutOrStdout(), manifestSummary{
		Manifest:     m,
		Market:       m.Market(),
		DailyTarget:  m.DailyTarget().String(),
		DurationDays: m.DurationDays(),
	})
}
