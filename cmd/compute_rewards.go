package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/mselser95/mm-oracle/internal/campaign"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

//nolint:gochecknoglobals // Cobra boilerplate
var computeRewardsCmd = &cobra.Command{
	Use:   "compute-rewards",
	Short: "Compute campaign payouts from intermediate results",
	Long: `Downloads the campaign's intermediate results, verifies their SHA-256,
and distributes each period's reward pool among participants by score.

The daily pool is fund / ceil(campaign days); a period that misses the
daily target pays out the pool scaled by achieved / target. Every amount is
truncated to --decimals.`,
	Example: `  mm-oracle compute-rewards \
    --manifest @manifest.json \
    --results https://storage.example/results.json --results-hash 9b1c... \
    --fund 700 --decimals 18 --chain-id 137 --address 0xcampaign`,
	RunE: runComputeRewards,
}

//nolint:gochecknoglobals // Cobra flags
var (
	rewardsManifest     string
	rewardsManifestHash string
	rewardsResults      string
	rewardsResultsHash  string
	rewardsFund         string
	rewardsDecimals     int32
	rewardsChainID      int64
	rewardsAddress      string
)

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(computeRewardsCmd)

	f := computeRewardsCmd.Flags()
	f.StringVarP(&rewardsManifest, "manifest", "m", "", "Manifest URL, inline JSON or @path")
	f.StringVar(&rewardsManifestHash, "manifest-hash", "", "Expected SHA-1 of a downloaded manifest")
	f.StringVarP(&rewardsResults, "results", "r", "", "Intermediate results URL")
	f.StringVar(&rewardsResultsHash, "results-hash", "", "Expected SHA-256 of the results")
	f.StringVar(&rewardsFund, "fund", "", "Campaign fund amount in token units")
	f.Int32Var(&rewardsDecimals, "decimals", 18, "Fund token decimals")
	f.Int64Var(&rewardsChainID, "chain-id", 0, "Campaign chain id")
	f.StringVar(&rewardsAddress, "address", "", "Campaign escrow address")

	_ = computeRewardsCmd.MarkFlagRequired("manifest")
	_ = computeRewardsCmd.MarkFlagRequired("results")
	_ = computeRewardsCmd.MarkFlagRequired("results-hash")
	_ = computeRewardsCmd.MarkFlagRequired("fund")
}

func runComputeRewards(cmd *cobra.Command, args []string) error {
	fund, err := decimal.NewFromString(rewardsFund)
	if err != nil {
		return fmt.Errorf("invalid --fund %q: %w", rewardsFund, err)
	}

	cfg, logger, err := loadCLI()
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	rawManifest, err := readDocumentArg(rewardsManifest)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	fetcher := campaign.NewFetcher(campaign.FetcherConfig{
		Timeout: cfg.ExchangeHTTPTimeout,
		Logger:  logger,
	})

	m, err := fetcher.RetrieveManifest(ctx, rawManifest, rewardsManifestHash)
	if err != nil {
		return fmt.Errorf("retrieve manifest: %w", err)
	}

	doc, err := fetcher.DownloadResults(ctx, rewardsResults, rewardsResultsHash)
	if err != nil {
		return fmt.Errorf("download results: %w", err)
	}

	rewards, err := campaign.ComputeRewards(campaign.Campaign{
		ChainID:           rewardsChainID,
		Address:           rewardsAddress,
		FundAmount:        fund,
		FundTokenDecimals: rewardsDecimals,
	}, m, doc)
	if err != nil {
		return fmt.Errorf("compute rewards: %w", err)
	}

	logger.Info("rewards-computed",
		zap.String("exchange", m.Exchange),
		zap.String("market", m.Market()),
		zap.Int("periods", len(rewards.Periods)),
		zap.String("daily-reward-pool", rewards.DailyRewardPool.String()),
		zap.String("total", rewards.Total.String()))

	return printJSON(cmd.OutOrStdout(), rewards)
}
