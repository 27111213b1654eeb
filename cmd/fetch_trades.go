package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mselser95/mm-oracle/internal/connectivity"
	"github.com/mselser95/mm-oracle/internal/exchanges"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

//nolint:gochecknoglobals // Cobra boilerplate
var fetchTradesCmd = &cobra.Command{
	Use:   "fetch-trades",
	Short: "Fetch a user's trades on one exchange",
	Long: `Fetches a user's trades for one market and prints them as JSON, one
batch per line.

CEX exchanges use the user's enrolled API key (STORAGE_MODE=postgres and
ENCRYPTION_SECRET required). DEX exchanges read the trades of --wallet.

Time bounds accept RFC3339 or ms epoch. The window is [since, until).`,
	Example: `  mm-oracle fetch-trades -e mexc -u user-1 -s HMT/USDT --since 2025-01-01T00:00:00Z
  mm-oracle fetch-trades -e hyperliquid -w 0xabc... -s HYPE/USDC`,
	RunE: runFetchTrades,
}

//nolint:gochecknoglobals // Cobra flags
var (
	fetchExchange string
	fetchUserID   string
	fetchWallet   string
	fetchSymbol   string
	fetchSince    string
	fetchUntil    string
)

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(fetchTradesCmd)

	fetchTradesCmd.Flags().StringVarP(&fetchExchange, "exchange", "e", "", "Exchange name")
	fetchTradesCmd.Flags().StringVarP(&fetchUserID, "user", "u", "cli", "User id owning the API key")
	fetchTradesCmd.Flags().StringVarP(&fetchWallet, "wallet", "w", "", "EVM wallet address (DEX exchanges)")
	fetchTradesCmd.Flags().StringVarP(&fetchSymbol, "symbol", "s", "", "Market symbol, BASE/QUOTE")
	fetchTradesCmd.Flags().StringVar(&fetchSince, "since", "", "Window start (default: 24h before until)")
	fetchTradesCmd.Flags().StringVar(&fetchUntil, "until", "", "Window end (default: now)")

	_ = fetchTradesCmd.MarkFlagRequired("exchange")
	_ = fetchTradesCmd.MarkFlagRequired("symbol")
}

func runFetchTrades(cmd *cobra.Command, args []string) error {
	until, err := parseTimeFlag(fetchUntil, time.Now().UTC())
	if err != nil {
		return err
	}
	since, err := parseTimeFlag(fetchSince, until.Add(-24*time.Hour))
	if err != nil {
		return err
	}

	application, logger, err := newCLIApp()
	if err != nil {
		return err
	}
	defer func() {
		application.Close()
		_ = logger.Sync()
	}()

	conn, err := application.Connectivity()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	it, err := conn.FetchTrades(ctx, connectivity.TradeQuery{
		UserID:         fetchUserID,
		UserEvmAddress: fetchWallet,
		Exchange:       fetchExchange,
		Symbol:         fetchSymbol,
		Since:          since.UnixMilli(),
		Until:          until.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("fetch trades: %w", err)
	}
	defer it.Close()

	total := 0
	for {
		batch, err := it.Next(ctx)
		if errors.Is(err, exchanges.ErrNoMoreTrades) {
			break
		}
		if err != nil {
			return fmt.Errorf("fetch trades: %w", err)
		}

		total += len(batch)
		err = printJSON(cmd.OutOrStdout(), batch)
		if err != nil {
			return err
		}
	}

	logger.Info("trades-fetched",
		zap.String("exchange", fetchExchange),
		zap.String("symbol", fetchSymbol),
		zap.Time("since", since),
		zap.Time("until", until),
		zap.Int("trades", total))

	return nil
}
