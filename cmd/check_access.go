package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mselser95/mm-oracle/internal/factory"
	"github.com/mselser95/mm-oracle/pkg/types"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var checkAccessCmd = &cobra.Command{
	Use:   "check-access",
	Short: "Probe the permissions of an API key",
	Long: `Probes an exchange once per permission and prints which permissions
the key is missing.

With --api-key/--secret (or EXCHANGE_API_KEY/EXCHANGE_SECRET) the given key
is probed and nothing is stored. With only --user the user's enrolled key is
revalidated and its stored status updated.`,
	RunE: runCheckAccess,
}

//nolint:gochecknoglobals // Cobra flags
var (
	accessExchange    string
	accessUserID      string
	accessAPIKey      string
	accessSecret      string
	accessPermissions []string
)

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(checkAccessCmd)

	checkAccessCmd.Flags().StringVarP(&accessExchange, "exchange", "e", "", "Exchange name")
	checkAccessCmd.Flags().StringVarP(&accessUserID, "user", "u", "", "Revalidate this user's enrolled key")
	checkAccessCmd.Flags().StringVar(&accessAPIKey, "api-key", "", "API key (default $EXCHANGE_API_KEY)")
	checkAccessCmd.Flags().StringVar(&accessSecret, "secret", "", "API secret (default $EXCHANGE_SECRET)")
	checkAccessCmd.Flags().StringSliceVarP(&accessPermissions, "permission", "p", nil,
		"Permissions to probe (default: all)")

	_ = checkAccessCmd.MarkFlagRequired("exchange")
}

func runCheckAccess(cmd *cobra.Command, args []string) error {
	permissions, err := parsePermissions(accessPermissions)
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

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	apiKey := firstNonEmpty(accessAPIKey, os.Getenv("EXCHANGE_API_KEY"))
	secret := firstNonEmpty(accessSecret, os.Getenv("EXCHANGE_SECRET"))

	var result types.AccessCheckResult
	if apiKey == "" && accessUserID != "" {
		keys, err := application.Keys()
		if err != nil {
			return err
		}
		result, err = keys.Revalidate(ctx, accessUserID, accessExchange)
		if err != nil {
			return fmt.Errorf("revalidate key: %w", err)
		}
	} else {
		if apiKey == "" || secret == "" {
			return errors.New("an API key and secret, or --user, are required")
		}

		client, err := application.Factory().Create(accessExchange, factory.ClientOptions{
			UserID: firstNonEmpty(accessUserID, "cli"),
			APIKey: apiKey,
			Secret: secret,
		})
		if err != nil {
			return fmt.Errorf("create client: %w", err)
		}
		if !client.CheckRequiredCredentials() {
			return fmt.Errorf("incomplete credentials for %s", accessExchange)
		}

		result, err = client.CheckRequiredAccess(ctx, permissions)
		if err != nil {
			return fmt.Errorf("check access: %w", err)
		}
	}

	return printJSON(cmd.OutOrStdout(), result)
}

func parsePermissions(raw []string) ([]types.Permission, error) {
	if len(raw) == 0 {
		return types.AllPermissions(), nil
	}

	permissions := make([]types.Permission, 0, len(raw))
	for _, r := range raw {
		p := types.Permission(r)
		if !p.Valid() {
			return nil, fmt.Errorf("unknown permission %q", r)
		}
		permissions = append(permissions, p)
	}
	return permissions, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
