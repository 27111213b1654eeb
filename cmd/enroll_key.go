package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mselser95/mm-oracle/internal/credentials"
	"github.com/mselser95/mm-oracle/pkg/types"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var enrollKeyCmd = &cobra.Command{
	Use:   "enroll-key",
	Short: "Verify and store a user's exchange API key",
	Long: `Checks that the key is complete and carries every required permission,
then stores it encrypted. Enrolling again for the same user and exchange
replaces the stored key.

Requires ENCRYPTION_SECRET. Use STORAGE_MODE=postgres to keep the key
beyond this process.`,
	RunE: runEnrollKey,
}

//nolint:gochecknoglobals // Cobra boilerplate
var listKeysCmd = &cobra.Command{
	Use:   "list-keys",
	Short: "List a user's enrolled keys and their status",
	RunE:  runListKeys,
}

//nolint:gochecknoglobals // Cobra boilerplate
var deleteKeyCmd = &cobra.Command{
	Use:   "delete-key",
	Short: "Delete a user's enrolled key",
	RunE:  runDeleteKey,
}

//nolint:gochecknoglobals // Cobra flags
var (
	keyUserID   string
	keyExchange string
	keyAPIKey   string
	keySecret   string
	keyExtras   map[string]string
)

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(enrollKeyCmd)
	rootCmd.AddCommand(listKeysCmd)
	rootCmd.AddCommand(deleteKeyCmd)

	for _, c := range []*cobra.Command{enrollKeyCmd, listKeysCmd, deleteKeyCmd} {
		c.Flags().StringVarP(&keyUserID, "user", "u", "", "User id")
		_ = c.MarkFlagRequired("user")
	}
	for _, c := range []*cobra.Command{enrollKeyCmd, deleteKeyCmd} {
		c.Flags().StringVarP(&keyExchange, "exchange", "e", "", "Exchange name")
		_ = c.MarkFlagRequired("exchange")
	}

	enrollKeyCmd.Flags().StringVar(&keyAPIKey, "api-key", "", "API key (default $EXCHANGE_API_KEY)")
	enrollKeyCmd.Flags().StringVar(&keySecret, "secret", "", "API secret (default $EXCHANGE_SECRET)")
	enrollKeyCmd.Flags().StringToStringVar(&keyExtras, "extra", nil, "Exchange specific fields, key=value")
}

func runEnrollKey(cmd *cobra.Command, args []string) error {
	return withKeys(func(ctx context.Context, keys *credentials.Store) error {
		id, err := keys.Enroll(ctx, credentials.EnrollRequest{
			UserID:   keyUserID,
			Exchange: keyExchange,
			APIKey:   firstNonEmpty(keyAPIKey, os.Getenv("EXCHANGE_API_KEY")),
			Secret:   firstNonEmpty(keySecret, os.Getenv("EXCHANGE_SECRET")),
			Extras:   keyExtras,
		})

		var authErr *types.KeyAuthorizationError
		if errors.As(err, &authErr) {
			_ = printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"enrolled":           false,
				"missingPermissions": authErr.Missing,
			})
		}
		if err != nil {
			return fmt.Errorf("enroll key: %w", err)
		}

		return printJSON(cmd.OutOrStdout(), map[string]interface{}{
			"enrolled": true,
			"id":       id,
		})
	})
}

func runListKeys(cmd *cobra.Command, args []string) error {
	return withKeys(func(ctx context.Context, keys *credentials.Store) error {
		statuses, err := keys.ListForUser(ctx, keyUserID)
		if err != nil {
			return fmt.Errorf("list keys: %w", err)
		}
		return printJSON(cmd.OutOrStdout(), statuses)
	})
}

func runDeleteKey(cmd *cobra.Command, args []string) error {
	return withKeys(func(ctx context.Context, keys *credentials.Store) error {
		err := keys.Delete(ctx, keyUserID, keyExchange)
		if err != nil {
			return fmt.Errorf("delete key: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s key of %s\n", keyExchange, keyUserID)
		return nil
	})
}

func withKeys(fn func(ctx context.Context, keys *credentials.Store) error) error {
	application, logger, err := newCLIApp()
	if err != nil {
		return err
	}
	defer func() {
		application.Close()
		_ = logger.Sync()
	}()

	keys, err := application.Keys()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	return fn(ctx, keys)
}
