// Package credentials enrolls exchange API keys and keeps them encrypted at
// rest. Store is the only reader of plaintext key material.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mselser95/mm-oracle/internal/exchanges"
	"github.com/mselser95/mm-oracle/internal/factory"
	"github.com/mselser95/mm-oracle/internal/storage"
	"github.com/mselser95/mm-oracle/pkg/types"
	"go.uber.org/zap"
)

// ClientFactory creates exchange clients. *factory.Factory implements it.
type ClientFactory interface {
	Create(name string, opts factory.ClientOptions) (exchanges.Client, error)
}

// EnrollRequest is a key pair submitted by a user.
type EnrollRequest struct {
	UserID   string
	Exchange string
	APIKey   string
	Secret   string
	// Extras are non-secret exchange specific fields.
	Extras map[string]string
}

// APIKey is a decrypted key record.
type APIKey struct {
	ID                 string
	UserID             string
	Exchange           string
	APIKey             string
	Secret             string
	Extras             map[string]string
	IsValid            bool
	MissingPermissions []types.Permission
}

// KeyStatus describes a stored key without its secrets.
type KeyStatus struct {
	ID                 string             `json:"id"`
	Exchange           string             `json:"exchange"`
	IsValid            bool               `json:"isValid"`
	MissingPermissions []types.Permission `json:"missingPermissions"`
	UpdatedAt          time.Time          `json:"updatedAt"`
}

// Store manages API keys.
type Store struct {
	repo    storage.Repository
	cipher  *Cipher
	clients ClientFactory
	logger  *zap.Logger
}

// NewStore creates a store.
func NewStore(repo storage.Repository, cipher *Cipher, clients ClientFactory, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		repo:    repo,
		cipher:  cipher,
		clients: clients,
		logger:  logger,
	}
}

// Enroll validates a CEX key pair against the exchange and stores it
// encrypted. A key lacking permissions fails with
// *types.KeyAuthorizationError and is not stored. Re-enrolling replaces the
// previous key and keeps the record id.
func (s *Store) Enroll(ctx context.Context, req EnrollRequest) (string, error) {
	info, ok := exchanges.Lookup(req.Exchange)
	if !ok || info.Type != types.ExchangeTypeCEX {
		return "", &types.ArgumentError{Argument: "exchange", Message: "API keys are only supported for CEX exchanges: " + req.Exchange}
	}

	client, err := s.clients.Create(req.Exchange, factory.ClientOptions{
		UserID: req.UserID,
		APIKey: req.APIKey,
		Secret: req.Secret,
	})
	if err != nil {
		EnrollmentsTotal.WithLabelValues(req.Exchange, "error").Inc()
		return "", err
	}

	if !client.CheckRequiredCredentials() {
		EnrollmentsTotal.WithLabelValues(req.Exchange, "error").Inc()
		return "", &types.ArgumentError{Argument: "credentials", Message: "missing or malformed credentials for " + req.Exchange}
	}

	result, err := client.CheckRequiredAccess(ctx, types.AllPermissions())
	if err != nil {
		EnrollmentsTotal.WithLabelValues(req.Exchange, "error").Inc()
		return "", err
	}
	if !result.Success {
		EnrollmentsTotal.WithLabelValues(req.Exchange, "unauthorized").Inc()
		s.logger.Info("api-key-enrollment-rejected",
			zap.String("user-id", req.UserID),
			zap.String("exchange", req.Exchange),
			zap.String("api-key-hash", exchanges.KeyFingerprint(req.APIKey)),
			zap.Any("missing", result.Missing))
		return "", &types.KeyAuthorizationError{Exchange: req.Exchange, Missing: result.Missing}
	}

	encKey, err := s.cipher.Encrypt(req.APIKey)
	if err != nil {
		return "", fmt.Errorf("encrypt api key: %w", err)
	}
	encSecret, err := s.cipher.Encrypt(req.Secret)
	if err != nil {
		return "", fmt.Errorf("encrypt secret: %w", err)
	}

	id, err := s.repo.Upsert(ctx, &storage.APIKeyRecord{
		UserID:   req.UserID,
		Exchange: req.Exchange,
		APIKey:   encKey,
		Secret:   encSecret,
		Extras:   req.Extras,
		IsValid:  true,
	})
	if err != nil {
		EnrollmentsTotal.WithLabelValues(req.Exchange, "error").Inc()
		return "", err
	}

	EnrollmentsTotal.WithLabelValues(req.Exchange, "stored").Inc()
	s.logger.Info("api-key-enrolled",
		zap.String("user-id", req.UserID),
		zap.String("exchange", req.Exchange),
		zap.String("key-id", id),
		zap.String("api-key-hash", exchanges.KeyFingerprint(req.APIKey)))

	return id, nil
}

// Retrieve returns the decrypted key, or storage.ErrNotFound.
func (s *Store) Retrieve(ctx context.Context, userID, exchange string) (*APIKey, error) {
	rec, err := s.repo.Get(ctx, userID, exchange)
	if err != nil {
		return nil, err
	}

	apiKey, err := s.cipher.Decrypt(rec.APIKey)
	if err != nil {
		return nil, fmt.Errorf("decrypt api key: %w", err)
	}
	secret, err := s.cipher.Decrypt(rec.Secret)
	if err != nil {
		return nil, fmt.Errorf("decrypt secret: %w", err)
	}

	return &APIKey{
		ID:                 rec.ID,
		UserID:             rec.UserID,
		Exchange:           rec.Exchange,
		APIKey:             apiKey,
		Secret:             secret,
		Extras:             rec.Extras,
		IsValid:            rec.IsValid,
		MissingPermissions: rec.MissingPermissions,
	}, nil
}

// MarkInvalid flags the key invalid and adds missing to its missing
// permission set. The set only grows, also under concurrent calls.
func (s *Store) MarkInvalid(ctx context.Context, userID, exchange string, missing ...types.Permission) error {
	wasValid, union, err := s.repo.AddMissing(ctx, userID, exchange, missing)
	if err != nil {
		return err
	}

	if wasValid {
		InvalidationsTotal.WithLabelValues(exchange).Inc()
	}
	s.logger.Warn("api-key-marked-invalid",
		zap.String("user-id", userID),
		zap.String("exchange", exchange),
		zap.Any("missing", union))
	return nil
}

// Revalidate re-runs the full access check of a stored key and replaces its
// validity and missing permission set with the result.
func (s *Store) Revalidate(ctx context.Context, userID, exchange string) (types.AccessCheckResult, error) {
	key, err := s.Retrieve(ctx, userID, exchange)
	if err != nil {
		return types.AccessCheckResult{}, err
	}

	client, err := s.clients.Create(exchange, factory.ClientOptions{
		UserID: userID,
		APIKey: key.APIKey,
		Secret: key.Secret,
	})
	if err != nil {
		return types.AccessCheckResult{}, err
	}

	result, err := client.CheckRequiredAccess(ctx, types.AllPermissions())
	if err != nil {
		return types.AccessCheckResult{}, err
	}

	err = s.repo.SetValidity(ctx, userID, exchange, result.Success, result.Missing)
	if err != nil {
		return types.AccessCheckResult{}, err
	}

	s.logger.Info("api-key-revalidated",
		zap.String("user-id", userID),
		zap.String("exchange", exchange),
		zap.Bool("valid", result.Success))
	return result, nil
}

// Delete removes the key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, userID, exchange string) error {
	err := s.repo.Delete(ctx, userID, exchange)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	s.logger.Info("api-key-deleted",
		zap.String("user-id", userID),
		zap.String("exchange", exchange))
	return nil
}

// ListForUser returns the status of every key of userID.
func (s *Store) ListForUser(ctx context.Context, userID string) ([]KeyStatus, error) {
	records, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	statuses := make([]KeyStatus, 0, len(records))
	for _, rec := range records {
		missing := rec.MissingPermissions
		if missing == nil {
			missing = []types.Permission{}
		}
		statuses = append(statuses, KeyStatus{
			ID:                 rec.ID,
			Exchange:           rec.Exchange,
			IsValid:            rec.IsValid,
			MissingPermissions: missing,
			UpdatedAt:          rec.UpdatedAt,
		})
	}
	return statuses, nil
}
