// Package storage persists encrypted exchange API keys.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/mselser95/mm-oracle/pkg/types"
)

// ErrNotFound is returned when no key is stored for a (user, exchange) pair.
var ErrNotFound = errors.New("api key not found")

// APIKeyRecord is one stored key pair. APIKey and Secret hold ciphertext;
// the repository never sees plaintext.
type APIKeyRecord struct {
	ID                 string
	UserID             string
	Exchange           string
	APIKey             string
	Secret             string
	Extras             map[string]string
	IsValid            bool
	MissingPermissions []types.Permission
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Repository stores API key records, one per (user, exchange).
type Repository interface {
	// Upsert inserts rec or replaces the key material of the existing record
	// for the same (user, exchange). It returns the stored record id.
	Upsert(ctx context.Context, rec *APIKeyRecord) (string, error)

	// Get returns ErrNotFound when nothing is stored.
	Get(ctx context.Context, userID, exchange string) (*APIKeyRecord, error)

	// SetValidity replaces the validity flag and the missing permission set.
	SetValidity(ctx context.Context, userID, exchange string, isValid bool, missing []types.Permission) error

	// AddMissing marks the record invalid and unions missing into its
	// missing permission set in one step. It reports whether the record was
	// valid before and returns the resulting set.
	AddMissing(ctx context.Context, userID, exchange string, missing []types.Permission) (wasValid bool, union []types.Permission, err error)

	// Delete returns ErrNotFound when nothing is stored.
	Delete(ctx context.Context, userID, exchange string) error

	// ListByUser returns the user's records ordered by exchange.
	ListByUser(ctx context.Context, userID string) ([]*APIKeyRecord, error)

	// Close closes the storage connection.
	Close() error
}
