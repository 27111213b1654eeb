package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/mselser95/mm-oracle/pkg/types"
	"go.uber.org/zap"
)

const schema = `
	CREATE TABLE IF NOT EXISTS exchange_api_keys (
		id UUID PRIMARY KEY,
		user_id TEXT NOT NULL,
		exchange TEXT NOT NULL,
		api_key TEXT NOT NULL,
		secret TEXT NOT NULL,
		extras JSONB NOT NULL DEFAULT '{}',
		is_valid BOOLEAN NOT NULL DEFAULT TRUE,
		missing_permissions TEXT[] NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		UNIQUE (user_id, exchange)
	)
`

const selectColumns = `id, user_id, exchange, api_key, secret, extras, is_valid, missing_permissions, created_at, updated_at`

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// PostgresConfig holds PostgreSQL configuration.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	Logger   *zap.Logger
}

// NewPostgresRepository connects and migrates the schema.
func NewPostgresRepository(ctx context.Context, cfg *PostgresConfig) (*PostgresRepository, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = db.PingContext(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	repo := newPostgresRepository(db, cfg.Logger)
	err = repo.Migrate(ctx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	repo.logger.Info("postgres-storage-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return repo, nil
}

func newPostgresRepository(db *sql.DB, logger *zap.Logger) *PostgresRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresRepository{db: db, logger: logger, now: time.Now}
}

// Migrate creates the key table when missing.
func (p *PostgresRepository) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// Upsert implements Repository.
func (p *PostgresRepository) Upsert(ctx context.Context, rec *APIKeyRecord) (string, error) {
	extras, err := encodeExtras(rec.Extras)
	if err != nil {
		return "", err
	}

	id := rec.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := p.now().UTC()

	query := `
		INSERT INTO exchange_api_keys (
			id, user_id, exchange, api_key, secret, extras,
			is_valid, missing_permissions, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
		ON CONFLICT (user_id, exchange) DO UPDATE SET
			api_key = EXCLUDED.api_key,
			secret = EXCLUDED.secret,
			extras = EXCLUDED.extras,
			is_valid = EXCLUDED.is_valid,
			missing_permissions = EXCLUDED.missing_permissions,
			updated_at = EXCLUDED.updated_at
		RETURNING id
	`

	var storedID string
	err = p.db.QueryRowContext(ctx, query,
		id,
		rec.UserID,
		rec.Exchange,
		rec.APIKey,
		rec.Secret,
		extras,
		rec.IsValid,
		pq.Array(permissionStrings(rec.MissingPermissions)),
		now,
		now,
	).Scan(&storedID)
	if err != nil {
		return "", fmt.Errorf("upsert api key: %w", err)
	}

	p.logger.Debug("api-key-stored",
		zap.String("user-id", rec.UserID),
		zap.String("exchange", rec.Exchange),
		zap.String("key-id", storedID))

	return storedID, nil
}

// Get implements Repository.
func (p *PostgresRepository) Get(ctx context.Context, userID, exchange string) (*APIKeyRecord, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM exchange_api_keys WHERE user_id = $1 AND exchange = $2`,
		userID, exchange)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get api key: %w", err)
	}
	return rec, nil
}

// SetValidity implements Repository.
func (p *PostgresRepository) SetValidity(ctx context.Context, userID, exchange string, isValid bool, missing []types.Permission) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE exchange_api_keys
		SET is_valid = $3, missing_permissions = $4, updated_at = $5
		WHERE user_id = $1 AND exchange = $2
	`, userID, exchange, isValid, pq.Array(permissionStrings(missing)), p.now().UTC())
	if err != nil {
		return fmt.Errorf("update api key validity: %w", err)
	}
	return requireAffected(result)
}

// addMissingQuery locks the row, so concurrent calls union in turn.
const addMissingQuery = `
	WITH prev AS (
		SELECT id, is_valid FROM exchange_api_keys
		WHERE user_id = $1 AND exchange = $2
		FOR UPDATE
	)
	UPDATE exchange_api_keys k
	SET is_valid = FALSE,
		missing_permissions = ARRAY(SELECT DISTINCT unnest(k.missing_permissions || $3::text[])),
		updated_at = $4
	FROM prev
	WHERE k.id = prev.id
	RETURNING prev.is_valid, k.missing_permissions
`

// AddMissing implements Repository.
func (p *PostgresRepository) AddMissing(ctx context.Context, userID, exchange string, missing []types.Permission) (bool, []types.Permission, error) {
	var (
		wasValid bool
		stored   []string
	)
	err := p.db.QueryRowContext(ctx, addMissingQuery,
		userID, exchange, pq.Array(permissionStrings(missing)), p.now().UTC(),
	).Scan(&wasValid, pq.Array(&stored))
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil, ErrNotFound
	}
	if err != nil {
		return false, nil, fmt.Errorf("add missing permissions: %w", err)
	}

	union := make([]types.Permission, 0, len(stored))
	for _, s := range stored {
		union = append(union, types.Permission(s))
	}
	return wasValid, types.UnionPermissions(union, nil), nil
}

// Delete implements Repository.
func (p *PostgresRepository) Delete(ctx context.Context, userID, exchange string) error {
	result, err := p.db.ExecContext(ctx,
		`DELETE FROM exchange_api_keys WHERE user_id = $1 AND exchange = $2`,
		userID, exchange)
	if err != nil {
		return fmt.Errorf("delete api key: %w", err)
	}
	return requireAffected(result)
}

// ListByUser implements Repository.
func (p *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*APIKeyRecord, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM exchange_api_keys WHERE user_id = $1 ORDER BY exchange`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var records []*APIKeyRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		records = append(records, rec)
	}
	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	return records, nil
}

// Close closes the database connection.
func (p *PostgresRepository) Close() error {
	p.logger.Info("closing-postgres-storage")
	return p.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(s scanner) (*APIKeyRecord, error) {
	var (
		rec     APIKeyRecord
		extras  []byte
		missing []string
	)
	err := s.Scan(
		&rec.ID,
		&rec.UserID,
		&rec.Exchange,
		&rec.APIKey,
		&rec.Secret,
		&extras,
		&rec.IsValid,
		pq.Array(&missing),
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(extras) > 0 {
		err = json.Unmarshal(extras, &rec.Extras)
		if err != nil {
			return nil, fmt.Errorf("decode extras: %w", err)
		}
	}
	for _, m := range missing {
		rec.MissingPermissions = append(rec.MissingPermissions, types.Permission(m))
	}
	return &rec, nil
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func encodeExtras(extras map[string]string) ([]byte, error) {
	if extras == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(extras)
	if err != nil {
		return nil, fmt.Errorf("encode extras: %w", err)
	}
	return data, nil
}

func permissionStrings(perms []types.Permission) []string {
	out := make([]string, 0, len(perms))
	for _, p := range perms {
		out = append(out, string(p))
	}
	return out
}

var _ Repository = (*PostgresRepository)(nil)
