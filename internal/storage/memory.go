package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mselser95/mm-oracle/pkg/types"
	"go.uber.org/zap"
)

// MemoryRepository implements Repository in process memory. Records are
// lost on restart.
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[string]*APIKeyRecord
	logger  *zap.Logger
	now     func() time.Time
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository(logger *zap.Logger) *MemoryRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("memory-storage-initialized")
	return &MemoryRepository{
		records: make(map[string]*APIKeyRecord),
		logger:  logger,
		now:     time.Now,
	}
}

func recordKey(userID, exchange string) string {
	return userID + "\x00" + exchange
}

// Upsert implements Repository.
func (m *MemoryRepository) Upsert(ctx context.Context, rec *APIKeyRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	key := recordKey(rec.UserID, rec.Exchange)

	stored := cloneRecord(rec)
	if existing, ok := m.records[key]; ok {
		stored.ID = existing.ID
		stored.CreatedAt = existing.CreatedAt
	} else {
		if stored.ID == "" {
			stored.ID = uuid.NewString()
		}
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	m.records[key] = stored

	return stored.ID, nil
}

// Get implements Repository.
func (m *MemoryRepository) Get(ctx context.Context, userID, exchange string) (*APIKeyRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[recordKey(userID, exchange)]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRecord(rec), nil
}

// SetValidity implements Repository.
func (m *MemoryRepository) SetValidity(ctx context.Context, userID, exchange string, isValid bool, missing []types.Permission) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[recordKey(userID, exchange)]
	if !ok {
		return ErrNotFound
	}
	rec.IsValid = isValid
	rec.MissingPermissions = append([]types.Permission(nil), missing...)
	rec.UpdatedAt = m.now().UTC()
	return nil
}

// AddMissing implements Repository.
func (m *MemoryRepository) AddMissing(ctx context.Context, userID, exchange string, missing []types.Permission) (bool, []types.Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[recordKey(userID, exchange)]
	if !ok {
		return false, nil, ErrNotFound
	}
	wasValid := rec.IsValid
	rec.IsValid = false
	rec.MissingPermissions = types.UnionPermissions(rec.MissingPermissions, missing)
	rec.UpdatedAt = m.now().UTC()
	return wasValid, append([]types.Permission(nil), rec.MissingPermissions...), nil
}

// Delete implements Repository.
func (m *MemoryRepository) Delete(ctx context.Context, userID, exchange string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := recordKey(userID, exchange)
	if _, ok := m.records[key]; !ok {
		return ErrNotFound
	}
	delete(m.records, key)
	return nil
}

// ListByUser implements Repository.
func (m *MemoryRepository) ListByUser(ctx context.Context, userID string) ([]*APIKeyRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var records []*APIKeyRecord
	for _, rec := range m.records {
		if rec.UserID == userID {
			records = append(records, cloneRecord(rec))
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Exchange < records[j].Exchange
	})
	return records, nil
}

// Close is a no-op for memory storage.
func (m *MemoryRepository) Close() error {
	m.logger.Info("closing-memory-storage")
	return nil
}

func cloneRecord(rec *APIKeyRecord) *APIKeyRecord {
	out := *rec
	if rec.Extras != nil {
		out.Extras = make(map[string]string, len(rec.Extras))
		for k, v := range rec.Extras {
			out.Extras[k] = v
		}
	}
	out.MissingPermissions = append([]types.Permission(nil), rec.MissingPermissions...)
	return &out
}

var _ Repository = (*MemoryRepository)(nil)
