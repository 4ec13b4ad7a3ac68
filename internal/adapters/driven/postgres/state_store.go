package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/skillsinfra/ukrlp-cache/internal/core/domain"
	"github.com/skillsinfra/ukrlp-cache/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.StateStore = (*StateStore)(nil)

// Watermark keys in the cache_state table.
const (
	keyLastProviderRead   = "provider-last-read"
	keyLastStagingCleared = "staging-last-cleared"
)

// defaultReadWindowDays is the lookback used before the first watermark is
// written.
const defaultReadWindowDays = 14

// StateStore implements driven.StateStore using PostgreSQL
type StateStore struct {
	db *DB

	// injectable clock for tests
	now func() time.Time
}

// NewStateStore creates a new StateStore
func NewStateStore(db *DB) *StateStore {
	return &StateStore{db: db, now: time.Now}
}

// GetLastProviderReadTime returns the read watermark, defaulting to
// fourteen days ago when none has been written.
func (s *StateStore) GetLastProviderReadTime(ctx context.Context) (time.Time, error) {
	t, err := s.get(ctx, keyLastProviderRead)
	if err == domain.ErrNotFound {
		return s.now().AddDate(0, 0, -defaultReadWindowDays), nil
	}
	return t, err
}

// SetLastProviderReadTime advances the read watermark
func (s *StateStore) SetLastProviderReadTime(ctx context.Context, t time.Time) error {
	return s.set(ctx, keyLastProviderRead, t)
}

// GetLastStagingDateCleared returns the retention watermark, defaulting to
// the staging epoch when no sweep has run.
func (s *StateStore) GetLastStagingDateCleared(ctx context.Context) (time.Time, error) {
	t, err := s.get(ctx, keyLastStagingCleared)
	if err == domain.ErrNotFound {
		return domain.StagingEpoch(), nil
	}
	return t, err
}

// SetLastStagingDateCleared advances the retention watermark
func (s *StateStore) SetLastStagingDateCleared(ctx context.Context, t time.Time) error {
	return s.set(ctx, keyLastStagingCleared, t)
}

func (s *StateStore) get(ctx context.Context, key string) (time.Time, error) {
	var value time.Time
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM cache_state WHERE key = $1", key).Scan(&value)
	if err == sql.ErrNoRows {
		return time.Time{}, domain.ErrNotFound
	}
	if err != nil {
		return time.Time{}, err
	}
	return value.UTC(), nil
}

func (s *StateStore) set(ctx context.Context, key string, value time.Time) error {
	query := `
		INSERT INTO cache_state (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = NOW()
	`
	_, err := s.db.ExecContext(ctx, query, key, value.UTC())
	return err
}
