package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"github.com/skillsinfra/ukrlp-cache/internal/core/domain"
	"github.com/skillsinfra/ukrlp-cache/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ProviderStore = (*ProviderStore)(nil)

// readConcurrency bounds parallel snapshot reads in GetManyCurrent.
const readConcurrency = 10

// ProviderStore implements driven.ProviderStore using PostgreSQL.
// Snapshots are stored as JSONB keyed by (ukprn, point_in_time); a partial
// unique index guarantees at most one current row per UKPRN.
type ProviderStore struct {
	db *DB
}

// NewProviderStore creates a new ProviderStore
func NewProviderStore(db *DB) *ProviderStore {
	return &ProviderStore{db: db}
}

// StoreSnapshot writes a snapshot, overwriting any earlier row for the same
// UKPRN and date. The partial unique index rejects a second current row for
// the same UKPRN.
func (s *ProviderStore) StoreSnapshot(ctx context.Context, snapshot *domain.PointInTimeProvider) error {
	providerJSON, err := json.Marshal(snapshot.Provider)
	if err != nil {
		return fmt.Errorf("failed to marshal provider: %w", err)
	}

	query := `
		INSERT INTO provider_snapshots (ukprn, point_in_time, is_current, provider)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (ukprn, point_in_time) DO UPDATE SET
			is_current = EXCLUDED.is_current,
			provider = EXCLUDED.provider,
			updated_at = NOW()
	`

	_, err = s.db.ExecContext(ctx, query,
		snapshot.UKPRN,
		domain.DayUTC(snapshot.PointInTime),
		snapshot.IsCurrent,
		providerJSON,
	)
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	return err
}

// StoreCurrent writes a current snapshot, demoting the previously current
// row inside the same transaction when one is given. The conditional demote
// loses to a concurrent writer rather than leaving the UKPRN with no
// current row.
func (s *ProviderStore) StoreCurrent(ctx context.Context, snapshot, prior *domain.PointInTimeProvider) error {
	providerJSON, err := json.Marshal(snapshot.Provider)
	if err != nil {
		return fmt.Errorf("failed to marshal provider: %w", err)
	}

	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		if prior != nil {
			demote := `
				UPDATE provider_snapshots
				SET is_current = FALSE, updated_at = NOW()
				WHERE ukprn = $1 AND point_in_time = $2 AND is_current
			`
			result, err := tx.ExecContext(ctx, demote, prior.UKPRN, domain.DayUTC(prior.PointInTime))
			if err != nil {
				return err
			}
			affected, err := result.RowsAffected()
			if err != nil {
				return err
			}
			if affected == 0 {
				return domain.ErrConflict
			}
		}

		insert := `
			INSERT INTO provider_snapshots (ukprn, point_in_time, is_current, provider)
			VALUES ($1, $2, TRUE, $3)
			ON CONFLICT (ukprn, point_in_time) DO UPDATE SET
				is_current = TRUE,
				provider = EXCLUDED.provider,
				updated_at = NOW()
		`
		_, err := tx.ExecContext(ctx, insert,
			snapshot.UKPRN,
			domain.DayUTC(snapshot.PointInTime),
			providerJSON,
		)
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return err
	})
}

// StoreStaging writes registry records into the staging area for one date.
// All rows go in one transaction so a partial write never leaves a
// half-staged batch.
func (s *ProviderStore) StoreStaging(ctx context.Context, providers []domain.Provider, pointInTime time.Time) error {
	day := domain.DayUTC(pointInTime)

	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO provider_staging (point_in_time, ukprn, provider)
			VALUES ($1, $2, $3)
			ON CONFLICT (point_in_time, ukprn) DO UPDATE SET
				provider = EXCLUDED.provider,
				staged_at = NOW()
		`
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, p := range providers {
			providerJSON, err := json.Marshal(p)
			if err != nil {
				return fmt.Errorf("failed to marshal provider %d: %w", p.UKPRN, err)
			}
			if _, err := stmt.ExecContext(ctx, day, p.UKPRN, providerJSON); err != nil {
				return fmt.Errorf("failed to stage provider %d: %w", p.UKPRN, err)
			}
		}
		return nil
	})
}

// GetCurrent retrieves the current snapshot for a UKPRN
func (s *ProviderStore) GetCurrent(ctx context.Context, ukprn int64) (*domain.PointInTimeProvider, error) {
	query := `
		SELECT ukprn, point_in_time, is_current, provider
		FROM provider_snapshots
		WHERE ukprn = $1 AND is_current
	`
	return s.scanSnapshot(s.db.QueryRowContext(ctx, query, ukprn))
}

// GetCurrentAsOf retrieves the latest snapshot captured on or before a date
func (s *ProviderStore) GetCurrentAsOf(ctx context.Context, ukprn int64, pointInTime time.Time) (*domain.PointInTimeProvider, error) {
	query := `
		SELECT ukprn, point_in_time, is_current, provider
		FROM provider_snapshots
		WHERE ukprn = $1 AND point_in_time <= $2
		ORDER BY point_in_time DESC
		LIMIT 1
	`
	return s.scanSnapshot(s.db.QueryRowContext(ctx, query, ukprn, domain.DayUTC(pointInTime)))
}

// GetManyCurrent retrieves current snapshots for multiple UKPRNs, reading
// in parallel with bounded concurrency. Results align with the input and
// missing providers are nil.
func (s *ProviderStore) GetManyCurrent(ctx context.Context, ukprns []int64) ([]*domain.PointInTimeProvider, error) {
	result := make([]*domain.PointInTimeProvider, len(ukprns))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(readConcurrency)
	for i, ukprn := range ukprns {
		g.Go(func() error {
			snapshot, err := s.GetCurrent(gctx, ukprn)
			if err != nil {
				if err == domain.ErrNotFound {
					return nil
				}
				return err
			}
			result[i] = snapshot
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// GetStaged reads one staged record by date and UKPRN
func (s *ProviderStore) GetStaged(ctx context.Context, ukprn int64, pointInTime time.Time) (*domain.Provider, error) {
	query := `
		SELECT provider
		FROM provider_staging
		WHERE point_in_time = $1 AND ukprn = $2
	`

	var providerJSON []byte
	err := s.db.QueryRowContext(ctx, query, domain.DayUTC(pointInTime), ukprn).Scan(&providerJSON)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var provider domain.Provider
	if err := json.Unmarshal(providerJSON, &provider); err != nil {
		return nil, fmt.Errorf("failed to unmarshal staged provider: %w", err)
	}
	return &provider, nil
}

// ClearStagingForDate deletes all staged records for one date
func (s *ProviderStore) ClearStagingForDate(ctx context.Context, pointInTime time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM provider_staging WHERE point_in_time = $1",
		domain.DayUTC(pointInTime))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Ping checks if the database is reachable
func (s *ProviderStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *ProviderStore) scanSnapshot(row *sql.Row) (*domain.PointInTimeProvider, error) {
	var snapshot domain.PointInTimeProvider
	var providerJSON []byte

	err := row.Scan(&snapshot.UKPRN, &snapshot.PointInTime, &snapshot.IsCurrent, &providerJSON)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(providerJSON, &snapshot.Provider); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	snapshot.PointInTime = domain.DayUTC(snapshot.PointInTime)
	return &snapshot, nil
}

func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return false
}
