package driven

import (
	"context"
	"time"

	"github.com/skillsinfra/ukrlp-cache/internal/core/domain"
)

// ProviderStore persists point-in-time provider snapshots and the staging
// records awaiting processing.
type ProviderStore interface {
	// StoreSnapshot writes a historical snapshot. The store enforces at
	// most one current row per UKPRN. Writing the same UKPRN and point in
	// time again overwrites the earlier row.
	StoreSnapshot(ctx context.Context, snapshot *domain.PointInTimeProvider) error

	// StoreCurrent promotes a snapshot to current. When prior is non-nil
	// the previously current row it names is demoted in the same
	// transaction, so a crash never leaves the UKPRN without a current
	// row. The demote is conditional on the prior row still carrying the
	// flag; domain.ErrConflict means a concurrent writer got there first
	// and nothing was written.
	StoreCurrent(ctx context.Context, snapshot, prior *domain.PointInTimeProvider) error

	// StoreStaging writes provider records into the staging area for the
	// given point in time, overwriting any existing staged record for the
	// same UKPRN and date.
	StoreStaging(ctx context.Context, providers []domain.Provider, pointInTime time.Time) error

	// GetCurrent returns the current snapshot for a UKPRN.
	// Returns domain.ErrNotFound if the provider has never been cached.
	GetCurrent(ctx context.Context, ukprn int64) (*domain.PointInTimeProvider, error)

	// GetCurrentAsOf returns the latest snapshot captured on or before the
	// given date, regardless of its current flag.
	// Returns domain.ErrNotFound if no snapshot that old exists.
	GetCurrentAsOf(ctx context.Context, ukprn int64, pointInTime time.Time) (*domain.PointInTimeProvider, error)

	// GetManyCurrent returns current snapshots for multiple UKPRNs. The
	// result is positionally aligned with the input; a missing provider
	// yields a nil entry, not an error.
	GetManyCurrent(ctx context.Context, ukprns []int64) ([]*domain.PointInTimeProvider, error)

	// GetStaged reads one staged record by date and UKPRN.
	// Returns domain.ErrNotFound if nothing was staged.
	GetStaged(ctx context.Context, ukprn int64, pointInTime time.Time) (*domain.Provider, error)

	// ClearStagingForDate deletes all staged records for one date and
	// returns how many rows were removed.
	ClearStagingForDate(ctx context.Context, pointInTime time.Time) (int64, error)

	// Ping checks if the store backend is healthy.
	Ping(ctx context.Context) error
}
