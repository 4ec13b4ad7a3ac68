package driving

import (
	"context"
	"time"

	"github.com/skillsinfra/ukrlp-cache/internal/core/domain"
)

// ReadOptions controls how a provider read is served
type ReadOptions struct {
	// ReadFromLive bypasses the cache and queries the registry directly
	ReadFromLive bool

	// PointInTime serves the snapshot valid on a historical date
	// (zero means current)
	PointInTime time.Time
}

// ProviderReader serves mapped provider records from the cache or live
type ProviderReader interface {
	// Get retrieves one provider by UKPRN
	Get(ctx context.Context, ukprn int64, opts ReadOptions) (*domain.LearningProvider, error)

	// GetMany retrieves multiple providers; the result is positionally
	// aligned with the input and missing providers come back nil
	GetMany(ctx context.Context, ukprns []int64, opts ReadOptions) ([]*domain.LearningProvider, error)
}
