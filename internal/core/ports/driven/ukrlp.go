package driven

import (
	"context"
	"time"

	"github.com/skillsinfra/ukrlp-cache/internal/core/domain"
)

// UkrlpClient reads provider records from the upstream UKRLP registry.
type UkrlpClient interface {
	// GetProvider fetches a single provider by UKPRN.
	// Returns nil, nil when the registry holds no record for it.
	GetProvider(ctx context.Context, ukprn int64) (*domain.Provider, error)

	// GetProviders fetches multiple providers in one query. Providers the
	// registry does not know are absent from the result.
	GetProviders(ctx context.Context, ukprns []int64) ([]domain.Provider, error)

	// GetProvidersUpdatedSince fetches every provider changed after the
	// given time.
	GetProvidersUpdatedSince(ctx context.Context, since time.Time) ([]domain.Provider, error)
}
