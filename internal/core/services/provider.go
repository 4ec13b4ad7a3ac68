package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/skillsinfra/ukrlp-cache/internal/core/domain"
	"github.com/skillsinfra/ukrlp-cache/internal/core/ports/driven"
	"github.com/skillsinfra/ukrlp-cache/internal/core/ports/driving"
	"golang.org/x/sync/errgroup"
)

// asOfReadConcurrency bounds parallel as-of lookups in a bulk read.
const asOfReadConcurrency = 10

// ProviderService serves mapped provider records from the cache, or from the
// registry directly when a live read is requested.
type ProviderService struct {
	providers driven.ProviderStore
	ukrlp     driven.UkrlpClient
	mapper    driven.ProviderMapper
	logger    *slog.Logger
}

// ProviderServiceConfig holds dependencies for ProviderService.
type ProviderServiceConfig struct {
	Providers driven.ProviderStore
	Ukrlp     driven.UkrlpClient
	Mapper    driven.ProviderMapper
	Logger    *slog.Logger
}

// NewProviderService creates a new provider read service.
func NewProviderService(cfg ProviderServiceConfig) *ProviderService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ProviderService{
		providers: cfg.Providers,
		ukrlp:     cfg.Ukrlp,
		mapper:    cfg.Mapper,
		logger:    logger,
	}
}

// ValidateUKPRN checks that a UKPRN is an eight-digit number.
func ValidateUKPRN(ukprn int64) error {
	if ukprn < 10000000 || ukprn > 99999999 {
		return fmt.Errorf("%w: ukprn must be 8 digits, got %d", domain.ErrInvalidInput, ukprn)
	}
	return nil
}

// Get retrieves one provider by UKPRN.
func (s *ProviderService) Get(ctx context.Context, ukprn int64, opts driving.ReadOptions) (*domain.LearningProvider, error) {
	if err := ValidateUKPRN(ukprn); err != nil {
		return nil, err
	}

	provider, err := s.read(ctx, ukprn, opts)
	if err != nil {
		return nil, err
	}
	return s.mapper.Map(ctx, provider)
}

// GetMany retrieves multiple providers. The result is positionally aligned
// with the input; providers that are not cached (or not known to the
// registry on a live read) come back nil.
func (s *ProviderService) GetMany(ctx context.Context, ukprns []int64, opts driving.ReadOptions) ([]*domain.LearningProvider, error) {
	for _, ukprn := range ukprns {
		if err := ValidateUKPRN(ukprn); err != nil {
			return nil, err
		}
	}

	var providers []*domain.Provider
	var err error
	switch {
	case opts.ReadFromLive:
		providers, err = s.readManyLive(ctx, ukprns)
	case opts.PointInTime.IsZero():
		providers, err = s.readManyCurrent(ctx, ukprns)
	default:
		providers, err = s.readManyAsOf(ctx, ukprns, opts.PointInTime)
	}
	if err != nil {
		return nil, err
	}

	result := make([]*domain.LearningProvider, len(ukprns))
	for i, provider := range providers {
		if provider == nil {
			continue
		}
		mapped, err := s.mapper.Map(ctx, provider)
		if err != nil {
			return nil, err
		}
		result[i] = mapped
	}
	return result, nil
}

// readManyLive issues one batched registry query and aligns the matches
// with the requested identities.
func (s *ProviderService) readManyLive(ctx context.Context, ukprns []int64) ([]*domain.Provider, error) {
	found, err := s.ukrlp.GetProviders(ctx, ukprns)
	if err != nil {
		return nil, fmt.Errorf("failed to read providers from registry: %w", err)
	}
	byUKPRN := make(map[int64]*domain.Provider, len(found))
	for i := range found {
		byUKPRN[found[i].UKPRN] = &found[i]
	}
	result := make([]*domain.Provider, len(ukprns))
	for i, ukprn := range ukprns {
		result[i] = byUKPRN[ukprn]
	}
	return result, nil
}

func (s *ProviderService) readManyCurrent(ctx context.Context, ukprns []int64) ([]*domain.Provider, error) {
	snapshots, err := s.providers.GetManyCurrent(ctx, ukprns)
	if err != nil {
		return nil, err
	}
	result := make([]*domain.Provider, len(ukprns))
	for i, snapshot := range snapshots {
		if snapshot != nil {
			result[i] = &snapshot.Provider
		}
	}
	return result, nil
}

// readManyAsOf fans out bounded per-identity lookups; the store has no bulk
// as-of read.
func (s *ProviderService) readManyAsOf(ctx context.Context, ukprns []int64, pointInTime time.Time) ([]*domain.Provider, error) {
	result := make([]*domain.Provider, len(ukprns))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(asOfReadConcurrency)
	for i, ukprn := range ukprns {
		g.Go(func() error {
			snapshot, err := s.providers.GetCurrentAsOf(gctx, ukprn, pointInTime)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					return nil
				}
				return err
			}
			result[i] = &snapshot.Provider
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *ProviderService) read(ctx context.Context, ukprn int64, opts driving.ReadOptions) (*domain.Provider, error) {
	if opts.ReadFromLive {
		provider, err := s.ukrlp.GetProvider(ctx, ukprn)
		if err != nil {
			return nil, fmt.Errorf("failed to read provider from registry: %w", err)
		}
		if provider == nil {
			return nil, domain.ErrNotFound
		}
		return provider, nil
	}

	var snapshot *domain.PointInTimeProvider
	var err error
	if opts.PointInTime.IsZero() {
		snapshot, err = s.providers.GetCurrent(ctx, ukprn)
	} else {
		snapshot, err = s.providers.GetCurrentAsOf(ctx, ukprn, opts.PointInTime)
	}
	if err != nil {
		return nil, err
	}
	return &snapshot.Provider, nil
}
