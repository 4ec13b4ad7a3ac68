package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/skillsinfra/ukrlp-cache/internal/core/domain"
	"github.com/skillsinfra/ukrlp-cache/internal/core/ports/driven"
	"github.com/skillsinfra/ukrlp-cache/internal/metrics"
)

// DefaultRetentionDays is how long staged records are kept before the
// retention sweep removes them.
const DefaultRetentionDays = 14

// CacheService runs the cache synchronization pipeline.
// A full download works through these steps:
//  1. Read the last-read watermark (defaults to fourteen days ago)
//  2. Capture the read start time
//  3. Fetch providers changed since the watermark
//  4. Stage them under today's point in time
//  5. Partition identities into batches and queue them
//  6. Advance the watermark to the read start time
//
// Queued batches are processed by ProcessBatch, which compares each staged
// record against the provider's current snapshot and promotes, records and
// announces any change.
type CacheService struct {
	state     driven.StateStore
	ukrlp     driven.UkrlpClient
	providers driven.ProviderStore
	queue     driven.TaskQueue
	mapper    driven.ProviderMapper
	publisher driven.EventPublisher
	metrics   *metrics.Metrics
	logger    *slog.Logger

	batchSize     int
	retentionDays int

	// injectable clock for tests
	now func() time.Time

	// serialises downloads within this instance
	downloading sync.Mutex
}

// CacheServiceConfig holds dependencies for CacheService.
type CacheServiceConfig struct {
	State     driven.StateStore
	Ukrlp     driven.UkrlpClient
	Providers driven.ProviderStore
	Queue     driven.TaskQueue
	Mapper    driven.ProviderMapper
	Publisher driven.EventPublisher
	Metrics   *metrics.Metrics
	Logger    *slog.Logger

	// BatchSize is how many providers one queued batch carries
	// (default domain.DefaultBatchSize)
	BatchSize int

	// RetentionDays is the staging retention window
	// (default DefaultRetentionDays)
	RetentionDays int
}

// NewCacheService creates a new cache service.
func NewCacheService(cfg CacheServiceConfig) *CacheService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = domain.DefaultBatchSize
	}
	retentionDays := cfg.RetentionDays
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}

	return &CacheService{
		state:         cfg.State,
		ukrlp:         cfg.Ukrlp,
		providers:     cfg.Providers,
		queue:         cfg.Queue,
		mapper:        cfg.Mapper,
		publisher:     cfg.Publisher,
		metrics:       cfg.Metrics,
		logger:        logger,
		batchSize:     batchSize,
		retentionDays: retentionDays,
		now:           time.Now,
	}
}

// DownloadToCache reads changed providers from the registry, stages them and
// queues batches for processing. The last-read watermark only advances after
// staging and queuing succeed, so a failed run is retried from the same
// point.
func (s *CacheService) DownloadToCache(ctx context.Context) error {
	if !s.downloading.TryLock() {
		return domain.ErrDownloadInProgress
	}
	defer s.downloading.Unlock()

	startTime := s.now()

	// Step 1: read the watermark
	since, err := s.state.GetLastProviderReadTime(ctx)
	if err != nil {
		return fmt.Errorf("failed to get last read time: %w", err)
	}

	// Step 2: capture the read start before querying, so changes made
	// while the read runs land in the next window
	readStarted := startTime

	s.logger.Info("starting cache download", "since", since)

	// Step 3: fetch changed providers
	changed, err := s.ukrlp.GetProvidersUpdatedSince(ctx, since)
	if err != nil {
		return fmt.Errorf("failed to read providers from registry: %w", err)
	}

	if len(changed) == 0 {
		s.logger.Info("no provider changes since last read", "since", since)
		if err := s.state.SetLastProviderReadTime(ctx, readStarted); err != nil {
			return fmt.Errorf("failed to advance read watermark: %w", err)
		}
		return nil
	}

	// Step 4: stage under today's point in time
	pointInTime := domain.DayUTC(startTime)
	if err := s.providers.StoreStaging(ctx, changed, pointInTime); err != nil {
		return fmt.Errorf("failed to stage providers: %w", err)
	}

	// Step 5: partition and queue
	ukprns := make([]int64, len(changed))
	for i, p := range changed {
		ukprns[i] = p.UKPRN
	}
	chunks := domain.Partition(ukprns, s.batchSize)
	tasks := make([]*domain.Task, len(chunks))
	for i, chunk := range chunks {
		tasks[i] = domain.NewProcessBatchTask(chunk, pointInTime)
	}
	if err := s.queue.EnqueueBatch(ctx, tasks); err != nil {
		return fmt.Errorf("failed to queue batches: %w", err)
	}

	// Step 6: advance the watermark last
	if err := s.state.SetLastProviderReadTime(ctx, readStarted); err != nil {
		return fmt.Errorf("failed to advance read watermark: %w", err)
	}

	s.metrics.ObserveDownloadDuration(s.now().Sub(startTime))
	s.logger.Info("cache download complete",
		"providers", len(changed),
		"batches", len(chunks),
		"point_in_time", pointInTime.Format("2006-01-02"))
	return nil
}

// ProcessBatch processes one queued batch of staged providers. Providers are
// handled independently; a failure on one is recorded in the result and the
// rest of the batch carries on. The returned error is reserved for failures
// that invalidate the whole batch.
func (s *CacheService) ProcessBatch(ctx context.Context, ukprns []int64, pointInTime time.Time) (*domain.BatchResult, error) {
	if len(ukprns) == 0 {
		return nil, fmt.Errorf("%w: batch has no providers", domain.ErrInvalidInput)
	}
	startTime := s.now()
	pointInTime = domain.DayUTC(pointInTime)

	result := &domain.BatchResult{}
	for _, ukprn := range ukprns {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		outcome, err := s.processOne(ctx, ukprn, pointInTime)
		if err != nil {
			s.logger.Warn("failed to process provider",
				"ukprn", ukprn,
				"point_in_time", pointInTime.Format("2006-01-02"),
				"error", err)
			s.metrics.IncrementOutcome("failed")
			result.AddError(ukprn, err)
			continue
		}
		s.metrics.IncrementOutcome(string(outcome))
		result.Add(ukprn, outcome)
	}

	s.metrics.ObserveBatchDuration(s.now().Sub(startTime))
	created, updated, unchanged, failed := result.Counts()
	s.logger.Info("batch processed",
		"size", len(ukprns),
		"created", created,
		"updated", updated,
		"unchanged", unchanged,
		"failed", failed)
	return result, nil
}

// processOne compares one staged record against the provider's current
// snapshot and stores a new snapshot when something changed.
func (s *CacheService) processOne(ctx context.Context, ukprn int64, pointInTime time.Time) (domain.Outcome, error) {
	staged, err := s.providers.GetStaged(ctx, ukprn, pointInTime)
	if err != nil {
		return "", fmt.Errorf("failed to read staged record: %w", err)
	}

	current, err := s.providers.GetCurrent(ctx, ukprn)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return "", fmt.Errorf("failed to read current snapshot: %w", err)
	}

	if current != nil && domain.SameProvider(&current.Provider, staged) {
		return domain.OutcomeUnchanged, nil
	}

	snapshot := domain.NewPointInTimeProvider(*staged, pointInTime)

	// The staged record becomes current unless an even newer snapshot
	// already holds the flag.
	promote := current == nil || !snapshot.PointInTime.Before(current.PointInTime)
	snapshot.IsCurrent = promote

	if promote {
		// The demote of the prior row and the new snapshot land in one
		// transaction; the conditional demote loses to a concurrent
		// writer rather than leaving two current rows
		var prior *domain.PointInTimeProvider
		if current != nil && snapshot.PointInTime.After(current.PointInTime) {
			prior = current
		}
		if err := s.providers.StoreCurrent(ctx, snapshot, prior); err != nil {
			return "", fmt.Errorf("failed to store current snapshot: %w", err)
		}
	} else if err := s.providers.StoreSnapshot(ctx, snapshot); err != nil {
		return "", fmt.Errorf("failed to store snapshot: %w", err)
	}

	outcome := domain.OutcomeUpdated
	if current == nil {
		outcome = domain.OutcomeCreated
	}

	// Every stored change is announced, promoted or not; consumers see
	// historical backfills too
	if err := s.publishChange(ctx, staged, pointInTime, outcome); err != nil {
		return "", err
	}
	return outcome, nil
}

func (s *CacheService) publishChange(ctx context.Context, provider *domain.Provider, pointInTime time.Time, outcome domain.Outcome) error {
	mapped, err := s.mapper.Map(ctx, provider)
	if err != nil {
		return fmt.Errorf("failed to map provider: %w", err)
	}
	if outcome == domain.OutcomeCreated {
		err = s.publisher.PublishCreated(ctx, mapped, pointInTime)
	} else {
		err = s.publisher.PublishUpdated(ctx, mapped, pointInTime)
	}
	if err != nil {
		return fmt.Errorf("failed to publish %s event: %w", outcome, err)
	}
	s.metrics.IncrementEvent(string(outcome))
	return nil
}

// TidyCache removes staged records older than the retention window. It
// sweeps one date at a time from the day after the last cleared date up to
// the retention cutoff, advancing the watermark after each date so an
// aborted sweep resumes where it stopped.
func (s *CacheService) TidyCache(ctx context.Context) error {
	lastCleared, err := s.state.GetLastStagingDateCleared(ctx)
	if err != nil {
		return fmt.Errorf("failed to get last cleared date: %w", err)
	}

	cutoff := domain.DayUTC(s.now()).AddDate(0, 0, -s.retentionDays)
	date := domain.DayUTC(lastCleared).AddDate(0, 0, 1)
	swept := 0

	for !date.After(cutoff) {
		if err := ctx.Err(); err != nil {
			return err
		}
		removed, err := s.providers.ClearStagingForDate(ctx, date)
		if err != nil {
			return fmt.Errorf("failed to clear staging for %s: %w", date.Format("2006-01-02"), err)
		}
		if err := s.state.SetLastStagingDateCleared(ctx, date); err != nil {
			return fmt.Errorf("failed to advance cleared watermark to %s: %w", date.Format("2006-01-02"), err)
		}
		s.metrics.AddStagingCleared(removed)
		s.logger.Info("cleared staging date",
			"date", date.Format("2006-01-02"),
			"removed", removed)
		swept++
		date = date.AddDate(0, 0, 1)
	}

	if swept == 0 {
		s.logger.Info("staging already within retention window",
			"last_cleared", domain.DayUTC(lastCleared).Format("2006-01-02"))
	}
	return nil
}
