package driving

import (
	"context"
	"time"

	"github.com/skillsinfra/ukrlp-cache/internal/core/domain"
)

// CacheManager coordinates cache synchronization against the registry
type CacheManager interface {
	// DownloadToCache reads changed providers since the last watermark,
	// stages them and queues batches for processing
	DownloadToCache(ctx context.Context) error

	// ProcessBatch processes one queued batch of staged providers
	ProcessBatch(ctx context.Context, ukprns []int64, pointInTime time.Time) (*domain.BatchResult, error)

	// TidyCache removes staged records older than the retention window
	TidyCache(ctx context.Context) error
}

// Scheduler manages periodic cache maintenance
type Scheduler interface {
	// Start begins the scheduler
	Start(ctx context.Context) error

	// Stop stops the scheduler
	Stop(ctx context.Context) error
}
