package driven

import (
	"context"
	"time"
)

// StateStore persists the cache watermarks between runs.
type StateStore interface {
	// GetLastProviderReadTime returns when providers were last read from
	// the upstream registry. Implementations return a default of fourteen
	// days ago when no watermark has been written yet.
	GetLastProviderReadTime(ctx context.Context) (time.Time, error)

	// SetLastProviderReadTime advances the read watermark.
	SetLastProviderReadTime(ctx context.Context, t time.Time) error

	// GetLastStagingDateCleared returns the most recent staging date the
	// retention sweep has cleared. Implementations return a fixed epoch
	// when no sweep has run yet.
	GetLastStagingDateCleared(ctx context.Context) (time.Time, error)

	// SetLastStagingDateCleared advances the retention watermark.
	SetLastStagingDateCleared(ctx context.Context, t time.Time) error
}
