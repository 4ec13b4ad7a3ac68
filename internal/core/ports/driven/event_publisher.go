package driven

import (
	"context"
	"time"

	"github.com/skillsinfra/ukrlp-cache/internal/core/domain"
)

// EventPublisher notifies downstream consumers of cache changes.
type EventPublisher interface {
	// PublishCreated announces a provider seen for the first time.
	PublishCreated(ctx context.Context, provider *domain.LearningProvider, pointInTime time.Time) error

	// PublishUpdated announces a provider whose record changed.
	PublishUpdated(ctx context.Context, provider *domain.LearningProvider, pointInTime time.Time) error
}
