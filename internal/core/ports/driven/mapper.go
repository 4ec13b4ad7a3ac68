package driven

import (
	"context"

	"github.com/skillsinfra/ukrlp-cache/internal/core/domain"
)

// ProviderMapper converts raw registry records into the outward-facing
// learning provider shape, translating enum-coded fields along the way.
type ProviderMapper interface {
	Map(ctx context.Context, provider *domain.Provider) (*domain.LearningProvider, error)
}
