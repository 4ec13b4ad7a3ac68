package mapping

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/skillsinfra/ukrlp-cache/internal/core/domain"
	"github.com/skillsinfra/ukrlp-cache/internal/core/ports/driven"
)

// Enum name used when translating registry status codes.
const providerStatusEnum = "ProviderStatus"

// mapFunc turns a source record into the outward-facing entity.
type mapFunc func(ctx context.Context, source any) (*domain.LearningProvider, error)

// Ensure Registry implements ProviderMapper
var _ driven.ProviderMapper = (*Registry)(nil)

// NopTranslator reports no mapping for every value, so registry values pass
// through unchanged. Used when no translator service is configured.
type NopTranslator struct{}

func (NopTranslator) TranslateEnumValue(ctx context.Context, enumName, sourceValue string) (string, error) {
	return "", nil
}

// Registry maps registry records onto learning providers. Mapping functions
// are registered per source type tag, so adding a source shape means adding
// an entry, not another type switch.
type Registry struct {
	translator driven.Translator
	logger     *slog.Logger
	mappers    map[string]mapFunc
}

// RegistryConfig holds the settings for the mapping registry.
type RegistryConfig struct {
	Translator driven.Translator
	Logger     *slog.Logger
}

// NewRegistry creates a mapping registry with the built-in source types
// registered.
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	if cfg.Translator == nil {
		return nil, fmt.Errorf("translator is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := &Registry{
		translator: cfg.Translator,
		logger:     logger,
		mappers:    make(map[string]mapFunc),
	}
	r.mappers["provider"] = r.mapProvider
	r.mappers["point-in-time-provider"] = r.mapPointInTimeProvider
	return r, nil
}

// Map maps a registry provider record.
func (r *Registry) Map(ctx context.Context, provider *domain.Provider) (*domain.LearningProvider, error) {
	return r.MapSource(ctx, provider)
}

// MapSource maps any registered source shape.
func (r *Registry) MapSource(ctx context.Context, source any) (*domain.LearningProvider, error) {
	tag, err := sourceTag(source)
	if err != nil {
		return nil, err
	}
	mapper, ok := r.mappers[tag]
	if !ok {
		return nil, fmt.Errorf("%w: no mapper registered for %s", domain.ErrInvalidInput, tag)
	}
	return mapper(ctx, source)
}

func sourceTag(source any) (string, error) {
	switch source.(type) {
	case *domain.Provider:
		return "provider", nil
	case *domain.PointInTimeProvider:
		return "point-in-time-provider", nil
	default:
		return "", fmt.Errorf("%w: unmappable source type %T", domain.ErrInvalidInput, source)
	}
}

func (r *Registry) mapPointInTimeProvider(ctx context.Context, source any) (*domain.LearningProvider, error) {
	snapshot := source.(*domain.PointInTimeProvider)
	return r.mapProvider(ctx, &snapshot.Provider)
}

func (r *Registry) mapProvider(ctx context.Context, source any) (*domain.LearningProvider, error) {
	provider := source.(*domain.Provider)

	status, err := r.translator.TranslateEnumValue(ctx, providerStatusEnum, provider.ProviderStatus)
	if err != nil {
		return nil, fmt.Errorf("failed to translate provider status: %w", err)
	}
	if status == "" {
		status = provider.ProviderStatus
	}

	mapped := &domain.LearningProvider{
		UKPRN:                   provider.UKPRN,
		Name:                    provider.ProviderName,
		Status:                  status,
		VerificationDate:        provider.ProviderVerificationDate,
		ExpiryDate:              provider.ExpiryDate,
		URN:                     provider.VerificationID(domain.AuthorityDfENumber),
		CompaniesHouseNumber:    provider.VerificationID(domain.AuthorityCompaniesHouse),
		CharityCommissionNumber: provider.VerificationID(domain.AuthorityCharityCommission),
	}

	legal := provider.ContactOfType(domain.ContactTypeLegal)
	if legal != nil {
		mapped.LegalName = legalName(legal, provider.ProviderName)
		if legal.Address != nil {
			mapped.AddressLine1 = legal.Address.Line1
			mapped.AddressLine2 = legal.Address.Line2
			mapped.AddressLine3 = legal.Address.Line3
			mapped.AddressLine4 = legal.Address.Line4
			mapped.Town = legal.Address.Town
			mapped.County = legal.Address.County
			mapped.Postcode = legal.Address.Postcode
		}
	} else {
		mapped.LegalName = provider.ProviderName
	}

	// Reachability details prefer the primary contact, falling back to the
	// legal one.
	primary := provider.ContactOfType(domain.ContactTypePrimary)
	if primary == nil {
		primary = legal
	}
	if primary != nil {
		mapped.Telephone = primary.Telephone1
		mapped.Website = primary.WebsiteAddress
		mapped.Email = primary.Email
	}

	return mapped, nil
}

// legalName assembles a name from the legal contact's personal details,
// falling back to the provider name.
func legalName(contact *domain.ProviderContact, fallback string) string {
	details := contact.PersonalDetails
	if details == nil {
		return fallback
	}
	if details.RequestedName != "" {
		return details.RequestedName
	}
	name := strings.TrimSpace(details.GivenName + " " + details.FamilyName)
	if name == "" {
		return fallback
	}
	return name
}
