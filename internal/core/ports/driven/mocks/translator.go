package mocks

import (
	"context"
	"sync"

	"github.com/skillsinfra/ukrlp-cache/internal/core/domain"
)

// MockTranslator is a mock implementation of Translator for testing
type MockTranslator struct {
	// Err makes every call fail with this error
	Err error

	mu       sync.RWMutex
	mappings map[string]string
}

// NewMockTranslator creates a new MockTranslator
func NewMockTranslator() *MockTranslator {
	return &MockTranslator{mappings: make(map[string]string)}
}

// AddMapping registers a translation for an enum value
func (m *MockTranslator) AddMapping(enumName, sourceValue, mapped string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mappings[enumName+"/"+sourceValue] = mapped
}

func (m *MockTranslator) TranslateEnumValue(ctx context.Context, enumName, sourceValue string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return "", m.Err
	}
	return m.mappings[enumName+"/"+sourceValue], nil
}

// MockProviderMapper is a mock implementation of ProviderMapper for testing
type MockProviderMapper struct {
	// Err makes every call fail with this error
	Err error
}

// NewMockProviderMapper creates a new MockProviderMapper
func NewMockProviderMapper() *MockProviderMapper {
	return &MockProviderMapper{}
}

// Map copies the identifying fields straight across without translation
func (m *MockProviderMapper) Map(ctx context.Context, p *domain.Provider) (*domain.LearningProvider, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return &domain.LearningProvider{
		UKPRN:  p.UKPRN,
		Name:   p.ProviderName,
		Status: p.ProviderStatus,
	}, nil
}
