package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/skillsinfra/ukrlp-cache/internal/core/domain"
	"github.com/skillsinfra/ukrlp-cache/internal/core/ports/driven"
)

// Middleware event paths.
const (
	eventProviderCreated = "learning-provider-created"
	eventProviderUpdated = "learning-provider-updated"
)

// Error describes a non-success response from the middleware.
type Error struct {
	EventType  string
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("middleware rejected %s event: status %d - %s", e.EventType, e.StatusCode, e.Body)
}

// Ensure Publisher implements EventPublisher
var _ driven.EventPublisher = (*Publisher)(nil)

// Publisher sends provider change events to the middleware ingestion API.
type Publisher struct {
	baseURL      string
	functionsKey string
	client       *http.Client
	logger       *slog.Logger
}

// PublisherConfig holds the settings for the middleware publisher.
type PublisherConfig struct {
	BaseURL      string
	FunctionsKey string
	HTTPClient   *http.Client
	Logger       *slog.Logger
}

// NewPublisher creates a middleware event publisher.
func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("middleware base URL is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Publisher{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		functionsKey: cfg.FunctionsKey,
		client:       httpClient,
		logger:       logger,
	}, nil
}

// event is the middleware ingestion body. Details carries the provider as
// the outward-facing record it describes.
type event struct {
	ID          string                   `json:"id"`
	PointInTime time.Time                `json:"pointInTime"`
	Details     *domain.LearningProvider `json:"details"`
}

// PublishCreated announces a provider newly present in the cache.
func (p *Publisher) PublishCreated(ctx context.Context, provider *domain.LearningProvider, pointInTime time.Time) error {
	return p.send(ctx, eventProviderCreated, provider, pointInTime)
}

// PublishUpdated announces a change to a provider already in the cache.
func (p *Publisher) PublishUpdated(ctx context.Context, provider *domain.LearningProvider, pointInTime time.Time) error {
	return p.send(ctx, eventProviderUpdated, provider, pointInTime)
}

func (p *Publisher) send(ctx context.Context, eventType string, provider *domain.LearningProvider, pointInTime time.Time) error {
	body, err := json.Marshal(event{
		ID:          uuid.NewString(),
		PointInTime: pointInTime.UTC(),
		Details:     provider,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", eventType, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/"+eventType, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", eventType, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.functionsKey != "" {
		req.Header.Set("x-functions-key", p.functionsKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("middleware request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return &Error{
			EventType:  eventType,
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}
	}

	p.logger.Debug("published provider event",
		"event_type", eventType,
		"ukprn", provider.UKPRN)
	return nil
}
