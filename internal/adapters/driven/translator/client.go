package translator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"

	"github.com/skillsinfra/ukrlp-cache/internal/core/ports/driven"
)

const (
	mappingsResource = "adapters/UKRLP/mappings"
	mappingsCacheKey = "ukrlp:enum-mappings"
	mappingsCacheTTL = time.Minute

	// Fallback token lifetime when the token carries no parseable expiry.
	defaultTokenLifetime = 5 * time.Minute

	// Tokens are refreshed this long before they actually expire.
	tokenExpiryMargin = 30 * time.Second
)

// Error describes a non-success response from the translator API.
type Error struct {
	Resource   string
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("translator rejected %s: status %d - %s", e.Resource, e.StatusCode, e.Body)
}

// Ensure Client implements Translator
var _ driven.Translator = (*Client)(nil)

// enumMappings maps an enum name to its target values, each carrying the
// source values that translate to it.
type enumMappings map[string]map[string][]string

// Client resolves registry enum values against the translation API. The full
// mappings document is cached in Redis for a short window so batch
// processing does not hammer the API.
type Client struct {
	baseURL         string
	subscriptionKey string
	client          *http.Client
	cache           *redis.Client
	logger          *slog.Logger

	tokenEndpoint string
	clientID      string
	clientSecret  string
	resource      string

	tokenMu     sync.Mutex
	token       string
	tokenExpiry time.Time
}

// ClientConfig holds the settings for the translator client.
type ClientConfig struct {
	BaseURL         string
	SubscriptionKey string
	TokenEndpoint   string
	ClientID        string
	ClientSecret    string
	Resource        string
	HTTPClient      *http.Client
	Cache           *redis.Client
	Logger          *slog.Logger
}

// NewClient creates a translator client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("translator base URL is required")
	}
	if cfg.Cache == nil {
		return nil, fmt.Errorf("translator cache client is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		subscriptionKey: cfg.SubscriptionKey,
		client:          httpClient,
		cache:           cfg.Cache,
		logger:          logger,
		tokenEndpoint:   cfg.TokenEndpoint,
		clientID:        cfg.ClientID,
		clientSecret:    cfg.ClientSecret,
		resource:        cfg.Resource,
	}, nil
}

// TranslateEnumValue maps a registry value onto the canonical enum value.
// Returns "" when the translator has no mapping for it.
func (c *Client) TranslateEnumValue(ctx context.Context, enumName, sourceValue string) (string, error) {
	mappings, err := c.getMappings(ctx)
	if err != nil {
		return "", err
	}

	var enum map[string][]string
	for name, m := range mappings {
		if strings.EqualFold(name, enumName) {
			enum = m
			break
		}
	}
	if enum == nil {
		return "", nil
	}

	for target, sources := range enum {
		for _, source := range sources {
			if strings.EqualFold(source, sourceValue) {
				return target, nil
			}
		}
	}

	c.logger.Warn("no enum mapping found",
		"enum", enumName,
		"source_value", sourceValue)
	return "", nil
}

// getMappings returns the full mappings document, from Redis when fresh.
func (c *Client) getMappings(ctx context.Context) (enumMappings, error) {
	cached, err := c.cache.Get(ctx, mappingsCacheKey).Bytes()
	if err == nil {
		var mappings enumMappings
		if err := json.Unmarshal(cached, &mappings); err == nil {
			return mappings, nil
		}
	} else if err != redis.Nil {
		c.logger.Warn("failed to read mappings cache", "error", err)
	}

	mappings, err := c.fetchMappings(ctx)
	if err != nil {
		return nil, err
	}

	if body, err := json.Marshal(mappings); err == nil {
		if err := c.cache.Set(ctx, mappingsCacheKey, body, mappingsCacheTTL).Err(); err != nil {
			c.logger.Warn("failed to write mappings cache", "error", err)
		}
	}

	return mappings, nil
}

// mappingsResult mirrors the translator API response shape.
type mappingsResult struct {
	Mappings map[string][]string `json:"mappings"`
}

func (c *Client) fetchMappings(ctx context.Context) (enumMappings, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+mappingsResource, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mappings request: %w", err)
	}

	token, err := c.getToken(ctx)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if c.subscriptionKey != "" {
		req.Header.Set("Ocp-Apim-Subscription-Key", c.subscriptionKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("translator request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read translator response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return enumMappings{}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &Error{
			Resource:   mappingsResource,
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	var result map[string]mappingsResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse translator response: %w", err)
	}

	mappings := make(enumMappings, len(result))
	for name, entry := range result {
		mappings[name] = entry.Mappings
	}
	return mappings, nil
}

// getToken returns a client-credentials token, reusing the cached one until
// it nears expiry. Returns "" when no token endpoint is configured.
func (c *Client) getToken(ctx context.Context) (string, error) {
	if c.tokenEndpoint == "" {
		return "", nil
	}

	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry.Add(-tokenExpiryMargin)) {
		return c.token, nil
	}

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"resource":      {c.resource},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned status %d: %s", resp.StatusCode, string(body))
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", fmt.Errorf("failed to parse token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned no access token")
	}

	c.token = tokenResp.AccessToken
	c.tokenExpiry = tokenExpiryTime(tokenResp.AccessToken)
	return c.token, nil
}

// tokenExpiryTime reads the exp claim without verifying the signature. The
// token is only inspected to decide when to refresh it.
func tokenExpiryTime(token string) time.Time {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err == nil {
		if exp, err := parsed.Claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}
	return time.Now().Add(defaultTokenLifetime)
}
