package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/skillsinfra/ukrlp-cache/internal/core/domain"
	"github.com/skillsinfra/ukrlp-cache/internal/core/ports/driving"
)

// Mock services for testing

type mockProviderReader struct {
	getFn     func(ctx context.Context, ukprn int64, opts driving.ReadOptions) (*domain.LearningProvider, error)
	getManyFn func(ctx context.Context, ukprns []int64, opts driving.ReadOptions) ([]*domain.LearningProvider, error)
}

func (m *mockProviderReader) Get(ctx context.Context, ukprn int64, opts driving.ReadOptions) (*domain.LearningProvider, error) {
	if m.getFn != nil {
		return m.getFn(ctx, ukprn, opts)
	}
	return nil, errors.New("not implemented")
}

func (m *mockProviderReader) GetMany(ctx context.Context, ukprns []int64, opts driving.ReadOptions) ([]*domain.LearningProvider, error) {
	if m.getManyFn != nil {
		return m.getManyFn(ctx, ukprns, opts)
	}
	return nil, errors.New("not implemented")
}

type mockCacheManager struct {
	downloadFn     func(ctx context.Context) error
	processBatchFn func(ctx context.Context, ukprns []int64, pointInTime time.Time) (*domain.BatchResult, error)
	tidyFn         func(ctx context.Context) error
}

func (m *mockCacheManager) DownloadToCache(ctx context.Context) error {
	if m.downloadFn != nil {
		return m.downloadFn(ctx)
	}
	return errors.New("not implemented")
}

func (m *mockCacheManager) ProcessBatch(ctx context.Context, ukprns []int64, pointInTime time.Time) (*domain.BatchResult, error) {
	if m.processBatchFn != nil {
		return m.processBatchFn(ctx, ukprns, pointInTime)
	}
	return nil, errors.New("not implemented")
}

func (m *mockCacheManager) TidyCache(ctx context.Context) error {
	if m.tidyFn != nil {
		return m.tidyFn(ctx)
	}
	return errors.New("not implemented")
}

const testAuthSecret = "test-secret"

func newTestServer(providers *mockProviderReader, cache *mockCacheManager) *Server {
	return NewServer(
		Config{Version: "test", AuthSecret: testAuthSecret},
		providers,
		cache,
		nil,
		nil,
		nil,
	)
}

func testAuthToken(t *testing.T, expiresIn time.Duration) string {
	t.Helper()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "maintenance",
		"exp": time.Now().Add(expiresIn).Unix(),
	}).SignedString([]byte(testAuthSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func TestHealthHandler(t *testing.T) {
	server := &Server{version: "test"}

	req := httptest.NewRequest("GET", "/health", nil)
	rr := httptest.NewRecorder()

	server.handleHealth(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}

	var response map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response["status"] != "ok" {
		t.Errorf("expected status 'ok', got %s", response["status"])
	}
}

func TestVersionHandler(t *testing.T) {
	server := &Server{version: "1.2.3"}

	req := httptest.NewRequest("GET", "/version", nil)
	rr := httptest.NewRecorder()

	server.handleVersion(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}

	var response map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response["version"] != "1.2.3" {
		t.Errorf("expected version '1.2.3', got %s", response["version"])
	}
}

func TestGetProviderHandler(t *testing.T) {
	providers := &mockProviderReader{
		getFn: func(ctx context.Context, ukprn int64, opts driving.ReadOptions) (*domain.LearningProvider, error) {
			return &domain.LearningProvider{UKPRN: ukprn, Name: "Test College", Status: "Open"}, nil
		},
	}
	server := newTestServer(providers, &mockCacheManager{})

	req := httptest.NewRequest("GET", "/learning-providers/10000001", nil)
	rr := httptest.NewRecorder()

	server.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var response map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response["name"] != "Test College" {
		t.Errorf("expected name Test College, got %v", response["name"])
	}
}

func TestGetProviderHandler_PrunesFields(t *testing.T) {
	providers := &mockProviderReader{
		getFn: func(ctx context.Context, ukprn int64, opts driving.ReadOptions) (*domain.LearningProvider, error) {
			return &domain.LearningProvider{UKPRN: ukprn, Name: "Test College", Status: "Open", Postcode: "S1 1AA"}, nil
		},
	}
	server := newTestServer(providers, &mockCacheManager{})

	req := httptest.NewRequest("GET", "/learning-providers/10000001?fields=name,postcode", nil)
	rr := httptest.NewRecorder()

	server.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var response map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(response) != 2 {
		t.Errorf("expected 2 fields, got %d: %v", len(response), response)
	}
	if response["postcode"] != "S1 1AA" {
		t.Errorf("expected postcode S1 1AA, got %v", response["postcode"])
	}
}

func TestGetProviderHandler_QueryOptions(t *testing.T) {
	var gotOpts driving.ReadOptions
	providers := &mockProviderReader{
		getFn: func(ctx context.Context, ukprn int64, opts driving.ReadOptions) (*domain.LearningProvider, error) {
			gotOpts = opts
			return &domain.LearningProvider{UKPRN: ukprn}, nil
		},
	}
	server := newTestServer(providers, &mockCacheManager{})

	req := httptest.NewRequest("GET", "/learning-providers/10000001?readFromLive=true&pointInTime=2024-06-01", nil)
	rr := httptest.NewRecorder()

	server.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !gotOpts.ReadFromLive {
		t.Error("expected ReadFromLive to be set")
	}
	if !gotOpts.PointInTime.Equal(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("expected point in time 2024-06-01, got %v", gotOpts.PointInTime)
	}
}

func TestGetProviderHandler_Errors(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		serviceErr error
		wantStatus int
	}{
		{"not found", "/learning-providers/10000001", domain.ErrNotFound, http.StatusNotFound},
		{"invalid ukprn", "/learning-providers/10000001", domain.ErrInvalidInput, http.StatusBadRequest},
		{"non-numeric id", "/learning-providers/abc", nil, http.StatusBadRequest},
		{"bad point in time", "/learning-providers/10000001?pointInTime=junk", nil, http.StatusBadRequest},
		{"registry down", "/learning-providers/10000001?readFromLive=true", domain.ErrServiceUnavailable, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			providers := &mockProviderReader{
				getFn: func(ctx context.Context, ukprn int64, opts driving.ReadOptions) (*domain.LearningProvider, error) {
					return nil, tt.serviceErr
				},
			}
			server := newTestServer(providers, &mockCacheManager{})

			req := httptest.NewRequest("GET", tt.path, nil)
			rr := httptest.NewRecorder()

			server.router.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rr.Code)
			}
		})
	}
}

func TestGetProvidersHandler(t *testing.T) {
	providers := &mockProviderReader{
		getManyFn: func(ctx context.Context, ukprns []int64, opts driving.ReadOptions) ([]*domain.LearningProvider, error) {
			return []*domain.LearningProvider{
				{UKPRN: ukprns[0], Name: "Known College"},
				nil,
			}, nil
		},
	}
	server := newTestServer(providers, &mockCacheManager{})

	body, _ := json.Marshal(BulkProvidersRequest{UKPRNs: []int64{10000001, 10000002}})
	req := httptest.NewRequest("POST", "/learning-providers", bytes.NewBuffer(body))
	rr := httptest.NewRecorder()

	server.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var response []map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(response) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(response))
	}
	if response[0]["name"] != "Known College" {
		t.Errorf("expected first entry to be Known College, got %v", response[0])
	}
	if response[1] != nil {
		t.Errorf("expected second entry to be null, got %v", response[1])
	}
}

func TestGetProvidersHandler_InvalidBody(t *testing.T) {
	server := newTestServer(&mockProviderReader{}, &mockCacheManager{})

	req := httptest.NewRequest("POST", "/learning-providers", bytes.NewBufferString("invalid json"))
	rr := httptest.NewRecorder()

	server.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
}

func TestTriggerDownloadHandler(t *testing.T) {
	tests := []struct {
		name       string
		downloadFn func(ctx context.Context) error
		wantStatus int
	}{
		{"accepted", func(ctx context.Context) error { return nil }, http.StatusAccepted},
		{"already running", func(ctx context.Context) error { return domain.ErrDownloadInProgress }, http.StatusConflict},
		{"failure", func(ctx context.Context) error { return errors.New("boom") }, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newTestServer(&mockProviderReader{}, &mockCacheManager{downloadFn: tt.downloadFn})

			req := httptest.NewRequest("POST", "/cache/download", nil)
			req.Header.Set("Authorization", "Bearer "+testAuthToken(t, time.Hour))
			rr := httptest.NewRecorder()

			server.router.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rr.Code)
			}
		})
	}
}

func TestTriggerDownloadHandler_RequiresAuth(t *testing.T) {
	server := newTestServer(&mockProviderReader{}, &mockCacheManager{})

	req := httptest.NewRequest("POST", "/cache/download", nil)
	rr := httptest.NewRecorder()

	server.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rr.Code)
	}
}

func TestProcessBatchHandler(t *testing.T) {
	cache := &mockCacheManager{
		processBatchFn: func(ctx context.Context, ukprns []int64, pointInTime time.Time) (*domain.BatchResult, error) {
			result := &domain.BatchResult{}
			result.Add(ukprns[0], domain.OutcomeCreated)
			result.Add(ukprns[1], domain.OutcomeUnchanged)
			result.AddError(ukprns[2], errors.New("staged record missing"))
			return result, nil
		},
	}
	server := newTestServer(&mockProviderReader{}, cache)

	body, _ := json.Marshal(ProcessBatchRequest{
		UKPRNs:      []int64{10000001, 10000002, 10000003},
		PointInTime: "2024-06-01",
	})
	req := httptest.NewRequest("POST", "/cache/process-batch", bytes.NewBuffer(body))
	req.Header.Set("Authorization", "Bearer "+testAuthToken(t, time.Hour))
	rr := httptest.NewRecorder()

	server.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var response ProcessBatchResponse
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Created != 1 || response.Unchanged != 1 {
		t.Errorf("unexpected counts: %+v", response)
	}
	if len(response.Failed) != 1 || response.Failed[0].UKPRN != 10000003 {
		t.Errorf("unexpected failed items: %+v", response.Failed)
	}
}

func TestProcessBatchHandler_MissingPointInTime(t *testing.T) {
	server := newTestServer(&mockProviderReader{}, &mockCacheManager{})

	body, _ := json.Marshal(ProcessBatchRequest{UKPRNs: []int64{10000001}})
	req := httptest.NewRequest("POST", "/cache/process-batch", bytes.NewBuffer(body))
	req.Header.Set("Authorization", "Bearer "+testAuthToken(t, time.Hour))
	rr := httptest.NewRecorder()

	server.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
}

func TestTriggerTidyHandler(t *testing.T) {
	ran := false
	cache := &mockCacheManager{
		tidyFn: func(ctx context.Context) error {
			ran = true
			return nil
		},
	}
	server := newTestServer(&mockProviderReader{}, cache)

	req := httptest.NewRequest("POST", "/cache/tidy", nil)
	req.Header.Set("Authorization", "Bearer "+testAuthToken(t, time.Hour))
	rr := httptest.NewRecorder()

	server.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Errorf("expected status 202, got %d", rr.Code)
	}
	if !ran {
		t.Error("expected tidy to run")
	}
}
