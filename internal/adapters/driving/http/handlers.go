package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/skillsinfra/ukrlp-cache/internal/core/domain"
	"github.com/skillsinfra/ukrlp-cache/internal/core/ports/driving"
)

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"invalid request body"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Returns the readiness status of the API (checks database, queue and cache connections)
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Failure      503  {object}  ErrorResponse  "A dependency is unavailable"
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if s.db != nil {
		if err := s.db.Ping(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	if s.taskQueue != nil {
		if err := s.taskQueue.Ping(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, "task queue unavailable")
			return
		}
	}
	if s.redisClient != nil {
		if err := s.redisClient.Ping(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, "cache unavailable")
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleVersion godoc
// @Summary      Get API version
// @Description  Returns the current API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// Provider endpoints

// handleGetProvider godoc
// @Summary      Get a learning provider
// @Description  Returns a learning provider by UKPRN, from the cache or live from the registry
// @Tags         Providers
// @Produce      json
// @Param        id            path   string  true   "UKPRN"
// @Param        fields        query  string  false  "Comma-separated field names to return"
// @Param        readFromLive  query  bool    false  "Bypass the cache and read from the registry"
// @Param        pointInTime   query  string  false  "Serve the snapshot valid on this date (YYYY-MM-DD)"
// @Success      200  {object}  domain.LearningProvider
// @Failure      400  {object}  ErrorResponse  "Invalid UKPRN or query parameter"
// @Failure      404  {object}  ErrorResponse  "Provider not found"
// @Router       /learning-providers/{id} [get]
func (s *Server) handleGetProvider(w http.ResponseWriter, r *http.Request) {
	ukprn, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "id must be a UKPRN")
		return
	}

	opts, fields, err := readOptionsFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	provider, err := s.providerService.Get(r.Context(), ukprn, opts)
	if err != nil {
		writeProviderError(w, err)
		return
	}

	writeProvider(w, provider, fields)
}

// BulkProvidersRequest is the body for a multi-provider read
// @Description Multi-provider read request
type BulkProvidersRequest struct {
	UKPRNs       []int64  `json:"ukprns"`
	Fields       []string `json:"fields,omitempty"`
	ReadFromLive bool     `json:"readFromLive,omitempty"`
	PointInTime  string   `json:"pointInTime,omitempty"`
}

// handleGetProviders godoc
// @Summary      Get multiple learning providers
// @Description  Returns learning providers for the requested UKPRNs. The response array is positionally aligned with the request; unknown UKPRNs come back null.
// @Tags         Providers
// @Accept       json
// @Produce      json
// @Param        request  body      BulkProvidersRequest  true  "UKPRNs to read"
// @Success      200      {array}   domain.LearningProvider
// @Failure      400      {object}  ErrorResponse  "Invalid request body or UKPRN"
// @Router       /learning-providers [post]
func (s *Server) handleGetProviders(w http.ResponseWriter, r *http.Request) {
	var req BulkProvidersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.UKPRNs) == 0 {
		writeError(w, http.StatusBadRequest, "ukprns is required")
		return
	}

	opts := driving.ReadOptions{ReadFromLive: req.ReadFromLive}
	if req.PointInTime != "" {
		pointInTime, err := parsePointInTime(req.PointInTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		opts.PointInTime = pointInTime
	}

	providers, err := s.providerService.GetMany(r.Context(), req.UKPRNs, opts)
	if err != nil {
		writeProviderError(w, err)
		return
	}

	results := make([]map[string]any, len(providers))
	for i, provider := range providers {
		if provider == nil {
			continue
		}
		pruned, err := provider.PruneFields(req.Fields)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to serialize provider")
			return
		}
		results[i] = pruned
	}

	writeJSON(w, http.StatusOK, results)
}

// Cache maintenance endpoints

// handleTriggerDownload godoc
// @Summary      Trigger a cache download
// @Description  Reads providers changed since the last download and queues them for processing
// @Tags         Cache
// @Produce      json
// @Security     BearerAuth
// @Success      202  {object}  StatusResponse
// @Failure      409  {object}  ErrorResponse  "A download is already running"
// @Router       /cache/download [post]
func (s *Server) handleTriggerDownload(w http.ResponseWriter, r *http.Request) {
	if err := s.cacheService.DownloadToCache(r.Context()); err != nil {
		if errors.Is(err, domain.ErrDownloadInProgress) {
			writeError(w, http.StatusConflict, "download already in progress")
			return
		}
		writeError(w, http.StatusInternalServerError, "download failed")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// handleTriggerTidy godoc
// @Summary      Trigger a staging tidy
// @Description  Removes staged provider records older than the retention window
// @Tags         Cache
// @Produce      json
// @Security     BearerAuth
// @Success      202  {object}  StatusResponse
// @Router       /cache/tidy [post]
func (s *Server) handleTriggerTidy(w http.ResponseWriter, r *http.Request) {
	if err := s.cacheService.TidyCache(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "tidy failed")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// ProcessBatchRequest is the body for an on-demand batch process
// @Description On-demand batch process request
type ProcessBatchRequest struct {
	UKPRNs      []int64 `json:"ukprns"`
	PointInTime string  `json:"pointInTime"`
}

// ProcessBatchResponse summarizes a processed batch
// @Description Processed batch summary
type ProcessBatchResponse struct {
	Created   int                 `json:"created"`
	Updated   int                 `json:"updated"`
	Unchanged int                 `json:"unchanged"`
	Failed    []domain.ItemResult `json:"failed,omitempty"`
}

// handleProcessBatch godoc
// @Summary      Process a batch of staged providers
// @Description  Processes the given staged providers against the cache and reports per-provider outcomes
// @Tags         Cache
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      ProcessBatchRequest  true  "UKPRNs and their staging date"
// @Success      200      {object}  ProcessBatchResponse
// @Failure      400      {object}  ErrorResponse  "Invalid request body"
// @Router       /cache/process-batch [post]
func (s *Server) handleProcessBatch(w http.ResponseWriter, r *http.Request) {
	var req ProcessBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.UKPRNs) == 0 {
		writeError(w, http.StatusBadRequest, "ukprns is required")
		return
	}
	pointInTime, err := parsePointInTime(req.PointInTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.cacheService.ProcessBatch(r.Context(), req.UKPRNs, pointInTime)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "batch processing failed")
		return
	}

	created, updated, unchanged, _ := result.Counts()
	writeJSON(w, http.StatusOK, ProcessBatchResponse{
		Created:   created,
		Updated:   updated,
		Unchanged: unchanged,
		Failed:    result.Failed(),
	})
}

// Helpers

// readOptionsFromQuery parses the shared provider read query parameters.
func readOptionsFromQuery(r *http.Request) (driving.ReadOptions, []string, error) {
	var opts driving.ReadOptions

	if live := r.URL.Query().Get("readFromLive"); live != "" {
		parsed, err := strconv.ParseBool(live)
		if err != nil {
			return opts, nil, errors.New("readFromLive must be a boolean")
		}
		opts.ReadFromLive = parsed
	}

	if raw := r.URL.Query().Get("pointInTime"); raw != "" {
		pointInTime, err := parsePointInTime(raw)
		if err != nil {
			return opts, nil, err
		}
		opts.PointInTime = pointInTime
	}

	var fields []string
	if raw := r.URL.Query().Get("fields"); raw != "" {
		for _, field := range strings.Split(raw, ",") {
			if field = strings.TrimSpace(field); field != "" {
				fields = append(fields, field)
			}
		}
	}

	return opts, fields, nil
}

func parsePointInTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, errors.New("pointInTime is required")
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("pointInTime must be a date (YYYY-MM-DD)")
}

func writeProvider(w http.ResponseWriter, provider *domain.LearningProvider, fields []string) {
	pruned, err := provider.PruneFields(fields)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to serialize provider")
		return
	}
	writeJSON(w, http.StatusOK, pruned)
}

func writeProviderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "provider not found")
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrServiceUnavailable):
		writeError(w, http.StatusServiceUnavailable, "registry unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "failed to read provider")
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
