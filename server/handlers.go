package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/joeychilson/textfilter/config"
	"github.com/joeychilson/textfilter/filter"
	"github.com/joeychilson/textfilter/normalizer"
)

// NormalizeRequest names a configured pipeline or gives ad hoc steps, never both.
type NormalizeRequest struct {
	Pipeline string              `json:"pipeline,omitempty"`
	Steps    []config.StepConfig `json:"steps,omitempty"`
	Text     string              `json:"text"`
}

// NormalizeResponse is the result of a normalize request.
type NormalizeResponse struct {
	Output   string `json:"output"`
	Pipeline string `json:"pipeline,omitempty"`
	Cached   bool   `json:"cached"`
	CachedAt string `json:"cached_at,omitempty"`
}

// PipelineInfo describes a configured pipeline.
type PipelineInfo struct {
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Steps       []config.StepConfig `json:"steps,omitempty"`
}

// PipelinesResponse lists the configured pipelines.
type PipelinesResponse struct {
	Pipelines []PipelineInfo `json:"pipelines"`
}

// FiltersResponse lists the registered filter names.
type FiltersResponse struct {
	Filters []string `json:"filters"`
}

// ErrorResponse represents an error.
type ErrorResponse struct {
	Error      string `json:"error"`
	StatusCode int    `json:"status_code"`
}

// handleNormalize handles POST /v1/normalize requests.
func (s *Server) handleNormalize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := s.logger.WithContext(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, int64(s.maxTextLength)*2+64*1024)

	var req NormalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Debug("failed to decode request", "error", err)
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			s.sendError(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		s.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if err := s.validateRequest(&req); err != nil {
		log.Debug("invalid request", "error", err)
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var (
		result *normalizer.Result
		err    error
	)
	if req.Pipeline != "" {
		result, err = s.normalizer.Normalize(ctx, req.Pipeline, req.Text)
	} else {
		result, err = s.normalizer.NormalizeSteps(ctx, req.Steps, req.Text)
	}
	if err != nil {
		status := statusForError(err)
		if status >= http.StatusInternalServerError {
			log.Error("normalize failed", "pipeline", req.Pipeline, "error", err)
		} else {
			log.Info("normalize rejected", "pipeline", req.Pipeline, "status_code", status, "error", err)
		}
		s.sendError(w, err.Error(), status)
		return
	}

	resp := NormalizeResponse{
		Output:   result.Output,
		Pipeline: result.Pipeline,
		Cached:   result.Cached,
	}
	if !result.CachedAt.IsZero() {
		resp.CachedAt = result.CachedAt.UTC().Format(time.RFC3339Nano)
	}

	s.sendJSON(w, resp, http.StatusOK)
}

// handlePipelines handles GET /v1/pipelines requests.
func (s *Server) handlePipelines(w http.ResponseWriter, r *http.Request) {
	names := s.normalizer.Pipelines()
	resp := PipelinesResponse{Pipelines: make([]PipelineInfo, 0, len(names))}
	for _, name := range names {
		p, _ := s.normalizer.Describe(name)
		resp.Pipelines = append(resp.Pipelines, PipelineInfo{Name: name, Description: p.Description})
	}
	s.sendJSON(w, resp, http.StatusOK)
}

// handlePipeline handles GET /v1/pipelines/{name} requests.
func (s *Server) handlePipeline(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	p, ok := s.normalizer.Describe(name)
	if !ok {
		s.sendError(w, fmt.Sprintf("%v: %q", normalizer.ErrUnknownPipeline, name), http.StatusNotFound)
		return
	}
	s.sendJSON(w, PipelineInfo{Name: p.Name, Description: p.Description, Steps: p.Steps}, http.StatusOK)
}

// handleFilters handles GET /v1/filters requests.
func (s *Server) handleFilters(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, FiltersResponse{Filters: filter.Names()}, http.StatusOK)
}

// handleHealth handles GET /health requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	}
	s.sendJSON(w, health, http.StatusOK)
}

func (s *Server) validateRequest(req *NormalizeRequest) error {
	if req == nil {
		return fmt.Errorf("request cannot be nil")
	}

	hasSteps := len(req.Steps) > 0
	if req.Pipeline == "" && !hasSteps {
		return fmt.Errorf("one of 'pipeline' or 'steps' is required")
	}
	if req.Pipeline != "" && hasSteps {
		return fmt.Errorf("'pipeline' and 'steps' cannot both be set")
	}

	if len(req.Text) > s.maxTextLength {
		return fmt.Errorf("text exceeds %d bytes", s.maxTextLength)
	}

	return nil
}

// statusForError maps normalizer errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, normalizer.ErrUnknownPipeline), errors.Is(err, normalizer.ErrInvalidSteps):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusUnprocessableEntity
	}
}

func (s *Server) sendJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(data); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) sendError(w http.ResponseWriter, message string, statusCode int) {
	errResp := ErrorResponse{
		Error:      message,
		StatusCode: statusCode,
	}
	s.sendJSON(w, errResp, statusCode)
}
