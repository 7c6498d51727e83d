// Package chi exposes the pipeline over a thin HTTP boundary.
package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/geotag/internal/domain"
	"github.com/kailas-cloud/geotag/internal/domain/area"
	healthuc "github.com/kailas-cloud/geotag/internal/usecase/health"
	pipelineuc "github.com/kailas-cloud/geotag/internal/usecase/pipeline"
)

const maxBatchSize = 100

// Error codes returned in the JSON error envelope.
const (
	codeBadRequest         = "bad_request"
	codeValidationFailed   = "validation_failed"
	codeGeocodeUnavailable = "geocode_unavailable"
	codeInternalError      = "internal_error"
)

// Server routes HTTP requests to the pipeline services.
type Server struct {
	pipeline *pipelineuc.Service
	health   *healthuc.Service
	logger   *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(pipeline *pipelineuc.Service, health *healthuc.Service, logger *zap.Logger) *Server {
	return &Server{pipeline: pipeline, health: health, logger: logger}
}

// Mount attaches the API routes to a chi router.
func (s *Server) Mount(r chi.Router) {
	r.Post("/v1/tag", s.Tag)
	r.Post("/v1/render", s.Render)
	r.Get("/healthz", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// processRequest carries a single text or a batch, never both.
type processRequest struct {
	Text            string      `json:"text"`
	Texts           []string    `json:"texts"`
	AreasOfInterest []area.Area `json:"areas_of_interest"`
}

type textResponse struct {
	Text        string `json:"text"`
	HasEntities bool   `json:"has_entities"`
}

type batchResponse struct {
	Results []pipelineuc.Result `json:"results"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Tag handles POST /v1/tag.
func (s *Server) Tag(w http.ResponseWriter, r *http.Request) {
	s.process(w, r,
		func(req processRequest) textResponse {
			text := s.pipeline.TagText(r.Context(), req.Text, req.AreasOfInterest)
			return newTextResponse(text)
		},
		func(req processRequest) ([]pipelineuc.Result, error) {
			return s.pipeline.TagTexts(r.Context(), req.Texts, req.AreasOfInterest)
		},
	)
}

// Render handles POST /v1/render.
func (s *Server) Render(w http.ResponseWriter, r *http.Request) {
	s.process(w, r,
		func(req processRequest) textResponse {
			text := s.pipeline.RenderText(r.Context(), req.Text, req.AreasOfInterest)
			return textResponse{Text: text, HasEntities: hasAnchor(text)}
		},
		func(req processRequest) ([]pipelineuc.Result, error) {
			return s.pipeline.RenderTexts(r.Context(), req.Texts, req.AreasOfInterest)
		},
	)
}

func (s *Server) process(
	w http.ResponseWriter,
	r *http.Request,
	single func(processRequest) textResponse,
	batch func(processRequest) ([]pipelineuc.Result, error),
) {
	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if req.Text != "" && len(req.Texts) > 0 {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "text and texts are mutually exclusive")
		return
	}

	if len(req.Texts) > 0 {
		if len(req.Texts) > maxBatchSize {
			writeError(w, http.StatusBadRequest, codeValidationFailed,
				fmt.Sprintf("texts count must not exceed %d", maxBatchSize))
			return
		}
		results, err := batch(req)
		if err != nil {
			s.handleDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, batchResponse{Results: results})
		return
	}

	if req.Text == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "text is required")
		return
	}
	writeJSON(w, http.StatusOK, single(req))
}

// HealthCheck handles GET /healthz.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrGeocodeTransport) {
		s.logger.Warn("geocode transport failure", zap.Error(err))
		writeError(w, http.StatusBadGateway, codeGeocodeUnavailable, "geocoding service unavailable")
		return
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}

func newTextResponse(text string) textResponse {
	return textResponse{Text: text, HasEntities: strings.Contains(text, "<LOC")}
}

func hasAnchor(text string) bool {
	return strings.Contains(text, "<a href=")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}
