package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/asakaida/relcalc/internal/entities"
	"github.com/asakaida/relcalc/internal/httputil"
	"github.com/asakaida/relcalc/internal/infrastructure/middleware"
	"github.com/asakaida/relcalc/internal/services"
)

// HealthChecker reports whether a dependency is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// APIHandler implements the HTTP API
type APIHandler struct {
	catalog  services.CatalogServiceInterface
	analyses services.AnalysisServiceInterface
	health   HealthChecker
	logger   *zap.Logger
}

// NewAPIHandler creates a new APIHandler
func NewAPIHandler(
	catalog services.CatalogServiceInterface,
	analyses services.AnalysisServiceInterface,
	health HealthChecker,
	logger *zap.Logger,
) *APIHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIHandler{
		catalog:  catalog,
		analyses: analyses,
		health:   health,
		logger:   logger,
	}
}

type messageResponse struct {
	Message string `json:"message"`
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

type relationshipsResponse struct {
	Results []*entities.Relationship `json:"results"`
}

type histogramResponse struct {
	Histogram map[string]int `json:"histogram"`
}

// Root handles GET /
func (h *APIHandler) Root(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, messageResponse{Message: "Welcome to the Genealogy DNA Analysis API"})
}

// Health handles GET /health
func (h *APIHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if h.health != nil {
		if err := h.health.HealthCheck(ctx); err != nil {
			h.logger.Warn("health check failed", zap.Error(err))
			httputil.WriteJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Database: "unreachable"})
			return
		}
	}
	httputil.WriteJSON(w, http.StatusOK, healthResponse{Status: "ok", Database: "ok"})
}

// RelationshipsByCM handles GET /api/relationships/?cm=N
func (h *APIHandler) RelationshipsByCM(w http.ResponseWriter, r *http.Request) {
	cm, err := queryFloat(r, "cm")
	if err != nil {
		writeValidationError(w, err.Error())
		return
	}

	rels, err := h.catalog.ListCovering(r.Context(), cm)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, relationshipsResponse{Results: rels})
}

// AllRelationships handles GET {API_V1_STR}/relationships
func (h *APIHandler) AllRelationships(w http.ResponseWriter, r *http.Request) {
	rels, err := h.catalog.All(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err, "")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rels)
}

// Histogram handles GET /api/histogram/?code=X
func (h *APIHandler) Histogram(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(r.URL.Query().Get("code"))
	if code == "" {
		writeValidationError(w, "code: query parameter required")
		return
	}

	bins, err := h.catalog.Histogram(r.Context(), code)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Relación no encontrada")
		return
	}

	histogram := make(map[string]int, len(bins))
	for _, bin := range bins {
		histogram[bin.Range] = bin.Count
	}
	httputil.WriteJSON(w, http.StatusOK, histogramResponse{Histogram: histogram})
}

// Analyze handles POST /api/v1/analyze
func (h *APIHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req entities.AnalysisRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeValidationError(w, err.Error())
		return
	}

	results, err := h.analyses.Analyze(r.Context(), &req, middleware.Subject(r.Context()))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, results)
}

// Calculate handles POST /api/relationships/calculate
func (h *APIHandler) Calculate(w http.ResponseWriter, r *http.Request) {
	var req entities.CalculationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeValidationError(w, err.Error())
		return
	}

	results, err := h.analyses.Calculate(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "No relationships found for the given cM value")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, results)
}

// CurveHistogram handles GET /api/relationships/{code}/histogram
func (h *APIHandler) CurveHistogram(w http.ResponseWriter, r *http.Request) {
	histogram, err := h.analyses.CurveHistogram(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Relationship not found")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, histogram)
}

// DNAAnalysis handles GET {API_V1_STR}/dna-analysis
func (h *APIHandler) DNAAnalysis(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, messageResponse{Message: "DNA Analysis endpoint"})
}

// ListAnalyses handles GET {API_V1_STR}/analyses
func (h *APIHandler) ListAnalyses(w http.ResponseWriter, r *http.Request) {
	skip, err := queryInt(r, "skip", 0)
	if err != nil {
		writeValidationError(w, err.Error())
		return
	}
	limit, err := queryInt(r, "limit", services.DefaultHistoryLimit)
	if err != nil {
		writeValidationError(w, err.Error())
		return
	}

	analyses, err := h.analyses.List(r.Context(), skip, limit)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, analyses)
}

// GetAnalysis handles GET {API_V1_STR}/analyses/{id}
func (h *APIHandler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	analysis, err := h.analyses.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Analysis not found")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, analysis)
}
