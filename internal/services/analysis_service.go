package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/asakaida/relcalc/internal/entities"
	"github.com/asakaida/relcalc/internal/repositories"
	"github.com/asakaida/relcalc/internal/services/analysis"
)

// Pagination limits of the analysis history
const (
	DefaultHistoryLimit = 100
	MaxHistoryLimit     = 100
)

// AnalysisRecorder receives the best match of every completed analysis
type AnalysisRecorder interface {
	RecordAnalysis(topCode string)
}

// AnalysisServiceInterface defines the interface for analysis operations
type AnalysisServiceInterface interface {
	Analyze(ctx context.Context, req *entities.AnalysisRequest, subject string) ([]*entities.AnalysisResult, error)
	Calculate(ctx context.Context, req *entities.CalculationRequest) ([]*entities.CalculationResult, error)
	CurveHistogram(ctx context.Context, code string) (*entities.CurveHistogram, error)
	List(ctx context.Context, skip, limit int) ([]*entities.Analysis, error)
	Get(ctx context.Context, id string) (*entities.Analysis, error)
}

// AnalysisService runs analyses against the catalog and keeps their history
type AnalysisService struct {
	catalog  CatalogServiceInterface
	history  repositories.AnalysisRepository
	recorder AnalysisRecorder
	logger   *zap.Logger
	now      func() time.Time
}

// NewAnalysisService creates a new AnalysisService. recorder and logger may be nil.
func NewAnalysisService(
	catalog CatalogServiceInterface,
	history repositories.AnalysisRepository,
	recorder AnalysisRecorder,
	logger *zap.Logger,
) *AnalysisService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalysisService{
		catalog:  catalog,
		history:  history,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
	}
}

// Analyze ranks the candidate relationships and stores the request in the
// history. A failure to store is logged and does not fail the analysis.
func (s *AnalysisService) Analyze(ctx context.Context, req *entities.AnalysisRequest, subject string) ([]*entities.AnalysisResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	catalog, err := s.catalog.Catalog(ctx)
	if err != nil {
		return nil, err
	}

	results, err := analysis.Analyze(catalog, req)
	if err != nil {
		return nil, err
	}

	record := s.newRecord(req, results, subject)
	if s.recorder != nil {
		topCode := ""
		if record.TopCode != nil {
			topCode = *record.TopCode
		}
		s.recorder.RecordAnalysis(topCode)
	}
	if s.history != nil {
		if err := s.history.Create(ctx, record); err != nil {
			s.logger.Warn("failed to store analysis",
				zap.String("analysis_id", record.ID),
				zap.Error(err),
			)
		}
	}

	return results, nil
}

func (s *AnalysisService) newRecord(req *entities.AnalysisRequest, results []*entities.AnalysisResult, subject string) *entities.Analysis {
	record := &entities.Analysis{
		ID:             uuid.NewString(),
		CMValue:        *req.CM,
		Generation:     req.Generacion,
		Sex:            req.Sexo,
		XInheritance:   req.XInheritance,
		Segments:       req.Segments,
		LargestSegment: req.LargestSegment,
		Subject:        subject,
		CreatedAt:      s.now().UTC(),
	}
	if req.Endogamia != nil {
		level := string(*req.Endogamia)
		record.EndogamyLevel = &level
	}
	if len(results) > 0 {
		code := results[0].Code
		prob := results[0].AdjustedProb
		record.TopCode = &code
		record.TopProbability = &prob
	}
	return record
}

// Calculate returns the curve-based probability of each covering relationship
func (s *AnalysisService) Calculate(ctx context.Context, req *entities.CalculationRequest) ([]*entities.CalculationResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	catalog, err := s.catalog.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	return analysis.Calculate(catalog, req)
}

// CurveHistogram returns the chart form of a relationship's probability curve
func (s *AnalysisService) CurveHistogram(ctx context.Context, code string) (*entities.CurveHistogram, error) {
	catalog, err := s.catalog.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	return analysis.CurveHistogram(catalog, code)
}

// List returns stored analyses, newest first
func (s *AnalysisService) List(ctx context.Context, skip, limit int) ([]*entities.Analysis, error) {
	if skip < 0 {
		return nil, &entities.ValidationError{Field: "skip", Message: "must be non-negative"}
	}
	if limit < 1 || limit > MaxHistoryLimit {
		return nil, &entities.ValidationError{Field: "limit", Message: fmt.Sprintf("must be between 1 and %d", MaxHistoryLimit)}
	}
	if s.history == nil {
		return []*entities.Analysis{}, nil
	}

	analyses, err := s.history.List(ctx, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	return analyses, nil
}

// Get returns one stored analysis
func (s *AnalysisService) Get(ctx context.Context, id string) (*entities.Analysis, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("analysis %s: %w", id, repositories.ErrNotFound)
	}
	if s.history == nil {
		return nil, fmt.Errorf("analysis %s: %w", id, repositories.ErrNotFound)
	}
	return s.history.Get(ctx, id)
}
