package repositories

import (
	"context"

	"github.com/asakaida/relcalc/internal/entities"
)

// AnalysisRepository defines the interface for analysis history access
type AnalysisRepository interface {
	// Create stores an analysis record
	Create(ctx context.Context, analysis *entities.Analysis) error

	// List returns analyses ordered from newest to oldest
	List(ctx context.Context, skip, limit int) ([]*entities.Analysis, error)

	// Get returns a single analysis, or ErrNotFound
	Get(ctx context.Context, id string) (*entities.Analysis, error)
}
