package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/asakaida/relcalc/internal/entities"
	"github.com/asakaida/relcalc/internal/repositories"
	"github.com/jmoiron/sqlx"
)

const analysisColumns = `id, cm_value, generation, sex, x_inheritance, segments, largest_segment,
		endogamy_level, top_code, top_probability, subject, created_at`

// AnalysisRepository implements repositories.AnalysisRepository on top of sqlx
type AnalysisRepository struct {
	db *sqlx.DB
}

// NewAnalysisRepository creates a new analysis history repository
func NewAnalysisRepository(db *sqlx.DB) repositories.AnalysisRepository {
	return &AnalysisRepository{db: db}
}

// Create stores an analysis record
func (r *AnalysisRepository) Create(ctx context.Context, a *entities.Analysis) error {
	query := r.db.Rebind(`
		INSERT INTO analyses (` + analysisColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.CMValue, a.Generation, a.Sex, a.XInheritance, a.Segments, a.LargestSegment,
		a.EndogamyLevel, a.TopCode, a.TopProbability, a.Subject, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create analysis: %w", err)
	}
	return nil
}

// List returns analyses ordered from newest to oldest
func (r *AnalysisRepository) List(ctx context.Context, skip, limit int) ([]*entities.Analysis, error) {
	query := r.db.Rebind(`
		SELECT ` + analysisColumns + `
		FROM analyses
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?
	`)
	analyses := make([]*entities.Analysis, 0)
	if err := r.db.SelectContext(ctx, &analyses, query, limit, skip); err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	return analyses, nil
}

// Get returns a single analysis
func (r *AnalysisRepository) Get(ctx context.Context, id string) (*entities.Analysis, error) {
	query := r.db.Rebind(`SELECT ` + analysisColumns + ` FROM analyses WHERE id = ?`)
	var a entities.Analysis
	err := r.db.GetContext(ctx, &a, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("analysis %s: %w", id, repositories.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}
	return &a, nil
}
