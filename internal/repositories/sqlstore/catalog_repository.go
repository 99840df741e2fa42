package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/asakaida/relcalc/internal/entities"
	"github.com/asakaida/relcalc/internal/repositories"
	"github.com/jmoiron/sqlx"
)

// CatalogRepository implements repositories.CatalogRepository on top of sqlx.
// Queries are written with ? placeholders and rebound for the driver.
type CatalogRepository struct {
	db *sqlx.DB
}

// NewCatalogRepository creates a new catalog repository
func NewCatalogRepository(db *sqlx.DB) repositories.CatalogRepository {
	return &CatalogRepository{db: db}
}

// LoadCatalog reads all reference data inside one transaction
func (r *CatalogRepository) LoadCatalog(ctx context.Context) (*entities.Catalog, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var relationships []*entities.Relationship
	err = tx.SelectContext(ctx, &relationships, `
		SELECT code, nombre, abreviado, promedio_cm, min_cm, max_cm, generacion
		FROM relationships
		ORDER BY position, code
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load relationships: %w", err)
	}

	var bins []*entities.HistogramBin
	err = tx.SelectContext(ctx, &bins, `
		SELECT relationship_code, bin_range, bin_count
		FROM distributions
		ORDER BY relationship_code, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load distributions: %w", err)
	}

	var points []*entities.ProbabilityPoint
	err = tx.SelectContext(ctx, &points, `
		SELECT relationship_code, cm, probability
		FROM probabilities
		ORDER BY relationship_code, cm
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load probabilities: %w", err)
	}

	var rules []*entities.XInheritance
	err = tx.SelectContext(ctx, &rules, `
		SELECT relationship_code, sex_combination, can_share
		FROM x_inheritance
		ORDER BY relationship_code, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load x-inheritance rules: %w", err)
	}

	histograms := make(map[string][]*entities.HistogramBin)
	for _, bin := range bins {
		histograms[bin.RelationshipCode] = append(histograms[bin.RelationshipCode], bin)
	}
	curves := make(map[string][]*entities.ProbabilityPoint)
	for _, p := range points {
		curves[p.RelationshipCode] = append(curves[p.RelationshipCode], p)
	}
	xRules := make(map[string][]*entities.XInheritance)
	for _, rule := range rules {
		xRules[rule.RelationshipCode] = append(xRules[rule.RelationshipCode], rule)
	}

	return entities.NewCatalog(relationships, histograms, curves, xRules), nil
}

// ReplaceCatalog swaps the reference data atomically. On PostgreSQL a
// notification is queued on repositories.CatalogChangedChannel and
// delivered when the transaction commits.
func (r *CatalogRepository) ReplaceCatalog(ctx context.Context, catalog *entities.Catalog) error {
	if err := catalog.Validate(); err != nil {
		return fmt.Errorf("invalid catalog: %w", err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Children first because of the foreign keys
	for _, table := range []string{"x_inheritance", "probabilities", "distributions", "relationships"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	insertRelationship := tx.Rebind(`
		INSERT INTO relationships (code, nombre, abreviado, promedio_cm, min_cm, max_cm, generacion, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	for i, rel := range catalog.Relationships() {
		_, err := tx.ExecContext(ctx, insertRelationship,
			rel.Code, rel.Nombre, rel.Abreviado, rel.PromedioCM, rel.MinCM, rel.MaxCM, rel.Generacion, i)
		if err != nil {
			return fmt.Errorf("failed to insert relationship %s: %w", rel.Code, err)
		}
	}

	insertBin := tx.Rebind(`INSERT INTO distributions (relationship_code, bin_range, bin_count) VALUES (?, ?, ?)`)
	for _, rel := range catalog.Relationships() {
		bins, _ := catalog.Histogram(rel.Code)
		for _, bin := range bins {
			if _, err := tx.ExecContext(ctx, insertBin, rel.Code, bin.Range, bin.Count); err != nil {
				return fmt.Errorf("failed to insert distribution %s/%s: %w", rel.Code, bin.Range, err)
			}
		}
	}

	insertPoint := tx.Rebind(`INSERT INTO probabilities (relationship_code, cm, probability) VALUES (?, ?, ?)`)
	for _, rel := range catalog.Relationships() {
		for _, p := range catalog.Curve(rel.Code) {
			if _, err := tx.ExecContext(ctx, insertPoint, rel.Code, p.CM, p.Probability); err != nil {
				return fmt.Errorf("failed to insert probability %s/%.1f: %w", rel.Code, p.CM, err)
			}
		}
	}

	insertRule := tx.Rebind(`INSERT INTO x_inheritance (relationship_code, sex_combination, can_share) VALUES (?, ?, ?)`)
	for _, rel := range catalog.Relationships() {
		for _, rule := range catalog.XRules(rel.Code) {
			if _, err := tx.ExecContext(ctx, insertRule, rel.Code, rule.SexCombination, rule.CanShare); err != nil {
				return fmt.Errorf("failed to insert x-inheritance %s/%s: %w", rel.Code, rule.SexCombination, err)
			}
		}
	}

	if r.db.DriverName() == "postgres" {
		version := time.Now().UTC().Format(time.RFC3339Nano)
		if _, err := tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, repositories.CatalogChangedChannel, version); err != nil {
			return fmt.Errorf("failed to notify catalog change: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit catalog: %w", err)
	}
	return nil
}
