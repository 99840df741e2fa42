package repositories

import (
	"context"
	"errors"

	"github.com/asakaida/relcalc/internal/entities"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("not found")

// CatalogChangedChannel is the notification channel raised after the
// catalog tables are replaced
const CatalogChangedChannel = "catalog_changed"

// CatalogRepository defines the interface for reference data access
type CatalogRepository interface {
	// LoadCatalog reads relationships, histograms, probability curves and
	// X-inheritance rules in one consistent snapshot
	LoadCatalog(ctx context.Context) (*entities.Catalog, error)

	// ReplaceCatalog deletes all reference data and inserts the given catalog
	// in a single transaction
	ReplaceCatalog(ctx context.Context, catalog *entities.Catalog) error
}
