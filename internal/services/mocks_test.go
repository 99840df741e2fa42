package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/asakaida/relcalc/internal/entities"
	"github.com/asakaida/relcalc/internal/repositories"
)

// Mock CatalogRepository
type mockCatalogRepository struct {
	mu       sync.Mutex
	catalog  *entities.Catalog
	loadErr  error
	loads    int32
	replaced []*entities.Catalog
}

func (m *mockCatalogRepository) LoadCatalog(ctx context.Context) (*entities.Catalog, error) {
	atomic.AddInt32(&m.loads, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.catalog, nil
}

func (m *mockCatalogRepository) ReplaceCatalog(ctx context.Context, catalog *entities.Catalog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := catalog.Validate(); err != nil {
		return err
	}
	m.catalog = catalog
	m.replaced = append(m.replaced, catalog)
	return nil
}

func (m *mockCatalogRepository) loadCount() int {
	return int(atomic.LoadInt32(&m.loads))
}

// Mock AnalysisRepository
type mockAnalysisRepository struct {
	mu        sync.Mutex
	analyses  []*entities.Analysis
	createErr error
}

func (m *mockAnalysisRepository) Create(ctx context.Context, analysis *entities.Analysis) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.analyses = append(m.analyses, analysis)
	return nil
}

func (m *mockAnalysisRepository) List(ctx context.Context, skip, limit int) ([]*entities.Analysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*entities.Analysis, 0)
	for i := len(m.analyses) - 1 - skip; i >= 0 && len(result) < limit; i-- {
		result = append(result, m.analyses[i])
	}
	return result, nil
}

func (m *mockAnalysisRepository) Get(ctx context.Context, id string) (*entities.Analysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.analyses {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, repositories.ErrNotFound
}

// Mock metrics recorder
type mockRecorder struct {
	hits, misses int32
	analyses     []string
}

func (r *mockRecorder) RecordCacheHit()  { atomic.AddInt32(&r.hits, 1) }
func (r *mockRecorder) RecordCacheMiss() { atomic.AddInt32(&r.misses, 1) }

func (r *mockRecorder) RecordAnalysis(topCode string) {
	r.analyses = append(r.analyses, topCode)
}

var errDatabaseDown = errors.New("database down")

func testCatalog() *entities.Catalog {
	return entities.NewCatalog(
		[]*entities.Relationship{
			{Code: "FS", Nombre: "Hermano completo", Abreviado: "HC", PromedioCM: 2613, MinCM: 1613, MaxCM: 3488, Generacion: 0},
			{Code: "1C", Nombre: "Primo hermano", Abreviado: "P1", PromedioCM: 866, MinCM: 396, MaxCM: 1397, Generacion: 1},
			{Code: "2C", Nombre: "Primo segundo", Abreviado: "P2", PromedioCM: 229, MinCM: 41, MaxCM: 592, Generacion: 2},
		},
		map[string][]*entities.HistogramBin{
			"FS": {{RelationshipCode: "FS", Range: "1613-2500", Count: 10}, {RelationshipCode: "FS", Range: "2500-3488", Count: 5}},
		},
		map[string][]*entities.ProbabilityPoint{
			"1C": {{RelationshipCode: "1C", CM: 396, Probability: 0.1}, {RelationshipCode: "1C", CM: 1397, Probability: 0.1}},
		},
		map[string][]*entities.XInheritance{
			"FS": {{RelationshipCode: "FS", SexCombination: "M>M", CanShare: true}},
		},
	)
}
