package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/asakaida/relcalc/internal/entities"
	"github.com/asakaida/relcalc/internal/repositories"
	"github.com/asakaida/relcalc/pkg/cache"
)

const catalogCacheKey = "catalog"

// CacheRecorder receives cache hit and miss events
type CacheRecorder interface {
	RecordCacheHit()
	RecordCacheMiss()
}

// CatalogServiceInterface defines the interface for reference data lookups
type CatalogServiceInterface interface {
	Catalog(ctx context.Context) (*entities.Catalog, error)
	ListCovering(ctx context.Context, cm float64) ([]*entities.Relationship, error)
	All(ctx context.Context) ([]*entities.Relationship, error)
	Get(ctx context.Context, code string) (*entities.Relationship, error)
	Histogram(ctx context.Context, code string) ([]*entities.HistogramBin, error)
	Curve(ctx context.Context, code string) ([]*entities.ProbabilityPoint, error)
	XRules(ctx context.Context, code string) ([]*entities.XInheritance, error)
	Invalidate(ctx context.Context) error
}

// CatalogService serves reference data from the repository through a cache.
// Concurrent misses share a single repository load.
type CatalogService struct {
	repo     repositories.CatalogRepository
	cache    cache.Cache // nil disables caching
	ttl      time.Duration
	recorder CacheRecorder
	group    singleflight.Group

	// generation counts invalidations. A load that overlaps one must not
	// cache what it read. mu orders that check against Invalidate.
	mu         sync.Mutex
	generation atomic.Uint64
}

// NewCatalogService creates a new CatalogService. cache and recorder may be nil.
func NewCatalogService(repo repositories.CatalogRepository, c cache.Cache, ttl time.Duration, recorder CacheRecorder) *CatalogService {
	return &CatalogService{
		repo:     repo,
		cache:    c,
		ttl:      ttl,
		recorder: recorder,
	}
}

// Catalog returns the current catalog
func (s *CatalogService) Catalog(ctx context.Context) (*entities.Catalog, error) {
	if s.cache != nil {
		if v, ok := s.cache.Get(ctx, catalogCacheKey); ok {
			if catalog, ok := v.(*entities.Catalog); ok {
				s.recordHit()
				return catalog, nil
			}
		}
		s.recordMiss()
	}

	v, err, _ := s.group.Do(catalogCacheKey, func() (interface{}, error) {
		generation := s.generation.Load()
		catalog, err := s.repo.LoadCatalog(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load catalog: %w", err)
		}
		if s.cache != nil {
			if err := s.store(ctx, catalog, generation); err != nil {
				return nil, fmt.Errorf("failed to cache catalog: %w", err)
			}
		}
		return catalog, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*entities.Catalog), nil
}

// ListCovering returns the relationships whose range covers cm
func (s *CatalogService) ListCovering(ctx context.Context, cm float64) ([]*entities.Relationship, error) {
	catalog, err := s.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.Covering(cm), nil
}

// All returns every relationship in catalog order
func (s *CatalogService) All(ctx context.Context) ([]*entities.Relationship, error) {
	catalog, err := s.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.Relationships(), nil
}

// Get returns one relationship by code
func (s *CatalogService) Get(ctx context.Context, code string) (*entities.Relationship, error) {
	catalog, err := s.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	rel, ok := catalog.Relationship(code)
	if !ok {
		return nil, fmt.Errorf("relationship %s: %w", code, repositories.ErrNotFound)
	}
	return rel, nil
}

// Histogram returns the observed distribution of a relationship
func (s *CatalogService) Histogram(ctx context.Context, code string) ([]*entities.HistogramBin, error) {
	catalog, err := s.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	bins, ok := catalog.Histogram(code)
	if !ok {
		return nil, fmt.Errorf("histogram %s: %w", code, repositories.ErrNotFound)
	}
	return bins, nil
}

// Curve returns the probability curve of a relationship
func (s *CatalogService) Curve(ctx context.Context, code string) ([]*entities.ProbabilityPoint, error) {
	catalog, err := s.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := catalog.Relationship(code); !ok {
		return nil, fmt.Errorf("relationship %s: %w", code, repositories.ErrNotFound)
	}
	return catalog.Curve(code), nil
}

// XRules returns the X-inheritance rules of a relationship
func (s *CatalogService) XRules(ctx context.Context, code string) ([]*entities.XInheritance, error) {
	catalog, err := s.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := catalog.Relationship(code); !ok {
		return nil, fmt.Errorf("relationship %s: %w", code, repositories.ErrNotFound)
	}
	return catalog.XRules(code), nil
}

// store caches catalog unless the cache was invalidated since generation
func (s *CatalogService) store(ctx context.Context, catalog *entities.Catalog, generation uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation.Load() != generation {
		return nil
	}
	return s.cache.Set(ctx, catalogCacheKey, catalog, s.ttl)
}

// Invalidate drops the cached catalog so the next read reloads it. A load
// already in flight still answers its callers but is not cached.
func (s *CatalogService) Invalidate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation.Add(1)
	s.group.Forget(catalogCacheKey)
	if s.cache == nil {
		return nil
	}
	return s.cache.Delete(ctx, catalogCacheKey)
}

func (s *CatalogService) recordHit() {
	if s.recorder != nil {
		s.recorder.RecordCacheHit()
	}
}

func (s *CatalogService) recordMiss() {
	if s.recorder != nil {
		s.recorder.RecordCacheMiss()
	}
}
