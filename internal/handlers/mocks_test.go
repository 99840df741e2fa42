package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/asakaida/relcalc/internal/entities"
	"github.com/asakaida/relcalc/internal/infrastructure/auth"
	"github.com/asakaida/relcalc/internal/infrastructure/config"
	"github.com/asakaida/relcalc/internal/infrastructure/metrics"
	"github.com/asakaida/relcalc/internal/infrastructure/middleware"
	"github.com/asakaida/relcalc/internal/repositories"
	"github.com/asakaida/relcalc/internal/services"
)

var errDatabaseDown = errors.New("database down")

// Mock CatalogRepository
type mockCatalogRepository struct {
	catalog *entities.Catalog
}

func (m *mockCatalogRepository) LoadCatalog(ctx context.Context) (*entities.Catalog, error) {
	return m.catalog, nil
}

func (m *mockCatalogRepository) ReplaceCatalog(ctx context.Context, catalog *entities.Catalog) error {
	m.catalog = catalog
	return nil
}

// Mock AnalysisRepository
type mockAnalysisRepository struct {
	mu       sync.Mutex
	analyses []*entities.Analysis
}

func (m *mockAnalysisRepository) Create(ctx context.Context, analysis *entities.Analysis) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.analyses = append(m.analyses, analysis)
	return nil
}

func (m *mockAnalysisRepository) List(ctx context.Context, skip, limit int) ([]*entities.Analysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sorted := append([]*entities.Analysis(nil), m.analyses...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CreatedAt.After(sorted[j].CreatedAt) })
	if skip >= len(sorted) {
		return []*entities.Analysis{}, nil
	}
	sorted = sorted[skip:]
	if limit < len(sorted) {
		sorted = sorted[:limit]
	}
	return sorted, nil
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

func (m *mockAnalysisRepository) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.analyses)
}

// Mock HealthChecker
type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) HealthCheck(ctx context.Context) error {
	return m.err
}

type testServer struct {
	handler http.Handler
	history *mockAnalysisRepository
	health  *mockHealthChecker
	tokens  *auth.TokenManager
}

func loadCatalog(t *testing.T) *entities.Catalog {
	t.Helper()
	root, err := config.FindProjectRoot()
	require.NoError(t, err)

	files := services.DataFiles{
		Relationships: "data/relationships.json",
		Distributions: "data/distribuciones.json",
		Probabilities: "data/probabilidades.json",
		XInheritance:  "data/xInheritance.json",
	}.Resolve(root)

	catalog, err := services.LoadCatalogFiles(files)
	require.NoError(t, err)
	return catalog
}

func testApp() config.AppConfig {
	return config.AppConfig{
		ProjectName: "Relationship Calculator API",
		Version:     "0.1.0",
		APIV1Str:    "/api/v1",
		DocsURL:     "/docs",
		OpenAPIURL:  "/openapi.json",
		BaseURL:     "http://localhost:8000",
		Environment: config.EnvDevelopment,
	}
}

func newTestServer(t *testing.T, perMinute int) *testServer {
	t.Helper()

	collector := metrics.NewCollector()
	recorder := metrics.NewRecorder(collector, nil)
	catalogService := services.NewCatalogService(&mockCatalogRepository{catalog: loadCatalog(t)}, nil, time.Minute, recorder)
	history := &mockAnalysisRepository{}
	analysisService := services.NewAnalysisService(catalogService, history, recorder, zap.NewNop())
	health := &mockHealthChecker{}

	tokens, err := auth.NewTokenManager("test-secret", "HS256", 30*time.Minute)
	require.NoError(t, err)

	handler, err := NewRouter(RouterOptions{
		App:         testApp(),
		CORSOrigins: []string{"http://localhost:3000"},
		MaxInFlight: 64,
		API:         NewAPIHandler(catalogService, analysisService, health, zap.NewNop()),
		Limiter:     middleware.NewMemoryLimiter(perMinute),
		Verifier:    tokens,
		Collector:   collector,
		Logger:      zap.NewNop(),
	})
	require.NoError(t, err)

	return &testServer{handler: handler, history: history, health: health, tokens: tokens}
}

func (s *testServer) do(method, target, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) bearer(t *testing.T) string {
	t.Helper()
	token, _, err := s.tokens.Issue("operator", "", 0)
	require.NoError(t, err)
	return "Bearer " + token
}
