package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/asakaida/relcalc/internal/httputil"
	"github.com/asakaida/relcalc/internal/infrastructure/config"
	"github.com/asakaida/relcalc/internal/infrastructure/metrics"
	"github.com/asakaida/relcalc/internal/infrastructure/middleware"
)

// busyWait is how long a request waits for a free handler slot
const busyWait = 5 * time.Second

// RouterOptions holds the collaborators of the HTTP router
type RouterOptions struct {
	App         config.AppConfig
	CORSOrigins []string
	MaxInFlight int
	API         *APIHandler
	Limiter     middleware.Limiter
	Verifier    middleware.TokenVerifier
	Collector   *metrics.Collector
	Exporter    *metrics.PrometheusExporter
	Logger      *zap.Logger
}

// NewRouter builds the HTTP handler with the full middleware chain
func NewRouter(opts RouterOptions) (http.Handler, error) {
	if opts.API == nil || opts.Verifier == nil {
		return nil, errors.New("router requires an API handler and a token verifier")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	recorder := metrics.NewRecorder(opts.Collector, opts.Exporter)

	gzip, err := middleware.Gzip()
	if err != nil {
		return nil, fmt.Errorf("failed to build router: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.RequestIDs)
	r.Use(middleware.RequestLog(logger))
	if opts.Collector != nil {
		r.Use(metrics.HTTPMiddleware(opts.Collector, opts.Exporter))
	}
	r.Use(middleware.SecurityHeaders(opts.App.DocsURL))
	r.Use(middleware.NewCORS(opts.CORSOrigins).Handler)
	r.Use(gzip)
	if opts.Limiter != nil {
		r.Use(middleware.RateLimit(opts.Limiter, recorder, logger))
	}
	r.Use(middleware.ConcurrencyLimit(opts.MaxInFlight, busyWait, recorder))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteError(w, http.StatusNotFound, httputil.CodeNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteError(w, http.StatusMethodNotAllowed, httputil.CodeValidation, "Method Not Allowed")
	})

	api := opts.API
	docs := NewDocsHandler(opts.App)
	v1 := opts.App.APIV1Str

	r.Get("/", api.Root)
	r.Get("/health", api.Health)

	r.Get("/api/relationships", api.RelationshipsByCM)
	r.Get("/api/relationships/", api.RelationshipsByCM)
	r.Get("/api/histogram", api.Histogram)
	r.Get("/api/histogram/", api.Histogram)
	r.Post("/api/relationships/calculate", api.Calculate)
	r.Get("/api/relationships/{code}/histogram", api.CurveHistogram)
	r.Get("/api/endogamia/ayuda", api.EndogamyHelp)

	r.Route(v1, func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuth(opts.Verifier))
			r.Post("/analyze", api.Analyze)
			r.Post("/analyze/", api.Analyze)
		})
		r.Get("/relationships", api.AllRelationships)
		r.Get("/relationships/", api.AllRelationships)
		r.Get("/dna-analysis", api.DNAAnalysis)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(opts.Verifier, logger))
			r.Get("/analyses", api.ListAnalyses)
			r.Get("/analyses/", api.ListAnalyses)
			r.Get("/analyses/{id}", api.GetAnalysis)
		})
	})

	if opts.App.DocsURL != "" {
		r.Get(opts.App.DocsURL, docs.SwaggerUI)
	}
	if opts.App.OpenAPIURL != "" {
		r.Get(opts.App.OpenAPIURL, docs.OpenAPI)
	}

	return r, nil
}
