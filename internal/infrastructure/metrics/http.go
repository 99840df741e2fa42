package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// HTTPMiddleware records metrics for each HTTP request.
// Requests are labelled with the chi route pattern to keep cardinality bounded.
// In-flight counts are tracked by the concurrency limiter.
func HTTPMiddleware(collector *Collector, exporter *PrometheusExporter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := routePattern(r)
			key := r.Method + " " + route
			duration := time.Since(start).Seconds()

			collector.RecordCall(key, duration, status >= http.StatusInternalServerError)
			if exporter != nil {
				exporter.RecordHTTPRequest(r.Method, route, strconv.Itoa(status), duration)
			}
		})
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
