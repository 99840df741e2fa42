package middleware

import (
	"net/http"
	"time"

	"github.com/asakaida/relcalc/internal/httputil"
)

// InFlightRecorder tracks requests being handled
type InFlightRecorder interface {
	IncInFlight()
	DecInFlight()
}

// ConcurrencyLimit bounds the number of requests handled at once. A request
// that cannot get a slot within wait is rejected with 503.
func ConcurrencyLimit(slots int, wait time.Duration, recorder InFlightRecorder) func(http.Handler) http.Handler {
	if slots < 1 {
		slots = 1
	}
	sem := make(chan struct{}, slots)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case sem <- struct{}{}:
			default:
				timer := time.NewTimer(wait)
				select {
				case sem <- struct{}{}:
					timer.Stop()
				case <-timer.C:
					w.Header().Set("Retry-After", "1")
					httputil.WriteError(w, http.StatusServiceUnavailable, httputil.CodeServiceUnavailable, "Server is busy, try again later")
					return
				case <-r.Context().Done():
					timer.Stop()
					return
				}
			}
			defer func() { <-sem }()

			if recorder != nil {
				recorder.IncInFlight()
				defer recorder.DecInFlight()
			}
			next.ServeHTTP(w, r)
		})
	}
}
