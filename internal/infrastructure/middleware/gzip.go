package middleware

import (
	"fmt"
	"net/http"

	"github.com/klauspost/compress/gzhttp"
)

// GzipMinSize is the smallest response body that gets compressed
const GzipMinSize = 1000

// Gzip compresses responses of at least GzipMinSize bytes for clients that
// accept gzip
func Gzip() (func(http.Handler) http.Handler, error) {
	wrapper, err := gzhttp.NewWrapper(gzhttp.MinSize(GzipMinSize))
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip wrapper: %w", err)
	}
	return func(next http.Handler) http.Handler {
		return wrapper(next)
	}, nil
}
