package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/asakaida/relcalc/internal/entities"
	"github.com/asakaida/relcalc/internal/httputil"
	"github.com/asakaida/relcalc/internal/infrastructure/middleware"
	"github.com/asakaida/relcalc/internal/repositories"
)

// maxBodyBytes bounds JSON request bodies
const maxBodyBytes = 1 << 20

// === Shared Helper Functions for all handlers ===

// writeServiceError maps a service error to the error envelope.
// Unexpected errors are logged and hidden from the client.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error, notFoundDetail string) {
	var verr *entities.ValidationError
	switch {
	case errors.As(err, &verr):
		httputil.WriteError(w, http.StatusUnprocessableEntity, httputil.CodeValidation, verr.Error())
	case errors.Is(err, repositories.ErrNotFound):
		httputil.WriteError(w, http.StatusNotFound, httputil.CodeNotFound, notFoundDetail)
	default:
		logger.Error("request failed",
			zap.String("request_id", middleware.RequestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		httputil.WriteError(w, http.StatusInternalServerError, httputil.CodeInternal, "Internal server error")
	}
}

func writeValidationError(w http.ResponseWriter, detail string) {
	httputil.WriteError(w, http.StatusUnprocessableEntity, httputil.CodeValidation, detail)
}

// decodeJSON reads a JSON body into v. The error is suitable for the client.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		var verr *entities.ValidationError
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &verr):
			return verr
		case errors.As(err, &maxErr):
			return fmt.Errorf("request body too large")
		case errors.Is(err, io.EOF):
			return fmt.Errorf("request body is required")
		default:
			return fmt.Errorf("invalid JSON body: %v", err)
		}
	}
	return nil
}

// queryFloat parses a required float query parameter
func queryFloat(r *http.Request, name string) (float64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, &entities.ValidationError{Field: name, Message: "query parameter required"}
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &entities.ValidationError{Field: name, Message: fmt.Sprintf("must be a number, got %q", raw)}
	}
	return v, nil
}

// queryInt parses an optional integer query parameter
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &entities.ValidationError{Field: name, Message: fmt.Sprintf("must be an integer, got %q", raw)}
	}
	return v, nil
}
