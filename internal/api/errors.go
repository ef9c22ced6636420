package api

import (
	"errors"
	"net/http"

	"github.com/osinto/casefile/internal/agent"
	"github.com/osinto/casefile/internal/enrich"
	"github.com/osinto/casefile/internal/extract"
	"github.com/osinto/casefile/internal/ftm"
	"github.com/osinto/casefile/internal/graph"
	"github.com/osinto/casefile/internal/models"
	"github.com/osinto/casefile/internal/notebook"
)

// ErrorResponse is the JSON shape of every error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Error codes used in API responses.
const (
	ErrorCodeValidation  = "VALIDATION_ERROR"
	ErrorCodeNotFound    = "NOT_FOUND"
	ErrorCodeConflict    = "CONFLICT"
	ErrorCodeUnavailable = "SERVICE_UNAVAILABLE"
	ErrorCodeInternal    = "INTERNAL_ERROR"
)

// unavailableError marks failures of backing services that have no typed
// error of their own, such as the object store or the workflow database.
type unavailableError struct {
	err error
}

func (e *unavailableError) Error() string { return e.err.Error() }

func (e *unavailableError) Unwrap() error { return e.err }

func markUnavailable(err error) error {
	if err == nil {
		return nil
	}
	return &unavailableError{err: err}
}

// writeServiceError maps service errors onto HTTP status codes: rejected
// payloads 400, missing resources 404, lost optimistic races 409 and
// unreachable backing services 503. Everything else is a 500 whose details
// are logged but never leaked to the client.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var schemaErr *ftm.SchemaError
	var unavailable *unavailableError

	switch {
	case models.IsValidationError(err) || errors.As(err, &schemaErr):
		WriteError(w, http.StatusBadRequest, ErrorCodeValidation, err.Error())
	case models.IsNotFoundError(err):
		WriteError(w, http.StatusNotFound, ErrorCodeNotFound, err.Error())
	case models.IsConflictError(err), errors.Is(err, notebook.ErrVersionConflict):
		WriteError(w, http.StatusConflict, ErrorCodeConflict, err.Error())
	case graph.IsGraphError(err),
		errors.Is(err, enrich.ErrEnrichmentUnavailable),
		errors.Is(err, extract.ErrLLMUnavailable),
		errors.Is(err, agent.ErrLLMUnavailable),
		errors.As(err, &unavailable):
		WriteError(w, http.StatusServiceUnavailable, ErrorCodeUnavailable, err.Error())
	default:
		s.logger.Error("%s %s failed: %v", r.Method, r.URL.Path, err)
		WriteError(w, http.StatusInternalServerError, ErrorCodeInternal, "Internal server error")
	}
}
