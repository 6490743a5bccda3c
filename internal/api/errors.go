package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"cv-match/internal/cv"
	"cv-match/internal/ingest"
	"cv-match/internal/llm"
	"cv-match/internal/matching"
	"cv-match/internal/profile"
	"cv-match/internal/storage"

	"github.com/go-playground/validator/v10"
)

// ValidationError indicates request validation failure
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// StateConflictError is a request the resource's current status does not
// allow, e.g. matching against a job that is still processing.
type StateConflictError struct {
	Resource string
	ID       string
	Status   storage.Status
	Want     storage.Status
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("%s %s is %s, must be %s", e.Resource, e.ID, e.Status, e.Want)
}

// HTTPStatus returns the appropriate HTTP status code for an error.
// Wrapped errors are matched too.
func HTTPStatus(err error) int {
	var (
		validation   *ValidationError
		invalidInput *ingest.InvalidInputError
		notFound     *storage.NotFoundError
		noEmbeddings *matching.NoEmbeddingsError
		conflict     *StateConflictError
		timeout      *llm.TimeoutError
		upstream     *llm.UpstreamError
		parse        *profile.ParseError
		extraction   *cv.ExtractionError
	)

	switch {
	case errors.As(err, &validation), errors.As(err, &invalidInput):
		return http.StatusBadRequest
	case errors.As(err, &notFound), errors.As(err, &noEmbeddings):
		return http.StatusNotFound
	case errors.As(err, &conflict), errors.Is(err, ingest.ErrAlreadyProcessed):
		return http.StatusConflict
	case errors.As(err, &timeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &upstream):
		return http.StatusBadGateway
	case errors.As(err, &parse), errors.As(err, &extraction):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// validationError converts validator output into a *ValidationError for the
// first failing field.
func validationError(err error) error {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		return &ValidationError{Field: ve[0].Field(), Message: ve[0].Tag()}
	}
	return &ValidationError{Field: "request", Message: err.Error()}
}
