package server

import (
	"errors"
	"net/http"

	"github.com/jonathan/job-pricer/internal/db"
	"github.com/jonathan/job-pricer/internal/types"
	"go.uber.org/zap"
)

// Errors raised by the HTTP layer itself.
var (
	ErrRateLimited      = errors.New("rate limit exceeded")
	ErrRunsUnavailable  = errors.New("run history is not configured")
	ErrBatchTooLarge    = errors.New("batch too large")
	ErrUnknownParameter = errors.New("unknown parameters version")
)

// ErrValidation indicates request validation failure outside the job request itself
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return "validation error: " + e.Field + " - " + e.Message
}

// ErrorBody is the JSON body of every error response.
type ErrorBody struct {
	Error      string             `json:"error"`
	Fields     []types.FieldError `json:"fields,omitempty"`
	RetryAfter int                `json:"retry_after,omitempty"`
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var verr *ErrValidation
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, types.ErrInvalidJobRequest), errors.As(err, &verr),
		errors.Is(err, ErrBatchTooLarge), errors.Is(err, ErrUnknownParameter):
		return http.StatusBadRequest
	case errors.Is(err, db.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrRunsUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorBody builds the response body for err, listing field errors for invalid requests.
func errorBody(err error) ErrorBody {
	body := ErrorBody{Error: err.Error()}
	var rerr *types.RequestValidationError
	if errors.As(err, &rerr) {
		body.Error = types.ErrInvalidJobRequest.Error()
		body.Fields = rerr.Fields
	}
	return body
}

// writeError writes err with the status HTTPStatus maps it to. Internal errors are logged and
// their detail withheld.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", zap.Error(err))
		s.errorResponse(w, status, "internal error")
		return
	}
	s.jsonResponse(w, status, errorBody(err))
}
