package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jonathan/job-pricer/internal/db"
	"github.com/jonathan/job-pricer/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestErrValidation(t *testing.T) {
	err := &ErrValidation{Field: "limit", Message: "must be positive"}
	assert.Equal(t, "validation error: limit - must be positive", err.Error())
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(err))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: http.StatusOK},
		{name: "invalid request", err: &types.RequestValidationError{}, want: http.StatusBadRequest},
		{name: "wrapped invalid request", err: fmt.Errorf("%w: nil request", types.ErrInvalidJobRequest), want: http.StatusBadRequest},
		{name: "batch too large", err: fmt.Errorf("%w: 200", ErrBatchTooLarge), want: http.StatusBadRequest},
		{name: "unknown parameters", err: ErrUnknownParameter, want: http.StatusBadRequest},
		{name: "run not found", err: fmt.Errorf("%w: abc", db.ErrRunNotFound), want: http.StatusNotFound},
		{name: "rate limited", err: ErrRateLimited, want: http.StatusTooManyRequests},
		{name: "runs unavailable", err: ErrRunsUnavailable, want: http.StatusServiceUnavailable},
		{name: "canceled", err: context.Canceled, want: http.StatusInternalServerError},
		{name: "unknown", err: errors.New("boom"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestErrorBody(t *testing.T) {
	t.Run("field errors", func(t *testing.T) {
		err := &types.RequestValidationError{Fields: []types.FieldError{
			{Field: "JobRequest.Country", Message: "is required"},
		}}
		body := errorBody(err)
		assert.Equal(t, "invalid job request", body.Error)
		assert.Equal(t, err.Fields, body.Fields)
	})

	t.Run("plain error", func(t *testing.T) {
		body := errorBody(ErrRunsUnavailable)
		assert.Equal(t, "run history is not configured", body.Error)
		assert.Empty(t, body.Fields)
	})
}
