// Package types provides type definitions for structured data used throughout the job pricer.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidJobRequest is returned when a JobRequest is missing required fields or carries
// out-of-range values. It is the only error that is fatal to a pricing call.
var ErrInvalidJobRequest = errors.New("invalid job request")

// requestValidator caches struct metadata across calls and is safe for concurrent use.
var requestValidator = validator.New()

// JobRequest is a free-text job description submitted for matching and pricing.
// It is immutable once submitted.
type JobRequest struct {
	Title           string        `json:"title" validate:"required,min=2"`
	Description     string        `json:"description" validate:"required,min=10"`
	JobFamily       string        `json:"job_family" validate:"required"`
	InternalGrade   string        `json:"internal_grade,omitempty" validate:"omitempty,oneof=G1 G2 G3 G4 G5 G6 G7 G8 G9 G10"`
	Skills          []string      `json:"skills,omitempty" validate:"dive,required"`
	Country         string        `json:"country" validate:"required,iso3166_1_alpha2"`
	Location        string        `json:"location,omitempty"`
	ExperienceYears *float64      `json:"experience_years" validate:"required,gte=0,lte=60"`
	Industry        string        `json:"industry,omitempty"`
	CompanySize     string        `json:"company_size,omitempty"`
	Evaluation      *FactorPoints `json:"evaluation,omitempty"`
	Organization    *Organization `json:"organization,omitempty"`
}

// FactorPoints holds job-evaluation points per factor. Risk defaults to 0 when not assessed.
type FactorPoints struct {
	Impact        int `json:"impact" validate:"gte=0"`
	Communication int `json:"communication" validate:"gte=0"`
	Innovation    int `json:"innovation" validate:"gte=0"`
	Knowledge     int `json:"knowledge" validate:"gte=0"`
	Risk          int `json:"risk,omitempty" validate:"gte=0"`
}

// Organization describes the employing organization for size computation.
type Organization struct {
	NetRevenue float64 `json:"net_revenue" validate:"gte=0"`
	Type       string  `json:"type" validate:"required,oneof=products services"`
	Stage      string  `json:"stage" validate:"required"`
}

// Experience returns the declared years of experience, or 0 when unset.
func (r *JobRequest) Experience() float64 {
	if r.ExperienceYears == nil {
		return 0
	}
	return *r.ExperienceYears
}

// FieldError is a single failed validation rule.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// RequestValidationError lists every field that failed validation.
type RequestValidationError struct {
	Fields []FieldError
}

func (e *RequestValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return fmt.Sprintf("%s: %s", ErrInvalidJobRequest.Error(), strings.Join(parts, "; "))
}

func (e *RequestValidationError) Unwrap() error {
	return ErrInvalidJobRequest
}

// Validate validates the JobRequest using the validator.
func (r *JobRequest) Validate() error {
	err := requestValidator.Struct(r)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidJobRequest, err)
	}

	out := &RequestValidationError{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{
			Field:   fe.Namespace(),
			Message: describeTag(fe),
		})
	}
	return out
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must have at least %s characters", fe.Param())
	case "gte":
		return fmt.Sprintf("must be >= %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be <= %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "iso3166_1_alpha2":
		return "must be an ISO 3166-1 alpha-2 country code"
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}
