package db

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrRunNotFound is returned when a run ID matches no recorded run.
var ErrRunNotFound = errors.New("run not found")

// Run is a recorded pricing call.
type Run struct {
	ID                uuid.UUID  `json:"id"`
	JobTitle          string     `json:"job_title"`
	Country           string     `json:"country"`
	JobCode           string     `json:"job_code,omitempty"`
	MatchingMethod    string     `json:"matching_method,omitempty"`
	Confidence        float64    `json:"confidence"`
	ConfidenceTier    string     `json:"confidence_tier,omitempty"`
	ParametersVersion string     `json:"parameters_version,omitempty"`
	Degraded          bool       `json:"degraded"`
	Status            string     `json:"status"`
	CreatedAt         time.Time  `json:"created_at"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
}

// Run statuses
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusDegraded  = "degraded"
)

// Artifact steps stored per run
const (
	StepJobRequest    = "job_request"
	StepPricingResult = "pricing_result"
)

// RunFilters holds optional filters for listing runs
type RunFilters struct {
	JobCode  string
	Status   string
	Degraded *bool
	Limit    int
}
