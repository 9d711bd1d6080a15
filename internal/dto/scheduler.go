// Package dto holds the request/response shapes for the scheduler HTTP
// API. They wrap internal/domain types rather than duplicate their
// fields, since the domain types already carry the wire-format json
// tags (see internal/domain/types.go's UUIDSet).
package dto

import (
	"github.com/google/uuid"

	"github.com/sis-scheduler/scheduler-core/internal/domain"
)

// SolveRequest is the body of POST /solve. Input is validated by the
// solver itself (spec.md §4.1's edge cases); this layer only enforces
// the async/callback contract.
type SolveRequest struct {
	Input       domain.SolverInput `json:"input" validate:"required"`
	AsyncMode   bool               `json:"async_mode"`
	CallbackURL string             `json:"callback_url,omitempty" validate:"omitempty,url"`
}

// SolveResponse is the body returned by a synchronous POST /solve.
type SolveResponse struct {
	SolverRunID uuid.UUID          `json:"solver_run_id"`
	Status      string             `json:"status"`
	Output      domain.SolverOutput `json:"output"`
}

// ValidationIssue describes one problem found while validating a
// SolverInput, mirroring the original service's issue shape.
type ValidationIssue struct {
	Type      string     `json:"type"`
	SectionID *uuid.UUID `json:"section_id,omitempty"`
	Message   string     `json:"message"`
}

// ValidateRequest is the body of POST /validate.
type ValidateRequest struct {
	Input domain.SolverInput `json:"input" validate:"required"`
}

// ValidateResponse is the body returned by POST /validate.
type ValidateResponse struct {
	Valid        bool              `json:"valid"`
	Issues       []ValidationIssue `json:"issues"`
	SectionCount int               `json:"section_count"`
	RoomCount    int               `json:"room_count"`
	PatternCount int               `json:"pattern_count"`
}

// SolveFromDBRequest identifies the database-hydrated problem instance
// to solve, plus optional overrides for the solver's own defaults.
type SolveFromDBRequest struct {
	ScheduleVersionID uuid.UUID `json:"schedule_version_id" validate:"required"`
	TermID            uuid.UUID `json:"term_id" validate:"required"`
	InstitutionID     uuid.UUID `json:"institution_id" validate:"required"`
	TimeLimitSeconds  *int      `json:"time_limit_seconds,omitempty" validate:"omitempty,gte=1,lte=3600"`
	NumWorkers        *int      `json:"num_workers,omitempty" validate:"omitempty,gte=1,lte=16"`
}

// SolveFromDBResponse summarizes a database-hydrated solve. The full
// assignment list is available via the committed schedule version, not
// repeated here, matching the original service's lightweight response.
type SolveFromDBResponse struct {
	SolverRunID    uuid.UUID `json:"solver_run_id"`
	Status         string    `json:"status"`
	SolveTimeMs    int64     `json:"solve_time_ms"`
	Assigned       int       `json:"assigned"`
	Unassigned     int       `json:"unassigned"`
	ObjectiveValue float64   `json:"objective_value"`
}

// CommitResponse is the body of POST /solve-from-db/{schedule_version_id}/commit.
type CommitResponse struct {
	AssignmentsCommitted int  `json:"assignments_committed"`
	Success              bool `json:"success"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}
