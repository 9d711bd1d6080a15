package handler

import (
	appErrors "github.com/sis-scheduler/scheduler-core/pkg/errors"
	"github.com/sis-scheduler/scheduler-core/pkg/response"

	"github.com/gin-gonic/gin"
)

// RunsHandler exposes the solver-run lookup/cancel surface. Both
// operations are reserved: the service keeps no async run registry yet,
// matching the replaced CP-SAT service's own TODO-stubbed behavior.
type RunsHandler struct{}

// NewRunsHandler constructs a RunsHandler.
func NewRunsHandler() *RunsHandler {
	return &RunsHandler{}
}

// Get godoc
// @Summary Get a solver run
// @Description Look up the status/results of a solver run. Reserved for the async solve path; not yet implemented.
// @Tags Solver
// @Produce json
// @Param id path string true "Solver run id"
// @Failure 501 {object} response.Envelope
// @Router /runs/{id} [get]
func (h *RunsHandler) Get(c *gin.Context) {
	response.Error(c, appErrors.Clone(appErrors.ErrNotImplemented, "solver run lookup not yet implemented"))
}

// Cancel godoc
// @Summary Cancel a solver run
// @Description Cancel a running solver job. Reserved for the async solve path; not yet implemented.
// @Tags Solver
// @Produce json
// @Param id path string true "Solver run id"
// @Failure 501 {object} response.Envelope
// @Router /runs/{id}/cancel [post]
func (h *RunsHandler) Cancel(c *gin.Context) {
	response.Error(c, appErrors.Clone(appErrors.ErrNotImplemented, "solver cancellation not yet implemented"))
}
