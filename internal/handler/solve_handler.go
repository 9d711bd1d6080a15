package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sis-scheduler/scheduler-core/internal/dto"
	"github.com/sis-scheduler/scheduler-core/internal/service"
	"github.com/sis-scheduler/scheduler-core/internal/solver"
	appErrors "github.com/sis-scheduler/scheduler-core/pkg/errors"
	"github.com/sis-scheduler/scheduler-core/pkg/response"
)

// SolveHandler runs a solver request supplied directly in the request body.
type SolveHandler struct {
	metrics  *service.MetricsService
	logger   *zap.Logger
	validate *validator.Validate
}

// NewSolveHandler constructs a SolveHandler.
func NewSolveHandler(metrics *service.MetricsService, logger *zap.Logger) *SolveHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SolveHandler{metrics: metrics, logger: logger, validate: validator.New()}
}

// Solve godoc
// @Summary Solve a scheduling problem instance
// @Description Run the course scheduler against an inline problem instance. async_mode is reserved: it always reports 501 once the callback contract is validated, matching the replaced CP-SAT service's current behavior.
// @Tags Solver
// @Accept json
// @Produce json
// @Param payload body dto.SolveRequest true "Solve payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 501 {object} response.Envelope
// @Router /solve [post]
func (h *SolveHandler) Solve(c *gin.Context) {
	var req dto.SolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid solve payload"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "solve payload failed validation"))
		return
	}

	h.logger.Info("received solve request",
		zap.String("schedule_version_id", req.Input.ScheduleVersionID.String()),
		zap.String("term_id", req.Input.TermID.String()),
		zap.Int("num_sections", len(req.Input.Sections)),
		zap.Bool("async_mode", req.AsyncMode),
	)

	if req.AsyncMode {
		if req.CallbackURL == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrInvalidInput, "callback_url required for async_mode"))
			return
		}
		response.Error(c, appErrors.Clone(appErrors.ErrNotImplemented, "async mode not yet implemented"))
		return
	}

	runID := uuid.New()
	start := time.Now()
	out := solver.Solve(c.Request.Context(), runID, &req.Input)
	if h.metrics != nil {
		h.metrics.ObserveSolve(out.Result.Status, time.Since(start), out.Result.ObjectiveValue)
	}

	response.JSON(c, http.StatusOK, dto.SolveResponse{
		SolverRunID: out.SolverRunID,
		Status:      out.Result.Status,
		Output:      out,
	}, nil)
}
