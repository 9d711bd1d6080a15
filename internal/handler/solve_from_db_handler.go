package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	internalmiddleware "github.com/sis-scheduler/scheduler-core/internal/middleware"

	"github.com/sis-scheduler/scheduler-core/internal/domain"
	"github.com/sis-scheduler/scheduler-core/internal/dto"
	"github.com/sis-scheduler/scheduler-core/internal/persistence"
	"github.com/sis-scheduler/scheduler-core/internal/repository"
	"github.com/sis-scheduler/scheduler-core/internal/service"
	"github.com/sis-scheduler/scheduler-core/internal/solver"
	appErrors "github.com/sis-scheduler/scheduler-core/pkg/errors"
	"github.com/sis-scheduler/scheduler-core/pkg/response"
)

// SolveFromDBHandler hydrates a problem instance from the scheduling
// schema, solves it, and persists the result as a draft schedule version.
// Results are cached by (schedule_version_id, term_id, institution_id)
// for solveFromDBCacheTTL so repeated solve-from-db calls against an unchanged
// schedule version don't re-run the search.
type SolveFromDBHandler struct {
	repo      *repository.SolverInputRepository
	persister *persistence.Persister
	cache     *service.CacheService
	metrics   *service.MetricsService
	logger    *zap.Logger
	validate  *validator.Validate
}

const solveFromDBCacheTTL = 2 * time.Minute

// NewSolveFromDBHandler constructs a SolveFromDBHandler.
func NewSolveFromDBHandler(repo *repository.SolverInputRepository, persister *persistence.Persister, cache *service.CacheService, metrics *service.MetricsService, logger *zap.Logger) *SolveFromDBHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SolveFromDBHandler{repo: repo, persister: persister, cache: cache, metrics: metrics, logger: logger, validate: validator.New()}
}

// SolveFromDB godoc
// @Summary Solve using a database-hydrated problem instance
// @Description Hydrate a SolverInput from the scheduling schema, run the solver, and persist the resulting draft schedule version
// @Tags Solver
// @Accept json
// @Produce json
// @Param payload body dto.SolveFromDBRequest true "Solve-from-DB payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 500 {object} response.Envelope
// @Router /solve-from-db [post]
func (h *SolveFromDBHandler) SolveFromDB(c *gin.Context) {
	var req dto.SolveFromDBRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid solve-from-db payload"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "solve-from-db payload failed validation"))
		return
	}

	ctx := c.Request.Context()
	cacheKey := fmt.Sprintf("solve-from-db:%s:%s:%s", req.ScheduleVersionID, req.TermID, req.InstitutionID)

	var cached dto.SolveFromDBResponse
	if h.cache != nil {
		hit, err := h.cache.Get(ctx, cacheKey, &cached)
		if err != nil {
			h.logger.Warn("solve-from-db cache lookup failed", zap.Error(err))
		}
		internalmiddleware.SetCacheHit(c, hit)
		if hit {
			response.JSON(c, http.StatusOK, cached, nil, internalmiddleware.ExtractMeta(c))
			return
		}
	}

	in, err := h.hydrate(ctx, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	runID := uuid.New()
	start := time.Now()
	out := solver.Solve(ctx, runID, in)
	if h.metrics != nil {
		h.metrics.ObserveSolve(out.Result.Status, time.Since(start), out.Result.ObjectiveValue)
	}

	if err := h.persister.Persist(ctx, req.ScheduleVersionID, out); err != nil {
		response.Error(c, err)
		return
	}

	assigned, unassigned := 0, 0
	for _, a := range out.Assignments {
		if a.IsAssigned {
			assigned++
		} else {
			unassigned++
		}
	}

	res := dto.SolveFromDBResponse{
		SolverRunID:    out.SolverRunID,
		Status:         out.Result.Status,
		SolveTimeMs:    out.Result.SolveTimeMs,
		Assigned:       assigned,
		Unassigned:     unassigned,
		ObjectiveValue: out.Result.ObjectiveValue,
	}

	if h.cache != nil {
		if err := h.cache.Set(ctx, cacheKey, res, solveFromDBCacheTTL); err != nil {
			h.logger.Warn("solve-from-db cache write failed", zap.Error(err))
		}
	}

	response.JSON(c, http.StatusOK, res, nil, internalmiddleware.ExtractMeta(c))
}

// Commit godoc
// @Summary Publish a draft schedule version
// @Description Transition a draft schedule version produced by solve-from-db to published
// @Tags Solver
// @Produce json
// @Param id path string true "Schedule version id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /solve-from-db/{id}/commit [post]
func (h *SolveFromDBHandler) Commit(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid schedule version id"))
		return
	}

	assignmentsCommitted, success, err := h.persister.Commit(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, dto.CommitResponse{AssignmentsCommitted: assignmentsCommitted, Success: success}, nil)
}

// hydrate assembles a SolverInput from the scheduling schema the way
// scheduler.db.load_solver_input does in the service this replaces: one
// list per table, joined in memory by the caller rather than the
// database.
func (h *SolveFromDBHandler) hydrate(ctx context.Context, req dto.SolveFromDBRequest) (*domain.SolverInput, error) {
	patterns, err := h.repo.ListMeetingPatterns(ctx)
	if err != nil {
		return nil, err
	}
	datePatterns, err := h.repo.ListDatePatterns(ctx)
	if err != nil {
		return nil, err
	}
	rooms, err := h.repo.ListRooms(ctx)
	if err != nil {
		return nil, err
	}
	instructors, err := h.repo.ListInstructors(ctx)
	if err != nil {
		return nil, err
	}
	courses, err := h.repo.ListCourses(ctx)
	if err != nil {
		return nil, err
	}
	sections, err := h.repo.ListSections(ctx, req.ScheduleVersionID, req.TermID, req.InstitutionID)
	if err != nil {
		return nil, err
	}
	weights, options, err := h.repo.ConstraintWeights(ctx)
	if err != nil {
		return nil, err
	}

	timeLimit := 0
	if req.TimeLimitSeconds != nil {
		timeLimit = *req.TimeLimitSeconds
	}
	numWorkers := 0
	if req.NumWorkers != nil {
		numWorkers = *req.NumWorkers
	}

	return &domain.SolverInput{
		ScheduleVersionID: req.ScheduleVersionID,
		TermID:            req.TermID,
		InstitutionID:     req.InstitutionID,
		MeetingPatterns:   patterns,
		DatePatterns:      datePatterns,
		Rooms:             rooms,
		Instructors:       instructors,
		Courses:           courses,
		Sections:          sections,
		ConstraintWeights: weights,
		ConstraintOptions: options,
		TimeLimitSeconds:  timeLimit,
		NumWorkers:        numWorkers,
	}, nil
}
