package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sis-scheduler/scheduler-core/internal/domain"
	"github.com/sis-scheduler/scheduler-core/internal/dto"
	appErrors "github.com/sis-scheduler/scheduler-core/pkg/errors"
	"github.com/sis-scheduler/scheduler-core/pkg/response"
)

// ValidateHandler checks a problem instance for basic feasibility issues
// without running the solver: sections with no valid room or meeting
// pattern options.
type ValidateHandler struct{}

// NewValidateHandler constructs a ValidateHandler.
func NewValidateHandler() *ValidateHandler {
	return &ValidateHandler{}
}

// Validate godoc
// @Summary Validate a scheduling problem instance
// @Description Check a problem instance for unschedulable sections before running the solver
// @Tags Solver
// @Accept json
// @Produce json
// @Param payload body dto.ValidateRequest true "Validate payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /validate [post]
func (h *ValidateHandler) Validate(c *gin.Context) {
	var req dto.ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid validate payload"))
		return
	}
	in := req.Input

	allRooms := domain.NewUUIDSet()
	for _, r := range in.Rooms {
		allRooms[r.ID] = struct{}{}
	}
	allPatterns := domain.NewUUIDSet()
	for _, p := range in.MeetingPatterns {
		allPatterns[p.ID] = struct{}{}
	}

	issues := make([]dto.ValidationIssue, 0)
	for _, section := range in.Sections {
		section := section
		allowed := section.AllowedRoomIDs
		if allowed == nil {
			allowed = allRooms
		}
		validRooms := 0
		for _, r := range in.Rooms {
			if _, ok := allowed[r.ID]; ok && r.Capacity >= section.ExpectedEnrollment {
				validRooms++
			}
		}
		if validRooms == 0 {
			issues = append(issues, dto.ValidationIssue{
				Type:      "no_valid_rooms",
				SectionID: &section.ID,
				Message:   fmt.Sprintf("No room with capacity >= %d", section.ExpectedEnrollment),
			})
		}

		allowedPatterns := section.AllowedMeetingPatternIDs
		if allowedPatterns == nil {
			allowedPatterns = allPatterns
		}
		if len(allowedPatterns) == 0 {
			issues = append(issues, dto.ValidationIssue{
				Type:      "no_valid_patterns",
				SectionID: &section.ID,
				Message:   "No allowed meeting patterns",
			})
		}
	}

	response.JSON(c, http.StatusOK, dto.ValidateResponse{
		Valid:        len(issues) == 0,
		Issues:       issues,
		SectionCount: len(in.Sections),
		RoomCount:    len(in.Rooms),
		PatternCount: len(in.MeetingPatterns),
	}, nil)
}
