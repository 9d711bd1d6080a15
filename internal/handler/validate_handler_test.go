package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/sis-scheduler/scheduler-core/internal/domain"
	"github.com/sis-scheduler/scheduler-core/internal/dto"
	"github.com/sis-scheduler/scheduler-core/pkg/response"
)

func postValidate(t *testing.T, req dto.ValidateRequest) (*httptest.ResponseRecorder, dto.ValidateResponse) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	handler := NewValidateHandler()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, err := json.Marshal(req)
	require.NoError(t, err)
	httpReq, err := http.NewRequest(http.MethodPost, "/validate", bytes.NewReader(body))
	require.NoError(t, err)
	httpReq.Header.Set("Content-Type", "application/json")
	c.Request = httpReq

	handler.Validate(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	data, err := json.Marshal(envelope.Data)
	require.NoError(t, err)
	var out dto.ValidateResponse
	require.NoError(t, json.Unmarshal(data, &out))
	return w, out
}

// A section with no AllowedRoomIDs/AllowedMeetingPatternIDs set (nil,
// meaning "unrestricted" per spec.md §4.1) must validate against every
// room and pattern in the input, not be treated as having zero options.
func TestValidateHandlerNilAllowedSetsMeansUnrestricted(t *testing.T) {
	roomID := uuid.New()
	patternID := uuid.New()
	section := domain.Section{ID: uuid.New(), ExpectedEnrollment: 10}

	_, out := postValidate(t, dto.ValidateRequest{
		Input: domain.SolverInput{
			Rooms:           []domain.Room{{ID: roomID, Capacity: 20}},
			MeetingPatterns: []domain.MeetingPattern{{ID: patternID, Name: "MWF"}},
			Sections:        []domain.Section{section},
		},
	})

	require.True(t, out.Valid)
	require.Empty(t, out.Issues)
}

// An explicit empty AllowedRoomIDs set (distinct from nil) means the
// section allows no rooms at all and must be reported as unschedulable.
func TestValidateHandlerExplicitEmptyAllowedRoomsIsNoValidRooms(t *testing.T) {
	roomID := uuid.New()
	section := domain.Section{
		ID:                 uuid.New(),
		ExpectedEnrollment: 10,
		AllowedRoomIDs:     domain.NewUUIDSet(),
	}

	_, out := postValidate(t, dto.ValidateRequest{
		Input: domain.SolverInput{
			Rooms:           []domain.Room{{ID: roomID, Capacity: 20}},
			MeetingPatterns: []domain.MeetingPattern{{ID: uuid.New(), Name: "MWF"}},
			Sections:        []domain.Section{section},
		},
	})

	require.False(t, out.Valid)
	require.Len(t, out.Issues, 1)
	require.Equal(t, "no_valid_rooms", out.Issues[0].Type)
}

func TestValidateHandlerReportsCapacityShortfall(t *testing.T) {
	roomID := uuid.New()
	section := domain.Section{ID: uuid.New(), ExpectedEnrollment: 100}

	_, out := postValidate(t, dto.ValidateRequest{
		Input: domain.SolverInput{
			Rooms:           []domain.Room{{ID: roomID, Capacity: 20}},
			MeetingPatterns: []domain.MeetingPattern{{ID: uuid.New(), Name: "MWF"}},
			Sections:        []domain.Section{section},
		},
	})

	require.False(t, out.Valid)
	require.Len(t, out.Issues, 1)
	require.Equal(t, "no_valid_rooms", out.Issues[0].Type)
	require.Equal(t, section.ID, *out.Issues[0].SectionID)
}
