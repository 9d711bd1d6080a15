package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSolverInputRepoMock(t *testing.T) (*SolverInputRepository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return NewSolverInputRepository(sqlxdb), mock
}

func TestListMeetingPatternsAttachesTimes(t *testing.T) {
	repo, mock := newSolverInputRepoMock(t)
	patternID := uuid.New()

	mock.ExpectQuery("SELECT id, name, code, total_minutes_per_week, pattern_type").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "code", "total_minutes_per_week", "pattern_type"}).
			AddRow(patternID, "MWF Morning", "MWF0900", 150, "standard"))

	mock.ExpectQuery("SELECT meeting_pattern_id, day_of_week, start_time, end_time, break_minutes").
		WillReturnRows(sqlmock.NewRows([]string{"meeting_pattern_id", "day_of_week", "start_time", "end_time", "break_minutes"}).
			AddRow(patternID, 1, time.Date(0, 1, 1, 9, 0, 0, 0, time.UTC), time.Date(0, 1, 1, 9, 50, 0, 0, time.UTC), 0))

	patterns, err := repo.ListMeetingPatterns(context.Background())
	require.NoError(t, err)
	require.Len(t, patterns, 1)
	assert.Equal(t, patternID, patterns[0].ID)
	require.Len(t, patterns[0].Times, 1)
	assert.Equal(t, 1, patterns[0].Times[0].DayOfWeek)
}

func TestListRoomsAttachesFeatures(t *testing.T) {
	repo, mock := newSolverInputRepoMock(t)
	roomID := uuid.New()
	buildingID := uuid.New()
	featureID := uuid.New()

	mock.ExpectQuery("SELECT r.id, r.code, r.name, r.capacity, r.building_id, r.is_schedulable").
		WillReturnRows(sqlmock.NewRows([]string{"id", "code", "name", "capacity", "building_id", "is_schedulable"}).
			AddRow(roomID, "B101", "Building B 101", 40, buildingID, true))

	mock.ExpectQuery("SELECT rrf.room_id, rf.id, rf.code, rf.name, rrf.quantity").
		WillReturnRows(sqlmock.NewRows([]string{"room_id", "id", "code", "name", "quantity"}).
			AddRow(roomID, featureID, "projector", "Projector", 1))

	rooms, err := repo.ListRooms(context.Background())
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, 40, rooms[0].Capacity)
	require.Len(t, rooms[0].Features, 1)
	assert.Equal(t, featureID, rooms[0].Features[0].ID)
}

func TestListSectionsAppliesManualOverride(t *testing.T) {
	repo, mock := newSolverInputRepoMock(t)
	sectionID := uuid.New()
	courseID := uuid.New()
	overridePatternID := uuid.New()
	scheduleVersionID := uuid.New()
	termID := uuid.New()
	institutionID := uuid.New()

	mock.ExpectQuery("SELECT s.id, s.course_id, s.section_number").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "course_id", "section_number", "expected_enrollment", "credit_hours",
			"cross_list_group_id", "link_group_id", "is_link_parent",
			"fixed_meeting_pattern_id", "fixed_room_id", "fixed_date_pattern_id",
		}).AddRow(sectionID, courseID, "001", 25, 3.0, nil, nil, false, nil, nil, nil))

	mock.ExpectQuery("SELECT section_id, instructor_id, role").
		WillReturnRows(sqlmock.NewRows([]string{"section_id", "instructor_id", "role"}))
	mock.ExpectQuery("SELECT section_id, meeting_pattern_id FROM scheduling.section_allowed_patterns").
		WillReturnRows(sqlmock.NewRows([]string{"section_id", "meeting_pattern_id"}))
	mock.ExpectQuery("SELECT section_id, room_id FROM scheduling.section_allowed_rooms").
		WillReturnRows(sqlmock.NewRows([]string{"section_id", "room_id"}))
	mock.ExpectQuery("SELECT section_id, room_feature_id FROM scheduling.section_room_requirements").
		WillReturnRows(sqlmock.NewRows([]string{"section_id", "room_feature_id"}))
	mock.ExpectQuery("SELECT section_id, meeting_pattern_id, room_id").
		WillReturnRows(sqlmock.NewRows([]string{"section_id", "meeting_pattern_id", "room_id"}).
			AddRow(sectionID, overridePatternID, nil))

	sections, err := repo.ListSections(context.Background(), scheduleVersionID, termID, institutionID)
	require.NoError(t, err)
	require.Len(t, sections, 1)
	require.NotNil(t, sections[0].FixedMeetingPatternID)
	assert.Equal(t, overridePatternID, *sections[0].FixedMeetingPatternID)
}
