package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sis-scheduler/scheduler-core/internal/domain"
)

// SolverInputRepository hydrates a domain.SolverInput from the
// scheduling/core/curriculum/identity schemas for one schedule version.
// It issues one query per entity kind rather than a single mega-join, the
// way the teacher's repositories favor simple selects over one
// unmaintainable query (class_repository.go, enrollment_repository.go).
type SolverInputRepository struct {
	db *sqlx.DB
}

// NewSolverInputRepository constructs the repository.
func NewSolverInputRepository(db *sqlx.DB) *SolverInputRepository {
	return &SolverInputRepository{db: db}
}

type meetingPatternRow struct {
	ID                  uuid.UUID `db:"id"`
	Name                string    `db:"name"`
	Code                string    `db:"code"`
	TotalMinutesPerWeek int       `db:"total_minutes_per_week"`
	PatternType         string    `db:"pattern_type"`
}

type meetingTimeRow struct {
	MeetingPatternID uuid.UUID `db:"meeting_pattern_id"`
	DayOfWeek        int       `db:"day_of_week"`
	StartTime        time.Time `db:"start_time"`
	EndTime          time.Time `db:"end_time"`
	BreakMinutes     int       `db:"break_minutes"`
}

// ListMeetingPatterns returns every reusable meeting pattern with its
// constituent times attached.
func (r *SolverInputRepository) ListMeetingPatterns(ctx context.Context) ([]domain.MeetingPattern, error) {
	var patternRows []meetingPatternRow
	const patternQuery = `SELECT id, name, code, total_minutes_per_week, pattern_type FROM scheduling.meeting_patterns ORDER BY id`
	if err := r.db.SelectContext(ctx, &patternRows, patternQuery); err != nil {
		return nil, fmt.Errorf("list meeting patterns: %w", err)
	}

	var timeRows []meetingTimeRow
	const timeQuery = `SELECT meeting_pattern_id, day_of_week, start_time, end_time, break_minutes FROM scheduling.meeting_pattern_times ORDER BY meeting_pattern_id, day_of_week, start_time`
	if err := r.db.SelectContext(ctx, &timeRows, timeQuery); err != nil {
		return nil, fmt.Errorf("list meeting pattern times: %w", err)
	}

	timesByPattern := make(map[uuid.UUID][]domain.MeetingTime, len(patternRows))
	for _, tr := range timeRows {
		timesByPattern[tr.MeetingPatternID] = append(timesByPattern[tr.MeetingPatternID], domain.MeetingTime{
			DayOfWeek:    tr.DayOfWeek,
			StartTime:    tr.StartTime,
			EndTime:      tr.EndTime,
			BreakMinutes: tr.BreakMinutes,
		})
	}

	patterns := make([]domain.MeetingPattern, 0, len(patternRows))
	for _, pr := range patternRows {
		patterns = append(patterns, domain.MeetingPattern{
			ID:                  pr.ID,
			Name:                pr.Name,
			Code:                pr.Code,
			Times:               timesByPattern[pr.ID],
			TotalMinutesPerWeek: pr.TotalMinutesPerWeek,
			PatternType:         pr.PatternType,
		})
	}
	return patterns, nil
}

// ListDatePatterns returns every configured calendar date pattern.
func (r *SolverInputRepository) ListDatePatterns(ctx context.Context) ([]domain.DatePattern, error) {
	var rows []struct {
		ID          uuid.UUID `db:"id"`
		Name        string    `db:"name"`
		FirstDate   time.Time `db:"first_date"`
		LastDate    time.Time `db:"last_date"`
		PatternType string    `db:"pattern_type"`
	}
	const query = `SELECT id, name, first_date, last_date, pattern_type FROM scheduling.date_patterns ORDER BY first_date`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list date patterns: %w", err)
	}
	patterns := make([]domain.DatePattern, 0, len(rows))
	for _, row := range rows {
		patterns = append(patterns, domain.DatePattern{
			ID:          row.ID,
			Name:        row.Name,
			FirstDate:   row.FirstDate,
			LastDate:    row.LastDate,
			PatternType: row.PatternType,
		})
	}
	return patterns, nil
}

// ListRooms returns every room with its building and features. Rooms are
// not filtered by is_schedulable; the flag is carried on each domain.Room.
func (r *SolverInputRepository) ListRooms(ctx context.Context) ([]domain.Room, error) {
	var roomRows []struct {
		ID            uuid.UUID `db:"id"`
		Code          string    `db:"code"`
		Name          string    `db:"name"`
		Capacity      int       `db:"capacity"`
		BuildingID    uuid.UUID `db:"building_id"`
		IsSchedulable bool      `db:"is_schedulable"`
	}
	const roomQuery = `
		SELECT r.id, r.code, r.name, r.capacity, r.building_id, r.is_schedulable
		FROM core.rooms r
		JOIN core.buildings b ON b.id = r.building_id
		JOIN core.campuses c ON c.id = b.campus_id
		ORDER BY r.id`
	if err := r.db.SelectContext(ctx, &roomRows, roomQuery); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}

	var featureRows []struct {
		RoomID   uuid.UUID `db:"room_id"`
		ID       uuid.UUID `db:"id"`
		Code     string    `db:"code"`
		Name     string    `db:"name"`
		Quantity int       `db:"quantity"`
	}
	const featureQuery = `
		SELECT rrf.room_id, rf.id, rf.code, rf.name, rrf.quantity
		FROM core.room_room_features rrf
		JOIN core.room_features rf ON rf.id = rrf.room_feature_id`
	if err := r.db.SelectContext(ctx, &featureRows, featureQuery); err != nil {
		return nil, fmt.Errorf("list room features: %w", err)
	}

	featuresByRoom := make(map[uuid.UUID][]domain.RoomFeature, len(roomRows))
	for _, fr := range featureRows {
		featuresByRoom[fr.RoomID] = append(featuresByRoom[fr.RoomID], domain.RoomFeature{
			ID: fr.ID, Code: fr.Code, Name: fr.Name, Quantity: fr.Quantity,
		})
	}

	rooms := make([]domain.Room, 0, len(roomRows))
	for _, rr := range roomRows {
		rooms = append(rooms, domain.Room{
			ID:            rr.ID,
			Code:          rr.Code,
			Name:          rr.Name,
			Capacity:      rr.Capacity,
			BuildingID:    rr.BuildingID,
			Features:      featuresByRoom[rr.ID],
			IsSchedulable: rr.IsSchedulable,
		})
	}
	return rooms, nil
}

// ListInstructors returns every instructor with workload bounds,
// qualifications, and time preferences attached.
func (r *SolverInputRepository) ListInstructors(ctx context.Context) ([]domain.Instructor, error) {
	var instructorRows []struct {
		ID         uuid.UUID `db:"id"`
		Name       string    `db:"full_name"`
		MinLoad    float64   `db:"min_load"`
		MaxLoad    float64   `db:"max_load"`
		TargetLoad *float64  `db:"target_load"`
		MaxCourses *int      `db:"max_courses"`
		MaxPreps   *int      `db:"max_preps"`
	}
	const instructorQuery = `
		SELECT u.id, u.full_name, w.min_load, w.max_load, w.target_load, w.max_courses, w.max_preps
		FROM identity.users u
		JOIN scheduling.instructor_workloads w ON w.instructor_id = u.id
		WHERE u.role = 'instructor'
		ORDER BY u.id`
	if err := r.db.SelectContext(ctx, &instructorRows, instructorQuery); err != nil {
		return nil, fmt.Errorf("list instructors: %w", err)
	}

	var prefRows []struct {
		InstructorID     uuid.UUID  `db:"instructor_id"`
		Day              *int       `db:"day_of_week"`
		StartTime        *time.Time `db:"start_time"`
		EndTime          *time.Time `db:"end_time"`
		MeetingPatternID *uuid.UUID `db:"meeting_pattern_id"`
		Level            int        `db:"level"`
	}
	const prefQuery = `
		SELECT instructor_id, day_of_week, start_time, end_time, meeting_pattern_id, level
		FROM scheduling.instructor_time_preferences
		ORDER BY instructor_id`
	if err := r.db.SelectContext(ctx, &prefRows, prefQuery); err != nil {
		return nil, fmt.Errorf("list instructor time preferences: %w", err)
	}

	prefsByInstructor := make(map[uuid.UUID][]domain.InstructorPreference, len(instructorRows))
	for _, pr := range prefRows {
		prefsByInstructor[pr.InstructorID] = append(prefsByInstructor[pr.InstructorID], domain.InstructorPreference{
			Day:              pr.Day,
			StartTime:        pr.StartTime,
			EndTime:          pr.EndTime,
			MeetingPatternID: pr.MeetingPatternID,
			Level:            domain.PreferenceLevel(pr.Level),
		})
	}

	var qualRows []struct {
		InstructorID uuid.UUID `db:"instructor_id"`
		CourseID     uuid.UUID `db:"course_id"`
	}
	const qualQuery = `SELECT instructor_id, course_id FROM scheduling.instructor_qualifications`
	if err := r.db.SelectContext(ctx, &qualRows, qualQuery); err != nil {
		return nil, fmt.Errorf("list instructor qualifications: %w", err)
	}

	qualifiedByInstructor := make(map[uuid.UUID]map[uuid.UUID]struct{}, len(instructorRows))
	for _, qr := range qualRows {
		set, ok := qualifiedByInstructor[qr.InstructorID]
		if !ok {
			set = make(map[uuid.UUID]struct{})
			qualifiedByInstructor[qr.InstructorID] = set
		}
		set[qr.CourseID] = struct{}{}
	}

	instructors := make([]domain.Instructor, 0, len(instructorRows))
	for _, ir := range instructorRows {
		instructors = append(instructors, domain.Instructor{
			ID:                 ir.ID,
			Name:               ir.Name,
			MinLoad:            ir.MinLoad,
			MaxLoad:            ir.MaxLoad,
			TargetLoad:         ir.TargetLoad,
			MaxCourses:         ir.MaxCourses,
			MaxPreps:           ir.MaxPreps,
			TimePreferences:    prefsByInstructor[ir.ID],
			QualifiedCourseIDs: qualifiedByInstructor[ir.ID],
		})
	}
	return instructors, nil
}

// ListCourses returns every course with its required room features.
func (r *SolverInputRepository) ListCourses(ctx context.Context) ([]domain.Course, error) {
	var courseRows []struct {
		ID          uuid.UUID `db:"id"`
		Code        string    `db:"code"`
		Name        string    `db:"name"`
		CreditHours float64   `db:"credit_hours"`
	}
	const courseQuery = `
		SELECT c.id, c.code, c.name, c.credit_hours
		FROM curriculum.courses c
		JOIN curriculum.subjects s ON s.id = c.subject_id
		ORDER BY c.id`
	if err := r.db.SelectContext(ctx, &courseRows, courseQuery); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}

	var reqRows []struct {
		CourseID  uuid.UUID `db:"course_id"`
		FeatureID uuid.UUID `db:"room_feature_id"`
	}
	const reqQuery = `SELECT course_id, room_feature_id FROM scheduling.course_room_requirements`
	if err := r.db.SelectContext(ctx, &reqRows, reqQuery); err != nil {
		return nil, fmt.Errorf("list course room requirements: %w", err)
	}

	requiredByCourse := make(map[uuid.UUID]map[uuid.UUID]struct{}, len(courseRows))
	for _, rr := range reqRows {
		set, ok := requiredByCourse[rr.CourseID]
		if !ok {
			set = make(map[uuid.UUID]struct{})
			requiredByCourse[rr.CourseID] = set
		}
		set[rr.FeatureID] = struct{}{}
	}

	courses := make([]domain.Course, 0, len(courseRows))
	for _, cr := range courseRows {
		courses = append(courses, domain.Course{
			ID:                     cr.ID,
			Code:                   cr.Code,
			Name:                   cr.Name,
			CreditHours:            cr.CreditHours,
			RequiredRoomFeatureIDs: requiredByCourse[cr.ID],
		})
	}
	return courses, nil
}

// ListSections returns every section of termID/institutionID scoped to
// scheduleVersionID, with its candidate sets, instructor roles,
// cross-list group, and link group attached. Live manual overrides in
// section_assignments (source <> 'solver') pre-fix the corresponding
// field the way a registrar's manual placement takes priority over the
// solver.
func (r *SolverInputRepository) ListSections(ctx context.Context, scheduleVersionID, termID, institutionID uuid.UUID) ([]domain.Section, error) {
	var sectionRows []struct {
		ID                 uuid.UUID  `db:"id"`
		CourseID           uuid.UUID  `db:"course_id"`
		SectionNumber      string     `db:"section_number"`
		ExpectedEnrollment int        `db:"expected_enrollment"`
		CreditHours        float64    `db:"credit_hours"`
		CrossListGroupID   *uuid.UUID `db:"cross_list_group_id"`
		LinkGroupID        *uuid.UUID `db:"link_group_id"`
		IsLinkParent       bool       `db:"is_link_parent"`
		FixedPatternID     *uuid.UUID `db:"fixed_meeting_pattern_id"`
		FixedRoomID        *uuid.UUID `db:"fixed_room_id"`
		FixedDatePatternID *uuid.UUID `db:"fixed_date_pattern_id"`
	}
	const sectionQuery = `
		SELECT s.id, s.course_id, s.section_number, s.expected_enrollment, s.credit_hours,
		       s.cross_list_group_id, s.link_group_id, s.is_link_parent,
		       s.fixed_meeting_pattern_id, s.fixed_room_id, s.fixed_date_pattern_id
		FROM curriculum.sections s
		JOIN curriculum.courses c ON c.id = s.course_id
		WHERE s.term_id = $1 AND s.institution_id = $2
		ORDER BY s.id`
	if err := r.db.SelectContext(ctx, &sectionRows, sectionQuery, termID, institutionID); err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}

	sectionIDs := make([]uuid.UUID, 0, len(sectionRows))
	for _, sr := range sectionRows {
		sectionIDs = append(sectionIDs, sr.ID)
	}

	var instructorRows []struct {
		SectionID    uuid.UUID `db:"section_id"`
		InstructorID uuid.UUID `db:"instructor_id"`
		Role         string    `db:"role"`
	}
	const instructorQuery = `SELECT section_id, instructor_id, role FROM curriculum.section_instructors WHERE section_id = ANY($1::uuid[])`
	if len(sectionIDs) > 0 {
		if err := r.db.SelectContext(ctx, &instructorRows, instructorQuery, uuidArray(sectionIDs)); err != nil {
			return nil, fmt.Errorf("list section instructors: %w", err)
		}
	}

	var allowedPatternRows []struct {
		SectionID uuid.UUID `db:"section_id"`
		PatternID uuid.UUID `db:"meeting_pattern_id"`
	}
	const allowedPatternQuery = `SELECT section_id, meeting_pattern_id FROM scheduling.section_allowed_patterns WHERE section_id = ANY($1::uuid[])`
	if len(sectionIDs) > 0 {
		if err := r.db.SelectContext(ctx, &allowedPatternRows, allowedPatternQuery, uuidArray(sectionIDs)); err != nil {
			return nil, fmt.Errorf("list section allowed patterns: %w", err)
		}
	}

	var allowedRoomRows []struct {
		SectionID uuid.UUID `db:"section_id"`
		RoomID    uuid.UUID `db:"room_id"`
	}
	const allowedRoomQuery = `SELECT section_id, room_id FROM scheduling.section_allowed_rooms WHERE section_id = ANY($1::uuid[])`
	if len(sectionIDs) > 0 {
		if err := r.db.SelectContext(ctx, &allowedRoomRows, allowedRoomQuery, uuidArray(sectionIDs)); err != nil {
			return nil, fmt.Errorf("list section allowed rooms: %w", err)
		}
	}

	var requiredFeatureRows []struct {
		SectionID uuid.UUID `db:"section_id"`
		FeatureID uuid.UUID `db:"room_feature_id"`
	}
	const requiredFeatureQuery = `SELECT section_id, room_feature_id FROM scheduling.section_room_requirements WHERE section_id = ANY($1::uuid[])`
	if len(sectionIDs) > 0 {
		if err := r.db.SelectContext(ctx, &requiredFeatureRows, requiredFeatureQuery, uuidArray(sectionIDs)); err != nil {
			return nil, fmt.Errorf("list section room requirements: %w", err)
		}
	}

	var overrideRows []struct {
		SectionID        uuid.UUID  `db:"section_id"`
		MeetingPatternID *uuid.UUID `db:"meeting_pattern_id"`
		RoomID           *uuid.UUID `db:"room_id"`
	}
	const overrideQuery = `
		SELECT section_id, meeting_pattern_id, room_id
		FROM scheduling.section_assignments
		WHERE schedule_version_id = $1 AND source <> 'solver' AND valid_to IS NULL AND section_id = ANY($2::uuid[])`
	if len(sectionIDs) > 0 {
		if err := r.db.SelectContext(ctx, &overrideRows, overrideQuery, scheduleVersionID, uuidArray(sectionIDs)); err != nil {
			return nil, fmt.Errorf("list manual section overrides: %w", err)
		}
	}
	overridesBySection := make(map[uuid.UUID]struct {
		patternID *uuid.UUID
		roomID    *uuid.UUID
	}, len(overrideRows))
	for _, or := range overrideRows {
		overridesBySection[or.SectionID] = struct {
			patternID *uuid.UUID
			roomID    *uuid.UUID
		}{patternID: or.MeetingPatternID, roomID: or.RoomID}
	}

	preferredBySection := make(map[uuid.UUID][]uuid.UUID, len(sectionRows))
	assignedBySection := make(map[uuid.UUID][]uuid.UUID, len(sectionRows))
	for _, ir := range instructorRows {
		if ir.Role == "assigned" {
			assignedBySection[ir.SectionID] = append(assignedBySection[ir.SectionID], ir.InstructorID)
		} else {
			preferredBySection[ir.SectionID] = append(preferredBySection[ir.SectionID], ir.InstructorID)
		}
	}

	allowedPatternsBySection := make(map[uuid.UUID]map[uuid.UUID]struct{}, len(sectionRows))
	for _, apr := range allowedPatternRows {
		set, ok := allowedPatternsBySection[apr.SectionID]
		if !ok {
			set = make(map[uuid.UUID]struct{})
			allowedPatternsBySection[apr.SectionID] = set
		}
		set[apr.PatternID] = struct{}{}
	}

	allowedRoomsBySection := make(map[uuid.UUID]map[uuid.UUID]struct{}, len(sectionRows))
	for _, arr := range allowedRoomRows {
		set, ok := allowedRoomsBySection[arr.SectionID]
		if !ok {
			set = make(map[uuid.UUID]struct{})
			allowedRoomsBySection[arr.SectionID] = set
		}
		set[arr.RoomID] = struct{}{}
	}

	requiredFeaturesBySection := make(map[uuid.UUID]map[uuid.UUID]struct{}, len(sectionRows))
	for _, rfr := range requiredFeatureRows {
		set, ok := requiredFeaturesBySection[rfr.SectionID]
		if !ok {
			set = make(map[uuid.UUID]struct{})
			requiredFeaturesBySection[rfr.SectionID] = set
		}
		set[rfr.FeatureID] = struct{}{}
	}

	sections := make([]domain.Section, 0, len(sectionRows))
	for _, sr := range sectionRows {
		fixedPattern := sr.FixedPatternID
		fixedRoom := sr.FixedRoomID
		if override, ok := overridesBySection[sr.ID]; ok {
			if fixedPattern == nil {
				fixedPattern = override.patternID
			}
			if fixedRoom == nil {
				fixedRoom = override.roomID
			}
		}
		sections = append(sections, domain.Section{
			ID:                       sr.ID,
			CourseID:                 sr.CourseID,
			SectionNumber:            sr.SectionNumber,
			ExpectedEnrollment:       sr.ExpectedEnrollment,
			CreditHours:              sr.CreditHours,
			AllowedMeetingPatternIDs: allowedPatternsBySection[sr.ID],
			AllowedRoomIDs:           allowedRoomsBySection[sr.ID],
			RequiredRoomFeatureIDs:   requiredFeaturesBySection[sr.ID],
			PreferredInstructorIDs:   preferredBySection[sr.ID],
			AssignedInstructorIDs:    assignedBySection[sr.ID],
			CrossListGroupID:         sr.CrossListGroupID,
			LinkGroupID:              sr.LinkGroupID,
			IsLinkParent:             sr.IsLinkParent,
			FixedMeetingPatternID:    fixedPattern,
			FixedRoomID:              fixedRoom,
			FixedDatePatternID:       sr.FixedDatePatternID,
		})
	}
	return sections, nil
}

// ConstraintWeights reads the configured weight overrides from
// scheduling.constraint_types, keyed by constraint code.
func (r *SolverInputRepository) ConstraintWeights(ctx context.Context) (map[string]float64, map[string]string, error) {
	var rows []struct {
		Code   string  `db:"code"`
		Weight float64 `db:"weight"`
		Option string  `db:"option_value"`
	}
	const query = `SELECT code, weight, option_value FROM scheduling.constraint_types`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, nil, fmt.Errorf("list constraint types: %w", err)
	}
	weights := make(map[string]float64, len(rows))
	options := make(map[string]string, len(rows))
	for _, row := range rows {
		weights[row.Code] = row.Weight
		if row.Option != "" {
			options[row.Code] = row.Option
		}
	}
	return weights, options, nil
}

// uuidArray adapts a []uuid.UUID to a pq text array for ANY($n) comparisons.
func uuidArray(ids []uuid.UUID) pq.StringArray {
	out := make(pq.StringArray, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
