package solver

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sis-scheduler/scheduler-core/internal/domain"
)

func clockTime(h, m int) time.Time {
	return time.Date(0, 1, 1, h, m, 0, 0, time.UTC)
}

// mwf9 and tr10 are the two non-overlapping patterns used across scenarios
// S1-S5 (spec.md §8): Monday/Wednesday/Friday 9:00-9:50 and Tuesday/Thursday
// 10:00-11:15.
func mwf9() domain.MeetingPattern {
	return domain.MeetingPattern{
		ID:   uuid.New(),
		Name: "MWF 9:00",
		Times: []domain.MeetingTime{
			{DayOfWeek: 1, StartTime: clockTime(9, 0), EndTime: clockTime(9, 50)},
			{DayOfWeek: 3, StartTime: clockTime(9, 0), EndTime: clockTime(9, 50)},
			{DayOfWeek: 5, StartTime: clockTime(9, 0), EndTime: clockTime(9, 50)},
		},
	}
}

func tr10() domain.MeetingPattern {
	return domain.MeetingPattern{
		ID:   uuid.New(),
		Name: "TR 10:00",
		Times: []domain.MeetingTime{
			{DayOfWeek: 2, StartTime: clockTime(10, 0), EndTime: clockTime(11, 15)},
			{DayOfWeek: 4, StartTime: clockTime(10, 0), EndTime: clockTime(11, 15)},
		},
	}
}

func room(capacity int) domain.Room {
	return domain.Room{ID: uuid.New(), Code: "R", Capacity: capacity, IsSchedulable: true}
}

func baseSection(courseID uuid.UUID, enrollment int) domain.Section {
	return domain.Section{
		ID:                 uuid.New(),
		CourseID:           courseID,
		SectionNumber:      "001",
		ExpectedEnrollment: enrollment,
		CreditHours:        3,
	}
}

// twoSectionInput builds the shared fixture for S1-S4: two sections with
// distinct enrollments, two rooms, two non-overlapping patterns, each
// section pre-assigned to an instructor (same or distinct per caller).
func twoSectionInput(instructorA, instructorB uuid.UUID) (*domain.SolverInput, domain.Section, domain.Section) {
	courseID := uuid.New()
	p1, p2 := mwf9(), tr10()
	r1, r2 := room(30), room(50)

	s1 := baseSection(courseID, 25)
	s1.AssignedInstructorIDs = []uuid.UUID{instructorA}
	s2 := baseSection(courseID, 20)
	s2.AssignedInstructorIDs = []uuid.UUID{instructorB}

	in := &domain.SolverInput{
		MeetingPatterns: []domain.MeetingPattern{p1, p2},
		Rooms:           []domain.Room{r1, r2},
		Courses:         []domain.Course{{ID: courseID, Code: "CS101", CreditHours: 3}},
		Sections:        []domain.Section{s1, s2},
		TimeLimitSeconds: 10,
		NumWorkers:       2,
	}
	return in, s1, s2
}

func assignmentFor(out domain.SolverOutput, sectionID uuid.UUID) (domain.Assignment, bool) {
	for _, a := range out.Assignments {
		if a.SectionID == sectionID {
			return a, true
		}
	}
	return domain.Assignment{}, false
}

// S1: two sections, two rooms, two non-overlapping patterns, distinct
// pre-assigned instructors -> feasible/optimal, both assigned, P1-P5 hold.
func TestSolveScenarioS1TwoDistinctInstructorsFeasible(t *testing.T) {
	in, s1, s2 := twoSectionInput(uuid.New(), uuid.New())

	out := Solve(context.Background(), uuid.New(), in)

	require.Contains(t, []string{domain.StatusOptimal, domain.StatusFeasible}, out.Result.Status)

	a1, ok := assignmentFor(out, s1.ID)
	require.True(t, ok)
	a2, ok := assignmentFor(out, s2.ID)
	require.True(t, ok)

	assert.True(t, a1.IsAssigned)
	assert.True(t, a2.IsAssigned)
	require.NotNil(t, a1.MeetingPatternID)
	require.NotNil(t, a1.RoomID)
	require.NotNil(t, a2.MeetingPatternID)
	require.NotNil(t, a2.RoomID)

	roomByID := make(map[uuid.UUID]domain.Room)
	for _, r := range in.Rooms {
		roomByID[r.ID] = r
	}
	assert.GreaterOrEqual(t, roomByID[*a1.RoomID].Capacity, s1.ExpectedEnrollment)
	assert.GreaterOrEqual(t, roomByID[*a2.RoomID].Capacity, s2.ExpectedEnrollment)
}

// S2: one section's enrollment exceeds every room's capacity -> infeasible.
func TestSolveScenarioS2OverCapacityInfeasible(t *testing.T) {
	in, _, s2 := twoSectionInput(uuid.New(), uuid.New())
	in.Sections[0].ExpectedEnrollment = 100
	_ = s2

	out := Solve(context.Background(), uuid.New(), in)

	assert.Equal(t, domain.StatusInfeasible, out.Result.Status)
	for _, a := range out.Assignments {
		assert.False(t, a.IsAssigned)
	}
}

// S3: both sections pre-assigned to the SAME instructor, but the two
// patterns never share a day -> still feasible, both assigned (P3 holds
// because there is no overlap to conflict on).
func TestSolveScenarioS3SameInstructorNonOverlappingFeasible(t *testing.T) {
	sharedInstructor := uuid.New()
	in, s1, s2 := twoSectionInput(sharedInstructor, sharedInstructor)

	out := Solve(context.Background(), uuid.New(), in)

	require.Contains(t, []string{domain.StatusOptimal, domain.StatusFeasible}, out.Result.Status)
	a1, ok := assignmentFor(out, s1.ID)
	require.True(t, ok)
	a2, ok := assignmentFor(out, s2.ID)
	require.True(t, ok)
	assert.True(t, a1.IsAssigned)
	assert.True(t, a2.IsAssigned)
}

// S4: cross-listing the two sections forces a shared room and pattern.
func TestSolveScenarioS4CrossListSharesRoomAndPattern(t *testing.T) {
	in, s1, s2 := twoSectionInput(uuid.New(), uuid.New())
	group := uuid.New()
	in.Sections[0].CrossListGroupID = &group
	in.Sections[1].CrossListGroupID = &group
	// Equal enrollment so both candidate rooms remain eligible for both
	// sections and the cross-list equality constraint is the only thing
	// forcing the shared choice.
	in.Sections[0].ExpectedEnrollment = 20
	in.Sections[1].ExpectedEnrollment = 20

	out := Solve(context.Background(), uuid.New(), in)

	require.Contains(t, []string{domain.StatusOptimal, domain.StatusFeasible}, out.Result.Status)
	a1, ok := assignmentFor(out, s1.ID)
	require.True(t, ok)
	a2, ok := assignmentFor(out, s2.ID)
	require.True(t, ok)
	require.True(t, a1.IsAssigned)
	require.True(t, a2.IsAssigned)
	assert.Equal(t, *a1.RoomID, *a2.RoomID)
	assert.Equal(t, *a1.MeetingPatternID, *a2.MeetingPatternID)
}

// S5: linked parent/lab section with connector "immediately_after" and only
// one compatible pattern pair within the default 30-minute gap -> the
// child's chosen pattern lies in the compatible set for whichever pattern
// the parent lands on.
func TestSolveScenarioS5LinkedSectionsImmediatelyAfter(t *testing.T) {
	courseID := uuid.New()
	lecture := domain.MeetingPattern{
		ID:   uuid.New(),
		Name: "Lecture MW 9:00",
		Times: []domain.MeetingTime{
			{DayOfWeek: 1, StartTime: clockTime(9, 0), EndTime: clockTime(9, 50)},
			{DayOfWeek: 3, StartTime: clockTime(9, 0), EndTime: clockTime(9, 50)},
		},
	}
	// Lab A starts 10 minutes after lecture ends on Monday -> compatible.
	labCompatible := domain.MeetingPattern{
		ID:   uuid.New(),
		Name: "Lab MW 10:00",
		Times: []domain.MeetingTime{
			{DayOfWeek: 1, StartTime: clockTime(10, 0), EndTime: clockTime(11, 50)},
			{DayOfWeek: 3, StartTime: clockTime(10, 0), EndTime: clockTime(11, 50)},
		},
	}
	// Lab B starts hours later -> not within the 30-minute gap.
	labIncompatible := domain.MeetingPattern{
		ID:   uuid.New(),
		Name: "Lab MW 14:00",
		Times: []domain.MeetingTime{
			{DayOfWeek: 1, StartTime: clockTime(14, 0), EndTime: clockTime(15, 50)},
			{DayOfWeek: 3, StartTime: clockTime(14, 0), EndTime: clockTime(15, 50)},
		},
	}
	r1 := room(40)

	parent := baseSection(courseID, 20)
	parent.IsLinkParent = true
	parent.AssignedInstructorIDs = []uuid.UUID{uuid.New()}
	parent.AllowedMeetingPatternIDs = domain.NewUUIDSet(lecture.ID)
	parent.AllowedRoomIDs = domain.NewUUIDSet(r1.ID)

	child := baseSection(courseID, 20)
	child.AssignedInstructorIDs = []uuid.UUID{uuid.New()}
	child.AllowedMeetingPatternIDs = domain.NewUUIDSet(labCompatible.ID, labIncompatible.ID)
	child.AllowedRoomIDs = domain.NewUUIDSet(r1.ID)

	link := uuid.New()
	parent.LinkGroupID = &link
	child.LinkGroupID = &link

	in := &domain.SolverInput{
		MeetingPatterns:  []domain.MeetingPattern{lecture, labCompatible, labIncompatible},
		Rooms:            []domain.Room{r1},
		Courses:          []domain.Course{{ID: courseID, Code: "BIO101", CreditHours: 4}},
		Sections:         []domain.Section{parent, child},
		TimeLimitSeconds: 10,
		NumWorkers:       2,
	}

	out := Solve(context.Background(), uuid.New(), in)

	require.Contains(t, []string{domain.StatusOptimal, domain.StatusFeasible}, out.Result.Status)
	parentA, ok := assignmentFor(out, parent.ID)
	require.True(t, ok)
	childA, ok := assignmentFor(out, child.ID)
	require.True(t, ok)
	require.True(t, parentA.IsAssigned)
	require.True(t, childA.IsAssigned)
	assert.Equal(t, lecture.ID, *parentA.MeetingPatternID)
	assert.Equal(t, labCompatible.ID, *childA.MeetingPatternID)
}

// S6: empty input -> no sections, no assignments, a non-error status.
func TestSolveScenarioS6EmptyInput(t *testing.T) {
	in := &domain.SolverInput{TimeLimitSeconds: 5, NumWorkers: 1}

	out := Solve(context.Background(), uuid.New(), in)

	assert.Contains(t, []string{domain.StatusOptimal, domain.StatusFeasible, domain.StatusInfeasible}, out.Result.Status)
	assert.Empty(t, out.Assignments)
}

// P8: a section with a fixed meeting pattern, room, and date
// pattern must solve with exactly those fixed values chosen.
func TestSolveRespectsFixedFields(t *testing.T) {
	courseID := uuid.New()
	p1, p2 := mwf9(), tr10()
	r1, r2 := room(30), room(50)
	dp := domain.DatePattern{ID: uuid.New(), Name: "Full Term"}

	s := baseSection(courseID, 10)
	s.AssignedInstructorIDs = []uuid.UUID{uuid.New()}
	s.FixedMeetingPatternID = &p2.ID
	s.FixedRoomID = &r2.ID
	s.FixedDatePatternID = &dp.ID

	in := &domain.SolverInput{
		MeetingPatterns:  []domain.MeetingPattern{p1, p2},
		Rooms:            []domain.Room{r1, r2},
		DatePatterns:     []domain.DatePattern{dp},
		Courses:          []domain.Course{{ID: courseID, Code: "CS201", CreditHours: 3}},
		Sections:         []domain.Section{s},
		TimeLimitSeconds: 5,
		NumWorkers:       1,
	}

	out := Solve(context.Background(), uuid.New(), in)

	a, ok := assignmentFor(out, s.ID)
	require.True(t, ok)
	require.True(t, a.IsAssigned)
	assert.Equal(t, p2.ID, *a.MeetingPatternID)
	assert.Equal(t, r2.ID, *a.RoomID)
	assert.Equal(t, dp.ID, *a.DatePatternID)
}

// P4/P5: a room lacking a required feature is never chosen even when it
// has ample capacity.
func TestSolveRespectsRequiredFeatures(t *testing.T) {
	courseID := uuid.New()
	p1 := mwf9()
	feature := domain.RoomFeature{ID: uuid.New(), Code: "PROJ", Name: "Projector", Quantity: 1}
	plainRoom := domain.Room{ID: uuid.New(), Code: "PLAIN", Capacity: 100, IsSchedulable: true}
	featuredRoom := domain.Room{ID: uuid.New(), Code: "SMART", Capacity: 40, Features: []domain.RoomFeature{feature}, IsSchedulable: true}

	s := baseSection(courseID, 20)
	s.AssignedInstructorIDs = []uuid.UUID{uuid.New()}
	s.RequiredRoomFeatureIDs = domain.NewUUIDSet(feature.ID)

	in := &domain.SolverInput{
		MeetingPatterns:  []domain.MeetingPattern{p1},
		Rooms:            []domain.Room{plainRoom, featuredRoom},
		Courses:          []domain.Course{{ID: courseID, Code: "CS301", CreditHours: 3}},
		Sections:         []domain.Section{s},
		TimeLimitSeconds: 5,
		NumWorkers:       1,
	}

	out := Solve(context.Background(), uuid.New(), in)

	a, ok := assignmentFor(out, s.ID)
	require.True(t, ok)
	require.True(t, a.IsAssigned)
	assert.Equal(t, featuredRoom.ID, *a.RoomID)
}

// P9 concerns persisting the same output twice; this test covers the
// solver's own determinism instead (same input -> same chosen values,
// even though several assignments tie on the objective here) by
// re-solving the identical input.
func TestSolveIsDeterministicForFixedInput(t *testing.T) {
	in, s1, s2 := twoSectionInput(uuid.New(), uuid.New())

	out1 := Solve(context.Background(), uuid.New(), in)
	out2 := Solve(context.Background(), uuid.New(), in)

	a1, _ := assignmentFor(out1, s1.ID)
	b1, _ := assignmentFor(out2, s1.ID)
	a2, _ := assignmentFor(out1, s2.ID)
	b2, _ := assignmentFor(out2, s2.ID)

	assert.Equal(t, a1.IsAssigned, b1.IsAssigned)
	assert.Equal(t, a2.IsAssigned, b2.IsAssigned)
	if a1.IsAssigned && b1.IsAssigned {
		assert.Equal(t, *a1.RoomID, *b1.RoomID)
		assert.Equal(t, *a1.MeetingPatternID, *b1.MeetingPatternID)
	}
}
