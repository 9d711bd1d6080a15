// Package domain holds the immutable value types of a scheduling problem
// instance: meeting patterns, rooms, instructors, sections, and the
// assignments a solve produces from them.
package domain

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
)

// UUIDSet is a set of identifiers. The solver and repository layers use it
// as a plain map for O(1) membership tests; at the JSON boundary it reads
// and writes as an array, matching the wire shape of the original Python
// service's frozenset fields. A nil UUIDSet marshals as null and means
// "every id is allowed" wherever the field documents that convention; an
// explicit empty array means none are.
type UUIDSet map[uuid.UUID]struct{}

// NewUUIDSet builds a set from a list of ids.
func NewUUIDSet(ids ...uuid.UUID) UUIDSet {
	s := make(UUIDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether id is a member of the set.
func (s UUIDSet) Has(id uuid.UUID) bool {
	_, ok := s[id]
	return ok
}

func (s UUIDSet) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}
	ids := make([]uuid.UUID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return json.Marshal(ids)
}

func (s *UUIDSet) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = nil
		return nil
	}
	var ids []uuid.UUID
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	set := make(UUIDSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	*s = set
	return nil
}

// PreferenceLevel follows the UniTime model (-2 to +2).
type PreferenceLevel int

const (
	Prohibited  PreferenceLevel = -2
	Discouraged PreferenceLevel = -1
	Neutral     PreferenceLevel = 0
	Preferred   PreferenceLevel = 1
	Required    PreferenceLevel = 2
)

// MeetingTime is a single day/time occurrence within a meeting pattern.
type MeetingTime struct {
	DayOfWeek    int       `json:"day_of_week"` // 0=Sunday .. 6=Saturday
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	BreakMinutes int       `json:"break_minutes"`
}

// Overlaps reports whether two meeting times share a day and intersect.
func (t MeetingTime) Overlaps(o MeetingTime) bool {
	if t.DayOfWeek != o.DayOfWeek {
		return false
	}
	return t.StartTime.Before(o.EndTime) && o.StartTime.Before(t.EndTime)
}

// MeetingPattern is a reusable weekly meeting pattern (e.g. MWF 9:00-9:50).
type MeetingPattern struct {
	ID                  uuid.UUID     `json:"id"`
	Name                string        `json:"name"`
	Code                string        `json:"code"`
	Times               []MeetingTime `json:"times"`
	TotalMinutesPerWeek int           `json:"total_minutes_per_week"`
	PatternType         string        `json:"pattern_type"`
}

// Overlaps reports whether two patterns share a day with intersecting times.
func (p MeetingPattern) Overlaps(o MeetingPattern) bool {
	for _, t1 := range p.Times {
		for _, t2 := range o.Times {
			if t1.Overlaps(t2) {
				return true
			}
		}
	}
	return false
}

// Days returns the set of days of week this pattern meets on.
func (p MeetingPattern) Days() map[int]struct{} {
	days := make(map[int]struct{}, len(p.Times))
	for _, t := range p.Times {
		days[t.DayOfWeek] = struct{}{}
	}
	return days
}

// DatePattern is the calendar subrange a section meets over.
type DatePattern struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	FirstDate   time.Time `json:"first_date"`
	LastDate    time.Time `json:"last_date"`
	PatternType string    `json:"pattern_type"`
}

// RoomFeature is a feature a room may offer (e.g. projector, lab bench).
type RoomFeature struct {
	ID       uuid.UUID `json:"id"`
	Code     string    `json:"code"`
	Name     string    `json:"name"`
	Quantity int       `json:"quantity"`
}

// Room is a schedulable physical space.
type Room struct {
	ID            uuid.UUID     `json:"id"`
	Code          string        `json:"code"`
	Name          string        `json:"name"`
	Capacity      int           `json:"capacity"`
	BuildingID    uuid.UUID     `json:"building_id"`
	Features      []RoomFeature `json:"features"`
	IsSchedulable bool          `json:"is_schedulable"`
}

// HasFeatures reports whether the room carries every feature id in required.
func (r Room) HasFeatures(required map[uuid.UUID]struct{}) bool {
	if len(required) == 0 {
		return true
	}
	have := make(map[uuid.UUID]struct{}, len(r.Features))
	for _, f := range r.Features {
		have[f.ID] = struct{}{}
	}
	for id := range required {
		if _, ok := have[id]; !ok {
			return false
		}
	}
	return true
}

// InstructorPreference is a time preference for an instructor.
type InstructorPreference struct {
	Day              *int             `json:"day,omitempty"`
	StartTime        *time.Time       `json:"start_time,omitempty"`
	EndTime          *time.Time       `json:"end_time,omitempty"`
	MeetingPatternID *uuid.UUID       `json:"meeting_pattern_id,omitempty"`
	Level            PreferenceLevel  `json:"level"`
}

// Matches reports whether a meeting pattern satisfies this preference's
// matching predicate (spec.md §4.3).
func (pref InstructorPreference) Matches(p MeetingPattern) bool {
	if pref.MeetingPatternID != nil {
		return p.ID == *pref.MeetingPatternID
	}
	for _, mt := range p.Times {
		if pref.Day != nil && mt.DayOfWeek != *pref.Day {
			continue
		}
		if pref.StartTime != nil && pref.EndTime != nil {
			if timeInRange(mt.StartTime, *pref.StartTime, *pref.EndTime) ||
				timeInRange(mt.EndTime, *pref.StartTime, *pref.EndTime) {
				return true
			}
			continue
		}
		if pref.Day != nil {
			return true
		}
	}
	return false
}

func timeInRange(check, start, end time.Time) bool {
	return !check.Before(start) && check.Before(end)
}

// Instructor is a person who may teach sections, subject to load bounds.
type Instructor struct {
	ID                 uuid.UUID               `json:"id"`
	Name               string                  `json:"name"`
	MinLoad            float64                 `json:"min_load"`
	MaxLoad            float64                 `json:"max_load"`
	TargetLoad         *float64                `json:"target_load,omitempty"`
	MaxCourses         *int                    `json:"max_courses,omitempty"`
	MaxPreps           *int                    `json:"max_preps,omitempty"`
	TimePreferences    []InstructorPreference  `json:"time_preferences"`
	QualifiedCourseIDs UUIDSet                 `json:"qualified_course_ids"`
}

// Course is a course definition shared by one or more sections.
type Course struct {
	ID                     uuid.UUID `json:"id"`
	Code                   string    `json:"code"`
	Name                   string    `json:"name"`
	CreditHours            float64   `json:"credit_hours"`
	RequiredRoomFeatureIDs UUIDSet   `json:"required_room_feature_ids"`
}

// Section is a single section of a course to be scheduled.
type Section struct {
	ID                       uuid.UUID  `json:"id"`
	CourseID                 uuid.UUID  `json:"course_id"`
	SectionNumber            string     `json:"section_number"`
	ExpectedEnrollment       int        `json:"expected_enrollment"`
	CreditHours              float64    `json:"credit_hours"`
	AllowedMeetingPatternIDs UUIDSet    `json:"allowed_meeting_pattern_ids"` // nil = all allowed
	AllowedRoomIDs           UUIDSet    `json:"allowed_room_ids"`            // nil = all allowed
	RequiredRoomFeatureIDs   UUIDSet    `json:"required_room_feature_ids"`
	PreferredInstructorIDs   []uuid.UUID `json:"preferred_instructor_ids"`
	AssignedInstructorIDs    []uuid.UUID `json:"assigned_instructor_ids"`
	CrossListGroupID         *uuid.UUID  `json:"cross_list_group_id,omitempty"`
	LinkGroupID              *uuid.UUID  `json:"link_group_id,omitempty"`
	IsLinkParent             bool        `json:"is_link_parent"`
	FixedMeetingPatternID    *uuid.UUID  `json:"fixed_meeting_pattern_id,omitempty"`
	FixedRoomID              *uuid.UUID  `json:"fixed_room_id,omitempty"`
	FixedDatePatternID       *uuid.UUID  `json:"fixed_date_pattern_id,omitempty"`
}

// HasAssignedInstructor reports whether id is one of the section's
// pre-assigned (not decided) instructors.
func (s Section) HasAssignedInstructor(id uuid.UUID) bool {
	for _, a := range s.AssignedInstructorIDs {
		if a == id {
			return true
		}
	}
	return false
}

// Assignment is a produced scheduling decision for one section.
type Assignment struct {
	SectionID           uuid.UUID   `json:"section_id"`
	MeetingPatternID    *uuid.UUID  `json:"meeting_pattern_id,omitempty"`
	DatePatternID       *uuid.UUID  `json:"date_pattern_id,omitempty"`
	RoomID              *uuid.UUID  `json:"room_id,omitempty"`
	InstructorIDs       []uuid.UUID `json:"instructor_ids"`
	PenaltyContribution float64     `json:"penalty_contribution"`
	IsAssigned          bool        `json:"is_assigned"`
	UnassignedReason    string      `json:"unassigned_reason,omitempty"`
}

// ConstraintViolation records a soft-constraint breach surfaced for review.
type ConstraintViolation struct {
	SectionID     uuid.UUID `json:"section_id"`
	ConstraintKey string    `json:"constraint_key"`
	Severity      string    `json:"severity"`
	Message       string    `json:"message"`
	Penalty       float64   `json:"penalty"`
}

// SolverInput is the full problem instance handed to the solver. It is
// never mutated after construction.
type SolverInput struct {
	ScheduleVersionID uuid.UUID `json:"schedule_version_id"`
	TermID            uuid.UUID `json:"term_id"`
	InstitutionID     uuid.UUID `json:"institution_id"`

	MeetingPatterns []MeetingPattern `json:"meeting_patterns"`
	DatePatterns    []DatePattern    `json:"date_patterns"`
	Rooms           []Room           `json:"rooms"`
	Instructors     []Instructor     `json:"instructors"`
	Courses         []Course         `json:"courses"`
	Sections        []Section        `json:"sections"`

	ConstraintWeights map[string]float64 `json:"constraint_weights,omitempty"`
	ConstraintOptions map[string]string  `json:"constraint_options,omitempty"`

	TimeLimitSeconds int  `json:"time_limit_seconds"`
	NumWorkers       int  `json:"num_workers"`
	LogProgress      bool `json:"log_progress"`
}

// SolverResult carries the solver's outcome status and diagnostics.
type SolverResult struct {
	Status         string  `json:"status"` // optimal, feasible, infeasible, timeout, error
	SolveTimeMs    int64   `json:"solve_time_ms"`
	ObjectiveValue float64 `json:"objective_value"`
	Branches       int64   `json:"branches"`
	Conflicts      int64   `json:"conflicts"`
	Iterations     int64   `json:"iterations"`
}

// SolverOutput is everything produced by a solve, ready for persistence.
type SolverOutput struct {
	SolverRunID uuid.UUID             `json:"solver_run_id"`
	Result      SolverResult          `json:"result"`
	Assignments []Assignment          `json:"assignments"`
	Violations  []ConstraintViolation `json:"violations"`
	Statistics  map[string]int64      `json:"statistics,omitempty"`
}

// Status string constants, mirroring the CP-SAT status mapping in spec.md §4.4.
const (
	StatusOptimal     = "optimal"
	StatusFeasible    = "feasible"
	StatusInfeasible  = "infeasible"
	StatusError       = "error"
	StatusTimeout     = "timeout"
)
