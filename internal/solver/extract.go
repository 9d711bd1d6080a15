package solver

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/sis-scheduler/scheduler-core/internal/domain"
)

// unassignedReason is the single literal spec.md §4.4 and the CP-SAT
// extractor this was ported from (_extract_solution) both use for every
// unassigned section, regardless of whether the cause was an infeasible
// model, a missing pattern, or a missing room.
const unassignedReason = "No feasible assignment found"

// Extract turns a completed SearchResult into the section-level
// assignments and constraint violations spec.md §4.4 describes. When
// result.Values is nil (infeasible or timeout-with-no-incumbent) every
// section comes back unassigned with unassignedReason.
func (b *Builder) Extract(result SearchResult, sp *SoftPenalties) ([]domain.Assignment, []domain.ConstraintViolation) {
	assignments := make([]domain.Assignment, 0, len(b.input.Sections))
	var violations []domain.ConstraintViolation

	defaultDatePatternID := func(s domain.Section) *uuid.UUID {
		if s.FixedDatePatternID != nil {
			return s.FixedDatePatternID
		}
		if len(b.input.DatePatterns) > 0 {
			id := b.input.DatePatterns[0].ID
			return &id
		}
		return nil
	}

	for _, s := range sortedSections(b.input.Sections) {
		si, _ := b.ids.sections.index(s.ID)

		if result.Values == nil {
			assignments = append(assignments, domain.Assignment{
				SectionID:        s.ID,
				IsAssigned:       false,
				UnassignedReason: unassignedReason,
			})
			continue
		}

		patternID := findSelected(result.Values, b.candidatePatterns[si], func(pi int) *BoolVar {
			v, _ := b.PatternVar(si, pi)
			return v
		}, func(pi int) uuid.UUID {
			return b.input.MeetingPatterns[pi].ID
		})
		roomID := findSelected(result.Values, b.candidateRooms[si], func(ri int) *BoolVar {
			v, _ := b.RoomVar(si, ri)
			return v
		}, func(ri int) uuid.UUID {
			return b.input.Rooms[ri].ID
		})

		instructors := append([]uuid.UUID(nil), s.AssignedInstructorIDs...)
		for ii := 0; ii < b.ids.instructors.len(); ii++ {
			if wvar, ok := b.InstructorVar(si, ii); ok && result.Values[wvar.ID] == 1 {
				instructors = append(instructors, b.ids.instructors.byInt[ii])
			}
		}

		assignment := domain.Assignment{
			SectionID:     s.ID,
			InstructorIDs: instructors,
		}

		switch {
		case patternID == nil, roomID == nil:
			assignment.IsAssigned = false
			assignment.UnassignedReason = unassignedReason
		default:
			assignment.IsAssigned = true
			assignment.MeetingPatternID = patternID
			assignment.RoomID = roomID
			assignment.DatePatternID = defaultDatePatternID(s)
		}

		assignments = append(assignments, assignment)
	}

	penaltyBySection := make(map[uuid.UUID]float64)
	for _, term := range sp.InstructorTime {
		if result.Values != nil && result.Values[term.Var.ID] == 1 {
			penaltyBySection[term.SectionID] += term.Weight
			violations = append(violations, domain.ConstraintViolation{
				SectionID:     term.SectionID,
				ConstraintKey: term.ConstraintKey,
				Severity:      term.Severity,
				Message:       "instructor time preference triggered",
				Penalty:       term.Weight,
			})
		}
	}
	for i, a := range assignments {
		assignments[i].PenaltyContribution = penaltyBySection[a.SectionID]
	}

	if result.Values != nil {
		loads := b.InstructorLoads(result.Values)
		for _, instructor := range b.input.Instructors {
			penalty := workloadPenalty(instructor, loads[instructor.ID], b.input.ConstraintWeights)
			if penalty > 0 {
				violations = append(violations, domain.ConstraintViolation{
					SectionID:     uuid.Nil,
					ConstraintKey: "instructor_workload",
					Severity:      "warning",
					Message:       fmt.Sprintf("instructor %s workload penalty %.2f", instructor.ID, penalty),
					Penalty:       penalty,
				})
			}
		}
	}

	return assignments, violations
}

// findSelected returns the uuid of whichever candidate's variable solved
// to 1, or nil if none did (which should only happen when the model
// itself forced every candidate to 0, signalling infeasibility for that
// section alone within an otherwise feasible solve).
func findSelected(values []int, candidates []int, varOf func(int) *BoolVar, idOf func(int) uuid.UUID) *uuid.UUID {
	for _, c := range candidates {
		v := varOf(c)
		if v == nil {
			continue
		}
		if values[v.ID] == 1 {
			id := idOf(c)
			return &id
		}
	}
	return nil
}
