package solver

import (
	"github.com/google/uuid"

	"github.com/sis-scheduler/scheduler-core/internal/domain"
)

// Default constraint weights, used when SolverInput.ConstraintWeights omits
// a key. Names match constraint_weights in the system this was ported
// from.
const (
	defaultInstructorTimeWeight = 10.0
	defaultUnderloadWeight      = 20.0
	defaultOverloadWeight       = 50.0
	defaultTargetLoadWeight     = 5.0
)

// penaltyTerm is one weighted Boolean contribution to the objective: when
// Var's solved value is 1, Weight is added to the total penalty.
type penaltyTerm struct {
	Var           *BoolVar
	Weight        float64
	SectionID     uuid.UUID
	ConstraintKey string
	Severity      string
	Message       string
}

// SoftPenalties holds every weighted instructor time-preference term
// discovered while emitting soft constraints. Workload penalties are not
// held here: workloadPenalty evaluates them directly from a completed
// assignment instead of modeling them as linear terms.
type SoftPenalties struct {
	InstructorTime []penaltyTerm
}

func (b *Builder) weightOf(key string, fallback float64) float64 {
	if b.input.ConstraintWeights == nil {
		return fallback
	}
	if w, ok := b.input.ConstraintWeights[key]; ok {
		return w
	}
	return fallback
}

// AddSoftConstraints builds the instructor time-preference penalty terms
// and promotes PROHIBITED preferences to true hard constraints (spec.md
// §9: "an intended correction" over treating PROHIBITED as merely a large
// penalty). REQUIRED is intentionally NOT promoted; it stays a soft
// reward, exactly mirroring the original distillation.
func (b *Builder) AddSoftConstraints() *SoftPenalties {
	sp := &SoftPenalties{}
	base := b.weightOf("instructor_time_preference", defaultInstructorTimeWeight)

	instructorByID := make(map[string]domain.Instructor, len(b.input.Instructors))
	for _, ins := range b.input.Instructors {
		instructorByID[ins.ID.String()] = ins
	}

	for _, s := range sortedSections(b.input.Sections) {
		si, _ := b.ids.sections.index(s.ID)
		for ii := 0; ii < b.ids.instructors.len(); ii++ {
			instructorID := b.ids.instructors.byInt[ii]
			wvar, hasW := b.InstructorVar(si, ii)
			preAssigned := s.HasAssignedInstructor(instructorID)
			if !hasW && !preAssigned {
				continue
			}
			instructor, ok := instructorByID[instructorID.String()]
			if !ok {
				continue
			}
			for _, pref := range instructor.TimePreferences {
				for _, pi := range b.candidatePatterns[si] {
					pattern := b.input.MeetingPatterns[pi]
					if !pref.Matches(pattern) {
						continue
					}
					xvar, ok := b.PatternVar(si, pi)
					if !ok {
						continue
					}
					var occupancy *BoolVar
					if preAssigned {
						occupancy = xvar
					} else {
						occupancy = b.instructorPatternProduct(si, pi, ii, xvar, wvar)
					}
					b.applyPreferenceLevel(sp, occupancy, pref.Level, base, s.ID)
				}
			}
		}
	}
	return sp
}

// applyPreferenceLevel either forces occupancy to 0 (PROHIBITED) or
// records a weighted penalty term. Weight sign follows spec.md §4.3:
// DISCOURAGED=+2*base, PREFERRED=-1*base, REQUIRED=-2*base (reward, not
// promoted to hard), NEUTRAL contributes nothing.
func (b *Builder) applyPreferenceLevel(sp *SoftPenalties, occupancy *BoolVar, level domain.PreferenceLevel, base float64, sectionID uuid.UUID) {
	switch level {
	case domain.Prohibited:
		b.model.Fix(occupancy, 0)
	case domain.Discouraged:
		sp.InstructorTime = append(sp.InstructorTime, penaltyTerm{Var: occupancy, Weight: 2 * base, SectionID: sectionID, ConstraintKey: "instructor_time_preference", Severity: "warning"})
	case domain.Preferred:
		sp.InstructorTime = append(sp.InstructorTime, penaltyTerm{Var: occupancy, Weight: -1 * base, SectionID: sectionID, ConstraintKey: "instructor_time_preference", Severity: "info"})
	case domain.Required:
		sp.InstructorTime = append(sp.InstructorTime, penaltyTerm{Var: occupancy, Weight: -2 * base, SectionID: sectionID, ConstraintKey: "instructor_time_preference", Severity: "info"})
	case domain.Neutral:
		// contributes nothing
	}
}

// workloadPenalty computes an instructor's underload/overload/target
// deviation penalty given a solved credit-hour load, scaled by 10 to work
// in integer arithmetic the way the search engine's incumbent tracking
// expects (spec.md §4.3). Evaluated directly against a candidate solution
// rather than modeled as linear terms, since aggregating per-instructor
// load into an auxiliary integer variable would require extending the
// Boolean-only model for no benefit: the search already has the full
// assignment in hand when scoring a leaf.
func workloadPenalty(instructor domain.Instructor, loadCreditHours float64, weights map[string]float64) float64 {
	underW := weightOrDefault(weights, "instructor_underload", defaultUnderloadWeight)
	overW := weightOrDefault(weights, "instructor_overload", defaultOverloadWeight)
	targetW := weightOrDefault(weights, "instructor_target_deviation", defaultTargetLoadWeight)

	scaled := loadCreditHours * 10
	minScaled := instructor.MinLoad * 10
	maxScaled := instructor.MaxLoad * 10

	var penalty float64
	if scaled < minScaled {
		penalty += underW * (minScaled - scaled)
	}
	if scaled > maxScaled {
		penalty += overW * (scaled - maxScaled)
	}
	if instructor.TargetLoad != nil {
		targetScaled := *instructor.TargetLoad * 10
		delta := scaled - targetScaled
		if delta < 0 {
			delta = -delta
		}
		penalty += targetW * delta
	}
	return penalty
}

func weightOrDefault(weights map[string]float64, key string, fallback float64) float64 {
	if weights == nil {
		return fallback
	}
	if w, ok := weights[key]; ok {
		return w
	}
	return fallback
}

// InstructorLoads sums each instructor's assigned credit hours under a
// candidate assignment: pre-assigned sections always count, decision
// sections count when their instructor-choice variable solved to 1.
// Workload is independent of which pattern or room a section lands on.
func (b *Builder) InstructorLoads(values []int) map[uuid.UUID]float64 {
	loads := make(map[uuid.UUID]float64, b.ids.instructors.len())
	for _, s := range b.input.Sections {
		si, _ := b.ids.sections.index(s.ID)
		for _, id := range s.AssignedInstructorIDs {
			loads[id] += s.CreditHours
		}
		for ii := 0; ii < b.ids.instructors.len(); ii++ {
			if wvar, ok := b.InstructorVar(si, ii); ok && values[wvar.ID] == 1 {
				loads[b.ids.instructors.byInt[ii]] += s.CreditHours
			}
		}
	}
	return loads
}

// Evaluate scores a complete candidate assignment: the sum of triggered
// instructor time-preference penalties plus every instructor's workload
// penalty. This is the ObjectiveFunc passed to Search.
func (b *Builder) Evaluate(values []int, sp *SoftPenalties) float64 {
	total := 0.0
	for _, term := range sp.InstructorTime {
		if values[term.Var.ID] == 1 {
			total += term.Weight
		}
	}
	loads := b.InstructorLoads(values)
	for _, instructor := range b.input.Instructors {
		total += workloadPenalty(instructor, loads[instructor.ID], b.input.ConstraintWeights)
	}
	return total
}

// Reserved categories named in constraint_weights but not populated with
// terms: section-level time/room preferences and back-to-back travel
// penalties. spec.md's Non-goals exclude a travel-time model entirely;
// the category stays recognized so ConstraintWeights validation never
// rejects a caller-supplied weight for it, matching the system this was
// ported from where unused weights are accepted and ignored.
const (
	categorySectionTimePreference = "section_time_preference"
	categorySectionRoomPreference = "section_room_preference"
	categoryBackToBackTravel       = "back_to_back_travel"
)
