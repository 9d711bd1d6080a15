package solver

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/sis-scheduler/scheduler-core/internal/domain"
)

// Builder allocates the decision variable tables described in spec.md
// §4.1 and enforces the "exactly one assignment" shape. It is the
// Variable Factory component.
type Builder struct {
	input *domain.SolverInput
	ids   remap
	model *Model

	overlap overlapMatrix

	// sectionPattern[sectionIdx][patternIdx] = xₛₚ
	sectionPattern map[[2]int]*BoolVar
	// sectionRoom[sectionIdx][roomIdx] = yₛᵣ
	sectionRoom map[[2]int]*BoolVar
	// sectionRoomPattern[sectionIdx][roomIdx][patternIdx] = zₛᵣₚ
	sectionRoomPattern map[[3]int]*BoolVar
	// sectionInstructor[sectionIdx][instructorIdx] = wₛᵢ (only candidates)
	sectionInstructor map[[2]int]*BoolVar

	// candidatePatterns/candidateRooms hold dense ids per section index.
	candidatePatterns map[int][]int
	candidateRooms    map[int][]int

	// instructorProduct caches AND(xₛₚ, wₛᵢ) auxiliary variables built while
	// emitting instructor-time-uniqueness constraints.
	instructorProduct map[[3]int]*BoolVar
}

// NewBuilder constructs a Builder over the given problem instance.
func NewBuilder(input *domain.SolverInput) *Builder {
	return &Builder{
		input:              input,
		ids:                buildRemap(input),
		model:              NewModel(),
		sectionPattern:     make(map[[2]int]*BoolVar),
		sectionRoom:        make(map[[2]int]*BoolVar),
		sectionRoomPattern: make(map[[3]int]*BoolVar),
		sectionInstructor:  make(map[[2]int]*BoolVar),
		candidatePatterns:  make(map[int][]int),
		candidateRooms:     make(map[int][]int),
	}
}

// Build allocates every decision variable and the assignment-shape
// constraints. Sections are processed in deterministic id order so the
// resulting model is reproducible across runs (spec.md §9).
func (b *Builder) Build() {
	b.overlap = buildOverlapMatrix(b.input.MeetingPatterns)

	ordered := sortedSections(b.input.Sections)
	for _, section := range ordered {
		si, _ := b.ids.sections.index(section.ID)
		patterns := b.allowedPatterns(section)
		rooms := b.allowedRooms(section)
		b.candidatePatterns[si] = patterns
		b.candidateRooms[si] = rooms

		patternVars := make([]*BoolVar, 0, len(patterns))
		for _, pi := range patterns {
			pattern := b.input.MeetingPatterns[pi]
			var v *BoolVar
			if section.FixedMeetingPatternID != nil {
				val := 0
				if pattern.ID == *section.FixedMeetingPatternID {
					val = 1
				}
				v = b.model.NewConstant(val, fmt.Sprintf("sp_%s_%s", section.ID, pattern.ID))
			} else {
				v = b.model.NewBoolVar(fmt.Sprintf("sp_%s_%s", section.ID, pattern.ID))
			}
			b.sectionPattern[[2]int{si, pi}] = v
			patternVars = append(patternVars, v)
		}

		roomVars := make([]*BoolVar, 0, len(rooms))
		for _, ri := range rooms {
			room := b.input.Rooms[ri]
			var v *BoolVar
			if section.FixedRoomID != nil {
				val := 0
				if room.ID == *section.FixedRoomID {
					val = 1
				}
				v = b.model.NewConstant(val, fmt.Sprintf("sr_%s_%s", section.ID, room.ID))
			} else {
				v = b.model.NewBoolVar(fmt.Sprintf("sr_%s_%s", section.ID, room.ID))
			}
			b.sectionRoom[[2]int{si, ri}] = v
			roomVars = append(roomVars, v)
		}

		for _, pi := range patterns {
			for _, ri := range rooms {
				z := b.model.NewBoolVar(fmt.Sprintf("srp_%s_%s_%s", section.ID, b.input.Rooms[ri].ID, b.input.MeetingPatterns[pi].ID))
				b.sectionRoomPattern[[3]int{si, ri, pi}] = z
				b.model.AddProductEquality(z, b.sectionPattern[[2]int{si, pi}], b.sectionRoom[[2]int{si, ri}])
			}
		}

		candidates := candidateInstructors(section)
		instructorVars := make([]*BoolVar, 0, len(candidates))
		for _, instructorID := range candidates {
			ii, ok := b.ids.instructors.index(instructorID)
			if !ok {
				continue
			}
			v := b.model.NewBoolVar(fmt.Sprintf("si_%s_%s", section.ID, instructorID))
			b.sectionInstructor[[2]int{si, ii}] = v
			instructorVars = append(instructorVars, v)
		}

		b.model.AddExactlyOne(patternVars)
		b.model.AddExactlyOne(roomVars)
		if len(section.AssignedInstructorIDs) == 0 {
			b.model.AddAtMostOne(instructorVars)
		}
	}
}

// allowedPatterns returns the dense pattern ids candidate for a section:
// the intersection of AllowedMeetingPatternIDs with all patterns, or all
// patterns when unset (spec.md §4.1).
func (b *Builder) allowedPatterns(s domain.Section) []int {
	if s.AllowedMeetingPatternIDs == nil {
		out := make([]int, len(b.input.MeetingPatterns))
		for i := range b.input.MeetingPatterns {
			out[i] = i
		}
		return out
	}
	var out []int
	for i, p := range b.input.MeetingPatterns {
		if _, ok := s.AllowedMeetingPatternIDs[p.ID]; ok {
			out = append(out, i)
		}
	}
	return out
}

// allowedRooms returns the dense room ids candidate for a section.
func (b *Builder) allowedRooms(s domain.Section) []int {
	if s.AllowedRoomIDs == nil {
		out := make([]int, len(b.input.Rooms))
		for i := range b.input.Rooms {
			out[i] = i
		}
		return out
	}
	var out []int
	for i, r := range b.input.Rooms {
		if _, ok := s.AllowedRoomIDs[r.ID]; ok {
			out = append(out, i)
		}
	}
	return out
}

// candidateInstructors returns preferred instructors minus those already
// pre-assigned, the set that gets a real decision variable (spec.md §4.1).
func candidateInstructors(s domain.Section) []uuid.UUID {
	assigned := make(map[uuid.UUID]struct{}, len(s.AssignedInstructorIDs))
	for _, id := range s.AssignedInstructorIDs {
		assigned[id] = struct{}{}
	}
	var out []uuid.UUID
	seen := make(map[uuid.UUID]struct{})
	for _, id := range s.PreferredInstructorIDs {
		if _, skip := assigned[id]; skip {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// PatternVar returns xₛₚ for the given dense section/pattern ids, if any.
func (b *Builder) PatternVar(si, pi int) (*BoolVar, bool) {
	v, ok := b.sectionPattern[[2]int{si, pi}]
	return v, ok
}

// RoomVar returns yₛᵣ for the given dense section/room ids, if any.
func (b *Builder) RoomVar(si, ri int) (*BoolVar, bool) {
	v, ok := b.sectionRoom[[2]int{si, ri}]
	return v, ok
}

// RoomPatternVar returns zₛᵣₚ for the given dense ids, if any.
func (b *Builder) RoomPatternVar(si, ri, pi int) (*BoolVar, bool) {
	v, ok := b.sectionRoomPattern[[3]int{si, ri, pi}]
	return v, ok
}

// InstructorVar returns wₛᵢ for the given dense section/instructor ids,
// if a decision variable was allocated (pre-assigned instructors never
// get one).
func (b *Builder) InstructorVar(si, ii int) (*BoolVar, bool) {
	v, ok := b.sectionInstructor[[2]int{si, ii}]
	return v, ok
}
