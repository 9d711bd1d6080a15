package solver

import (
	"sort"

	"github.com/google/uuid"

	"github.com/sis-scheduler/scheduler-core/internal/domain"
)

// idTable remaps UUIDs to contiguous, deterministic integer ids. Building
// it once up front (spec.md §9) collapses the section/room/pattern/
// instructor variable tables to dense matrix lookups instead of a graph
// of pointers.
type idTable struct {
	byUUID map[uuid.UUID]int
	byInt  []uuid.UUID
}

func newIDTable(ids []uuid.UUID) idTable {
	ordered := make([]uuid.UUID, len(ids))
	copy(ordered, ids)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].String() < ordered[j].String()
	})
	t := idTable{byUUID: make(map[uuid.UUID]int, len(ordered)), byInt: ordered}
	for i, id := range ordered {
		t.byUUID[id] = i
	}
	return t
}

func (t idTable) index(id uuid.UUID) (int, bool) {
	i, ok := t.byUUID[id]
	return i, ok
}

func (t idTable) len() int { return len(t.byInt) }

// remap holds the dense ids for every reference collection in a
// SolverInput, built once per solve.
type remap struct {
	patterns    idTable
	rooms       idTable
	instructors idTable
	sections    idTable
}

func buildRemap(in *domain.SolverInput) remap {
	patternIDs := make([]uuid.UUID, len(in.MeetingPatterns))
	for i, p := range in.MeetingPatterns {
		patternIDs[i] = p.ID
	}
	roomIDs := make([]uuid.UUID, len(in.Rooms))
	for i, r := range in.Rooms {
		roomIDs[i] = r.ID
	}
	instructorIDs := make([]uuid.UUID, len(in.Instructors))
	for i, ins := range in.Instructors {
		instructorIDs[i] = ins.ID
	}
	sectionIDs := make([]uuid.UUID, len(in.Sections))
	for i, s := range in.Sections {
		sectionIDs[i] = s.ID
	}
	return remap{
		patterns:    newIDTable(patternIDs),
		rooms:       newIDTable(roomIDs),
		instructors: newIDTable(instructorIDs),
		sections:    newIDTable(sectionIDs),
	}
}

// sortedSections returns sections ordered deterministically by id so that
// anchor selection in cross-list groups and search order are reproducible
// (spec.md §9, open question on anchor determinism).
func sortedSections(sections []domain.Section) []domain.Section {
	out := make([]domain.Section, len(sections))
	copy(out, sections)
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}
