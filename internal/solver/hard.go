package solver

import (
	"time"

	"github.com/google/uuid"

	"github.com/sis-scheduler/scheduler-core/internal/domain"
)

// AddHardConstraints emits every hard constraint described in spec.md §4.2
// onto b's model: room-time uniqueness, instructor-time uniqueness, room
// capacity, room features, cross-listing equality, and linked-section
// temporal coupling. Each generator mirrors one function from
// constraints/hard.py in the system this was ported from.
func (b *Builder) AddHardConstraints() {
	b.addRoomTimeUniqueness()
	b.addInstructorTimeUniqueness()
	b.addCapacity()
	b.addFeatures()
	b.addCrossListEquality()
	b.addLinkedSections()
}

// addRoomTimeUniqueness forbids two sections from sharing a room at the
// same pattern, and forbids any two from sharing a room across a pair of
// overlapping patterns. A cross-list group counts once, through its anchor
// (its first section in id order): addCrossListEquality forces the other
// members onto the anchor's room and pattern.
func (b *Builder) addRoomTimeUniqueness() {
	var sections []domain.Section
	seenGroup := make(map[uuid.UUID]bool)
	for _, s := range sortedSections(b.input.Sections) {
		if s.CrossListGroupID != nil {
			if seenGroup[*s.CrossListGroupID] {
				continue
			}
			seenGroup[*s.CrossListGroupID] = true
		}
		sections = append(sections, s)
	}
	nRooms := b.ids.rooms.len()
	nPatterns := b.ids.patterns.len()

	for ri := 0; ri < nRooms; ri++ {
		for pi := 0; pi < nPatterns; pi++ {
			var same []*BoolVar
			for _, s := range sections {
				si, _ := b.ids.sections.index(s.ID)
				if z, ok := b.RoomPatternVar(si, ri, pi); ok {
					same = append(same, z)
				}
			}
			b.model.AddAtMostOne(same)
		}
		for _, pair := range b.overlap.pairs() {
			p1, p2 := pair[0], pair[1]
			var both []*BoolVar
			for _, s := range sections {
				si, _ := b.ids.sections.index(s.ID)
				if z1, ok := b.RoomPatternVar(si, ri, p1); ok {
					both = append(both, z1)
				}
				if z2, ok := b.RoomPatternVar(si, ri, p2); ok {
					both = append(both, z2)
				}
			}
			b.model.AddAtMostOne(both)
		}
	}
}

// addInstructorTimeUniqueness forbids an instructor from being occupied by
// two sections at the same or overlapping patterns, across both
// decision-variable instructor assignments and pre-assigned ones.
func (b *Builder) addInstructorTimeUniqueness() {
	nPatterns := b.ids.patterns.len()
	for ii := 0; ii < b.ids.instructors.len(); ii++ {
		for pi := 0; pi < nPatterns; pi++ {
			b.addInstructorOccupancyBound(ii, pi, pi)
		}
		for _, pair := range b.overlap.pairs() {
			b.addInstructorOccupancyBound(ii, pair[0], pair[1])
		}
	}
}

// addInstructorOccupancyBound bounds to at most one the number of sections
// that occupy instructor ii across patterns p1 and p2 (p1 may equal p2).
// A pre-assigned instructor's occupancy for a pattern is the section's
// pattern-choice variable directly; a candidate instructor's occupancy is
// the AND of the pattern choice and the instructor-choice variable.
func (b *Builder) addInstructorOccupancyBound(ii, p1, p2 int) {
	instructorID := b.ids.instructors.byInt[ii]
	patterns := uniqueInts(p1, p2)
	var terms []Term
	for _, s := range sortedSections(b.input.Sections) {
		si, _ := b.ids.sections.index(s.ID)
		preAssigned := s.HasAssignedInstructor(instructorID)
		wvar, hasW := b.InstructorVar(si, ii)
		if !preAssigned && !hasW {
			continue
		}
		for _, pi := range patterns {
			xvar, ok := b.PatternVar(si, pi)
			if !ok {
				continue
			}
			if preAssigned {
				terms = append(terms, Term{Var: xvar, Coeff: 1})
			} else {
				z := b.instructorPatternProduct(si, pi, ii, xvar, wvar)
				terms = append(terms, Term{Var: z, Coeff: 1})
			}
		}
	}
	if len(terms) == 0 {
		return
	}
	b.model.AddLE(terms, 1)
}

// uniqueInts returns {a} if a==b, else {a,b}.
func uniqueInts(a, b int) []int {
	if a == b {
		return []int{a}
	}
	return []int{a, b}
}

// instructorPatternProduct returns (building if necessary) the auxiliary
// variable z = xvar AND wvar, cached per (section,pattern,instructor)
// triple so repeated lookups across overlapping pairs don't duplicate
// constraints.
func (b *Builder) instructorPatternProduct(si, pi, ii int, xvar, wvar *BoolVar) *BoolVar {
	if b.instructorProduct == nil {
		b.instructorProduct = make(map[[3]int]*BoolVar)
	}
	key := [3]int{si, pi, ii}
	if z, ok := b.instructorProduct[key]; ok {
		return z
	}
	z := b.model.NewBoolVar("ip_product")
	b.model.AddProductEquality(z, xvar, wvar)
	b.instructorProduct[key] = z
	return z
}

// addCapacity forces yₛᵣ to 0 whenever a room's capacity is below a
// section's expected enrollment.
func (b *Builder) addCapacity() {
	for _, s := range b.input.Sections {
		si, _ := b.ids.sections.index(s.ID)
		for _, ri := range b.candidateRooms[si] {
			room := b.input.Rooms[ri]
			if room.Capacity < s.ExpectedEnrollment {
				if v, ok := b.RoomVar(si, ri); ok {
					b.model.Fix(v, 0)
				}
			}
		}
	}
}

// addFeatures forces yₛᵣ to 0 whenever a room lacks a feature required by
// the section or its course.
func (b *Builder) addFeatures() {
	courseByID := make(map[uuid.UUID]domain.Course, len(b.input.Courses))
	for _, c := range b.input.Courses {
		courseByID[c.ID] = c
	}
	for _, s := range b.input.Sections {
		si, _ := b.ids.sections.index(s.ID)
		required := make(map[uuid.UUID]struct{})
		for id := range s.RequiredRoomFeatureIDs {
			required[id] = struct{}{}
		}
		if course, ok := courseByID[s.CourseID]; ok {
			for id := range course.RequiredRoomFeatureIDs {
				required[id] = struct{}{}
			}
		}
		if len(required) == 0 {
			continue
		}
		for _, ri := range b.candidateRooms[si] {
			room := b.input.Rooms[ri]
			if !room.HasFeatures(required) {
				if v, ok := b.RoomVar(si, ri); ok {
					b.model.Fix(v, 0)
				}
			}
		}
	}
}

// addCrossListEquality forces every section within a cross-listing group
// to share the same meeting pattern and room as the group's anchor (the
// first section in deterministic order, spec.md §9).
func (b *Builder) addCrossListEquality() {
	groups := make(map[uuid.UUID][]domain.Section)
	var order []uuid.UUID
	for _, s := range sortedSections(b.input.Sections) {
		if s.CrossListGroupID == nil {
			continue
		}
		key := *s.CrossListGroupID
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], s)
	}
	for _, key := range order {
		members := groups[key]
		if len(members) < 2 {
			continue
		}
		anchor := members[0]
		anchorIdx, _ := b.ids.sections.index(anchor.ID)
		for _, member := range members[1:] {
			memberIdx, _ := b.ids.sections.index(member.ID)
			b.equateAcross(anchorIdx, memberIdx, b.ids.patterns.len(), b.PatternVar)
			b.equateAcross(anchorIdx, memberIdx, b.ids.rooms.len(), b.RoomVar)
		}
	}
}

// equateAcross forces varOf(anchorIdx, k) == varOf(memberIdx, k) for every
// k in [0,n). When only one side has a variable (the other fixed to a
// constant by an allowed-set restriction), the present side is forced to 0.
func (b *Builder) equateAcross(anchorIdx, memberIdx, n int, varOf func(int, int) (*BoolVar, bool)) {
	for k := 0; k < n; k++ {
		av, aok := varOf(anchorIdx, k)
		mv, mok := varOf(memberIdx, k)
		switch {
		case aok && mok:
			b.model.AddEQ([]Term{{av, 1}, {mv, -1}}, 0)
		case aok && !mok:
			b.model.Fix(av, 0)
		case mok && !aok:
			b.model.Fix(mv, 0)
		}
	}
}

// addLinkedSections couples parent/child sections in a link group
// according to the group's connector type: immediately_after (default
// 30-minute gap), same_day, or different_day. A parent's chosen pattern
// must admit at least one compatible pattern choice for every child; for
// same_day and different_day, a parent pattern with no compatible child
// pattern at all is left unconstrained by that child.
func (b *Builder) addLinkedSections() {
	groups := make(map[uuid.UUID][]domain.Section)
	var order []uuid.UUID
	for _, s := range sortedSections(b.input.Sections) {
		if s.LinkGroupID == nil {
			continue
		}
		key := *s.LinkGroupID
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], s)
	}

	connectorType := b.input.ConstraintOptions["link_connector_type"]
	if connectorType == "" {
		connectorType = "immediately_after"
	}
	const defaultGapMinutes = 30

	for _, key := range order {
		members := groups[key]
		if len(members) < 2 {
			continue
		}
		parent := members[0]
		for _, m := range members {
			if m.IsLinkParent {
				parent = m
				break
			}
		}
		parentIdx, _ := b.ids.sections.index(parent.ID)

		for _, child := range members {
			if child.ID == parent.ID {
				continue
			}
			childIdx, _ := b.ids.sections.index(child.ID)
			b.coupleLinkedPair(parentIdx, childIdx, connectorType, defaultGapMinutes)
		}
	}
}

// coupleLinkedPair constrains parentIdx's pattern choice to imply a
// compatible pattern choice on childIdx.
func (b *Builder) coupleLinkedPair(parentIdx, childIdx int, connectorType string, gapMinutes int) {
	for _, pp := range b.candidatePatterns[parentIdx] {
		parentVar, ok := b.PatternVar(parentIdx, pp)
		if !ok {
			continue
		}
		parentPattern := b.input.MeetingPatterns[pp]
		compatible := b.compatibleChildPatterns(parentPattern, childIdx, connectorType, gapMinutes)
		if len(compatible) == 0 {
			if connectorType == "immediately_after" {
				b.model.Fix(parentVar, 0)
			}
			continue
		}
		terms := []Term{{Var: parentVar, Coeff: 1}}
		for _, cp := range compatible {
			if childVar, ok := b.PatternVar(childIdx, cp); ok {
				terms = append(terms, Term{Var: childVar, Coeff: -1})
			}
		}
		b.model.AddLE(terms, 0)
	}
}

// compatibleChildPatterns returns the dense pattern ids of child that are
// compatible with parentPattern under the given connector type.
func (b *Builder) compatibleChildPatterns(parentPattern domain.MeetingPattern, childIdx int, connectorType string, gapMinutes int) []int {
	var out []int
	for _, cp := range b.candidatePatterns[childIdx] {
		childPattern := b.input.MeetingPatterns[cp]
		if patternsCompatible(parentPattern, childPattern, connectorType, gapMinutes) {
			out = append(out, cp)
		}
	}
	return out
}

// patternsCompatible mirrors _patterns_compatible_immediately_after and its
// same_day/different_day siblings.
func patternsCompatible(parent, child domain.MeetingPattern, connectorType string, gapMinutes int) bool {
	switch connectorType {
	case "same_day":
		for d := range parent.Days() {
			if _, ok := child.Days()[d]; ok {
				return true
			}
		}
		return false
	case "different_day":
		if len(parent.Days()) == 0 || len(child.Days()) == 0 {
			return false
		}
		for d := range parent.Days() {
			if _, ok := child.Days()[d]; ok {
				return false
			}
		}
		return true
	default: // immediately_after
		maxGap := time.Duration(gapMinutes) * time.Minute
		for _, pt := range parent.Times {
			for _, ct := range child.Times {
				if pt.DayOfWeek != ct.DayOfWeek {
					continue
				}
				gap := ct.StartTime.Sub(pt.EndTime)
				if gap >= 0 && gap <= maxGap {
					return true
				}
			}
		}
		return false
	}
}
