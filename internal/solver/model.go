// Package solver builds the constraint-programming model for a scheduling
// problem instance and searches it for an assignment that satisfies every
// hard constraint while minimizing the weighted sum of soft-constraint
// penalties.
//
// The model is a 0/1 integer program: Boolean decision variables plus
// linear inequality/equality constraints over them. Boolean AND is
// linearized the standard way (z <= a, z <= b, z >= a+b-1) rather than
// relying on a CP-SAT-style multiplication-equality primitive, since no
// such backend is available in this ecosystem — see SPEC_FULL.md §1.
package solver

import "fmt"

// BoolVar is a 0/1 decision variable. Variables whose Fixed pointer is
// non-nil are constants folded in at model-build time but still occupy a
// slot so every section's variable tables stay uniformly indexed.
type BoolVar struct {
	ID    int
	Name  string
	Fixed *int
}

// IsFixed reports whether the variable was built as a constant.
func (v *BoolVar) IsFixed() bool { return v.Fixed != nil }

// Term is one coefficient·variable addend in a linear constraint.
type Term struct {
	Var   *BoolVar
	Coeff int
}

type constraintKind int

const (
	kindLE constraintKind = iota // sum(coeff*var) <= bound
)

type constraint struct {
	terms []Term
	bound int
	kind  constraintKind
}

// Model collects the decision variables and constraints built for a
// SolverInput. It owns no state beyond its own variable table — per
// spec.md §9 a solve is a value, not a singleton.
type Model struct {
	vars        []*BoolVar
	constraints []constraint
}

// NewModel returns an empty model.
func NewModel() *Model {
	return &Model{}
}

// NewBoolVar allocates a fresh free Boolean variable.
func (m *Model) NewBoolVar(name string) *BoolVar {
	v := &BoolVar{ID: len(m.vars), Name: name}
	m.vars = append(m.vars, v)
	return v
}

// NewConstant allocates a variable fixed to 0 or 1. It still consumes a
// variable id so section tables stay uniformly shaped (spec.md §4.1).
func (m *Model) NewConstant(value int, name string) *BoolVar {
	v := m.NewBoolVar(name)
	val := value
	v.Fixed = &val
	return v
}

// Vars returns every variable allocated in the model, in allocation order.
func (m *Model) Vars() []*BoolVar { return m.vars }

// AddLE adds the constraint sum(coeff*var) <= bound.
func (m *Model) AddLE(terms []Term, bound int) {
	m.constraints = append(m.constraints, constraint{terms: terms, bound: bound, kind: kindLE})
}

// AddEQ adds the constraint sum(coeff*var) == bound, encoded as two LE
// constraints.
func (m *Model) AddEQ(terms []Term, bound int) {
	m.AddLE(terms, bound)
	negated := make([]Term, len(terms))
	for i, t := range terms {
		negated[i] = Term{Var: t.Var, Coeff: -t.Coeff}
	}
	m.AddLE(negated, -bound)
}

// AddExactlyOne constrains sum(vars) == 1. No-op on an empty slice.
func (m *Model) AddExactlyOne(vars []*BoolVar) {
	if len(vars) == 0 {
		return
	}
	m.AddEQ(unitTerms(vars), 1)
}

// AddAtMostOne constrains sum(vars) <= 1.
func (m *Model) AddAtMostOne(vars []*BoolVar) {
	if len(vars) == 0 {
		return
	}
	m.AddLE(unitTerms(vars), 1)
}

// AddAtMostK constrains sum(vars) <= k.
func (m *Model) AddAtMostK(vars []*BoolVar, k int) {
	if len(vars) == 0 {
		return
	}
	m.AddLE(unitTerms(vars), k)
}

// Fix forces v to a constant value by folding it into Fixed. Used to
// promote PROHIBITED instructor preferences to a true hard constraint
// (spec.md §9).
func (m *Model) Fix(v *BoolVar, value int) {
	val := value
	v.Fixed = &val
}

// AddProductEquality constrains z == a AND b via the standard
// linearization (spec.md §9): z<=a, z<=b, z>=a+b-1.
func (m *Model) AddProductEquality(z, a, b *BoolVar) {
	m.AddLE([]Term{{z, 1}, {a, -1}}, 0)
	m.AddLE([]Term{{z, 1}, {b, -1}}, 0)
	m.AddLE([]Term{{a, -1}, {b, -1}, {z, 1}}, -1)
}

func unitTerms(vars []*BoolVar) []Term {
	terms := make([]Term, len(vars))
	for i, v := range vars {
		terms[i] = Term{Var: v, Coeff: 1}
	}
	return terms
}

// String renders a human-readable constraint for debugging/logging.
func (c constraint) String() string {
	s := ""
	for i, t := range c.terms {
		if i > 0 {
			s += " + "
		}
		s += fmt.Sprintf("%d*%s", t.Coeff, t.Var.Name)
	}
	return fmt.Sprintf("%s <= %d", s, c.bound)
}
