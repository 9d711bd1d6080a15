package solver

import (
	"context"
	"sync"
	"time"
)

// ObjectiveFunc scores a complete 0/1 assignment (indexed by BoolVar.ID);
// lower is better.
type ObjectiveFunc func(values []int) float64

// SearchResult is the outcome of exploring a Model to completion or to a
// deadline.
type SearchResult struct {
	Status         string
	Values         []int // indexed by BoolVar.ID; nil unless a feasible solution was found
	ObjectiveValue float64
	Branches       int64
	Conflicts      int64
}

// Search explores every feasible completion of m's hard constraints within
// the deadline, minimizing objective. numWorkers independent depth-first
// searches race against a shared incumbent, each visiting variables in a
// different but fixed order so the race stays reproducible for a given
// worker count (spec.md §9: no time- or rand-seeded nondeterminism). The
// propagation step is unit propagation over each constraint's slack,
// mirroring the constraint-slack reasoning described for the search
// engine rather than a full simplex relaxation.
func Search(ctx context.Context, m *Model, objective ObjectiveFunc, deadline time.Time, numWorkers int) SearchResult {
	if numWorkers < 1 {
		numWorkers = 1
	}
	n := len(m.vars)
	initial := make([]int, n)
	for i, v := range m.vars {
		if v.Fixed != nil {
			initial[i] = *v.Fixed
		} else {
			initial[i] = -1
		}
	}

	searchCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	shared := &incumbent{}
	var wg sync.WaitGroup
	exhaustiveCount := make([]bool, numWorkers)
	branchCounts := make([]int64, numWorkers)
	conflictCounts := make([]int64, numWorkers)

	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		order := variableOrder(n, w)
		go func(worker int, order []int) {
			defer wg.Done()
			run := &searchRun{model: m, objective: objective, order: order, shared: shared}
			values := make([]int, n)
			copy(values, initial)
			run.dfs(searchCtx, values)
			exhaustiveCount[worker] = searchCtx.Err() == nil
			branchCounts[worker] = run.branches
			conflictCounts[worker] = run.conflicts
		}(w, order)
	}
	wg.Wait()

	var totalBranches, totalConflicts int64
	anyExhaustive := false
	for w := 0; w < numWorkers; w++ {
		totalBranches += branchCounts[w]
		totalConflicts += conflictCounts[w]
		if exhaustiveCount[w] {
			anyExhaustive = true
		}
	}

	shared.mu.Lock()
	haveIncumbent := shared.have
	bestValues := shared.values
	bestObjective := shared.objective
	shared.mu.Unlock()

	result := SearchResult{Branches: totalBranches, Conflicts: totalConflicts}
	switch {
	case haveIncumbent && anyExhaustive:
		result.Status = "optimal"
		result.Values = bestValues
		result.ObjectiveValue = bestObjective
	case haveIncumbent:
		result.Status = "feasible"
		result.Values = bestValues
		result.ObjectiveValue = bestObjective
	case anyExhaustive:
		result.Status = "infeasible"
	default:
		result.Status = "timeout"
	}
	return result
}

// variableOrder returns a fixed permutation of [0,n) for the given worker
// index: worker 0 uses ascending id order, subsequent workers use simple
// deterministic rotations so multiple goroutines explore the tree along
// genuinely different paths without relying on randomness.
func variableOrder(n, worker int) []int {
	order := make([]int, n)
	if n == 0 {
		return order
	}
	shift := worker % n
	for i := 0; i < n; i++ {
		order[i] = (i + shift) % n
	}
	if worker%2 == 1 {
		for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
			order[i], order[j] = order[j], order[i]
		}
	}
	return order
}

// incumbent is the best complete assignment found so far, shared across
// search workers for final reporting. Workers do not prune against it.
type incumbent struct {
	mu        sync.Mutex
	have      bool
	values    []int
	objective float64
}

func (inc *incumbent) consider(values []int, objective float64) {
	inc.mu.Lock()
	defer inc.mu.Unlock()
	better := !inc.have || objective < inc.objective
	if !better && objective == inc.objective {
		// Equal objectives: keep the lexicographically smaller assignment so
		// the result does not depend on which worker reached it first.
		for i := range values {
			if values[i] != inc.values[i] {
				better = values[i] < inc.values[i]
				break
			}
		}
	}
	if better {
		inc.have = true
		inc.objective = objective
		inc.values = append([]int(nil), values...)
	}
}

type searchRun struct {
	model     *Model
	objective ObjectiveFunc
	order     []int
	shared    *incumbent

	branches  int64
	conflicts int64
}

// dfs explores the subtree rooted at values (-1 meaning unassigned).
func (r *searchRun) dfs(ctx context.Context, values []int) {
	select {
	case <-ctx.Done():
		return
	default:
	}
	r.branches++

	propagated, ok := propagate(r.model.constraints, values)
	if !ok {
		r.conflicts++
		return
	}

	idx := r.nextUnassigned(propagated)
	if idx < 0 {
		objective := r.objective(propagated)
		r.shared.consider(propagated, objective)
		return
	}

	for _, val := range [2]int{1, 0} {
		next := append([]int(nil), propagated...)
		next[idx] = val
		r.dfs(ctx, next)
	}
}

// nextUnassigned returns the first unassigned variable id in r.order, or
// -1 if the assignment is complete.
func (r *searchRun) nextUnassigned(values []int) int {
	for _, id := range r.order {
		if values[id] == -1 {
			return id
		}
	}
	return -1
}

// propagate applies unit propagation to a fixed point: a free variable is
// forced to whichever value (0 or 1) remains consistent with every
// constraint's slack once every other free variable in that constraint is
// given its best-case contribution. Returns ok=false the moment any
// constraint cannot be satisfied no matter how remaining free variables
// are assigned.
func propagate(constraints []constraint, values []int) ([]int, bool) {
	out := append([]int(nil), values...)
	changed := true
	for changed {
		changed = false
		for _, c := range constraints {
			sumFixed := 0
			type freeTerm struct {
				id    int
				coeff int
			}
			var free []freeTerm
			for _, t := range c.terms {
				v := out[t.Var.ID]
				if v == -1 {
					free = append(free, freeTerm{id: t.Var.ID, coeff: t.Coeff})
				} else {
					sumFixed += t.Coeff * v
				}
			}
			slack := c.bound - sumFixed
			if len(free) == 0 {
				if slack < 0 {
					return nil, false
				}
				continue
			}
			minRemaining := 0
			for _, t := range free {
				if t.coeff < 0 {
					minRemaining += t.coeff
				}
			}
			if minRemaining > slack {
				return nil, false
			}
			for _, t := range free {
				if out[t.id] != -1 {
					continue
				}
				ownMin := 0
				if t.coeff < 0 {
					ownMin = t.coeff
				}
				othersMin := minRemaining - ownMin
				val1OK := t.coeff+othersMin <= slack
				val0OK := othersMin <= slack
				switch {
				case !val1OK && !val0OK:
					return nil, false
				case !val1OK:
					out[t.id] = 0
					changed = true
				case !val0OK:
					out[t.id] = 1
					changed = true
				}
			}
		}
	}
	return out, true
}
