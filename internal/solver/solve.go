package solver

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sis-scheduler/scheduler-core/internal/domain"
)

const (
	defaultTimeLimitSeconds = 300
	defaultNumWorkers       = 4
)

// Solve builds the model for in, searches it, and returns the output
// ready for persistence. It mirrors the orchestration in the CP-SAT
// solver this engine replaces: build variables, emit hard and soft
// constraints, search, extract.
func Solve(ctx context.Context, runID uuid.UUID, in *domain.SolverInput) domain.SolverOutput {
	start := time.Now()

	timeLimit := in.TimeLimitSeconds
	if timeLimit <= 0 {
		timeLimit = defaultTimeLimitSeconds
	}
	numWorkers := in.NumWorkers
	if numWorkers <= 0 {
		numWorkers = defaultNumWorkers
	}

	b := NewBuilder(in)
	b.Build()
	b.AddHardConstraints()
	sp := b.AddSoftConstraints()

	objective := func(values []int) float64 {
		return b.Evaluate(values, sp)
	}

	deadline := start.Add(time.Duration(timeLimit) * time.Second)
	result := Search(ctx, b.model, objective, deadline, numWorkers)

	assignments, violations := b.Extract(result, sp)

	elapsed := time.Since(start)
	assigned := 0
	for _, a := range assignments {
		if a.IsAssigned {
			assigned++
		}
	}

	return domain.SolverOutput{
		SolverRunID: runID,
		Result: domain.SolverResult{
			Status:         result.Status,
			SolveTimeMs:    elapsed.Milliseconds(),
			ObjectiveValue: result.ObjectiveValue,
			Branches:       result.Branches,
			Conflicts:      result.Conflicts,
			Iterations:     0,
		},
		Assignments: assignments,
		Violations:  violations,
		Statistics: map[string]int64{
			"num_variables":       int64(len(b.model.Vars())),
			"num_constraints":     int64(len(b.model.constraints)),
			"assigned_sections":   int64(assigned),
			"unassigned_sections": int64(len(assignments) - assigned),
		},
	}
}
