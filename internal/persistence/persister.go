// Package persistence writes a completed solve back to the scheduling
// schema inside a single transaction, and commits a draft schedule
// version to published.
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/sis-scheduler/scheduler-core/internal/domain"
	appErrors "github.com/sis-scheduler/scheduler-core/pkg/errors"
)

// txProvider abstracts transaction creation so tests can swap in a
// sqlmock-backed implementation.
type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// Persister performs the atomic write described in spec.md §4.5: a
// solver_runs upsert, expiry of the previously-live solver assignments,
// insertion of the new assignment/instructor/violation rows, all inside
// one transaction.
type Persister struct {
	tx     txProvider
	logger *zap.Logger
}

// NewPersister constructs a Persister.
func NewPersister(tx txProvider, logger *zap.Logger) *Persister {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Persister{tx: tx, logger: logger}
}

type solveStats struct {
	SolveTimeMs int64 `json:"solve_time_ms"`
	Branches    int64 `json:"branches"`
	Conflicts   int64 `json:"conflicts"`
}

// Persist writes a completed solve for scheduleVersionID. On any failure
// the whole transaction is rolled back and no partial state becomes
// visible to other readers.
func (p *Persister) Persist(ctx context.Context, scheduleVersionID uuid.UUID, out domain.SolverOutput) (err error) {
	if p.tx == nil {
		return appErrors.Clone(appErrors.ErrPersistenceError, "transaction provider unavailable")
	}

	tx, err := p.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrPersistenceError.Code, appErrors.ErrPersistenceError.Status, "failed to begin persistence transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	assigned, unassigned := 0, 0
	var totalPenalty float64
	for _, a := range out.Assignments {
		if a.IsAssigned {
			assigned++
		} else {
			unassigned++
		}
		totalPenalty += a.PenaltyContribution
	}

	statsBytes, marshalErr := json.Marshal(solveStats{
		SolveTimeMs: out.Result.SolveTimeMs,
		Branches:    out.Result.Branches,
		Conflicts:   out.Result.Conflicts,
	})
	if marshalErr != nil {
		err = appErrors.Wrap(marshalErr, appErrors.ErrPersistenceError.Code, appErrors.ErrPersistenceError.Status, "failed to encode solve statistics")
		return err
	}

	const upsertRun = `
		INSERT INTO scheduling.solver_runs
			(id, schedule_version_id, status, input_sections, assigned_sections,
			 unassigned_sections, total_penalty, stats, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			input_sections = EXCLUDED.input_sections,
			assigned_sections = EXCLUDED.assigned_sections,
			unassigned_sections = EXCLUDED.unassigned_sections,
			total_penalty = EXCLUDED.total_penalty,
			stats = EXCLUDED.stats,
			completed_at = EXCLUDED.completed_at`
	if _, err = tx.ExecContext(ctx, upsertRun,
		out.SolverRunID, scheduleVersionID, out.Result.Status,
		len(out.Assignments), assigned, unassigned, totalPenalty,
		types.JSONText(statsBytes),
	); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrPersistenceError.Code, appErrors.ErrPersistenceError.Status, "failed to upsert solver run")
		return err
	}

	const expireLive = `
		UPDATE scheduling.section_assignments
		SET valid_to = now()
		WHERE schedule_version_id = $1 AND source = 'solver' AND valid_to IS NULL`
	if _, err = tx.ExecContext(ctx, expireLive, scheduleVersionID); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrPersistenceError.Code, appErrors.ErrPersistenceError.Status, "failed to expire live section assignments")
		return err
	}

	assignmentIDs := make(map[uuid.UUID]uuid.UUID, len(out.Assignments))
	const insertAssignment = `
		INSERT INTO scheduling.section_assignments
			(id, schedule_version_id, section_id, meeting_pattern_id, date_pattern_id,
			 room_id, penalty_contribution, source, notes, valid_from)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'solver', $8, now())
		RETURNING id`
	for _, a := range out.Assignments {
		if !a.IsAssigned {
			continue
		}
		assignmentID := uuid.New()
		var notes sql.NullString
		if a.UnassignedReason != "" {
			notes = sql.NullString{String: a.UnassignedReason, Valid: true}
		}
		row := tx.QueryRowxContext(ctx, insertAssignment,
			assignmentID, scheduleVersionID, a.SectionID, a.MeetingPatternID, a.DatePatternID,
			a.RoomID, a.PenaltyContribution, notes,
		)
		var insertedID uuid.UUID
		if err = row.Scan(&insertedID); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrPersistenceError.Code, appErrors.ErrPersistenceError.Status, "failed to insert section assignment")
			return err
		}
		assignmentIDs[a.SectionID] = insertedID
	}

	const insertInstructorAssignment = `
		INSERT INTO scheduling.instructor_assignments (section_assignment_id, instructor_id, role)
		VALUES ($1, $2, 'primary')
		ON CONFLICT DO NOTHING`
	for _, a := range out.Assignments {
		assignmentID, ok := assignmentIDs[a.SectionID]
		if !ok {
			continue
		}
		for _, instructorID := range a.InstructorIDs {
			if _, err = tx.ExecContext(ctx, insertInstructorAssignment, assignmentID, instructorID); err != nil {
				err = appErrors.Wrap(err, appErrors.ErrPersistenceError.Code, appErrors.ErrPersistenceError.Status, "failed to insert instructor assignment")
				return err
			}
		}
	}

	const insertViolation = `
		INSERT INTO scheduling.constraint_violations
			(id, solver_run_id, section_id, constraint_key, severity, message, penalty)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	for _, v := range out.Violations {
		if _, err = tx.ExecContext(ctx, insertViolation,
			uuid.New(), out.SolverRunID, v.SectionID, v.ConstraintKey, v.Severity, v.Message, v.Penalty,
		); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrPersistenceError.Code, appErrors.ErrPersistenceError.Status, "failed to insert constraint violation")
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrPersistenceError.Code, appErrors.ErrPersistenceError.Status, "failed to commit persistence transaction")
		return err
	}

	p.logger.Info("persisted solve",
		zap.String("schedule_version_id", scheduleVersionID.String()),
		zap.String("solver_run_id", out.SolverRunID.String()),
		zap.Int("assigned", assigned),
		zap.Int("unassigned", unassigned),
	)

	return nil
}

// Commit transitions schedule_versions.status from "draft" to
// "published" and stamps published_at. It is idempotent: committing an
// already-published version succeeds and reports success=true without
// writing again. assignmentsCommitted counts the live (valid_to IS NULL)
// section_assignments rows for scheduleVersionID, matching spec.md §6's
// {assignments_committed, success} commit response.
func (p *Persister) Commit(ctx context.Context, scheduleVersionID uuid.UUID) (assignmentsCommitted int, success bool, err error) {
	if p.tx == nil {
		return 0, false, appErrors.Clone(appErrors.ErrPersistenceError, "transaction provider unavailable")
	}

	tx, err := p.tx.BeginTxx(ctx, nil)
	if err != nil {
		return 0, false, appErrors.Wrap(err, appErrors.ErrPersistenceError.Code, appErrors.ErrPersistenceError.Status, "failed to begin commit transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const publish = `
		UPDATE scheduling.schedule_versions
		SET status = 'published', published_at = now()
		WHERE id = $1 AND status = 'draft'`
	res, err := tx.ExecContext(ctx, publish, scheduleVersionID)
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrPersistenceError.Code, appErrors.ErrPersistenceError.Status, "failed to publish schedule version")
		return 0, false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrPersistenceError.Code, appErrors.ErrPersistenceError.Status, "failed to read publish result")
		return 0, false, err
	}

	if rows == 0 {
		var status string
		const readStatus = `SELECT status FROM scheduling.schedule_versions WHERE id = $1`
		if err = tx.GetContext(ctx, &status, readStatus, scheduleVersionID); err != nil {
			if err == sql.ErrNoRows {
				err = appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("schedule version %s not found", scheduleVersionID))
				return 0, false, err
			}
			err = appErrors.Wrap(err, appErrors.ErrPersistenceError.Code, appErrors.ErrPersistenceError.Status, "failed to read schedule version status")
			return 0, false, err
		}
		if status != "published" {
			err = appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("schedule version %s is %s, not draft", scheduleVersionID, status))
			return 0, false, err
		}
	}

	const countLive = `
		SELECT count(*) FROM scheduling.section_assignments
		WHERE schedule_version_id = $1 AND valid_to IS NULL`
	if err = tx.GetContext(ctx, &assignmentsCommitted, countLive, scheduleVersionID); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrPersistenceError.Code, appErrors.ErrPersistenceError.Status, "failed to count committed assignments")
		return 0, false, err
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrPersistenceError.Code, appErrors.ErrPersistenceError.Status, "failed to commit publish transaction")
		return 0, false, err
	}

	return assignmentsCommitted, true, nil
}
