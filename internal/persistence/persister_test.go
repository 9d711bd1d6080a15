package persistence

import (
	"context"
	"database/sql"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sis-scheduler/scheduler-core/internal/domain"
)

type txProviderMock struct {
	db *sqlx.DB
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

func newTxProviderMock(t *testing.T) (*txProviderMock, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb}, mock
}

func TestPersisterPersistCommitsOnSuccess(t *testing.T) {
	provider, mock := newTxProviderMock(t)
	p := NewPersister(provider, nil)

	scheduleVersionID := uuid.New()
	sectionID := uuid.New()
	patternID := uuid.New()
	roomID := uuid.New()
	instructorID := uuid.New()

	out := domain.SolverOutput{
		SolverRunID: uuid.New(),
		Result:      domain.SolverResult{Status: domain.StatusOptimal, SolveTimeMs: 120},
		Assignments: []domain.Assignment{
			{
				SectionID:        sectionID,
				MeetingPatternID: &patternID,
				RoomID:           &roomID,
				InstructorIDs:    []uuid.UUID{instructorID},
				IsAssigned:       true,
			},
		},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO scheduling.solver_runs").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE scheduling.section_assignments").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("INSERT INTO scheduling.section_assignments").WillReturnRows(
		sqlmock.NewRows([]string{"id"}).AddRow(uuid.New()))
	mock.ExpectExec("INSERT INTO scheduling.instructor_assignments").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := p.Persist(context.Background(), scheduleVersionID, out)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPersisterPersistRollsBackOnFailure(t *testing.T) {
	provider, mock := newTxProviderMock(t)
	p := NewPersister(provider, nil)

	out := domain.SolverOutput{
		SolverRunID: uuid.New(),
		Result:      domain.SolverResult{Status: domain.StatusInfeasible},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO scheduling.solver_runs").WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := p.Persist(context.Background(), uuid.New(), out)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPersisterCommitIdempotentWhenAlreadyPublished(t *testing.T) {
	provider, mock := newTxProviderMock(t)
	p := NewPersister(provider, nil)

	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE scheduling.schedule_versions").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT status FROM scheduling.schedule_versions").WillReturnRows(
		sqlmock.NewRows([]string{"status"}).AddRow("published"))
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM scheduling.section_assignments").WillReturnRows(
		sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectCommit()

	assignmentsCommitted, success, err := p.Commit(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, success)
	assert.Equal(t, 3, assignmentsCommitted)
	assert.NoError(t, mock.ExpectationsWereMet())
}
