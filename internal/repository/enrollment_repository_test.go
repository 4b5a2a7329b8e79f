package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/workbridge/engage-api/internal/models"
)

func TestEnrollmentRepositoryFindActive(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "engagement_id", "participant_id", "status", "enrolled_at", "ended_at"}).
		AddRow("enr-1", "eng-1", "part-1", models.EnrollmentStatusActive, time.Now(), nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, engagement_id, participant_id, status, enrolled_at, ended_at FROM enrollments WHERE engagement_id = $1 AND participant_id = $2 AND status = $3")).
		WithArgs("eng-1", "part-1", models.EnrollmentStatusActive).
		WillReturnRows(rows)

	enrollment, err := repo.FindActive(context.Background(), "eng-1", "part-1")
	require.NoError(t, err)
	require.Equal(t, "enr-1", enrollment.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryEnd(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	endedAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec("UPDATE enrollments SET status").
		WithArgs("eng-1", "part-1", models.EnrollmentStatusEnded, endedAt, models.EnrollmentStatusActive).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ended, err := repo.End(context.Background(), "eng-1", "part-1", endedAt)
	require.NoError(t, err)
	require.True(t, ended)

	mock.ExpectExec("UPDATE enrollments SET status").
		WithArgs("eng-1", "part-1", models.EnrollmentStatusEnded, endedAt, models.EnrollmentStatusActive).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ended, err = repo.End(context.Background(), "eng-1", "part-1", endedAt)
	require.NoError(t, err)
	require.False(t, ended, "already ended enrollments are a no-op")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryWasEverEnrolled(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery("SELECT 1 FROM enrollments").
		WithArgs("eng-1", "part-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	enrolled, err := repo.WasEverEnrolled(context.Background(), "eng-1", "part-1")
	require.NoError(t, err)
	require.False(t, enrolled)
	require.NoError(t, mock.ExpectationsWereMet())
}
