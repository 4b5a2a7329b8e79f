package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/workbridge/engage-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestEngagementRepositoryApplyPatchOnce(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEngagementRepository(db)

	title := "New title"

	t.Run("first edit wins", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta("UPDATE engagements SET edited = TRUE, title = $2 WHERE id = $1 AND edited = FALSE")).
			WithArgs("eng-1", title).
			WillReturnResult(sqlmock.NewResult(0, 1))

		won, err := repo.ApplyPatchOnce(context.Background(), "eng-1", models.EngagementPatch{Title: &title})
		require.NoError(t, err)
		require.True(t, won)
	})

	t.Run("guarded update loses when already edited", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta("UPDATE engagements SET edited = TRUE, title = $2 WHERE id = $1 AND edited = FALSE")).
			WithArgs("eng-1", title).
			WillReturnResult(sqlmock.NewResult(0, 0))

		won, err := repo.ApplyPatchOnce(context.Background(), "eng-1", models.EngagementPatch{Title: &title})
		require.NoError(t, err)
		require.False(t, won)
	})

	t.Run("experience-only switch clears compensation", func(t *testing.T) {
		experienceOnly := true
		mock.ExpectExec(regexp.QuoteMeta("UPDATE engagements SET edited = TRUE, experience_only = $2, compensation_amount = NULL WHERE id = $1 AND edited = FALSE")).
			WithArgs("eng-1", true).
			WillReturnResult(sqlmock.NewResult(0, 1))

		won, err := repo.ApplyPatchOnce(context.Background(), "eng-1", models.EngagementPatch{ExperienceOnly: &experienceOnly})
		require.NoError(t, err)
		require.True(t, won)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEngagementRepositoryFindDetailByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEngagementRepository(db)

	createdAt := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)

	// A sponsor without an actor row must surface as an empty name, not a
	// NULL scan failure.
	mock.ExpectQuery(regexp.QuoteMeta("COALESCE(a.display_name, '') AS sponsor_name")).
		WithArgs("eng-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "sponsor_id", "title", "description", "category", "duration",
			"compensation_amount", "experience_only", "status", "edited",
			"created_at", "status_changed_at", "sponsor_name", "pending_count", "enrolled_count",
		}).AddRow("eng-1", "sponsor-gone", "Landing page", "Build it", "web", "2 weeks",
			nil, true, models.EngagementStatusOpen, false, createdAt, nil, "", 3, 1))

	detail, err := repo.FindDetailByID(context.Background(), "eng-1")
	require.NoError(t, err)
	require.Empty(t, detail.SponsorName)
	require.Equal(t, 3, detail.PendingCount)
	require.Equal(t, 1, detail.EnrolledCount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEngagementRepositorySetStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEngagementRepository(db)

	changedAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	t.Run("closing ends enrollments in the same transaction", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("UPDATE engagements SET status = $2, status_changed_at = $3 WHERE id = $1 AND status <> $2")).
			WithArgs("eng-1", models.EngagementStatusClosed, changedAt).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = $2, ended_at = $3 WHERE engagement_id = $1 AND status = $4")).
			WithArgs("eng-1", models.EnrollmentStatusEnded, changedAt, models.EnrollmentStatusActive).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectCommit()

		changed, err := repo.SetStatus(context.Background(), "eng-1", models.EngagementStatusClosed, changedAt)
		require.NoError(t, err)
		require.True(t, changed)
	})

	t.Run("enrollment failure rolls back the status change", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("UPDATE engagements SET status = $2, status_changed_at = $3 WHERE id = $1 AND status <> $2")).
			WithArgs("eng-1", models.EngagementStatusClosed, changedAt).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = $2, ended_at = $3 WHERE engagement_id = $1 AND status = $4")).
			WithArgs("eng-1", models.EnrollmentStatusEnded, changedAt, models.EnrollmentStatusActive).
			WillReturnError(sql.ErrConnDone)
		mock.ExpectRollback()

		_, err := repo.SetStatus(context.Background(), "eng-1", models.EngagementStatusClosed, changedAt)
		require.Error(t, err)
	})

	t.Run("repeated set is a no-op that skips enrollments", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("UPDATE engagements SET status = $2, status_changed_at = $3 WHERE id = $1 AND status <> $2")).
			WithArgs("eng-1", models.EngagementStatusClosed, changedAt).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		changed, err := repo.SetStatus(context.Background(), "eng-1", models.EngagementStatusClosed, changedAt)
		require.NoError(t, err)
		require.False(t, changed)
	})

	t.Run("reopening skips enrollments", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("UPDATE engagements SET status = $2, status_changed_at = $3 WHERE id = $1 AND status <> $2")).
			WithArgs("eng-1", models.EngagementStatusOpen, changedAt).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		changed, err := repo.SetStatus(context.Background(), "eng-1", models.EngagementStatusOpen, changedAt)
		require.NoError(t, err)
		require.True(t, changed)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEngagementRepositoryDeleteCascade(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEngagementRepository(db)

	mock.ExpectBegin()
	for _, table := range []string{
		"DELETE FROM submissions", "DELETE FROM deliverables", "DELETE FROM message_reads",
		"DELETE FROM messages", "DELETE FROM resources", "DELETE FROM applications",
		"DELETE FROM enrollments", "DELETE FROM export_jobs", "DELETE FROM engagements",
	} {
		mock.ExpectExec(table).WithArgs("eng-1").WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	require.NoError(t, repo.DeleteCascade(context.Background(), "eng-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEngagementRepositoryCountByStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEngagementRepository(db)

	mock.ExpectQuery("SELECT").
		WithArgs("sponsor-1").
		WillReturnRows(sqlmock.NewRows([]string{"open", "closed"}).AddRow(3, 2))

	open, closed, err := repo.CountByStatus(context.Background(), "sponsor-1")
	require.NoError(t, err)
	require.Equal(t, 3, open)
	require.Equal(t, 2, closed)
	require.NoError(t, mock.ExpectationsWereMet())
}
