package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/workbridge/engage-api/internal/models"
)

func TestDeliverableRepositorySubmitAndRecord(t *testing.T) {
	t.Run("advance and submission commit together", func(t *testing.T) {
		db, mock, cleanup := newRepoMock(t)
		defer cleanup()
		repo := NewDeliverableRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE deliverables SET status").
			WithArgs("del-1", models.DeliverableStatusSubmitted,
				models.DeliverableStatusPending, models.DeliverableStatusInProgress, models.DeliverableStatusRejected).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO submissions").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		submission := &models.Submission{DeliverableID: "del-1", ParticipantID: "part-1", Content: "done"}
		won, err := repo.SubmitAndRecord(context.Background(), submission)
		require.NoError(t, err)
		require.True(t, won)
		require.Equal(t, models.SubmissionStatusSubmitted, submission.Status)
		require.NotEmpty(t, submission.ID)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("approved deliverable rejects new submissions", func(t *testing.T) {
		db, mock, cleanup := newRepoMock(t)
		defer cleanup()
		repo := NewDeliverableRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE deliverables SET status").
			WithArgs("del-1", models.DeliverableStatusSubmitted,
				models.DeliverableStatusPending, models.DeliverableStatusInProgress, models.DeliverableStatusRejected).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		won, err := repo.SubmitAndRecord(context.Background(), &models.Submission{DeliverableID: "del-1", ParticipantID: "part-1"})
		require.NoError(t, err)
		require.False(t, won)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDeliverableRepositoryReview(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDeliverableRepository(db)

	feedback := "needs another pass"

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE deliverables SET status = $2 WHERE id = $1 AND status = $3")).
		WithArgs("del-1", models.DeliverableStatusRejected, models.DeliverableStatusSubmitted).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE submissions SET status").
		WithArgs("del-1", models.SubmissionStatusRejected, &feedback).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	won, err := repo.Review(context.Background(), "del-1", models.DeliverableStatusRejected, &feedback)
	require.NoError(t, err)
	require.True(t, won)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeliverableRepositoryProgress(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDeliverableRepository(db)

	mock.ExpectQuery("SELECT").
		WithArgs("eng-1").
		WillReturnRows(sqlmock.NewRows([]string{"approved", "total"}).AddRow(2, 5))

	approved, total, err := repo.Progress(context.Background(), "eng-1")
	require.NoError(t, err)
	require.Equal(t, 2, approved)
	require.Equal(t, 5, total)
	require.NoError(t, mock.ExpectationsWereMet())
}
