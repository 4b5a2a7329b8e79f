package service

import (
	"context"
	"database/sql"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workbridge/engage-api/internal/models"
	appErrors "github.com/workbridge/engage-api/pkg/errors"
	"github.com/workbridge/engage-api/pkg/storage"
)

type mockExportJobRepo struct {
	mu   sync.Mutex
	jobs map[string]models.ExportJob
}

func newMockExportJobRepo() *mockExportJobRepo {
	return &mockExportJobRepo{jobs: map[string]models.ExportJob{}}
}

func (m *mockExportJobRepo) Create(ctx context.Context, job *models.ExportJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job.ID == "" {
		job.ID = "job-1"
	}
	m.jobs[job.ID] = *job
	return nil
}

func (m *mockExportJobRepo) FindByID(ctx context.Context, id string) (*models.ExportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[id]; ok {
		return &job, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockExportJobRepo) MarkRunning(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job := m.jobs[id]
	job.Status = models.ExportJobStatusRunning
	m.jobs[id] = job
	return nil
}

func (m *mockExportJobRepo) MarkCompleted(ctx context.Context, id, filePath string, completedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job := m.jobs[id]
	job.Status = models.ExportJobStatusCompleted
	job.FilePath = &filePath
	job.CompletedAt = &completedAt
	m.jobs[id] = job
	return nil
}

func (m *mockExportJobRepo) MarkFailed(ctx context.Context, id, reason string, completedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job := m.jobs[id]
	job.Status = models.ExportJobStatusFailed
	job.Error = &reason
	job.CompletedAt = &completedAt
	m.jobs[id] = job
	return nil
}

func (m *mockExportJobRepo) status(id string) models.ExportJobStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.jobs[id].Status
}

type mockRoster struct {
	applications []models.ApplicationDetail
}

func (m *mockRoster) ListByEngagement(ctx context.Context, engagementID string) ([]models.ApplicationDetail, error) {
	return m.applications, nil
}

func exportFixture(t *testing.T) (*ExportService, *mockExportJobRepo) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	repo := newMockExportJobRepo()
	roster := &mockRoster{applications: []models.ApplicationDetail{
		{
			Application: models.Application{
				ID: "app-1", EngagementID: "eng-open", ParticipantID: "part-1",
				Status: models.ApplicationStatusAccepted, CoverNote: "pick me",
				AppliedAt: time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC),
			},
			ParticipantName: "Ada Lovelace",
		},
	}}
	signer := storage.NewSignedURLSigner("export-secret", time.Hour)
	svc := NewExportService(repo, roster, openEngagementReader(), store, signer, ExportConfig{Workers: 1, MaxRetries: 1}, nil)
	return svc, repo
}

func TestRequestExportValidation(t *testing.T) {
	svc, _ := exportFixture(t)
	ctx := context.Background()
	svc.Start(ctx)
	defer svc.Stop()

	t.Run("unsupported format", func(t *testing.T) {
		_, err := svc.RequestExport(ctx, "eng-open", "sponsor-1", "XLSX")
		assert.Equal(t, appErrors.ErrValidation.Code, errorCode(t, err))
	})

	t.Run("missing engagement", func(t *testing.T) {
		_, err := svc.RequestExport(ctx, "eng-missing", "sponsor-1", models.ExportFormatCSV)
		assert.Equal(t, appErrors.ErrNotFound.Code, errorCode(t, err))
	})

	t.Run("foreign sponsor", func(t *testing.T) {
		_, err := svc.RequestExport(ctx, "eng-open", "sponsor-2", models.ExportFormatCSV)
		assert.Equal(t, appErrors.ErrForbidden.Code, errorCode(t, err))
	})
}

func TestRosterExportLifecycle(t *testing.T) {
	svc, repo := exportFixture(t)
	ctx := context.Background()
	svc.Start(ctx)
	defer svc.Stop()

	job, err := svc.RequestExport(ctx, "eng-open", "sponsor-1", models.ExportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, models.ExportJobStatusQueued, job.Status)

	require.Eventually(t, func() bool {
		return repo.status(job.ID) == models.ExportJobStatusCompleted
	}, 5*time.Second, 10*time.Millisecond, "export job should complete")

	t.Run("completed job carries a download token", func(t *testing.T) {
		loaded, token, err := svc.GetExport(ctx, job.ID, "sponsor-1")
		require.NoError(t, err)
		assert.Equal(t, models.ExportJobStatusCompleted, loaded.Status)
		require.NotEmpty(t, token)

		download, err := svc.DownloadByToken(ctx, token)
		require.NoError(t, err)
		defer download.File.Close()

		payload, err := io.ReadAll(download.File)
		require.NoError(t, err)
		content := string(payload)
		assert.Contains(t, content, "Participant,Status,Applied At,Accepted At,Cover Note")
		assert.Contains(t, content, "Ada Lovelace")
		assert.True(t, strings.HasSuffix(download.Filename, ".csv"), download.Filename)
	})

	t.Run("foreign sponsor cannot read the job", func(t *testing.T) {
		_, _, err := svc.GetExport(ctx, job.ID, "sponsor-2")
		assert.Equal(t, appErrors.ErrForbidden.Code, errorCode(t, err))
	})

	t.Run("tampered token is rejected", func(t *testing.T) {
		_, token, err := svc.GetExport(ctx, job.ID, "sponsor-1")
		require.NoError(t, err)
		_, err = svc.DownloadByToken(ctx, token+"x")
		assert.Equal(t, appErrors.ErrUnauthorized.Code, errorCode(t, err))
	})
}

func TestRequestExportQueueUnavailable(t *testing.T) {
	svc, repo := exportFixture(t)

	// Queue never started, so the enqueue fails and the job is marked failed.
	job, err := svc.RequestExport(context.Background(), "eng-open", "sponsor-1", models.ExportFormatPDF)
	require.Nil(t, job)
	assert.Equal(t, appErrors.ErrUnavailable.Code, errorCode(t, err))
	assert.Equal(t, models.ExportJobStatusFailed, repo.status("job-1"))
}
