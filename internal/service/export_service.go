package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/workbridge/engage-api/internal/models"
	appErrors "github.com/workbridge/engage-api/pkg/errors"
	"github.com/workbridge/engage-api/pkg/export"
	"github.com/workbridge/engage-api/pkg/jobs"
	"github.com/workbridge/engage-api/pkg/storage"
)

type exportJobRepository interface {
	Create(ctx context.Context, job *models.ExportJob) error
	FindByID(ctx context.Context, id string) (*models.ExportJob, error)
	MarkRunning(ctx context.Context, id string) error
	MarkCompleted(ctx context.Context, id, filePath string, completedAt time.Time) error
	MarkFailed(ctx context.Context, id, reason string, completedAt time.Time) error
}

type rosterReader interface {
	ListByEngagement(ctx context.Context, engagementID string) ([]models.ApplicationDetail, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix  string
	ResultTTL  time.Duration
	Workers    int
	MaxRetries int
}

// ExportDownload pairs an open file handle with its job metadata.
type ExportDownload struct {
	Job      *models.ExportJob
	File     *os.File
	Filename string
}

// ExportService renders engagement rosters to CSV or PDF in the background
// and hands out signed download tokens for the results.
type ExportService struct {
	repo        exportJobRepository
	roster      rosterReader
	engagements engagementReader
	storage     fileStorage
	csv         csvRenderer
	pdf         pdfRenderer
	signer      *storage.SignedURLSigner
	queue       *jobs.Queue
	logger      *zap.Logger
	cfg         ExportConfig
	now         func() time.Time
}

// NewExportService constructs an ExportService and its worker queue. Call
// Start before enqueuing and Stop on shutdown.
func NewExportService(repo exportJobRepository, roster rosterReader, engagements engagementReader, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	s := &ExportService{
		repo:        repo,
		roster:      roster,
		engagements: engagements,
		storage:     store,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		signer:      signer,
		logger:      logger,
		cfg:         cfg,
		now:         time.Now,
	}
	s.queue = jobs.NewQueue("roster-export", s.process, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		Logger:     logger,
	})
	return s
}

// Start launches the export workers.
func (s *ExportService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the export workers.
func (s *ExportService) Stop() {
	s.queue.Stop()
}

// RequestExport queues a roster export for the sponsor's own engagement and
// returns the job record immediately.
func (s *ExportService) RequestExport(ctx context.Context, engagementID, sponsorID string, format models.ExportFormat) (*models.ExportJob, error) {
	if !format.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
	engagement, err := s.engagements.FindByID(ctx, engagementID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "engagement not found")
		}
		return nil, appErrors.FromStore(err, "failed to load engagement")
	}
	if engagement.SponsorID != sponsorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "engagement belongs to another sponsor")
	}

	job := &models.ExportJob{
		EngagementID: engagementID,
		RequestedBy:  sponsorID,
		Format:       format,
		Status:       models.ExportJobStatusQueued,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.FromStore(err, "failed to create export job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "roster-export", Payload: job.ID}); err != nil {
		now := s.now().UTC()
		if markErr := s.repo.MarkFailed(ctx, job.ID, "export queue unavailable", now); markErr != nil {
			s.logger.Error("failed to mark export job failed", zap.String("job_id", job.ID), zap.Error(markErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "export queue unavailable")
	}
	return job, nil
}

// GetExport returns the job record, including a signed download token once
// the job has completed. Only the requesting sponsor may look it up.
func (s *ExportService) GetExport(ctx context.Context, jobID, sponsorID string) (*models.ExportJob, string, error) {
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, "", appErrors.FromStore(err, "failed to load export job")
	}
	if job.RequestedBy != sponsorID {
		return nil, "", appErrors.Clone(appErrors.ErrForbidden, "export job belongs to another sponsor")
	}

	var token string
	if job.Status == models.ExportJobStatusCompleted && job.FilePath != nil {
		token, _, err = s.signer.Generate(job.ID, *job.FilePath)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download token")
		}
	}
	return job, token, nil
}

// DownloadByToken validates a signed token and opens the rendered file. The
// caller owns the returned handle.
func (s *ExportService) DownloadByToken(ctx context.Context, token string) (*ExportDownload, error) {
	jobID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token")
	}
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, appErrors.FromStore(err, "failed to load export job")
	}
	if job.Status != models.ExportJobStatusCompleted || job.FilePath == nil || *job.FilePath != relPath {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export file not available")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export file not available")
	}
	return &ExportDownload{Job: job, File: file, Filename: relPath}, nil
}

// Cleanup removes rendered files older than ttl, defaulting to the
// configured result TTL.
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) process(ctx context.Context, queued jobs.Job) error {
	jobID, ok := queued.Payload.(string)
	if !ok || jobID == "" {
		return fmt.Errorf("malformed export payload")
	}
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load export job %s: %w", jobID, err)
	}
	if err := s.repo.MarkRunning(ctx, jobID); err != nil {
		return err
	}

	relPath, err := s.render(ctx, job)
	if err != nil {
		now := s.now().UTC()
		if markErr := s.repo.MarkFailed(ctx, jobID, err.Error(), now); markErr != nil {
			s.logger.Error("failed to mark export job failed", zap.String("job_id", jobID), zap.Error(markErr))
		}
		return err
	}
	if err := s.repo.MarkCompleted(ctx, jobID, relPath, s.now().UTC()); err != nil {
		return err
	}
	s.logger.Info("roster export completed", zap.String("job_id", jobID), zap.String("file", relPath))
	return nil
}

func (s *ExportService) render(ctx context.Context, job *models.ExportJob) (string, error) {
	applications, err := s.roster.ListByEngagement(ctx, job.EngagementID)
	if err != nil {
		return "", fmt.Errorf("load roster: %w", err)
	}
	dataset, title := buildRosterDataset(job.EngagementID, applications)

	var payload []byte
	switch job.Format {
	case models.ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Format)
	}
	if err != nil {
		return "", err
	}

	filename := fmt.Sprintf("roster_%s_%s.%s",
		sanitizeFilename(job.EngagementID),
		s.now().UTC().Format("20060102_150405"),
		strings.ToLower(string(job.Format)))
	return s.storage.Save(filename, payload)
}

func buildRosterDataset(engagementID string, applications []models.ApplicationDetail) (export.Dataset, string) {
	rows := make([]map[string]string, 0, len(applications))
	for _, application := range applications {
		rows = append(rows, map[string]string{
			"Participant": application.ParticipantName,
			"Status":      string(application.Status),
			"Applied At":  application.AppliedAt.UTC().Format(time.RFC3339),
			"Accepted At": formatOptionalTime(application.AcceptedAt),
			"Cover Note":  application.CoverNote,
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Participant", "Status", "Applied At", "Accepted At", "Cover Note"},
		Rows:    rows,
	}
	title := fmt.Sprintf("Application Roster %s", engagementID)
	return dataset, title
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
