package service

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/workbridge/engage-api/internal/models"
	appErrors "github.com/workbridge/engage-api/pkg/errors"
)

type deliverableRepository interface {
	Create(ctx context.Context, deliverable *models.Deliverable) error
	FindByID(ctx context.Context, id string) (*models.Deliverable, error)
	ListByEngagement(ctx context.Context, engagementID string) ([]models.Deliverable, error)
	Start(ctx context.Context, id string) (bool, error)
	SubmitAndRecord(ctx context.Context, submission *models.Submission) (bool, error)
	Review(ctx context.Context, id string, outcome models.DeliverableStatus, feedback *string) (bool, error)
	ListSubmissions(ctx context.Context, deliverableID string) ([]models.Submission, error)
	Progress(ctx context.Context, engagementID string) (approved int, total int, err error)
}

type enrollmentReader interface {
	FindActive(ctx context.Context, engagementID, participantID string) (*models.Enrollment, error)
}

type artifactStore interface {
	Save(filename string, data []byte) (string, error)
}

// CreateDeliverableRequest describes a new unit of required output.
type CreateDeliverableRequest struct {
	Title       string     `json:"title" validate:"required,max=200"`
	Description string     `json:"description" validate:"required"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

// SubmitDeliverableRequest is a participant's submission payload. Artifact
// bytes are stored out of band; only the returned reference is persisted.
type SubmitDeliverableRequest struct {
	Content          string `json:"content" validate:"required"`
	ArtifactName     string `json:"artifact_name,omitempty" validate:"max=255"`
	ArtifactContents []byte `json:"artifact_contents,omitempty"`
}

// ReviewDeliverableRequest resolves a submitted deliverable.
type ReviewDeliverableRequest struct {
	Outcome  string `json:"outcome" validate:"required,oneof=approve reject"`
	Feedback string `json:"feedback" validate:"max=2000"`
}

// DeliverableService tracks deliverables through their submission and review
// cycle and computes completion progress.
type DeliverableService struct {
	repo        deliverableRepository
	enrollments enrollmentReader
	engagements engagementReader
	artifacts   artifactStore
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewDeliverableService constructs DeliverableService.
func NewDeliverableService(repo deliverableRepository, enrollments enrollmentReader, engagements engagementReader, artifacts artifactStore, validate *validator.Validate, logger *zap.Logger) *DeliverableService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeliverableService{repo: repo, enrollments: enrollments, engagements: engagements, artifacts: artifacts, validator: validate, logger: logger, now: time.Now}
}

// Create attaches a deliverable to the sponsor's engagement. Sponsors may
// pre-stage deliverables before anyone is enrolled.
func (s *DeliverableService) Create(ctx context.Context, engagementID, sponsorID string, req CreateDeliverableRequest) (*models.Deliverable, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid deliverable payload")
	}
	if _, err := s.ownedEngagement(ctx, engagementID, sponsorID); err != nil {
		return nil, err
	}

	deliverable := &models.Deliverable{
		EngagementID: engagementID,
		Title:        req.Title,
		Description:  req.Description,
		DueDate:      req.DueDate,
		Status:       models.DeliverableStatusPending,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.repo.Create(ctx, deliverable); err != nil {
		return nil, appErrors.FromStore(err, "failed to create deliverable")
	}
	return deliverable, nil
}

// List returns an engagement's deliverables.
func (s *DeliverableService) List(ctx context.Context, engagementID string) ([]models.Deliverable, error) {
	deliverables, err := s.repo.ListByEngagement(ctx, engagementID)
	if err != nil {
		return nil, appErrors.FromStore(err, "failed to list deliverables")
	}
	return deliverables, nil
}

// Start moves a pending deliverable to in-progress for an enrolled
// participant.
func (s *DeliverableService) Start(ctx context.Context, deliverableID, participantID string) (*models.Deliverable, error) {
	deliverable, err := s.load(ctx, deliverableID)
	if err != nil {
		return nil, err
	}
	if err := s.requireEnrolled(ctx, deliverable.EngagementID, participantID); err != nil {
		return nil, err
	}

	won, err := s.repo.Start(ctx, deliverableID)
	if err != nil {
		return nil, appErrors.FromStore(err, "failed to start deliverable")
	}
	if !won {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "deliverable is not pending")
	}
	return s.load(ctx, deliverableID)
}

// Submit records a submission and advances the deliverable to SUBMITTED.
// Only actively enrolled participants may submit; an approved deliverable
// rejects further submissions, while a rejected one accepts a resubmission.
func (s *DeliverableService) Submit(ctx context.Context, deliverableID, participantID string, req SubmitDeliverableRequest) (*models.Deliverable, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}
	deliverable, err := s.load(ctx, deliverableID)
	if err != nil {
		return nil, err
	}
	if err := s.requireEnrolled(ctx, deliverable.EngagementID, participantID); err != nil {
		return nil, err
	}
	if !deliverable.Status.Submittable() && deliverable.Status != models.DeliverableStatusSubmitted {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "deliverable has already been approved")
	}

	var artifactPath *string
	if len(req.ArtifactContents) > 0 {
		if s.artifacts == nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "artifact uploads are not enabled")
		}
		name := req.ArtifactName
		if name == "" {
			name = "artifact"
		}
		path, err := s.artifacts.Save(deliverableID+"/"+name, req.ArtifactContents)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store artifact")
		}
		artifactPath = &path
	}

	submission := &models.Submission{
		DeliverableID: deliverableID,
		ParticipantID: participantID,
		Content:       req.Content,
		ArtifactPath:  artifactPath,
		SubmittedAt:   s.now().UTC(),
	}
	won, err := s.repo.SubmitAndRecord(ctx, submission)
	if err != nil {
		return nil, appErrors.FromStore(err, "failed to submit deliverable")
	}
	if !won {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "deliverable cannot be submitted in its current state")
	}
	s.logger.Info("deliverable submitted",
		zap.String("deliverable_id", deliverableID),
		zap.String("participant_id", participantID))
	return s.load(ctx, deliverableID)
}

// Review resolves a SUBMITTED deliverable. Approval is terminal; rejection
// records feedback and reopens the deliverable for resubmission.
func (s *DeliverableService) Review(ctx context.Context, deliverableID, sponsorID string, req ReviewDeliverableRequest) (*models.Deliverable, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}
	deliverable, err := s.load(ctx, deliverableID)
	if err != nil {
		return nil, err
	}
	if _, err := s.ownedEngagement(ctx, deliverable.EngagementID, sponsorID); err != nil {
		return nil, err
	}
	if deliverable.Status != models.DeliverableStatusSubmitted {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "deliverable is not awaiting review")
	}

	outcome := models.DeliverableStatusApproved
	if req.Outcome == "reject" {
		outcome = models.DeliverableStatusRejected
	}
	var feedback *string
	if req.Feedback != "" {
		feedback = &req.Feedback
	}

	won, err := s.repo.Review(ctx, deliverableID, outcome, feedback)
	if err != nil {
		return nil, appErrors.FromStore(err, "failed to review deliverable")
	}
	if !won {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "deliverable is not awaiting review")
	}
	return s.load(ctx, deliverableID)
}

// Submissions returns a deliverable's submission history newest first.
func (s *DeliverableService) Submissions(ctx context.Context, deliverableID string) ([]models.Submission, error) {
	submissions, err := s.repo.ListSubmissions(ctx, deliverableID)
	if err != nil {
		return nil, appErrors.FromStore(err, "failed to list submissions")
	}
	return submissions, nil
}

// Progress reports approved/total completion as a rounded percentage. An
// engagement with no deliverables is 0%, not an error.
func (s *DeliverableService) Progress(ctx context.Context, engagementID string) (*models.DeliverableProgress, error) {
	approved, total, err := s.repo.Progress(ctx, engagementID)
	if err != nil {
		return nil, appErrors.FromStore(err, "failed to compute progress")
	}
	return &models.DeliverableProgress{
		EngagementID: engagementID,
		Total:        total,
		Approved:     approved,
		Percent:      progressPercent(approved, total),
	}, nil
}

func (s *DeliverableService) load(ctx context.Context, id string) (*models.Deliverable, error) {
	deliverable, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "deliverable not found")
		}
		return nil, appErrors.FromStore(err, "failed to load deliverable")
	}
	return deliverable, nil
}

func (s *DeliverableService) ownedEngagement(ctx context.Context, engagementID, sponsorID string) (*models.Engagement, error) {
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
	return engagement, nil
}

func (s *DeliverableService) requireEnrolled(ctx context.Context, engagementID, participantID string) error {
	if _, err := s.enrollments.FindActive(ctx, engagementID, participantID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrForbidden, "participant is not enrolled on this engagement")
		}
		return appErrors.FromStore(err, "failed to check enrollment")
	}
	return nil
}

func progressPercent(approved, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(approved) / float64(total) * 100))
}
