package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/workbridge/engage-api/internal/models"
	"github.com/workbridge/engage-api/internal/repository"
	appErrors "github.com/workbridge/engage-api/pkg/errors"
)

type applicationRepository interface {
	Create(ctx context.Context, application *models.Application) error
	FindByID(ctx context.Context, id string) (*models.Application, error)
	ExistsNonWithdrawn(ctx context.Context, engagementID, participantID string) (bool, error)
	HasActiveAcceptance(ctx context.Context, participantID string) (bool, error)
	TransitionFromPending(ctx context.Context, id string, to models.ApplicationStatus) (bool, error)
	AcceptAndEnroll(ctx context.Context, id string, acceptedAt time.Time) (bool, error)
	MarkNotified(ctx context.Context, id string) (bool, error)
	ListByParticipant(ctx context.Context, participantID string) ([]models.ApplicationDetail, error)
	ListByEngagement(ctx context.Context, engagementID string) ([]models.ApplicationDetail, error)
}

type engagementReader interface {
	FindByID(ctx context.Context, id string) (*models.Engagement, error)
}

type participantInvalidator interface {
	InvalidateSponsor(ctx context.Context, sponsorID string)
	InvalidateParticipant(ctx context.Context, participantID string)
}

// ApplyRequest describes a participant's application payload.
type ApplyRequest struct {
	CoverNote string `json:"cover_note" validate:"max=2000"`
}

// AcceptResult is returned from Accept so the caller can surface the
// one-time acceptance notice without re-querying and diffing state.
type AcceptResult struct {
	Application           *models.Application `json:"application"`
	FirstAcceptanceNotice bool                `json:"first_acceptance_notice"`
}

// AcknowledgeResult reports whether the acceptance notice was still pending.
type AcknowledgeResult struct {
	Application   *models.Application `json:"application"`
	NoticePending bool                `json:"notice_pending"`
}

// ApplicationService owns the application ledger: the pending → terminal
// state machine and the acceptance cascade into enrollment.
type ApplicationService struct {
	repo        applicationRepository
	engagements engagementReader
	dashboard   participantInvalidator
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewApplicationService constructs ApplicationService.
func NewApplicationService(repo applicationRepository, engagements engagementReader, dashboard participantInvalidator, validate *validator.Validate, logger *zap.Logger) *ApplicationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApplicationService{repo: repo, engagements: engagements, dashboard: dashboard, validator: validate, logger: logger, now: time.Now}
}

// Apply submits a pending application. A closed engagement rejects the
// attempt, and a live application for the same pair conflicts; two
// concurrent applies resolve to exactly one pending application, the loser
// seeing CONFLICT via the partial unique index.
func (s *ApplicationService) Apply(ctx context.Context, engagementID, participantID string, req ApplyRequest) (*models.Application, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid application payload")
	}

	engagement, err := s.engagements.FindByID(ctx, engagementID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "engagement not found")
		}
		return nil, appErrors.FromStore(err, "failed to load engagement")
	}
	if engagement.Status == models.EngagementStatusClosed {
		return nil, appErrors.Clone(appErrors.ErrEngagementClosed, "")
	}

	exists, err := s.repo.ExistsNonWithdrawn(ctx, engagementID, participantID)
	if err != nil {
		return nil, appErrors.FromStore(err, "failed to check existing application")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "an application for this engagement already exists")
	}

	application := &models.Application{
		EngagementID:  engagementID,
		ParticipantID: participantID,
		Status:        models.ApplicationStatusPending,
		CoverNote:     req.CoverNote,
		AppliedAt:     s.now().UTC(),
	}
	if err := s.repo.Create(ctx, application); err != nil {
		if errors.Is(err, repository.ErrDuplicateApplication) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "an application for this engagement already exists")
		}
		return nil, appErrors.FromStore(err, "failed to create application")
	}
	s.invalidateBoth(ctx, engagement.SponsorID, participantID)
	s.logger.Info("application submitted",
		zap.String("application_id", application.ID),
		zap.String("engagement_id", engagementID),
		zap.String("participant_id", participantID))
	return application, nil
}

// Withdraw retracts the participant's own pending application. Any terminal
// status fails with INVALID_STATE; the compare-and-swap guarantees a racing
// accept and withdraw cannot both win.
func (s *ApplicationService) Withdraw(ctx context.Context, applicationID, participantID string) (*models.Application, error) {
	application, err := s.load(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if application.ParticipantID != participantID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "application belongs to another participant")
	}
	if application.Status != models.ApplicationStatusPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "only pending applications can be withdrawn")
	}

	won, err := s.repo.TransitionFromPending(ctx, applicationID, models.ApplicationStatusWithdrawn)
	if err != nil {
		return nil, appErrors.FromStore(err, "failed to withdraw application")
	}
	if !won {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "application is no longer pending")
	}
	s.invalidateParticipant(ctx, participantID)
	return s.load(ctx, applicationID)
}

// Accept transitions a pending application to ACCEPTED and enrolls the
// participant in one transaction. A participant may hold only one accepted
// application on a non-closed engagement at a time; a second acceptance
// fails with CONFLICT rather than silently stacking enrollments. Sibling
// pending applications stay untouched: the participant may still be weighing
// other offers and each must be rejected or withdrawn individually.
func (s *ApplicationService) Accept(ctx context.Context, applicationID, sponsorID string) (*AcceptResult, error) {
	application, engagement, err := s.loadWithEngagement(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if engagement.SponsorID != sponsorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "engagement belongs to another sponsor")
	}
	if application.Status != models.ApplicationStatusPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "only pending applications can be accepted")
	}

	// Fast path; the store re-checks under a lock inside the accept
	// transaction, which is what actually keeps racing accepts to one.
	active, err := s.repo.HasActiveAcceptance(ctx, application.ParticipantID)
	if err != nil {
		return nil, appErrors.FromStore(err, "failed to check active engagements")
	}
	if active {
		return nil, appErrors.Clone(appErrors.ErrConflict, "participant already has an active engagement")
	}

	won, err := s.repo.AcceptAndEnroll(ctx, applicationID, s.now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrActiveAcceptance) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "participant already has an active engagement")
		}
		return nil, appErrors.FromStore(err, "failed to accept application")
	}
	if !won {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "application is no longer pending")
	}

	updated, err := s.load(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	s.invalidateBoth(ctx, sponsorID, application.ParticipantID)
	s.logger.Info("application accepted",
		zap.String("application_id", applicationID),
		zap.String("engagement_id", application.EngagementID),
		zap.String("participant_id", application.ParticipantID))
	return &AcceptResult{Application: updated, FirstAcceptanceNotice: !updated.Notified}, nil
}

// Reject transitions a pending application to REJECTED. No cascade.
func (s *ApplicationService) Reject(ctx context.Context, applicationID, sponsorID string) (*models.Application, error) {
	application, engagement, err := s.loadWithEngagement(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if engagement.SponsorID != sponsorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "engagement belongs to another sponsor")
	}
	if application.Status != models.ApplicationStatusPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "only pending applications can be rejected")
	}

	won, err := s.repo.TransitionFromPending(ctx, applicationID, models.ApplicationStatusRejected)
	if err != nil {
		return nil, appErrors.FromStore(err, "failed to reject application")
	}
	if !won {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "application is no longer pending")
	}
	s.invalidateBoth(ctx, sponsorID, application.ParticipantID)
	return s.load(ctx, applicationID)
}

// AcknowledgeAcceptance flips the one-time acceptance notice flag for the
// applicant. NoticePending is true only on the first acknowledgement.
func (s *ApplicationService) AcknowledgeAcceptance(ctx context.Context, applicationID, participantID string) (*AcknowledgeResult, error) {
	application, err := s.load(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if application.ParticipantID != participantID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "application belongs to another participant")
	}
	if application.Status != models.ApplicationStatusAccepted {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "application is not accepted")
	}

	wasPending, err := s.repo.MarkNotified(ctx, applicationID)
	if err != nil {
		return nil, appErrors.FromStore(err, "failed to acknowledge acceptance")
	}
	updated, err := s.load(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	return &AcknowledgeResult{Application: updated, NoticePending: wasPending}, nil
}

// History returns the participant's applications newest first.
func (s *ApplicationService) History(ctx context.Context, participantID string) ([]models.ApplicationDetail, error) {
	applications, err := s.repo.ListByParticipant(ctx, participantID)
	if err != nil {
		return nil, appErrors.FromStore(err, "failed to list applications")
	}
	return applications, nil
}

// ListForEngagement returns an engagement's applications to its owner.
func (s *ApplicationService) ListForEngagement(ctx context.Context, engagementID, sponsorID string) ([]models.ApplicationDetail, error) {
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
	applications, err := s.repo.ListByEngagement(ctx, engagementID)
	if err != nil {
		return nil, appErrors.FromStore(err, "failed to list applications")
	}
	return applications, nil
}

func (s *ApplicationService) load(ctx context.Context, id string) (*models.Application, error) {
	application, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.FromStore(err, "failed to load application")
	}
	return application, nil
}

func (s *ApplicationService) loadWithEngagement(ctx context.Context, id string) (*models.Application, *models.Engagement, error) {
	application, err := s.load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	engagement, err := s.engagements.FindByID(ctx, application.EngagementID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "engagement not found")
		}
		return nil, nil, appErrors.FromStore(err, "failed to load engagement")
	}
	return application, engagement, nil
}

func (s *ApplicationService) invalidateParticipant(ctx context.Context, participantID string) {
	if s.dashboard != nil {
		s.dashboard.InvalidateParticipant(ctx, participantID)
	}
}

func (s *ApplicationService) invalidateBoth(ctx context.Context, sponsorID, participantID string) {
	if s.dashboard != nil {
		s.dashboard.InvalidateSponsor(ctx, sponsorID)
		s.dashboard.InvalidateParticipant(ctx, participantID)
	}
}
