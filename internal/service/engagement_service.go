package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/workbridge/engage-api/internal/models"
	appErrors "github.com/workbridge/engage-api/pkg/errors"
)

type engagementRepository interface {
	Create(ctx context.Context, engagement *models.Engagement) error
	FindByID(ctx context.Context, id string) (*models.Engagement, error)
	FindDetailByID(ctx context.Context, id string) (*models.EngagementDetail, error)
	List(ctx context.Context, filter models.EngagementFilter) ([]models.EngagementDetail, int, error)
	ApplyPatchOnce(ctx context.Context, id string, patch models.EngagementPatch) (bool, error)
	SetStatus(ctx context.Context, id string, status models.EngagementStatus, changedAt time.Time) (bool, error)
	DeleteCascade(ctx context.Context, id string) error
}

type dashboardInvalidator interface {
	InvalidateSponsor(ctx context.Context, sponsorID string)
}

// CreateEngagementRequest describes a sponsor's new posting.
type CreateEngagementRequest struct {
	Title              string `json:"title" validate:"required,max=200"`
	Description        string `json:"description" validate:"required"`
	Category           string `json:"category" validate:"required,max=100"`
	Duration           string `json:"duration" validate:"max=100"`
	CompensationAmount *int64 `json:"compensation_amount,omitempty"`
	ExperienceOnly     bool   `json:"experience_only"`
}

// SetEngagementStatusRequest toggles the posting status.
type SetEngagementStatusRequest struct {
	Status models.EngagementStatus `json:"status" validate:"required,oneof=OPEN CLOSED"`
}

// SetStatusResult reports the applied status and whether anything changed.
type SetStatusResult struct {
	Engagement *models.Engagement `json:"engagement"`
	Changed    bool               `json:"changed"`
}

// EngagementService owns the engagement lifecycle: creation, the one-shot
// edit, the open/closed toggle, and the transactional delete cascade.
type EngagementService struct {
	repo      engagementRepository
	dashboard dashboardInvalidator
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewEngagementService constructs EngagementService.
func NewEngagementService(repo engagementRepository, dashboard dashboardInvalidator, validate *validator.Validate, logger *zap.Logger) *EngagementService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EngagementService{repo: repo, dashboard: dashboard, validator: validate, logger: logger, now: time.Now}
}

// Create posts a new engagement. Compensation must be either a non-negative
// amount or experience-only, and exactly one of the two.
func (s *EngagementService) Create(ctx context.Context, sponsorID string, req CreateEngagementRequest) (*models.Engagement, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid engagement payload")
	}
	if err := validateCompensation(req.CompensationAmount, req.ExperienceOnly); err != nil {
		return nil, err
	}

	engagement := &models.Engagement{
		SponsorID:          sponsorID,
		Title:              req.Title,
		Description:        req.Description,
		Category:           req.Category,
		Duration:           req.Duration,
		CompensationAmount: req.CompensationAmount,
		ExperienceOnly:     req.ExperienceOnly,
		Status:             models.EngagementStatusOpen,
		CreatedAt:          s.now().UTC(),
	}
	if err := s.repo.Create(ctx, engagement); err != nil {
		return nil, appErrors.FromStore(err, "failed to create engagement")
	}
	s.invalidate(ctx, sponsorID)
	s.logger.Info("engagement created",
		zap.String("engagement_id", engagement.ID),
		zap.String("sponsor_id", sponsorID))
	return engagement, nil
}

// Get returns an engagement with sponsor and applicant context.
func (s *EngagementService) Get(ctx context.Context, id string) (*models.EngagementDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "engagement not found")
		}
		return nil, appErrors.FromStore(err, "failed to load engagement")
	}
	return detail, nil
}

// List returns engagements with pagination metadata.
func (s *EngagementService) List(ctx context.Context, filter models.EngagementFilter) ([]models.EngagementDetail, *models.Pagination, error) {
	engagements, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.FromStore(err, "failed to list engagements")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return engagements, pagination, nil
}

// Edit applies the sponsor's one-shot substantive edit. The second attempt
// always fails with ALREADY_EDITED, no matter who calls or what the patch
// contains; the rule is enforced by the store, not by UI copy.
func (s *EngagementService) Edit(ctx context.Context, id, sponsorID string, patch models.EngagementPatch) (*models.Engagement, error) {
	engagement, err := s.loadOwned(ctx, id, sponsorID)
	if err != nil {
		return nil, err
	}
	if engagement.Edited {
		return nil, appErrors.Clone(appErrors.ErrAlreadyEdited, "")
	}
	if patch.Empty() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "empty patch")
	}
	if patch.CompensationAmount != nil || patch.ExperienceOnly != nil {
		amount := engagement.CompensationAmount
		experienceOnly := engagement.ExperienceOnly
		if patch.CompensationAmount != nil {
			amount = patch.CompensationAmount
		}
		if patch.ExperienceOnly != nil {
			experienceOnly = *patch.ExperienceOnly
			if experienceOnly {
				amount = nil
			}
		}
		if err := validateCompensation(amount, experienceOnly); err != nil {
			return nil, err
		}
	}

	won, err := s.repo.ApplyPatchOnce(ctx, id, patch)
	if err != nil {
		return nil, appErrors.FromStore(err, "failed to edit engagement")
	}
	if !won {
		// A concurrent edit got there first.
		return nil, appErrors.Clone(appErrors.ErrAlreadyEdited, "")
	}

	updated, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.FromStore(err, "failed to reload engagement")
	}
	s.invalidate(ctx, sponsorID)
	return updated, nil
}

// SetStatus toggles the posting between open and closed. Setting the current
// status is a no-op, not an error. Closing concludes all active enrollments
// in the same store transaction as the status change.
func (s *EngagementService) SetStatus(ctx context.Context, id, sponsorID string, req SetEngagementStatusRequest) (*SetStatusResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	if _, err := s.loadOwned(ctx, id, sponsorID); err != nil {
		return nil, err
	}

	changed, err := s.repo.SetStatus(ctx, id, req.Status, s.now().UTC())
	if err != nil {
		return nil, appErrors.FromStore(err, "failed to set engagement status")
	}

	updated, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.FromStore(err, "failed to reload engagement")
	}
	s.invalidate(ctx, sponsorID)
	return &SetStatusResult{Engagement: updated, Changed: changed}, nil
}

// Delete removes the engagement and every dependent record in a single
// transaction, so a crash mid-cascade can never leave orphaned deliverables
// or messages pointing at a missing engagement.
func (s *EngagementService) Delete(ctx context.Context, id, sponsorID string) error {
	if _, err := s.loadOwned(ctx, id, sponsorID); err != nil {
		return err
	}
	if err := s.repo.DeleteCascade(ctx, id); err != nil {
		return appErrors.FromStore(err, "failed to delete engagement")
	}
	s.invalidate(ctx, sponsorID)
	s.logger.Info("engagement deleted",
		zap.String("engagement_id", id),
		zap.String("sponsor_id", sponsorID))
	return nil
}

func (s *EngagementService) loadOwned(ctx context.Context, id, sponsorID string) (*models.Engagement, error) {
	engagement, err := s.repo.FindByID(ctx, id)
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

func (s *EngagementService) invalidate(ctx context.Context, sponsorID string) {
	if s.dashboard != nil {
		s.dashboard.InvalidateSponsor(ctx, sponsorID)
	}
}

func validateCompensation(amount *int64, experienceOnly bool) error {
	switch {
	case experienceOnly && amount != nil:
		return appErrors.Clone(appErrors.ErrValidation, "compensation amount and experience-only are mutually exclusive")
	case !experienceOnly && amount == nil:
		return appErrors.Clone(appErrors.ErrValidation, "either a compensation amount or experience-only is required")
	case amount != nil && *amount < 0:
		return appErrors.Clone(appErrors.ErrValidation, "compensation amount must be non-negative")
	}
	return nil
}
