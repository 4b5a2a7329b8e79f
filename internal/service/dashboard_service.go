package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/workbridge/engage-api/internal/dto"
	"github.com/workbridge/engage-api/internal/models"
	appErrors "github.com/workbridge/engage-api/pkg/errors"
)

type dashboardApplicationReader interface {
	ListByParticipant(ctx context.Context, participantID string) ([]models.ApplicationDetail, error)
	ListByEngagement(ctx context.Context, engagementID string) ([]models.ApplicationDetail, error)
	CountPendingByEngagement(ctx context.Context, sponsorID string) (map[string]int, error)
}

type dashboardEngagementReader interface {
	CountByStatus(ctx context.Context, sponsorID string) (open int, closed int, err error)
	List(ctx context.Context, filter models.EngagementFilter) ([]models.EngagementDetail, int, error)
}

type dashboardDeliverableReader interface {
	ListByEngagement(ctx context.Context, engagementID string) ([]models.Deliverable, error)
	Progress(ctx context.Context, engagementID string) (approved int, total int, err error)
	CountAwaitingReview(ctx context.Context, sponsorID string) (int, error)
}

type dashboardMessageReader interface {
	UnreadCountForParticipant(ctx context.Context, participantID string) (int, error)
}

type profileCompletenessReader interface {
	Completeness(ctx context.Context, id string) (int, error)
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Applications dashboardApplicationReader
	Engagements  dashboardEngagementReader
	Deliverables dashboardDeliverableReader
	Messages     dashboardMessageReader
	Profiles     profileCompletenessReader
	Cache        *CacheService
	Logger       *zap.Logger
	CacheTTL     time.Duration
	RecentLimit  int
}

// DashboardService composes read-only joins across the engagement,
// application, deliverable, and message stores. It owns no state of its own;
// the underlying stores stay authoritative and this layer only mirrors them.
type DashboardService struct {
	applications dashboardApplicationReader
	engagements  dashboardEngagementReader
	deliverables dashboardDeliverableReader
	messages     dashboardMessageReader
	profiles     profileCompletenessReader
	cache        *CacheService
	logger       *zap.Logger
	cacheTTL     time.Duration
	recentLimit  int
	now          func() time.Time
}

// NewDashboardService constructs a DashboardService.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	ttl := params.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := params.RecentLimit
	if limit <= 0 {
		limit = 10
	}
	return &DashboardService{
		applications: params.Applications,
		engagements:  params.Engagements,
		deliverables: params.Deliverables,
		messages:     params.Messages,
		profiles:     params.Profiles,
		cache:        params.Cache,
		logger:       logger,
		cacheTTL:     ttl,
		recentLimit:  limit,
		now:          time.Now,
	}
}

func participantDashboardKey(id string) string {
	return fmt.Sprintf("dashboard:participant:%s", id)
}

func sponsorDashboardKey(id string) string {
	return fmt.Sprintf("dashboard:sponsor:%s", id)
}

// InvalidateParticipant drops the participant's cached dashboard so their
// next read reflects their own write.
func (s *DashboardService) InvalidateParticipant(ctx context.Context, participantID string) {
	if err := s.cache.Invalidate(ctx, participantDashboardKey(participantID)); err != nil {
		s.logger.Warn("participant dashboard invalidation failed",
			zap.String("participant_id", participantID), zap.Error(err))
	}
}

// InvalidateSponsor drops the sponsor's cached dashboard.
func (s *DashboardService) InvalidateSponsor(ctx context.Context, sponsorID string) {
	if err := s.cache.Invalidate(ctx, sponsorDashboardKey(sponsorID)); err != nil {
		s.logger.Warn("sponsor dashboard invalidation failed",
			zap.String("sponsor_id", sponsorID), zap.Error(err))
	}
}

// Participant assembles the participant dashboard. The second return reports
// whether the payload came from cache. Absent profiles and empty histories
// produce zero values, never errors.
func (s *DashboardService) Participant(ctx context.Context, participantID string) (*dto.ParticipantDashboardResponse, bool, error) {
	key := participantDashboardKey(participantID)
	var cached dto.ParticipantDashboardResponse
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return &cached, true, nil
	}

	history, err := s.applications.ListByParticipant(ctx, participantID)
	if err != nil {
		return nil, false, appErrors.FromStore(err, "failed to load application history")
	}

	response := &dto.ParticipantDashboardResponse{
		StatusCard:   buildStatusCard(history),
		History:      history,
		Deliverables: []dto.DeliverableSummary{},
	}

	if response.StatusCard.State == dto.StatusCardActive {
		summary, err := s.deliverableSummary(ctx, response.StatusCard.Application)
		if err != nil {
			return nil, false, err
		}
		response.Deliverables = append(response.Deliverables, *summary)
	}

	completeness, err := s.profiles.Completeness(ctx, participantID)
	if err != nil {
		s.logger.Warn("profile completeness lookup failed",
			zap.String("participant_id", participantID), zap.Error(err))
	} else {
		response.ProfileCompleteness = completeness
	}

	unread, err := s.messages.UnreadCountForParticipant(ctx, participantID)
	if err != nil {
		s.logger.Warn("unread count lookup failed",
			zap.String("participant_id", participantID), zap.Error(err))
	} else {
		response.UnreadMessages = unread
	}

	if err := s.cache.Set(ctx, key, response, s.cacheTTL); err != nil {
		s.logger.Warn("participant dashboard cache write failed", zap.Error(err))
	}
	return response, false, nil
}

// Sponsor assembles the sponsor dashboard. The second return reports whether
// the payload came from cache.
func (s *DashboardService) Sponsor(ctx context.Context, sponsorID string) (*dto.SponsorDashboardResponse, bool, error) {
	key := sponsorDashboardKey(sponsorID)
	var cached dto.SponsorDashboardResponse
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return &cached, true, nil
	}

	open, closed, err := s.engagements.CountByStatus(ctx, sponsorID)
	if err != nil {
		return nil, false, appErrors.FromStore(err, "failed to count engagements")
	}
	pending, err := s.applications.CountPendingByEngagement(ctx, sponsorID)
	if err != nil {
		return nil, false, appErrors.FromStore(err, "failed to count pending applications")
	}
	reviews, err := s.deliverables.CountAwaitingReview(ctx, sponsorID)
	if err != nil {
		return nil, false, appErrors.FromStore(err, "failed to count pending reviews")
	}
	recent, err := s.recentApplications(ctx, sponsorID)
	if err != nil {
		return nil, false, err
	}

	response := &dto.SponsorDashboardResponse{
		OpenEngagements:     open,
		ClosedEngagements:   closed,
		PendingByEngagement: pending,
		PendingReviews:      reviews,
		RecentApplications:  recent,
	}

	if err := s.cache.Set(ctx, key, response, s.cacheTTL); err != nil {
		s.logger.Warn("sponsor dashboard cache write failed", zap.Error(err))
	}
	return response, false, nil
}

func (s *DashboardService) deliverableSummary(ctx context.Context, application *models.ApplicationDetail) (*dto.DeliverableSummary, error) {
	items, err := s.deliverables.ListByEngagement(ctx, application.EngagementID)
	if err != nil {
		return nil, appErrors.FromStore(err, "failed to load deliverables")
	}
	approved, total, err := s.deliverables.Progress(ctx, application.EngagementID)
	if err != nil {
		return nil, appErrors.FromStore(err, "failed to compute progress")
	}
	return &dto.DeliverableSummary{
		EngagementID:    application.EngagementID,
		EngagementTitle: application.EngagementTitle,
		Progress: models.DeliverableProgress{
			EngagementID: application.EngagementID,
			Total:        total,
			Approved:     approved,
			Percent:      progressPercent(approved, total),
		},
		Items: items,
	}, nil
}

func (s *DashboardService) recentApplications(ctx context.Context, sponsorID string) ([]dto.RecentApplication, error) {
	engagements, _, err := s.engagements.List(ctx, models.EngagementFilter{SponsorID: sponsorID, PageSize: 100})
	if err != nil {
		return nil, appErrors.FromStore(err, "failed to list engagements")
	}
	recent := []dto.RecentApplication{}
	for _, engagement := range engagements {
		applications, err := s.applications.ListByEngagement(ctx, engagement.ID)
		if err != nil {
			return nil, appErrors.FromStore(err, "failed to list applications")
		}
		for _, application := range applications {
			recent = append(recent, dto.RecentApplication{
				ID:              application.ID,
				EngagementID:    application.EngagementID,
				EngagementTitle: application.EngagementTitle,
				ParticipantName: application.ParticipantName,
				Status:          application.Status,
				AppliedAt:       application.AppliedAt,
			})
		}
	}
	sort.Slice(recent, func(i, j int) bool {
		return recent[i].AppliedAt.After(recent[j].AppliedAt)
	})
	if len(recent) > s.recentLimit {
		recent = recent[:s.recentLimit]
	}
	return recent, nil
}

// buildStatusCard picks the participant's single authoritative status: the
// accepted application on a still-open engagement if one exists, else the
// most recently applied non-accepted application, else the empty state.
// History arrives newest first, so the first match wins.
func buildStatusCard(history []models.ApplicationDetail) dto.StatusCard {
	for i := range history {
		if history[i].Status == models.ApplicationStatusAccepted && history[i].EngagementStatus == models.EngagementStatusOpen {
			return dto.StatusCard{State: dto.StatusCardActive, Application: &history[i]}
		}
	}
	for i := range history {
		if history[i].Status != models.ApplicationStatusAccepted {
			return dto.StatusCard{State: dto.StatusCardLatestResult, Application: &history[i]}
		}
	}
	return dto.StatusCard{State: dto.StatusCardEmpty}
}
