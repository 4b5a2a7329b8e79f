package dto

import (
	"time"

	"github.com/workbridge/engage-api/internal/models"
)

// ParticipantDashboardResponse is the aggregated view for one participant.
type ParticipantDashboardResponse struct {
	StatusCard          StatusCard                 `json:"statusCard"`
	History             []models.ApplicationDetail `json:"history"`
	ProfileCompleteness int                        `json:"profileCompleteness"`
	Deliverables        []DeliverableSummary       `json:"deliverables"`
	UnreadMessages      int                        `json:"unreadMessages"`
}

// StatusCardState enumerates what the card currently shows.
type StatusCardState string

// Status card states: an active engagement, the most recent non-accepted
// application, or nothing at all.
const (
	StatusCardActive       StatusCardState = "ACTIVE_ENGAGEMENT"
	StatusCardLatestResult StatusCardState = "LATEST_APPLICATION"
	StatusCardEmpty        StatusCardState = "NO_APPLICATIONS"
)

// StatusCard is the participant's single "current status" summary. The
// enrollment-bearing application wins; otherwise the most recently applied
// non-accepted application; otherwise the empty state.
type StatusCard struct {
	State       StatusCardState           `json:"state"`
	Application *models.ApplicationDetail `json:"application,omitempty"`
}

// DeliverableSummary pairs an engagement's deliverables with progress.
type DeliverableSummary struct {
	EngagementID    string                     `json:"engagementId"`
	EngagementTitle string                     `json:"engagementTitle"`
	Progress        models.DeliverableProgress `json:"progress"`
	Items           []models.Deliverable       `json:"items"`
}

// SponsorDashboardResponse is the aggregated view for one sponsor.
type SponsorDashboardResponse struct {
	OpenEngagements     int                 `json:"openEngagements"`
	ClosedEngagements   int                 `json:"closedEngagements"`
	PendingByEngagement map[string]int      `json:"pendingByEngagement"`
	PendingReviews      int                 `json:"pendingReviews"`
	RecentApplications  []RecentApplication `json:"recentApplications"`
}

// RecentApplication is a trimmed application row for the sponsor feed.
type RecentApplication struct {
	ID              string                   `json:"id"`
	EngagementID    string                   `json:"engagementId"`
	EngagementTitle string                   `json:"engagementTitle"`
	ParticipantName string                   `json:"participantName"`
	Status          models.ApplicationStatus `json:"status"`
	AppliedAt       time.Time                `json:"appliedAt"`
}
