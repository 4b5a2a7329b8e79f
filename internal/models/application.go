package models

import "time"

// ApplicationStatus is the lifecycle status of an application.
type ApplicationStatus string

// Application statuses. PENDING is the only non-terminal status.
const (
	ApplicationStatusPending   ApplicationStatus = "PENDING"
	ApplicationStatusAccepted  ApplicationStatus = "ACCEPTED"
	ApplicationStatusRejected  ApplicationStatus = "REJECTED"
	ApplicationStatusWithdrawn ApplicationStatus = "WITHDRAWN"
)

// Terminal reports whether no further transition is allowed.
func (s ApplicationStatus) Terminal() bool {
	return s == ApplicationStatusAccepted || s == ApplicationStatusRejected || s == ApplicationStatusWithdrawn
}

// Application is a participant's request to join an engagement. At most one
// non-withdrawn application exists per (engagement, participant) pair.
type Application struct {
	ID            string            `db:"id" json:"id"`
	EngagementID  string            `db:"engagement_id" json:"engagement_id"`
	ParticipantID string            `db:"participant_id" json:"participant_id"`
	Status        ApplicationStatus `db:"status" json:"status"`
	CoverNote     string            `db:"cover_note" json:"cover_note"`
	AppliedAt     time.Time         `db:"applied_at" json:"applied_at"`
	AcceptedAt    *time.Time        `db:"accepted_at" json:"accepted_at,omitempty"`
	Notified      bool              `db:"notified" json:"notified"`
}

// ApplicationDetail enriches Application with engagement and participant info.
type ApplicationDetail struct {
	Application
	EngagementTitle  string           `db:"engagement_title" json:"engagement_title"`
	EngagementStatus EngagementStatus `db:"engagement_status" json:"engagement_status"`
	ParticipantName  string           `db:"participant_name" json:"participant_name"`
}

// ApplicationFilter provides filters for listing applications.
type ApplicationFilter struct {
	EngagementID  string
	ParticipantID string
	Status        ApplicationStatus
	Page          int
	PageSize      int
}
