package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusActive EnrollmentStatus = "ACTIVE"
	EnrollmentStatusEnded  EnrollmentStatus = "ENDED"
)

// Enrollment records a participant actively working an engagement. It is
// created only by an application transitioning to ACCEPTED and ends when the
// engagement closes or the participant's work concludes.
type Enrollment struct {
	ID            string           `db:"id" json:"id"`
	EngagementID  string           `db:"engagement_id" json:"engagement_id"`
	ParticipantID string           `db:"participant_id" json:"participant_id"`
	Status        EnrollmentStatus `db:"status" json:"status"`
	EnrolledAt    time.Time        `db:"enrolled_at" json:"enrolled_at"`
	EndedAt       *time.Time       `db:"ended_at" json:"ended_at,omitempty"`
}
