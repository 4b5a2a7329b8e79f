package models

import "time"

// DeliverableStatus tracks a deliverable through its submission/review cycle.
type DeliverableStatus string

// Deliverable statuses. APPROVED is terminal; REJECTED permits resubmission.
const (
	DeliverableStatusPending    DeliverableStatus = "PENDING"
	DeliverableStatusInProgress DeliverableStatus = "IN_PROGRESS"
	DeliverableStatusSubmitted  DeliverableStatus = "SUBMITTED"
	DeliverableStatusApproved   DeliverableStatus = "APPROVED"
	DeliverableStatusRejected   DeliverableStatus = "REJECTED"
)

// Submittable reports whether a participant may submit from this status.
func (s DeliverableStatus) Submittable() bool {
	switch s {
	case DeliverableStatusPending, DeliverableStatusInProgress, DeliverableStatusRejected:
		return true
	}
	return false
}

// Deliverable is a trackable unit of required output within an engagement.
type Deliverable struct {
	ID           string            `db:"id" json:"id"`
	EngagementID string            `db:"engagement_id" json:"engagement_id"`
	Title        string            `db:"title" json:"title"`
	Description  string            `db:"description" json:"description"`
	DueDate      *time.Time        `db:"due_date" json:"due_date,omitempty"`
	Status       DeliverableStatus `db:"status" json:"status"`
	CreatedAt    time.Time         `db:"created_at" json:"created_at"`
}

// SubmissionStatus mirrors the review outcome on a single submission.
type SubmissionStatus string

// Submission statuses.
const (
	SubmissionStatusSubmitted SubmissionStatus = "SUBMITTED"
	SubmissionStatusApproved  SubmissionStatus = "APPROVED"
	SubmissionStatusRejected  SubmissionStatus = "REJECTED"
)

// Submission is a participant's attempt at a deliverable.
type Submission struct {
	ID            string           `db:"id" json:"id"`
	DeliverableID string           `db:"deliverable_id" json:"deliverable_id"`
	ParticipantID string           `db:"participant_id" json:"participant_id"`
	Content       string           `db:"content" json:"content"`
	ArtifactPath  *string          `db:"artifact_path" json:"artifact_path,omitempty"`
	Status        SubmissionStatus `db:"status" json:"status"`
	Feedback      *string          `db:"feedback" json:"feedback,omitempty"`
	SubmittedAt   time.Time        `db:"submitted_at" json:"submitted_at"`
}

// DeliverableProgress summarises completion across an engagement's
// deliverables. Percent is rounded to the nearest integer and is 0 when no
// deliverables exist.
type DeliverableProgress struct {
	EngagementID string `json:"engagement_id"`
	Total        int    `json:"total"`
	Approved     int    `json:"approved"`
	Percent      int    `json:"percent"`
}
