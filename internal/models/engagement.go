package models

import "time"

// EngagementStatus is the sponsor-controlled posting status.
type EngagementStatus string

// Posting statuses. An engagement is additionally considered active for a
// participant while that participant holds an ACTIVE enrollment on it.
const (
	EngagementStatusOpen   EngagementStatus = "OPEN"
	EngagementStatusClosed EngagementStatus = "CLOSED"
)

// Engagement is a discrete unit of work posted by a sponsor.
// Compensation is either a non-negative amount in cents or experience-only,
// never both. Edited flips true on the first substantive edit and blocks any
// further edit.
type Engagement struct {
	ID                 string           `db:"id" json:"id"`
	SponsorID          string           `db:"sponsor_id" json:"sponsor_id"`
	Title              string           `db:"title" json:"title"`
	Description        string           `db:"description" json:"description"`
	Category           string           `db:"category" json:"category"`
	Duration           string           `db:"duration" json:"duration"`
	CompensationAmount *int64           `db:"compensation_amount" json:"compensation_amount,omitempty"`
	ExperienceOnly     bool             `db:"experience_only" json:"experience_only"`
	Status             EngagementStatus `db:"status" json:"status"`
	Edited             bool             `db:"edited" json:"edited"`
	CreatedAt          time.Time        `db:"created_at" json:"created_at"`
	StatusChangedAt    *time.Time       `db:"status_changed_at" json:"status_changed_at,omitempty"`
}

// EngagementDetail enriches Engagement with sponsor and applicant context.
type EngagementDetail struct {
	Engagement
	SponsorName   string `db:"sponsor_name" json:"sponsor_name"`
	PendingCount  int    `db:"pending_count" json:"pending_count"`
	EnrolledCount int    `db:"enrolled_count" json:"enrolled_count"`
}

// EngagementFilter provides filters for listing engagements.
type EngagementFilter struct {
	SponsorID string
	Category  string
	Status    EngagementStatus
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// EngagementPatch carries the fields a sponsor may change in the one-shot
// edit. Nil fields are left untouched.
type EngagementPatch struct {
	Title              *string `json:"title,omitempty"`
	Description        *string `json:"description,omitempty"`
	Category           *string `json:"category,omitempty"`
	Duration           *string `json:"duration,omitempty"`
	CompensationAmount *int64  `json:"compensation_amount,omitempty"`
	ExperienceOnly     *bool   `json:"experience_only,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p EngagementPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Category == nil &&
		p.Duration == nil && p.CompensationAmount == nil && p.ExperienceOnly == nil
}
