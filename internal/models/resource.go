package models

import "time"

// ResourceKind is the closed set of shared resource variants.
type ResourceKind string

// Resource kinds. Handling is exhaustive at the collaboration boundary; an
// unknown kind is rejected on write, never compared ad hoc downstream.
const (
	ResourceKindDocument ResourceKind = "DOCUMENT"
	ResourceKindVideo    ResourceKind = "VIDEO"
	ResourceKindLink     ResourceKind = "LINK"
)

// Valid reports whether the kind is a known variant.
func (k ResourceKind) Valid() bool {
	switch k {
	case ResourceKindDocument, ResourceKindVideo, ResourceKindLink:
		return true
	}
	return false
}

// Resource is an artifact shared within an engagement's collaboration scope.
type Resource struct {
	ID           string       `db:"id" json:"id"`
	EngagementID string       `db:"engagement_id" json:"engagement_id"`
	Kind         ResourceKind `db:"kind" json:"kind"`
	Title        string       `db:"title" json:"title"`
	Ref          string       `db:"ref" json:"ref"`
	CreatedBy    string       `db:"created_by" json:"created_by"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
}
