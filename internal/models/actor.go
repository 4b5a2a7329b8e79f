package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role identifies which side of the marketplace an actor belongs to.
type Role string

// Marketplace roles.
const (
	RoleParticipant Role = "PARTICIPANT"
	RoleSponsor     Role = "SPONSOR"
)

// Valid reports whether the role is a known marketplace role.
func (r Role) Valid() bool {
	return r == RoleParticipant || r == RoleSponsor
}

// Actor is a resolved marketplace identity: an individual offering labor or
// an organization offering work.
type Actor struct {
	ID          string    `db:"id" json:"id"`
	Role        Role      `db:"role" json:"role"`
	DisplayName string    `db:"display_name" json:"display_name"`
	Headline    string    `db:"headline" json:"headline"`
	Bio         string    `db:"bio" json:"bio"`
	Skills      string    `db:"skills" json:"skills"`
	Location    string    `db:"location" json:"location"`
	Website     string    `db:"website" json:"website"`
	AvatarPath  *string   `db:"avatar_path" json:"avatar_path,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// ProfileFields returns the tracked profile fields used for the
// completeness percentage. Missing values count as "not specified".
func (a *Actor) ProfileFields() []string {
	return []string{a.DisplayName, a.Headline, a.Bio, a.Skills, a.Location, a.Website}
}

// JWTClaims is the actor identity carried by a pre-validated access token.
type JWTClaims struct {
	ActorID string `json:"actor_id"`
	Role    Role   `json:"role"`
	jwt.RegisteredClaims
}
