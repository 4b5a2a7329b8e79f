package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/workbridge/engage-api/internal/models"
)

const actorColumns = `id, role, display_name, headline, bio, skills, location, website, avatar_path, created_at`

// ActorRepository resolves marketplace identities and profiles.
type ActorRepository struct {
	db *sqlx.DB
}

// NewActorRepository constructs the repository.
func NewActorRepository(db *sqlx.DB) *ActorRepository {
	return &ActorRepository{db: db}
}

// FindByID returns an actor by its ID.
func (r *ActorRepository) FindByID(ctx context.Context, id string) (*models.Actor, error) {
	query := fmt.Sprintf(`SELECT %s FROM actors WHERE id = $1`, actorColumns)
	var actor models.Actor
	if err := r.db.GetContext(ctx, &actor, query, id); err != nil {
		return nil, err
	}
	return &actor, nil
}

// UpdateProfile overwrites the actor's editable profile fields.
func (r *ActorRepository) UpdateProfile(ctx context.Context, actor *models.Actor) error {
	const query = `UPDATE actors SET display_name = :display_name, headline = :headline, bio = :bio,
        skills = :skills, location = :location, website = :website, avatar_path = :avatar_path
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, actor); err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}
