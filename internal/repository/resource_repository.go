package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/workbridge/engage-api/internal/models"
)

// ResourceRepository handles persistence of shared resources.
type ResourceRepository struct {
	db *sqlx.DB
}

// NewResourceRepository constructs the repository.
func NewResourceRepository(db *sqlx.DB) *ResourceRepository {
	return &ResourceRepository{db: db}
}

// Create persists a new resource record.
func (r *ResourceRepository) Create(ctx context.Context, resource *models.Resource) error {
	if resource.ID == "" {
		resource.ID = uuid.NewString()
	}
	if resource.CreatedAt.IsZero() {
		resource.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO resources (id, engagement_id, kind, title, ref, created_by, created_at)
        VALUES (:id, :engagement_id, :kind, :title, :ref, :created_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, resource); err != nil {
		return fmt.Errorf("create resource: %w", err)
	}
	return nil
}

// ListByEngagement returns an engagement's resources newest first.
func (r *ResourceRepository) ListByEngagement(ctx context.Context, engagementID string) ([]models.Resource, error) {
	const query = `SELECT id, engagement_id, kind, title, ref, created_by, created_at
        FROM resources WHERE engagement_id = $1 ORDER BY created_at DESC`
	var resources []models.Resource
	if err := r.db.SelectContext(ctx, &resources, query, engagementID); err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	return resources, nil
}
