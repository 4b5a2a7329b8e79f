package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/workbridge/engage-api/internal/models"
)

const enrollmentColumns = `id, engagement_id, participant_id, status, enrolled_at, ended_at`

// EnrollmentRepository handles persistence of enrollments. Enrollment rows
// are created only inside ApplicationRepository.AcceptAndEnroll; this
// repository serves the read and conclude paths.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// FindActive returns the active enrollment for the pair, if any.
func (r *EnrollmentRepository) FindActive(ctx context.Context, engagementID, participantID string) (*models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE engagement_id = $1 AND participant_id = $2 AND status = $3`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, engagementID, participantID, models.EnrollmentStatusActive); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// Find returns the enrollment for the pair regardless of status.
func (r *EnrollmentRepository) Find(ctx context.Context, engagementID, participantID string) (*models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE engagement_id = $1 AND participant_id = $2`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, engagementID, participantID); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// ListActiveByEngagement returns the currently enrolled participant set.
func (r *EnrollmentRepository) ListActiveByEngagement(ctx context.Context, engagementID string) ([]models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE engagement_id = $1 AND status = $2 ORDER BY enrolled_at`, enrollmentColumns)
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, engagementID, models.EnrollmentStatusActive); err != nil {
		return nil, fmt.Errorf("list engagement enrollments: %w", err)
	}
	return enrollments, nil
}

// FindActiveByParticipant returns the participant's current enrollment on an
// open engagement, if one exists.
func (r *EnrollmentRepository) FindActiveByParticipant(ctx context.Context, participantID string) (*models.Enrollment, error) {
	const query = `SELECT en.id, en.engagement_id, en.participant_id, en.status, en.enrolled_at, en.ended_at
        FROM enrollments en
        JOIN engagements e ON e.id = en.engagement_id
        WHERE en.participant_id = $1 AND en.status = $2 AND e.status = $3
        ORDER BY en.enrolled_at DESC
        LIMIT 1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, participantID, models.EnrollmentStatusActive, models.EngagementStatusOpen); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// End concludes an active enrollment. Returns false when the enrollment was
// not active.
func (r *EnrollmentRepository) End(ctx context.Context, engagementID, participantID string, endedAt time.Time) (bool, error) {
	const query = `UPDATE enrollments SET status = $3, ended_at = $4
        WHERE engagement_id = $1 AND participant_id = $2 AND status = $5`
	res, err := r.db.ExecContext(ctx, query, engagementID, participantID, models.EnrollmentStatusEnded, endedAt, models.EnrollmentStatusActive)
	if err != nil {
		return false, fmt.Errorf("end enrollment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("end enrollment result: %w", err)
	}
	return affected == 1, nil
}

// WasEverEnrolled reports whether the participant has any enrollment row for
// the engagement, active or ended.
func (r *EnrollmentRepository) WasEverEnrolled(ctx context.Context, engagementID, participantID string) (bool, error) {
	const query = `SELECT 1 FROM enrollments WHERE engagement_id = $1 AND participant_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, engagementID, participantID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check enrollment history: %w", err)
	}
	return true, nil
}
