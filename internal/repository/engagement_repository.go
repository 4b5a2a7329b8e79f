package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/workbridge/engage-api/internal/models"
)

// EngagementRepository handles persistence of engagements.
type EngagementRepository struct {
	db *sqlx.DB
}

// NewEngagementRepository constructs the repository.
func NewEngagementRepository(db *sqlx.DB) *EngagementRepository {
	return &EngagementRepository{db: db}
}

// Create persists a new engagement record.
func (r *EngagementRepository) Create(ctx context.Context, engagement *models.Engagement) error {
	if engagement.ID == "" {
		engagement.ID = uuid.NewString()
	}
	if engagement.CreatedAt.IsZero() {
		engagement.CreatedAt = time.Now().UTC()
	}
	if engagement.Status == "" {
		engagement.Status = models.EngagementStatusOpen
	}
	const query = `INSERT INTO engagements (id, sponsor_id, title, description, category, duration, compensation_amount, experience_only, status, edited, created_at, status_changed_at)
        VALUES (:id, :sponsor_id, :title, :description, :category, :duration, :compensation_amount, :experience_only, :status, :edited, :created_at, :status_changed_at)`
	if _, err := r.db.NamedExecContext(ctx, query, engagement); err != nil {
		return fmt.Errorf("create engagement: %w", err)
	}
	return nil
}

// FindByID returns an engagement by its ID.
func (r *EngagementRepository) FindByID(ctx context.Context, id string) (*models.Engagement, error) {
	const query = `SELECT id, sponsor_id, title, description, category, duration, compensation_amount, experience_only, status, edited, created_at, status_changed_at
        FROM engagements WHERE id = $1`
	var engagement models.Engagement
	if err := r.db.GetContext(ctx, &engagement, query, id); err != nil {
		return nil, err
	}
	return &engagement, nil
}

// FindDetailByID returns an engagement with sponsor and applicant context.
func (r *EngagementRepository) FindDetailByID(ctx context.Context, id string) (*models.EngagementDetail, error) {
	const query = `SELECT e.id, e.sponsor_id, e.title, e.description, e.category, e.duration, e.compensation_amount, e.experience_only, e.status, e.edited, e.created_at, e.status_changed_at,
        COALESCE(a.display_name, '') AS sponsor_name,
        (SELECT COUNT(*) FROM applications ap WHERE ap.engagement_id = e.id AND ap.status = 'PENDING') AS pending_count,
        (SELECT COUNT(*) FROM enrollments en WHERE en.engagement_id = e.id AND en.status = 'ACTIVE') AS enrolled_count
        FROM engagements e
        LEFT JOIN actors a ON a.id = e.sponsor_id
        WHERE e.id = $1`
	var detail models.EngagementDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// List returns engagements filtered by the provided criteria.
func (r *EngagementRepository) List(ctx context.Context, filter models.EngagementFilter) ([]models.EngagementDetail, int, error) {
	base := `FROM engagements e
LEFT JOIN actors a ON a.id = e.sponsor_id`
	var conditions []string
	var args []interface{}

	if filter.SponsorID != "" {
		conditions = append(conditions, fmt.Sprintf("e.sponsor_id = $%d", len(args)+1))
		args = append(args, filter.SponsorID)
	}
	if filter.Category != "" {
		conditions = append(conditions, fmt.Sprintf("e.category = $%d", len(args)+1))
		args = append(args, filter.Category)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(e.title ILIKE $%d OR e.description ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"created_at": "e.created_at",
		"title":      "e.title",
		"category":   "e.category",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "e.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT e.id, e.sponsor_id, e.title, e.description, e.category, e.duration, e.compensation_amount, e.experience_only, e.status, e.edited, e.created_at, e.status_changed_at,
        COALESCE(a.display_name, '') AS sponsor_name,
        (SELECT COUNT(*) FROM applications ap WHERE ap.engagement_id = e.id AND ap.status = 'PENDING') AS pending_count,
        (SELECT COUNT(*) FROM enrollments en WHERE en.engagement_id = e.id AND en.status = 'ACTIVE') AS enrolled_count
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var engagements []models.EngagementDetail
	if err := r.db.SelectContext(ctx, &engagements, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list engagements: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count engagements: %w", err)
	}
	return engagements, total, nil
}

// ApplyPatchOnce applies the one-shot edit. The update is guarded by
// edited = FALSE so a concurrent second edit deterministically loses; the
// boolean result reports whether this caller won.
func (r *EngagementRepository) ApplyPatchOnce(ctx context.Context, id string, patch models.EngagementPatch) (bool, error) {
	sets := []string{"edited = TRUE"}
	args := []interface{}{id}

	appendSet := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.Title != nil {
		appendSet("title", *patch.Title)
	}
	if patch.Description != nil {
		appendSet("description", *patch.Description)
	}
	if patch.Category != nil {
		appendSet("category", *patch.Category)
	}
	if patch.Duration != nil {
		appendSet("duration", *patch.Duration)
	}
	if patch.CompensationAmount != nil {
		appendSet("compensation_amount", *patch.CompensationAmount)
	}
	if patch.ExperienceOnly != nil {
		appendSet("experience_only", *patch.ExperienceOnly)
		if *patch.ExperienceOnly {
			sets = append(sets, "compensation_amount = NULL")
		}
	}

	query := fmt.Sprintf("UPDATE engagements SET %s WHERE id = $1 AND edited = FALSE", strings.Join(sets, ", "))
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("edit engagement: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("edit engagement result: %w", err)
	}
	return affected == 1, nil
}

// SetStatus transitions the posting status. The guard on the current status
// makes a repeated set a detectable no-op rather than an overwrite. Closing
// also concludes all active enrollments in the same transaction, so a crash
// between the two writes can never leave a closed engagement with active
// enrollments that no retry could reach past the status guard.
func (r *EngagementRepository) SetStatus(ctx context.Context, id string, status models.EngagementStatus, changedAt time.Time) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin set status: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const query = `UPDATE engagements SET status = $2, status_changed_at = $3 WHERE id = $1 AND status <> $2`
	res, err := tx.ExecContext(ctx, query, id, status, changedAt)
	if err != nil {
		return false, fmt.Errorf("set engagement status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set engagement status result: %w", err)
	}

	if affected == 1 && status == models.EngagementStatusClosed {
		const end = `UPDATE enrollments SET status = $2, ended_at = $3 WHERE engagement_id = $1 AND status = $4`
		if _, err := tx.ExecContext(ctx, end, id, models.EnrollmentStatusEnded, changedAt, models.EnrollmentStatusActive); err != nil {
			return false, fmt.Errorf("end enrollments: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit set status: %w", err)
	}
	return affected == 1, nil
}

// DeleteCascade removes the engagement and every dependent record in one
// transaction. The fan-out order respects foreign keys; either the whole
// cascade commits or none of it is visible.
func (r *EngagementRepository) DeleteCascade(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete cascade: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	steps := []string{
		`DELETE FROM submissions WHERE deliverable_id IN (SELECT id FROM deliverables WHERE engagement_id = $1)`,
		`DELETE FROM deliverables WHERE engagement_id = $1`,
		`DELETE FROM message_reads WHERE message_id IN (SELECT id FROM messages WHERE engagement_id = $1)`,
		`DELETE FROM messages WHERE engagement_id = $1`,
		`DELETE FROM resources WHERE engagement_id = $1`,
		`DELETE FROM applications WHERE engagement_id = $1`,
		`DELETE FROM enrollments WHERE engagement_id = $1`,
		`DELETE FROM export_jobs WHERE engagement_id = $1`,
		`DELETE FROM engagements WHERE id = $1`,
	}
	for _, step := range steps {
		if _, err := tx.ExecContext(ctx, step, id); err != nil {
			return fmt.Errorf("delete cascade: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete cascade: %w", err)
	}
	return nil
}

// CountByStatus returns open and closed engagement counts for a sponsor.
func (r *EngagementRepository) CountByStatus(ctx context.Context, sponsorID string) (open int, closed int, err error) {
	const query = `SELECT
        COUNT(*) FILTER (WHERE status = 'OPEN') AS open,
        COUNT(*) FILTER (WHERE status = 'CLOSED') AS closed
        FROM engagements WHERE sponsor_id = $1`
	row := r.db.QueryRowxContext(ctx, query, sponsorID)
	if err := row.Scan(&open, &closed); err != nil {
		return 0, 0, fmt.Errorf("count engagements by status: %w", err)
	}
	return open, closed, nil
}
