package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/workbridge/engage-api/internal/models"
)

const deliverableColumns = `id, engagement_id, title, description, due_date, status, created_at`

// DeliverableRepository handles persistence of deliverables and submissions.
type DeliverableRepository struct {
	db *sqlx.DB
}

// NewDeliverableRepository constructs the repository.
func NewDeliverableRepository(db *sqlx.DB) *DeliverableRepository {
	return &DeliverableRepository{db: db}
}

// Create persists a new deliverable record.
func (r *DeliverableRepository) Create(ctx context.Context, deliverable *models.Deliverable) error {
	if deliverable.ID == "" {
		deliverable.ID = uuid.NewString()
	}
	if deliverable.CreatedAt.IsZero() {
		deliverable.CreatedAt = time.Now().UTC()
	}
	if deliverable.Status == "" {
		deliverable.Status = models.DeliverableStatusPending
	}
	const query = `INSERT INTO deliverables (id, engagement_id, title, description, due_date, status, created_at)
        VALUES (:id, :engagement_id, :title, :description, :due_date, :status, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, deliverable); err != nil {
		return fmt.Errorf("create deliverable: %w", err)
	}
	return nil
}

// FindByID returns a deliverable by its ID.
func (r *DeliverableRepository) FindByID(ctx context.Context, id string) (*models.Deliverable, error) {
	query := fmt.Sprintf(`SELECT %s FROM deliverables WHERE id = $1`, deliverableColumns)
	var deliverable models.Deliverable
	if err := r.db.GetContext(ctx, &deliverable, query, id); err != nil {
		return nil, err
	}
	return &deliverable, nil
}

// ListByEngagement returns an engagement's deliverables oldest first.
func (r *DeliverableRepository) ListByEngagement(ctx context.Context, engagementID string) ([]models.Deliverable, error) {
	query := fmt.Sprintf(`SELECT %s FROM deliverables WHERE engagement_id = $1 ORDER BY created_at`, deliverableColumns)
	var deliverables []models.Deliverable
	if err := r.db.SelectContext(ctx, &deliverables, query, engagementID); err != nil {
		return nil, fmt.Errorf("list deliverables: %w", err)
	}
	return deliverables, nil
}

// Start moves a pending deliverable to IN_PROGRESS. Returns false when the
// deliverable was not pending.
func (r *DeliverableRepository) Start(ctx context.Context, id string) (bool, error) {
	const query = `UPDATE deliverables SET status = $2 WHERE id = $1 AND status = $3`
	res, err := r.db.ExecContext(ctx, query, id, models.DeliverableStatusInProgress, models.DeliverableStatusPending)
	if err != nil {
		return false, fmt.Errorf("start deliverable: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("start deliverable result: %w", err)
	}
	return affected == 1, nil
}

// SubmitAndRecord atomically appends a submission and moves the deliverable
// to SUBMITTED. The status guard excludes APPROVED so an already-approved
// deliverable cannot regress; the caller sees false when the guard fails.
func (r *DeliverableRepository) SubmitAndRecord(ctx context.Context, submission *models.Submission) (bool, error) {
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	if submission.SubmittedAt.IsZero() {
		submission.SubmittedAt = time.Now().UTC()
	}
	submission.Status = models.SubmissionStatusSubmitted

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin submit: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const advance = `UPDATE deliverables SET status = $2 WHERE id = $1 AND status IN ($3, $4, $5)`
	res, err := tx.ExecContext(ctx, advance, submission.DeliverableID, models.DeliverableStatusSubmitted,
		models.DeliverableStatusPending, models.DeliverableStatusInProgress, models.DeliverableStatusRejected)
	if err != nil {
		return false, fmt.Errorf("advance deliverable: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("advance deliverable result: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	const record = `INSERT INTO submissions (id, deliverable_id, participant_id, content, artifact_path, status, feedback, submitted_at)
        VALUES (:id, :deliverable_id, :participant_id, :content, :artifact_path, :status, :feedback, :submitted_at)`
	if _, err := tx.NamedExecContext(ctx, record, submission); err != nil {
		return false, fmt.Errorf("record submission: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit submit: %w", err)
	}
	return true, nil
}

// Review atomically resolves a SUBMITTED deliverable and stamps the outcome
// and feedback onto the latest submission. Returns false when the
// deliverable was not awaiting review.
func (r *DeliverableRepository) Review(ctx context.Context, id string, outcome models.DeliverableStatus, feedback *string) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin review: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const resolve = `UPDATE deliverables SET status = $2 WHERE id = $1 AND status = $3`
	res, err := tx.ExecContext(ctx, resolve, id, outcome, models.DeliverableStatusSubmitted)
	if err != nil {
		return false, fmt.Errorf("resolve deliverable: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("resolve deliverable result: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	submissionStatus := models.SubmissionStatusApproved
	if outcome == models.DeliverableStatusRejected {
		submissionStatus = models.SubmissionStatusRejected
	}
	const stamp = `UPDATE submissions SET status = $2, feedback = $3
        WHERE id = (SELECT id FROM submissions WHERE deliverable_id = $1 ORDER BY submitted_at DESC LIMIT 1)`
	if _, err := tx.ExecContext(ctx, stamp, id, submissionStatus, feedback); err != nil {
		return false, fmt.Errorf("stamp submission: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit review: %w", err)
	}
	return true, nil
}

// ListSubmissions returns a deliverable's submissions newest first.
func (r *DeliverableRepository) ListSubmissions(ctx context.Context, deliverableID string) ([]models.Submission, error) {
	const query = `SELECT id, deliverable_id, participant_id, content, artifact_path, status, feedback, submitted_at
        FROM submissions WHERE deliverable_id = $1 ORDER BY submitted_at DESC`
	var submissions []models.Submission
	if err := r.db.SelectContext(ctx, &submissions, query, deliverableID); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return submissions, nil
}

// Progress returns approved and total deliverable counts for an engagement.
func (r *DeliverableRepository) Progress(ctx context.Context, engagementID string) (approved int, total int, err error) {
	const query = `SELECT
        COUNT(*) FILTER (WHERE status = 'APPROVED') AS approved,
        COUNT(*) AS total
        FROM deliverables WHERE engagement_id = $1`
	row := r.db.QueryRowxContext(ctx, query, engagementID)
	if err := row.Scan(&approved, &total); err != nil {
		if err == sql.ErrNoRows {
			return 0, 0, nil
		}
		return 0, 0, fmt.Errorf("deliverable progress: %w", err)
	}
	return approved, total, nil
}

// CountAwaitingReview returns the number of SUBMITTED deliverables across
// all of a sponsor's engagements.
func (r *DeliverableRepository) CountAwaitingReview(ctx context.Context, sponsorID string) (int, error) {
	const query = `SELECT COUNT(*) FROM deliverables d
        JOIN engagements e ON e.id = d.engagement_id
        WHERE e.sponsor_id = $1 AND d.status = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, sponsorID, models.DeliverableStatusSubmitted); err != nil {
		return 0, fmt.Errorf("count awaiting review: %w", err)
	}
	return count, nil
}
