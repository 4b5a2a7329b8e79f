package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/workbridge/engage-api/internal/models"
)

// ErrDuplicateApplication is returned when the partial unique index on
// non-withdrawn (engagement, participant) pairs rejects an insert. It is the
// arbiter for concurrent duplicate applies.
var ErrDuplicateApplication = errors.New("duplicate application")

// ErrActiveAcceptance is returned when an accept finds the participant
// already enrolled on an open engagement. The check runs inside the accept
// transaction under a lock on the participant's actor row, so two racing
// accepts for the same participant serialize and exactly one wins.
var ErrActiveAcceptance = errors.New("participant already has an active acceptance")

const applicationColumns = `id, engagement_id, participant_id, status, cover_note, applied_at, accepted_at, notified`

// ApplicationRepository handles persistence of applications.
type ApplicationRepository struct {
	db *sqlx.DB
}

// NewApplicationRepository constructs the repository.
func NewApplicationRepository(db *sqlx.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

// Create persists a new application in PENDING. A unique-violation from the
// partial index surfaces as ErrDuplicateApplication so exactly one of two
// racing applies wins.
func (r *ApplicationRepository) Create(ctx context.Context, application *models.Application) error {
	if application.ID == "" {
		application.ID = uuid.NewString()
	}
	if application.AppliedAt.IsZero() {
		application.AppliedAt = time.Now().UTC()
	}
	if application.Status == "" {
		application.Status = models.ApplicationStatusPending
	}
	const query = `INSERT INTO applications (id, engagement_id, participant_id, status, cover_note, applied_at, accepted_at, notified)
        VALUES (:id, :engagement_id, :participant_id, :status, :cover_note, :applied_at, :accepted_at, :notified)`
	if _, err := r.db.NamedExecContext(ctx, query, application); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateApplication
		}
		return fmt.Errorf("create application: %w", err)
	}
	return nil
}

// FindByID returns an application by its ID.
func (r *ApplicationRepository) FindByID(ctx context.Context, id string) (*models.Application, error) {
	query := fmt.Sprintf(`SELECT %s FROM applications WHERE id = $1`, applicationColumns)
	var application models.Application
	if err := r.db.GetContext(ctx, &application, query, id); err != nil {
		return nil, err
	}
	return &application, nil
}

// ExistsNonWithdrawn checks whether a live application already exists for the
// (engagement, participant) pair.
func (r *ApplicationRepository) ExistsNonWithdrawn(ctx context.Context, engagementID, participantID string) (bool, error) {
	const query = `SELECT 1 FROM applications WHERE engagement_id = $1 AND participant_id = $2 AND status <> $3 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, engagementID, participantID, models.ApplicationStatusWithdrawn); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check application: %w", err)
	}
	return true, nil
}

// HasActiveAcceptance reports whether the participant holds an accepted
// application whose engagement is still open. This backs the
// one-active-engagement-per-participant rule at accept time.
func (r *ApplicationRepository) HasActiveAcceptance(ctx context.Context, participantID string) (bool, error) {
	const query = `SELECT 1 FROM applications ap
        JOIN engagements e ON e.id = ap.engagement_id
        WHERE ap.participant_id = $1 AND ap.status = $2 AND e.status = $3
        LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, participantID, models.ApplicationStatusAccepted, models.EngagementStatusOpen); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check active acceptance: %w", err)
	}
	return true, nil
}

// TransitionFromPending performs a compare-and-swap from PENDING to the
// target status. The boolean result reports whether this caller won; a loser
// racing a concurrent transition sees false, never an overwrite.
func (r *ApplicationRepository) TransitionFromPending(ctx context.Context, id string, to models.ApplicationStatus) (bool, error) {
	const query = `UPDATE applications SET status = $2 WHERE id = $1 AND status = $3`
	res, err := r.db.ExecContext(ctx, query, id, to, models.ApplicationStatusPending)
	if err != nil {
		return false, fmt.Errorf("transition application: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition application result: %w", err)
	}
	return affected == 1, nil
}

// AcceptAndEnroll atomically accepts a pending application and materializes
// the enrollment. Both writes commit together or not at all; the CAS on
// PENDING rejects a racing withdraw or second accept of the same application.
// The participant's actor row is locked first so accepts for the same
// participant across different engagements serialize, and the one-active-
// engagement check re-runs under that lock; the loser sees
// ErrActiveAcceptance instead of a second enrollment.
func (r *ApplicationRepository) AcceptAndEnroll(ctx context.Context, id string, acceptedAt time.Time) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin accept: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const lock = `SELECT a.id FROM applications ap
        JOIN actors a ON a.id = ap.participant_id
        WHERE ap.id = $1
        FOR UPDATE OF a`
	var lockedParticipantID string
	err = tx.QueryRowxContext(ctx, lock, id).Scan(&lockedParticipantID)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("lock participant: %w", err)
	}

	const active = `SELECT 1 FROM applications ap
        JOIN engagements e ON e.id = ap.engagement_id
        WHERE ap.participant_id = $1 AND ap.status = $2 AND e.status = $3
        LIMIT 1`
	var exists int
	err = tx.GetContext(ctx, &exists, active, lockedParticipantID, models.ApplicationStatusAccepted, models.EngagementStatusOpen)
	if err == nil {
		return false, ErrActiveAcceptance
	}
	if err != sql.ErrNoRows {
		return false, fmt.Errorf("check active acceptance: %w", err)
	}

	const accept = `UPDATE applications SET status = $2, accepted_at = $3, notified = FALSE
        WHERE id = $1 AND status = $4
        RETURNING engagement_id, participant_id`
	var engagementID, participantID string
	err = tx.QueryRowxContext(ctx, accept, id, models.ApplicationStatusAccepted, acceptedAt, models.ApplicationStatusPending).
		Scan(&engagementID, &participantID)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("accept application: %w", err)
	}

	enrollment := &models.Enrollment{
		ID:            uuid.NewString(),
		EngagementID:  engagementID,
		ParticipantID: participantID,
		Status:        models.EnrollmentStatusActive,
		EnrolledAt:    acceptedAt,
	}
	const enroll = `INSERT INTO enrollments (id, engagement_id, participant_id, status, enrolled_at, ended_at)
        VALUES (:id, :engagement_id, :participant_id, :status, :enrolled_at, :ended_at)
        ON CONFLICT (engagement_id, participant_id)
        DO UPDATE SET status = EXCLUDED.status, enrolled_at = EXCLUDED.enrolled_at, ended_at = NULL`
	if _, err := tx.NamedExecContext(ctx, enroll, enrollment); err != nil {
		return false, fmt.Errorf("enroll participant: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit accept: %w", err)
	}
	return true, nil
}

// MarkNotified flips the one-time acceptance notice flag. The guard on
// notified = FALSE reports whether the notice was still pending.
func (r *ApplicationRepository) MarkNotified(ctx context.Context, id string) (bool, error) {
	const query = `UPDATE applications SET notified = TRUE WHERE id = $1 AND notified = FALSE`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("mark application notified: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark application notified result: %w", err)
	}
	return affected == 1, nil
}

// ListByParticipant returns a participant's applications newest first.
func (r *ApplicationRepository) ListByParticipant(ctx context.Context, participantID string) ([]models.ApplicationDetail, error) {
	const query = `SELECT ap.id, ap.engagement_id, ap.participant_id, ap.status, ap.cover_note, ap.applied_at, ap.accepted_at, ap.notified,
        e.title AS engagement_title, e.status AS engagement_status, COALESCE(a.display_name, '') AS participant_name
        FROM applications ap
        JOIN engagements e ON e.id = ap.engagement_id
        LEFT JOIN actors a ON a.id = ap.participant_id
        WHERE ap.participant_id = $1
        ORDER BY ap.applied_at DESC`
	var applications []models.ApplicationDetail
	if err := r.db.SelectContext(ctx, &applications, query, participantID); err != nil {
		return nil, fmt.Errorf("list participant applications: %w", err)
	}
	return applications, nil
}

// ListByEngagement returns applications against an engagement newest first.
func (r *ApplicationRepository) ListByEngagement(ctx context.Context, engagementID string) ([]models.ApplicationDetail, error) {
	const query = `SELECT ap.id, ap.engagement_id, ap.participant_id, ap.status, ap.cover_note, ap.applied_at, ap.accepted_at, ap.notified,
        e.title AS engagement_title, e.status AS engagement_status, COALESCE(a.display_name, '') AS participant_name
        FROM applications ap
        JOIN engagements e ON e.id = ap.engagement_id
        LEFT JOIN actors a ON a.id = ap.participant_id
        WHERE ap.engagement_id = $1
        ORDER BY ap.applied_at DESC`
	var applications []models.ApplicationDetail
	if err := r.db.SelectContext(ctx, &applications, query, engagementID); err != nil {
		return nil, fmt.Errorf("list engagement applications: %w", err)
	}
	return applications, nil
}

// CountPendingByEngagement returns pending application counts keyed by
// engagement for all of a sponsor's engagements.
func (r *ApplicationRepository) CountPendingByEngagement(ctx context.Context, sponsorID string) (map[string]int, error) {
	const query = `SELECT e.id, COUNT(ap.id) FILTER (WHERE ap.status = 'PENDING') AS pending
        FROM engagements e
        LEFT JOIN applications ap ON ap.engagement_id = e.id
        WHERE e.sponsor_id = $1
        GROUP BY e.id`
	rows, err := r.db.QueryxContext(ctx, query, sponsorID)
	if err != nil {
		return nil, fmt.Errorf("count pending applications: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var id string
		var pending int
		if err := rows.Scan(&id, &pending); err != nil {
			return nil, fmt.Errorf("scan pending count: %w", err)
		}
		counts[id] = pending
	}
	return counts, rows.Err()
}
