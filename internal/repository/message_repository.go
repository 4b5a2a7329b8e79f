package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/workbridge/engage-api/internal/models"
)

// MessageRepository handles persistence of scoped messages and read markers.
type MessageRepository struct {
	db *sqlx.DB
}

// NewMessageRepository constructs the repository.
func NewMessageRepository(db *sqlx.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create persists a single message record. Targeted sends still produce one
// row; per-recipient read state lives in message_reads.
func (r *MessageRepository) Create(ctx context.Context, message *models.Message) error {
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	if message.SentAt.IsZero() {
		message.SentAt = time.Now().UTC()
	}
	const query = `INSERT INTO messages (id, engagement_id, sender_id, body, broadcast, recipient_ids, private, sent_at)
        VALUES (:id, :engagement_id, :sender_id, :body, :broadcast, :recipient_ids, :private, :sent_at)`
	if _, err := r.db.NamedExecContext(ctx, query, message); err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	return nil
}

// FindByID returns a message by its ID.
func (r *MessageRepository) FindByID(ctx context.Context, id string) (*models.Message, error) {
	const query = `SELECT id, engagement_id, sender_id, body, broadcast, recipient_ids, private, sent_at
        FROM messages WHERE id = $1`
	var message models.Message
	if err := r.db.GetContext(ctx, &message, query, id); err != nil {
		return nil, err
	}
	return &message, nil
}

// ListVisible returns the engagement's messages the actor may see: every
// broadcast, plus targeted messages the actor sent or received. The owning
// sponsor sees everything.
func (r *MessageRepository) ListVisible(ctx context.Context, engagementID, actorID string, isOwner bool) ([]models.Message, error) {
	query := `SELECT id, engagement_id, sender_id, body, broadcast, recipient_ids, private, sent_at
        FROM messages WHERE engagement_id = $1`
	args := []interface{}{engagementID}
	if !isOwner {
		query += ` AND (broadcast = TRUE OR sender_id = $2 OR $2 = ANY(recipient_ids))`
		args = append(args, actorID)
	}
	query += ` ORDER BY sent_at DESC`

	var messages []models.Message
	if err := r.db.SelectContext(ctx, &messages, query, args...); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return messages, nil
}

// MarkRead records the actor's read marker; repeated marks are no-ops.
func (r *MessageRepository) MarkRead(ctx context.Context, messageID, actorID string, readAt time.Time) error {
	const query = `INSERT INTO message_reads (message_id, actor_id, read_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (message_id, actor_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, messageID, actorID, readAt); err != nil {
		return fmt.Errorf("mark message read: %w", err)
	}
	return nil
}

// UnreadCount counts the actor's visible, unread messages in an engagement.
// The actor's own sends never count as unread.
func (r *MessageRepository) UnreadCount(ctx context.Context, engagementID, actorID string) (int, error) {
	const query = `SELECT COUNT(*) FROM messages m
        WHERE m.engagement_id = $1
          AND m.sender_id <> $2
          AND (m.broadcast = TRUE OR $2 = ANY(m.recipient_ids))
          AND NOT EXISTS (SELECT 1 FROM message_reads mr WHERE mr.message_id = m.id AND mr.actor_id = $2)`
	var count int
	if err := r.db.GetContext(ctx, &count, query, engagementID, actorID); err != nil {
		return 0, fmt.Errorf("count unread messages: %w", err)
	}
	return count, nil
}

// UnreadCountForParticipant counts unread messages across every engagement
// the participant is actively enrolled in.
func (r *MessageRepository) UnreadCountForParticipant(ctx context.Context, participantID string) (int, error) {
	const query = `SELECT COUNT(*) FROM messages m
        JOIN enrollments en ON en.engagement_id = m.engagement_id AND en.participant_id = $1 AND en.status = 'ACTIVE'
        WHERE m.sender_id <> $1
          AND (m.broadcast = TRUE OR $1 = ANY(m.recipient_ids))
          AND NOT EXISTS (SELECT 1 FROM message_reads mr WHERE mr.message_id = m.id AND mr.actor_id = $1)`
	var count int
	if err := r.db.GetContext(ctx, &count, query, participantID); err != nil {
		return 0, fmt.Errorf("count participant unread: %w", err)
	}
	return count, nil
}
