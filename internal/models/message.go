package models

import (
	"time"

	"github.com/lib/pq"
)

// Message is a single message record within an engagement's scope. A
// broadcast message has an empty recipient list and is visible to the whole
// scope; a targeted message carries an explicit recipient set and is private
// when that set is a proper subset of the enrolled participants. Read state
// is tracked per recipient in message_reads, so one send never fans out into
// multiple message rows.
type Message struct {
	ID           string         `db:"id" json:"id"`
	EngagementID string         `db:"engagement_id" json:"engagement_id"`
	SenderID     string         `db:"sender_id" json:"sender_id"`
	Body         string         `db:"body" json:"body"`
	Broadcast    bool           `db:"broadcast" json:"broadcast"`
	RecipientIDs pq.StringArray `db:"recipient_ids" json:"recipient_ids"`
	Private      bool           `db:"private" json:"private"`
	SentAt       time.Time      `db:"sent_at" json:"sent_at"`
}

// MessageRead marks a message as read by one actor.
type MessageRead struct {
	MessageID string    `db:"message_id" json:"message_id"`
	ActorID   string    `db:"actor_id" json:"actor_id"`
	ReadAt    time.Time `db:"read_at" json:"read_at"`
}
