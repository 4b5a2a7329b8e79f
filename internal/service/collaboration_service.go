package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/workbridge/engage-api/internal/models"
	appErrors "github.com/workbridge/engage-api/pkg/errors"
)

type collaborationEnrollmentReader interface {
	Find(ctx context.Context, engagementID, participantID string) (*models.Enrollment, error)
	ListActiveByEngagement(ctx context.Context, engagementID string) ([]models.Enrollment, error)
}

type resourceRepository interface {
	Create(ctx context.Context, resource *models.Resource) error
	ListByEngagement(ctx context.Context, engagementID string) ([]models.Resource, error)
}

type messageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	FindByID(ctx context.Context, id string) (*models.Message, error)
	ListVisible(ctx context.Context, engagementID, actorID string, isOwner bool) ([]models.Message, error)
	MarkRead(ctx context.Context, messageID, actorID string, readAt time.Time) error
	UnreadCount(ctx context.Context, engagementID, actorID string) (int, error)
}

// Scope is the computed visibility of an engagement's resources and
// messages for one actor.
type Scope struct {
	CanRead  bool `json:"can_read"`
	CanWrite bool `json:"can_write"`
}

// AddResourceRequest describes a shared resource payload.
type AddResourceRequest struct {
	Kind  models.ResourceKind `json:"kind" validate:"required"`
	Title string              `json:"title" validate:"required,max=200"`
	Ref   string              `json:"ref" validate:"required,max=2000"`
}

// SendMessageRequest describes a scoped message. An empty recipient list is
// a broadcast to the whole scope.
type SendMessageRequest struct {
	Body         string   `json:"body" validate:"required,max=10000"`
	RecipientIDs []string `json:"recipient_ids,omitempty"`
}

// CollaborationService resolves visibility scopes and mediates access to the
// resources and messages owned by an engagement.
type CollaborationService struct {
	engagements engagementReader
	enrollments collaborationEnrollmentReader
	resources   resourceRepository
	messages    messageRepository
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewCollaborationService constructs CollaborationService.
func NewCollaborationService(engagements engagementReader, enrollments collaborationEnrollmentReader, resources resourceRepository, messages messageRepository, validate *validator.Validate, logger *zap.Logger) *CollaborationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CollaborationService{engagements: engagements, enrollments: enrollments, resources: resources, messages: messages, validator: validate, logger: logger, now: time.Now}
}

// Resolve computes the actor's scope for an engagement. The owning sponsor
// always has read/write. An actively enrolled participant has read/write; a
// participant whose enrollment ended keeps read access to the record of
// their work but can no longer write. Everyone else has no access.
func (s *CollaborationService) Resolve(ctx context.Context, engagementID, actorID string) (*Scope, error) {
	engagement, err := s.engagements.FindByID(ctx, engagementID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "engagement not found")
		}
		return nil, appErrors.FromStore(err, "failed to load engagement")
	}
	if engagement.SponsorID == actorID {
		return &Scope{CanRead: true, CanWrite: true}, nil
	}

	enrollment, err := s.enrollments.Find(ctx, engagementID, actorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &Scope{}, nil
		}
		return nil, appErrors.FromStore(err, "failed to check enrollment")
	}
	if enrollment.Status == models.EnrollmentStatusActive {
		return &Scope{CanRead: true, CanWrite: true}, nil
	}
	return &Scope{CanRead: true}, nil
}

// AddResource shares a resource within the engagement's scope. The kind is a
// closed variant set; an unknown kind never reaches storage.
func (s *CollaborationService) AddResource(ctx context.Context, engagementID, actorID string, req AddResourceRequest) (*models.Resource, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid resource payload")
	}
	if !req.Kind.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown resource kind")
	}
	if err := s.requireWrite(ctx, engagementID, actorID); err != nil {
		return nil, err
	}

	resource := &models.Resource{
		EngagementID: engagementID,
		Kind:         req.Kind,
		Title:        req.Title,
		Ref:          req.Ref,
		CreatedBy:    actorID,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.resources.Create(ctx, resource); err != nil {
		return nil, appErrors.FromStore(err, "failed to create resource")
	}
	return resource, nil
}

// ListResources returns the engagement's resources to actors with read
// access.
func (s *CollaborationService) ListResources(ctx context.Context, engagementID, actorID string) ([]models.Resource, error) {
	if err := s.requireRead(ctx, engagementID, actorID); err != nil {
		return nil, err
	}
	resources, err := s.resources.ListByEngagement(ctx, engagementID)
	if err != nil {
		return nil, appErrors.FromStore(err, "failed to list resources")
	}
	return resources, nil
}

// SendMessage records one message in the engagement's scope. With no
// explicit recipients the message broadcasts to the whole scope; with
// recipients it is targeted, and marked private when the target set is a
// proper subset of the enrolled participants. Read state is tracked per
// recipient, so a broadcast never fans out into one row per recipient.
func (s *CollaborationService) SendMessage(ctx context.Context, engagementID, senderID string, req SendMessageRequest) (*models.Message, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid message payload")
	}
	if err := s.requireWrite(ctx, engagementID, senderID); err != nil {
		return nil, err
	}

	engagement, err := s.engagements.FindByID(ctx, engagementID)
	if err != nil {
		return nil, appErrors.FromStore(err, "failed to load engagement")
	}
	enrolled, err := s.enrollments.ListActiveByEngagement(ctx, engagementID)
	if err != nil {
		return nil, appErrors.FromStore(err, "failed to load enrollments")
	}
	scopeMembers := make(map[string]struct{}, len(enrolled)+1)
	scopeMembers[engagement.SponsorID] = struct{}{}
	for _, enrollment := range enrolled {
		scopeMembers[enrollment.ParticipantID] = struct{}{}
	}

	message := &models.Message{
		EngagementID: engagementID,
		SenderID:     senderID,
		Body:         req.Body,
		SentAt:       s.now().UTC(),
	}
	if len(req.RecipientIDs) == 0 {
		message.Broadcast = true
		message.RecipientIDs = []string{}
	} else {
		recipients := make([]string, 0, len(req.RecipientIDs))
		targeted := make(map[string]struct{}, len(req.RecipientIDs))
		for _, recipientID := range req.RecipientIDs {
			if recipientID == senderID {
				continue
			}
			if _, ok := scopeMembers[recipientID]; !ok {
				return nil, appErrors.Clone(appErrors.ErrValidation, "recipient is outside the engagement scope")
			}
			if _, seen := targeted[recipientID]; seen {
				continue
			}
			targeted[recipientID] = struct{}{}
			recipients = append(recipients, recipientID)
		}
		if len(recipients) == 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "no valid recipients")
		}
		message.RecipientIDs = recipients

		// Private exactly when some scope member besides the sender is
		// excluded from the target set.
		reachable := len(scopeMembers)
		if _, ok := scopeMembers[senderID]; ok {
			reachable--
		}
		message.Private = len(recipients) < reachable
	}

	if err := s.messages.Create(ctx, message); err != nil {
		return nil, appErrors.FromStore(err, "failed to send message")
	}
	return message, nil
}

// ListMessages returns the engagement's messages visible to the actor.
// Targeted messages stay hidden from non-recipients, except from the owning
// sponsor.
func (s *CollaborationService) ListMessages(ctx context.Context, engagementID, actorID string) ([]models.Message, error) {
	if err := s.requireRead(ctx, engagementID, actorID); err != nil {
		return nil, err
	}
	engagement, err := s.engagements.FindByID(ctx, engagementID)
	if err != nil {
		return nil, appErrors.FromStore(err, "failed to load engagement")
	}
	messages, err := s.messages.ListVisible(ctx, engagementID, actorID, engagement.SponsorID == actorID)
	if err != nil {
		return nil, appErrors.FromStore(err, "failed to list messages")
	}
	return messages, nil
}

// MarkRead records the actor's read marker for a message they can see.
func (s *CollaborationService) MarkRead(ctx context.Context, messageID, actorID string) error {
	message, err := s.messages.FindByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "message not found")
		}
		return appErrors.FromStore(err, "failed to load message")
	}
	if err := s.requireRead(ctx, message.EngagementID, actorID); err != nil {
		return err
	}
	if err := s.messages.MarkRead(ctx, messageID, actorID, s.now().UTC()); err != nil {
		return appErrors.FromStore(err, "failed to mark message read")
	}
	return nil
}

// UnreadCount returns the actor's unread message count in an engagement.
func (s *CollaborationService) UnreadCount(ctx context.Context, engagementID, actorID string) (int, error) {
	if err := s.requireRead(ctx, engagementID, actorID); err != nil {
		return 0, err
	}
	count, err := s.messages.UnreadCount(ctx, engagementID, actorID)
	if err != nil {
		return 0, appErrors.FromStore(err, "failed to count unread messages")
	}
	return count, nil
}

func (s *CollaborationService) requireRead(ctx context.Context, engagementID, actorID string) error {
	scope, err := s.Resolve(ctx, engagementID, actorID)
	if err != nil {
		return err
	}
	if !scope.CanRead {
		return appErrors.Clone(appErrors.ErrForbidden, "actor has no access to this engagement")
	}
	return nil
}

func (s *CollaborationService) requireWrite(ctx context.Context, engagementID, actorID string) error {
	scope, err := s.Resolve(ctx, engagementID, actorID)
	if err != nil {
		return err
	}
	if !scope.CanWrite {
		return appErrors.Clone(appErrors.ErrForbidden, "actor may not write to this engagement")
	}
	return nil
}
