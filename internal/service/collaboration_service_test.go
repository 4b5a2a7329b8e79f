package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workbridge/engage-api/internal/models"
	appErrors "github.com/workbridge/engage-api/pkg/errors"
)

type mockCollabEnrollments struct {
	enrollments map[string]models.Enrollment
}

func (m *mockCollabEnrollments) Find(ctx context.Context, engagementID, participantID string) (*models.Enrollment, error) {
	if e, ok := m.enrollments[engagementID+"/"+participantID]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCollabEnrollments) ListActiveByEngagement(ctx context.Context, engagementID string) ([]models.Enrollment, error) {
	var list []models.Enrollment
	for _, e := range m.enrollments {
		if e.EngagementID == engagementID && e.Status == models.EnrollmentStatusActive {
			list = append(list, e)
		}
	}
	return list, nil
}

type mockResourceRepo struct {
	resources []models.Resource
}

func (m *mockResourceRepo) Create(ctx context.Context, resource *models.Resource) error {
	if resource.ID == "" {
		resource.ID = "new-resource"
	}
	m.resources = append(m.resources, *resource)
	return nil
}

func (m *mockResourceRepo) ListByEngagement(ctx context.Context, engagementID string) ([]models.Resource, error) {
	return m.resources, nil
}

type mockMessageRepo struct {
	messages map[string]models.Message
	reads    []string
	unread   int
}

func newMockMessageRepo() *mockMessageRepo {
	return &mockMessageRepo{messages: map[string]models.Message{}}
}

func (m *mockMessageRepo) Create(ctx context.Context, message *models.Message) error {
	if message.ID == "" {
		message.ID = "new-message"
	}
	m.messages[message.ID] = *message
	return nil
}

func (m *mockMessageRepo) FindByID(ctx context.Context, id string) (*models.Message, error) {
	if msg, ok := m.messages[id]; ok {
		return &msg, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockMessageRepo) ListVisible(ctx context.Context, engagementID, actorID string, isOwner bool) ([]models.Message, error) {
	var list []models.Message
	for _, msg := range m.messages {
		if msg.EngagementID != engagementID {
			continue
		}
		if isOwner || msg.Broadcast || msg.SenderID == actorID || contains(msg.RecipientIDs, actorID) {
			list = append(list, msg)
		}
	}
	return list, nil
}

func (m *mockMessageRepo) MarkRead(ctx context.Context, messageID, actorID string, readAt time.Time) error {
	m.reads = append(m.reads, messageID+"/"+actorID)
	return nil
}

func (m *mockMessageRepo) UnreadCount(ctx context.Context, engagementID, actorID string) (int, error) {
	return m.unread, nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func collabFixture() (*CollaborationService, *mockMessageRepo) {
	engagements := openEngagementReader()
	enrollments := &mockCollabEnrollments{enrollments: map[string]models.Enrollment{
		"eng-open/part-active": {EngagementID: "eng-open", ParticipantID: "part-active", Status: models.EnrollmentStatusActive},
		"eng-open/part-other":  {EngagementID: "eng-open", ParticipantID: "part-other", Status: models.EnrollmentStatusActive},
		"eng-open/part-ended":  {EngagementID: "eng-open", ParticipantID: "part-ended", Status: models.EnrollmentStatusEnded},
	}}
	messages := newMockMessageRepo()
	return NewCollaborationService(engagements, enrollments, &mockResourceRepo{}, messages, nil, nil), messages
}

func TestResolveScope(t *testing.T) {
	svc, _ := collabFixture()

	cases := []struct {
		name     string
		actorID  string
		canRead  bool
		canWrite bool
	}{
		{"owning sponsor", "sponsor-1", true, true},
		{"active enrollee", "part-active", true, true},
		{"ended enrollee keeps read access", "part-ended", true, false},
		{"stranger", "part-stranger", false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			scope, err := svc.Resolve(context.Background(), "eng-open", tc.actorID)
			require.NoError(t, err)
			assert.Equal(t, tc.canRead, scope.CanRead)
			assert.Equal(t, tc.canWrite, scope.CanWrite)
		})
	}

	t.Run("missing engagement", func(t *testing.T) {
		_, err := svc.Resolve(context.Background(), "eng-missing", "sponsor-1")
		assert.Equal(t, appErrors.ErrNotFound.Code, errorCode(t, err))
	})
}

func TestAddResource(t *testing.T) {
	svc, _ := collabFixture()

	t.Run("active enrollee shares", func(t *testing.T) {
		resource, err := svc.AddResource(context.Background(), "eng-open", "part-active", AddResourceRequest{
			Kind: models.ResourceKindLink, Title: "Style guide", Ref: "https://example.com/guide",
		})
		require.NoError(t, err)
		assert.Equal(t, "part-active", resource.CreatedBy)
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, err := svc.AddResource(context.Background(), "eng-open", "sponsor-1", AddResourceRequest{
			Kind: "PODCAST", Title: "X", Ref: "Y",
		})
		assert.Equal(t, appErrors.ErrValidation.Code, errorCode(t, err))
	})

	t.Run("ended enrollee cannot write", func(t *testing.T) {
		_, err := svc.AddResource(context.Background(), "eng-open", "part-ended", AddResourceRequest{
			Kind: models.ResourceKindDocument, Title: "X", Ref: "Y",
		})
		assert.Equal(t, appErrors.ErrForbidden.Code, errorCode(t, err))
	})
}

func TestSendMessage(t *testing.T) {
	t.Run("no recipients broadcasts", func(t *testing.T) {
		svc, _ := collabFixture()
		message, err := svc.SendMessage(context.Background(), "eng-open", "sponsor-1", SendMessageRequest{Body: "kickoff tomorrow"})
		require.NoError(t, err)
		assert.True(t, message.Broadcast)
		assert.False(t, message.Private)
		assert.Empty(t, message.RecipientIDs)
	})

	t.Run("proper subset is private", func(t *testing.T) {
		svc, _ := collabFixture()
		// Scope holds sponsor-1, part-active, part-other; targeting one of
		// two reachable members makes the message private.
		message, err := svc.SendMessage(context.Background(), "eng-open", "sponsor-1", SendMessageRequest{
			Body: "a word", RecipientIDs: []string{"part-active"},
		})
		require.NoError(t, err)
		assert.False(t, message.Broadcast)
		assert.True(t, message.Private)
	})

	t.Run("full recipient list is not private", func(t *testing.T) {
		svc, _ := collabFixture()
		message, err := svc.SendMessage(context.Background(), "eng-open", "sponsor-1", SendMessageRequest{
			Body: "to everyone", RecipientIDs: []string{"part-active", "part-other"},
		})
		require.NoError(t, err)
		assert.False(t, message.Private)
	})

	t.Run("recipient outside scope", func(t *testing.T) {
		svc, _ := collabFixture()
		_, err := svc.SendMessage(context.Background(), "eng-open", "sponsor-1", SendMessageRequest{
			Body: "psst", RecipientIDs: []string{"part-stranger"},
		})
		assert.Equal(t, appErrors.ErrValidation.Code, errorCode(t, err))
	})

	t.Run("stranger cannot send", func(t *testing.T) {
		svc, _ := collabFixture()
		_, err := svc.SendMessage(context.Background(), "eng-open", "part-stranger", SendMessageRequest{Body: "hello"})
		assert.Equal(t, appErrors.ErrForbidden.Code, errorCode(t, err))
	})
}

func TestMessageVisibilityAndReads(t *testing.T) {
	svc, messages := collabFixture()

	_, err := svc.SendMessage(context.Background(), "eng-open", "part-active", SendMessageRequest{
		Body: "question for the sponsor", RecipientIDs: []string{"sponsor-1"},
	})
	require.NoError(t, err)

	t.Run("non-recipient does not see targeted message", func(t *testing.T) {
		visible, err := svc.ListMessages(context.Background(), "eng-open", "part-other")
		require.NoError(t, err)
		assert.Empty(t, visible)
	})

	t.Run("owner sees everything", func(t *testing.T) {
		visible, err := svc.ListMessages(context.Background(), "eng-open", "sponsor-1")
		require.NoError(t, err)
		assert.Len(t, visible, 1)
	})

	t.Run("mark read records a per-actor marker", func(t *testing.T) {
		require.NoError(t, svc.MarkRead(context.Background(), "new-message", "sponsor-1"))
		assert.Equal(t, []string{"new-message/sponsor-1"}, messages.reads)
	})

	t.Run("stranger cannot mark read", func(t *testing.T) {
		err := svc.MarkRead(context.Background(), "new-message", "part-stranger")
		assert.Equal(t, appErrors.ErrForbidden.Code, errorCode(t, err))
	})
}

func TestUnreadCount(t *testing.T) {
	svc, messages := collabFixture()
	messages.unread = 3

	count, err := svc.UnreadCount(context.Background(), "eng-open", "part-active")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	_, err = svc.UnreadCount(context.Background(), "eng-open", "part-stranger")
	assert.Equal(t, appErrors.ErrForbidden.Code, errorCode(t, err))
}
