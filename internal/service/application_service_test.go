package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workbridge/engage-api/internal/models"
	"github.com/workbridge/engage-api/internal/repository"
	appErrors "github.com/workbridge/engage-api/pkg/errors"
)

type mockApplicationRepo struct {
	applications   map[string]models.Application
	nonWithdrawn   map[string]bool
	activeAccepted map[string]bool
	// staleActiveCheck models a pre-check that read before a concurrent
	// accept committed, so only the in-transaction guard can catch it.
	staleActiveCheck bool
	createErr        error
	transitionWon    bool
	acceptWon        bool
	acceptEnrolled   []string
	noticeWasUnseen  bool
}

func newMockApplicationRepo(seed ...models.Application) *mockApplicationRepo {
	repo := &mockApplicationRepo{
		applications:    map[string]models.Application{},
		nonWithdrawn:    map[string]bool{},
		activeAccepted:  map[string]bool{},
		transitionWon:   true,
		acceptWon:       true,
		noticeWasUnseen: true,
	}
	for _, a := range seed {
		repo.applications[a.ID] = a
	}
	return repo
}

func (m *mockApplicationRepo) Create(ctx context.Context, application *models.Application) error {
	if m.createErr != nil {
		return m.createErr
	}
	if application.ID == "" {
		application.ID = "new-application"
	}
	m.applications[application.ID] = *application
	return nil
}

func (m *mockApplicationRepo) FindByID(ctx context.Context, id string) (*models.Application, error) {
	if a, ok := m.applications[id]; ok {
		return &a, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockApplicationRepo) ExistsNonWithdrawn(ctx context.Context, engagementID, participantID string) (bool, error) {
	return m.nonWithdrawn[engagementID+"/"+participantID], nil
}

func (m *mockApplicationRepo) HasActiveAcceptance(ctx context.Context, participantID string) (bool, error) {
	if m.staleActiveCheck {
		return false, nil
	}
	return m.activeAccepted[participantID], nil
}

func (m *mockApplicationRepo) TransitionFromPending(ctx context.Context, id string, to models.ApplicationStatus) (bool, error) {
	a, ok := m.applications[id]
	if !ok {
		return false, sql.ErrNoRows
	}
	if a.Status != models.ApplicationStatusPending || !m.transitionWon {
		return false, nil
	}
	a.Status = to
	m.applications[id] = a
	return true, nil
}

func (m *mockApplicationRepo) AcceptAndEnroll(ctx context.Context, id string, acceptedAt time.Time) (bool, error) {
	a, ok := m.applications[id]
	if !ok {
		return false, sql.ErrNoRows
	}
	if m.activeAccepted[a.ParticipantID] {
		return false, repository.ErrActiveAcceptance
	}
	if a.Status != models.ApplicationStatusPending || !m.acceptWon {
		return false, nil
	}
	a.Status = models.ApplicationStatusAccepted
	a.AcceptedAt = &acceptedAt
	m.applications[id] = a
	m.activeAccepted[a.ParticipantID] = true
	m.acceptEnrolled = append(m.acceptEnrolled, id)
	return true, nil
}

func (m *mockApplicationRepo) MarkNotified(ctx context.Context, id string) (bool, error) {
	a, ok := m.applications[id]
	if !ok {
		return false, sql.ErrNoRows
	}
	wasUnseen := !a.Notified && m.noticeWasUnseen
	a.Notified = true
	m.applications[id] = a
	return wasUnseen, nil
}

func (m *mockApplicationRepo) ListByParticipant(ctx context.Context, participantID string) ([]models.ApplicationDetail, error) {
	var list []models.ApplicationDetail
	for _, a := range m.applications {
		if a.ParticipantID == participantID {
			list = append(list, models.ApplicationDetail{Application: a})
		}
	}
	return list, nil
}

func (m *mockApplicationRepo) ListByEngagement(ctx context.Context, engagementID string) ([]models.ApplicationDetail, error) {
	var list []models.ApplicationDetail
	for _, a := range m.applications {
		if a.EngagementID == engagementID {
			list = append(list, models.ApplicationDetail{Application: a})
		}
	}
	return list, nil
}

func openEngagementReader() *mockEngagementRepo {
	return newMockEngagementRepo(
		models.Engagement{ID: "eng-open", SponsorID: "sponsor-1", ExperienceOnly: true, Status: models.EngagementStatusOpen},
		models.Engagement{ID: "eng-closed", SponsorID: "sponsor-1", ExperienceOnly: true, Status: models.EngagementStatusClosed},
	)
}

func TestApply(t *testing.T) {
	t.Run("pending application created", func(t *testing.T) {
		repo := newMockApplicationRepo()
		svc := NewApplicationService(repo, openEngagementReader(), &mockInvalidator{}, nil, nil)

		application, err := svc.Apply(context.Background(), "eng-open", "part-1", ApplyRequest{CoverNote: "hi"})
		require.NoError(t, err)
		assert.Equal(t, models.ApplicationStatusPending, application.Status)
		assert.Equal(t, "hi", application.CoverNote)
	})

	t.Run("closed engagement", func(t *testing.T) {
		repo := newMockApplicationRepo()
		svc := NewApplicationService(repo, openEngagementReader(), &mockInvalidator{}, nil, nil)

		_, err := svc.Apply(context.Background(), "eng-closed", "part-1", ApplyRequest{})
		assert.Equal(t, appErrors.ErrEngagementClosed.Code, errorCode(t, err))
	})

	t.Run("missing engagement", func(t *testing.T) {
		repo := newMockApplicationRepo()
		svc := NewApplicationService(repo, openEngagementReader(), &mockInvalidator{}, nil, nil)

		_, err := svc.Apply(context.Background(), "eng-missing", "part-1", ApplyRequest{})
		assert.Equal(t, appErrors.ErrNotFound.Code, errorCode(t, err))
	})

	t.Run("live application already exists", func(t *testing.T) {
		repo := newMockApplicationRepo()
		repo.nonWithdrawn["eng-open/part-1"] = true
		svc := NewApplicationService(repo, openEngagementReader(), &mockInvalidator{}, nil, nil)

		_, err := svc.Apply(context.Background(), "eng-open", "part-1", ApplyRequest{})
		assert.Equal(t, appErrors.ErrConflict.Code, errorCode(t, err))
	})

	t.Run("unique index race loser maps to conflict", func(t *testing.T) {
		repo := newMockApplicationRepo()
		repo.createErr = repository.ErrDuplicateApplication
		svc := NewApplicationService(repo, openEngagementReader(), &mockInvalidator{}, nil, nil)

		_, err := svc.Apply(context.Background(), "eng-open", "part-1", ApplyRequest{})
		assert.Equal(t, appErrors.ErrConflict.Code, errorCode(t, err))
	})
}

func TestWithdraw(t *testing.T) {
	pending := models.Application{ID: "app-1", EngagementID: "eng-open", ParticipantID: "part-1", Status: models.ApplicationStatusPending}

	t.Run("happy path", func(t *testing.T) {
		repo := newMockApplicationRepo(pending)
		svc := NewApplicationService(repo, openEngagementReader(), &mockInvalidator{}, nil, nil)

		application, err := svc.Withdraw(context.Background(), "app-1", "part-1")
		require.NoError(t, err)
		assert.Equal(t, models.ApplicationStatusWithdrawn, application.Status)
	})

	t.Run("foreign participant", func(t *testing.T) {
		repo := newMockApplicationRepo(pending)
		svc := NewApplicationService(repo, openEngagementReader(), &mockInvalidator{}, nil, nil)

		_, err := svc.Withdraw(context.Background(), "app-1", "part-2")
		assert.Equal(t, appErrors.ErrForbidden.Code, errorCode(t, err))
	})

	t.Run("terminal status", func(t *testing.T) {
		accepted := pending
		accepted.Status = models.ApplicationStatusAccepted
		repo := newMockApplicationRepo(accepted)
		svc := NewApplicationService(repo, openEngagementReader(), &mockInvalidator{}, nil, nil)

		_, err := svc.Withdraw(context.Background(), "app-1", "part-1")
		assert.Equal(t, appErrors.ErrInvalidState.Code, errorCode(t, err))
	})

	t.Run("race loser", func(t *testing.T) {
		repo := newMockApplicationRepo(pending)
		repo.transitionWon = false
		svc := NewApplicationService(repo, openEngagementReader(), &mockInvalidator{}, nil, nil)

		_, err := svc.Withdraw(context.Background(), "app-1", "part-1")
		assert.Equal(t, appErrors.ErrInvalidState.Code, errorCode(t, err))
	})
}

func TestAccept(t *testing.T) {
	pending := models.Application{ID: "app-1", EngagementID: "eng-open", ParticipantID: "part-1", Status: models.ApplicationStatusPending}

	t.Run("cascades into enrollment", func(t *testing.T) {
		repo := newMockApplicationRepo(pending)
		invalidator := &mockInvalidator{}
		svc := NewApplicationService(repo, openEngagementReader(), invalidator, nil, nil)

		result, err := svc.Accept(context.Background(), "app-1", "sponsor-1")
		require.NoError(t, err)
		assert.Equal(t, models.ApplicationStatusAccepted, result.Application.Status)
		assert.NotNil(t, result.Application.AcceptedAt)
		assert.True(t, result.FirstAcceptanceNotice)
		assert.Equal(t, []string{"app-1"}, repo.acceptEnrolled)
		assert.Contains(t, invalidator.sponsors, "sponsor-1")
		assert.Contains(t, invalidator.participants, "part-1")
	})

	t.Run("foreign sponsor", func(t *testing.T) {
		repo := newMockApplicationRepo(pending)
		svc := NewApplicationService(repo, openEngagementReader(), &mockInvalidator{}, nil, nil)

		_, err := svc.Accept(context.Background(), "app-1", "sponsor-2")
		assert.Equal(t, appErrors.ErrForbidden.Code, errorCode(t, err))
	})

	t.Run("participant already active elsewhere", func(t *testing.T) {
		repo := newMockApplicationRepo(pending)
		repo.activeAccepted["part-1"] = true
		svc := NewApplicationService(repo, openEngagementReader(), &mockInvalidator{}, nil, nil)

		_, err := svc.Accept(context.Background(), "app-1", "sponsor-1")
		assert.Equal(t, appErrors.ErrConflict.Code, errorCode(t, err))
		assert.Empty(t, repo.acceptEnrolled)
	})

	t.Run("not pending", func(t *testing.T) {
		rejected := pending
		rejected.Status = models.ApplicationStatusRejected
		repo := newMockApplicationRepo(rejected)
		svc := NewApplicationService(repo, openEngagementReader(), &mockInvalidator{}, nil, nil)

		_, err := svc.Accept(context.Background(), "app-1", "sponsor-1")
		assert.Equal(t, appErrors.ErrInvalidState.Code, errorCode(t, err))
	})

	t.Run("racing accepts for one participant enroll exactly once", func(t *testing.T) {
		engagements := newMockEngagementRepo(
			models.Engagement{ID: "eng-a", SponsorID: "sponsor-1", ExperienceOnly: true, Status: models.EngagementStatusOpen},
			models.Engagement{ID: "eng-b", SponsorID: "sponsor-1", ExperienceOnly: true, Status: models.EngagementStatusOpen},
		)
		repo := newMockApplicationRepo(
			models.Application{ID: "app-a", EngagementID: "eng-a", ParticipantID: "part-1", Status: models.ApplicationStatusPending},
			models.Application{ID: "app-b", EngagementID: "eng-b", ParticipantID: "part-1", Status: models.ApplicationStatusPending},
		)
		repo.staleActiveCheck = true
		svc := NewApplicationService(repo, engagements, &mockInvalidator{}, nil, nil)

		_, err := svc.Accept(context.Background(), "app-a", "sponsor-1")
		require.NoError(t, err)

		// Both pre-checks saw no active acceptance; the store guard must
		// still hold the second accept to a conflict.
		_, err = svc.Accept(context.Background(), "app-b", "sponsor-1")
		assert.Equal(t, appErrors.ErrConflict.Code, errorCode(t, err))
		assert.Equal(t, []string{"app-a"}, repo.acceptEnrolled)

		second, err := repo.FindByID(context.Background(), "app-b")
		require.NoError(t, err)
		assert.Equal(t, models.ApplicationStatusPending, second.Status)
	})

	t.Run("race loser", func(t *testing.T) {
		repo := newMockApplicationRepo(pending)
		repo.acceptWon = false
		svc := NewApplicationService(repo, openEngagementReader(), &mockInvalidator{}, nil, nil)

		_, err := svc.Accept(context.Background(), "app-1", "sponsor-1")
		assert.Equal(t, appErrors.ErrInvalidState.Code, errorCode(t, err))
	})
}

func TestReject(t *testing.T) {
	pending := models.Application{ID: "app-1", EngagementID: "eng-open", ParticipantID: "part-1", Status: models.ApplicationStatusPending}

	repo := newMockApplicationRepo(pending)
	svc := NewApplicationService(repo, openEngagementReader(), &mockInvalidator{}, nil, nil)

	application, err := svc.Reject(context.Background(), "app-1", "sponsor-1")
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusRejected, application.Status)
	assert.Empty(t, repo.acceptEnrolled, "reject must not enroll")

	_, err = svc.Reject(context.Background(), "app-1", "sponsor-1")
	assert.Equal(t, appErrors.ErrInvalidState.Code, errorCode(t, err))
}

func TestAcknowledgeAcceptance(t *testing.T) {
	accepted := models.Application{ID: "app-1", EngagementID: "eng-open", ParticipantID: "part-1", Status: models.ApplicationStatusAccepted}

	t.Run("first acknowledgement", func(t *testing.T) {
		repo := newMockApplicationRepo(accepted)
		svc := NewApplicationService(repo, openEngagementReader(), &mockInvalidator{}, nil, nil)

		result, err := svc.AcknowledgeAcceptance(context.Background(), "app-1", "part-1")
		require.NoError(t, err)
		assert.True(t, result.NoticePending)
		assert.True(t, result.Application.Notified)
	})

	t.Run("second acknowledgement", func(t *testing.T) {
		seen := accepted
		seen.Notified = true
		repo := newMockApplicationRepo(seen)
		svc := NewApplicationService(repo, openEngagementReader(), &mockInvalidator{}, nil, nil)

		result, err := svc.AcknowledgeAcceptance(context.Background(), "app-1", "part-1")
		require.NoError(t, err)
		assert.False(t, result.NoticePending)
	})

	t.Run("not accepted", func(t *testing.T) {
		pending := accepted
		pending.Status = models.ApplicationStatusPending
		repo := newMockApplicationRepo(pending)
		svc := NewApplicationService(repo, openEngagementReader(), &mockInvalidator{}, nil, nil)

		_, err := svc.AcknowledgeAcceptance(context.Background(), "app-1", "part-1")
		assert.Equal(t, appErrors.ErrInvalidState.Code, errorCode(t, err))
	})
}

func TestListForEngagement(t *testing.T) {
	repo := newMockApplicationRepo(
		models.Application{ID: "app-1", EngagementID: "eng-open", ParticipantID: "part-1", Status: models.ApplicationStatusPending},
		models.Application{ID: "app-2", EngagementID: "eng-open", ParticipantID: "part-2", Status: models.ApplicationStatusRejected},
	)
	svc := NewApplicationService(repo, openEngagementReader(), &mockInvalidator{}, nil, nil)

	applications, err := svc.ListForEngagement(context.Background(), "eng-open", "sponsor-1")
	require.NoError(t, err)
	assert.Len(t, applications, 2)

	_, err = svc.ListForEngagement(context.Background(), "eng-open", "sponsor-2")
	assert.Equal(t, appErrors.ErrForbidden.Code, errorCode(t, err))
}
