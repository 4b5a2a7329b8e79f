package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workbridge/engage-api/internal/models"
	appErrors "github.com/workbridge/engage-api/pkg/errors"
)

type mockActorRepo struct {
	actors  map[string]models.Actor
	updated []models.Actor
}

func newMockActorRepo(seed ...models.Actor) *mockActorRepo {
	repo := &mockActorRepo{actors: map[string]models.Actor{}}
	for _, a := range seed {
		repo.actors[a.ID] = a
	}
	return repo
}

func (m *mockActorRepo) FindByID(ctx context.Context, id string) (*models.Actor, error) {
	if a, ok := m.actors[id]; ok {
		return &a, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockActorRepo) UpdateProfile(ctx context.Context, actor *models.Actor) error {
	m.actors[actor.ID] = *actor
	m.updated = append(m.updated, *actor)
	return nil
}

func signToken(t *testing.T, secret string, method jwt.SigningMethod, claims models.JWTClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(method, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestValidateToken(t *testing.T) {
	svc := NewActorService(newMockActorRepo(), "test-secret", nil, nil)
	claims := models.JWTClaims{
		ActorID: "actor-1",
		Role:    models.RoleSponsor,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}

	t.Run("valid token", func(t *testing.T) {
		parsed, err := svc.ValidateToken(signToken(t, "test-secret", jwt.SigningMethodHS256, claims))
		require.NoError(t, err)
		assert.Equal(t, "actor-1", parsed.ActorID)
		assert.Equal(t, models.RoleSponsor, parsed.Role)
	})

	t.Run("wrong secret", func(t *testing.T) {
		_, err := svc.ValidateToken(signToken(t, "other-secret", jwt.SigningMethodHS256, claims))
		assert.Equal(t, appErrors.ErrUnauthorized.Code, errorCode(t, err))
	})

	t.Run("wrong signing method", func(t *testing.T) {
		_, err := svc.ValidateToken(signToken(t, "test-secret", jwt.SigningMethodHS512, claims))
		assert.Equal(t, appErrors.ErrUnauthorized.Code, errorCode(t, err))
	})

	t.Run("expired token", func(t *testing.T) {
		expired := claims
		expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
		_, err := svc.ValidateToken(signToken(t, "test-secret", jwt.SigningMethodHS256, expired))
		assert.Equal(t, appErrors.ErrUnauthorized.Code, errorCode(t, err))
	})

	t.Run("unknown role", func(t *testing.T) {
		bad := claims
		bad.Role = "ADMIN"
		_, err := svc.ValidateToken(signToken(t, "test-secret", jwt.SigningMethodHS256, bad))
		assert.Equal(t, appErrors.ErrUnauthorized.Code, errorCode(t, err))
	})
}

func TestProfileCompleteness(t *testing.T) {
	repo := newMockActorRepo(
		models.Actor{ID: "empty", Role: models.RoleParticipant},
		models.Actor{ID: "half", Role: models.RoleParticipant, DisplayName: "Ada", Headline: "Engineer", Bio: "Hello"},
		models.Actor{
			ID: "full", Role: models.RoleParticipant,
			DisplayName: "Ada", Headline: "Engineer", Bio: "Hello",
			Skills: "go,sql", Location: "Remote", Website: "https://example.com",
		},
	)
	svc := NewActorService(repo, "test-secret", nil, nil)

	cases := []struct {
		id   string
		want int
	}{
		{"empty", 0},
		{"half", 50},
		{"full", 100},
	}
	for _, tc := range cases {
		got, err := svc.Completeness(context.Background(), tc.id)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, tc.id)
	}

	t.Run("missing actor is zero, not an error", func(t *testing.T) {
		got, err := svc.Completeness(context.Background(), "nobody")
		require.NoError(t, err)
		assert.Zero(t, got)
	})

	t.Run("resolve flags a complete profile", func(t *testing.T) {
		resolved, err := svc.Resolve(context.Background(), "full")
		require.NoError(t, err)
		assert.True(t, resolved.ProfileCompleted)

		resolved, err = svc.Resolve(context.Background(), "half")
		require.NoError(t, err)
		assert.False(t, resolved.ProfileCompleted)
	})
}

func TestUpdateProfile(t *testing.T) {
	repo := newMockActorRepo(models.Actor{ID: "actor-1", Role: models.RoleParticipant})
	svc := NewActorService(repo, "test-secret", nil, nil)

	t.Run("applies editable fields", func(t *testing.T) {
		actor, err := svc.UpdateProfile(context.Background(), "actor-1", UpdateProfileRequest{
			DisplayName: "Ada Lovelace",
			Headline:    "Analyst",
			Skills:      "math",
		})
		require.NoError(t, err)
		assert.Equal(t, "Ada Lovelace", actor.DisplayName)
		assert.Len(t, repo.updated, 1)
	})

	t.Run("display name required", func(t *testing.T) {
		_, err := svc.UpdateProfile(context.Background(), "actor-1", UpdateProfileRequest{Headline: "X"})
		assert.Equal(t, appErrors.ErrValidation.Code, errorCode(t, err))
	})

	t.Run("unknown actor", func(t *testing.T) {
		_, err := svc.UpdateProfile(context.Background(), "nobody", UpdateProfileRequest{DisplayName: "X"})
		assert.Equal(t, appErrors.ErrNotFound.Code, errorCode(t, err))
	})
}
