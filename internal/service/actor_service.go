package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/workbridge/engage-api/internal/models"
	appErrors "github.com/workbridge/engage-api/pkg/errors"
)

type actorRepository interface {
	FindByID(ctx context.Context, id string) (*models.Actor, error)
	UpdateProfile(ctx context.Context, actor *models.Actor) error
}

// ResolvedActor is the minimal identity other components consume.
type ResolvedActor struct {
	ID               string      `json:"id"`
	Role             models.Role `json:"role"`
	ProfileCompleted bool        `json:"profile_completed"`
}

// UpdateProfileRequest carries the editable profile fields.
type UpdateProfileRequest struct {
	DisplayName string `json:"display_name" validate:"required,max=200"`
	Headline    string `json:"headline" validate:"max=200"`
	Bio         string `json:"bio" validate:"max=5000"`
	Skills      string `json:"skills" validate:"max=1000"`
	Location    string `json:"location" validate:"max=200"`
	Website     string `json:"website" validate:"max=500"`
}

// ActorService is the identity directory: it resolves opaque actor ids to a
// role and profile, and validates the pre-issued access tokens the gateway
// trusts. No credential handling lives here.
type ActorService struct {
	repo      actorRepository
	secret    string
	validator *validator.Validate
	logger    *zap.Logger
}

// NewActorService constructs ActorService.
func NewActorService(repo actorRepository, secret string, validate *validator.Validate, logger *zap.Logger) *ActorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActorService{repo: repo, secret: secret, validator: validate, logger: logger}
}

// ValidateToken parses and validates an access token returning the claims.
func (s *ActorService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.secret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	if !claims.Role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "unknown actor role")
	}

	return claims, nil
}

// Resolve maps an actor id to its role and completion flag.
func (s *ActorService) Resolve(ctx context.Context, id string) (*ResolvedActor, error) {
	actor, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ResolvedActor{
		ID:               actor.ID,
		Role:             actor.Role,
		ProfileCompleted: profileCompleteness(actor) == 100,
	}, nil
}

// GetProfile returns the actor's profile record.
func (s *ActorService) GetProfile(ctx context.Context, id string) (*models.Actor, error) {
	return s.load(ctx, id)
}

// UpdateProfile applies the actor's own profile changes.
func (s *ActorService) UpdateProfile(ctx context.Context, id string, req UpdateProfileRequest) (*models.Actor, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}
	actor, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	actor.DisplayName = req.DisplayName
	actor.Headline = req.Headline
	actor.Bio = req.Bio
	actor.Skills = req.Skills
	actor.Location = req.Location
	actor.Website = req.Website
	if err := s.repo.UpdateProfile(ctx, actor); err != nil {
		return nil, appErrors.FromStore(err, "failed to update profile")
	}
	return actor, nil
}

// Completeness returns the profile completeness percentage. Missing actors
// are 0%, not an error, so dashboards tolerate absent profiles.
func (s *ActorService) Completeness(ctx context.Context, id string) (int, error) {
	actor, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, appErrors.FromStore(err, "failed to load profile")
	}
	return profileCompleteness(actor), nil
}

func (s *ActorService) load(ctx context.Context, id string) (*models.Actor, error) {
	actor, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "actor not found")
		}
		return nil, appErrors.FromStore(err, "failed to load actor")
	}
	return actor, nil
}

func profileCompleteness(actor *models.Actor) int {
	fields := actor.ProfileFields()
	if len(fields) == 0 {
		return 0
	}
	filled := 0
	for _, field := range fields {
		if field != "" {
			filled++
		}
	}
	return int(float64(filled)/float64(len(fields))*100 + 0.5)
}
