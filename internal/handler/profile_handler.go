package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/workbridge/engage-api/internal/models"
	"github.com/workbridge/engage-api/internal/service"
	appErrors "github.com/workbridge/engage-api/pkg/errors"
	"github.com/workbridge/engage-api/pkg/response"
)

type actorService interface {
	Resolve(ctx context.Context, id string) (*service.ResolvedActor, error)
	GetProfile(ctx context.Context, id string) (*models.Actor, error)
	UpdateProfile(ctx context.Context, id string, req service.UpdateProfileRequest) (*models.Actor, error)
}

// ProfileHandler wires the identity directory to HTTP endpoints.
type ProfileHandler struct {
	service actorService
}

// NewProfileHandler constructs the handler.
func NewProfileHandler(service actorService) *ProfileHandler {
	return &ProfileHandler{service: service}
}

// Me godoc
// @Summary The caller's resolved identity
// @Tags Profile
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /me [get]
func (h *ProfileHandler) Me(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	actor, err := h.service.Resolve(c.Request.Context(), claims.ActorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, actor, nil)
}

// Get godoc
// @Summary An actor's public profile
// @Tags Profile
// @Produce json
// @Param id path string true "Actor ID"
// @Success 200 {object} response.Envelope
// @Router /profiles/{id} [get]
func (h *ProfileHandler) Get(c *gin.Context) {
	profile, err := h.service.GetProfile(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}

// Update godoc
// @Summary Update the caller's profile
// @Tags Profile
// @Accept json
// @Produce json
// @Param payload body service.UpdateProfileRequest true "Profile payload"
// @Success 200 {object} response.Envelope
// @Router /me/profile [put]
func (h *ProfileHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}
	profile, err := h.service.UpdateProfile(c.Request.Context(), claims.ActorID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}
