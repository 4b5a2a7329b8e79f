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

type collaborationService interface {
	Resolve(ctx context.Context, engagementID, actorID string) (*service.Scope, error)
	AddResource(ctx context.Context, engagementID, actorID string, req service.AddResourceRequest) (*models.Resource, error)
	ListResources(ctx context.Context, engagementID, actorID string) ([]models.Resource, error)
	SendMessage(ctx context.Context, engagementID, senderID string, req service.SendMessageRequest) (*models.Message, error)
	ListMessages(ctx context.Context, engagementID, actorID string) ([]models.Message, error)
	MarkRead(ctx context.Context, messageID, actorID string) error
	UnreadCount(ctx context.Context, engagementID, actorID string) (int, error)
}

// CollaborationHandler wires scoped resources and messaging to HTTP
// endpoints.
type CollaborationHandler struct {
	service collaborationService
}

// NewCollaborationHandler constructs the handler.
func NewCollaborationHandler(service collaborationService) *CollaborationHandler {
	return &CollaborationHandler{service: service}
}

// Scope godoc
// @Summary The caller's visibility scope on an engagement
// @Tags Collaboration
// @Produce json
// @Param id path string true "Engagement ID"
// @Success 200 {object} response.Envelope
// @Router /engagements/{id}/scope [get]
func (h *CollaborationHandler) Scope(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	scope, err := h.service.Resolve(c.Request.Context(), c.Param("id"), claims.ActorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, scope, nil)
}

// AddResource godoc
// @Summary Share a resource within an engagement
// @Tags Collaboration
// @Accept json
// @Produce json
// @Param id path string true "Engagement ID"
// @Param payload body service.AddResourceRequest true "Resource payload"
// @Success 201 {object} response.Envelope
// @Router /engagements/{id}/resources [post]
func (h *CollaborationHandler) AddResource(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.AddResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}
	resource, err := h.service.AddResource(c.Request.Context(), c.Param("id"), claims.ActorID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, resource)
}

// ListResources godoc
// @Summary An engagement's shared resources
// @Tags Collaboration
// @Produce json
// @Param id path string true "Engagement ID"
// @Success 200 {object} response.Envelope
// @Router /engagements/{id}/resources [get]
func (h *CollaborationHandler) ListResources(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	resources, err := h.service.ListResources(c.Request.Context(), c.Param("id"), claims.ActorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resources, nil)
}

// SendMessage godoc
// @Summary Send a message within an engagement scope
// @Tags Collaboration
// @Accept json
// @Produce json
// @Param id path string true "Engagement ID"
// @Param payload body service.SendMessageRequest true "Message payload"
// @Success 201 {object} response.Envelope
// @Router /engagements/{id}/messages [post]
func (h *CollaborationHandler) SendMessage(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}
	message, err := h.service.SendMessage(c.Request.Context(), c.Param("id"), claims.ActorID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, message)
}

// ListMessages godoc
// @Summary Messages visible to the caller on an engagement
// @Tags Collaboration
// @Produce json
// @Param id path string true "Engagement ID"
// @Success 200 {object} response.Envelope
// @Router /engagements/{id}/messages [get]
func (h *CollaborationHandler) ListMessages(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	messages, err := h.service.ListMessages(c.Request.Context(), c.Param("id"), claims.ActorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, messages, nil)
}

// MarkRead godoc
// @Summary Mark a message read
// @Tags Collaboration
// @Param id path string true "Message ID"
// @Success 204
// @Router /messages/{id}/read [post]
func (h *CollaborationHandler) MarkRead(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.MarkRead(c.Request.Context(), c.Param("id"), claims.ActorID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UnreadCount godoc
// @Summary The caller's unread message count on an engagement
// @Tags Collaboration
// @Produce json
// @Param id path string true "Engagement ID"
// @Success 200 {object} response.Envelope
// @Router /engagements/{id}/messages/unread [get]
func (h *CollaborationHandler) UnreadCount(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	count, err := h.service.UnreadCount(c.Request.Context(), c.Param("id"), claims.ActorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"unread": count}, nil)
}
