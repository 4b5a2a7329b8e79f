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

type applicationService interface {
	Apply(ctx context.Context, engagementID, participantID string, req service.ApplyRequest) (*models.Application, error)
	Withdraw(ctx context.Context, applicationID, participantID string) (*models.Application, error)
	Accept(ctx context.Context, applicationID, sponsorID string) (*service.AcceptResult, error)
	Reject(ctx context.Context, applicationID, sponsorID string) (*models.Application, error)
	AcknowledgeAcceptance(ctx context.Context, applicationID, participantID string) (*service.AcknowledgeResult, error)
	History(ctx context.Context, participantID string) ([]models.ApplicationDetail, error)
	ListForEngagement(ctx context.Context, engagementID, sponsorID string) ([]models.ApplicationDetail, error)
}

// ApplicationHandler wires the application ledger to HTTP endpoints.
type ApplicationHandler struct {
	service applicationService
}

// NewApplicationHandler constructs the handler.
func NewApplicationHandler(service applicationService) *ApplicationHandler {
	return &ApplicationHandler{service: service}
}

// Apply godoc
// @Summary Apply to an engagement
// @Tags Applications
// @Accept json
// @Produce json
// @Param id path string true "Engagement ID"
// @Param payload body service.ApplyRequest true "Application payload"
// @Success 201 {object} response.Envelope
// @Router /engagements/{id}/applications [post]
func (h *ApplicationHandler) Apply(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.ApplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}
	application, err := h.service.Apply(c.Request.Context(), c.Param("id"), claims.ActorID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, application)
}

// Withdraw godoc
// @Summary Withdraw a pending application
// @Tags Applications
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Router /applications/{id}/withdraw [post]
func (h *ApplicationHandler) Withdraw(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	application, err := h.service.Withdraw(c.Request.Context(), c.Param("id"), claims.ActorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, application, nil)
}

// Accept godoc
// @Summary Accept a pending application
// @Tags Applications
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Router /applications/{id}/accept [post]
func (h *ApplicationHandler) Accept(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result, err := h.service.Accept(c.Request.Context(), c.Param("id"), claims.ActorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Reject godoc
// @Summary Reject a pending application
// @Tags Applications
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Router /applications/{id}/reject [post]
func (h *ApplicationHandler) Reject(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	application, err := h.service.Reject(c.Request.Context(), c.Param("id"), claims.ActorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, application, nil)
}

// Acknowledge godoc
// @Summary Acknowledge the one-time acceptance notice
// @Tags Applications
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Router /applications/{id}/acknowledge [post]
func (h *ApplicationHandler) Acknowledge(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result, err := h.service.AcknowledgeAcceptance(c.Request.Context(), c.Param("id"), claims.ActorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// History godoc
// @Summary The caller's application history, newest first
// @Tags Applications
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /applications [get]
func (h *ApplicationHandler) History(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	history, err := h.service.History(c.Request.Context(), claims.ActorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, history, nil)
}

// ListForEngagement godoc
// @Summary Applications received on a sponsor's engagement
// @Tags Applications
// @Produce json
// @Param id path string true "Engagement ID"
// @Success 200 {object} response.Envelope
// @Router /engagements/{id}/applications [get]
func (h *ApplicationHandler) ListForEngagement(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	applications, err := h.service.ListForEngagement(c.Request.Context(), c.Param("id"), claims.ActorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, applications, nil)
}
