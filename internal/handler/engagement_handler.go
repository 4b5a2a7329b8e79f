package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/workbridge/engage-api/internal/models"
	"github.com/workbridge/engage-api/internal/service"
	appErrors "github.com/workbridge/engage-api/pkg/errors"
	"github.com/workbridge/engage-api/pkg/response"
)

type engagementService interface {
	Create(ctx context.Context, sponsorID string, req service.CreateEngagementRequest) (*models.Engagement, error)
	Get(ctx context.Context, id string) (*models.EngagementDetail, error)
	List(ctx context.Context, filter models.EngagementFilter) ([]models.EngagementDetail, *models.Pagination, error)
	Edit(ctx context.Context, id, sponsorID string, patch models.EngagementPatch) (*models.Engagement, error)
	SetStatus(ctx context.Context, id, sponsorID string, req service.SetEngagementStatusRequest) (*service.SetStatusResult, error)
	Delete(ctx context.Context, id, sponsorID string) error
}

// EngagementHandler wires the engagement lifecycle to HTTP endpoints.
type EngagementHandler struct {
	service engagementService
}

// NewEngagementHandler constructs the handler.
func NewEngagementHandler(service engagementService) *EngagementHandler {
	return &EngagementHandler{service: service}
}

// Create godoc
// @Summary Post a new engagement
// @Tags Engagements
// @Accept json
// @Produce json
// @Param payload body service.CreateEngagementRequest true "Engagement payload"
// @Success 201 {object} response.Envelope
// @Router /engagements [post]
func (h *EngagementHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CreateEngagementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}
	engagement, err := h.service.Create(c.Request.Context(), claims.ActorID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, engagement)
}

// Get godoc
// @Summary Engagement detail
// @Tags Engagements
// @Produce json
// @Param id path string true "Engagement ID"
// @Success 200 {object} response.Envelope
// @Router /engagements/{id} [get]
func (h *EngagementHandler) Get(c *gin.Context) {
	engagement, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, engagement, nil)
}

// List godoc
// @Summary Browse engagements
// @Tags Engagements
// @Produce json
// @Param category query string false "Category filter"
// @Param status query string false "Status filter (OPEN or CLOSED)"
// @Param search query string false "Title search"
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /engagements [get]
func (h *EngagementHandler) List(c *gin.Context) {
	filter := models.EngagementFilter{
		SponsorID: strings.TrimSpace(c.Query("sponsorId")),
		Category:  strings.TrimSpace(c.Query("category")),
		Status:    models.EngagementStatus(strings.TrimSpace(c.Query("status"))),
		Search:    strings.TrimSpace(c.Query("search")),
		SortBy:    strings.TrimSpace(c.Query("sortBy")),
		SortOrder: strings.TrimSpace(c.Query("sortOrder")),
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("pageSize", "20"))

	engagements, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, engagements, pagination)
}

// Edit godoc
// @Summary One-shot engagement edit
// @Tags Engagements
// @Accept json
// @Produce json
// @Param id path string true "Engagement ID"
// @Param payload body models.EngagementPatch true "Fields to change"
// @Success 200 {object} response.Envelope
// @Router /engagements/{id} [patch]
func (h *EngagementHandler) Edit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var patch models.EngagementPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}
	engagement, err := h.service.Edit(c.Request.Context(), c.Param("id"), claims.ActorID, patch)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, engagement, nil)
}

// SetStatus godoc
// @Summary Open or close an engagement
// @Tags Engagements
// @Accept json
// @Produce json
// @Param id path string true "Engagement ID"
// @Param payload body service.SetEngagementStatusRequest true "Target status"
// @Success 200 {object} response.Envelope
// @Router /engagements/{id}/status [put]
func (h *EngagementHandler) SetStatus(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.SetEngagementStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}
	result, err := h.service.SetStatus(c.Request.Context(), c.Param("id"), claims.ActorID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Delete godoc
// @Summary Delete an engagement and its dependent records
// @Tags Engagements
// @Param id path string true "Engagement ID"
// @Success 204
// @Router /engagements/{id} [delete]
func (h *EngagementHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), claims.ActorID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
